package searchd

// smallConfigYAML is a 5x5x5x5 APLL space that finishes in milliseconds.
const smallConfigYAML = `
log_level: info
workers: 2
axes:
  - {name: sdm0, min: 0, max: 4}
  - {name: sdm1, min: 0, max: 4}
  - {name: sdm2, min: 0, max: 4}
  - {name: odiv, min: 0, max: 4}
`
