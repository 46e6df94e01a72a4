package config

// Config describes one exhaustive parameter search
type Config struct {
	LogLevel  string     `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"` // text or json
	Objective string     `yaml:"objective"`  // e.g., "apll"
	Target    float64    `yaml:"target"`
	BaseScale float64    `yaml:"base_scale"`
	ShardAxis int        `yaml:"shard_axis"`
	Workers   int        `yaml:"workers"` // 0 = one per CPU
	Axes      []Axis     `yaml:"axes"`
	Tolerance *Tolerance `yaml:"tolerance,omitempty"`
}

// Axis is one inclusive integer dimension of the search space
type Axis struct {
	Name string `yaml:"name"`
	Min  int    `yaml:"min"`
	Max  int    `yaml:"max"`
}

// Tolerance configures the relative-error pre-filter.
// A window of 0.025 admits outputs strictly within ±2.5% of the target.
type Tolerance struct {
	Window    float64 `yaml:"window"`
	Widen     bool    `yaml:"widen"`
	MaxWindow float64 `yaml:"max_window"`
}

const (
	// DefaultTarget is the desired APLL output, 48 kHz * 1024.
	DefaultTarget = 49.152e6
	// DefaultBaseScale is the ESP32 crystal frequency.
	DefaultBaseScale = 40e6
	// DefaultMaxWindow bounds tolerance widening before the filter is dropped.
	DefaultMaxWindow = 0.5
)

// DefaultConfig returns the ESP32 APLL search with no tolerance filter
func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Objective: "apll",
		Target:    DefaultTarget,
		BaseScale: DefaultBaseScale,
		ShardAxis: 0,
		Workers:   0,
		Axes: []Axis{
			{Name: "sdm0", Min: 0, Max: 255},
			{Name: "sdm1", Min: 0, Max: 255},
			{Name: "sdm2", Min: 0, Max: 63},
			{Name: "odiv", Min: 0, Max: 31},
		},
	}
}

// FilterWindow returns the configured tolerance window, or 0 when the
// filter is disabled.
func (c *Config) FilterWindow() float64 {
	if c.Tolerance == nil {
		return 0
	}
	return c.Tolerance.Window
}
