package search

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/GoSim-25-26J-441/paramsearch/internal/objective"
	"github.com/GoSim-25-26J-441/paramsearch/internal/space"
)

// ErrEmptyResult means no shard produced a candidate to reduce.
var ErrEmptyResult = errors.New("empty result: no shard produced a candidate")

// Aggregate returns the candidate with the smallest distance. When several
// share it, the first in results order wins.
func Aggregate(results []ShardResult) (Candidate, error) {
	if len(results) == 0 {
		return Candidate{}, ErrEmptyResult
	}
	distances := make([]float64, len(results))
	for i, r := range results {
		distances[i] = r.Best.Distance()
	}
	return results[floats.MinIdx(distances)].Best, nil
}

// NaiveSearch walks the whole space on the calling goroutine and keeps the
// first point with the smallest distance. It exists as a reference for the
// sharded search.
func NaiveSearch(sp *space.Space, fn objective.Function, target float64) (Candidate, error) {
	var whole space.Shard
	for d, a := range sp.Axes() {
		whole.Ranges[d] = a.Range
	}

	var (
		best  Candidate
		found bool
	)
	for p := range whole.Points() {
		out, err := fn.Evaluate(p)
		if err != nil || math.IsNaN(out) || math.IsInf(out, 0) {
			continue
		}
		c := NewCandidate(p, out, target)
		if !found || c.Distance() < best.Distance() {
			best, found = c, true
		}
	}
	if !found {
		return Candidate{}, ErrEmptyResult
	}
	return best, nil
}
