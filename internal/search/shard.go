package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/GoSim-25-26J-441/paramsearch/internal/objective"
	"github.com/GoSim-25-26J-441/paramsearch/internal/space"
)

var (
	// ErrEmptyShard means the shard had no points to evaluate.
	ErrEmptyShard = errors.New("shard is empty")
	// ErrNoneWithinTolerance means every finite output in the shard was
	// rejected by the tolerance filter.
	ErrNoneWithinTolerance = errors.New("no output within tolerance")
	// ErrNoFiniteOutput means every point in the shard failed to evaluate.
	ErrNoFiniteOutput = errors.New("no finite output")
)

// ctxCheckInterval is how many points are evaluated between context checks.
const ctxCheckInterval = 1 << 14

// ShardResult is the outcome of searching one shard.
type ShardResult struct {
	Shard     space.Shard
	Best      Candidate
	Evaluated int64
	Skipped   int64
	Filtered  int64
	Elapsed   time.Duration
}

// SearchShard exhaustively evaluates every point of shard in nested
// ascending order and returns the one closest to target. Only the current
// best is retained; a later point replaces it only if strictly closer, so
// the earliest point wins ties.
//
// Points whose evaluation returns an *objective.EvaluationError or a
// non-finite value are skipped. Any other evaluation error aborts the shard.
func SearchShard(ctx context.Context, shard space.Shard, fn objective.Function, target float64, filter Filter) (ShardResult, error) {
	start := time.Now()
	res := ShardResult{Shard: shard}

	var (
		best  Candidate
		found bool
		seen  int64
	)
	for p := range shard.Points() {
		seen++
		if seen%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				res.Elapsed = time.Since(start)
				return res, err
			}
		}

		out, err := fn.Evaluate(p)
		if err != nil {
			var evalErr *objective.EvaluationError
			if errors.As(err, &evalErr) {
				res.Skipped++
				continue
			}
			res.Elapsed = time.Since(start)
			return res, fmt.Errorf("evaluate %v: %w", p, err)
		}
		if math.IsNaN(out) || math.IsInf(out, 0) {
			res.Skipped++
			continue
		}
		res.Evaluated++

		if !filter.Admits(out, target) {
			res.Filtered++
			continue
		}
		if !found || math.Abs(out-target) < best.distance {
			best = NewCandidate(p, out, target)
			found = true
		}
	}
	res.Elapsed = time.Since(start)

	switch {
	case seen == 0:
		return res, ErrEmptyShard
	case found:
		res.Best = best
		return res, nil
	case res.Filtered > 0:
		return res, ErrNoneWithinTolerance
	default:
		return res, ErrNoFiniteOutput
	}
}
