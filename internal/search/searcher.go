package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/GoSim-25-26J-441/paramsearch/internal/metrics"
	"github.com/GoSim-25-26J-441/paramsearch/internal/objective"
	"github.com/GoSim-25-26J-441/paramsearch/internal/space"
	"github.com/GoSim-25-26J-441/paramsearch/pkg/config"
	"github.com/GoSim-25-26J-441/paramsearch/pkg/logger"
)

var (
	// ErrNoCandidateWithinTolerance means every shard ran but the tolerance
	// filter rejected every output. Unlike ErrEmptyResult nothing failed.
	ErrNoCandidateWithinTolerance = errors.New("no candidate within tolerance window")
	// ErrPartialResult is matched by *PartialError.
	ErrPartialResult = errors.New("partial result")
)

// PartialError is returned alongside a usable report when some shards
// failed. The best candidate is then only the best of the shards that ran.
type PartialError struct {
	Failed int
	Total  int
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%d of %d shards failed; best candidate may not be global", e.Failed, e.Total)
}

func (e *PartialError) Unwrap() error {
	return ErrPartialResult
}

// Options configures a Searcher.
type Options struct {
	Target float64
	// Window enables the tolerance filter when positive.
	Window float64
	// Widen doubles the window, up to MaxWindow and then without any
	// filter, whenever a pass admits nothing.
	Widen     bool
	MaxWindow float64
	ShardAxis int
	Workers   int
	Logger    *slog.Logger
	// Progress, if set, is called after every shard of every pass.
	Progress func(completed, total int)
}

// Report is the final outcome of a search run. Window is the filter window
// of the final pass (0 = unfiltered). Exact is true when every shard ran,
// so Best is the global optimum.
type Report struct {
	Best            Candidate          `json:"best"`
	Found           bool               `json:"found"`
	Objective       string             `json:"objective"`
	AxisNames       [space.Dims]string `json:"axis_names"`
	Target          float64            `json:"target"`
	Window          float64            `json:"window"`
	Widenings       int                `json:"widenings"`
	ShardAxis       int                `json:"shard_axis"`
	Shards          int                `json:"shards"`
	FailedShards    []int              `json:"failed_shards"`
	Failures        []*ShardError      `json:"-"`
	UnmatchedShards int                `json:"unmatched_shards"`
	Exact           bool               `json:"exact"`
	Stats           metrics.Summary    `json:"stats"`
}

// Partial reports whether any shard failed.
func (r *Report) Partial() bool {
	return len(r.FailedShards) > 0
}

// Searcher runs the partition, evaluate, reduce pipeline over a space.
type Searcher struct {
	space *space.Space
	fn    objective.Function
	opts  Options
}

// New creates a searcher over sp minimizing |fn - opts.Target|.
func New(sp *space.Space, fn objective.Function, opts Options) (*Searcher, error) {
	if sp == nil {
		return nil, fmt.Errorf("space is required")
	}
	if fn == nil {
		return nil, fmt.Errorf("objective function is required")
	}
	if opts.ShardAxis < 0 || opts.ShardAxis >= space.Dims {
		return nil, fmt.Errorf("shard axis must be between 0 and %d, got %d", space.Dims-1, opts.ShardAxis)
	}
	if opts.Window < 0 {
		return nil, fmt.Errorf("tolerance window cannot be negative, got %v", opts.Window)
	}
	if opts.Window > 0 && opts.Target == 0 {
		return nil, fmt.Errorf("tolerance window needs a non-zero target")
	}
	if opts.Widen && opts.MaxWindow < opts.Window {
		opts.MaxWindow = opts.Window
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default
	}
	return &Searcher{space: sp, fn: fn, opts: opts}, nil
}

// FromConfig builds the space, objective and searcher described by cfg.
func FromConfig(cfg *config.Config) (*Searcher, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	var axes [space.Dims]space.Axis
	for i, a := range cfg.Axes {
		axes[i] = space.Axis{Name: a.Name, Range: space.Range{Min: a.Min, Max: a.Max}}
	}
	sp, err := space.New(axes)
	if err != nil {
		return nil, fmt.Errorf("failed to build space: %w", err)
	}
	fn, err := objective.New(cfg.Objective, cfg.BaseScale)
	if err != nil {
		return nil, fmt.Errorf("failed to build objective: %w", err)
	}
	opts := Options{
		Target:    cfg.Target,
		Window:    cfg.FilterWindow(),
		ShardAxis: cfg.ShardAxis,
		Workers:   cfg.Workers,
	}
	if t := cfg.Tolerance; t != nil {
		opts.Widen = t.Widen
		opts.MaxWindow = t.MaxWindow
	}
	return New(sp, fn, opts)
}

// WithLogger replaces the searcher's logger
func (s *Searcher) WithLogger(l *slog.Logger) *Searcher {
	if l != nil {
		s.opts.Logger = l
	}
	return s
}

// WithProgress installs a per-shard progress callback
func (s *Searcher) WithProgress(fn func(completed, total int)) *Searcher {
	s.opts.Progress = fn
	return s
}

// Space returns the searched space
func (s *Searcher) Space() *space.Space {
	return s.space
}

// Run searches the whole space and returns the global best.
//
// Errors:
//   - *PartialError (errors.Is ErrPartialResult) with a usable report when
//     some shards failed;
//   - ErrEmptyResult when no shard produced a candidate for any reason
//     other than the tolerance filter;
//   - ErrNoCandidateWithinTolerance when the filter rejected everything
//     and widening is off, noting how many shards failed if any did;
//   - the context error if ctx ends first.
func (s *Searcher) Run(ctx context.Context) (*Report, error) {
	window := s.opts.Window
	widenings := 0
	log := s.opts.Logger
	collector := metrics.NewCollector()

	for {
		report, out := s.pass(ctx, collector, window)
		report.Widenings = widenings

		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("search cancelled: %w", err)
		}

		best, err := Aggregate(out.Results)
		if err == nil {
			report.Best = best
			report.Found = true
			report.Exact = !report.Partial()
			log.Info("search finished",
				"point", best.Point(),
				"output", best.Output(),
				"distance", best.Distance(),
				"window", window,
				"failed_shards", len(report.FailedShards),
				"evaluated", report.Stats.Evaluated,
				"wall", report.Stats.Wall)
			if report.Partial() {
				return report, &PartialError{Failed: len(report.FailedShards), Total: report.Shards}
			}
			return report, nil
		}

		if out.Filtered == 0 || window <= 0 {
			log.Error("search produced no candidate", "shards", report.Shards, "failed_shards", len(report.FailedShards))
			return report, ErrEmptyResult
		}
		if !s.opts.Widen {
			log.Warn("tolerance filter rejected every output",
				"window", window,
				"filtered", out.Filtered,
				"failed_shards", report.FailedShards)
			if report.Partial() {
				return report, fmt.Errorf("%w; %d of %d shards failed",
					ErrNoCandidateWithinTolerance, len(report.FailedShards), report.Shards)
			}
			return report, ErrNoCandidateWithinTolerance
		}

		next := s.widen(window)
		log.Info("widening tolerance window", "from", window, "to", next)
		window = next
		widenings++
	}
}

// widen doubles the window, clamps it to MaxWindow, and drops the filter
// once MaxWindow has already been tried.
func (s *Searcher) widen(window float64) float64 {
	if window >= s.opts.MaxWindow {
		return 0
	}
	next := window * 2
	if next > s.opts.MaxWindow {
		next = s.opts.MaxWindow
	}
	return next
}

// progressSteps is roughly how many progress lines a pass logs
const progressSteps = 10

func (s *Searcher) pass(ctx context.Context, collector *metrics.Collector, window float64) (*Report, *Outcome) {
	collector.Clear()
	collector.Start()

	filter := Filter{Window: window}
	target := s.opts.Target
	total := s.space.ShardCount(s.opts.ShardAxis)
	exec := NewExecutor(s.opts.Workers).
		WithLogger(s.opts.Logger).
		WithCollector(collector).
		WithProgress(total, max(total/progressSteps, 1)).
		OnProgress(s.opts.Progress)

	s.opts.Logger.Debug("starting pass", "shards", total, "workers", exec.Workers(), "window", window)
	out := exec.Execute(ctx, s.space.Shards(s.opts.ShardAxis), func(ctx context.Context, sh space.Shard) (ShardResult, error) {
		return SearchShard(ctx, sh, s.fn, target, filter)
	})
	collector.Stop()

	report := &Report{
		Objective:       s.fn.Name(),
		Target:          target,
		Window:          window,
		ShardAxis:       s.opts.ShardAxis,
		Shards:          out.Dispatched,
		FailedShards:    out.FailedIndices(),
		Failures:        out.Failures,
		UnmatchedShards: len(out.Unmatched),
		Stats:           collector.Summary(),
	}
	for d := range space.Dims {
		report.AxisNames[d] = s.space.Axis(d).Name
	}
	return report, out
}
