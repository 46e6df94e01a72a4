package search

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GoSim-25-26J-441/paramsearch/internal/metrics"
	"github.com/GoSim-25-26J-441/paramsearch/internal/space"
	"github.com/GoSim-25-26J-441/paramsearch/pkg/logger"
)

// ErrShardPanic wraps a panic recovered from a shard task.
var ErrShardPanic = errors.New("shard task panicked")

// Task searches one shard.
type Task func(ctx context.Context, shard space.Shard) (ShardResult, error)

// ShardError records why a shard contributed no candidate.
type ShardError struct {
	Index int
	Value int
	Err   error
}

func (e *ShardError) Error() string {
	return fmt.Sprintf("shard %d (value %d): %v", e.Index, e.Value, e.Err)
}

func (e *ShardError) Unwrap() error {
	return e.Err
}

// Outcome is everything the executor collected from one pass over the shards.
// Results and Failures are sorted by shard index.
type Outcome struct {
	Dispatched int
	Results    []ShardResult
	Failures   []*ShardError
	// Unmatched lists shards that ran cleanly but produced no candidate,
	// either because the filter rejected everything or nothing was finite.
	Unmatched []int
	// Filtered is the total number of outputs rejected by the filter.
	Filtered int64
}

// FailedIndices returns the indices of failed shards.
func (o *Outcome) FailedIndices() []int {
	out := make([]int, 0, len(o.Failures))
	for _, f := range o.Failures {
		out = append(out, f.Index)
	}
	return out
}

// Executor runs one task per shard on a bounded pool of goroutines.
type Executor struct {
	workers   int
	logger    *slog.Logger
	collector *metrics.Collector

	progressTotal int
	progressEvery int
	onProgress    func(completed, total int)
}

// NewExecutor creates an executor with the given parallelism. Zero or
// negative means one worker per CPU.
func NewExecutor(workers int) *Executor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Executor{
		workers: workers,
		logger:  logger.Default,
	}
}

// WithLogger sets the logger used for shard failures
func (e *Executor) WithLogger(l *slog.Logger) *Executor {
	if l != nil {
		e.logger = l
	}
	return e
}

// WithCollector records every shard outcome into c
func (e *Executor) WithCollector(c *metrics.Collector) *Executor {
	e.collector = c
	return e
}

// WithProgress logs a progress line every `every` completed shards out of
// total. It needs a collector.
func (e *Executor) WithProgress(total, every int) *Executor {
	e.progressTotal = total
	e.progressEvery = every
	return e
}

// OnProgress calls fn from the collecting goroutine after every shard. It
// needs a collector.
func (e *Executor) OnProgress(fn func(completed, total int)) *Executor {
	e.onProgress = fn
	return e
}

// Workers returns the configured parallelism
func (e *Executor) Workers() int {
	return e.workers
}

type shardMessage struct {
	shard  space.Shard
	result ShardResult
	err    error
}

// Execute dispatches task for every shard and blocks until each one has
// either produced a result or failed. A failing shard never cancels its
// siblings. Once ctx is done no further shards are pulled from the
// sequence; dispatched shards that had not started fail with the context
// error.
//
// Tasks only send on a channel; a single collector goroutine owns the
// outcome, so no locking is needed around it.
func (e *Executor) Execute(ctx context.Context, shards iter.Seq[space.Shard], task Task) *Outcome {
	out := &Outcome{}
	msgs := make(chan shardMessage, e.workers)
	collected := make(chan struct{})

	go func() {
		defer close(collected)
		for m := range msgs {
			e.collect(out, m)
		}
	}()

	var g errgroup.Group
	g.SetLimit(e.workers)
	dispatched := 0
	for sh := range shards {
		if ctx.Err() != nil {
			break
		}
		dispatched++
		g.Go(func() error {
			res, err := e.run(ctx, sh, task)
			msgs <- shardMessage{shard: sh, result: res, err: err}
			return nil
		})
	}
	_ = g.Wait()
	close(msgs)
	<-collected

	out.Dispatched = dispatched
	sort.Slice(out.Results, func(i, j int) bool { return out.Results[i].Shard.Index < out.Results[j].Shard.Index })
	sort.Slice(out.Failures, func(i, j int) bool { return out.Failures[i].Index < out.Failures[j].Index })
	sort.Ints(out.Unmatched)
	return out
}

func (e *Executor) run(ctx context.Context, sh space.Shard, task Task) (res ShardResult, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = ShardResult{Shard: sh, Elapsed: time.Since(start)}
			err = fmt.Errorf("%w: %v", ErrShardPanic, r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return ShardResult{Shard: sh}, err
	}
	return task(ctx, sh)
}

func (e *Executor) collect(out *Outcome, m shardMessage) {
	out.Filtered += m.result.Filtered
	failed := false

	switch {
	case m.err == nil:
		out.Results = append(out.Results, m.result)
	case errors.Is(m.err, ErrNoneWithinTolerance), errors.Is(m.err, ErrNoFiniteOutput):
		out.Unmatched = append(out.Unmatched, m.shard.Index)
		e.logger.Debug("shard produced no candidate",
			"shard", m.shard.Index,
			"value", m.shard.Value(),
			"filtered", m.result.Filtered,
			"skipped", m.result.Skipped,
			"reason", m.err)
	default:
		failed = true
		out.Failures = append(out.Failures, &ShardError{
			Index: m.shard.Index,
			Value: m.shard.Value(),
			Err:   m.err,
		})
		e.logger.Warn("shard failed",
			"shard", m.shard.Index,
			"value", m.shard.Value(),
			"error", m.err)
	}

	if e.collector == nil {
		return
	}
	e.collector.RecordShard(metrics.ShardSample{
		Index:     m.shard.Index,
		Evaluated: m.result.Evaluated,
		Skipped:   m.result.Skipped,
		Filtered:  m.result.Filtered,
		Duration:  m.result.Elapsed,
		Failed:    failed,
	})
	done := e.collector.Completed()
	if e.progressEvery > 0 && (done%e.progressEvery == 0 || done == e.progressTotal) {
		e.logger.Info("search progress", "completed", done, "total", e.progressTotal)
	}
	if e.onProgress != nil {
		e.onProgress(done, e.progressTotal)
	}
}
