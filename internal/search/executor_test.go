package search

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/paramsearch/internal/metrics"
	"github.com/GoSim-25-26J-441/paramsearch/internal/space"
	"github.com/GoSim-25-26J-441/paramsearch/pkg/logger"
)

func testSpace(t *testing.T, max int) *space.Space {
	t.Helper()
	var axes [space.Dims]space.Axis
	for d := range space.Dims {
		axes[d] = space.Axis{Range: space.Range{Min: 0, Max: max}}
	}
	sp, err := space.New(axes)
	require.NoError(t, err)
	return sp
}

func TestNewExecutorDefaultsToCPUCount(t *testing.T) {
	assert.Positive(t, NewExecutor(0).Workers())
	assert.Equal(t, 3, NewExecutor(3).Workers())
}

func TestExecuteCoversEveryPointOnce(t *testing.T) {
	sp := testSpace(t, 4)

	var mu sync.Mutex
	seen := make(map[space.Point]int)
	task := func(ctx context.Context, sh space.Shard) (ShardResult, error) {
		for p := range sh.Points() {
			mu.Lock()
			seen[p]++
			mu.Unlock()
		}
		return SearchShard(ctx, sh, sumFunc(), 0, Filter{})
	}

	out := NewExecutor(3).WithLogger(logger.Discard()).Execute(context.Background(), sp.Shards(1), task)

	require.Equal(t, 5, out.Dispatched)
	require.Len(t, out.Results, 5)
	assert.Empty(t, out.Failures)
	for i, r := range out.Results {
		assert.Equal(t, i, r.Shard.Index)
	}
	assert.Len(t, seen, int(sp.Size()))
	for p, n := range seen {
		if n != 1 {
			t.Fatalf("point %v evaluated %d times", p, n)
		}
	}
}

func TestExecuteIsolatesFailures(t *testing.T) {
	sp := testSpace(t, 4)
	collector := metrics.NewCollector()

	var ran atomic.Int32
	task := func(ctx context.Context, sh space.Shard) (ShardResult, error) {
		ran.Add(1)
		switch sh.Value() {
		case 1:
			panic("injected fault")
		case 3:
			return ShardResult{Shard: sh}, errors.New("injected error")
		}
		return SearchShard(ctx, sh, sumFunc(), 0, Filter{})
	}

	out := NewExecutor(2).
		WithLogger(logger.Discard()).
		WithCollector(collector).
		Execute(context.Background(), sp.Shards(0), task)

	assert.Equal(t, int32(5), ran.Load())
	require.Len(t, out.Results, 3)
	require.Len(t, out.Failures, 2)
	assert.Equal(t, []int{1, 3}, out.FailedIndices())
	assert.ErrorIs(t, out.Failures[0], ErrShardPanic)
	assert.ErrorContains(t, out.Failures[1], "injected error")
	assert.Equal(t, 3, out.Failures[1].Value)

	sum := collector.Summary()
	assert.Equal(t, 5, sum.Shards)
	assert.Equal(t, 2, sum.FailedShards)
}

func TestExecuteRecordsUnmatchedShards(t *testing.T) {
	sp := testSpace(t, 2)
	task := func(ctx context.Context, sh space.Shard) (ShardResult, error) {
		return SearchShard(ctx, sh, sumFunc(), 100, Filter{Window: 0.1})
	}

	out := NewExecutor(2).WithLogger(logger.Discard()).Execute(context.Background(), sp.Shards(0), task)
	assert.Empty(t, out.Results)
	assert.Empty(t, out.Failures)
	assert.Equal(t, []int{0, 1, 2}, out.Unmatched)
	assert.Equal(t, sp.Size(), out.Filtered)
}

func TestExecuteCancelledContextDispatchesNothing(t *testing.T) {
	sp := testSpace(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := func(ctx context.Context, sh space.Shard) (ShardResult, error) {
		t.Errorf("task should not run for shard %d", sh.Index)
		return ShardResult{}, nil
	}
	out := NewExecutor(2).WithLogger(logger.Discard()).Execute(ctx, sp.Shards(0), task)

	assert.Zero(t, out.Dispatched)
	assert.Empty(t, out.Results)
	assert.Empty(t, out.Failures)
}

func TestExecuteStopsPullingShardsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	endless := func(yield func(space.Shard) bool) {
		for i := 0; ; i++ {
			if !yield(space.Shard{Index: i}) {
				return
			}
		}
	}
	task := func(ctx context.Context, sh space.Shard) (ShardResult, error) {
		if sh.Index == 3 {
			cancel()
		}
		return ShardResult{Shard: sh}, nil
	}

	done := make(chan *Outcome)
	go func() {
		done <- NewExecutor(1).WithLogger(logger.Discard()).Execute(ctx, endless, task)
	}()

	select {
	case out := <-done:
		assert.GreaterOrEqual(t, out.Dispatched, 4)
		assert.LessOrEqual(t, out.Dispatched, 5)
	case <-time.After(5 * time.Second):
		t.Fatal("Execute kept pulling shards after its context was cancelled")
	}
}

func TestExecuteResultsIndependentOfWorkerCount(t *testing.T) {
	sp := testSpace(t, 4)
	task := func(ctx context.Context, sh space.Shard) (ShardResult, error) {
		return SearchShard(ctx, sh, sumFunc(), 6, Filter{})
	}

	bests := func(out *Outcome) []space.Point {
		pts := make([]space.Point, 0, len(out.Results))
		for _, r := range out.Results {
			pts = append(pts, r.Best.Point())
		}
		return pts
	}

	serial := NewExecutor(1).WithLogger(logger.Discard()).Execute(context.Background(), sp.Shards(0), task)
	parallel := NewExecutor(8).WithLogger(logger.Discard()).Execute(context.Background(), sp.Shards(0), task)
	if diff := cmp.Diff(bests(serial), bests(parallel)); diff != "" {
		t.Fatalf("results differ by worker count (-serial +parallel):\n%s", diff)
	}
}

func TestExecuteLogsProgress(t *testing.T) {
	sp := testSpace(t, 4)
	var buf bytes.Buffer
	task := func(ctx context.Context, sh space.Shard) (ShardResult, error) {
		return SearchShard(ctx, sh, sumFunc(), 0, Filter{})
	}

	NewExecutor(2).
		WithLogger(logger.NewText("info", &buf)).
		WithCollector(metrics.NewCollector()).
		WithProgress(5, 2).
		Execute(context.Background(), sp.Shards(0), task)

	// Shards 2 and 4, then the final one.
	assert.Equal(t, 3, strings.Count(buf.String(), "search progress"))
	assert.Contains(t, buf.String(), "completed=5 total=5")
}
