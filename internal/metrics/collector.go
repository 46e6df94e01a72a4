package metrics

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ShardSample is what one finished (or failed) shard task reports
type ShardSample struct {
	Index     int
	Evaluated int64
	Skipped   int64
	Filtered  int64
	Duration  time.Duration
	Failed    bool
}

// Summary aggregates every sample recorded during a run
type Summary struct {
	Shards         int           `json:"shards"`
	FailedShards   int           `json:"failed_shards"`
	Evaluated      int64         `json:"evaluated"`
	Skipped        int64         `json:"skipped"`
	Filtered       int64         `json:"filtered"`
	Wall           time.Duration `json:"wall_ns"`
	EvalsPerSecond float64       `json:"evals_per_second"`
	ShardMean      time.Duration `json:"shard_mean_ns"`
	ShardStdDev    time.Duration `json:"shard_stddev_ns"`
	ShardMax       time.Duration `json:"shard_max_ns"`
}

// Collector records per-shard counters and durations for a search run.
// It is safe for concurrent use.
type Collector struct {
	mu sync.RWMutex

	startTime time.Time
	endTime   time.Time
	samples   []ShardSample
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Start marks the start of metric collection
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = time.Now()
	c.endTime = time.Time{}
}

// Stop marks the end of metric collection
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endTime = time.Now()
}

// RecordShard records one shard task outcome
func (c *Collector) RecordShard(s ShardSample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = append(c.samples, s)
}

// Completed returns how many shards have reported so far
func (c *Collector) Completed() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.samples)
}

// Summary computes totals and shard duration statistics
func (c *Collector) Summary() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sum := Summary{Shards: len(c.samples)}
	end := c.endTime
	if end.IsZero() {
		end = time.Now()
	}
	sum.Wall = end.Sub(c.startTime)

	durations := make([]float64, 0, len(c.samples))
	for _, s := range c.samples {
		if s.Failed {
			sum.FailedShards++
		}
		sum.Evaluated += s.Evaluated
		sum.Skipped += s.Skipped
		sum.Filtered += s.Filtered
		durations = append(durations, float64(s.Duration))
	}

	if len(durations) > 0 {
		mean, std := stat.MeanStdDev(durations, nil)
		if len(durations) == 1 {
			std = 0
		}
		sum.ShardMean = time.Duration(mean)
		sum.ShardStdDev = time.Duration(std)
		sum.ShardMax = time.Duration(floats.Max(durations))
	}
	if secs := sum.Wall.Seconds(); secs > 0 {
		sum.EvalsPerSecond = float64(sum.Evaluated) / secs
	}
	return sum
}

// Clear drops all samples and timings so the collector can be reused
func (c *Collector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = nil
	c.startTime = time.Time{}
	c.endTime = time.Time{}
}
