package searchd

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/GoSim-25-26J-441/paramsearch/internal/search"
	"github.com/GoSim-25-26J-441/paramsearch/pkg/config"
	"github.com/GoSim-25-26J-441/paramsearch/pkg/logger"
)

// RunExecutor manages asynchronous search execution and per-run cancellation.
type RunExecutor struct {
	store    *RunStore
	notifier *Notifier

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

var (
	ErrRunNotFound   = errors.New("run not found")
	ErrRunTerminal   = errors.New("run is terminal")
	ErrRunIDMissing  = errors.New("run_id is required")
	ErrInvalidConfig = errors.New("invalid search config")
)

func NewRunExecutor(store *RunStore) *RunExecutor {
	return &RunExecutor{
		store:   store,
		cancels: make(map[string]context.CancelFunc),
	}
}

// SetNotifier enables completion callbacks
func (e *RunExecutor) SetNotifier(n *Notifier) {
	e.notifier = n
}

// Start validates the run's config and begins the search asynchronously.
// Returns the updated run state (RUNNING) or an error. An invalid config
// marks the run FAILED and returns ErrInvalidConfig.
func (e *RunExecutor) Start(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}

	rec, ok := e.store.Get(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	switch {
	case rec.Run.Status == RunStatusRunning:
		return rec, nil
	case rec.Run.Status.Terminal():
		return nil, fmt.Errorf("%w: %s", ErrRunTerminal, runID)
	}

	searcher, err := buildSearcher(rec.Input)
	if err != nil {
		if _, setErr := e.store.SetStatus(runID, RunStatusFailed, err.Error()); setErr != nil {
			logger.Error("failed to set failed status", "run_id", runID, "error", setErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	updated, err := e.store.SetStatus(runID, RunStatusRunning, "")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	if old, exists := e.cancels[runID]; exists {
		old()
	}
	e.cancels[runID] = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go e.runSearch(ctx, runID, searcher)
	return updated, nil
}

// Stop requests cancellation for a run and marks it cancelled.
func (e *RunExecutor) Stop(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}
	if _, ok := e.store.Get(runID); !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	e.mu.Lock()
	cancel, ok := e.cancels[runID]
	e.mu.Unlock()

	if ok {
		cancel()
	}

	return e.store.SetStatus(runID, RunStatusCancelled, "")
}

// StopAll cancels every active run
func (e *RunExecutor) StopAll() {
	e.mu.Lock()
	ids := make([]string, 0, len(e.cancels))
	for id := range e.cancels {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		if _, err := e.Stop(id); err != nil {
			logger.Warn("failed to stop run", "run_id", id, "error", err)
		}
	}
}

// ActiveRuns returns the number of searches still executing
func (e *RunExecutor) ActiveRuns() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cancels)
}

// Wait blocks until every started search has returned
func (e *RunExecutor) Wait() {
	e.wg.Wait()
}

func (e *RunExecutor) cleanup(runID string) {
	e.mu.Lock()
	if cancel, ok := e.cancels[runID]; ok {
		cancel()
		delete(e.cancels, runID)
	}
	e.mu.Unlock()
}

func buildSearcher(input *RunInput) (*search.Searcher, error) {
	cfg := config.DefaultConfig()
	if input.ConfigYAML != "" {
		parsed, err := config.ParseConfigYAMLString(input.ConfigYAML)
		if err != nil {
			return nil, err
		}
		cfg = parsed
	}
	return search.FromConfig(cfg)
}

func (e *RunExecutor) runSearch(ctx context.Context, runID string, searcher *search.Searcher) {
	defer e.wg.Done()
	defer e.cleanup(runID)

	log := logger.ForRun(runID)
	searcher.WithLogger(log)
	log.Info("starting search", "points", searcher.Space().Size())

	report, err := searcher.Run(ctx)
	if report != nil {
		if setErr := e.store.SetReport(runID, report); setErr != nil {
			log.Error("failed to store report", "error", setErr)
		}
	}

	var (
		status = RunStatusCompleted
		errMsg string
	)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		status = RunStatusCancelled
		log.Info("search cancelled")
	case errors.Is(err, search.ErrPartialResult):
		// The best of the surviving shards is still reported.
		errMsg = err.Error()
		log.Warn("search completed with failed shards", "error", err)
	default:
		status = RunStatusFailed
		errMsg = err.Error()
		log.Error("search failed", "error", err)
	}

	updated, setErr := e.store.SetStatus(runID, status, errMsg)
	if setErr != nil {
		log.Error("failed to set final status", "status", status, "error", setErr)
		return
	}

	if e.notifier != nil {
		if rec, ok := e.store.Get(runID); ok && rec.Input.CallbackURL != "" {
			rec.Run = updated.Run
			e.notifier.Notify(rec.Input.CallbackURL, rec.Input.CallbackSecret, rec)
		}
	}
}
