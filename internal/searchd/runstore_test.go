package searchd

import (
	"testing"

	"github.com/GoSim-25-26J-441/paramsearch/internal/search"
)

func TestRunStoreCreateAndGet(t *testing.T) {
	store := NewRunStore()

	rec, err := store.Create("", &RunInput{ConfigYAML: smallConfigYAML})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if rec == nil || rec.Run == nil {
		t.Fatalf("Create returned nil record/run")
	}
	if rec.Run.ID == "" {
		t.Fatalf("expected generated run id")
	}
	if rec.Run.Status != RunStatusPending {
		t.Fatalf("expected status pending, got %v", rec.Run.Status)
	}
	if rec.Run.CreatedAtUnixMs == 0 {
		t.Fatalf("expected created_at_unix_ms to be set")
	}

	got, ok := store.Get(rec.Run.ID)
	if !ok {
		t.Fatalf("expected run to exist")
	}
	if got.Run.ID != rec.Run.ID {
		t.Fatalf("expected same run id")
	}
}

func TestRunStoreCreateRejects(t *testing.T) {
	store := NewRunStore()
	if _, err := store.Create("run-1", &RunInput{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Create("run-1", &RunInput{}); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if _, err := store.Create("bad/id", &RunInput{}); err == nil {
		t.Fatalf("expected invalid id error")
	}
	if _, err := store.Create("run-2", nil); err == nil {
		t.Fatalf("expected error for nil input")
	}
}

func TestRunStoreGetReturnsSnapshot(t *testing.T) {
	store := NewRunStore()
	if _, err := store.Create("run-1", &RunInput{}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	rec, _ := store.Get("run-1")
	rec.Run.Status = RunStatusFailed

	again, _ := store.Get("run-1")
	if again.Run.Status != RunStatusPending {
		t.Fatalf("mutating a snapshot must not change the store, got %v", again.Run.Status)
	}
}

func TestRunStoreSetStatusSetsTimestamps(t *testing.T) {
	store := NewRunStore()
	rec, err := store.Create("run-1", &RunInput{})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if rec.Run.StartedAtUnixMs != 0 || rec.Run.EndedAtUnixMs != 0 {
		t.Fatalf("expected timestamps not set initially")
	}

	rec, err = store.SetStatus("run-1", RunStatusRunning, "")
	if err != nil {
		t.Fatalf("SetStatus running error: %v", err)
	}
	if rec.Run.StartedAtUnixMs == 0 {
		t.Fatalf("expected started_at_unix_ms set")
	}
	if rec.Run.EndedAtUnixMs != 0 {
		t.Fatalf("did not expect ended_at_unix_ms set for running")
	}

	rec, err = store.SetStatus("run-1", RunStatusCompleted, "")
	if err != nil {
		t.Fatalf("SetStatus completed error: %v", err)
	}
	if rec.Run.EndedAtUnixMs == 0 {
		t.Fatalf("expected ended_at_unix_ms set")
	}

	if _, err := store.SetStatus("missing", RunStatusRunning, ""); err == nil {
		t.Fatalf("expected error for missing run")
	}
}

func TestRunStoreTerminalStatusSticks(t *testing.T) {
	store := NewRunStore()
	if _, err := store.Create("run-1", &RunInput{}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := store.SetStatus("run-1", RunStatusCancelled, ""); err != nil {
		t.Fatalf("SetStatus error: %v", err)
	}
	rec, err := store.SetStatus("run-1", RunStatusCompleted, "late")
	if err != nil {
		t.Fatalf("SetStatus error: %v", err)
	}
	if rec.Run.Status != RunStatusCancelled || rec.Run.Error != "" {
		t.Fatalf("expected cancelled run to stay cancelled, got %+v", rec.Run)
	}
}

func TestRunStoreSetReport(t *testing.T) {
	store := NewRunStore()
	if _, err := store.Create("run-1", &RunInput{}); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	report := &search.Report{Shards: 256}
	if err := store.SetReport("run-1", report); err != nil {
		t.Fatalf("SetReport error: %v", err)
	}
	rec, ok := store.Get("run-1")
	if !ok {
		t.Fatalf("expected run to exist")
	}
	if rec.Report == nil || rec.Report.Shards != 256 {
		t.Fatalf("expected report to be stored")
	}
	if err := store.SetReport("missing", report); err == nil {
		t.Fatalf("expected error for missing run")
	}
}

func TestRunStoreListFilterAndPaginate(t *testing.T) {
	store := NewRunStore()
	for i := 0; i < 10; i++ {
		if _, err := store.Create("", &RunInput{}); err != nil {
			t.Fatalf("Create error: %v", err)
		}
	}
	recs := store.List(3, 0, "")
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if got := store.List(50, 8, ""); len(got) != 2 {
		t.Fatalf("expected 2 records after offset 8, got %d", len(got))
	}
	if got := store.List(50, 20, ""); len(got) != 0 {
		t.Fatalf("expected no records past the end, got %d", len(got))
	}

	if _, err := store.SetStatus(recs[0].Run.ID, RunStatusFailed, "boom"); err != nil {
		t.Fatalf("SetStatus error: %v", err)
	}
	failed := store.List(0, 0, RunStatusFailed)
	if len(failed) != 1 || failed[0].Run.ID != recs[0].Run.ID {
		t.Fatalf("expected one failed run, got %d", len(failed))
	}
}

func TestParseRunStatus(t *testing.T) {
	tests := map[string]RunStatus{
		"running":   RunStatusRunning,
		"COMPLETED": RunStatusCompleted,
		"Cancelled": RunStatusCancelled,
		"bogus":     "",
		"":          "",
	}
	for in, want := range tests {
		if got := ParseRunStatus(in); got != want {
			t.Errorf("ParseRunStatus(%q) = %q, want %q", in, got, want)
		}
	}
}
