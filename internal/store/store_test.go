package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/presim/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "journal", "presim.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func seed(t *testing.T, st *Store) {
	t.Helper()
	base := time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)
	recs := []model.ActionRecord{
		{Action: "train", IssuedAt: base, OK: true, DurationMs: 1200},
		{Action: "start", IssuedAt: base.Add(time.Minute), OK: true, DurationMs: 30},
		{Action: "step", IssuedAt: base.Add(2 * time.Minute), OK: false, Error: "not running", DurationMs: 12},
		{Action: "step", IssuedAt: base.Add(3 * time.Minute), OK: true, DurationMs: 15},
	}
	for _, rec := range recs {
		if _, err := st.InsertAction(context.Background(), rec); err != nil {
			t.Fatalf("insert action: %v", err)
		}
	}
}

func TestListActionsOldestFirst(t *testing.T) {
	st := openTestStore(t)
	seed(t, st)

	recs, err := st.ListActions(context.Background(), model.HistoryFilter{})
	if err != nil {
		t.Fatalf("list actions: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("expected 4 records, got %d", len(recs))
	}
	if recs[0].Action != "train" || recs[3].Action != "step" {
		t.Fatalf("unexpected order: %+v", recs)
	}
	if recs[2].OK || recs[2].Error != "not running" {
		t.Fatalf("expected failed step, got %+v", recs[2])
	}
	if !recs[0].IssuedAt.Equal(time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time: %v", recs[0].IssuedAt)
	}
}

func TestListActionsFilters(t *testing.T) {
	st := openTestStore(t)
	seed(t, st)
	ctx := context.Background()

	recs, err := st.ListActions(ctx, model.HistoryFilter{Last: 2})
	if err != nil {
		t.Fatalf("list actions: %v", err)
	}
	if len(recs) != 2 || recs[0].Action != "step" || !recs[1].OK {
		t.Fatalf("unexpected last records: %+v", recs)
	}

	recs, err = st.ListActions(ctx, model.HistoryFilter{Action: "step"})
	if err != nil {
		t.Fatalf("list actions: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 step records, got %d", len(recs))
	}

	since := time.Date(2024, 1, 1, 18, 1, 0, 0, time.UTC)
	recs, err = st.ListActions(ctx, model.HistoryFilter{Since: &since})
	if err != nil {
		t.Fatalf("list actions: %v", err)
	}
	if len(recs) != 3 || recs[0].Action != "start" {
		t.Fatalf("unexpected since records: %+v", recs)
	}
}

func TestSummarizeActions(t *testing.T) {
	st := openTestStore(t)
	seed(t, st)

	sums, err := st.SummarizeActions(context.Background(), model.HistoryFilter{})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if len(sums) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(sums))
	}
	step := sums[1]
	if step.Action != "step" || step.Total != 2 || step.Failures != 1 {
		t.Fatalf("unexpected step summary: %+v", step)
	}
	if !step.LastAt.Equal(time.Date(2024, 1, 1, 18, 3, 0, 0, time.UTC)) {
		t.Fatalf("unexpected last time: %v", step.LastAt)
	}
}
