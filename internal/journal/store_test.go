package journal

import (
	"context"
	"path/filepath"
	"testing"

	"quill/internal/reconcile"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRunRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	runID, err := store.StartRun(ctx, "watch")
	if err != nil {
		t.Fatal(err)
	}
	records := []reconcile.ChangeRecord{
		{RelPath: "Ideas.note", Kind: reconcile.Added, Fingerprint: "abc"},
		{RelPath: "Projects/Plan.note", Kind: reconcile.Updated, Fingerprint: "def"},
	}
	if err := store.RecordChanges(ctx, runID, records); err != nil {
		t.Fatal(err)
	}
	if err := store.CompleteRun(ctx, runID, ""); err != nil {
		t.Fatal(err)
	}

	runs, err := store.RecentRuns(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.ID != runID || run.Status != StatusCompleted || run.Trigger != "watch" {
		t.Fatalf("unexpected run: %+v", run)
	}
	if run.Changes != 2 {
		t.Fatalf("expected 2 recorded changes, got %d", run.Changes)
	}
	if run.CompletedAt == nil || run.CompletedAt.Before(run.StartedAt) {
		t.Fatalf("completion timestamp not recorded: %+v", run)
	}

	changes, err := store.ChangesForRun(ctx, runID)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 2 || changes[0].RelPath != "Ideas.note" || changes[1].Kind != string(reconcile.Updated) {
		t.Fatalf("unexpected changes: %+v", changes)
	}
}

func TestFailedRunRecordsError(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	runID, err := store.StartRun(ctx, "sync")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.CompleteRun(ctx, runID, "device unreachable"); err != nil {
		t.Fatal(err)
	}

	runs, err := store.RecentRuns(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if runs[0].Status != StatusFailed || runs[0].ErrorMessage != "device unreachable" {
		t.Fatalf("failure not recorded: %+v", runs[0])
	}
}

func TestReopenExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	store, err := OpenPath(path)
	if err != nil {
		t.Fatal(err)
	}
	runID, err := store.StartRun(context.Background(), "manual")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenPath(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	runs, err := reopened.RecentRuns(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != runID {
		t.Fatalf("run lost across reopen: %+v", runs)
	}
}
