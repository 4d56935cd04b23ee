package main

import (
	"strings"
	"testing"
	"time"

	"quill/internal/journal"
)

func TestRenderRunTable(t *testing.T) {
	started := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	completed := started.Add(42 * time.Second)
	runs := []journal.Run{
		{
			ID:          "0a1b2c3d-4e5f-6789-abcd-ef0123456789",
			Trigger:     "watch",
			Status:      "completed",
			StartedAt:   started,
			CompletedAt: &completed,
			Changes:     3,
		},
		{
			ID:        "ffffffff-0000-1111-2222-333333333333",
			Trigger:   "manual",
			Status:    "running",
			StartedAt: started,
		},
	}

	out := renderRunTable(runs)
	for _, want := range []string{"Run", "Trigger", "Duration", "0a1b2c3d", "watch", "42s", "manual"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "0a1b2c3d-4e5f") {
		t.Fatalf("run id not shortened:\n%s", out)
	}
}

func TestFormatDurationOpenRun(t *testing.T) {
	if got := formatDuration(journal.Run{StartedAt: time.Now()}); got != "-" {
		t.Fatalf("open run duration = %q, want -", got)
	}
}
