package main

import (
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"quill/internal/journal"
)

// renderRunTable formats journal runs for the status command. Duration and
// change counts are right-aligned; everything else reads left to right.
func renderRunTable(runs []journal.Run) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Run", "Trigger", "Status", "Started", "Duration", "Changes", "Error"})

	for _, run := range runs {
		tw.AppendRow(table.Row{
			shortRunID(run.ID),
			run.Trigger,
			run.Status,
			run.StartedAt.Local().Format(time.DateTime),
			formatDuration(run),
			strconv.Itoa(run.Changes),
			run.ErrorMessage,
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 6, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(run journal.Run) string {
	if run.CompletedAt == nil {
		return "-"
	}
	return run.CompletedAt.Sub(run.StartedAt).Round(time.Second).String()
}
