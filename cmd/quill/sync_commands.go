package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"quill/internal/watch"
)

func newPullCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Fetch new and changed notes from the device",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, store, err := ctx.newPipeline()
			if err != nil {
				return err
			}
			defer store.Close()

			changes, err := p.Pull(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(changes) == 0 {
				fmt.Fprintln(out, "Corpus is up to date.")
				return nil
			}
			var notes []string
			for _, change := range changes {
				fmt.Fprintf(out, "%-8s %s\n", change.Kind, change.RelPath)
				if strings.EqualFold(filepath.Ext(change.LocalPath), ".note") {
					notes = append(notes, change.LocalPath)
				}
			}
			fmt.Fprintf(out, "%d file(s) updated.\n", len(changes))
			if len(notes) == 0 {
				return nil
			}
			images, err := p.Convert(cmd.Context(), notes)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Rasterized %d page(s).\n", len(images))
			return nil
		},
	}
}

// workSet turns positional file arguments into a stage work set. A nil work
// set means the whole corpus; --all forces that even when paths are given.
func workSet(args []string, everything bool) []string {
	if everything || len(args) == 0 {
		return nil
	}
	return args
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var everything bool

	cmd := &cobra.Command{
		Use:   "convert [note ...]",
		Short: "Rasterize note files into page images",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, store, err := ctx.newPipeline()
			if err != nil {
				return err
			}
			defer store.Close()

			images, err := p.Convert(cmd.Context(), workSet(args, everything))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rasterized %d page(s).\n", len(images))
			return nil
		},
	}
	cmd.Flags().BoolVar(&everything, "all", false, "Rasterize every note in the corpus")
	return cmd
}

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var everything bool

	cmd := &cobra.Command{
		Use:   "extract [image ...]",
		Short: "Extract text from page images",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, store, err := ctx.newPipeline()
			if err != nil {
				return err
			}
			defer store.Close()

			texts, err := p.Extract(cmd.Context(), workSet(args, everything))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d note page(s).\n", len(texts))
			return nil
		},
	}
	cmd.Flags().BoolVar(&everything, "all", false, "Extract every page image in the corpus")
	return cmd
}

func newAnnotateCommand(ctx *commandContext) *cobra.Command {
	var everything bool

	cmd := &cobra.Command{
		Use:   "annotate [text ...]",
		Short: "Add tags and keyword links to extracted notes",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, store, err := ctx.newPipeline()
			if err != nil {
				return err
			}
			defer store.Close()

			annotated, err := p.Annotate(cmd.Context(), workSet(args, everything))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Annotated %d note(s).\n", len(annotated))
			return nil
		},
	}
	cmd.Flags().BoolVar(&everything, "all", false, "Annotate every extracted note in the corpus")
	return cmd
}

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var everything bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run the full pipeline once",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, store, err := ctx.newPipeline()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := p.Sync(cmd.Context(), "manual", everything); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Sync complete.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&everything, "all", false, "Process the entire corpus instead of only changed files")
	return cmd
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll for the device and sync whenever it appears",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			p, store, err := ctx.newPipeline()
			if err != nil {
				return err
			}
			defer store.Close()

			monitor := watch.NewMonitor(cfg, func(syncCtx context.Context) error {
				return p.Sync(syncCtx, "watch", false)
			}, logger)

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := monitor.Start(runCtx); err != nil {
				return err
			}
			<-runCtx.Done()
			monitor.Stop()
			return nil
		},
	}
}
