package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/endorlabs-cs/endor-ops/pkg/endor"
	"github.com/endorlabs-cs/endor-ops/pkg/logging"
	"github.com/endorlabs-cs/endor-ops/pkg/projtags"
	"github.com/endorlabs-cs/endor-ops/pkg/watcher"
)

var (
	tagProjectsWatch bool

	tagProjectsCmd = &cobra.Command{
		Use:   "tag-projects <csv-file>",
		Short: "Apply tags to projects from a CSV of repository names and tag lists",
		Long: `Reads rows of "repo-name, tag1, tag2, ..." and merges the tags into each
project's existing tags. Bare repository names are prefixed with the
configured Git organization. With --watch the file is re-applied whenever
it changes on disk.`,
		Args: cobra.ExactArgs(1),
		RunE: runTagProjects,
	}
)

func init() {
	tagProjectsCmd.Flags().BoolVar(&tagProjectsWatch, "watch", false, "keep running and re-apply the CSV on change")
	tagProjectsCmd.Flags().String("git-org", "", "organization prefix for bare repository names")
	rootCmd.AddCommand(tagProjectsCmd)
}

func runTagProjects(cmd *cobra.Command, args []string) error {
	csvPath := args[0]

	ctx := runContext()
	client, err := newClient(ctx)
	if err != nil {
		return err
	}

	if err := applyProjectTags(ctx, client, csvPath); err != nil {
		return err
	}
	if !tagProjectsWatch {
		return nil
	}

	return watchProjectTags(ctx, client, csvPath)
}

func applyProjectTags(ctx context.Context, client *endor.Client, csvPath string) error {
	rows, err := projtags.ParseCSVFile(csvPath)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		logging.WarnContext(ctx, "no usable rows in CSV", "path", csvPath)
		return nil
	}

	stats := projtags.Apply(ctx, client, cfg.GitOrg, rows)
	logging.InfoContext(ctx, "project tagging complete",
		"updated", stats.Updated,
		"unchanged", stats.Unchanged,
		"notFound", stats.NotFound,
		"errors", stats.Errors)

	if stats.Errors > 0 {
		return fmt.Errorf("%d projects failed to update", stats.Errors)
	}
	return nil
}

func watchProjectTags(ctx context.Context, client *endor.Client, csvPath string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fw, err := watcher.NewFileWatcher(csvPath)
	if err != nil {
		return err
	}
	defer fw.Close()
	fw.Start(ctx)

	debouncer := watcher.NewDebouncer(fw.Events(), 500*time.Millisecond, 5*time.Second)
	debouncer.Start(ctx)

	logging.InfoContext(ctx, "watching for changes, press Ctrl-C to stop", "path", csvPath)

	for {
		select {
		case <-ctx.Done():
			logging.InfoContext(ctx, "stopping watch")
			return nil
		case _, ok := <-debouncer.Output():
			if !ok {
				return nil
			}
			// Each re-run gets its own run ID so its log lines group together.
			runCtx := logging.WithRunID(ctx, logging.NewRunID())
			logging.InfoContext(runCtx, "file changed, re-applying tags", "path", csvPath)
			if err := applyProjectTags(runCtx, client, csvPath); err != nil {
				logging.ErrorContext(runCtx, "re-apply failed", "error", err)
			}
		}
	}
}
