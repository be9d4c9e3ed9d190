package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/endorlabs-cs/endor-ops/pkg/logging"
	"github.com/endorlabs-cs/endor-ops/pkg/tagger"
)

var (
	tagDepthProjectUUID string
	tagDepthAllProjects bool
	tagDepthTestMode    bool
	tagDepthOutput      string

	tagDepthCmd = &cobra.Command{
		Use:   "tag-depth",
		Short: "Tag vulnerability findings with their minimum dependency depth",
		Long: `Computes the minimum dependency depth of each finding's target dependency
from the package version's resolved dependency graph and reconciles a
dependency-depth:N tag on the finding. An audit CSV records every decision.`,
		RunE: runTagDepth,
	}
)

func init() {
	tagDepthCmd.Flags().StringVar(&tagDepthProjectUUID, "project-uuid", "", "process a single project")
	tagDepthCmd.Flags().BoolVar(&tagDepthAllProjects, "all-projects", false, "process every project in the namespace")
	tagDepthCmd.Flags().BoolVar(&tagDepthTestMode, "test", false, "report changes without applying them")
	tagDepthCmd.Flags().StringVar(&tagDepthOutput, "output", "", "audit CSV path (default: timestamped file in the working directory)")
	tagDepthCmd.Flags().Int("workers", 5, "concurrent projects when processing all projects")
	rootCmd.AddCommand(tagDepthCmd)
}

func runTagDepth(cmd *cobra.Command, args []string) error {
	if tagDepthProjectUUID == "" && !tagDepthAllProjects {
		return fmt.Errorf("either --project-uuid or --all-projects is required")
	}
	if tagDepthProjectUUID != "" && tagDepthAllProjects {
		return fmt.Errorf("--project-uuid and --all-projects are mutually exclusive")
	}

	ctx := runContext()
	client, err := newClient(ctx)
	if err != nil {
		return err
	}

	mode := "applying updates"
	if tagDepthTestMode {
		mode = "test mode, no updates will be applied"
	}
	logging.InfoContext(ctx, "starting depth tagging",
		"namespace", client.Namespace(), "mode", mode)

	t := tagger.New(client, tagDepthTestMode, cfg.Workers)

	var stats tagger.Stats
	if tagDepthAllProjects {
		stats, err = t.ProcessAllProjects(ctx)
	} else {
		stats, err = t.ProcessProject(ctx, tagDepthProjectUUID)
	}
	if err != nil {
		return err
	}

	outputPath := tagDepthOutput
	if outputPath == "" {
		suffix := "applied"
		if tagDepthTestMode {
			suffix = "test"
		}
		outputPath = fmt.Sprintf("dependency_depth_tags_%s_%s.csv",
			time.Now().Format("20060102_150405"), suffix)
	}
	if err := writeAuditCSV(outputPath, stats); err != nil {
		return err
	}

	tagger.PrintSummary(stats, tagDepthTestMode, outputPath)

	if stats.Errors > 0 {
		return fmt.Errorf("%d findings failed to update", stats.Errors)
	}
	return nil
}

func writeAuditCSV(path string, stats tagger.Stats) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating audit file %s: %w", path, err)
	}
	defer f.Close()

	w, err := tagger.NewAuditWriter(f)
	if err != nil {
		return err
	}
	return w.WriteAll(stats.Changes)
}
