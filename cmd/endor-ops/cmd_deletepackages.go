package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/endorlabs-cs/endor-ops/pkg/cleanup"
	"github.com/endorlabs-cs/endor-ops/pkg/logging"
)

var (
	deleteOrphaned  bool
	deleteTestPaths bool
	deleteNoDryRun  bool

	deletePackagesCmd = &cobra.Command{
		Use:   "delete-packages",
		Short: "Delete stale package versions from the namespace",
		Long: `Finds package versions that are stale, either orphaned (their parent
project no longer exists) or scanned out of test directories, and deletes
them. Without --no-dry-run the candidates are only listed.`,
		RunE: runDeletePackages,
	}
)

func init() {
	deletePackagesCmd.Flags().BoolVar(&deleteOrphaned, "orphaned", false, "target package versions whose project is gone")
	deletePackagesCmd.Flags().BoolVar(&deleteTestPaths, "test-paths", false, "target package versions under test directories")
	deletePackagesCmd.Flags().BoolVar(&deleteNoDryRun, "no-dry-run", false, "actually delete instead of listing candidates")
	rootCmd.AddCommand(deletePackagesCmd)
}

func runDeletePackages(cmd *cobra.Command, args []string) error {
	if deleteOrphaned == deleteTestPaths {
		return fmt.Errorf("exactly one of --orphaned or --test-paths is required")
	}
	kind := cleanup.Orphaned
	if deleteTestPaths {
		kind = cleanup.TestPaths
	}

	ctx := runContext()
	client, err := newClient(ctx)
	if err != nil {
		return err
	}

	stale, err := cleanup.Find(ctx, client, kind)
	if err != nil {
		return err
	}
	logging.InfoContext(ctx, "found stale package versions",
		"kind", string(kind), "count", len(stale))
	for _, pv := range stale {
		logging.InfoContext(ctx, "candidate",
			"packageVersion", pv.UUID, "namespace", pv.Namespace,
			"project", pv.ProjectUUID, "relativePath", pv.RelativePath)
	}

	if !deleteNoDryRun {
		logging.InfoContext(ctx, "dry run, nothing deleted; pass --no-dry-run to delete")
		return nil
	}

	stats := cleanup.Delete(ctx, client, stale)
	logging.InfoContext(ctx, "deletion complete",
		"deleted", stats.Deleted, "errors", stats.Errors)
	if stats.Errors > 0 {
		return fmt.Errorf("%d package versions failed to delete", stats.Errors)
	}
	return nil
}
