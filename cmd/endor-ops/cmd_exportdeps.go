package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/endorlabs-cs/endor-ops/pkg/export"
	"github.com/endorlabs-cs/endor-ops/pkg/logging"
)

var (
	exportDepsOutput string

	exportDepsCmd = &cobra.Command{
		Use:   "export-deps",
		Short: "Export the namespace's unique dependencies with usage counts to CSV",
		RunE:  runExportDeps,
	}
)

func init() {
	exportDepsCmd.Flags().StringVar(&exportDepsOutput, "output", "unique_dependencies.csv", "CSV output path")
	rootCmd.AddCommand(exportDepsCmd)
}

func runExportDeps(cmd *cobra.Command, args []string) error {
	ctx := runContext()
	client, err := newClient(ctx)
	if err != nil {
		return err
	}

	rows, err := export.UniqueDependencies(ctx, client)
	if err != nil {
		return err
	}

	f, err := os.Create(exportDepsOutput)
	if err != nil {
		return fmt.Errorf("creating %s: %w", exportDepsOutput, err)
	}
	defer f.Close()

	if err := export.WriteCSV(f, rows); err != nil {
		return err
	}

	logging.InfoContext(ctx, "dependencies exported",
		"count", len(rows), "path", exportDepsOutput)
	return nil
}
