package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/endorlabs-cs/endor-ops/pkg/paths"
)

var (
	depPathsOutput string

	depPathsCmd = &cobra.Command{
		Use:   "dep-paths <finding-uuid>",
		Short: "Print every dependency path leading to a finding's target dependency",
		Args:  cobra.ExactArgs(1),
		RunE:  runDepPaths,
	}
)

func init() {
	depPathsCmd.Flags().StringVar(&depPathsOutput, "output", "", "write the JSON report to a file instead of stdout")
	rootCmd.AddCommand(depPathsCmd)
}

func runDepPaths(cmd *cobra.Command, args []string) error {
	ctx := runContext()
	client, err := newClient(ctx)
	if err != nil {
		return err
	}

	report, err := paths.ForFinding(ctx, client, args[0])
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	out = append(out, '\n')

	if depPathsOutput != "" {
		return os.WriteFile(depPathsOutput, out, 0o644)
	}
	_, err = os.Stdout.Write(out)
	return err
}
