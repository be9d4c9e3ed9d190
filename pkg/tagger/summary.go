package tagger

import (
	"fmt"

	"github.com/fatih/color"
)

const detailLimit = 50

// PrintSummary prints a colorized summary of a tagging run to stdout.
func PrintSummary(stats Stats, testMode bool, outputPath string) {
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	fmt.Println()
	if testMode {
		yellow.Println("TEST MODE - No changes were made")
	}
	bold.Println("Dependency Depth Tagging - Summary")
	bold.Println("==================================")

	var wouldUpdate, updated, errored, alreadyCorrect, depthUnknown []ChangeRecord
	for _, change := range stats.Changes {
		switch {
		case change.Status == StatusWouldUpdate:
			wouldUpdate = append(wouldUpdate, change)
		case change.Status == StatusUpdated:
			updated = append(updated, change)
		case change.Status == StatusError:
			errored = append(errored, change)
		case change.Status == StatusSkipped && change.Depth != nil:
			alreadyCorrect = append(alreadyCorrect, change)
		}
		if change.Depth == nil {
			depthUnknown = append(depthUnknown, change)
		}
	}

	fmt.Printf("Findings processed: %d\n", stats.Processed)
	if testMode {
		fmt.Printf("Would update: %d\n", len(wouldUpdate))
	} else {
		green.Printf("Updated: %d\n", len(updated))
	}
	fmt.Printf("Already correct (skipped): %d\n", len(alreadyCorrect))
	if stats.Errors > 0 {
		red.Printf("Errors: %d\n", stats.Errors)
	} else {
		fmt.Printf("Errors: 0\n")
	}
	fmt.Printf("Depth unknown (dependency not in graph): %d\n", len(depthUnknown))
	if len(stats.SkippedPackageVersions) > 0 {
		fmt.Printf("Package versions skipped (no dependency graph): %d\n", len(stats.SkippedPackageVersions))
	}

	changes := updated
	header := "Applied changes:"
	if testMode {
		changes = wouldUpdate
		header = "Planned changes:"
	}
	if len(changes) > 0 {
		fmt.Println()
		bold.Println(header)
		for i, change := range changes {
			if i == detailLimit {
				fmt.Printf("  ... and %d more\n", len(changes)-detailLimit)
				break
			}
			fmt.Printf("  %s\n", change.FindingUUID)
			fmt.Printf("    project:    %s\n", change.ProjectName)
			fmt.Printf("    dependency: %s\n", change.TargetDependency)
			fmt.Printf("    change:     %s\n", change.Change)
		}
	}

	if len(errored) > 0 {
		fmt.Println()
		red.Println("Errors:")
		for _, change := range errored {
			fmt.Printf("  %s - %s\n", change.FindingUUID, change.Change)
		}
	}

	if outputPath != "" {
		fmt.Println()
		fmt.Printf("Complete results written to: %s\n", outputPath)
	}
}
