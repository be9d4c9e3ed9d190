// Package cleanup deletes stale package versions: orphaned ones whose parent
// project is gone, and ones scanned out of test directories.
package cleanup

import (
	"context"
	"fmt"
	"sort"

	"github.com/endorlabs-cs/endor-ops/pkg/endor"
	"github.com/endorlabs-cs/endor-ops/pkg/logging"
)

// Kind selects which stale package versions to target.
type Kind string

const (
	// Orphaned targets package versions whose parent project no longer
	// exists.
	Orphaned Kind = "orphaned"
	// TestPaths targets package versions whose relative path looks like a
	// test directory.
	TestPaths Kind = "test-paths"
)

// Stats summarizes a deletion run.
type Stats struct {
	Deleted int
	Errors  int
}

// Find lists the stale package versions of the given kind, sorted by UUID
// for stable output.
func Find(ctx context.Context, client *endor.Client, kind Kind) ([]endor.StalePackageVersion, error) {
	var (
		stale []endor.StalePackageVersion
		err   error
	)
	switch kind {
	case Orphaned:
		stale, err = client.ListOrphanedPackageVersions(ctx)
	case TestPaths:
		stale, err = client.ListTestPackageVersions(ctx)
	default:
		return nil, fmt.Errorf("unknown cleanup kind %q", kind)
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(stale, func(i, j int) bool { return stale[i].UUID < stale[j].UUID })
	return stale, nil
}

// Delete removes the given package versions one by one. A failed delete is
// logged and counted; the remaining deletions proceed.
func Delete(ctx context.Context, client *endor.Client, stale []endor.StalePackageVersion) Stats {
	var stats Stats
	for _, pv := range stale {
		if err := client.DeletePackageVersion(ctx, pv.Namespace, pv.UUID); err != nil {
			logging.ErrorContext(ctx, "failed to delete package version",
				"packageVersion", pv.UUID, "namespace", pv.Namespace, "error", err)
			stats.Errors++
			continue
		}
		logging.InfoContext(ctx, "deleted package version",
			"packageVersion", pv.UUID, "namespace", pv.Namespace)
		stats.Deleted++
	}
	return stats
}
