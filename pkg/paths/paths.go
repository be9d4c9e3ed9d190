// Package paths produces the dependency-path report for one finding: every
// chain from a direct dependency down to the finding's target dependency,
// annotated with public/private visibility.
package paths

import (
	"context"
	"fmt"

	"github.com/endorlabs-cs/endor-ops/pkg/depgraph"
	"github.com/endorlabs-cs/endor-ops/pkg/endor"
	"github.com/endorlabs-cs/endor-ops/pkg/logging"
)

// Report maps a finding UUID to its dependency paths, target-first. It
// marshals to the same JSON document the reporting layer consumes.
type Report map[string][][]depgraph.PathStep

// ForFinding computes the dependency-path report for one finding. A target
// dependency that is absent from the graph yields an empty path list, not an
// error.
func ForFinding(ctx context.Context, client *endor.Client, findingUUID string) (Report, error) {
	finding, err := client.GetFinding(ctx, findingUUID)
	if err != nil {
		return nil, fmt.Errorf("fetching finding %s: %w", findingUUID, err)
	}
	if finding == nil {
		return nil, fmt.Errorf("finding %s not found", findingUUID)
	}

	target := finding.Spec.TargetDependencyPackageName
	parentUUID := finding.Meta.ParentUUID
	logging.DebugContext(ctx, "resolving dependency paths",
		"finding", findingUUID, "target", target, "packageVersion", parentUUID)

	pv, err := client.GetPackageVersion(ctx, parentUUID)
	if err != nil {
		return nil, fmt.Errorf("fetching package version %s: %w", parentUUID, err)
	}
	if pv == nil {
		return nil, fmt.Errorf("package version %s of finding %s not found", parentUUID, findingUUID)
	}

	graph := depgraph.FromAdjacency(pv.DependencyGraph())
	annotated := depgraph.AnnotatePaths(graph.AllPathsTo(target), pv.PublicByName())

	return Report{findingUUID: annotated}, nil
}
