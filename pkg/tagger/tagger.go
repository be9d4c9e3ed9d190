// Package tagger applies dependency-depth tags to the vulnerability findings
// of one project or a whole namespace.
package tagger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/endorlabs-cs/endor-ops/pkg/depgraph"
	"github.com/endorlabs-cs/endor-ops/pkg/endor"
	"github.com/endorlabs-cs/endor-ops/pkg/logging"
	"github.com/endorlabs-cs/endor-ops/pkg/tags"
)

// Change statuses recorded in the audit log.
const (
	StatusWouldUpdate = "would_update"
	StatusUpdated     = "updated"
	StatusError       = "error"
	StatusSkipped     = "skipped"
)

// ChangeRecord is one audit row: what happened (or would happen) to one
// finding.
type ChangeRecord struct {
	FindingUUID        string
	ProjectUUID        string
	ProjectName        string
	PackageVersionUUID string
	PackageVersionName string
	TargetDependency   string
	Depth              *int // nil when the dependency is not in the graph
	Status             string
	Change             string
	CurrentTags        []string
	NewTags            []string
	FindingDescription string
}

// Stats accumulates the outcome of a run.
type Stats struct {
	Processed int
	Updated   int
	Errors    int
	// SkippedPackageVersions names package versions without a dependency
	// graph.
	SkippedPackageVersions []string
	Changes                []ChangeRecord
}

func (s *Stats) merge(other Stats) {
	s.Processed += other.Processed
	s.Updated += other.Updated
	s.Errors += other.Errors
	s.SkippedPackageVersions = append(s.SkippedPackageVersions, other.SkippedPackageVersions...)
	s.Changes = append(s.Changes, other.Changes...)
}

// Tagger drives depth tagging for one namespace.
type Tagger struct {
	client   *endor.Client
	testMode bool
	workers  int
}

// New creates a Tagger. In test mode no updates are sent; the audit log
// records what would change. Workers bounds the number of projects processed
// concurrently.
func New(client *endor.Client, testMode bool, workers int) *Tagger {
	if workers < 1 {
		workers = 1
	}
	return &Tagger{client: client, testMode: testMode, workers: workers}
}

// ProcessProject tags the findings of a single project.
func (t *Tagger) ProcessProject(ctx context.Context, projectUUID string) (Stats, error) {
	var stats Stats

	project, err := t.client.GetProject(ctx, projectUUID)
	if err != nil {
		return stats, fmt.Errorf("fetching project %s: %w", projectUUID, err)
	}
	if project == nil {
		return stats, fmt.Errorf("project %s not found", projectUUID)
	}

	logging.InfoContext(ctx, "processing project", "project", project.DisplayName())

	packageVersions, err := t.client.ListPackageVersions(ctx, projectUUID)
	if err != nil {
		return stats, fmt.Errorf("listing package versions of %s: %w", projectUUID, err)
	}

	// One findings listing for the whole project; grouped by parent package
	// version. Much cheaper than listing per package version.
	findings, err := t.client.ListVulnerabilityFindings(ctx, projectUUID)
	if err != nil {
		return stats, fmt.Errorf("listing findings of %s: %w", projectUUID, err)
	}
	logging.InfoContext(ctx, "fetched project data",
		"packageVersions", len(packageVersions), "findings", len(findings))

	findingsByPV := make(map[string][]endor.Finding)
	for _, finding := range findings {
		if parent := finding.Meta.ParentUUID; parent != "" {
			findingsByPV[parent] = append(findingsByPV[parent], finding)
		}
	}

	for i := range packageVersions {
		pv := &packageVersions[i]
		pvStats, skipped := t.processPackageVersion(ctx, pv, project, findingsByPV[pv.UUID])
		if skipped {
			stats.SkippedPackageVersions = append(stats.SkippedPackageVersions, pv.DisplayName())
			logging.DebugContext(ctx, "skipped package version without dependency graph",
				"packageVersion", pv.DisplayName())
			continue
		}
		stats.merge(pvStats)
	}

	sortChanges(stats.Changes)
	return stats, nil
}

// processPackageVersion reconciles depth tags for every finding of one
// package version. skipped is true when the package version carries no
// dependency graph.
func (t *Tagger) processPackageVersion(ctx context.Context, pv *endor.PackageVersion, project *endor.Project, findings []endor.Finding) (Stats, bool) {
	var stats Stats

	adjacency := pv.DependencyGraph()
	if len(adjacency) == 0 {
		return stats, true
	}

	graph := depgraph.FromAdjacency(adjacency)
	depths, fallback := graph.MinimumDepths()
	if fallback {
		logging.WarnContext(ctx, "no root dependencies found, treating all as depth 0",
			"packageVersion", pv.DisplayName(),
			"cyclicComponents", len(graph.CyclicComponents()))
	}

	for _, finding := range findings {
		target := finding.Spec.TargetDependencyPackageName

		var depth *int
		if d, known := depths[target]; known {
			depth = &d
		}

		newTags, changed, change := tags.Reconcile(finding.Meta.Tags, depth)

		record := ChangeRecord{
			FindingUUID:        finding.UUID,
			ProjectUUID:        project.UUID,
			ProjectName:        project.DisplayName(),
			PackageVersionUUID: pv.UUID,
			PackageVersionName: pv.DisplayName(),
			TargetDependency:   target,
			Depth:              depth,
			Change:             change,
			CurrentTags:        finding.Meta.Tags,
			NewTags:            newTags,
			FindingDescription: truncate(finding.Meta.Description, 60),
		}

		switch {
		case !changed:
			record.Status = StatusSkipped
		case t.testMode:
			record.Status = StatusWouldUpdate
		default:
			if err := t.client.UpdateFindingTags(ctx, finding.UUID, newTags); err != nil {
				logging.ErrorContext(ctx, "failed to update finding tags",
					"finding", finding.UUID, "error", err)
				record.Status = StatusError
				stats.Errors++
			} else {
				record.Status = StatusUpdated
				stats.Updated++
			}
		}

		stats.Changes = append(stats.Changes, record)
		stats.Processed++
	}

	return stats, false
}

// ProcessAllProjects tags the findings of every project in the namespace.
// Projects run on a bounded worker pool; one failing project is counted and
// logged without aborting its siblings.
func (t *Tagger) ProcessAllProjects(ctx context.Context) (Stats, error) {
	projects, err := t.client.ListProjects(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("listing projects: %w", err)
	}
	logging.InfoContext(ctx, "processing all projects", "count", len(projects))

	var (
		mu    sync.Mutex
		stats Stats
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(t.workers)
	for _, project := range projects {
		group.Go(func() error {
			projectStats, err := t.ProcessProject(groupCtx, project.UUID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logging.ErrorContext(groupCtx, "project failed", "project", project.UUID, "error", err)
				stats.Errors++
				return nil // keep siblings running
			}
			stats.merge(projectStats)
			return nil
		})
	}
	_ = group.Wait()

	sortChanges(stats.Changes)
	return stats, nil
}

// sortChanges orders the audit log by project, package version, and finding
// so output is stable regardless of worker scheduling.
func sortChanges(changes []ChangeRecord) {
	sort.Slice(changes, func(i, j int) bool {
		a, b := changes[i], changes[j]
		if a.ProjectName != b.ProjectName {
			return a.ProjectName < b.ProjectName
		}
		if a.PackageVersionName != b.PackageVersionName {
			return a.PackageVersionName < b.PackageVersionName
		}
		return a.FindingUUID < b.FindingUUID
	})
}

// truncate caps s at n bytes without splitting a multi-byte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
