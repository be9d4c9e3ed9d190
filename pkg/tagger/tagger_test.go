package tagger_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/endorlabs-cs/endor-ops/pkg/endor"
	"github.com/endorlabs-cs/endor-ops/pkg/endor/endortest"
	"github.com/endorlabs-cs/endor-ops/pkg/tagger"
)

// seedProject populates the fake with one project whose package version has
// the dependency graph A -> B -> C and three findings: one already tagged
// correctly, one tagged wrong, one untagged.
func seedProject(srv *endortest.Server) {
	srv.Projects = append(srv.Projects, endor.Project{
		UUID: "p-1",
		Meta: endor.Meta{Name: "payments"},
	})
	srv.PackageVersionsByProject["p-1"] = []endor.PackageVersion{{
		UUID: "pv-1",
		Meta: endor.Meta{Name: "mvn://payments@1.0"},
		Spec: endor.PackageVersionSpec{
			ResolvedDependencies: &endor.ResolvedDependencies{
				DependencyGraph: endor.Adjacency{
					"mvn://a": {"mvn://b"},
					"mvn://b": {"mvn://c"},
				},
			},
		},
	}}
	srv.FindingsByProject["p-1"] = []endor.Finding{
		{
			UUID: "f-correct",
			Meta: endor.Meta{ParentUUID: "pv-1", Tags: []string{"dependency-depth:0"}},
			Spec: endor.FindingSpec{TargetDependencyPackageName: "mvn://a"},
		},
		{
			UUID: "f-wrong",
			Meta: endor.Meta{ParentUUID: "pv-1", Tags: []string{"sev:high", "dependency-depth:9"}},
			Spec: endor.FindingSpec{TargetDependencyPackageName: "mvn://c"},
		},
		{
			UUID: "f-untagged",
			Meta: endor.Meta{ParentUUID: "pv-1"},
			Spec: endor.FindingSpec{TargetDependencyPackageName: "mvn://b"},
		},
	}
}

func newClient(t *testing.T, srv *endortest.Server) *endor.Client {
	t.Helper()
	client, err := endor.NewClient(context.Background(), srv.Options())
	require.NoError(t, err)
	return client
}

func statusByFinding(stats tagger.Stats) map[string]string {
	statuses := make(map[string]string)
	for _, change := range stats.Changes {
		statuses[change.FindingUUID] = change.Status
	}
	return statuses
}

func TestProcessProject_TestModeMakesNoCalls(t *testing.T) {
	srv := endortest.New("acme")
	defer srv.Close()
	seedProject(srv)

	stats, err := tagger.New(newClient(t, srv), true, 1).ProcessProject(context.Background(), "p-1")
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 0, stats.Updated)
	assert.Empty(t, srv.TagUpdates, "test mode must not PATCH anything")

	statuses := statusByFinding(stats)
	assert.Equal(t, tagger.StatusSkipped, statuses["f-correct"])
	assert.Equal(t, tagger.StatusWouldUpdate, statuses["f-wrong"])
	assert.Equal(t, tagger.StatusWouldUpdate, statuses["f-untagged"])
}

func TestProcessProject_LiveModeAppliesUpdates(t *testing.T) {
	srv := endortest.New("acme")
	defer srv.Close()
	seedProject(srv)

	stats, err := tagger.New(newClient(t, srv), false, 1).ProcessProject(context.Background(), "p-1")
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Updated)
	assert.Equal(t, 0, stats.Errors)
	assert.Equal(t, []string{"sev:high", "dependency-depth:2"}, srv.TagUpdates["f-wrong"])
	assert.Equal(t, []string{"dependency-depth:1"}, srv.TagUpdates["f-untagged"])
	_, touched := srv.TagUpdates["f-correct"]
	assert.False(t, touched, "correctly tagged finding must not be PATCHed")
}

func TestProcessProject_UnknownDependencyRemovesTag(t *testing.T) {
	srv := endortest.New("acme")
	defer srv.Close()
	seedProject(srv)
	srv.FindingsByProject["p-1"] = append(srv.FindingsByProject["p-1"], endor.Finding{
		UUID: "f-unknown",
		Meta: endor.Meta{ParentUUID: "pv-1", Tags: []string{"keep", "dependency-depth:4"}},
		Spec: endor.FindingSpec{TargetDependencyPackageName: "mvn://not-in-graph"},
	})

	stats, err := tagger.New(newClient(t, srv), false, 1).ProcessProject(context.Background(), "p-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"keep"}, srv.TagUpdates["f-unknown"])
	for _, change := range stats.Changes {
		if change.FindingUUID == "f-unknown" {
			assert.Nil(t, change.Depth)
		}
	}
}

func TestProcessProject_UpdateFailureCountedNotFatal(t *testing.T) {
	srv := endortest.New("acme")
	defer srv.Close()
	seedProject(srv)
	srv.FailTagUpdates["f-wrong"] = true

	stats, err := tagger.New(newClient(t, srv), false, 1).ProcessProject(context.Background(), "p-1")
	require.NoError(t, err, "one failing update must not abort the run")

	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, tagger.StatusError, statusByFinding(stats)["f-wrong"])
}

func TestProcessProject_SkipsPackageVersionWithoutGraph(t *testing.T) {
	srv := endortest.New("acme")
	defer srv.Close()
	seedProject(srv)
	srv.PackageVersionsByProject["p-1"] = append(srv.PackageVersionsByProject["p-1"], endor.PackageVersion{
		UUID: "pv-bare",
		Meta: endor.Meta{Name: "mvn://bare@1.0"},
	})

	stats, err := tagger.New(newClient(t, srv), true, 1).ProcessProject(context.Background(), "p-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"mvn://bare@1.0"}, stats.SkippedPackageVersions)
}

func TestProcessProject_MissingProject(t *testing.T) {
	srv := endortest.New("acme")
	defer srv.Close()

	_, err := tagger.New(newClient(t, srv), true, 1).ProcessProject(context.Background(), "ghost")
	assert.Error(t, err)
}

func TestProcessAllProjects_MergesAcrossWorkers(t *testing.T) {
	srv := endortest.New("acme")
	defer srv.Close()
	seedProject(srv)
	srv.Projects = append(srv.Projects, endor.Project{UUID: "p-2", Meta: endor.Meta{Name: "web"}})
	srv.PackageVersionsByProject["p-2"] = []endor.PackageVersion{{
		UUID: "pv-2",
		Spec: endor.PackageVersionSpec{
			ResolvedDependencies: &endor.ResolvedDependencies{
				DependencyGraph: endor.Adjacency{"npm://x": {"npm://y"}},
			},
		},
	}}
	srv.FindingsByProject["p-2"] = []endor.Finding{{
		UUID: "f-web",
		Meta: endor.Meta{ParentUUID: "pv-2"},
		Spec: endor.FindingSpec{TargetDependencyPackageName: "npm://y"},
	}}

	stats, err := tagger.New(newClient(t, srv), true, 4).ProcessAllProjects(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Processed)
	// Audit log is sorted by project name regardless of worker order.
	assert.Equal(t, "payments", stats.Changes[0].ProjectName)
	assert.Equal(t, "web", stats.Changes[len(stats.Changes)-1].ProjectName)
}

func TestAuditWriter(t *testing.T) {
	var buf bytes.Buffer
	writer, err := tagger.NewAuditWriter(&buf)
	require.NoError(t, err)

	depth := 2
	require.NoError(t, writer.WriteAll([]tagger.ChangeRecord{
		{
			FindingUUID:      "f-1",
			ProjectName:      "payments",
			TargetDependency: "mvn://c",
			Depth:            &depth,
			Status:           tagger.StatusUpdated,
			CurrentTags:      []string{"a", "b"},
			NewTags:          []string{"a", "b", "dependency-depth:2"},
		},
		{FindingUUID: "f-2", Status: tagger.StatusSkipped},
	}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "finding_uuid", rows[0][0])
	assert.Equal(t, "2", rows[1][6])
	assert.Equal(t, "a;b", rows[1][9])
	assert.Equal(t, "unknown", rows[2][6], "nil depth renders as unknown")
}
