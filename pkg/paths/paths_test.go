package paths_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/endorlabs-cs/endor-ops/pkg/depgraph"
	"github.com/endorlabs-cs/endor-ops/pkg/endor"
	"github.com/endorlabs-cs/endor-ops/pkg/endor/endortest"
	"github.com/endorlabs-cs/endor-ops/pkg/paths"
)

func seed(srv *endortest.Server, target string) {
	srv.PackageVersionsByProject["p-1"] = []endor.PackageVersion{{
		UUID: "pv-1",
		Spec: endor.PackageVersionSpec{
			ResolvedDependencies: &endor.ResolvedDependencies{
				Dependencies: []endor.DeclaredDependency{
					{Name: "mvn://a", Public: true},
					{Name: "mvn://x", Public: false},
				},
				DependencyGraph: endor.Adjacency{
					"mvn://a": {"mvn://b"},
					"mvn://b": {"mvn://c"},
					"mvn://x": {"mvn://c"},
				},
			},
		},
	}}
	srv.FindingsByProject["p-1"] = []endor.Finding{{
		UUID: "f-1",
		Meta: endor.Meta{ParentUUID: "pv-1"},
		Spec: endor.FindingSpec{TargetDependencyPackageName: target},
	}}
}

func TestForFinding(t *testing.T) {
	srv := endortest.New("acme")
	defer srv.Close()
	seed(srv, "mvn://c")

	client, err := endor.NewClient(context.Background(), srv.Options())
	require.NoError(t, err)

	report, err := paths.ForFinding(context.Background(), client, "f-1")
	require.NoError(t, err)

	found := report["f-1"]
	require.Len(t, found, 2)

	// Target-first order, with public flags from the declared dependency
	// records: roots a (public) and x (private), everything else private.
	expected := [][]depgraph.PathStep{
		{
			{DependencyName: "mvn://c"},
			{DependencyName: "mvn://b"},
			{DependencyName: "mvn://a", Public: true},
		},
		{
			{DependencyName: "mvn://c"},
			{DependencyName: "mvn://x"},
		},
	}
	assert.ElementsMatch(t, expected, found)
}

func TestForFinding_TargetNotInGraph(t *testing.T) {
	srv := endortest.New("acme")
	defer srv.Close()
	seed(srv, "mvn://ghost")

	client, err := endor.NewClient(context.Background(), srv.Options())
	require.NoError(t, err)

	report, err := paths.ForFinding(context.Background(), client, "f-1")
	require.NoError(t, err)
	assert.Empty(t, report["f-1"])
}

func TestForFinding_UnknownFinding(t *testing.T) {
	srv := endortest.New("acme")
	defer srv.Close()

	client, err := endor.NewClient(context.Background(), srv.Options())
	require.NoError(t, err)

	_, err = paths.ForFinding(context.Background(), client, "f-404")
	assert.Error(t, err)
}
