package projtags

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/endorlabs-cs/endor-ops/pkg/endor"
	"github.com/endorlabs-cs/endor-ops/pkg/endor/endortest"
)

func TestParseCSV(t *testing.T) {
	input := strings.Join([]string{
		`repo-a,"team:payments, pci scope"`,
		`repo-b,critical`,
		`only-one-field`,
		`,orphan-tag`,
		`repo-c,"  , "`,
	}, "\n")

	rows, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "repo-a", rows[0].ProjectName)
	assert.Equal(t, []string{"team:payments", "pci_scope"}, rows[0].Tags)
	assert.Equal(t, "repo-b", rows[1].ProjectName)
	assert.Equal(t, []string{"critical"}, rows[1].Tags)
}

func TestApplyMergesTags(t *testing.T) {
	srv := endortest.New("acme")
	defer srv.Close()
	srv.Projects = []endor.Project{
		{
			UUID: "p1",
			Meta: endor.Meta{Tags: []string{"existing"}},
			Spec: endor.ProjectSpec{Git: &endor.GitSpec{FullName: "acme-org/repo-a"}},
		},
		{
			UUID: "p2",
			Meta: endor.Meta{Tags: []string{"critical"}},
			Spec: endor.ProjectSpec{Git: &endor.GitSpec{FullName: "acme-org/repo-b"}},
		},
	}

	client, err := endor.NewClient(context.Background(), srv.Options())
	require.NoError(t, err)

	stats := Apply(context.Background(), client, "acme-org", []Row{
		{ProjectName: "repo-a", Tags: []string{"critical", "existing"}},
		{ProjectName: "repo-b", Tags: []string{"critical"}},
		{ProjectName: "repo-gone", Tags: []string{"critical"}},
	})

	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 1, stats.Unchanged)
	assert.Equal(t, 1, stats.NotFound)
	assert.Equal(t, 0, stats.Errors)

	assert.Equal(t, []string{"critical", "existing"}, srv.TagUpdates["p1"])
	_, patched := srv.TagUpdates["p2"]
	assert.False(t, patched, "unchanged project should not be patched")
}

func TestApplyFullNamePassthrough(t *testing.T) {
	srv := endortest.New("acme")
	defer srv.Close()
	srv.Projects = []endor.Project{
		{
			UUID: "p1",
			Spec: endor.ProjectSpec{Git: &endor.GitSpec{FullName: "other-org/repo"}},
		},
	}

	client, err := endor.NewClient(context.Background(), srv.Options())
	require.NoError(t, err)

	// A name that already carries an org must not be prefixed again.
	stats := Apply(context.Background(), client, "acme-org", []Row{
		{ProjectName: "other-org/repo", Tags: []string{"imported"}},
	})

	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, []string{"imported"}, srv.TagUpdates["p1"])
}

func TestApplyCountsUpdateFailures(t *testing.T) {
	srv := endortest.New("acme")
	defer srv.Close()
	srv.Projects = []endor.Project{
		{
			UUID: "p1",
			Spec: endor.ProjectSpec{Git: &endor.GitSpec{FullName: "acme-org/repo-a"}},
		},
	}
	srv.FailTagUpdates["p1"] = true

	client, err := endor.NewClient(context.Background(), srv.Options())
	require.NoError(t, err)

	stats := Apply(context.Background(), client, "acme-org", []Row{
		{ProjectName: "repo-a", Tags: []string{"critical"}},
	})

	assert.Equal(t, 0, stats.Updated)
	assert.Equal(t, 1, stats.Errors)
}
