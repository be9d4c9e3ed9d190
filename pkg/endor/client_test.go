package endor_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/endorlabs-cs/endor-ops/pkg/endor"
	"github.com/endorlabs-cs/endor-ops/pkg/endor/endortest"
)

func newClient(t *testing.T, srv *endortest.Server) *endor.Client {
	t.Helper()
	client, err := endor.NewClient(context.Background(), srv.Options())
	require.NoError(t, err)
	return client
}

func TestNewClient_ExchangesKeyForToken(t *testing.T) {
	srv := endortest.New("acme")
	defer srv.Close()

	opts := srv.Options()
	opts.Credentials = endor.Credentials{Key: "key", Secret: "secret"}

	client, err := endor.NewClient(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, "acme", client.Namespace())
}

func TestNewClient_MissingCredentials(t *testing.T) {
	srv := endortest.New("acme")
	defer srv.Close()

	opts := srv.Options()
	opts.Credentials = endor.Credentials{}

	_, err := endor.NewClient(context.Background(), opts)
	assert.Error(t, err)
}

func TestListProjects_Paginates(t *testing.T) {
	srv := endortest.New("acme")
	defer srv.Close()
	srv.PageSize = 2
	for i := 0; i < 5; i++ {
		srv.Projects = append(srv.Projects, endor.Project{UUID: fmt.Sprintf("p-%d", i)})
	}

	projects, err := newClient(t, srv).ListProjects(context.Background())
	require.NoError(t, err)
	assert.Len(t, projects, 5)
	assert.Equal(t, "p-4", projects[4].UUID)
}

func TestGetProject_MissingYieldsNil(t *testing.T) {
	srv := endortest.New("acme")
	defer srv.Close()

	project, err := newClient(t, srv).GetProject(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, project)
}

func TestFindProjectByFullName(t *testing.T) {
	srv := endortest.New("acme")
	defer srv.Close()
	srv.Projects = []endor.Project{
		{UUID: "p-1", Spec: endor.ProjectSpec{Git: &endor.GitSpec{FullName: "acme/api"}}},
		{UUID: "p-2", Spec: endor.ProjectSpec{Git: &endor.GitSpec{FullName: "acme/web"}}},
	}
	client := newClient(t, srv)

	project, err := client.FindProjectByFullName(context.Background(), "acme/web")
	require.NoError(t, err)
	require.NotNil(t, project)
	assert.Equal(t, "p-2", project.UUID)

	missing, err := client.FindProjectByFullName(context.Background(), "acme/gone")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListPackageVersions_FiltersByProject(t *testing.T) {
	srv := endortest.New("acme")
	defer srv.Close()
	srv.PackageVersionsByProject["p-1"] = []endor.PackageVersion{{UUID: "pv-1"}}
	srv.PackageVersionsByProject["p-2"] = []endor.PackageVersion{{UUID: "pv-2"}}

	pvs, err := newClient(t, srv).ListPackageVersions(context.Background(), "p-1")
	require.NoError(t, err)
	require.Len(t, pvs, 1)
	assert.Equal(t, "pv-1", pvs[0].UUID)
}

func TestGetFinding(t *testing.T) {
	srv := endortest.New("acme")
	defer srv.Close()
	srv.FindingsByProject["p-1"] = []endor.Finding{{
		UUID: "f-1",
		Meta: endor.Meta{ParentUUID: "pv-1"},
		Spec: endor.FindingSpec{TargetDependencyPackageName: "mvn://log4j"},
	}}
	client := newClient(t, srv)

	finding, err := client.GetFinding(context.Background(), "f-1")
	require.NoError(t, err)
	require.NotNil(t, finding)
	assert.Equal(t, "pv-1", finding.Meta.ParentUUID)
	assert.Equal(t, "mvn://log4j", finding.Spec.TargetDependencyPackageName)

	missing, err := client.GetFinding(context.Background(), "f-404")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdateFindingTags(t *testing.T) {
	srv := endortest.New("acme")
	defer srv.Close()
	client := newClient(t, srv)

	err := client.UpdateFindingTags(context.Background(), "f-1", []string{"foo", "dependency-depth:1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"foo", "dependency-depth:1"}, srv.TagUpdates["f-1"])
}

func TestUpdateFindingTags_EmptyListClearsTags(t *testing.T) {
	srv := endortest.New("acme")
	defer srv.Close()
	client := newClient(t, srv)

	require.NoError(t, client.UpdateFindingTags(context.Background(), "f-1", nil))
	tags, recorded := srv.TagUpdates["f-1"]
	assert.True(t, recorded)
	assert.Empty(t, tags)
}

func TestUpdateFindingTags_ServerError(t *testing.T) {
	srv := endortest.New("acme")
	defer srv.Close()
	srv.FailTagUpdates["f-1"] = true

	err := newClient(t, srv).UpdateFindingTags(context.Background(), "f-1", []string{"x"})
	assert.Error(t, err)
}

func TestListDependencyGroups(t *testing.T) {
	srv := endortest.New("acme")
	defer srv.Close()
	key := `[{"key":"meta.name","value":"pypi://urllib3@1.26.20"}]`
	group := endor.DependencyGroup{}
	group.AggregationCount.Count = 7
	srv.DependencyGroups[key] = group

	groups, err := newClient(t, srv).ListDependencyGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 7, groups[key].AggregationCount.Count)
}
