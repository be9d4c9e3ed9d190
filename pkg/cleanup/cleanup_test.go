package cleanup_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/endorlabs-cs/endor-ops/pkg/cleanup"
	"github.com/endorlabs-cs/endor-ops/pkg/endor"
	"github.com/endorlabs-cs/endor-ops/pkg/endor/endortest"
)

// seedServer populates the fake with one live project owning two package
// versions (one under a test path), and one package version whose project
// is gone.
func seedServer(t *testing.T) (*endortest.Server, *endor.Client) {
	t.Helper()

	srv := endortest.New("acme")
	t.Cleanup(srv.Close)

	srv.Projects = []endor.Project{{UUID: "p-live"}}
	srv.PackageVersionsByProject["p-live"] = []endor.PackageVersion{
		{
			UUID: "pv-owned",
			Spec: endor.PackageVersionSpec{ProjectUUID: "p-live", RelativePath: "services/api"},
		},
		{
			UUID: "pv-testdir",
			Spec: endor.PackageVersionSpec{ProjectUUID: "p-live", RelativePath: "services/api/testdata/fixtures"},
		},
	}
	srv.PackageVersionsByProject["p-gone"] = []endor.PackageVersion{
		{
			UUID: "pv-orphan",
			Spec: endor.PackageVersionSpec{ProjectUUID: "p-gone", RelativePath: "lib/core"},
		},
	}

	client, err := endor.NewClient(context.Background(), srv.Options())
	require.NoError(t, err)
	return srv, client
}

func TestFind_Orphaned(t *testing.T) {
	_, client := seedServer(t)

	stale, err := cleanup.Find(context.Background(), client, cleanup.Orphaned)
	require.NoError(t, err)

	require.Len(t, stale, 1)
	assert.Equal(t, "pv-orphan", stale[0].UUID)
	assert.Equal(t, "acme", stale[0].Namespace)
	assert.Equal(t, "p-gone", stale[0].ProjectUUID)
}

func TestFind_TestPaths(t *testing.T) {
	_, client := seedServer(t)

	stale, err := cleanup.Find(context.Background(), client, cleanup.TestPaths)
	require.NoError(t, err)

	require.Len(t, stale, 1)
	assert.Equal(t, "pv-testdir", stale[0].UUID)
	assert.Equal(t, "services/api/testdata/fixtures", stale[0].RelativePath)
}

func TestFind_UnknownKind(t *testing.T) {
	_, client := seedServer(t)

	_, err := cleanup.Find(context.Background(), client, cleanup.Kind("bogus"))
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	srv, client := seedServer(t)

	stale := []endor.StalePackageVersion{
		{UUID: "pv-orphan", Namespace: "acme"},
		{UUID: "pv-testdir", Namespace: "acme"},
	}
	stats := cleanup.Delete(context.Background(), client, stale)

	assert.Equal(t, 2, stats.Deleted)
	assert.Equal(t, 0, stats.Errors)
	assert.Equal(t, []string{"pv-orphan", "pv-testdir"}, srv.DeletedPackageVersions)
}

func TestDelete_FailureCountedNotFatal(t *testing.T) {
	srv, client := seedServer(t)
	srv.FailDeletes["pv-orphan"] = true

	stale := []endor.StalePackageVersion{
		{UUID: "pv-orphan", Namespace: "acme"},
		{UUID: "pv-testdir", Namespace: "acme"},
	}
	stats := cleanup.Delete(context.Background(), client, stale)

	assert.Equal(t, 1, stats.Deleted)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, []string{"pv-testdir"}, srv.DeletedPackageVersions)
}
