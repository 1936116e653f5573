package pipeline_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodlib/ripple-engine/internal/datasource"
	"github.com/floodlib/ripple-engine/internal/pipeline"
	"github.com/floodlib/ripple-engine/internal/rasio"
	"github.com/floodlib/ripple-engine/internal/reachlayout"
	"github.com/floodlib/ripple-engine/internal/registry"
)

func writeReachGeoPackage(t *testing.T, root, reachID string, doc *rasio.GeoPackageDocument) reachlayout.ReachSubmodel {
	t.Helper()

	model := reachlayout.NewReachSubmodel(root, reachID)
	require.NoError(t, rasio.WriteGeoPackage(model.GeoPackage(), doc))

	return model
}

func TestCreateRasTerrain_Success(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	dir := t.TempDir()

	writeReachGeoPackage(t, dir, "1010", &rasio.GeoPackageDocument{
		CrossSections: []rasio.CrossSection{
			{ID: "xs-1", River: "Brazos", Reach: "1010", MinElevation: 10, MaxElevation: 25,
				Geometry: orb.LineString{{-96.05, 30.02}, {-95.95, 30.02}}},
		},
	})

	dem := &datasource.FakeDemProvider{Tile: &datasource.RasterTile{Resolution: 1, Units: "feet", Data: []byte("elevation-bytes")}}
	env := &registry.StageEnv{Context: context.Background(), DEM: dem}

	input, err := json.Marshal(pipeline.CreateRasTerrainInput{ReachRoot: dir, ReachID: "1010", Units: "feet"})
	require.NoError(t, err)

	out, err := pipeline.CreateRasTerrain(env, input)
	require.NoError(t, err)

	doc, ok := out.(*pipeline.TerrainAgreementDocument)
	require.True(t, ok)
	assert.Contains(t, doc.Summaries, "xs-1")

	model := reachlayout.NewReachSubmodel(dir, "1010")
	data, err := os.ReadFile(model.Terrain())
	require.NoError(t, err)
	assert.Equal(t, "elevation-bytes", string(data))
}

func TestCreateRasTerrain_OutOfBounds(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	dir := t.TempDir()

	writeReachGeoPackage(t, dir, "1010", &rasio.GeoPackageDocument{
		CrossSections: []rasio.CrossSection{
			{ID: "xs-1", MinElevation: 10, MaxElevation: 25, Geometry: orb.LineString{{-96.05, 30.02}, {-95.95, 30.02}}},
		},
	})

	dem := &datasource.FakeDemProvider{Err: datasource.ErrTerrainNotCovered}
	env := &registry.StageEnv{Context: context.Background(), DEM: dem}

	input, err := json.Marshal(pipeline.CreateRasTerrainInput{ReachRoot: dir, ReachID: "1010"})
	require.NoError(t, err)

	_, err = pipeline.CreateRasTerrain(env, input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TerrainOutOfBounds")
}
