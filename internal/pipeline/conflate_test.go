package pipeline_test

import (
	"context"
	"encoding/json"
	"path/filepath"
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

func writeGeoPackage(t *testing.T, dir string, doc *rasio.GeoPackageDocument) reachlayout.SourceModel {
	t.Helper()

	model := reachlayout.NewSourceModel(dir, filepath.Base(dir))
	require.NoError(t, rasio.WriteGeoPackage(model.GeoPackage(), doc))

	return model
}

func TestConflateModel_MarksDownstreamReachEclipsed(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	dir := t.TempDir()

	doc := &rasio.GeoPackageDocument{
		CRS:        "EPSG:4326",
		Centerline: orb.LineString{{-96, 30}, {-96, 30.3}},
		CrossSections: []rasio.CrossSection{
			{ID: "xs-1", River: "Brazos", Reach: "1010", Station: 100, MinElevation: 10, MaxElevation: 20,
				Geometry: orb.LineString{{-96.05, 30.02}, {-95.95, 30.02}}},
			{ID: "xs-2", River: "Brazos", Reach: "1010", Station: 200, MinElevation: 11, MaxElevation: 21,
				Geometry: orb.LineString{{-96.05, 30.1}, {-95.95, 30.1}}},
		},
	}
	writeGeoPackage(t, dir, doc)

	network := &datasource.FakeNetworkProvider{
		Reaches: []datasource.Reach{
			{
				ID:                "1010",
				ToID:              "1020",
				Geometry:          orb.LineString{{-96, 30}, {-96, 30.15}},
				HighFlowThreshold: 1000,
				HundredYearFlow:   5000,
			},
			{
				ID:                "1020",
				ToID:              "",
				Geometry:          orb.LineString{{-96, 30.15}, {-96, 30.3}},
				HighFlowThreshold: 1200,
				HundredYearFlow:   6000,
			},
		},
	}

	env := &registry.StageEnv{Context: context.Background(), Network: network}

	input, err := json.Marshal(pipeline.ConflateModelInput{SourceDir: dir, ReferenceNetwork: "nhdplus-hr"})
	require.NoError(t, err)

	out, err := pipeline.ConflateModel(env, input)
	require.NoError(t, err)

	result, ok := out.(*pipeline.ConflationDocument)
	require.True(t, ok)

	upstream, ok := result.Reaches["1010"]
	require.True(t, ok)
	assert.False(t, upstream.Eclipsed)
	require.NotNil(t, upstream.USXS)
	require.NotNil(t, upstream.DSXS)
	assert.Equal(t, "xs-1", upstream.USXS.XSID)
	assert.Equal(t, "xs-2", upstream.DSXS.XSID)

	downstream, ok := result.Reaches["1020"]
	require.True(t, ok)
	assert.True(t, downstream.Eclipsed)
	assert.Nil(t, downstream.USXS)
	assert.Nil(t, downstream.DSXS)

	model := reachlayout.NewSourceModel(dir, filepath.Base(dir))

	var persisted pipeline.ConflationDocument
	require.NoError(t, rasio.ReadJSON(model.ConflationDocument(), &persisted))
	assert.Equal(t, "nhdplus-hr", persisted.Metadata.SourceNetwork)
}

func TestConflateModel_NoNetworkProviderConfigured(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	dir := t.TempDir()

	writeGeoPackage(t, dir, &rasio.GeoPackageDocument{
		Centerline: orb.LineString{{-96, 30}, {-96, 30.3}},
	})

	input, err := json.Marshal(pipeline.ConflateModelInput{SourceDir: dir, ReferenceNetwork: "nhdplus-hr"})
	require.NoError(t, err)

	_, err = pipeline.ConflateModel(&registry.StageEnv{}, input)
	require.Error(t, err)
}
