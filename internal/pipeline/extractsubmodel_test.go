package pipeline_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodlib/ripple-engine/internal/pipeline"
	"github.com/floodlib/ripple-engine/internal/rasio"
	"github.com/floodlib/ripple-engine/internal/reachlayout"
	"github.com/floodlib/ripple-engine/internal/registry"
)

func TestExtractSubmodel_CopiesBracketedCrossSections(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	sourceDir := t.TempDir()
	submodelDir := t.TempDir()

	sourceModel := reachlayout.NewSourceModel(sourceDir, filepath.Base(sourceDir))

	gpkg := &rasio.GeoPackageDocument{
		CRS: "EPSG:4326",
		CrossSections: []rasio.CrossSection{
			{ID: "xs-1", Reach: "1010", MinElevation: 10, MaxElevation: 20, Geometry: orb.LineString{{-96, 30}, {-96.1, 30}}},
			{ID: "xs-2", Reach: "1010", MinElevation: 12, MaxElevation: 22, Geometry: orb.LineString{{-96, 30.1}, {-96.1, 30.1}}},
			{ID: "xs-3", Reach: "1020", MinElevation: 30, MaxElevation: 40, Geometry: orb.LineString{{-96, 30.2}, {-96.1, 30.2}}},
		},
	}
	require.NoError(t, rasio.WriteGeoPackage(sourceModel.GeoPackage(), gpkg))

	conflation := &pipeline.ConflationDocument{
		Reaches: map[string]pipeline.ReachConflation{
			"1010": {
				USXS:     &pipeline.CrossSectionSelection{XSID: "xs-1", MinElevation: 10, MaxElevation: 20},
				DSXS:     &pipeline.CrossSectionSelection{XSID: "xs-2", MinElevation: 12, MaxElevation: 22},
				LowFlow:  500,
				HighFlow: 5000,
			},
			"1020": {Eclipsed: true},
		},
	}
	require.NoError(t, rasio.WriteJSON(sourceModel.ConflationDocument(), conflation))

	input, err := json.Marshal(pipeline.ExtractSubmodelInput{SourceDir: sourceDir, SubmodelDir: submodelDir, ReachID: "1010"})
	require.NoError(t, err)

	out, err := pipeline.ExtractSubmodel(&registry.StageEnv{}, input)
	require.NoError(t, err)

	result, ok := out.(pipeline.ExtractSubmodelResult)
	require.True(t, ok)
	assert.False(t, result.Eclipsed)
	assert.Equal(t, 2, result.CrossSections)
	assert.Greater(t, result.HighFlow, 0.0)

	reachModel := reachlayout.NewReachSubmodel(submodelDir, "1010")
	reachGpkg, err := rasio.ReadGeoPackage(reachModel.GeoPackage())
	require.NoError(t, err)
	assert.Len(t, reachGpkg.CrossSections, 2)
}

func TestExtractSubmodel_EclipsedShortCircuits(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	sourceDir := t.TempDir()
	submodelDir := t.TempDir()

	sourceModel := reachlayout.NewSourceModel(sourceDir, filepath.Base(sourceDir))
	require.NoError(t, rasio.WriteJSON(sourceModel.ConflationDocument(), &pipeline.ConflationDocument{
		Reaches: map[string]pipeline.ReachConflation{"1020": {Eclipsed: true}},
	}))

	input, err := json.Marshal(pipeline.ExtractSubmodelInput{SourceDir: sourceDir, SubmodelDir: submodelDir, ReachID: "1020"})
	require.NoError(t, err)

	out, err := pipeline.ExtractSubmodel(&registry.StageEnv{}, input)
	require.NoError(t, err)

	result, ok := out.(pipeline.ExtractSubmodelResult)
	require.True(t, ok)
	assert.True(t, result.Eclipsed)
}
