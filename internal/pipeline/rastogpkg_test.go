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

func writeSourceModel(t *testing.T, dir string, plans []rasio.PlanDocument, flow rasio.FlowDocument, geom rasio.GeometryDocument) reachlayout.SourceModel {
	t.Helper()

	model := reachlayout.NewSourceModel(dir, "basin42")

	require.NoError(t, rasio.WriteProject(model.Project(), &rasio.ProjectDocument{
		CRS:   "EPSG:4326",
		Plans: plans,
	}))
	require.NoError(t, rasio.WriteFlow(filepath.Join(dir, "basin42.f01"), &flow))
	require.NoError(t, rasio.WriteGeometry(filepath.Join(dir, "basin42.g01"), &geom))

	return model
}

func steadyFlow() rasio.FlowDocument {
	return rasio.FlowDocument{Suffix: "01", SteadyState: true, Discharges: []float64{500, 1000, 5000}}
}

func sampleGeometry() rasio.GeometryDocument {
	return rasio.GeometryDocument{
		CrossSections: []rasio.CrossSection{
			{ID: "xs-1", River: "Brazos", Reach: "1010", Station: 100, Geometry: orb.LineString{{-96, 30}, {-96.1, 30.1}}},
		},
		Centerline: orb.LineString{{-96, 30}, {-96, 30.3}},
	}
}

func TestRasToGpkg_Success(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	dir := t.TempDir()

	writeSourceModel(t, dir, []rasio.PlanDocument{
		{Suffix: "01", GeometryFile: "basin42.g01", FlowFile: "basin42.f01", Active: true, HasEncroachments: false},
	}, steadyFlow(), sampleGeometry())

	input, err := json.Marshal(pipeline.RasToGpkgInput{SourceDir: dir})
	require.NoError(t, err)

	env := &registry.StageEnv{}

	out, err := pipeline.RasToGpkg(env, input)
	require.NoError(t, err)

	result, ok := out.(pipeline.RasToGpkgResult)
	require.True(t, ok)
	assert.Equal(t, "01", result.PrimaryPlan)
	assert.Equal(t, 1, result.CrossSections)

	model := reachlayout.NewSourceModel(dir, "basin42")
	gpkg, err := rasio.ReadGeoPackage(model.GeoPackage())
	require.NoError(t, err)
	assert.Len(t, gpkg.CrossSections, 1)

	project, err := rasio.ReadProject(model.Project())
	require.NoError(t, err)
	assert.Equal(t, "01", project.PrimaryPlan)
}

func TestRasToGpkg_MissingProjectFile(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	dir := t.TempDir()

	input, err := json.Marshal(pipeline.RasToGpkgInput{SourceDir: dir})
	require.NoError(t, err)

	_, err = pipeline.RasToGpkg(&registry.StageEnv{}, input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NotASourceModel")
}

func TestRasToGpkg_NoValidPlan(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	dir := t.TempDir()

	writeSourceModel(t, dir, []rasio.PlanDocument{
		{Suffix: "01", GeometryFile: "basin42.g01", FlowFile: "basin42.f01", Active: true, HasEncroachments: true},
		{Suffix: "02", GeometryFile: "basin42.g01", FlowFile: "basin42.f01", Active: false, HasEncroachments: true},
	}, steadyFlow(), sampleGeometry())

	input, err := json.Marshal(pipeline.RasToGpkgInput{SourceDir: dir})
	require.NoError(t, err)

	_, err = pipeline.RasToGpkg(&registry.StageEnv{}, input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NoValidPlan")
}

func TestRasToGpkg_UnsteadyFlowUnsupported(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	dir := t.TempDir()

	flow := steadyFlow()
	flow.SteadyState = false

	writeSourceModel(t, dir, []rasio.PlanDocument{
		{Suffix: "01", GeometryFile: "basin42.g01", FlowFile: "basin42.f01", Active: true, HasEncroachments: false},
	}, flow, sampleGeometry())

	input, err := json.Marshal(pipeline.RasToGpkgInput{SourceDir: dir})
	require.NoError(t, err)

	_, err = pipeline.RasToGpkg(&registry.StageEnv{}, input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UnsteadyFlowUnsupported")
}
