package reachlayout_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/floodlib/ripple-engine/internal/reachlayout"
)

func TestSourceModel_Paths(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	m := reachlayout.NewSourceModel("/data/basin42", "basin42")

	assert.Equal(t, "/data/basin42/basin42.prj", m.Project())
	assert.Equal(t, "/data/basin42/basin42.g01", m.Geometry(1))
	assert.Equal(t, "/data/basin42/basin42.p02", m.Plan(2))
	assert.Equal(t, "/data/basin42/basin42.f01", m.Flow(1))
	assert.Equal(t, "/data/basin42/basin42.gpkg", m.GeoPackage())
	assert.Equal(t, "/data/basin42/basin42.conflation.json", m.ConflationDocument())
}

func TestReachSubmodel_Paths(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	r := reachlayout.NewReachSubmodel("/data/basin42", "1010")

	assert.Equal(t, "/data/basin42/1010", r.Root())
	assert.Equal(t, "/data/basin42/1010/1010.gpkg", r.GeoPackage())
	assert.Equal(t, "/data/basin42/1010/Terrain/1010.hdf", r.Terrain())
	assert.Equal(t, "/data/basin42/1010/1010.p01", r.Plan(1))
	assert.Equal(t, "/data/basin42/1010/1010.f03", r.Flow(3))
	assert.Equal(t, "/data/basin42/1010/1010.r01", r.Results(1))
	assert.Equal(t, "/data/basin42/1010/fims/1010", r.FimsDir())
	assert.Equal(t, "/data/basin42/1010/fims/1010/100.00-250.50.tif", r.FimGrid(100, 250.5))
	assert.Equal(t, "/data/basin42/1010/1010.db", r.RatingCurvesDB())
}
