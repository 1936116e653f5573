package solver_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodlib/ripple-engine/internal/solver"
)

func TestFakeAdapter_MonotoneRatingCurve(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	a := solver.NewFakeAdapter()
	a.RegisterPlan("/data/1010/1010.p01", solver.PlanSpec{
		River:        "Brazos",
		Reach:        "1010",
		Station:      1200,
		BedElevation: 100,
		ChannelWidth: 80,
		ManningsN:    0.035,
		BedSlope:     0.002,
		Discharges:   []float64{100, 500, 1000, 5000},
	})

	exitCode, resultsPath, err := a.Run(context.Background(), "/data/1010/1010.p01")
	require.NoError(t, err)
	assert.Equal(t, 0, exitCode)

	reader, err := a.OpenResults(resultsPath)
	require.NoError(t, err)
	defer reader.Close()

	profiles, err := reader.Profiles()
	require.NoError(t, err)
	require.Len(t, profiles, 4)

	for i := 1; i < len(profiles); i++ {
		assert.Greaterf(t, profiles[i].WaterSurfaceElevation, profiles[i-1].WaterSurfaceElevation,
			"stage must rise monotonically with discharge (index %d)", i)
	}
}

func TestFakeAdapter_SimulatedCrash(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	a := solver.NewFakeAdapter()
	a.RegisterPlan("/data/1010/1010.p01", solver.PlanSpec{SimulateCrash: true, Discharges: []float64{100}})

	exitCode, _, err := a.Run(context.Background(), "/data/1010/1010.p01")
	require.NoError(t, err)
	assert.NotEqual(t, 0, exitCode)
}

func TestFakeAdapter_UnregisteredPlanFails(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	a := solver.NewFakeAdapter()

	exitCode, _, err := a.Run(context.Background(), "/data/unknown/unknown.p01")
	require.NoError(t, err)
	assert.NotEqual(t, 0, exitCode)
}
