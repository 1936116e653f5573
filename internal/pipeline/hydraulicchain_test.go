package pipeline_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodlib/ripple-engine/internal/pipeline"
	"github.com/floodlib/ripple-engine/internal/rasio"
	"github.com/floodlib/ripple-engine/internal/reachlayout"
	"github.com/floodlib/ripple-engine/internal/registry"
	"github.com/floodlib/ripple-engine/internal/solver"
)

func reachGeoPackageWithFlowBounds(low, high float64) *rasio.GeoPackageDocument {
	return &rasio.GeoPackageDocument{
		CRS: "EPSG:4326",
		CrossSections: []rasio.CrossSection{
			{ID: "xs-ds", River: "Brazos", Reach: "1010", Station: 500, MinElevation: 100, MaxElevation: 130,
				Geometry: orb.LineString{{-96.05, 30.02}, {-95.95, 30.02}}},
		},
		Metadata: map[string]any{"low_flow": low, "high_flow": high},
	}
}

// TestHydraulicChain_NormalDepthThroughRatingCurves runs the full F.5-F.8b
// sequence against a fake solver, asserting each stage's output is
// consumable by the next exactly as it would be read off disk.
func TestHydraulicChain_NormalDepthThroughRatingCurves(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	dir := t.TempDir()
	reachModel := reachlayout.NewReachSubmodel(dir, "1010")
	require.NoError(t, rasio.WriteGeoPackage(reachModel.GeoPackage(), reachGeoPackageWithFlowBounds(100, 1000)))

	fake := solver.NewFakeAdapter()
	env := &registry.StageEnv{Context: context.Background(), Solver: fake}

	normalInput, err := json.Marshal(pipeline.CreateModelRunNormalDepthInput{ReachRoot: dir, ReachID: "1010", Count: 5})
	require.NoError(t, err)

	out, err := pipeline.CreateModelRunNormalDepth(env, normalInput)
	require.NoError(t, err)

	normalResult, ok := out.(pipeline.CreateModelRunNormalDepthResult)
	require.True(t, ok)
	assert.Len(t, normalResult.Discharges, 5)
	assert.True(t, normalResult.RatingCurve.Points[0].Stage < normalResult.RatingCurve.Points[len(normalResult.RatingCurve.Points)-1].Stage)

	incInput, err := json.Marshal(pipeline.RunIncrementalNormalDepthInput{ReachRoot: dir, ReachID: "1010", DepthIncrement: 0.5, WriteDepthGrids: true})
	require.NoError(t, err)

	out, err = pipeline.RunIncrementalNormalDepth(env, incInput)
	require.NoError(t, err)

	incResult, ok := out.(pipeline.RunIncrementalNormalDepthResult)
	require.True(t, ok)
	assert.NotEmpty(t, incResult.Discharges)
	assert.NotEmpty(t, incResult.DepthGrids)

	wseInput, err := json.Marshal(pipeline.RunKnownWSEInput{
		ReachRoot:      dir,
		ReachID:        "1010",
		MinElevation:   incResult.RatingCurve.Points[0].Stage - 1,
		MaxElevation:   incResult.RatingCurve.Points[len(incResult.RatingCurve.Points)-1].Stage + 1,
		DepthIncrement: 1,
	})
	require.NoError(t, err)

	out, err = pipeline.RunKnownWSE(env, wseInput)
	require.NoError(t, err)

	wseResult, ok := out.(pipeline.RunKnownWSEResult)
	require.True(t, ok)
	assert.NotEmpty(t, wseResult.PlanSuffixes)

	allSuffixes := append([]int{1, 2}, wseResult.PlanSuffixes...)

	fimInput, err := json.Marshal(pipeline.CreateFimLibInput{ReachRoot: dir, ReachID: "1010", PlanSuffixes: allSuffixes})
	require.NoError(t, err)

	out, err = pipeline.CreateFimLib(env, fimInput)
	require.NoError(t, err)

	fimResult, ok := out.(pipeline.CreateFimLibResult)
	require.True(t, ok)
	assert.NotEmpty(t, fimResult.Entries)

	dbInput, err := json.Marshal(pipeline.CreateRatingCurvesDBInput{ReachRoot: dir, ReachID: "1010", PlanSuffixes: allSuffixes})
	require.NoError(t, err)

	out, err = pipeline.CreateRatingCurvesDB(env, dbInput)
	require.NoError(t, err)

	dbResult, ok := out.(pipeline.CreateRatingCurvesDBResult)
	require.True(t, ok)
	assert.Greater(t, dbResult.RowsWritten, 0)
}

// crashingAdapter always reports a non-zero exit code, simulating a
// solver crash without going through FakeAdapter's self-registration
// (which the stage always succeeds against since it registers its own
// plan before invoking Run).
type crashingAdapter struct{}

func (crashingAdapter) Run(_ context.Context, planPath string) (int, string, error) {
	return 1, planPath, nil
}

func (crashingAdapter) OpenResults(string) (solver.ResultReader, error) {
	return nil, nil
}

func TestCreateModelRunNormalDepth_SolverCrash(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	dir := t.TempDir()
	reachModel := reachlayout.NewReachSubmodel(dir, "1010")
	require.NoError(t, rasio.WriteGeoPackage(reachModel.GeoPackage(), reachGeoPackageWithFlowBounds(100, 1000)))

	env := &registry.StageEnv{Context: context.Background(), Solver: crashingAdapter{}}

	input, err := json.Marshal(pipeline.CreateModelRunNormalDepthInput{ReachRoot: dir, ReachID: "1010", Count: 3})
	require.NoError(t, err)

	_, err = pipeline.CreateModelRunNormalDepth(env, input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SolverCrash")
}
