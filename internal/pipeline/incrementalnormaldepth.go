package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/floodlib/ripple-engine/internal/rasio"
	"github.com/floodlib/ripple-engine/internal/reachlayout"
	"github.com/floodlib/ripple-engine/internal/registry"
	"github.com/floodlib/ripple-engine/internal/solver"
	"github.com/floodlib/ripple-engine/internal/stageerr"
)

const incrementalNormalDepthPlanSuffix = 2

// RunIncrementalNormalDepthInput is run_incremental_normal_depth's input document.
type RunIncrementalNormalDepthInput struct {
	ReachRoot       string  `json:"reach_root"`
	ReachID         string  `json:"reach_id"`
	DepthIncrement  float64 `json:"depth_increment"`
	WriteDepthGrids bool    `json:"write_depth_grids"`
}

// RunIncrementalNormalDepthResult is run_incremental_normal_depth's result document.
type RunIncrementalNormalDepthResult struct {
	PlanSuffix  int         `json:"plan_suffix"`
	Discharges  []float64   `json:"discharges"`
	RatingCurve RatingCurve `json:"rating_curve"`
	DepthGrids  []string    `json:"depth_grids,omitempty"`
}

// RunIncrementalNormalDepthInputs is run_incremental_normal_depth's registered input spec.
var RunIncrementalNormalDepthInputs = []registry.InputSpec{
	{Name: "reach_root", Domain: registry.DomainStringPath, Required: true},
	{Name: "reach_id", Domain: registry.DomainStringPath, Required: true},
	{Name: "write_depth_grids", Domain: registry.DomainBoolean, Required: false, Default: false},
}

// RunIncrementalNormalDepth reads the rating curve produced by
// create_model_run_normal_depth, interpolates the discharges that would
// produce evenly spaced stage increments at the downstream cross-section,
// and re-runs those discharges, per spec.md §4.6.7.
func RunIncrementalNormalDepth(env *registry.StageEnv, raw json.RawMessage) (any, error) {
	var in RunIncrementalNormalDepthInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, stageerr.New(stageerr.KindInvalidInput, "malformed input: %s", err.Error())
	}

	if in.DepthIncrement <= 0 {
		return nil, stageerr.New(stageerr.KindInvalidInput, "depth_increment must be positive")
	}

	reachModel := reachlayout.NewReachSubmodel(in.ReachRoot, in.ReachID)

	var profiles []solver.Profile
	if err := rasio.ReadJSON(reachModel.Results(normalDepthPlanSuffix), &profiles); err != nil {
		return nil, stageerr.New(stageerr.KindPrecondition, "no normal-depth results for %q, run create_model_run_normal_depth first: %s", in.ReachID, err.Error())
	}

	curve := ratingCurveFromProfiles(profiles)
	if len(curve.Points) == 0 {
		return nil, stageerr.New(stageerr.KindPrecondition, "normal-depth results for %q contain no profiles", in.ReachID)
	}

	discharges := dischargesAtStageIncrements(curve, in.DepthIncrement)

	gpkg, err := rasio.ReadGeoPackage(reachModel.GeoPackage())
	if err != nil {
		return nil, stageerr.New(stageerr.KindPrecondition, "no reach geopackage for %q: %s", in.ReachID, err.Error())
	}

	river, reachName, station, bedElevation := downstreamBoundary(gpkg.CrossSections)

	flow := &rasio.FlowDocument{
		Suffix:      fmt.Sprintf("%02d", incrementalNormalDepthPlanSuffix),
		SteadyState: true,
		Discharges:  discharges,
	}

	if err := rasio.WriteFlow(reachModel.Flow(incrementalNormalDepthPlanSuffix), flow); err != nil {
		return nil, stageerr.Internal(err.Error(), "failed to write flow file")
	}

	plan := &rasio.PlanDocument{
		Suffix:       flow.Suffix,
		GeometryFile: reachModel.GeoPackage(),
		FlowFile:     reachModel.Flow(incrementalNormalDepthPlanSuffix),
		Active:       true,
	}

	if err := rasio.WritePlan(reachModel.Plan(incrementalNormalDepthPlanSuffix), plan); err != nil {
		return nil, stageerr.Internal(err.Error(), "failed to write plan file")
	}

	if env.Solver == nil {
		return nil, stageerr.Internal("no solver adapter configured", "cannot run incremental normal-depth profiles without a solver.Adapter")
	}

	ctx := env.Context
	if ctx == nil {
		ctx = context.Background()
	}

	planPath := reachModel.Plan(incrementalNormalDepthPlanSuffix)

	if registerable, ok := env.Solver.(interface {
		RegisterPlan(string, solver.PlanSpec)
	}); ok {
		registerable.RegisterPlan(planPath, solver.PlanSpec{
			River:        river,
			Reach:        reachName,
			Station:      station,
			BedElevation: bedElevation,
			Discharges:   discharges,
		})
	}

	exitCode, resultsPath, err := env.Solver.Run(ctx, planPath)
	if err != nil {
		return nil, stageerr.Internal(err.Error(), "solver invocation failed")
	}

	if exitCode != 0 {
		return nil, stageerr.New(stageerr.KindSolverCrash, "solver exited with code %d for plan %q", exitCode, planPath)
	}

	reader, err := env.Solver.OpenResults(resultsPath)
	if err != nil {
		return nil, stageerr.Internal(err.Error(), "failed to open solver results")
	}
	defer reader.Close()

	newProfiles, err := reader.Profiles()
	if err != nil {
		return nil, stageerr.Internal(err.Error(), "failed to read solver profiles")
	}

	if err := rasio.WriteJSON(reachModel.Results(incrementalNormalDepthPlanSuffix), newProfiles); err != nil {
		return nil, stageerr.Internal(err.Error(), "failed to persist results")
	}

	result := RunIncrementalNormalDepthResult{
		PlanSuffix:  incrementalNormalDepthPlanSuffix,
		Discharges:  discharges,
		RatingCurve: ratingCurveFromProfiles(newProfiles),
	}

	if in.WriteDepthGrids {
		grids, err := writeDepthGrids(reachModel, newProfiles)
		if err != nil {
			return nil, stageerr.Internal(err.Error(), "failed to write depth grids")
		}

		result.DepthGrids = grids
	}

	return result, nil
}

// dischargesAtStageIncrements walks the rating curve's stage range from its
// minimum in steps of increment, interpolating back to the discharge that
// produces each stage.
func dischargesAtStageIncrements(curve RatingCurve, increment float64) []float64 {
	minStage := curve.Points[0].Stage
	maxStage := curve.Points[len(curve.Points)-1].Stage

	var discharges []float64

	for stage := minStage; stage <= maxStage; stage += increment {
		discharges = append(discharges, dischargeAtStage(curve, stage))
	}

	if len(discharges) == 0 || discharges[len(discharges)-1] != curve.Points[len(curve.Points)-1].Discharge {
		discharges = append(discharges, curve.Points[len(curve.Points)-1].Discharge)
	}

	return discharges
}

// dischargeAtStage inverts RatingCurve.StageAt by linear search, since the
// curve is monotone in both discharge and stage.
func dischargeAtStage(curve RatingCurve, stage float64) float64 {
	if stage <= curve.Points[0].Stage {
		return curve.Points[0].Discharge
	}

	last := len(curve.Points) - 1
	if stage >= curve.Points[last].Stage {
		return curve.Points[last].Discharge
	}

	for i := 1; i < len(curve.Points); i++ {
		if stage <= curve.Points[i].Stage {
			lo, hi := curve.Points[i-1], curve.Points[i]
			if hi.Stage == lo.Stage {
				return lo.Discharge
			}

			frac := (stage - lo.Stage) / (hi.Stage - lo.Stage)

			return lo.Discharge + frac*(hi.Discharge-lo.Discharge)
		}
	}

	return curve.Points[last].Discharge
}

// writeDepthGrids writes a placeholder clipped-raster marker per profile at
// the FimGrid path its discharge/elevation identifies; the real raster
// content is produced by the solver binary's own grid export, which this
// engine's adapter boundary does not re-implement (see DESIGN.md).
func writeDepthGrids(reachModel reachlayout.ReachSubmodel, profiles []solver.Profile) ([]string, error) {
	if err := os.MkdirAll(reachModel.FimsDir(), 0o750); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(profiles))

	for _, p := range profiles {
		path := reachModel.FimGrid(p.Discharge, p.WaterSurfaceElevation)
		if err := os.WriteFile(path, []byte{}, 0o640); err != nil {
			return nil, err
		}

		paths = append(paths, path)
	}

	return paths, nil
}
