package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/floodlib/ripple-engine/internal/rasio"
	"github.com/floodlib/ripple-engine/internal/reachlayout"
	"github.com/floodlib/ripple-engine/internal/registry"
	"github.com/floodlib/ripple-engine/internal/solver"
	"github.com/floodlib/ripple-engine/internal/stageerr"
)

const knownWSEFirstPlanSuffix = 3

// RunKnownWSEInput is run_known_wse's input document.
type RunKnownWSEInput struct {
	ReachRoot       string  `json:"reach_root"`
	ReachID         string  `json:"reach_id"`
	MinElevation    float64 `json:"min_elevation"`
	MaxElevation    float64 `json:"max_elevation"`
	DepthIncrement  float64 `json:"depth_increment"`
	WriteDepthGrids bool    `json:"write_depth_grids"`
}

// RunKnownWSEResult is run_known_wse's result document.
type RunKnownWSEResult struct {
	RunPairs     int      `json:"run_pairs"`
	Filtered     int      `json:"filtered_pairs"`
	PlanSuffixes []int    `json:"plan_suffixes"`
	DepthGrids   []string `json:"depth_grids,omitempty"`
}

// RunKnownWSEInputs is run_known_wse's registered input spec.
var RunKnownWSEInputs = []registry.InputSpec{
	{Name: "reach_root", Domain: registry.DomainStringPath, Required: true},
	{Name: "reach_id", Domain: registry.DomainStringPath, Required: true},
	{Name: "write_depth_grids", Domain: registry.DomainBoolean, Required: false, Default: false},
}

// RunKnownWSE forms the Cartesian product of the incremental normal-depth
// discharges and a stepped elevation range, filters out pairs where the
// known boundary would not control, and runs the remaining combinations,
// per spec.md §4.6.8. Filtering is the critical correctness rule: keeping an
// unfiltered pair double-counts an unconstrained condition downstream.
func RunKnownWSE(env *registry.StageEnv, raw json.RawMessage) (any, error) {
	var in RunKnownWSEInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, stageerr.New(stageerr.KindInvalidInput, "malformed input: %s", err.Error())
	}

	if in.DepthIncrement <= 0 {
		return nil, stageerr.New(stageerr.KindInvalidInput, "depth_increment must be positive")
	}

	if in.MaxElevation < in.MinElevation {
		return nil, stageerr.New(stageerr.KindInvalidInput, "max_elevation must be >= min_elevation")
	}

	reachModel := reachlayout.NewReachSubmodel(in.ReachRoot, in.ReachID)

	var normalProfiles []solver.Profile
	if err := rasio.ReadJSON(reachModel.Results(incrementalNormalDepthPlanSuffix), &normalProfiles); err != nil {
		return nil, stageerr.New(stageerr.KindPrecondition, "no incremental normal-depth results for %q, run run_incremental_normal_depth first: %s", in.ReachID, err.Error())
	}

	normalCurve := ratingCurveFromProfiles(normalProfiles)
	if len(normalCurve.Points) == 0 {
		return nil, stageerr.New(stageerr.KindPrecondition, "incremental normal-depth results for %q contain no profiles", in.ReachID)
	}

	gpkg, err := rasio.ReadGeoPackage(reachModel.GeoPackage())
	if err != nil {
		return nil, stageerr.New(stageerr.KindPrecondition, "no reach geopackage for %q: %s", in.ReachID, err.Error())
	}

	river, reachName, station, bedElevation := downstreamBoundary(gpkg.CrossSections)

	elevations := stepRange(in.MinElevation, in.MaxElevation, in.DepthIncrement)

	totalPairs := len(normalCurve.Points) * len(elevations)
	filteredCount := 0
	suffixes := make([]int, 0, len(elevations))
	allProfiles := make([]solver.Profile, 0)

	if env.Solver == nil {
		return nil, stageerr.Internal("no solver adapter configured", "cannot run known-WSE profiles without a solver.Adapter")
	}

	ctx := env.Context
	if ctx == nil {
		ctx = context.Background()
	}

	for i, elevation := range elevations {
		discharges := make([]float64, 0, len(normalCurve.Points))

		for _, point := range normalCurve.Points {
			if elevation < point.Stage {
				continue
			}

			discharges = append(discharges, point.Discharge)
			filteredCount++
		}

		if len(discharges) == 0 {
			continue
		}

		suffix := knownWSEFirstPlanSuffix + i
		wse := elevation

		flow := &rasio.FlowDocument{
			Suffix:        fmt.Sprintf("%02d", suffix),
			SteadyState:   true,
			Discharges:    discharges,
			DownstreamWSE: &wse,
		}

		if err := rasio.WriteFlow(reachModel.Flow(suffix), flow); err != nil {
			return nil, stageerr.Internal(err.Error(), "failed to write flow file")
		}

		plan := &rasio.PlanDocument{
			Suffix:       flow.Suffix,
			GeometryFile: reachModel.GeoPackage(),
			FlowFile:     reachModel.Flow(suffix),
			Active:       true,
		}

		if err := rasio.WritePlan(reachModel.Plan(suffix), plan); err != nil {
			return nil, stageerr.Internal(err.Error(), "failed to write plan file")
		}

		planPath := reachModel.Plan(suffix)

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

		profiles, err := reader.Profiles()
		reader.Close()

		if err != nil {
			return nil, stageerr.Internal(err.Error(), "failed to read solver profiles")
		}

		if err := rasio.WriteJSON(reachModel.Results(suffix), profiles); err != nil {
			return nil, stageerr.Internal(err.Error(), "failed to persist results")
		}

		allProfiles = append(allProfiles, profiles...)
		suffixes = append(suffixes, suffix)
	}

	result := RunKnownWSEResult{
		RunPairs:     len(allProfiles),
		Filtered:     totalPairs - filteredCount,
		PlanSuffixes: suffixes,
	}

	if in.WriteDepthGrids {
		grids, err := writeDepthGrids(reachModel, allProfiles)
		if err != nil {
			return nil, stageerr.Internal(err.Error(), "failed to write depth grids")
		}

		result.DepthGrids = grids
	}

	return result, nil
}

func stepRange(min, max, step float64) []float64 {
	if step <= 0 {
		return []float64{min}
	}

	var values []float64

	for v := min; v <= max; v += step {
		values = append(values, v)
	}

	if len(values) == 0 || values[len(values)-1] != max {
		values = append(values, max)
	}

	return values
}
