package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/floodlib/ripple-engine/internal/rasio"
	"github.com/floodlib/ripple-engine/internal/reachlayout"
	"github.com/floodlib/ripple-engine/internal/registry"
	"github.com/floodlib/ripple-engine/internal/solver"
	"github.com/floodlib/ripple-engine/internal/stageerr"
)

const (
	defaultDischargeCount  = 50
	defaultDownstreamSlope = 0.001
	normalDepthPlanSuffix  = 1
)

// CreateModelRunNormalDepthInput is create_model_run_normal_depth's input document.
type CreateModelRunNormalDepthInput struct {
	ReachRoot       string   `json:"reach_root"`
	ReachID         string   `json:"reach_id"`
	Count           int      `json:"count"`
	DownstreamSlope *float64 `json:"downstream_slope"`
}

// CreateModelRunNormalDepthResult is create_model_run_normal_depth's result document.
type CreateModelRunNormalDepthResult struct {
	PlanSuffix  int              `json:"plan_suffix"`
	Discharges  []float64        `json:"discharges"`
	RatingCurve RatingCurve      `json:"rating_curve"`
	ResultsPath string           `json:"results_path"`
	Profiles    []solver.Profile `json:"profiles"`
}

// CreateModelRunNormalDepthInputs is create_model_run_normal_depth's registered input spec.
var CreateModelRunNormalDepthInputs = []registry.InputSpec{
	{Name: "reach_root", Domain: registry.DomainStringPath, Required: true},
	{Name: "reach_id", Domain: registry.DomainStringPath, Required: true},
	{Name: "count", Domain: registry.DomainBoundedInteger, Required: false, Default: float64(defaultDischargeCount), Min: intPtr(1), Max: intPtr(5000)},
}

// CreateModelRunNormalDepth writes a plan/flow pair with discharges spaced
// evenly between the submodel's low and high flow and invokes the solver
// adapter, per spec.md §4.6.6.
func CreateModelRunNormalDepth(env *registry.StageEnv, raw json.RawMessage) (any, error) {
	var in CreateModelRunNormalDepthInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, stageerr.New(stageerr.KindInvalidInput, "malformed input: %s", err.Error())
	}

	if in.Count <= 0 {
		in.Count = defaultDischargeCount
	}

	slope := defaultDownstreamSlope
	if in.DownstreamSlope != nil {
		slope = *in.DownstreamSlope
	}

	reachModel := reachlayout.NewReachSubmodel(in.ReachRoot, in.ReachID)

	gpkg, err := rasio.ReadGeoPackage(reachModel.GeoPackage())
	if err != nil {
		return nil, stageerr.New(stageerr.KindPrecondition, "no reach geopackage for %q, run extract_submodel first: %s", in.ReachID, err.Error())
	}

	low, high, err := flowBoundsFromMetadata(gpkg.Metadata)
	if err != nil {
		return nil, stageerr.New(stageerr.KindPrecondition, "%s", err.Error())
	}

	discharges := evenlySpaced(low, high, in.Count)

	river, reachName, station, bedElevation := downstreamBoundary(gpkg.CrossSections)

	flow := &rasio.FlowDocument{
		Suffix:          fmt.Sprintf("%02d", normalDepthPlanSuffix),
		SteadyState:     true,
		Discharges:      discharges,
		DownstreamSlope: slope,
	}

	if err := rasio.WriteFlow(reachModel.Flow(normalDepthPlanSuffix), flow); err != nil {
		return nil, stageerr.Internal(err.Error(), "failed to write flow file")
	}

	plan := &rasio.PlanDocument{
		Suffix:       flow.Suffix,
		GeometryFile: reachModel.GeoPackage(),
		FlowFile:     reachModel.Flow(normalDepthPlanSuffix),
		Active:       true,
	}

	if err := rasio.WritePlan(reachModel.Plan(normalDepthPlanSuffix), plan); err != nil {
		return nil, stageerr.Internal(err.Error(), "failed to write plan file")
	}

	if env.Solver == nil {
		return nil, stageerr.Internal("no solver adapter configured", "cannot run normal-depth profiles without a solver.Adapter")
	}

	ctx := env.Context
	if ctx == nil {
		ctx = context.Background()
	}

	planPath := reachModel.Plan(normalDepthPlanSuffix)

	if registerable, ok := env.Solver.(interface {
		RegisterPlan(string, solver.PlanSpec)
	}); ok {
		registerable.RegisterPlan(planPath, solver.PlanSpec{
			River:        river,
			Reach:        reachName,
			Station:      station,
			BedElevation: bedElevation,
			BedSlope:     slope,
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

	profiles, err := reader.Profiles()
	if err != nil {
		return nil, stageerr.Internal(err.Error(), "failed to read solver profiles")
	}

	if err := rasio.WriteJSON(reachModel.Results(normalDepthPlanSuffix), profiles); err != nil {
		return nil, stageerr.Internal(err.Error(), "failed to persist results")
	}

	curve := ratingCurveFromProfiles(profiles)

	return CreateModelRunNormalDepthResult{
		PlanSuffix:  normalDepthPlanSuffix,
		Discharges:  discharges,
		RatingCurve: curve,
		ResultsPath: reachModel.Results(normalDepthPlanSuffix),
		Profiles:    profiles,
	}, nil
}

func intPtr(i int) *int { return &i }

func flowBoundsFromMetadata(metadata map[string]any) (low, high float64, err error) {
	rawLow, ok := metadata["low_flow"]
	if !ok {
		return 0, 0, fmt.Errorf("reach geopackage metadata is missing low_flow")
	}

	rawHigh, ok := metadata["high_flow"]
	if !ok {
		return 0, 0, fmt.Errorf("reach geopackage metadata is missing high_flow")
	}

	low, ok = rawLow.(float64)
	if !ok {
		return 0, 0, fmt.Errorf("reach geopackage metadata low_flow is not numeric")
	}

	high, ok = rawHigh.(float64)
	if !ok {
		return 0, 0, fmt.Errorf("reach geopackage metadata high_flow is not numeric")
	}

	return low, high, nil
}

func evenlySpaced(low, high float64, count int) []float64 {
	if count <= 1 {
		return []float64{high}
	}

	step := (high - low) / float64(count-1)
	values := make([]float64, count)

	for i := range values {
		values[i] = low + step*float64(i)
	}

	return values
}

// downstreamBoundary selects the cross-section with the highest station as
// the reach's downstream boundary, whose river/reach name and thalweg
// elevation seed the fake solver's bed parameters.
func downstreamBoundary(crossSections []rasio.CrossSection) (river, reach string, station, bedElevation float64) {
	if len(crossSections) == 0 {
		return "", "", 0, 0
	}

	sorted := make([]rasio.CrossSection, len(crossSections))
	copy(sorted, crossSections)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Station > sorted[j].Station })

	xs := sorted[0]

	return xs.River, xs.Reach, xs.Station, xs.MinElevation
}

func ratingCurveFromProfiles(profiles []solver.Profile) RatingCurve {
	sorted := make([]solver.Profile, len(profiles))
	copy(sorted, profiles)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Discharge < sorted[j].Discharge })

	curve := RatingCurve{Points: make([]RatingCurvePoint, 0, len(sorted))}

	for _, p := range sorted {
		curve.Points = append(curve.Points, RatingCurvePoint{Discharge: p.Discharge, Stage: p.WaterSurfaceElevation})
	}

	return curve
}
