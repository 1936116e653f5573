package pipeline

import (
	"encoding/json"
	"math"

	"github.com/floodlib/ripple-engine/internal/rasio"
	"github.com/floodlib/ripple-engine/internal/reachlayout"
	"github.com/floodlib/ripple-engine/internal/registry"
	"github.com/floodlib/ripple-engine/internal/stageerr"
)

// ExtractSubmodelInput is extract_submodel's input document.
type ExtractSubmodelInput struct {
	SourceDir          string   `json:"source_dir"`
	SubmodelDir        string   `json:"submodel_dir"`
	ReachID            string   `json:"reach_id"`
	LowFlowMultiplier  *float64 `json:"low_flow_multiplier"`
	HighFlowMultiplier *float64 `json:"high_flow_multiplier"`
	IgnoreSourceFlows  bool     `json:"ignore_source_flows"`
	IgnoreNetworkFlows bool     `json:"ignore_network_flows"`
}

// ExtractSubmodelResult is extract_submodel's result document.
type ExtractSubmodelResult struct {
	ReachRoot     string  `json:"reach_root"`
	CrossSections int     `json:"cross_sections"`
	LowFlow       float64 `json:"low_flow"`
	HighFlow      float64 `json:"high_flow"`
	Eclipsed      bool    `json:"eclipsed"`
}

// ExtractSubmodelInputs is extract_submodel's registered input spec.
var ExtractSubmodelInputs = []registry.InputSpec{
	{Name: "source_dir", Domain: registry.DomainStringPath, Required: true},
	{Name: "submodel_dir", Domain: registry.DomainStringPath, Required: true},
	{Name: "reach_id", Domain: registry.DomainStringPath, Required: true},
	{Name: "ignore_source_flows", Domain: registry.DomainBoolean, Required: false, Default: false},
	{Name: "ignore_network_flows", Domain: registry.DomainBoolean, Required: false, Default: false},
}

// ExtractSubmodel creates a reach's submodel directory, copies the
// cross-sections bracketed by its upstream/downstream conflation selections,
// and computes its discharge bounds, per spec.md §4.6.4.
func ExtractSubmodel(env *registry.StageEnv, raw json.RawMessage) (any, error) {
	var in ExtractSubmodelInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, stageerr.New(stageerr.KindInvalidInput, "malformed input: %s", err.Error())
	}

	sourceModel := reachlayout.NewSourceModel(in.SourceDir, sourceModelName(in.SourceDir))

	var conflation ConflationDocument
	if err := rasio.ReadJSON(sourceModel.ConflationDocument(), &conflation); err != nil {
		return nil, stageerr.New(stageerr.KindPrecondition, "no conflation document for %q, run conflate_model first: %s", in.SourceDir, err.Error())
	}

	record, ok := conflation.Reaches[in.ReachID]
	if !ok {
		return nil, stageerr.New(stageerr.KindInvalidInput, "reach %q is not present in the conflation document", in.ReachID)
	}

	reachModel := reachlayout.NewReachSubmodel(in.SubmodelDir, in.ReachID)

	if record.Eclipsed {
		return ExtractSubmodelResult{ReachRoot: reachModel.Root(), Eclipsed: true}, nil
	}

	if record.USXS == nil || record.DSXS == nil {
		return nil, stageerr.New(stageerr.KindPrecondition, "reach %q has no cross-section selections", in.ReachID)
	}

	gpkg, err := rasio.ReadGeoPackage(sourceModel.GeoPackage())
	if err != nil {
		return nil, stageerr.New(stageerr.KindPrecondition, "no geopackage for %q, run ras_to_gpkg first: %s", in.SourceDir, err.Error())
	}

	loStation := math.Min(record.USXS.MinElevation, record.DSXS.MinElevation)
	hiStation := math.Max(record.USXS.MaxElevation, record.DSXS.MaxElevation)

	selected := make([]rasio.CrossSection, 0)

	for _, xs := range gpkg.CrossSections {
		if xs.Reach != in.ReachID {
			continue
		}

		if xs.MinElevation >= loStation && xs.MaxElevation <= hiStation {
			selected = append(selected, xs)
		}
	}

	sourceMin, sourceMax := dischargeBounds(selected)

	lowMult := defaultOr(in.LowFlowMultiplier, defaultLowFlowMultiplier)
	highMult := defaultOr(in.HighFlowMultiplier, defaultHighFlowMultiplier)

	low := sourceMin
	high := sourceMax

	if !in.IgnoreNetworkFlows {
		networkLow := lowMult * record.LowFlow
		networkHigh := highMult * record.HighFlow

		if in.IgnoreSourceFlows || networkLow < low {
			low = networkLow
		}

		if in.IgnoreSourceFlows || networkHigh > high {
			high = networkHigh
		}
	}

	reachGpkg := &rasio.GeoPackageDocument{
		CRS:           gpkg.CRS,
		CrossSections: selected,
		Centerline:    gpkg.Centerline,
		Metadata: map[string]any{
			"reach_id":    in.ReachID,
			"source_dir":  in.SourceDir,
			"low_flow":    low,
			"high_flow":   high,
		},
	}

	if err := rasio.WriteGeoPackage(reachModel.GeoPackage(), reachGpkg); err != nil {
		return nil, stageerr.Internal(err.Error(), "failed to write reach geopackage")
	}

	return ExtractSubmodelResult{
		ReachRoot:     reachModel.Root(),
		CrossSections: len(selected),
		LowFlow:       low,
		HighFlow:      high,
		Eclipsed:      false,
	}, nil
}

// dischargeBounds derives the source model's own observed discharge bounds
// from its selected cross-sections' elevation range, in lieu of reading a
// flow document the submodel hasn't been assigned a plan for yet.
func dischargeBounds(crossSections []rasio.CrossSection) (min, max float64) {
	if len(crossSections) == 0 {
		return 0, 0
	}

	min = math.MaxFloat64
	max = -math.MaxFloat64

	for _, xs := range crossSections {
		if xs.MinElevation < min {
			min = xs.MinElevation
		}

		if xs.MaxElevation > max {
			max = xs.MaxElevation
		}
	}

	return min, max
}
