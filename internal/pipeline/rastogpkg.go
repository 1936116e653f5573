package pipeline

import (
	"encoding/json"

	"github.com/floodlib/ripple-engine/internal/rasio"
	"github.com/floodlib/ripple-engine/internal/reachlayout"
	"github.com/floodlib/ripple-engine/internal/registry"
	"github.com/floodlib/ripple-engine/internal/stageerr"
)

// RasToGpkgInput is ras_to_gpkg's input document.
type RasToGpkgInput struct {
	SourceDir string `json:"source_dir"`
	CRS       string `json:"crs"`
}

// RasToGpkgResult is ras_to_gpkg's result document.
type RasToGpkgResult struct {
	GeoPackagePath string `json:"geopackage_path"`
	PrimaryPlan    string `json:"primary_plan"`
	CrossSections  int    `json:"cross_sections"`
}

// RasToGpkgInputs is ras_to_gpkg's registered input spec.
var RasToGpkgInputs = []registry.InputSpec{
	{Name: "source_dir", Domain: registry.DomainStringPath, Required: true},
	{Name: "crs", Domain: registry.DomainStringPath, Required: false, Default: "EPSG:4326"},
}

// RasToGpkg extracts cross-section polylines, river centerline, structures,
// and junctions from a source model's opaque RAS containers into its
// geopackage document, per spec.md §4.6.1.
func RasToGpkg(env *registry.StageEnv, raw json.RawMessage) (any, error) {
	var in RasToGpkgInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, stageerr.New(stageerr.KindInvalidInput, "malformed input: %s", err.Error())
	}

	model := reachlayout.NewSourceModel(in.SourceDir, sourceModelName(in.SourceDir))

	project, err := rasio.ReadProject(model.Project())
	if err != nil {
		return nil, stageerr.New(stageerr.KindNotASourceModel, "%q is not a valid source model bundle: %s", in.SourceDir, err.Error())
	}

	if len(project.Plans) == 0 {
		return nil, stageerr.New(stageerr.KindNotASourceModel, "%q has no candidate plans", in.SourceDir)
	}

	plan, err := rasio.SelectPrimaryPlan(project.Plans)
	if err != nil {
		return nil, stageerr.New(stageerr.KindNoValidPlan, "%s", err.Error())
	}

	flow, err := rasio.ReadFlow(planRelativePath(in.SourceDir, plan.FlowFile))
	if err != nil {
		return nil, stageerr.New(stageerr.KindNotASourceModel, "failed to read flow file for plan %q: %s", plan.Suffix, err.Error())
	}

	if !flow.SteadyState {
		return nil, stageerr.New(stageerr.KindUnsteadyFlowUnsupported, "plan %q's flow file is not steady-state", plan.Suffix)
	}

	geometry, err := rasio.ReadGeometry(planRelativePath(in.SourceDir, plan.GeometryFile))
	if err != nil {
		return nil, stageerr.New(stageerr.KindNotASourceModel, "failed to read geometry file for plan %q: %s", plan.Suffix, err.Error())
	}

	crs := in.CRS
	if crs == "" {
		crs = project.CRS
	}

	gpkg := &rasio.GeoPackageDocument{
		CRS:           crs,
		CrossSections: geometry.CrossSections,
		Centerline:    geometry.Centerline,
		Structures:    geometry.Structures,
		Junctions:     geometry.Junctions,
		Metadata: map[string]any{
			"primary_plan": plan.Suffix,
			"source_dir":   in.SourceDir,
		},
	}

	if err := rasio.WriteGeoPackage(model.GeoPackage(), gpkg); err != nil {
		return nil, stageerr.Internal(err.Error(), "failed to write geopackage")
	}

	project.PrimaryPlan = plan.Suffix
	if err := rasio.WriteProject(model.Project(), project); err != nil {
		return nil, stageerr.Internal(err.Error(), "failed to record primary plan selection")
	}

	return RasToGpkgResult{
		GeoPackagePath: model.GeoPackage(),
		PrimaryPlan:    plan.Suffix,
		CrossSections:  len(geometry.CrossSections),
	}, nil
}

