package pipeline

import (
	"github.com/floodlib/ripple-engine/internal/registry"
)

// Descriptors assembles the compiled-in table of every registered process:
// the nine hydraulic-workflow stages plus the health check. internal/registry
// never imports internal/pipeline itself (that would be a cycle); the job
// runner entrypoint calls this function once at startup and hands the
// result to registry.Registry.RegisterAll.
func Descriptors() []registry.Descriptor {
	return []registry.Descriptor{
		{
			Name:    "test-huey-health",
			Handler: TestHueyHealth,
			Inputs:  TestHueyHealthInputs,
		},
		{
			Name:    "ras_to_gpkg",
			Handler: RasToGpkg,
			Inputs:  RasToGpkgInputs,
		},
		{
			Name:    "conflate_model",
			Handler: ConflateModel,
			Inputs:  ConflateModelInputs,
		},
		{
			Name:    "compute_conflation_metrics",
			Handler: ComputeConflationMetrics,
			Inputs:  ComputeConflationMetricsInputs,
		},
		{
			Name:              "extract_submodel",
			Handler:           ExtractSubmodel,
			Inputs:            ExtractSubmodelInputs,
			AllowedOnEclipsed: true,
		},
		{
			Name:    "create_ras_terrain",
			Handler: CreateRasTerrain,
			Inputs:  CreateRasTerrainInputs,
		},
		{
			Name:    "create_model_run_normal_depth",
			Handler: CreateModelRunNormalDepth,
			Inputs:  CreateModelRunNormalDepthInputs,
		},
		{
			Name:    "run_incremental_normal_depth",
			Handler: RunIncrementalNormalDepth,
			Inputs:  RunIncrementalNormalDepthInputs,
		},
		{
			Name:    "run_known_wse",
			Handler: RunKnownWSE,
			Inputs:  RunKnownWSEInputs,
		},
		{
			Name:    "create_fim_lib",
			Handler: CreateFimLib,
			Inputs:  CreateFimLibInputs,
		},
		{
			Name:    "create_rating_curves_db",
			Handler: CreateRatingCurvesDB,
			Inputs:  CreateRatingCurvesDBInputs,
		},
	}
}
