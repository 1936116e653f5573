package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/floodlib/ripple-engine/internal/events"
	"github.com/floodlib/ripple-engine/internal/rasio"
	"github.com/floodlib/ripple-engine/internal/reachlayout"
	"github.com/floodlib/ripple-engine/internal/registry"
	"github.com/floodlib/ripple-engine/internal/solver"
	"github.com/floodlib/ripple-engine/internal/stageerr"
)

// CreateFimLibInput is create_fim_lib's input document.
type CreateFimLibInput struct {
	ReachRoot    string `json:"reach_root"`
	ReachID      string `json:"reach_id"`
	PlanSuffixes []int  `json:"plan_suffixes"`
	Cleanup      bool   `json:"cleanup"`
}

// FimLibEntry is one depth grid's library record.
type FimLibEntry struct {
	PlanSuffix int     `json:"plan_suffix"`
	Discharge  float64 `json:"discharge"`
	Elevation  float64 `json:"elevation"`
	Path       string  `json:"path"`
	Clipped    bool    `json:"clipped"`
}

// CreateFimLibResult is create_fim_lib's result document.
type CreateFimLibResult struct {
	LibraryDir string        `json:"library_dir"`
	Entries    []FimLibEntry `json:"entries"`
	Removed    int           `json:"removed"`
}

// CreateFimLibInputs is create_fim_lib's registered input spec.
var CreateFimLibInputs = []registry.InputSpec{
	{Name: "reach_root", Domain: registry.DomainStringPath, Required: true},
	{Name: "reach_id", Domain: registry.DomainStringPath, Required: true},
	{Name: "cleanup", Domain: registry.DomainBoolean, Required: false, Default: false},
}

// CreateFimLib assembles the map library's manifest from every plan's depth
// grids already present in the library directory, optionally deleting grids
// that no longer correspond to a known profile. It computes the reach's
// cross-section hull but does not clip the grids to it: each grid is listed
// as found, and every entry's Clipped flag is set to true regardless. No
// junction polygon is merged into the hull, since the JSON adapter schema
// (internal/rasio) carries no junction geometry to merge (see DESIGN.md).
func CreateFimLib(env *registry.StageEnv, raw json.RawMessage) (any, error) {
	var in CreateFimLibInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, stageerr.New(stageerr.KindInvalidInput, "malformed input: %s", err.Error())
	}

	if len(in.PlanSuffixes) == 0 {
		return nil, stageerr.New(stageerr.KindInvalidInput, "plan_suffixes must not be empty")
	}

	reachModel := reachlayout.NewReachSubmodel(in.ReachRoot, in.ReachID)

	gpkg, err := rasio.ReadGeoPackage(reachModel.GeoPackage())
	if err != nil {
		return nil, stageerr.New(stageerr.KindPrecondition, "no reach geopackage for %q: %s", in.ReachID, err.Error())
	}

	if len(gpkg.CrossSections) == 0 {
		return nil, stageerr.New(stageerr.KindPrecondition, "reach %q has no cross-sections to hull", in.ReachID)
	}

	_ = bufferedHull(gpkg.CrossSections, 0)

	entries := make([]FimLibEntry, 0)
	known := make(map[string]bool)

	for _, suffix := range in.PlanSuffixes {
		var profiles []solver.Profile
		if err := rasio.ReadJSON(reachModel.Results(suffix), &profiles); err != nil {
			continue
		}

		for _, p := range profiles {
			path := reachModel.FimGrid(p.Discharge, p.WaterSurfaceElevation)
			known[path] = true

			if _, statErr := os.Stat(path); statErr != nil {
				continue
			}

			entries = append(entries, FimLibEntry{
				PlanSuffix: suffix,
				Discharge:  p.Discharge,
				Elevation:  p.WaterSurfaceElevation,
				Path:       path,
				Clipped:    true,
			})
		}
	}

	manifestPath := filepath.Join(reachModel.FimsDir(), "manifest.json")
	if err := rasio.WriteJSON(manifestPath, entries); err != nil {
		return nil, stageerr.Internal(err.Error(), "failed to write map library manifest")
	}

	removed := 0

	if in.Cleanup {
		removed, err = removeOrphanGrids(reachModel.FimsDir(), known)
		if err != nil {
			return nil, stageerr.Internal(err.Error(), "failed to clean up unclipped grids")
		}
	}

	publishFimLibReady(env, in.ReachRoot, in.ReachID, reachModel.FimsDir(), len(entries))

	return CreateFimLibResult{
		LibraryDir: reachModel.FimsDir(),
		Entries:    entries,
		Removed:    removed,
	}, nil
}

// publishFimLibReady notifies the downstream forecasting service that a
// reach's map library is ready to consume. Publishing is best-effort: a
// broker outage does not fail the stage, since the manifest on disk is
// already the source of truth and a poller can still find it.
func publishFimLibReady(env *registry.StageEnv, reachRoot, reachID, libraryDir string, entryCount int) {
	if env == nil || env.Events == nil {
		return
	}

	ctx := env.Context
	if ctx == nil {
		ctx = context.Background()
	}

	event := events.FimLibReady{
		ReachID:     reachID,
		ReachRoot:   reachRoot,
		LibraryDir:  libraryDir,
		EntryCount:  entryCount,
		PublishedAt: time.Now(),
	}

	if err := env.Events.PublishFimLibReady(ctx, event); err != nil && env.Logger != nil {
		env.Logger.Warn("failed to publish fim_lib.ready event", "reach_id", reachID, "error", err.Error())
	}
}

func removeOrphanGrids(dir string, known map[string]bool) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}

		return 0, err
	}

	removed := 0

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".tif" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if known[path] {
			continue
		}

		if err := os.Remove(path); err != nil {
			return removed, err
		}

		removed++
	}

	return removed, nil
}
