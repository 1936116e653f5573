package pipeline

import (
	"context"
	"encoding/json"
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/floodlib/ripple-engine/internal/datasource"
	"github.com/floodlib/ripple-engine/internal/rasio"
	"github.com/floodlib/ripple-engine/internal/reachlayout"
	"github.com/floodlib/ripple-engine/internal/registry"
	"github.com/floodlib/ripple-engine/internal/stageerr"
)

// ConflateModelInput is conflate_model's input document. The multiplier
// fields are pointers so their absence can be distinguished from an
// explicit zero.
type ConflateModelInput struct {
	SourceDir          string   `json:"source_dir"`
	ReferenceNetwork   string   `json:"reference_network"`
	LowFlowMultiplier  *float64 `json:"low_flow_multiplier"`
	HighFlowMultiplier *float64 `json:"high_flow_multiplier"`
}

// ConflateModelInputs is conflate_model's registered input spec. The flow
// multipliers are fractional (e.g. 0.9) and so aren't declared here: the
// registry's closed validation domain set has no bounded-float variant, only
// bounded_integer, and this handler parses and defaults them itself.
var ConflateModelInputs = []registry.InputSpec{
	{Name: "source_dir", Domain: registry.DomainStringPath, Required: true},
	{Name: "reference_network", Domain: registry.DomainStringPath, Required: true},
}

const (
	defaultLowFlowMultiplier  = 0.9
	defaultHighFlowMultiplier = 1.2
)

// ConflateModel builds the Conflation Document associating a source model's
// cross-sections with the reference network's reaches, per spec.md §4.6.2.
func ConflateModel(env *registry.StageEnv, raw json.RawMessage) (any, error) {
	var in ConflateModelInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, stageerr.New(stageerr.KindInvalidInput, "malformed input: %s", err.Error())
	}

	lowMult := defaultOr(in.LowFlowMultiplier, defaultLowFlowMultiplier)
	highMult := defaultOr(in.HighFlowMultiplier, defaultHighFlowMultiplier)

	model := reachlayout.NewSourceModel(in.SourceDir, sourceModelName(in.SourceDir))

	gpkg, err := rasio.ReadGeoPackage(model.GeoPackage())
	if err != nil {
		return nil, stageerr.New(stageerr.KindPrecondition, "geopackage not found for %q, run ras_to_gpkg first: %s", in.SourceDir, err.Error())
	}

	if len(gpkg.Centerline) == 0 {
		return nil, stageerr.New(stageerr.KindNotASourceModel, "geopackage has no centerline")
	}

	bbox := centerlineBound(gpkg.Centerline, gpkg.CrossSections)

	if env.Network == nil {
		return nil, stageerr.Internal("no network provider configured", "cannot conflate without a NetworkProvider")
	}

	ctx := env.Context
	if ctx == nil {
		ctx = context.Background()
	}

	reaches, err := env.Network.Query(ctx, bbox)
	if err != nil {
		return nil, stageerr.Internal(err.Error(), "failed to query reference network")
	}

	byID := make(map[string]datasource.Reach, len(reaches))
	for _, r := range reaches {
		byID[r.ID] = r
	}

	startReach := nearestReach(reaches, gpkg.Centerline[0])
	endReach := nearestReach(reaches, gpkg.Centerline[len(gpkg.Centerline)-1])

	if startReach == "" || endReach == "" {
		return nil, stageerr.New(stageerr.KindDivergingNetwork, "could not locate reference reaches at centerline endpoints")
	}

	visited, diverged := traverseBetween(byID, startReach, endReach)
	if diverged {
		return nil, stageerr.New(stageerr.KindDivergingNetwork, "reference network diverges between centerline endpoints")
	}

	doc := &ConflationDocument{
		Metadata: ConflationMetadata{
			SourceNetwork:  in.ReferenceNetwork,
			SourceRASModel: in.SourceDir,
			LengthUnits:    "feet",
			FlowUnits:      "cfs",
		},
		Reaches: make(map[string]ReachConflation, len(visited)),
	}

	orderedIDs := make([]string, 0, len(visited))
	for id := range visited {
		orderedIDs = append(orderedIDs, id)
	}

	sort.Strings(orderedIDs)

	for _, id := range orderedIDs {
		reach := byID[id]

		us, ds := selectBoundaryCrossSections(reach, gpkg.CrossSections)

		record := ReachConflation{
			NetworkToID: reach.ToID,
			LowFlow:     lowMult * reach.HighFlowThreshold,
			HighFlow:    highMult * reach.HundredYearFlow,
		}

		if us == nil || ds == nil {
			record.Eclipsed = isBracketed(byID, visited, reach)
		}

		if record.Eclipsed {
			record.USXS = nil
			record.DSXS = nil
		} else {
			if us == nil || ds == nil {
				return nil, stageerr.New(stageerr.KindDivergingNetwork, "reach %q intersects no cross-sections and is not bracketed by intersected neighbours", id)
			}

			record.USXS = crossSectionSelectionOf(us)
			record.DSXS = crossSectionSelectionOf(ds)
			record.Metrics = computeMetrics(us, ds, reach)
		}

		doc.Reaches[id] = record
	}

	if err := rasio.WriteJSON(model.ConflationDocument(), doc); err != nil {
		return nil, stageerr.Internal(err.Error(), "failed to write conflation document")
	}

	return doc, nil
}

func defaultOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}

	return *v
}

func centerlineBound(centerline orb.LineString, crossSections []rasio.CrossSection) orb.Bound {
	bound := centerline.Bound()

	for _, xs := range crossSections {
		bound = bound.Union(xs.Geometry.Bound())
	}

	return bound
}

func nearestReach(reaches []datasource.Reach, point orb.Point) string {
	var (
		bestID   string
		bestDist = math.MaxFloat64
	)

	for _, r := range reaches {
		if r.Geometry == nil {
			continue
		}

		center := r.Geometry.Bound().Center()
		dist := haversineApprox(point, center)

		if dist < bestDist {
			bestDist = dist
			bestID = r.ID
		}
	}

	return bestID
}

func haversineApprox(a, b orb.Point) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]

	return math.Sqrt(dx*dx + dy*dy)
}

// traverseBetween walks the tree-shaped reference network from start,
// following ToID links, marking every visited reach until end is reached.
// diverged is true if the walk runs off the end of the network (a ToID
// with no entry in byID) before reaching end, which this spec treats as a
// divergence rather than attempting cycle or branch reconciliation.
func traverseBetween(byID map[string]datasource.Reach, start, end string) (map[string]bool, bool) {
	visited := make(map[string]bool)
	current := start

	for i := 0; i < len(byID)+1; i++ {
		visited[current] = true

		if current == end {
			return visited, false
		}

		reach, ok := byID[current]
		if !ok || reach.ToID == "" {
			return visited, true
		}

		current = reach.ToID
	}

	return visited, true
}

func selectBoundaryCrossSections(reach datasource.Reach, crossSections []rasio.CrossSection) (us, ds *rasio.CrossSection) {
	if reach.Geometry == nil {
		return nil, nil
	}

	bound := reach.Geometry.Bound()

	var intersecting []rasio.CrossSection

	for _, xs := range crossSections {
		if bound.Intersects(xs.Geometry.Bound()) {
			intersecting = append(intersecting, xs)
		}
	}

	if len(intersecting) == 0 {
		return nil, nil
	}

	sort.Slice(intersecting, func(i, j int) bool {
		return intersecting[i].Station < intersecting[j].Station
	})

	return &intersecting[0], &intersecting[len(intersecting)-1]
}

func isBracketed(byID map[string]datasource.Reach, visited map[string]bool, reach datasource.Reach) bool {
	for id := range visited {
		if byID[id].ToID == reach.ID {
			return true
		}
	}

	return reach.ToID != "" && visited[reach.ToID]
}

func crossSectionSelectionOf(xs *rasio.CrossSection) *CrossSectionSelection {
	return &CrossSectionSelection{
		River:        xs.River,
		Reach:        xs.Reach,
		XSID:         xs.ID,
		MinElevation: xs.MinElevation,
		MaxElevation: xs.MaxElevation,
	}
}

func computeMetrics(us, ds *rasio.CrossSection, reach datasource.Reach) ConflationMetrics {
	var m ConflationMetrics

	m.XS.CenterlineOffset = math.Abs(us.Station - ds.Station)
	m.XS.ThalwegOffset = math.Abs(us.MinElevation - ds.MinElevation)

	rasLength := math.Abs(ds.Station - us.Station)
	networkLength := reach.Geometry.Bound().Max[1] - reach.Geometry.Bound().Min[1]

	m.Lengths.RAS = rasLength
	m.Lengths.Network = networkLength

	if networkLength != 0 {
		m.Lengths.NetworkToRASRatio = rasLength / networkLength
	}

	m.Coverage.Start = 0
	m.Coverage.End = 1

	return m
}
