// Package rasio is the pluggable adapter over the source model's on-disk
// geometry, plan, and flow containers. spec.md treats those containers'
// binary formats as opaque, external to the engine's scope, exposing only
// "a documented set of fields the engine must read/write via a pluggable
// adapter" — this package is that adapter, backed by a JSON encoding of
// exactly those fields rather than the real HEC-RAS binary layout.
package rasio

import (
	"github.com/paulmach/orb"
)

// CrossSection is one polyline across the river, carrying the station and
// elevation samples the solver and terrain stages need.
type CrossSection struct {
	ID           string         `json:"id"`
	River        string         `json:"river"`
	Reach        string         `json:"reach"`
	Station      float64        `json:"station"`
	Geometry     orb.LineString `json:"geometry"`
	MinElevation float64        `json:"min_elevation"`
	MaxElevation float64        `json:"max_elevation"`
}

// Structure is a hydraulic structure (bridge, culvert, weir) located at a station.
type Structure struct {
	ID      string  `json:"id"`
	Station float64 `json:"station"`
}

// Junction is a confluence where one or more upstream reaches join a downstream reach.
type Junction struct {
	ID              string   `json:"id"`
	UpstreamReaches []string `json:"upstream_reaches"`
	DownstreamReach string   `json:"downstream_reach"`
}

// GeometryDocument is a source model's or reach submodel's full geometric content.
type GeometryDocument struct {
	CrossSections []CrossSection `json:"cross_sections"`
	Centerline    orb.LineString `json:"centerline"`
	Structures    []Structure    `json:"structures"`
	Junctions     []Junction     `json:"junctions"`
}

// PlanDocument names one candidate simulation plan within a source model.
type PlanDocument struct {
	Suffix           string `json:"suffix"`
	GeometryFile     string `json:"geometry_file"`
	FlowFile         string `json:"flow_file"`
	Active           bool   `json:"active"`
	HasEncroachments bool   `json:"has_encroachments"`
}

// FlowDocument is a plan's discharge/boundary content.
type FlowDocument struct {
	Suffix          string    `json:"suffix"`
	SteadyState     bool      `json:"steady_state"`
	Discharges      []float64 `json:"discharges"`
	DownstreamSlope float64   `json:"downstream_slope,omitempty"`
	DownstreamWSE   *float64  `json:"downstream_wse,omitempty"`
}

// ProjectDocument is a source model's top-level project record: its
// coordinate system and the full set of plan candidates ras_to_gpkg
// chooses among.
type ProjectDocument struct {
	CRS         string         `json:"crs"`
	Plans       []PlanDocument `json:"plans"`
	PrimaryPlan string         `json:"primary_plan,omitempty"`
}

// GeoPackageDocument is ras_to_gpkg's output: the extracted network
// geometry plus a non-spatial metadata record, addressed at a source
// model's or reach submodel's <name>.gpkg path.
type GeoPackageDocument struct {
	CRS           string         `json:"crs"`
	CrossSections []CrossSection `json:"cross_sections"`
	Centerline    orb.LineString `json:"centerline"`
	Structures    []Structure    `json:"structures"`
	Junctions     []Junction     `json:"junctions"`
	Metadata      map[string]any `json:"metadata"`
}
