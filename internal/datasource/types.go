// Package datasource defines the adapters a pipeline stage uses to reach
// outside its reach submodel directory: the reference hydrologic network,
// a digital elevation model source, and an optional remote object catalog.
// Production implementations live behind these interfaces so stage tests
// run against fixture-backed fakes instead of live services.
package datasource

import (
	"context"

	"github.com/paulmach/orb"
)

// Reach is one segment of the reference hydrologic network, as returned by
// a NetworkProvider query.
type Reach struct {
	ID                string
	Geometry          orb.Geometry
	ToID              string
	HighFlowThreshold float64
	HundredYearFlow   float64
}

// RasterTile is a clipped elevation raster returned by a DemProvider read.
// Data holds the tile's encoded raster bytes (GeoTIFF); callers that need
// pixel values decode it with the terrain stage's own raster reader.
type RasterTile struct {
	Bounds     orb.Bound
	Resolution float64
	Units      string
	Data       []byte
}

// NetworkProvider queries the reference hydrologic network for reaches
// intersecting a bounding box.
type NetworkProvider interface {
	Query(ctx context.Context, bbox orb.Bound) ([]Reach, error)
}

// DemProvider reads a clipped elevation raster covering a bounding box at
// the requested resolution and unit system.
type DemProvider interface {
	Read(ctx context.Context, bbox orb.Bound, resolution float64, units string) (*RasterTile, error)
}

// ObjectStore is an optional remote catalog used only by stages that export
// artifacts outside the reach data layout (spec.md marks this adapter
// optional; a stage that has no configured ObjectStore skips the export).
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}
