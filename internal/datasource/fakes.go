package datasource

import (
	"context"
	"fmt"
	"sync"

	"github.com/paulmach/orb"
)

// FakeNetworkProvider serves a fixed, in-memory set of reaches. Query
// returns every reach whose geometry bound intersects bbox; tests seed
// Reaches directly rather than going through a constructor so fixtures read
// as plain data.
type FakeNetworkProvider struct {
	Reaches []Reach
}

// Query implements NetworkProvider.
func (p *FakeNetworkProvider) Query(_ context.Context, bbox orb.Bound) ([]Reach, error) {
	var matched []Reach

	for _, r := range p.Reaches {
		if r.Geometry == nil {
			continue
		}

		if bbox.Intersects(r.Geometry.Bound()) {
			matched = append(matched, r)
		}
	}

	return matched, nil
}

// FakeDemProvider serves a single fixed tile regardless of the requested
// bbox/resolution/units, or returns Err if set. Stage tests that need
// TerrainOutOfBounds behavior set Err to ErrTerrainNotCovered.
type FakeDemProvider struct {
	Tile *RasterTile
	Err  error
}

// ErrTerrainNotCovered is a sentinel a FakeDemProvider can return to
// simulate a DEM source that does not cover the requested footprint.
var ErrTerrainNotCovered = fmt.Errorf("dem source does not cover requested bounds")

// Read implements DemProvider.
func (p *FakeDemProvider) Read(_ context.Context, bbox orb.Bound, resolution float64, units string) (*RasterTile, error) {
	if p.Err != nil {
		return nil, p.Err
	}

	if p.Tile != nil {
		return p.Tile, nil
	}

	return &RasterTile{Bounds: bbox, Resolution: resolution, Units: units}, nil
}

// FakeObjectStore is an in-memory ObjectStore for tests that don't need
// real disk I/O.
type FakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewFakeObjectStore returns an empty FakeObjectStore.
func NewFakeObjectStore() *FakeObjectStore {
	return &FakeObjectStore{objects: make(map[string][]byte)}
}

// Put implements ObjectStore.
func (s *FakeObjectStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[key] = cp

	return nil
}

// Get implements ObjectStore.
func (s *FakeObjectStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q: %w", key, ErrObjectNotFound)
	}

	return data, nil
}

var (
	_ NetworkProvider = (*FakeNetworkProvider)(nil)
	_ DemProvider     = (*FakeDemProvider)(nil)
	_ ObjectStore     = (*FakeObjectStore)(nil)
	_ ObjectStore     = (*LocalObjectStore)(nil)
)
