package datasource_test

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodlib/ripple-engine/internal/datasource"
)

func TestFakeNetworkProvider_QueryIntersecting(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	inside := orb.LineString{{-96.5, 30.5}, {-96.4, 30.6}}
	outside := orb.LineString{{10, 10}, {11, 11}}

	p := &datasource.FakeNetworkProvider{
		Reaches: []datasource.Reach{
			{ID: "1010", Geometry: inside, HighFlowThreshold: 500, HundredYearFlow: 4200},
			{ID: "9999", Geometry: outside},
		},
	}

	bbox := orb.Bound{Min: orb.Point{-97, 30}, Max: orb.Point{-96, 31}}

	reaches, err := p.Query(context.Background(), bbox)
	require.NoError(t, err)
	require.Len(t, reaches, 1)
	assert.Equal(t, "1010", reaches[0].ID)
}

func TestFakeDemProvider_ReturnsConfiguredError(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	p := &datasource.FakeDemProvider{Err: datasource.ErrTerrainNotCovered}

	_, err := p.Read(context.Background(), orb.Bound{}, 1.0, "meters")
	assert.ErrorIs(t, err, datasource.ErrTerrainNotCovered)
}

func TestFakeDemProvider_ReturnsDefaultTile(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	p := &datasource.FakeDemProvider{}

	bbox := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}

	tile, err := p.Read(context.Background(), bbox, 10, "feet")
	require.NoError(t, err)
	assert.Equal(t, bbox, tile.Bounds)
	assert.Equal(t, "feet", tile.Units)
}

func TestFakeObjectStore_PutGet(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store := datasource.NewFakeObjectStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "reach/1010.tif", []byte("bytes")))

	data, err := store.Get(ctx, "reach/1010.tif")
	require.NoError(t, err)
	assert.Equal(t, "bytes", string(data))

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, datasource.ErrObjectNotFound)
}
