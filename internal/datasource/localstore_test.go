package datasource_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodlib/ripple-engine/internal/datasource"
)

func TestLocalObjectStore_PutGet(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	ctx := context.Background()
	store, err := datasource.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "1010/fims/100-250.tif", []byte("raster bytes")))

	data, err := store.Get(ctx, "1010/fims/100-250.tif")
	require.NoError(t, err)
	assert.Equal(t, "raster bytes", string(data))
}

func TestLocalObjectStore_GetMissing(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store, err := datasource.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "does/not/exist.tif")
	assert.ErrorIs(t, err, datasource.ErrObjectNotFound)
}

func TestLocalObjectStore_RejectsEscapingKey(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store, err := datasource.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	err = store.Put(context.Background(), "../escape.tif", []byte("x"))
	assert.Error(t, err)
}

func TestLocalObjectStore_CreatesRoot(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	dir := filepath.Join(t.TempDir(), "nested", "store")

	_, err := datasource.NewLocalObjectStore(dir)
	require.NoError(t, err)
}
