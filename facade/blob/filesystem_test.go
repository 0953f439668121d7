package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFilesystem(t *testing.T) {
	ctx := context.Background()
	driver, err := NewLocalFilesystem(t.TempDir() + "/blobs")
	require.NoError(t, err)

	_, err = driver.Get(ctx, "/product/1/image")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, driver.Put(ctx, "/product/1/image", []byte("first")))
	require.NoError(t, driver.Put(ctx, "/product/1/image", []byte("second")))
	data, err := driver.Get(ctx, "/product/1/image")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)

	require.NoError(t, driver.Delete(ctx, "/product/1/image"))
	require.NoError(t, driver.Delete(ctx, "/product/1/image"))
	_, err = driver.Get(ctx, "/product/1/image")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, driver.Put(ctx, "/product/2/image", []byte("a")))
	require.NoError(t, driver.Put(ctx, "/product/2/thumbnail", []byte("b")))
	require.NoError(t, driver.DeleteAllWithPrefix(ctx, "/product/2/"))
	_, err = driver.Get(ctx, "/product/2/image")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = driver.Get(ctx, "/product/2/thumbnail")
	assert.ErrorIs(t, err, ErrNotFound)
}
