package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

func newTestStore(t *testing.T) *FSStore {
	t.Helper()
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestFSStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	body := "hello world"
	require.NoError(t, store.Put(ctx, testKey, strings.NewReader(body), int64(len(body))))

	rc, err := store.Open(ctx, testKey)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
}

func TestFSStore_ShardedLayout(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testKey, strings.NewReader("x"), 1))

	// root/b9/4d/b94d27...
	want := filepath.Join(store.root, testKey[0:2], testKey[2:4], testKey)
	_, err := os.Stat(want)
	assert.NoError(t, err)
}

func TestFSStore_OpenMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Open(context.Background(), testKey)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFSStore_PutOverwritesSameKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testKey, strings.NewReader("first"), 5))
	require.NoError(t, store.Put(ctx, testKey, strings.NewReader("second"), 6))

	rc, err := store.Open(ctx, testKey)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestFSStore_DeleteIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testKey, strings.NewReader("bytes"), 5))

	require.NoError(t, store.Delete(ctx, testKey))
	assert.NoError(t, store.Delete(ctx, testKey))

	_, err := store.Open(ctx, testKey)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFSStore_Exists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ok, err := store.Exists(ctx, testKey)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, testKey, strings.NewReader("here"), 4))

	ok, err = store.Exists(ctx, testKey)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFSStore_NoTempFilesLeftBehind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testKey, strings.NewReader("clean"), 5))

	dir := filepath.Join(store.root, testKey[0:2], testKey[2:4])
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, testKey, entries[0].Name())
}
