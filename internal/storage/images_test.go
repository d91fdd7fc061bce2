package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalImageStore(dir, "/uploads")
	require.NoError(t, err)

	ctx := context.Background()
	url, err := store.Save(ctx, "123_photo.png", strings.NewReader("imagedata"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/123_photo.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "123_photo.png"))
	require.NoError(t, err)
	assert.Equal(t, "imagedata", string(data))

	require.NoError(t, store.Delete(ctx, "123_photo.png"))
	_, err = os.Stat(filepath.Join(dir, "123_photo.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestDeleteMissingIsNoError(t *testing.T) {
	store, err := NewLocalImageStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	assert.NoError(t, store.Delete(context.Background(), "never-existed.png"))
}

func TestSaveStripsPathComponents(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalImageStore(dir, "/uploads")
	require.NoError(t, err)

	url, err := store.Save(context.Background(), "../../etc/passwd", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/passwd", url)

	_, err = os.Stat(filepath.Join(dir, "passwd"))
	assert.NoError(t, err)
}

func TestKeyFromURL(t *testing.T) {
	store, err := NewLocalImageStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	assert.Equal(t, "123_photo.png", store.KeyFromURL("/uploads/123_photo.png"))
	assert.Equal(t, "photo.png", store.KeyFromURL("photo.png"))
}
