// Package storage is the blob-store boundary for product images: save a
// blob under a key and get back a publicly resolvable URL, delete by the
// same key. The local filesystem implementation backs the /uploads static
// route served by the HTTP layer.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalImageStore stores blobs as files under a single directory
type LocalImageStore struct {
	dir          string
	publicPrefix string
}

// NewLocalImageStore creates the backing directory if needed
func NewLocalImageStore(dir, publicPrefix string) (*LocalImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &LocalImageStore{dir: dir, publicPrefix: strings.TrimSuffix(publicPrefix, "/")}, nil
}

// Save writes the blob under key and returns its public URL
func (s *LocalImageStore) Save(ctx context.Context, key string, r io.Reader) (string, error) {
	key = sanitizeKey(key)
	if key == "" {
		return "", fmt.Errorf("empty image key")
	}

	f, err := os.Create(filepath.Join(s.dir, key))
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	return s.publicPrefix + "/" + key, nil
}

// Delete removes the blob stored under key. Deleting a missing key is not
// an error.
func (s *LocalImageStore) Delete(ctx context.Context, key string) error {
	key = sanitizeKey(key)
	if key == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// KeyFromURL recovers the storage key from a URL produced by Save
func (s *LocalImageStore) KeyFromURL(url string) string {
	return path.Base(url)
}

// sanitizeKey strips any path components so a key cannot escape the
// storage directory.
func sanitizeKey(key string) string {
	key = path.Base(strings.ReplaceAll(key, "\\", "/"))
	if key == "." || key == "/" {
		return ""
	}
	return key
}
