// ABOUTME: Filesystem-backed document accessor: resolves a storage_path to
// ABOUTME: bytes and a content type, confined to the configured root.
package extract

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// FSFetcher fetches document content from a directory tree. It refuses paths
// that escape the root.
type FSFetcher struct {
	root string
}

// NewFSFetcher creates a fetcher rooted at dir.
func NewFSFetcher(dir string) *FSFetcher {
	return &FSFetcher{root: dir}
}

// Fetch returns the document bytes and a content type derived from the
// file extension.
func (f *FSFetcher) Fetch(_ context.Context, storagePath string) ([]byte, string, error) {
	clean := filepath.Clean("/" + storagePath)
	full := filepath.Join(f.root, clean)
	if !strings.HasPrefix(full, filepath.Clean(f.root)+string(os.PathSeparator)) {
		return nil, "", fmt.Errorf("storage path %q escapes document root", storagePath)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, "", fmt.Errorf("read document %q: %w", storagePath, err)
	}
	ct := mime.TypeByExtension(filepath.Ext(full))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return data, ct, nil
}
