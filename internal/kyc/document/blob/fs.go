// Package blob stores raw document bytes. The filesystem store is the
// default; the MinIO store backs deployments with shared object storage.
package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FS writes blobs under a base directory on the local filesystem.
type FS struct {
	baseDir string
}

func NewFS(baseDir string) *FS {
	return &FS{baseDir: baseDir}
}

func (f *FS) Write(_ context.Context, name string, data []byte) (string, error) {
	path := filepath.Join(f.baseDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

func (f *FS) Read(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}
