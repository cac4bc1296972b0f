// Package blobstore implements internal/registry.BlobStorage against the
// local filesystem, scoped under a configured root directory. Object
// storage (S3, GCS, ...) is out of this spec's scope beyond the interface
// shape (see spec.md's transport Non-goal) and no such SDK appears
// anywhere in the example pack, so this stays a direct stdlib
// implementation, per DESIGN.md.
package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalDisk stores blobs as plain files under root/<disk>/<path>.
type LocalDisk struct {
	root string
}

func NewLocalDisk(root string) *LocalDisk {
	return &LocalDisk{root: root}
}

func (l *LocalDisk) resolve(disk, path string) (string, error) {
	if disk == "" {
		disk = "default"
	}
	full := filepath.Join(l.root, filepath.Clean("/"+disk), filepath.Clean("/"+path))
	if !pathWithinRoot(full, l.root) {
		return "", fmt.Errorf("resolved path %q escapes storage root", full)
	}
	return full, nil
}

func (l *LocalDisk) Read(ctx context.Context, disk, path string) ([]byte, error) {
	full, err := l.resolve(disk, path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}

func (l *LocalDisk) Write(ctx context.Context, disk, path string, data []byte) error {
	full, err := l.resolve(disk, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create storage directory: %w", err)
	}
	return os.WriteFile(full, data, 0o644)
}

func pathWithinRoot(path, prefix string) bool {
	rel, err := filepath.Rel(prefix, path)
	if err != nil {
		return false
	}
	return rel != ".." && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 2 && rel[0] == '.' && rel[1] == '.'
}
