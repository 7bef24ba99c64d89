// Package fs implements tenanthost.BlobStore against the local
// filesystem: the default storage backend for development and
// single-node deployments.
package fs

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mahd-dev/riwaq/pkg/tenanthost"
)

// Store reads tenant storage rooted at Root, where each tenant
// corresponds to a subdirectory named after its tenant id.
type Store struct {
	Root string
}

// New returns a Store rooted at root.
func New(root string) *Store {
	return &Store{Root: root}
}

// List returns every regular file under Root/prefix, recursively, with
// names relative to Root.
func (s *Store) List(ctx context.Context, prefix string) ([]tenanthost.BlobEntry, error) {
	root := filepath.Join(s.Root, prefix)
	var entries []tenanthost.BlobEntry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.Root, path)
		if err != nil {
			return err
		}
		entries = append(entries, tenanthost.BlobEntry{Name: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Read returns the full contents of Root/path.
func (s *Store) Read(ctx context.Context, path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(path)))
}
