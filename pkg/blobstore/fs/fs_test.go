package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreReadReturnsFileContents(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "acme"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "acme", "guest.wasm"), []byte("binary"), 0o644))

	store := New(root)
	b, err := store.Read(context.Background(), "acme/guest.wasm")
	require.NoError(t, err)
	assert.Equal(t, []byte("binary"), b)
}

func TestStoreReadMissingFileIsError(t *testing.T) {
	store := New(t.TempDir())
	_, err := store.Read(context.Background(), "acme/missing.wasm")
	require.Error(t, err)
}

func TestStoreListRecursesUnderPrefix(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "acme", "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "acme", "guest.wasm"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "acme", "nested", "extra.wasm"), []byte("b"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "other"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "other", "guest.wasm"), []byte("c"), 0o644))

	store := New(root)
	entries, err := store.List(context.Background(), "acme")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.ElementsMatch(t, []string{"acme/guest.wasm", "acme/nested/extra.wasm"}, names)
}

func TestStoreListMissingPrefixReturnsEmpty(t *testing.T) {
	store := New(t.TempDir())
	entries, err := store.List(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
