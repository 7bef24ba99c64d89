package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahd-dev/riwaq/pkg/blobstore/fs"
	"github.com/mahd-dev/riwaq/pkg/tenanthost"
)

func TestLoadConfigBackfillsDefaultsWithNoFile(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, tenanthost.StorageFS, cfg.StorageKind)
	assert.Equal(t, "./tenants", cfg.StorageRoot)
}

func TestLoadConfigReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "riwaq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage_root: /srv/tenants\nlog_level: debug\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/tenants", cfg.StorageRoot)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigMissingFileIsError(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadConfigInvalidValueIsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "riwaq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage_kind: carrier-pigeon\n"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigUnknownKeyIsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "riwaq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage_root: /srv/tenants\nstoragee_root: typo\n"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigEnvOverridesFileOnlyWhenSet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "riwaq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage_root: /srv/tenants\nlog_level: debug\n"), 0o644))

	t.Setenv("RIWAQ_STORAGE_ROOT", "/override/tenants")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/override/tenants", cfg.StorageRoot)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestNewLoggerParsesLevel(t *testing.T) {
	cfg := tenanthost.DefaultConfig()
	cfg.LogLevel = "warn"
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewLoggerInvalidLevelIsError(t *testing.T) {
	cfg := tenanthost.DefaultConfig()
	cfg.LogLevel = "not-a-level"
	_, err := NewLogger(cfg)
	require.Error(t, err)
}

func TestNewBlobStoreFS(t *testing.T) {
	cfg := tenanthost.DefaultConfig()
	cfg.StorageKind = tenanthost.StorageFS
	cfg.StorageRoot = "/srv/tenants"

	store, err := NewBlobStore(cfg)
	require.NoError(t, err)
	assert.Equal(t, fs.New("/srv/tenants"), store)
}

func TestNewBlobStoreUnsupportedKind(t *testing.T) {
	cfg := tenanthost.DefaultConfig()
	cfg.StorageKind = tenanthost.StorageS3

	_, err := NewBlobStore(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, tenanthost.ErrStorageKindUnsupported)
}
