package tenanthost

import (
	"fmt"
	"strings"
)

// CompilerKind selects the wazero compilation strategy.
type CompilerKind string

const (
	// CompilerOptimizing ahead-of-time compiles modules to native code.
	CompilerOptimizing CompilerKind = "optimizing"
	// CompilerFastBuild uses wazero's interpreter, trading run speed for
	// near-instant compilation, useful for hot-reload-heavy development.
	CompilerFastBuild CompilerKind = "fast_build"
)

// StorageKind selects which BlobStore backend a tenant's storage root
// resolves to.
type StorageKind string

const (
	StorageFS        StorageKind = "fs"
	StorageS3        StorageKind = "s3"
	StorageAzureBlob StorageKind = "azureblob"
	StorageGCS       StorageKind = "gcs"
	StorageWebDAV    StorageKind = "webdav"
	StorageOSS       StorageKind = "oss"
)

// StorageLayout names whether a tenant id maps to a path prefix under a
// shared root or to its own bucket/container name. It is defaulted and
// validated, but nothing in this module reads it: Host.Reload always
// lists the BlobStore with the tenant id as the prefix, and no
// per-tenant bucket is selected.
type StorageLayout string

const (
	LayoutDirectory StorageLayout = "directory"
	LayoutBucket    StorageLayout = "bucket"
)

// Config is the core's boot-time configuration: yaml-tagged fields
// grouped by concern, with defaulting and validation split into their
// own methods rather than folded into construction.
type Config struct {
	// Storage
	StorageKind   StorageKind   `yaml:"storage_kind"`
	StorageLayout StorageLayout `yaml:"storage_layout"`
	StorageRoot   string        `yaml:"storage_root"`

	// Wasm engine
	Compiler CompilerKind `yaml:"compiler"`

	// Database
	DefaultDBURLTemplate string `yaml:"default_db_url_template"`

	// Reload
	ReloadDebounce string `yaml:"reload_debounce"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns a Config with every field set to its production
// default.
func DefaultConfig() Config {
	return Config{
		StorageKind:          StorageFS,
		StorageLayout:        LayoutDirectory,
		StorageRoot:          "./tenants",
		Compiler:             CompilerOptimizing,
		DefaultDBURLTemplate: "clickhouse://localhost:9000/{{org}}",
		ReloadDebounce:       "250ms",
		LogLevel:             "info",
	}
}

// ApplyDefaults backfills zero-value fields from DefaultConfig, leaving
// explicitly set fields untouched.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.StorageKind == "" {
		c.StorageKind = d.StorageKind
	}
	if c.StorageLayout == "" {
		c.StorageLayout = d.StorageLayout
	}
	if c.StorageRoot == "" {
		c.StorageRoot = d.StorageRoot
	}
	if c.Compiler == "" {
		c.Compiler = d.Compiler
	}
	if c.DefaultDBURLTemplate == "" {
		c.DefaultDBURLTemplate = d.DefaultDBURLTemplate
	}
	if c.ReloadDebounce == "" {
		c.ReloadDebounce = d.ReloadDebounce
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

// Validate accumulates every configuration violation rather than
// stopping at the first, so a misconfigured deploy reports everything
// wrong in one pass.
func (c *Config) Validate() []error {
	var errs []error

	switch c.StorageKind {
	case StorageFS, StorageS3, StorageAzureBlob, StorageGCS, StorageWebDAV, StorageOSS:
	default:
		errs = append(errs, fmt.Errorf("storage_kind: unknown value %q", c.StorageKind))
	}

	switch c.StorageLayout {
	case LayoutDirectory, LayoutBucket:
	default:
		errs = append(errs, fmt.Errorf("storage_layout: unknown value %q", c.StorageLayout))
	}

	if strings.TrimSpace(c.StorageRoot) == "" {
		errs = append(errs, fmt.Errorf("storage_root: must not be empty"))
	}

	switch c.Compiler {
	case CompilerOptimizing, CompilerFastBuild:
	default:
		errs = append(errs, fmt.Errorf("compiler: unknown value %q", c.Compiler))
	}

	if !strings.Contains(c.DefaultDBURLTemplate, "{{org}}") {
		errs = append(errs, fmt.Errorf("default_db_url_template: must contain the {{org}} placeholder"))
	}

	return errs
}

// substituteOrg replaces every occurrence of the {{org}} placeholder in
// a DSN template with the tenant id.
func substituteOrg(template, tenantID string) string {
	return strings.ReplaceAll(template, "{{org}}", tenantID)
}

// HostOption configures optional collaborators of a Host via the
// functional-options pattern.
type HostOption func(*Host)

// WithCompiler overrides the compiler strategy set in Config.
func WithCompiler(kind CompilerKind) HostOption {
	return func(h *Host) { h.compiler = kind }
}

// WithDialer overrides the PoolDialer used to obtain per-tenant database
// connection pools.
func WithDialer(d PoolDialer) HostOption {
	return func(h *Host) { h.dialer = d }
}
