// Package bootstrap wires boot-time collaborators together: it loads a
// tenanthost.Config from layered sources (env > file, file decoded
// strictly via yaml.v3), and constructs the concrete BlobStore and
// PoolDialer the configured StorageKind and database settings call
// for. Lives outside pkg/tenanthost as ambient CLI/config glue, not
// part of the reusable host library.
package bootstrap

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mahd-dev/riwaq/pkg/blobstore/fs"
	"github.com/mahd-dev/riwaq/pkg/sqldriver/clickhouse"
	"github.com/mahd-dev/riwaq/pkg/tenanthost"
)

// LoadConfig reads a tenanthost.Config from configPath (if non-empty),
// layers environment variables prefixed RIWAQ_ on top, and finally
// backfills defaults. The file, when given, is decoded with
// yaml.Decoder.KnownFields(true) so a typo'd config key is a load
// error instead of a silently ignored field.
func LoadConfig(configPath string) (tenanthost.Config, error) {
	var cfg tenanthost.Config

	if configPath != "" {
		f, err := os.Open(configPath)
		if err != nil {
			return tenanthost.Config{}, fmt.Errorf("bootstrap: opening config %q: %w", configPath, err)
		}
		defer f.Close()

		decoder := yaml.NewDecoder(f)
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return tenanthost.Config{}, fmt.Errorf("bootstrap: decoding config %q: %w", configPath, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("RIWAQ")
	v.AutomaticEnv()
	overrideFromEnv(v, "storage_kind", (*string)(&cfg.StorageKind))
	overrideFromEnv(v, "storage_layout", (*string)(&cfg.StorageLayout))
	overrideFromEnv(v, "storage_root", &cfg.StorageRoot)
	overrideFromEnv(v, "compiler", (*string)(&cfg.Compiler))
	overrideFromEnv(v, "default_db_url_template", &cfg.DefaultDBURLTemplate)
	overrideFromEnv(v, "reload_debounce", &cfg.ReloadDebounce)
	overrideFromEnv(v, "log_level", &cfg.LogLevel)

	cfg.ApplyDefaults()

	if errs := cfg.Validate(); len(errs) > 0 {
		return tenanthost.Config{}, fmt.Errorf("bootstrap: invalid configuration: %v", errs)
	}
	return cfg, nil
}

// overrideFromEnv sets *dst from the RIWAQ_-prefixed environment
// variable named key, if and only if that variable is actually set —
// an unset variable must never clobber a value the config file already
// decoded.
func overrideFromEnv(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

// NewLogger builds a *zap.Logger at the level named by cfg.LogLevel.
func NewLogger(cfg tenanthost.Config) (*zap.Logger, error) {
	var level zap.AtomicLevel
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("bootstrap: parsing log_level %q: %w", cfg.LogLevel, err)
	}
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = level
	return zapCfg.Build()
}

// NewBlobStore constructs the BlobStore implementation cfg.StorageKind
// selects. Only fs is implemented purely from configuration; the cloud
// backends (pkg/blobstore/s3, azureblob, gcs) each expose their own
// New constructor that takes an already-built SDK session, client or
// credential (s3 and gcs also take a bucket name, azureblob a container
// URL), since that construction needs operator
// secrets this package has no business holding — selecting one of
// those kinds here returns ErrStorageKindUnsupported, a documented gap
// rather than a silent one.
func NewBlobStore(cfg tenanthost.Config) (tenanthost.BlobStore, error) {
	switch cfg.StorageKind {
	case tenanthost.StorageFS:
		return fs.New(cfg.StorageRoot), nil
	default:
		return nil, fmt.Errorf("%w: %q (construct it directly via pkg/blobstore/%s and pass it to tenanthost.NewHost)", tenanthost.ErrStorageKindUnsupported, cfg.StorageKind, cfg.StorageKind)
	}
}

// NewDialer constructs the default production PoolDialer.
func NewDialer(logger *zap.Logger) tenanthost.PoolDialer {
	return clickhouse.NewDialer(logger)
}
