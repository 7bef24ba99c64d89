package tenanthost

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaultsBackfillsOnlyZeroFields(t *testing.T) {
	cfg := Config{StorageRoot: "/custom"}
	cfg.ApplyDefaults()

	assert.Equal(t, "/custom", cfg.StorageRoot)
	assert.Equal(t, StorageFS, cfg.StorageKind)
	assert.Equal(t, LayoutDirectory, cfg.StorageLayout)
	assert.Equal(t, CompilerOptimizing, cfg.Compiler)
	assert.Equal(t, "250ms", cfg.ReloadDebounce)
}

func TestValidateAccumulatesAllErrors(t *testing.T) {
	cfg := Config{
		StorageKind:          "bogus",
		StorageLayout:        "bogus",
		StorageRoot:          "  ",
		Compiler:             "bogus",
		DefaultDBURLTemplate: "no placeholder here",
	}
	errs := cfg.Validate()
	require.Len(t, errs, 5)
}

func TestValidateDefaultConfigIsClean(t *testing.T) {
	cfg := DefaultConfig()
	assert.Empty(t, cfg.Validate())
}

func TestSubstituteOrg(t *testing.T) {
	got := substituteOrg("clickhouse://localhost:9000/{{org}}", "acme")
	assert.Equal(t, "clickhouse://localhost:9000/acme", got)
}

func TestHostOptions(t *testing.T) {
	h := &Host{}
	WithCompiler(CompilerFastBuild)(h)
	assert.Equal(t, CompilerFastBuild, h.compiler)

	dialer := fakeDialer{}
	WithDialer(dialer)(h)
	assert.Equal(t, dialer, h.dialer)
}

type fakeDialer struct{}

func (fakeDialer) Dial(ctx context.Context, tenantID string, settings DBSettings) (Pool, error) {
	return nil, nil
}
