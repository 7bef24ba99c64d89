package tenanthost

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tetratelabs/wazero"
)

func TestRegistrySwapReplacesAndReturnsPrevious(t *testing.T) {
	reg := newRegistry()

	first := &tenantEntry{runtime: wazero.NewRuntime(context.Background())}
	prev := reg.swap("acme", first)
	assert.Nil(t, prev)

	got, ok := reg.get("acme")
	assert.True(t, ok)
	assert.Same(t, first, got)

	second := &tenantEntry{runtime: wazero.NewRuntime(context.Background())}
	prev = reg.swap("acme", second)
	assert.Same(t, first, prev)

	got, ok = reg.get("acme")
	assert.True(t, ok)
	assert.Same(t, second, got)
}

func TestRegistryGetMissing(t *testing.T) {
	reg := newRegistry()
	_, ok := reg.get("nobody")
	assert.False(t, ok)
}

func TestRegistryDelete(t *testing.T) {
	reg := newRegistry()
	entry := &tenantEntry{runtime: wazero.NewRuntime(context.Background())}
	reg.swap("acme", entry)

	deleted := reg.delete("acme")
	assert.Same(t, entry, deleted)

	_, ok := reg.get("acme")
	assert.False(t, ok)
}

func TestRegistryTenantIDs(t *testing.T) {
	reg := newRegistry()
	reg.swap("a", &tenantEntry{})
	reg.swap("b", &tenantEntry{})

	ids := reg.TenantIDs()
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}
