package tenanthost

import (
	"sync"

	"github.com/tetratelabs/wazero"
)

// tenantEntry bundles everything one tenant's live generation owns: the
// wazero.Runtime its modules were compiled and instantiated in, the
// schema synthesized from them, and the tenant environment the
// instances' host imports close over. Closing entry.runtime tears down
// every instance it owns. The registry itself never closes an entry:
// swap hands back the generation it replaced without closing it, and
// only Host.Close closes the generations still registered at shutdown.
type tenantEntry struct {
	runtime wazero.Runtime
	schema  *Schema
	env     *tenantEnv
}

// Registry is the tenant-id → tenantEntry map, protected by a
// readers-writer lock: the request path acquires a read guard,
// takes the (cheap, shared-ownership) schema reference, and drops the
// guard before executing the query; reloads acquire the write guard
// only for the swap itself.
type Registry struct {
	mu      sync.RWMutex
	tenants map[string]*tenantEntry
}

func newRegistry() *Registry {
	return &Registry{tenants: make(map[string]*tenantEntry)}
}

func (r *Registry) get(tenantID string) (*tenantEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tenants[tenantID]
	return e, ok
}

// swap installs entry as tenantID's new generation, returning whatever
// generation it replaced (nil if this is the tenant's first reload).
func (r *Registry) swap(tenantID string, entry *tenantEntry) *tenantEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.tenants[tenantID]
	r.tenants[tenantID] = entry
	return prev
}

func (r *Registry) delete(tenantID string) *tenantEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.tenants[tenantID]
	delete(r.tenants, tenantID)
	return prev
}

// TenantIDs returns every currently registered tenant id.
func (r *Registry) TenantIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.tenants))
	for id := range r.tenants {
		ids = append(ids, id)
	}
	return ids
}
