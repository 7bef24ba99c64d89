package tenanthost

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/mahd-dev/riwaq/pkg/tenanthost/modcache"
)

const (
	settingsDBConnExport = "settings_db_conn"
	requiredMemoryExport = "memory"
)

// Host is the multi-tenant WASM query host's public entry point: it
// loads tenants from a BlobStore, dials their database pools through a
// PoolDialer, and dispatches queries against whichever generation of
// each tenant's schema is currently live.
type Host struct {
	registry *Registry
	storage  BlobStore
	dialer   PoolDialer
	config   Config
	compiler CompilerKind
	logger   *zap.Logger
}

// NewHost builds a Host. Functional options (HostOption) override
// fields config alone cannot express.
func NewHost(cfg Config, storage BlobStore, dialer PoolDialer, logger *zap.Logger, opts ...HostOption) *Host {
	cfg.ApplyDefaults()
	h := &Host{
		registry: newRegistry(),
		storage:  storage,
		dialer:   dialer,
		config:   cfg,
		compiler: cfg.Compiler,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Reload performs the full reload procedure for one tenant: list its
// storage prefix, compile and instantiate every .wasm blob against a
// fresh Runtime and a fresh tenant environment, extract DDL and
// handlers, run migrations, and atomically swap the new generation into
// the registry. A loader or schema-build failure aborts the reload and
// leaves the tenant's previous generation (if any) untouched.
func (h *Host) Reload(ctx context.Context, tenantID string) error {
	entries, err := h.storage.List(ctx, tenantID)
	if err != nil {
		return &LoaderError{Kind: LoaderInstantiation, Module: tenantID, Cause: fmt.Errorf("listing storage: %w", err)}
	}

	runtimeConfig := wazero.NewRuntimeConfigCompiler()
	if h.compiler == CompilerFastBuild {
		runtimeConfig = wazero.NewRuntimeConfigInterpreter()
	}
	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)

	success := false
	defer func() {
		if !success {
			_ = runtime.Close(ctx)
		}
	}()

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		return &LoaderError{Kind: LoaderInstantiation, Module: tenantID, Cause: fmt.Errorf("instantiating WASI: %w", err)}
	}

	env := &tenantEnv{}
	imports := &hostImports{env: env, logger: h.logger}
	if err := imports.register(ctx, runtime); err != nil {
		return &LoaderError{Kind: LoaderInstantiation, Module: tenantID, Cause: fmt.Errorf("registering host imports: %w", err)}
	}

	sb := NewSchemaBuilder()
	var allDDL []TableDDL
	dialed := false
	cache := modcache.New(len(entries)+1, h.logger)

	for i, entry := range entries {
		if !strings.HasSuffix(entry.Name, ".wasm") || strings.HasPrefix(baseName(entry.Name), ",") {
			continue
		}

		bytes, err := h.storage.Read(ctx, entry.Name)
		if err != nil {
			return &LoaderError{Kind: LoaderInstantiation, Module: entry.Name, Cause: fmt.Errorf("reading blob: %w", err)}
		}

		hash := contentHash(bytes)
		compiled, err := cache.GetOrCompute(hash, func() (wazero.CompiledModule, error) {
			return runtime.CompileModule(ctx, bytes)
		})
		if err != nil {
			return &LoaderError{Kind: LoaderInstantiation, Module: entry.Name, Cause: err}
		}

		instanceName := fmt.Sprintf("%s#%d", entry.Name, i)
		mod, err := runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(instanceName))
		if err != nil {
			return &LoaderError{Kind: LoaderInstantiation, Module: entry.Name, Cause: err}
		}
		if mod.Memory() == nil {
			return &LoaderError{Kind: LoaderInstantiation, Module: entry.Name, Cause: fmt.Errorf("missing required %q export", requiredMemoryExport)}
		}
		if mod.ExportedFunction(guestAllocExport) == nil {
			return &LoaderError{Kind: LoaderInstantiation, Module: entry.Name, Cause: fmt.Errorf("missing required %q export", guestAllocExport)}
		}

		instanceLock := &sync.Mutex{}

		ddls := loadDDL(ctx, mod, instanceLock, h.logger)
		allDDL = append(allDDL, ddls...)

		if !dialed {
			settings, ok, err := readDBSettings(ctx, mod, instanceLock)
			if err != nil {
				return &LoaderError{Kind: LoaderInvalidMetadata, Module: entry.Name, Cause: err}
			}
			if !ok {
				settings = DBSettings{URL: substituteOrg(h.config.DefaultDBURLTemplate, tenantID)}
			}
			pool, err := h.dialer.Dial(ctx, tenantID, settings)
			if err != nil {
				return &LoaderError{Kind: LoaderInstantiation, Module: entry.Name, Cause: fmt.Errorf("dialing tenant pool: %w", err)}
			}
			env.setPool(pool)
			dialed = true
		}

		if err := linkHandlers(ctx, mod, sb, instanceLock); err != nil {
			return err
		}
	}

	schema, err := sb.Build()
	if err != nil {
		return err
	}

	// sb.Build succeeding guarantees at least one module was
	// instantiated and therefore that the dial step above ran.
	pool := env.getPool()

	if err := Migrate(ctx, pool, tenantID, allDDL, h.logger); err != nil {
		h.logger.Error("migration failed, schema swap proceeds regardless", zap.String("tenant", tenantID), zap.Error(err))
	}

	success = true
	h.registry.swap(tenantID, &tenantEntry{runtime: runtime, schema: schema, env: env})
	return nil
}

// requestIDKey carries a Query invocation's request ID through ctx so
// that host imports invoked mid-resolve (dbg, in particular) can log it
// alongside the guest's own message.
type requestIDKey struct{}

// requestIDFrom extracts the request ID stamped by Query, if any.
func requestIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok
}

// Query looks up tenantID's current schema under a read guard, resolves
// fieldName against the supplied JSON arguments, and returns the
// handler's raw JSON result. Every call is stamped with a fresh request
// ID, carried on ctx and logged on entry/failure, so a single
// invocation's log lines (including any guest dbg output) correlate.
func (h *Host) Query(ctx context.Context, tenantID, fieldName string, args json.RawMessage) (json.RawMessage, error) {
	requestID := uuid.New().String()
	ctx = context.WithValue(ctx, requestIDKey{}, requestID)
	logger := h.logger.With(zap.String("request_id", requestID), zap.String("tenant", tenantID), zap.String("field", fieldName))
	logger.Debug("query: received")

	entry, ok := h.registry.get(tenantID)
	if !ok {
		logger.Debug("query: unknown tenant")
		return nil, ErrTenantNotFound
	}

	field, ok := entry.schema.Field(fieldName)
	if !ok {
		logger.Debug("query: unknown field")
		return nil, ErrHandlerNotFound
	}

	var argsMap map[string]interface{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &argsMap); err != nil {
			logger.Warn("query: decoding arguments failed", zap.Error(err))
			return nil, &ABIError{Function: fieldName, Kind: ABIDecodeFailure, Cause: err}
		}
	}

	out, err := field.Resolve(ctx, argsMap)
	if err != nil {
		logger.Warn("query: resolve failed", zap.Error(err))
	}
	return out, err
}

// Schema returns tenantID's currently live schema, for introspection.
func (h *Host) Schema(tenantID string) (*Schema, bool) {
	entry, ok := h.registry.get(tenantID)
	if !ok {
		return nil, false
	}
	return entry.schema, true
}

// TenantIDs returns every currently loaded tenant.
func (h *Host) TenantIDs() []string {
	return h.registry.TenantIDs()
}

// Close tears down every tenant currently registered, closing each
// tenant's Runtime (which in turn closes every module instance it
// owns) and its database pool.
func (h *Host) Close(ctx context.Context) error {
	var firstErr error
	for _, id := range h.registry.TenantIDs() {
		entry := h.registry.delete(id)
		if entry == nil {
			continue
		}
		if pool := entry.env.getPool(); pool != nil {
			if err := pool.Close(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if err := entry.runtime.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// readDBSettings invokes the optional settings_db_conn export, if
// present, and decodes its result.
func readDBSettings(ctx context.Context, mod api.Module, instanceLock *sync.Mutex) (DBSettings, bool, error) {
	if mod.ExportedFunction(settingsDBConnExport) == nil {
		return DBSettings{}, false, nil
	}
	instanceLock.Lock()
	raw, err := callWasmNoArgs(ctx, mod, settingsDBConnExport)
	instanceLock.Unlock()
	if err != nil {
		return DBSettings{}, false, err
	}
	var settings DBSettings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return DBSettings{}, false, fmt.Errorf("decoding %s result: %w", settingsDBConnExport, err)
	}
	return settings, true, nil
}

func baseName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

func contentHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
