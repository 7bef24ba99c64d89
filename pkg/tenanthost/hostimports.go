package tenanthost

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// tenantEnv is the guest environment's database binding: a weak
// back-reference the host imports close over, carrying the tenant's DB
// pool as an interior-mutable cell. It is written exactly once, during
// load, immediately after the pool's settings are known, and read many
// times thereafter by both resolvers and the data-plane imports — no
// lock is needed on the read path beyond the RWMutex guarding the one
// write/many-read access pattern.
type tenantEnv struct {
	mu   sync.RWMutex
	pool Pool
}

func (e *tenantEnv) setPool(p Pool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pool = p
}

func (e *tenantEnv) getPool() Pool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pool
}

// hostImports implements the four data-plane imports plus dbg, bound to
// one tenant's environment. wazero hands every host function its
// calling module directly, so no separate lazy memory/allocator cell
// is needed here — only the DB pool
// genuinely requires the "write once post-instantiation" lazy-cell
// pattern described in the design notes, since it depends on reading a
// module export that doesn't exist until after instantiation.
type hostImports struct {
	env    *tenantEnv
	logger *zap.Logger
}

// register installs the env host module — sql_exec, sql_query,
// custom_sql_exec, custom_sql_query, dbg — into runtime. Each tenant
// owns its own wazero.Runtime (see engine.go), so "env" is instantiated
// exactly once per tenant and never collides with another tenant's
// imports.
func (h *hostImports) register(ctx context.Context, runtime wazero.Runtime) error {
	_, err := runtime.NewHostModuleBuilder("env").
		NewFunctionBuilder().WithFunc(h.sqlExec).Export("sql_exec").
		NewFunctionBuilder().WithFunc(h.sqlQuery).Export("sql_query").
		NewFunctionBuilder().WithFunc(h.customSQLExec).Export("custom_sql_exec").
		NewFunctionBuilder().WithFunc(h.customSQLQuery).Export("custom_sql_query").
		NewFunctionBuilder().WithFunc(h.dbg).Export("dbg").
		Instantiate(ctx)
	return err
}

func (h *hostImports) sqlExec(ctx context.Context, mod api.Module, ptr uint32) uint32 {
	return h.respond(ctx, mod, "sql_exec", ptr, func(raw string) dataPlaneResponse {
		var req ExecRequest
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			return errorResponse("sql_exec", err)
		}
		conn, err := h.conn(ctx)
		if err != nil {
			return errorResponse("sql_exec", err)
		}
		stmt, err := renderExec(req)
		if err != nil {
			return errorResponse("sql_exec", err)
		}
		result, err := conn.Exec(ctx, stmt)
		if err != nil {
			return errorResponse("sql_exec", err)
		}
		return dataPlaneResponse{OK: true, Data: result.RowsAffected}
	})
}

func (h *hostImports) sqlQuery(ctx context.Context, mod api.Module, ptr uint32) uint32 {
	return h.respond(ctx, mod, "sql_query", ptr, func(raw string) dataPlaneResponse {
		var req SelectRequest
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			return errorResponse("sql_query", err)
		}
		conn, err := h.conn(ctx)
		if err != nil {
			return errorResponse("sql_query", err)
		}
		rows, err := conn.All(ctx, req)
		if err != nil {
			return errorResponse("sql_query", err)
		}
		return dataPlaneResponse{OK: true, Data: rows}
	})
}

func (h *hostImports) customSQLExec(ctx context.Context, mod api.Module, ptr uint32) uint32 {
	return h.respond(ctx, mod, "custom_sql_exec", ptr, func(raw string) dataPlaneResponse {
		conn, err := h.conn(ctx)
		if err != nil {
			return errorResponse("custom_sql_exec", err)
		}
		result, err := conn.Exec(ctx, raw)
		if err != nil {
			return errorResponse("custom_sql_exec", err)
		}
		return dataPlaneResponse{OK: true, Data: result.RowsAffected}
	})
}

func (h *hostImports) customSQLQuery(ctx context.Context, mod api.Module, ptr uint32) uint32 {
	return h.respond(ctx, mod, "custom_sql_query", ptr, func(raw string) dataPlaneResponse {
		conn, err := h.conn(ctx)
		if err != nil {
			return errorResponse("custom_sql_query", err)
		}
		rows, err := conn.CustomQuery(ctx, raw)
		if err != nil {
			return errorResponse("custom_sql_query", err)
		}
		return dataPlaneResponse{OK: true, Data: rows}
	})
}

func (h *hostImports) dbg(ctx context.Context, mod api.Module, ptr uint32) {
	fields := []zap.Field{zap.String("module", mod.Name())}
	if requestID, ok := requestIDFrom(ctx); ok {
		fields = append(fields, zap.String("request_id", requestID))
	}

	msg, err := readCString(mod.Memory(), ptr)
	if err != nil {
		h.logger.Warn("dbg: failed to read guest message", append(fields, zap.Error(err))...)
		return
	}
	h.logger.Info("guest debug", append(fields, zap.String("message", msg))...)
}

// respond reads the request payload at ptr, runs fn against it, and
// writes the JSON-encoded result back into guest memory, returning its
// pointer. Every data-plane failure is rendered as {ok:false, msg}
// rather than trapped.
func (h *hostImports) respond(ctx context.Context, mod api.Module, op string, ptr uint32, fn func(raw string) dataPlaneResponse) uint32 {
	raw, err := readCString(mod.Memory(), ptr)
	if err != nil {
		h.logger.Error("data-plane call: failed to read request", zap.String("op", op), zap.Error(err))
		return h.writeResponse(ctx, mod, errorResponse(op, err))
	}
	return h.writeResponse(ctx, mod, fn(raw))
}

func (h *hostImports) writeResponse(ctx context.Context, mod api.Module, resp dataPlaneResponse) uint32 {
	body, err := json.Marshal(resp)
	if err != nil {
		body, _ = json.Marshal(dataPlaneResponse{OK: false, Msg: "failed to encode response: " + err.Error()})
	}
	ptr, err := writeJSONString(ctx, mod, string(body))
	if err != nil {
		h.logger.Error("data-plane call: failed to write response", zap.Error(err))
		return 0
	}
	return ptr
}

func (h *hostImports) conn(ctx context.Context) (Conn, error) {
	pool := h.env.getPool()
	if pool == nil {
		return nil, fmt.Errorf("tenant database pool not yet initialized")
	}
	return pool.Conn(ctx)
}

func errorResponse(op string, err error) dataPlaneResponse {
	return dataPlaneResponse{OK: false, Msg: (&DataPlaneError{Op: op, Cause: err}).Error()}
}

// renderExec renders a structured exec request into a SQL statement.
// The guest-side SDK is expected to render filters the same way; this
// is the host-side mirror for insert/update/delete operations.
func renderExec(req ExecRequest) (string, error) {
	switch strings.ToLower(req.Op) {
	case "insert":
		cols := make([]string, 0, len(req.Values))
		vals := make([]string, 0, len(req.Values))
		for _, k := range sortedStringKeysOf(req.Values) {
			cols = append(cols, quoteIdent(k))
			vals = append(vals, renderValue(req.Values[k]))
		}
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(req.Table), strings.Join(cols, ", "), strings.Join(vals, ", ")), nil
	case "update":
		sets := make([]string, 0, len(req.Values))
		for _, k := range sortedStringKeysOf(req.Values) {
			sets = append(sets, fmt.Sprintf("%s = %s", quoteIdent(k), renderValue(req.Values[k])))
		}
		stmt := fmt.Sprintf("ALTER TABLE %s UPDATE %s", quoteIdent(req.Table), strings.Join(sets, ", "))
		if req.Filter != nil {
			where, err := renderFilter(req.Filter)
			if err != nil {
				return "", err
			}
			stmt += " WHERE " + where
		}
		return stmt, nil
	case "delete":
		stmt := fmt.Sprintf("ALTER TABLE %s DELETE", quoteIdent(req.Table))
		if req.Filter != nil {
			where, err := renderFilter(req.Filter)
			if err != nil {
				return "", err
			}
			stmt += " WHERE " + where
		}
		return stmt, nil
	default:
		return "", fmt.Errorf("unknown exec op %q", req.Op)
	}
}

// renderFilter renders a minimal filter AST (equality/comparison leaves,
// and/or composites) into a SQL boolean expression.
func renderFilter(f *FilterNode) (string, error) {
	switch strings.ToLower(f.Op) {
	case "and", "or":
		if len(f.Children) == 0 {
			return "", fmt.Errorf("filter %q requires children", f.Op)
		}
		parts := make([]string, 0, len(f.Children))
		for _, c := range f.Children {
			rendered, err := renderFilter(c)
			if err != nil {
				return "", err
			}
			parts = append(parts, "("+rendered+")")
		}
		return strings.Join(parts, " "+strings.ToUpper(f.Op)+" "), nil
	case "eq":
		return fmt.Sprintf("%s = %s", quoteIdent(f.Field), renderValue(f.Value)), nil
	case "ne":
		return fmt.Sprintf("%s != %s", quoteIdent(f.Field), renderValue(f.Value)), nil
	case "gt":
		return fmt.Sprintf("%s > %s", quoteIdent(f.Field), renderValue(f.Value)), nil
	case "gte":
		return fmt.Sprintf("%s >= %s", quoteIdent(f.Field), renderValue(f.Value)), nil
	case "lt":
		return fmt.Sprintf("%s < %s", quoteIdent(f.Field), renderValue(f.Value)), nil
	case "lte":
		return fmt.Sprintf("%s <= %s", quoteIdent(f.Field), renderValue(f.Value)), nil
	default:
		return "", fmt.Errorf("unknown filter op %q", f.Op)
	}
}

func sortedStringKeysOf(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
