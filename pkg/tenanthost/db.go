package tenanthost

import "context"

// Conn is a single database session obtained from a tenant's Pool. It
// is the collaborator interface the core consumes as a
// Pool → Conn with exec, all, custom_query operations — the concrete
// driver lives outside this package (see pkg/sqldriver/clickhouse).
type Conn interface {
	// Exec runs a statement that does not return rows.
	Exec(ctx context.Context, stmt string) (ExecResult, error)
	// All runs a SELECT rendered from req and returns each row as a
	// column-name-keyed object.
	All(ctx context.Context, req SelectRequest) ([]map[string]interface{}, error)
	// CustomQuery runs a raw SELECT string and returns each row as a
	// positional value slice.
	CustomQuery(ctx context.Context, rawSQL string) ([][]interface{}, error)
}

// Pool hands out Conns for one tenant's database and is closed once,
// when the tenant's environment is retired.
type Pool interface {
	Conn(ctx context.Context) (Conn, error)
	Close(ctx context.Context) error
}

// PoolDialer constructs a Pool for a tenant, either from module-declared
// settings or from the host's environment-substituted default DSN.
type PoolDialer interface {
	Dial(ctx context.Context, tenantID string, settings DBSettings) (Pool, error)
}
