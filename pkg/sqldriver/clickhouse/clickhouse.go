// Package clickhouse is the production tenanthost.Pool/tenanthost.Conn
// implementation against a ClickHouse (or ClickHouse-dialect)
// analytical database, satisfying the "Snowflake/ClickHouse-like
// family" database expectation: DESC, UNDROP TABLE, DROP TABLE ... ALL,
// and column add/rename/modify/drop.
package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"sync"

	chdriver "github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"

	"github.com/mahd-dev/riwaq/pkg/tenanthost"
)

// Dialer constructs per-tenant Pools against a shared set of connection
// defaults, implementing tenanthost.PoolDialer.
type Dialer struct {
	logger *zap.Logger
}

// NewDialer returns a Dialer that logs through logger.
func NewDialer(logger *zap.Logger) *Dialer {
	return &Dialer{logger: logger}
}

// Dial opens a ClickHouse connection pool for tenantID using settings
// (either module-declared or environment-substituted defaults).
func (d *Dialer) Dial(ctx context.Context, tenantID string, settings tenanthost.DBSettings) (tenanthost.Pool, error) {
	opts, err := chdriver.ParseDSN(settings.URL)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: parsing DSN for tenant %q: %w", tenantID, err)
	}
	if settings.DBName != "" {
		opts.Auth.Database = settings.DBName
	}

	conn, err := chdriver.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: opening pool for tenant %q: %w", tenantID, err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse: pinging tenant %q: %w", tenantID, err)
	}

	return &Pool{conn: conn, logger: d.logger}, nil
}

// Pool wraps a single clickhouse-go connection handle, which is itself
// already pooled internally by the driver; tenanthost.Pool.Conn hands
// back a thin Conn wrapper reusing the same handle.
type Pool struct {
	conn   chdriver.Conn
	mu     sync.Mutex
	logger *zap.Logger
}

// Conn returns a Conn bound to this pool's underlying connection.
func (p *Pool) Conn(ctx context.Context) (tenanthost.Conn, error) {
	return &Conn{pool: p}, nil
}

// Close closes the underlying ClickHouse connection handle.
func (p *Pool) Close(ctx context.Context) error {
	return p.conn.Close()
}

// Conn implements tenanthost.Conn against the pool's shared handle.
type Conn struct {
	pool *Pool
}

// Exec runs stmt and returns the number of rows it affected. ClickHouse
// does not report affected-row counts for DDL/mutation statements the
// way a transactional database does, so RowsAffected is always 0 for
// success; callers that need row counts use All instead.
func (c *Conn) Exec(ctx context.Context, stmt string) (tenanthost.ExecResult, error) {
	if err := c.pool.conn.Exec(ctx, stmt); err != nil {
		return tenanthost.ExecResult{}, err
	}
	return tenanthost.ExecResult{}, nil
}

// All runs a SELECT rendered from req and returns each row as a
// column-name-keyed object.
func (c *Conn) All(ctx context.Context, req tenanthost.SelectRequest) ([]map[string]interface{}, error) {
	stmt, args, err := renderSelect(req)
	if err != nil {
		return nil, err
	}

	rows, err := c.pool.conn.Query(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := rows.Columns()
	var out []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		scanTargets := make([]interface{}, len(cols))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(cols))
		for i, name := range cols {
			row[name] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// CustomQuery runs a raw SELECT string and returns each row as a
// positional value slice.
func (c *Conn) CustomQuery(ctx context.Context, rawSQL string) ([][]interface{}, error) {
	rows, err := c.pool.conn.Query(ctx, rawSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := rows.Columns()
	var out [][]interface{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		scanTargets := make([]interface{}, len(cols))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, err
		}
		out = append(out, values)
	}
	return out, rows.Err()
}

// renderSelect renders a structured select request into a SQL statement
// with filter values inlined as literals; the returned argument slice is
// always nil.
func renderSelect(req tenanthost.SelectRequest) (string, []interface{}, error) {
	cols := "*"
	if len(req.Cols) > 0 {
		cols = strings.Join(quoteAll(req.Cols), ", ")
	}
	stmt := fmt.Sprintf("SELECT %s FROM %s", cols, quoteIdent(req.Table))
	if req.Filter == nil {
		return stmt, nil, nil
	}
	where, err := renderFilterExpr(req.Filter)
	if err != nil {
		return "", nil, err
	}
	return stmt + " WHERE " + where, nil, nil
}

func renderFilterExpr(f *tenanthost.FilterNode) (string, error) {
	switch strings.ToLower(f.Op) {
	case "and", "or":
		if len(f.Children) == 0 {
			return "", fmt.Errorf("filter %q requires children", f.Op)
		}
		parts := make([]string, 0, len(f.Children))
		for _, c := range f.Children {
			rendered, err := renderFilterExpr(c)
			if err != nil {
				return "", err
			}
			parts = append(parts, "("+rendered+")")
		}
		return strings.Join(parts, " "+strings.ToUpper(f.Op)+" "), nil
	case "eq":
		return fmt.Sprintf("%s = %s", quoteIdent(f.Field), renderLiteral(f.Value)), nil
	case "ne":
		return fmt.Sprintf("%s != %s", quoteIdent(f.Field), renderLiteral(f.Value)), nil
	case "gt":
		return fmt.Sprintf("%s > %s", quoteIdent(f.Field), renderLiteral(f.Value)), nil
	case "gte":
		return fmt.Sprintf("%s >= %s", quoteIdent(f.Field), renderLiteral(f.Value)), nil
	case "lt":
		return fmt.Sprintf("%s < %s", quoteIdent(f.Field), renderLiteral(f.Value)), nil
	case "lte":
		return fmt.Sprintf("%s <= %s", quoteIdent(f.Field), renderLiteral(f.Value)), nil
	default:
		return "", fmt.Errorf("unknown filter op %q", f.Op)
	}
}

func renderLiteral(v interface{}) string {
	switch t := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'"
	case nil:
		return "NULL"
	default:
		return fmt.Sprintf("%v", t)
	}
}

// quoteIdent double-quotes s, matching the identifier-quoting
// convention tenanthost.migrateTable already uses for DDL: one style
// across every generated statement, DDL or DML.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quoteIdent(n)
	}
	return out
}
