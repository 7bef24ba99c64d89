package tenanthost

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Migrate reconciles tenantID's declared DDL set against the live
// database: it creates the tenant's database, then runs the per-table
// procedure for every declared table in order. Only acquiring a
// connection from pool, the tenant-level CREATE DATABASE and a table's
// terminal CREATE TABLE can fail this call; every intermediate ALTER is
// logged and swallowed.
func Migrate(ctx context.Context, pool Pool, tenantID string, ddls []TableDDL, logger *zap.Logger) error {
	conn, err := pool.Conn(ctx)
	if err != nil {
		return &MigrationError{Table: tenantID, Cause: err}
	}

	if _, err := conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", quoteIdent(tenantID))); err != nil {
		return &MigrationError{Table: tenantID, Cause: err}
	}

	for _, ddl := range ddls {
		if err := migrateTable(ctx, conn, tenantID, ddl, logger); err != nil {
			return err
		}
	}
	return nil
}

func migrateTable(ctx context.Context, conn Conn, tenantID string, ddl TableDDL, logger *zap.Logger) error {
	qualified := qualifiedTable(tenantID, ddl.Name)

	switch ddl.Op {
	case DDLDrop:
		execWarn(ctx, conn, fmt.Sprintf("DROP TABLE IF EXISTS %s", qualified), logger)
		return nil
	case DDLDropAll:
		execWarn(ctx, conn, fmt.Sprintf("DROP TABLE IF EXISTS %s ALL", qualified), logger)
		return nil
	case DDLUndrop:
		execWarn(ctx, conn, fmt.Sprintf("UNDROP TABLE %s", qualified), logger)
	}

	for i, col := range ddl.Cols {
		if col.Op.IsRename() {
			execWarn(ctx, conn, fmt.Sprintf("ALTER TABLE IF EXISTS %s RENAME COLUMN %s %s",
				qualified, quoteIdent(col.Op.Rename), quoteIdent(col.Name)), logger)
		}

		position := "FIRST"
		if i > 0 {
			position = "AFTER " + quoteIdent(ddl.Cols[i-1].Name)
		}
		addStmt := fmt.Sprintf("ALTER TABLE IF EXISTS %s ADD COLUMN %s %s %s %s %s",
			qualified, quoteIdent(col.Name), col.Type, nullabilityClause(col, true), defaultClause(col), position)
		execWarn(ctx, conn, strings.Join(strings.Fields(addStmt), " "), logger)

		modifyStmt := fmt.Sprintf("ALTER TABLE IF EXISTS %s MODIFY COLUMN %s %s %s %s",
			qualified, quoteIdent(col.Name), col.Type, nullabilityClause(col, false), defaultClause(col))
		execWarn(ctx, conn, strings.Join(strings.Fields(modifyStmt), " "), logger)
	}

	declared := make(map[string]bool, len(ddl.Cols))
	for _, c := range ddl.Cols {
		declared[c.Name] = true
	}
	if rows, err := conn.CustomQuery(ctx, fmt.Sprintf("DESC %s", qualified)); err != nil {
		logger.Debug("DESC for column reconciliation failed, table likely new", zap.String("table", qualified), zap.Error(err))
	} else {
		for _, row := range rows {
			if len(row) == 0 {
				continue
			}
			name, ok := row[0].(string)
			if !ok || declared[name] {
				continue
			}
			execWarn(ctx, conn, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", qualified, quoteIdent(name)), logger)
		}
	}

	createStmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", qualified, renderColumnDefs(ddl.Cols))
	if _, err := conn.Exec(ctx, createStmt); err != nil {
		return &MigrationError{Table: qualified, Cause: err}
	}
	return nil
}

// execWarn runs stmt, logging (not returning) any failure. Intermediate
// ALTER failures are expected and non-fatal: a fresh table has no
// columns yet to ADD onto, a freshly-added column has nothing to
// MODIFY, and both converge once the final CREATE TABLE runs.
func execWarn(ctx context.Context, conn Conn, stmt string, logger *zap.Logger) {
	if _, err := conn.Exec(ctx, stmt); err != nil {
		logger.Warn("non-fatal migration statement failed", zap.String("stmt", stmt), zap.Error(err))
	}
}

// nullabilityClause renders the [NULL|NOT NULL] clause. ADD always
// states nullability explicitly; MODIFY only ever states NULL when the
// column is optional.
func nullabilityClause(col ColumnDDL, isAdd bool) string {
	if col.Optional {
		return "NULL"
	}
	if isAdd {
		return "NOT NULL"
	}
	return ""
}

// defaultClause renders the [DEFAULT d] clause, or the empty string if
// the column declares no default.
func defaultClause(col ColumnDDL) string {
	if col.Default == nil {
		return ""
	}
	var v interface{}
	if err := json.Unmarshal(*col.Default, &v); err != nil {
		return ""
	}
	return "DEFAULT " + renderValue(v)
}

// renderValue renders a default value: integers and floats as
// decimal, booleans as TRUE/FALSE, strings single-quoted with escaped
// quotes, null as NULL.
func renderValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if t {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'"
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// renderColumnDefs renders the baseline CREATE TABLE column list.
func renderColumnDefs(cols []ColumnDDL) string {
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		def := fmt.Sprintf("%s %s %s", quoteIdent(c.Name), c.Type, nullabilityClause(c, true))
		if dc := defaultClause(c); dc != "" {
			def += " " + dc
		}
		parts = append(parts, strings.Join(strings.Fields(def), " "))
	}
	return strings.Join(parts, ", ")
}

func qualifiedTable(tenantID, tableName string) string {
	return fmt.Sprintf("%s.%s", quoteIdent(tenantID), quoteIdent(tableName))
}

// quoteIdent wraps an identifier in double quotes, escaping any
// embedded quote. Tenant ids and table/column names are operator/guest
// controlled, not end-user input, but are still quoted defensively.
func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
