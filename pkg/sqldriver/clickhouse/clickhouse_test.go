package clickhouse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahd-dev/riwaq/pkg/tenanthost"
)

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"users"`, quoteIdent("users"))
	assert.Equal(t, `"a""b"`, quoteIdent(`a"b`))
}

func TestQuoteAll(t *testing.T) {
	assert.Equal(t, []string{`"id"`, `"name"`}, quoteAll([]string{"id", "name"}))
}

func TestRenderLiteral(t *testing.T) {
	assert.Equal(t, "NULL", renderLiteral(nil))
	assert.Equal(t, "'it''s'", renderLiteral("it's"))
	assert.Equal(t, "42", renderLiteral(float64(42)))
	assert.Equal(t, "true", renderLiteral(true))
}

func TestRenderSelectNoFilter(t *testing.T) {
	stmt, args, err := renderSelect(tenanthost.SelectRequest{Table: "users"})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users"`, stmt)
	assert.Nil(t, args)
}

func TestRenderSelectWithColumnsAndFilter(t *testing.T) {
	req := tenanthost.SelectRequest{
		Table: "users",
		Cols:  []string{"id", "name"},
		Filter: &tenanthost.FilterNode{
			Op: "gte", Field: "age", Value: float64(21),
		},
	}
	stmt, _, err := renderSelect(req)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id", "name" FROM "users" WHERE "age" >= 21`, stmt)
}

func TestRenderFilterExprAndOr(t *testing.T) {
	f := &tenanthost.FilterNode{
		Op: "or",
		Children: []*tenanthost.FilterNode{
			{Op: "eq", Field: "status", Value: "active"},
			{Op: "lt", Field: "age", Value: float64(13)},
		},
	}
	got, err := renderFilterExpr(f)
	require.NoError(t, err)
	assert.Equal(t, `("status" = 'active') OR ("age" < 13)`, got)
}

func TestRenderFilterExprEmptyChildrenIsError(t *testing.T) {
	_, err := renderFilterExpr(&tenanthost.FilterNode{Op: "and"})
	require.Error(t, err)
}

func TestRenderFilterExprUnknownOp(t *testing.T) {
	_, err := renderFilterExpr(&tenanthost.FilterNode{Op: "regex", Field: "x", Value: "y"})
	require.Error(t, err)
}
