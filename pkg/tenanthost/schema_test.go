package tenanthost

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dummyResolve(ctx context.Context, args map[string]interface{}) (json.RawMessage, error) {
	return json.RawMessage(`null`), nil
}

func TestSchemaBuilderAddFieldDuplicate(t *testing.T) {
	b := NewSchemaBuilder()
	require.NoError(t, b.AddField(QueryField{Name: "users", Resolve: dummyResolve}))
	err := b.AddField(QueryField{Name: "users", Resolve: dummyResolve})
	require.Error(t, err)
	assert.True(t, IsSchemaBuildFailure(err))
}

func TestSchemaBuilderBuildEmptyIsError(t *testing.T) {
	b := NewSchemaBuilder()
	_, err := b.Build()
	require.Error(t, err)
	assert.True(t, IsSchemaBuildFailure(err))
}

func TestSchemaBuilderInputObjectCollision(t *testing.T) {
	b := NewSchemaBuilder()
	objs := []InputObjectType{{Name: "Address", Fields: nil}}
	require.NoError(t, b.addInputObjects(objs))
	err := b.addInputObjects(objs)
	require.Error(t, err)
	assert.True(t, IsSchemaBuildFailure(err))
}

func TestSchemaBuilderOutputObjectCollision(t *testing.T) {
	b := NewSchemaBuilder()
	objs := []OutputObjectType{{Name: "User", Fields: nil}}
	require.NoError(t, b.addOutputObjects(objs))
	err := b.addOutputObjects(objs)
	require.Error(t, err)
}

func TestSchemaLookups(t *testing.T) {
	b := NewSchemaBuilder()
	require.NoError(t, b.AddField(QueryField{Name: "users", Resolve: dummyResolve}))
	require.NoError(t, b.addInputObjects([]InputObjectType{{Name: "Filter"}}))
	require.NoError(t, b.addOutputObjects([]OutputObjectType{{Name: "User"}}))

	schema, err := b.Build()
	require.NoError(t, err)

	_, ok := schema.Field("users")
	assert.True(t, ok)
	_, ok = schema.Field("missing")
	assert.False(t, ok)

	_, ok = schema.InputObject("Filter")
	assert.True(t, ok)
	_, ok = schema.OutputObject("User")
	assert.True(t, ok)

	assert.Equal(t, []string{"users"}, schema.FieldNames())
}
