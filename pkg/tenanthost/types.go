// Package tenanthost implements the multi-tenant WASM query host: it loads
// per-organization Wasm modules, introspects them to synthesize a typed
// query schema, dispatches queries across the guest/host ABI, and
// reconciles declared table definitions against a live analytical
// database.
package tenanthost

import (
	"context"
	"encoding/json"
)

// ScalarName is the GraphQL-flavored leaf type name a metadata scalar
// descriptor compiles to.
type ScalarName string

const (
	ScalarInt     ScalarName = "Int"
	ScalarFloat   ScalarName = "Float"
	ScalarBoolean ScalarName = "Boolean"
	ScalarString  ScalarName = "String"
)

// scalarTable maps every scalar descriptor string from the metadata
// grammar to its compiled leaf type.
var scalarTable = map[string]ScalarName{
	"bool":  ScalarBoolean,
	"i8":    ScalarInt,
	"i16":   ScalarInt,
	"i32":   ScalarInt,
	"i64":   ScalarInt,
	"i128":  ScalarInt,
	"isize": ScalarInt,
	"u8":    ScalarInt,
	"u16":   ScalarInt,
	"u32":   ScalarInt,
	"u64":   ScalarInt,
	"u128":  ScalarInt,
	"usize": ScalarInt,
	"f32":   ScalarFloat,
	"f64":   ScalarFloat,
	"char":  ScalarString,
	"String": ScalarString,
}

// ListTag is the six-valued nullability/list classification a compiled
// type carries: whether the outer reference is non-null, and (for list
// shapes) whether the elements are non-null.
type ListTag int

const (
	TagNamed ListTag = iota
	TagNamedNN
	TagNamedList
	TagNamedNNList
	TagNamedListNN
	TagNamedNNListNN
)

func (t ListTag) String() string {
	switch t {
	case TagNamed:
		return "Named"
	case TagNamedNN:
		return "NamedNN"
	case TagNamedList:
		return "NamedList"
	case TagNamedNNList:
		return "NamedNNList"
	case TagNamedListNN:
		return "NamedListNN"
	case TagNamedNNListNN:
		return "NamedNNListNN"
	default:
		return "Unknown"
	}
}

// TypeRef names a compiled type together with its nullability/list tag.
type TypeRef struct {
	Name string
	Tag  ListTag
}

// InputValue is one named, typed argument accepted by a query field or
// nested as a field of a synthesized input object.
type InputValue struct {
	Name string
	Type TypeRef
}

// InputObjectType is a synthesized input object type, produced whenever
// the compiler encounters an `Obj` container on the input side.
type InputObjectType struct {
	Name   string
	Fields []InputValue
}

// FieldResolver extracts one output field's value out of a parent JSON
// object already produced by a handler invocation. It reports false when
// the field is absent or explicitly null.
type FieldResolver func(parent map[string]interface{}) (interface{}, bool)

// OutputField is one field of a synthesized output object type.
type OutputField struct {
	Name    string
	Type    TypeRef
	Resolve FieldResolver
}

// OutputObjectType is a synthesized output object type, produced for
// every `Obj` container on the output side (including the implicit one
// wrapping each handler's top-level return value).
type OutputObjectType struct {
	Name   string
	Fields []OutputField
}

// HandlerResolver invokes one query field's handler with decoded
// arguments and returns its raw JSON result.
type HandlerResolver func(ctx context.Context, args map[string]interface{}) (json.RawMessage, error)

// QueryField is one entry of a tenant's synthesized query schema: a
// named, typed, resolvable handler.
type QueryField struct {
	Name    string
	Args    []InputValue
	Type    TypeRef
	Resolve HandlerResolver
}

// TableDDLOp is the table-level operation a declared table DDL record
// carries.
type TableDDLOp string

const (
	DDLCreateOrAlter TableDDLOp = "CreateOrAlter"
	DDLDrop          TableDDLOp = "Drop"
	DDLDropAll       TableDDLOp = "DropAll"
	DDLUndrop        TableDDLOp = "Undrop"
)

// ColumnOp is a per-column operation: either no-op, or a rename carrying
// the column's previous name.
type ColumnOp struct {
	Rename string // non-empty iff this column is being renamed from Rename
}

// IsRename reports whether this column op is a rename.
func (c ColumnOp) IsRename() bool { return c.Rename != "" }

// UnmarshalJSON accepts either the bare string "None" or the
// single-field object form {"Rename":"old_name"}, matching the guest
// SDK's serialization of a Rust-style enum with one unit and one
// tuple variant.
func (c *ColumnOp) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*c = ColumnOp{}
		return nil
	}
	var asObject struct {
		Rename string `json:"Rename"`
	}
	if err := json.Unmarshal(data, &asObject); err != nil {
		return err
	}
	*c = ColumnOp{Rename: asObject.Rename}
	return nil
}

// MarshalJSON renders the op back to the same two shapes it accepts.
func (c ColumnOp) MarshalJSON() ([]byte, error) {
	if c.Rename == "" {
		return json.Marshal("None")
	}
	return json.Marshal(struct {
		Rename string `json:"Rename"`
	}{Rename: c.Rename})
}

// ColumnDDL is one declared column of a table DDL record.
type ColumnDDL struct {
	Name     string           `json:"name"`
	Type     string           `json:"ty"`
	Optional bool             `json:"optional"`
	Default  *json.RawMessage `json:"default,omitempty"`
	Op       ColumnOp         `json:"op"`
}

// TableDDL is one declared table, as extracted from a `table_ddl_*`
// export.
type TableDDL struct {
	Name string      `json:"name"`
	Op   TableDDLOp  `json:"op"`
	Cols []ColumnDDL `json:"cols"`
}

// DBSettings is the connection descriptor a module's optional
// `settings_db_conn` export returns.
type DBSettings struct {
	URL    string `json:"url"`
	DBName string `json:"db_name,omitempty"`
}

// BlobEntry is one object listed from a tenant's storage prefix.
type BlobEntry struct {
	Name string
}

// ExecResult is the outcome of a data-plane exec statement.
type ExecResult struct {
	RowsAffected int64
}

// FilterNode is a minimal, recursively composable filter AST node
// carried by structured select/exec requests from the guest SDK.
type FilterNode struct {
	Op       string        `json:"op"`
	Field    string        `json:"field,omitempty"`
	Value    interface{}   `json:"value,omitempty"`
	Children []*FilterNode `json:"children,omitempty"`
}

// SelectRequest is the structured payload `sql_query` decodes.
type SelectRequest struct {
	Table  string      `json:"table"`
	Cols   []string    `json:"cols"`
	Filter *FilterNode `json:"filter,omitempty"`
}

// ExecRequest is the structured payload `sql_exec` decodes.
type ExecRequest struct {
	Table  string                 `json:"table"`
	Op     string                 `json:"op"`
	Values map[string]interface{} `json:"values,omitempty"`
	Filter *FilterNode            `json:"filter,omitempty"`
}

// dataPlaneResponse is the `{ok, data|msg}` envelope every host-imported
// data-plane function writes back into guest memory.
type dataPlaneResponse struct {
	OK   bool        `json:"ok"`
	Data interface{} `json:"data,omitempty"`
	Msg  string      `json:"msg,omitempty"`
}
