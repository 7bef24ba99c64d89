package tenanthost

// Schema is one tenant's synthesized, queryable schema: its handler
// fields and the input/output object types they reference. It is
// immutable and safe for concurrent reads once built.
type Schema struct {
	fields        map[string]*QueryField
	inputObjects  map[string]InputObjectType
	outputObjects map[string]OutputObjectType
}

// Field looks up a query field by name.
func (s *Schema) Field(name string) (*QueryField, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// FieldNames returns the names of every query field, for introspection
// and tests.
func (s *Schema) FieldNames() []string {
	names := make([]string, 0, len(s.fields))
	for n := range s.fields {
		names = append(names, n)
	}
	return names
}

// OutputObject looks up a synthesized output object type by name.
func (s *Schema) OutputObject(name string) (OutputObjectType, bool) {
	o, ok := s.outputObjects[name]
	return o, ok
}

// InputObject looks up a synthesized input object type by name.
func (s *Schema) InputObject(name string) (InputObjectType, bool) {
	o, ok := s.inputObjects[name]
	return o, ok
}

// SchemaBuilder accumulates query fields and object types while a
// tenant's modules are loaded, enforcing that every declared object
// type name is unique before producing an immutable Schema.
type SchemaBuilder struct {
	fields        map[string]*QueryField
	inputObjects  map[string]InputObjectType
	outputObjects map[string]OutputObjectType
}

// NewSchemaBuilder returns an empty builder.
func NewSchemaBuilder() *SchemaBuilder {
	return &SchemaBuilder{
		fields:        make(map[string]*QueryField),
		inputObjects:  make(map[string]InputObjectType),
		outputObjects: make(map[string]OutputObjectType),
	}
}

// AddField registers one query field. It is a SchemaBuildError for two
// handlers in the same tenant to share a name.
func (b *SchemaBuilder) AddField(f QueryField) error {
	if _, exists := b.fields[f.Name]; exists {
		return &SchemaBuildError{Message: "duplicate query field name " + f.Name}
	}
	field := f
	b.fields[f.Name] = &field
	return nil
}

// addInputObjects registers a batch of synthesized input object types,
// failing on the first name collision.
func (b *SchemaBuilder) addInputObjects(objs []InputObjectType) error {
	for _, o := range objs {
		if _, exists := b.inputObjects[o.Name]; exists {
			return &SchemaBuildError{Message: "duplicate input object type name " + o.Name}
		}
		b.inputObjects[o.Name] = o
	}
	return nil
}

// addOutputObjects registers a batch of synthesized output object
// types, failing on the first name collision.
func (b *SchemaBuilder) addOutputObjects(objs []OutputObjectType) error {
	for _, o := range objs {
		if _, exists := b.outputObjects[o.Name]; exists {
			return &SchemaBuildError{Message: "duplicate output object type name " + o.Name}
		}
		b.outputObjects[o.Name] = o
	}
	return nil
}

// Build finalizes the schema. An empty field set is a build error: a
// tenant with zero handlers has nothing to query.
func (b *SchemaBuilder) Build() (*Schema, error) {
	if len(b.fields) == 0 {
		return nil, &SchemaBuildError{Message: "no fields"}
	}
	return &Schema{
		fields:        b.fields,
		inputObjects:  b.inputObjects,
		outputObjects: b.outputObjects,
	}, nil
}
