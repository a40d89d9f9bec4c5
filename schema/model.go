// Package schema extracts a structural database model from a generated
// Supabase type-definition file and answers existence lookups against it.
package schema

import (
	"sort"

	"github.com/rlch/schemadrift"
)

// RelationKind distinguishes tables from views.
type RelationKind string

const (
	// RelationTable is a base table.
	RelationTable RelationKind = "table"
	// RelationView is a view.
	RelationView RelationKind = "view"
)

// Model is the extracted schema. It is read-only after construction.
type Model struct {
	// Schemas maps schema name (e.g., "public", "catalog") to its definition.
	Schemas map[string]*Schema
}

// Schema is one namespace of tables, views, and functions.
// Table and view names are independent within a schema.
type Schema struct {
	Name      string
	Tables    map[string]*Relation
	Views     map[string]*Relation
	Functions map[string]*Function
}

// Relation is a table or view with its typed columns.
type Relation struct {
	Schema  string
	Name    string
	Kind    RelationKind
	Columns map[string]string
}

// Function is a remote-callable database function.
type Function struct {
	Schema  string
	Name    string
	Args    []string
	Returns string
}

// Stats counts the extracted definitions.
type Stats struct {
	Schemas   int `json:"schemas" yaml:"schemas"`
	Tables    int `json:"tables" yaml:"tables"`
	Views     int `json:"views" yaml:"views"`
	Functions int `json:"functions" yaml:"functions"`
}

// NewModel creates an empty Model.
func NewModel() *Model {
	return &Model{
		Schemas: make(map[string]*Schema),
	}
}

// NewSchema creates an empty Schema.
func NewSchema(name string) *Schema {
	return &Schema{
		Name:      name,
		Tables:    make(map[string]*Relation),
		Views:     make(map[string]*Relation),
		Functions: make(map[string]*Function),
	}
}

// HasColumn reports whether the relation declares the column.
func (r *Relation) HasColumn(name string) bool {
	_, ok := r.Columns[name]

	return ok
}

// ColumnNames returns the relation's column names sorted.
func (r *Relation) ColumnNames() []string {
	return sortedKeys(r.Columns)
}

// HasSchema reports whether name is a recognized schema.
func (m *Model) HasSchema(name string) bool {
	_, ok := m.Schemas[name]

	return ok
}

// SchemaNames returns all schema names sorted.
func (m *Model) SchemaNames() []string {
	return sortedKeys(m.Schemas)
}

// ResolveTable finds a table in schema, falling back to public.
func (m *Model) ResolveTable(schema, name string) *Relation {
	return resolve(m, schema, func(s *Schema) *Relation {
		return s.Tables[name]
	})
}

// ResolveView finds a view in schema, falling back to public.
func (m *Model) ResolveView(schema, name string) *Relation {
	return resolve(m, schema, func(s *Schema) *Relation {
		return s.Views[name]
	})
}

// ResolveFunction finds a function in schema, falling back to public.
func (m *Model) ResolveFunction(schema, name string) *Function {
	return resolve(m, schema, func(s *Schema) *Function {
		return s.Functions[name]
	})
}

// ResolveRelation finds a view or table, preferring views.
func (m *Model) ResolveRelation(schema, name string) *Relation {
	if v := m.ResolveView(schema, name); v != nil {
		return v
	}

	return m.ResolveTable(schema, name)
}

// TableExists reports whether ResolveTable finds the table.
func (m *Model) TableExists(schema, name string) bool {
	return m.ResolveTable(schema, name) != nil
}

// ViewExists reports whether ResolveView finds the view.
func (m *Model) ViewExists(schema, name string) bool {
	return m.ResolveView(schema, name) != nil
}

// FunctionExists reports whether ResolveFunction finds the function.
func (m *Model) FunctionExists(schema, name string) bool {
	return m.ResolveFunction(schema, name) != nil
}

// Columns returns every column name across all relations, deduplicated and sorted.
func (m *Model) Columns() []string {
	seen := make(map[string]struct{})

	for _, s := range m.Schemas {
		for _, rels := range []map[string]*Relation{s.Tables, s.Views} {
			for _, r := range rels {
				for col := range r.Columns {
					seen[col] = struct{}{}
				}
			}
		}
	}

	return sortedKeys(seen)
}

// RelationNames returns all table and view names across schemas, sorted and deduplicated.
func (m *Model) RelationNames() []string {
	seen := make(map[string]struct{})

	for _, s := range m.Schemas {
		for name := range s.Tables {
			seen[name] = struct{}{}
		}

		for name := range s.Views {
			seen[name] = struct{}{}
		}
	}

	return sortedKeys(seen)
}

// FunctionNames returns the function names of one schema sorted.
func (m *Model) FunctionNames(schema string) []string {
	s, ok := m.Schemas[schema]
	if !ok {
		return nil
	}

	return sortedKeys(s.Functions)
}

// Stats counts schemas, tables, views, and functions.
func (m *Model) Stats() Stats {
	st := Stats{Schemas: len(m.Schemas)}

	for _, s := range m.Schemas {
		st.Tables += len(s.Tables)
		st.Views += len(s.Views)
		st.Functions += len(s.Functions)
	}

	return st
}

// resolve looks a definition up in schema and then in public.
// A nil or missing lookup result is a miss; an empty schema name means public.
func resolve[T any](m *Model, schema string, lookup func(*Schema) *T) *T {
	if m == nil {
		return nil
	}

	if schema == "" {
		schema = schemadrift.SchemaPublic
	}

	if s, ok := m.Schemas[schema]; ok {
		if def := lookup(s); def != nil {
			return def
		}
	}

	if schema == schemadrift.SchemaPublic {
		return nil
	}

	if s, ok := m.Schemas[schemadrift.SchemaPublic]; ok {
		return lookup(s)
	}

	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
