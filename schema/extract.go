package schema

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rlch/schemadrift"
)

// Section keys of a schema object in the generated type file.
const (
	keyTables    = "Tables"
	keyViews     = "Views"
	keyFunctions = "Functions"
	keyRow       = "Row"
	keyArgs      = "Args"
	keyReturns   = "Returns"
)

// reservedKeys are object keys that look like schemas or functions but are
// generator bookkeeping.
var reservedKeys = map[string]bool{
	"__InternalSupabase": true,
	"Relationships":      true,
}

// Load reads a schema model from a generated type file (.ts) or a YAML
// snapshot (.yaml, .yml).
func Load(path string) (*Model, error) {
	cleanPath := filepath.Clean(path)

	switch strings.ToLower(filepath.Ext(cleanPath)) {
	case ".yaml", ".yml":
		return LoadSnapshot(cleanPath)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("type file %s: %w", path, schemadrift.ErrNotFound)
		}

		return nil, fmt.Errorf("reading type file: %w", err)
	}

	return ExtractFile(cleanPath, string(data)), nil
}

// Extract builds a Model from the text of a type-definition document.
// A document without recognizable schemas yields an empty Model.
func Extract(text string) *Model {
	return ExtractFile("", text)
}

// ExtractFile is Extract with a filename attached to token positions.
func ExtractFile(filename, text string) *Model {
	model := NewModel()

	for _, root := range newLiteralParser(filename, text).parseDocument() {
		collectSchemas(model, root)
	}

	return model
}

// collectSchemas registers every schema object below e. Schema objects are
// not searched for nested schemas.
func collectSchemas(model *Model, e *entry) {
	for _, child := range e.Fields {
		if isSchemaObject(child) {
			if _, dup := model.Schemas[child.Key]; !dup {
				model.Schemas[child.Key] = buildSchema(child)
			} else {
				mergeSchema(model.Schemas[child.Key], buildSchema(child))
			}

			continue
		}

		collectSchemas(model, child)
	}
}

func isSchemaObject(e *entry) bool {
	if reservedKeys[e.Key] || !isSchemaName(e.Key) || len(e.Fields) == 0 {
		return false
	}

	return e.field(keyTables) != nil || e.field(keyViews) != nil || e.field(keyFunctions) != nil
}

// isSchemaName accepts lowercase identifiers.
func isSchemaName(name string) bool {
	if name == "" {
		return false
	}

	for i, r := range name {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z'):
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}

	return true
}

func buildSchema(e *entry) *Schema {
	s := NewSchema(e.Key)

	for _, section := range e.Fields {
		switch section.Key {
		case keyTables:
			addRelations(s.Tables, s.Name, RelationTable, section)
		case keyViews:
			addRelations(s.Views, s.Name, RelationView, section)
		case keyFunctions:
			addFunctions(s, section)
		}
	}

	return s
}

// mergeSchema adds definitions from a repeated schema key. Earlier
// definitions win.
func mergeSchema(dst, src *Schema) {
	for name, r := range src.Tables {
		if _, ok := dst.Tables[name]; !ok {
			dst.Tables[name] = r
		}
	}

	for name, r := range src.Views {
		if _, ok := dst.Views[name]; !ok {
			dst.Views[name] = r
		}
	}

	for name, f := range src.Functions {
		if _, ok := dst.Functions[name]; !ok {
			dst.Functions[name] = f
		}
	}
}

func addRelations(dst map[string]*Relation, schema string, kind RelationKind, section *entry) {
	for _, rel := range section.Fields {
		if reservedKeys[rel.Key] {
			continue
		}

		if _, dup := dst[rel.Key]; dup {
			continue
		}

		row := rel.field(keyRow)
		if row == nil {
			continue
		}

		columns := columnsOf(row.Fields)
		if len(columns) == 0 {
			continue
		}

		dst[rel.Key] = &Relation{
			Schema:  schema,
			Name:    rel.Key,
			Kind:    kind,
			Columns: columns,
		}
	}
}

func addFunctions(s *Schema, section *entry) {
	for _, fn := range section.Fields {
		if reservedKeys[fn.Key] {
			continue
		}

		if _, dup := s.Functions[fn.Key]; dup {
			continue
		}

		args := fn.field(keyArgs)
		returns := fn.field(keyReturns)

		if args == nil && returns == nil {
			continue
		}

		def := &Function{
			Schema: s.Name,
			Name:   fn.Key,
			Args:   []string{},
		}

		if args != nil {
			for _, arg := range args.Fields {
				def.Args = append(def.Args, arg.Key)
			}
		}

		if returns != nil {
			def.Returns = returns.Value
		}

		s.Functions[fn.Key] = def
	}
}

// ParseColumns extracts `name: type` pairs from the body of a Row block.
// The surrounding braces are optional. The first occurrence of a name wins.
func ParseColumns(text string) map[string]string {
	p := newLiteralParser("", text)
	p.skip(tNewline)

	var entries []*entry
	if p.peek().Type == tLBrace {
		entries = p.parseObject()
	} else {
		entries = p.parseEntries()
	}

	return columnsOf(entries)
}

func columnsOf(entries []*entry) map[string]string {
	columns := make(map[string]string, len(entries))

	for _, e := range entries {
		if _, dup := columns[e.Key]; dup {
			continue
		}

		columns[e.Key] = strings.TrimRight(e.Value, ", ")
	}

	return columns
}
