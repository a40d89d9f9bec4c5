package schema

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rlch/schemadrift"
	"gopkg.in/yaml.v3"
)

// yamlModel is the YAML representation of Model.
type yamlModel struct {
	Schemas map[string]*yamlSchema `yaml:"schemas"`
}

// yamlSchema is the YAML representation of Schema.
type yamlSchema struct {
	Tables    map[string]map[string]string `yaml:"tables,omitempty"`
	Views     map[string]map[string]string `yaml:"views,omitempty"`
	Functions map[string]*yamlFunction     `yaml:"functions,omitempty"`
}

// yamlFunction is the YAML representation of Function.
type yamlFunction struct {
	Args    []string `yaml:"args,omitempty"`
	Returns string   `yaml:"returns,omitempty"`
}

// LoadSnapshot loads a Model from a YAML snapshot written by WriteSnapshot.
func LoadSnapshot(path string) (*Model, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("snapshot %s: %w", path, schemadrift.ErrNotFound)
		}

		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var ym yamlModel
	if err := yaml.Unmarshal(data, &ym); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}

	return yamlToModel(&ym), nil
}

// yamlToModel converts the YAML representation to a Model. Relations without
// columns are dropped, matching extraction.
func yamlToModel(ym *yamlModel) *Model {
	model := NewModel()

	for name, ys := range ym.Schemas {
		s := NewSchema(name)

		if ys != nil {
			for rel, cols := range ys.Tables {
				if len(cols) > 0 {
					s.Tables[rel] = &Relation{Schema: name, Name: rel, Kind: RelationTable, Columns: cols}
				}
			}

			for rel, cols := range ys.Views {
				if len(cols) > 0 {
					s.Views[rel] = &Relation{Schema: name, Name: rel, Kind: RelationView, Columns: cols}
				}
			}

			for fn, yf := range ys.Functions {
				def := &Function{Schema: name, Name: fn, Args: []string{}}
				if yf != nil {
					def.Args = append(def.Args, yf.Args...)
					def.Returns = yf.Returns
				}

				s.Functions[fn] = def
			}
		}

		model.Schemas[name] = s
	}

	return model
}

// WriteSnapshot writes a Model as YAML. Map keys are emitted sorted so the
// output is stable across runs.
func WriteSnapshot(w io.Writer, model *Model) (err error) {
	if _, err := fmt.Fprintln(w, "# Generated by schemadrift schema --format yaml"); err != nil {
		return err
	}

	ym := &yamlModel{
		Schemas: make(map[string]*yamlSchema, len(model.Schemas)),
	}

	for _, name := range model.SchemaNames() {
		s := model.Schemas[name]
		ys := &yamlSchema{}

		if len(s.Tables) > 0 {
			ys.Tables = make(map[string]map[string]string, len(s.Tables))
			for rel, r := range s.Tables {
				ys.Tables[rel] = r.Columns
			}
		}

		if len(s.Views) > 0 {
			ys.Views = make(map[string]map[string]string, len(s.Views))
			for rel, r := range s.Views {
				ys.Views[rel] = r.Columns
			}
		}

		if len(s.Functions) > 0 {
			ys.Functions = make(map[string]*yamlFunction, len(s.Functions))
			for fn, f := range s.Functions {
				ys.Functions[fn] = &yamlFunction{Args: f.Args, Returns: f.Returns}
			}
		}

		ym.Schemas[name] = ys
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer func() {
		if cerr := encoder.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return encoder.Encode(ym)
}
