package schema

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ddddddO/gtree"
)

// RenderTree prints the model as a tree:
// schemas, then tables/views/functions, then columns or arguments.
func RenderTree(w io.Writer, model *Model) error {
	st := model.Stats()
	root := gtree.NewRoot(fmt.Sprintf("schemas (%d tables, %d views, %d functions)", st.Tables, st.Views, st.Functions))

	for _, name := range model.SchemaNames() {
		s := model.Schemas[name]
		node := root.Add(name)

		addRelationNodes(node, "tables", s.Tables)
		addRelationNodes(node, "views", s.Views)

		if len(s.Functions) == 0 {
			continue
		}

		fns := node.Add("functions")
		for _, fn := range sortedKeys(s.Functions) {
			f := s.Functions[fn]

			label := fmt.Sprintf("%s(%s)", f.Name, strings.Join(f.Args, ", "))
			if f.Returns != "" {
				label += " -> " + f.Returns
			}

			fns.Add(label)
		}
	}

	return gtree.OutputFromRoot(w, root)
}

func addRelationNodes(parent *gtree.Node, label string, rels map[string]*Relation) {
	if len(rels) == 0 {
		return
	}

	names := make([]string, 0, len(rels))
	for name := range rels {
		names = append(names, name)
	}

	sort.Strings(names)

	group := parent.Add(label)
	for _, name := range names {
		r := rels[name]

		node := group.Add(name)
		for _, col := range r.ColumnNames() {
			node.Add(col + ": " + r.Columns[col])
		}
	}
}
