// Package scanner finds database access call sites in TypeScript sources.
//
// It is a lexical pass: it does not resolve variables, aliases, or control
// flow, and select/filter calls are tied to the nearest preceding .from()
// in the same file, which can mis-associate calls when one file builds
// several queries.
package scanner

import "sort"

// Kind classifies an AccessEvent.
type Kind string

const (
	// KindTableReference is a .from("name") call.
	KindTableReference Kind = "table_reference"
	// KindRPCCall is a .rpc("name", ...) call.
	KindRPCCall Kind = "rpc_call"
	// KindSchemaQualifier is a .schema("name") call.
	KindSchemaQualifier Kind = "schema_qualifier_call"
	// KindColumnSelect is a .select("a, b") call tied to a preceding .from.
	KindColumnSelect Kind = "column_select"
	// KindColumnFilter is a filter call such as .eq("col", v) tied to a preceding .from.
	KindColumnFilter Kind = "column_filter"
	// KindTypeAssertion is an `as` cast naming Views['name'].
	KindTypeAssertion Kind = "type_assertion"
	// KindPropertyAccess is a receiver.property expression on a result variable.
	KindPropertyAccess Kind = "property_access"
)

// Kinds lists every event kind in report order.
var Kinds = []Kind{
	KindTableReference,
	KindRPCCall,
	KindSchemaQualifier,
	KindColumnSelect,
	KindColumnFilter,
	KindTypeAssertion,
	KindPropertyAccess,
}

// AccessEvent is one database access site.
//
// For column_select and column_filter events Name is the relation of the
// associated .from call and Columns holds the referenced columns.
type AccessEvent struct {
	File     string   `json:"file_path" yaml:"file_path"`
	Line     int      `json:"line_number" yaml:"line_number"`
	Kind     Kind     `json:"kind" yaml:"kind"`
	Name     string   `json:"primary_name" yaml:"primary_name"`
	Schema   string   `json:"schema_qualifier,omitempty" yaml:"schema_qualifier,omitempty"`
	Columns  []string `json:"secondary_names,omitempty" yaml:"secondary_names,omitempty"`
	Operator string   `json:"operator,omitempty" yaml:"operator,omitempty"`
	Context  string   `json:"raw_context_text" yaml:"raw_context_text"`

	// Offset is the byte offset of the match in the file.
	Offset int `json:"-" yaml:"-"`
}

// Result is the outcome of scanning a tree.
type Result struct {
	// Root is the scanned directory.
	Root string `json:"root"`

	// Files are the files read and scanned, relative to Root and sorted.
	// Unreadable files are listed in Skipped instead.
	Files []string `json:"files"`

	// Skipped are files that could not be read.
	Skipped []string `json:"skipped,omitempty"`

	// Events are ordered by file, then position in the file.
	Events []AccessEvent `json:"events"`
}

// Counts returns the number of events per kind.
func (r *Result) Counts() map[Kind]int {
	counts := make(map[Kind]int, len(Kinds))
	for _, ev := range r.Events {
		counts[ev.Kind]++
	}

	return counts
}

// sortEvents orders events by file, then offset. Events at the same offset
// keep their pass order.
func sortEvents(events []AccessEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].File != events[j].File {
			return events[i].File < events[j].File
		}

		return events[i].Offset < events[j].Offset
	})
}
