package scanner

import (
	"regexp"
	"sort"
	"strings"

	"github.com/rlch/schemadrift"
)

// qualifierWindow bounds how far back a chained .schema() call is searched.
const qualifierWindow = 100

// FilterOperators are the query-builder filter methods whose first argument
// names a column.
var FilterOperators = []string{"eq", "neq", "gt", "gte", "lt", "lte", "like", "ilike", "in", "contains", "is", "match"}

var (
	fromPattern      = regexp.MustCompile(`\.from\(\s*['"](\w+)['"]\s*\)`)
	rpcPattern       = regexp.MustCompile(`\.rpc\(\s*['"](\w+)['"]`)
	schemaPattern    = regexp.MustCompile(`\.schema\(\s*['"](\w+)['"]\s*\)`)
	qualifierPattern = regexp.MustCompile(`\.schema\(\s*['"](\w+)['"]\s*\)\s*$`)
	selectPattern    = regexp.MustCompile("\\.select\\(\\s*(?:'([^']*)'|\"([^\"]*)\"|`([^`]*)`)")
	filterPattern    = regexp.MustCompile(`\.(` + strings.Join(FilterOperators, "|") + `)\(\s*['"](\w+)['"]`)
	viewTypePattern  = regexp.MustCompile(`\bas\s+(?:Database\s*)?(?:\[\s*['"](\w+)['"]\s*\]\s*)?(?:\bViews|\[\s*['"]Views['"]\s*\])\s*\[\s*['"](\w+)['"]\s*\]`)
)

// ignoredProperties are sequence built-ins that are never columns.
var ignoredProperties = map[string]bool{
	"length":  true,
	"map":     true,
	"filter":  true,
	"reduce":  true,
	"forEach": true,
	"find":    true,
	"some":    true,
	"every":   true,
}

func propertyPattern(receivers []string) *regexp.Regexp {
	quoted := make([]string, 0, len(receivers))
	for _, r := range receivers {
		quoted = append(quoted, regexp.QuoteMeta(r))
	}

	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\??\.([A-Za-z_$][\w$]*)`)
}

// ScanSource runs every pattern pass over one file's text using the default
// receivers. Events are ordered by position.
func ScanSource(path, text string) []AccessEvent {
	return New().ScanSource(path, text)
}

// ScanSource runs every pattern pass over one file's text. Events are
// ordered by position.
func (s *Scanner) ScanSource(path, text string) []AccessEvent {
	src := newSource(path, text)

	froms := src.scanFrom()

	var events []AccessEvent
	events = append(events, froms...)
	events = append(events, src.scanRPC()...)
	events = append(events, src.scanSchema()...)
	events = append(events, src.scanSelect(froms)...)
	events = append(events, src.scanFilter(froms)...)
	events = append(events, src.scanTypeAssertion()...)
	events = append(events, src.scanProperty(s.property)...)

	sortEvents(events)

	return events
}

// source is one file's text with a line index.
type source struct {
	path       string
	text       string
	lineStarts []int
}

func newSource(path, text string) *source {
	starts := []int{0}

	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}

	return &source{path: path, text: text, lineStarts: starts}
}

// line returns the 1-based line containing offset.
func (s *source) line(offset int) int {
	return sort.SearchInts(s.lineStarts, offset+1)
}

// context returns the trimmed text of the line containing offset.
func (s *source) context(offset int) string {
	start := s.lineStarts[s.line(offset)-1]

	end := strings.IndexByte(s.text[start:], '\n')
	if end < 0 {
		end = len(s.text)
	} else {
		end += start
	}

	return strings.TrimSpace(s.text[start:end])
}

func (s *source) event(kind Kind, offset int, name string) AccessEvent {
	return AccessEvent{
		File:    s.path,
		Line:    s.line(offset),
		Kind:    kind,
		Name:    name,
		Context: s.context(offset),
		Offset:  offset,
	}
}

func (s *source) scanFrom() []AccessEvent {
	var events []AccessEvent

	for _, m := range fromPattern.FindAllStringSubmatchIndex(s.text, -1) {
		ev := s.event(KindTableReference, m[0], s.text[m[2]:m[3]])
		ev.Schema = s.qualifier(m[0])
		events = append(events, ev)
	}

	return events
}

// qualifier returns the schema of a .schema() call chained directly before
// offset, or public.
func (s *source) qualifier(offset int) string {
	window := s.text[max(0, offset-qualifierWindow):offset]

	if m := qualifierPattern.FindStringSubmatch(window); m != nil {
		return m[1]
	}

	return schemadrift.SchemaPublic
}

func (s *source) scanRPC() []AccessEvent {
	var events []AccessEvent

	for _, m := range rpcPattern.FindAllStringSubmatchIndex(s.text, -1) {
		ev := s.event(KindRPCCall, m[0], s.text[m[2]:m[3]])
		ev.Schema = schemadrift.SchemaPublic
		events = append(events, ev)
	}

	return events
}

func (s *source) scanSchema() []AccessEvent {
	var events []AccessEvent

	for _, m := range schemaPattern.FindAllStringSubmatchIndex(s.text, -1) {
		events = append(events, s.event(KindSchemaQualifier, m[0], s.text[m[2]:m[3]]))
	}

	return events
}

func (s *source) scanSelect(froms []AccessEvent) []AccessEvent {
	var events []AccessEvent

	for _, m := range selectPattern.FindAllStringSubmatchIndex(s.text, -1) {
		from, ok := nearestFrom(froms, m[0])
		if !ok {
			continue
		}

		var arg string

		for g := 2; g < len(m); g += 2 {
			if m[g] >= 0 {
				arg = s.text[m[g]:m[g+1]]

				break
			}
		}

		columns := ParseSelectColumns(arg)
		if len(columns) == 0 {
			continue
		}

		ev := s.event(KindColumnSelect, m[0], from.Name)
		ev.Schema = from.Schema
		ev.Columns = columns
		events = append(events, ev)
	}

	return events
}

func (s *source) scanFilter(froms []AccessEvent) []AccessEvent {
	var events []AccessEvent

	for _, m := range filterPattern.FindAllStringSubmatchIndex(s.text, -1) {
		from, ok := nearestFrom(froms, m[0])
		if !ok {
			continue
		}

		ev := s.event(KindColumnFilter, m[0], from.Name)
		ev.Schema = from.Schema
		ev.Operator = s.text[m[2]:m[3]]
		ev.Columns = []string{s.text[m[4]:m[5]]}
		events = append(events, ev)
	}

	return events
}

func (s *source) scanTypeAssertion() []AccessEvent {
	var events []AccessEvent

	for _, m := range viewTypePattern.FindAllStringSubmatchIndex(s.text, -1) {
		ev := s.event(KindTypeAssertion, m[0], s.text[m[4]:m[5]])

		ev.Schema = schemadrift.SchemaPublic
		if m[2] >= 0 {
			ev.Schema = s.text[m[2]:m[3]]
		}

		events = append(events, ev)
	}

	return events
}

func (s *source) scanProperty(pattern *regexp.Regexp) []AccessEvent {
	var events []AccessEvent

	for _, m := range pattern.FindAllStringSubmatchIndex(s.text, -1) {
		prop := s.text[m[2]:m[3]]
		if ignoredProperties[prop] || strings.HasPrefix(prop, "_") {
			continue
		}

		events = append(events, s.event(KindPropertyAccess, m[0], prop))
	}

	return events
}

// nearestFrom returns the last table reference that starts before offset.
// froms must be ordered by offset.
func nearestFrom(froms []AccessEvent, offset int) (AccessEvent, bool) {
	i := sort.Search(len(froms), func(i int) bool {
		return froms[i].Offset >= offset
	})

	if i == 0 {
		return AccessEvent{}, false
	}

	return froms[i-1], true
}

// ParseSelectColumns reduces a select argument to base column names.
// Aliases (`col:alias`, `col as alias`), casts, JSON paths, join hints, and
// call or embed parentheses are stripped; `*` and empty pieces are dropped.
//
//	ParseSelectColumns("id, name:alias, count(*) as total") // [id name count]
func ParseSelectColumns(arg string) []string {
	var columns []string

	for _, piece := range splitTopLevel(arg) {
		col := strings.TrimSpace(piece)
		col = strings.TrimPrefix(col, "...")

		if i := strings.Index(strings.ToLower(col), " as "); i >= 0 {
			col = col[:i]
		}

		for _, sep := range []string{"(", ":", "->", "!"} {
			if i := strings.Index(col, sep); i >= 0 {
				col = col[:i]
			}
		}

		col = strings.TrimSpace(col)
		if col == "" || col == "*" {
			continue
		}

		columns = append(columns, col)
	}

	return columns
}

// splitTopLevel splits on commas outside parentheses.
func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		start int
	)

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}

	return append(parts, s[start:])
}
