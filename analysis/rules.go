package analysis

import (
	"fmt"
	"strings"

	"github.com/rlch/schemadrift"
	"github.com/rlch/schemadrift/scanner"
)

// Rule represents one check applied to access events of a single kind.
// Inspired by go/analysis.Analyzer pattern.
type Rule struct {
	// Name is a short identifier for the rule.
	Name string

	// Doc is a brief description of what the rule checks.
	Doc string

	// Kind is the event kind the rule applies to.
	Kind scanner.Kind

	// Severity is the default severity for mismatches from this rule.
	Severity Severity

	// Run checks one event and reports mismatches on the pass.
	Run func(p *Pass, ev scanner.AccessEvent)
}

// DefaultRules returns all built-in rules, one per event kind.
func DefaultRules() []*Rule {
	return []*Rule{
		// Critical: the query fails at runtime.
		tableReferenceRule,
		schemaQualifierRule,
		rpcCallRule, // critical in strict mode

		// High and medium: the query runs but returns errors or wrong rows.
		columnSelectRule,
		columnFilterRule,
		typeAssertionRule,

		// Low: heuristic only.
		propertyAccessRule,
	}
}

// ----------------------------------------------------------------------------
// Rule: table-reference
// ----------------------------------------------------------------------------

var tableReferenceRule = &Rule{
	Name:     "table-reference",
	Doc:      "Reports .from() calls naming a relation that is neither a view nor a table.",
	Kind:     scanner.KindTableReference,
	Severity: SeverityCritical,
	Run:      checkTableReference,
}

func checkTableReference(p *Pass, ev scanner.AccessEvent) {
	schema := schemaOf(ev)

	if p.Model.ViewExists(schema, ev.Name) {
		return
	}

	if p.Model.TableExists(schema, ev.Name) {
		if p.RequireViews {
			suggestion := fmt.Sprintf("Create a view for '%s' and query it instead of the base table", ev.Name)
			if alt := p.viewAlternative(schema, ev.Name); alt != "" {
				suggestion = alt
			}

			p.Report(ev, Mismatch{
				Type:        TypeViewNotFound,
				Severity:    SeverityHigh,
				CodeElement: ev.Name,
				Message:     fmt.Sprintf("'%s' resolves to a base table; no view is defined", ev.Name),
				Suggestion:  suggestion,
			})
		}

		return
	}

	suggestion := p.viewAlternative(schema, ev.Name)
	if suggestion == "" {
		suggestion = p.didYouMean(ev.Name, p.Model.RelationNames(),
			fmt.Sprintf("Table/view '%s' not found in schema '%s'. Check the database schema.", ev.Name, schema))
	}

	p.Report(ev, Mismatch{
		Type:        TypeTableNotFound,
		Severity:    SeverityCritical,
		CodeElement: ev.Name,
		Message:     fmt.Sprintf("Table or view '%s' not found in schema '%s'", ev.Name, schema),
		Suggestion:  suggestion,
	})
}

// viewAlternative suggests `<name>_view` when it exists in public or in the
// event's own schema.
func (p *Pass) viewAlternative(schema, name string) string {
	view := name + "_view"

	if v := p.Model.Schemas[schemadrift.SchemaPublic]; v != nil && v.Views[view] != nil {
		return fmt.Sprintf("Use '.from('%s')' instead - it exists in the public schema", view)
	}

	if s := p.Model.Schemas[schema]; s != nil && s.Views[view] != nil {
		return fmt.Sprintf("Use '.schema('%s').from('%s')' - add the _view suffix", schema, view)
	}

	return ""
}

// ----------------------------------------------------------------------------
// Rule: schema-qualifier
// ----------------------------------------------------------------------------

var schemaQualifierRule = &Rule{
	Name:     "schema-qualifier",
	Doc:      "Reports .schema() calls naming an unknown schema.",
	Kind:     scanner.KindSchemaQualifier,
	Severity: SeverityCritical,
	Run:      checkSchemaQualifier,
}

func checkSchemaQualifier(p *Pass, ev scanner.AccessEvent) {
	if p.Model.HasSchema(ev.Name) {
		return
	}

	p.Report(ev, Mismatch{
		Type:        TypeSchemaNotFound,
		Severity:    SeverityCritical,
		CodeElement: ev.Name,
		Message:     fmt.Sprintf("Schema '%s' not found in database", ev.Name),
		Suggestion:  "Use one of these schemas: " + strings.Join(p.Model.SchemaNames(), ", "),
	})
}

// ----------------------------------------------------------------------------
// Rule: rpc-call
// ----------------------------------------------------------------------------

var rpcCallRule = &Rule{
	Name:     "rpc-call",
	Doc:      "Reports .rpc() calls naming a function missing from the public schema.",
	Kind:     scanner.KindRPCCall,
	Severity: SeverityHigh,
	Run:      checkRPCCall,
}

func checkRPCCall(p *Pass, ev scanner.AccessEvent) {
	if p.Model.FunctionExists(schemadrift.SchemaPublic, ev.Name) {
		return
	}

	severity := SeverityHigh
	if p.Strict {
		severity = SeverityCritical
	}

	p.Report(ev, Mismatch{
		Type:        TypeMissingRPCFunction,
		Severity:    severity,
		CodeElement: ev.Name,
		Message:     fmt.Sprintf("RPC function '%s' not found in database", ev.Name),
		Suggestion: p.didYouMean(ev.Name, p.Model.FunctionNames(schemadrift.SchemaPublic),
			fmt.Sprintf("Check the database schema for available RPC functions or implement %s", ev.Name)),
	})
}

// ----------------------------------------------------------------------------
// Rule: column-select
// ----------------------------------------------------------------------------

var columnSelectRule = &Rule{
	Name:     "column-select",
	Doc:      "Reports selected columns missing from the queried relation.",
	Kind:     scanner.KindColumnSelect,
	Severity: SeverityHigh,
	Run:      checkColumnSelect,
}

func checkColumnSelect(p *Pass, ev scanner.AccessEvent) {
	checkColumns(p, ev, TypeMissingColumn, SeverityHigh, "Column")
}

// ----------------------------------------------------------------------------
// Rule: column-filter
// ----------------------------------------------------------------------------

var columnFilterRule = &Rule{
	Name:     "column-filter",
	Doc:      "Reports filter columns missing from the queried relation.",
	Kind:     scanner.KindColumnFilter,
	Severity: SeverityMedium,
	Run:      checkColumnFilter,
}

func checkColumnFilter(p *Pass, ev scanner.AccessEvent) {
	checkColumns(p, ev, TypeMissingFilterColumn, SeverityMedium, "Filter column")
}

// checkColumns reports each event column absent from the resolved relation.
// Unresolved relations are skipped: the table reference already reported them.
func checkColumns(p *Pass, ev scanner.AccessEvent, typ MismatchType, severity Severity, label string) {
	rel := p.Model.ResolveRelation(schemaOf(ev), ev.Name)
	if rel == nil {
		return
	}

	for _, col := range ev.Columns {
		if rel.HasColumn(col) {
			continue
		}

		fallback := fmt.Sprintf("Available columns: %s", truncateList(rel.ColumnNames(), maxListedColumns))

		p.Report(ev, Mismatch{
			Type:        typ,
			Severity:    severity,
			CodeElement: rel.Name + "." + col,
			Message:     fmt.Sprintf("%s '%s' not found in %s '%s'", label, col, rel.Kind, rel.Name),
			Suggestion:  p.didYouMean(col, rel.ColumnNames(), fallback),
		})
	}
}

// ----------------------------------------------------------------------------
// Rule: type-assertion
// ----------------------------------------------------------------------------

var typeAssertionRule = &Rule{
	Name:     "type-assertion",
	Doc:      "Reports `as` casts to views that do not exist.",
	Kind:     scanner.KindTypeAssertion,
	Severity: SeverityMedium,
	Run:      checkTypeAssertion,
}

func checkTypeAssertion(p *Pass, ev scanner.AccessEvent) {
	if p.Model.ViewExists(schemaOf(ev), ev.Name) {
		return
	}

	p.Report(ev, Mismatch{
		Type:        TypeInvalidTypeAssertion,
		Severity:    SeverityMedium,
		CodeElement: ev.Name,
		Message:     fmt.Sprintf("Type assertion references view '%s' which does not exist", ev.Name),
		Suggestion:  p.didYouMean(ev.Name, p.viewNames(), "Regenerate database types or fix the view name"),
	})
}

// ----------------------------------------------------------------------------
// Rule: property-access
// ----------------------------------------------------------------------------

var propertyAccessRule = &Rule{
	Name:     "property-access",
	Doc:      "Reports result properties that match no known column (low confidence).",
	Kind:     scanner.KindPropertyAccess,
	Severity: SeverityLow,
	Run:      checkPropertyAccess,
}

func checkPropertyAccess(p *Pass, ev scanner.AccessEvent) {
	for _, col := range p.columns() {
		if strings.Contains(ev.Name, col) || strings.Contains(col, ev.Name) {
			return
		}
	}

	p.Report(ev, Mismatch{
		Type:        TypePropertyNotFound,
		Severity:    SeverityLow,
		CodeElement: ev.Name,
		Message:     fmt.Sprintf("Property '%s' might not exist on database row", ev.Name),
		Suggestion:  fmt.Sprintf("Verify '%s' is returned by your query or computed in code", ev.Name),
	})
}

// ----------------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------------

const maxListedColumns = 10

func schemaOf(ev scanner.AccessEvent) string {
	if ev.Schema == "" {
		return schemadrift.SchemaPublic
	}

	return ev.Schema
}

func truncateList(items []string, n int) string {
	if len(items) <= n {
		return strings.Join(items, ", ")
	}

	return fmt.Sprintf("%s, ... (%d more)", strings.Join(items[:n], ", "), len(items)-n)
}
