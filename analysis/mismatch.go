// Package analysis classifies database access events against a schema model.
package analysis

// Severity ranks how badly a mismatch breaks the code.
type Severity string

// Severities in rank order.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Severities lists all severities from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// Rank returns 0 for critical through 3 for low, and 4 for unknown values.
func (s Severity) Rank() int {
	for i, sev := range Severities {
		if s == sev {
			return i
		}
	}

	return len(Severities)
}

// AtLeast reports whether s is as severe as threshold or more.
func (s Severity) AtLeast(threshold Severity) bool {
	return s.Rank() <= threshold.Rank()
}

// ParseSeverity maps a name to a Severity.
func ParseSeverity(name string) (Severity, bool) {
	for _, sev := range Severities {
		if string(sev) == name {
			return sev, true
		}
	}

	return "", false
}

// MismatchType names the kind of discrepancy.
type MismatchType string

// Mismatch types.
const (
	TypeTableNotFound        MismatchType = "table_not_found"
	TypeViewNotFound         MismatchType = "view_not_found"
	TypeSchemaNotFound       MismatchType = "schema_not_found"
	TypeMissingColumn        MismatchType = "missing_column"
	TypeMissingFilterColumn  MismatchType = "missing_filter_column"
	TypeMissingRPCFunction   MismatchType = "missing_rpc_function"
	TypeInvalidTypeAssertion MismatchType = "invalid_type_assertion"
	TypePropertyNotFound     MismatchType = "property_possibly_not_found"
)

// Mismatch is a discrepancy between a code-level access and the schema model.
type Mismatch struct {
	Type        MismatchType `json:"type" yaml:"type"`
	Severity    Severity     `json:"severity" yaml:"severity"`
	File        string       `json:"file" yaml:"file"`
	Line        int          `json:"line" yaml:"line"`
	CodeElement string       `json:"code_element" yaml:"code_element"`
	Message     string       `json:"message" yaml:"message"`
	Suggestion  string       `json:"suggestion" yaml:"suggestion"`
	Context     string       `json:"context" yaml:"context"`
}
