// Package report groups, ranks, and renders mismatches.
package report

import (
	"fmt"
	"sort"

	"github.com/rlch/schemadrift"
	"github.com/rlch/schemadrift/analysis"
)

// criticalWeight is how much one critical mismatch adds to a file's priority
// beyond its share of the total count.
const criticalWeight = 10

// maxExamples caps the example mismatches kept per recommendation.
const maxExamples = 3

// Report is the aggregated view of one run's mismatches.
type Report struct {
	Summary         Summary             `json:"summary"`
	Files           []FileGroup         `json:"files"`
	Recommendations []Recommendation    `json:"recommendations"`
	NextSteps       []string            `json:"next_steps"`
	Mismatches      []analysis.Mismatch `json:"mismatches"`
}

// Summary counts mismatches.
type Summary struct {
	Total      int                           `json:"total"`
	BySeverity map[analysis.Severity]int     `json:"by_severity"`
	ByType     map[analysis.MismatchType]int `json:"by_type"`
}

// FileGroup holds the mismatches of one file.
type FileGroup struct {
	File       string              `json:"file"`
	Critical   int                 `json:"critical"`
	Total      int                 `json:"total"`
	Priority   int                 `json:"priority"`
	Mismatches []analysis.Mismatch `json:"mismatches"`
}

// Recommendation is the remediation hint for one mismatch type.
type Recommendation struct {
	Type        analysis.MismatchType `json:"type"`
	Count       int                   `json:"count"`
	Severity    analysis.Severity     `json:"severity"`
	Examples    []analysis.Mismatch   `json:"examples"`
	FixApproach string                `json:"fix_approach"`
	Effort      Effort                `json:"estimated_effort"`
}

// Effort estimates the work needed to fix a group of mismatches.
type Effort string

// Effort buckets.
const (
	EffortLow      Effort = "Low (< 30 min)"
	EffortMedium   Effort = "Medium (30-120 min)"
	EffortHigh     Effort = "High (2-4 hours)"
	EffortVeryHigh Effort = "Very High (4+ hours)"
)

// EstimateEffort buckets a mismatch count.
func EstimateEffort(count int) Effort {
	switch {
	case count <= 5:
		return EffortLow
	case count <= 20:
		return EffortMedium
	case count <= 50:
		return EffortHigh
	default:
		return EffortVeryHigh
	}
}

var fixApproaches = map[analysis.MismatchType]string{
	analysis.TypeTableNotFound:        "Verify the table exists in the database. Use the correct schema prefix or check table naming.",
	analysis.TypeViewNotFound:         "Verify the view exists in the database. Add the _view suffix if needed or use the correct schema.",
	analysis.TypeSchemaNotFound:       "Use a correct schema name. Check the available schemas in the generated types.",
	analysis.TypeMissingColumn:        "Select only columns the relation declares, or add the column and regenerate types.",
	analysis.TypeMissingFilterColumn:  "Filter only on columns the relation declares, or add the column and regenerate types.",
	analysis.TypeMissingRPCFunction:   "Implement the missing RPC function in the database or use table operations instead.",
	analysis.TypeInvalidTypeAssertion: "Point the type at an existing view or regenerate the database types.",
	analysis.TypePropertyNotFound:     "Verify the property is returned by the query or add a separate join or lookup.",
}

// FixApproach returns the remediation hint for a mismatch type.
func FixApproach(typ analysis.MismatchType) string {
	if approach, ok := fixApproaches[typ]; ok {
		return approach
	}

	return "Review the database schema and update the code to match."
}

// Aggregate groups mismatches by file and type. It never modifies the input.
func Aggregate(mismatches []analysis.Mismatch) *Report {
	r := &Report{
		Summary: Summary{
			Total:      len(mismatches),
			BySeverity: make(map[analysis.Severity]int, len(analysis.Severities)),
			ByType:     make(map[analysis.MismatchType]int),
		},
		Files:           []FileGroup{},
		Recommendations: []Recommendation{},
		Mismatches:      append([]analysis.Mismatch{}, mismatches...),
	}

	for _, sev := range analysis.Severities {
		r.Summary.BySeverity[sev] = 0
	}

	files := make(map[string]*FileGroup)
	types := make(map[analysis.MismatchType]*Recommendation)

	var (
		fileOrder []string
		typeOrder []analysis.MismatchType
	)

	for _, m := range mismatches {
		r.Summary.BySeverity[m.Severity]++
		r.Summary.ByType[m.Type]++

		fg, ok := files[m.File]
		if !ok {
			fg = &FileGroup{File: m.File}
			files[m.File] = fg
			fileOrder = append(fileOrder, m.File)
		}

		fg.Total++
		if m.Severity == analysis.SeverityCritical {
			fg.Critical++
		}

		fg.Mismatches = append(fg.Mismatches, m)

		rec, ok := types[m.Type]
		if !ok {
			rec = &Recommendation{
				Type:        m.Type,
				Severity:    m.Severity,
				FixApproach: FixApproach(m.Type),
			}
			types[m.Type] = rec
			typeOrder = append(typeOrder, m.Type)
		}

		rec.Count++
		if len(rec.Examples) < maxExamples {
			rec.Examples = append(rec.Examples, m)
		}
	}

	for _, name := range fileOrder {
		fg := files[name]
		fg.Priority = Priority(fg.Critical, fg.Total)
		r.Files = append(r.Files, *fg)
	}

	sort.SliceStable(r.Files, func(i, j int) bool {
		if r.Files[i].Priority != r.Files[j].Priority {
			return r.Files[i].Priority > r.Files[j].Priority
		}

		return r.Files[i].File < r.Files[j].File
	})

	for _, typ := range typeOrder {
		rec := types[typ]
		rec.Effort = EstimateEffort(rec.Count)
		r.Recommendations = append(r.Recommendations, *rec)
	}

	sort.SliceStable(r.Recommendations, func(i, j int) bool {
		a, b := r.Recommendations[i], r.Recommendations[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() < b.Severity.Rank()
		}

		if a.Count != b.Count {
			return a.Count > b.Count
		}

		return a.Type < b.Type
	})

	r.NextSteps = nextSteps(r.Summary)

	return r
}

// Priority scores a file: each critical mismatch weighs criticalWeight on
// top of the total count.
func Priority(critical, total int) int {
	return criticalWeight*critical + total
}

func nextSteps(s Summary) []string {
	var steps []string

	if n := s.BySeverity[analysis.SeverityCritical]; n > 0 {
		steps = append(steps, fmt.Sprintf("Fix %d critical mismatches first; these break queries at runtime", n))
	}

	if n := s.BySeverity[analysis.SeverityHigh]; n > 0 {
		steps = append(steps, fmt.Sprintf("Address %d high-priority mismatches", n))
	}

	if s.Total > 20 {
		steps = append(steps, "Use the file-by-file breakdown to prioritize by impact")
	}

	if s.Total == 0 {
		return append(steps, "No mismatches found; re-run after regenerating database types")
	}

	return append(steps, "Run schemadrift scan again after fixes to verify resolution")
}

// MaxSeverity returns the most severe mismatch severity, or false when the
// report is empty.
func (r *Report) MaxSeverity() (analysis.Severity, bool) {
	for _, sev := range analysis.Severities {
		if r.Summary.BySeverity[sev] > 0 {
			return sev, true
		}
	}

	return "", false
}

// ExitCode returns 1 when a mismatch is at least as severe as failOn, else 0.
// failOn "none" never fails; an empty value means "critical".
func (r *Report) ExitCode(failOn string) (int, error) {
	if failOn == "" {
		failOn = schemadrift.FailOnCritical
	}

	if failOn == schemadrift.FailOnNone {
		return 0, nil
	}

	threshold, ok := analysis.ParseSeverity(failOn)
	if !ok {
		return 0, fmt.Errorf("%w: unknown fail-on threshold %q", schemadrift.ErrInvalidConfig, failOn)
	}

	if worst, ok := r.MaxSeverity(); ok && worst.AtLeast(threshold) {
		return 1, nil
	}

	return 0, nil
}
