package report_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rlch/schemadrift"
	"github.com/rlch/schemadrift/analysis"
	"github.com/rlch/schemadrift/report"
	"github.com/rlch/schemadrift/scanner"
	"github.com/rlch/schemadrift/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mismatch(file string, line int, typ analysis.MismatchType, sev analysis.Severity) analysis.Mismatch {
	return analysis.Mismatch{
		Type:        typ,
		Severity:    sev,
		File:        file,
		Line:        line,
		CodeElement: fmt.Sprintf("elem%d", line),
		Message:     fmt.Sprintf("%s at %s:%d", typ, file, line),
		Context:     "supabase.from('x')",
	}
}

func sample() []analysis.Mismatch {
	return []analysis.Mismatch{
		mismatch("b.ts", 1, analysis.TypeMissingColumn, analysis.SeverityHigh),
		mismatch("a.ts", 1, analysis.TypeTableNotFound, analysis.SeverityCritical),
		mismatch("b.ts", 2, analysis.TypeMissingColumn, analysis.SeverityHigh),
		mismatch("a.ts", 4, analysis.TypeTableNotFound, analysis.SeverityCritical),
		mismatch("b.ts", 3, analysis.TypeMissingColumn, analysis.SeverityHigh),
		mismatch("a.ts", 9, analysis.TypePropertyNotFound, analysis.SeverityLow),
		mismatch("b.ts", 5, analysis.TypeMissingColumn, analysis.SeverityHigh),
		mismatch("b.ts", 8, analysis.TypeMissingFilterColumn, analysis.SeverityMedium),
	}
}

func TestAggregate_Summary(t *testing.T) {
	t.Parallel()

	r := report.Aggregate(sample())

	assert.Equal(t, 8, r.Summary.Total)
	assert.Equal(t, map[analysis.Severity]int{
		analysis.SeverityCritical: 2,
		analysis.SeverityHigh:     4,
		analysis.SeverityMedium:   1,
		analysis.SeverityLow:      1,
	}, r.Summary.BySeverity)
	assert.Equal(t, map[analysis.MismatchType]int{
		analysis.TypeTableNotFound:       2,
		analysis.TypeMissingColumn:       4,
		analysis.TypeMissingFilterColumn: 1,
		analysis.TypePropertyNotFound:    1,
	}, r.Summary.ByType)
}

func TestAggregate_FilePriority(t *testing.T) {
	t.Parallel()

	r := report.Aggregate(sample())

	type row struct {
		File     string
		Critical int
		Total    int
		Priority int
		Lines    []int
	}

	var got []row

	for _, fg := range r.Files {
		var lines []int
		for _, m := range fg.Mismatches {
			lines = append(lines, m.Line)
		}

		got = append(got, row{fg.File, fg.Critical, fg.Total, fg.Priority, lines})
	}

	expected := []row{
		{File: "a.ts", Critical: 2, Total: 3, Priority: 23, Lines: []int{1, 4, 9}},
		{File: "b.ts", Critical: 0, Total: 5, Priority: 5, Lines: []int{1, 2, 3, 5, 8}},
	}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("files (-want +got):\n%s", diff)
	}
}

func TestAggregate_FileTieBreak(t *testing.T) {
	t.Parallel()

	r := report.Aggregate([]analysis.Mismatch{
		mismatch("z.ts", 1, analysis.TypeMissingColumn, analysis.SeverityHigh),
		mismatch("m.ts", 1, analysis.TypeMissingColumn, analysis.SeverityHigh),
	})

	require.Len(t, r.Files, 2)
	assert.Equal(t, "m.ts", r.Files[0].File)
	assert.Equal(t, "z.ts", r.Files[1].File)
}

func TestAggregate_Recommendations(t *testing.T) {
	t.Parallel()

	r := report.Aggregate(sample())

	var types []analysis.MismatchType
	for _, rec := range r.Recommendations {
		types = append(types, rec.Type)
	}

	assert.Equal(t, []analysis.MismatchType{
		analysis.TypeTableNotFound,
		analysis.TypeMissingColumn,
		analysis.TypeMissingFilterColumn,
		analysis.TypePropertyNotFound,
	}, types)

	cols := r.Recommendations[1]
	assert.Equal(t, 4, cols.Count)
	assert.Equal(t, analysis.SeverityHigh, cols.Severity)
	assert.Len(t, cols.Examples, 3, "examples are capped")
	assert.Equal(t, []int{1, 2, 3}, []int{cols.Examples[0].Line, cols.Examples[1].Line, cols.Examples[2].Line})
	assert.Equal(t, report.EffortLow, cols.Effort)
	assert.Equal(t, report.FixApproach(analysis.TypeMissingColumn), cols.FixApproach)
}

func TestAggregate_RecommendationCountOrder(t *testing.T) {
	t.Parallel()

	var ms []analysis.Mismatch

	ms = append(ms, mismatch("a.ts", 1, analysis.TypeMissingRPCFunction, analysis.SeverityHigh))
	for i := range 3 {
		ms = append(ms, mismatch("a.ts", i+2, analysis.TypeMissingColumn, analysis.SeverityHigh))
	}

	r := report.Aggregate(ms)

	require.Len(t, r.Recommendations, 2)
	assert.Equal(t, analysis.TypeMissingColumn, r.Recommendations[0].Type)
	assert.Equal(t, analysis.TypeMissingRPCFunction, r.Recommendations[1].Type)
}

func TestAggregate_NextSteps(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		"Fix 2 critical mismatches first; these break queries at runtime",
		"Address 4 high-priority mismatches",
		"Run schemadrift scan again after fixes to verify resolution",
	}, report.Aggregate(sample()).NextSteps)

	var many []analysis.Mismatch
	for i := range 21 {
		many = append(many, mismatch("a.ts", i+1, analysis.TypePropertyNotFound, analysis.SeverityLow))
	}

	assert.Equal(t, []string{
		"Use the file-by-file breakdown to prioritize by impact",
		"Run schemadrift scan again after fixes to verify resolution",
	}, report.Aggregate(many).NextSteps)
}

func TestAggregate_Empty(t *testing.T) {
	t.Parallel()

	r := report.Aggregate(nil)

	assert.Zero(t, r.Summary.Total)
	assert.Empty(t, r.Files)
	assert.Empty(t, r.Recommendations)
	assert.Len(t, r.NextSteps, 1)

	_, ok := r.MaxSeverity()
	assert.False(t, ok)
}

func TestAggregate_DoesNotModifyInput(t *testing.T) {
	t.Parallel()

	in := sample()
	before := append([]analysis.Mismatch{}, in...)

	report.Aggregate(in)

	if diff := cmp.Diff(before, in); diff != "" {
		t.Errorf("input modified (-before +after):\n%s", diff)
	}
}

func TestEstimateEffort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		count    int
		expected report.Effort
	}{
		{1, report.EffortLow},
		{5, report.EffortLow},
		{6, report.EffortMedium},
		{20, report.EffortMedium},
		{21, report.EffortHigh},
		{50, report.EffortHigh},
		{51, report.EffortVeryHigh},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, report.EstimateEffort(tt.count), "count %d", tt.count)
	}
}

func TestFixApproach_Default(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Review the database schema and update the code to match.", report.FixApproach("something_else"))
}

func TestReport_ExitCode(t *testing.T) {
	t.Parallel()

	r := report.Aggregate([]analysis.Mismatch{
		mismatch("a.ts", 1, analysis.TypeMissingColumn, analysis.SeverityHigh),
	})

	sev, ok := r.MaxSeverity()
	require.True(t, ok)
	assert.Equal(t, analysis.SeverityHigh, sev)

	tests := []struct {
		failOn   string
		expected int
	}{
		{"", 0},
		{"critical", 0},
		{"high", 1},
		{"medium", 1},
		{"low", 1},
		{"none", 0},
	}

	for _, tt := range tests {
		code, err := r.ExitCode(tt.failOn)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, code, "fail-on %q", tt.failOn)
	}

	_, err := r.ExitCode("urgent")
	require.ErrorIs(t, err, schemadrift.ErrInvalidConfig)
}

func testRun() report.Run {
	return report.Run{
		Root:   "app",
		Schema: "lib/types/database.types.ts",
		Model:  schema.Stats{Schemas: 2, Tables: 3, Views: 1, Functions: 1},
		Files:  4,
		Events: map[scanner.Kind]int{scanner.KindTableReference: 3},
	}
}

func TestNewFormatter_Unknown(t *testing.T) {
	t.Parallel()

	_, err := report.NewFormatter("pdf", &bytes.Buffer{}, report.Options{})
	require.True(t, errors.Is(err, schemadrift.ErrUnknownFormat))
}

func TestTextFormatter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	f, err := report.NewFormatter(schemadrift.FormatText, &buf, report.Options{Run: testRun()})
	require.NoError(t, err)
	require.NoError(t, f.Format(report.Aggregate(sample())))

	out := buf.String()
	assert.NotContains(t, out, "\x1b[", "no colour without a terminal")
	assert.Contains(t, out, "8 mismatches: 2 critical, 4 high, 1 medium, 1 low")
	assert.Contains(t, out, "a.ts (priority 23: 2 critical, 3 total)")
	assert.Contains(t, out, "| supabase.from('x')")
	assert.Contains(t, out, "Next steps")
	assert.Less(t, strings.Index(out, "a.ts (priority"), strings.Index(out, "b.ts (priority"))
}

func TestTextFormatter_NoMismatches(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, report.NewTextFormatter(&buf, report.Options{}).Format(report.Aggregate(nil)))
	assert.Contains(t, buf.String(), "No mismatches found.")
}

func TestJSONFormatter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, report.NewJSONFormatter(&buf, report.Options{Run: testRun()}).Format(report.Aggregate(sample())))

	var doc struct {
		Run struct {
			Schema string         `json:"schema"`
			Files  int            `json:"files_scanned"`
			Events map[string]int `json:"events"`
		} `json:"run"`
		Summary struct {
			Total      int            `json:"total"`
			BySeverity map[string]int `json:"by_severity"`
		} `json:"summary"`
		Files []struct {
			File     string `json:"file"`
			Priority int    `json:"priority"`
		} `json:"files"`
		Recommendations []struct {
			Type   string `json:"type"`
			Effort string `json:"estimated_effort"`
		} `json:"recommendations"`
	}

	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "lib/types/database.types.ts", doc.Run.Schema)
	assert.Equal(t, 4, doc.Run.Files)
	assert.Equal(t, 3, doc.Run.Events["table_reference"])
	assert.Equal(t, 8, doc.Summary.Total)
	assert.Equal(t, 2, doc.Summary.BySeverity["critical"])
	require.Len(t, doc.Files, 2)
	assert.Equal(t, 23, doc.Files[0].Priority)
	require.Len(t, doc.Recommendations, 4)
	assert.Equal(t, "table_not_found", doc.Recommendations[0].Type)
	assert.Equal(t, "Low (< 30 min)", doc.Recommendations[0].Effort)
}

func TestJSONFormatter_EmptySuggestionKept(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	r := report.Aggregate([]analysis.Mismatch{mismatch("a.ts", 1, analysis.TypeTableNotFound, analysis.SeverityCritical)})
	require.NoError(t, report.NewJSONFormatter(&buf, report.Options{}).Format(r))

	var doc struct {
		Mismatches []map[string]any `json:"mismatches"`
	}

	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Mismatches, 1)
	assert.Contains(t, doc.Mismatches[0], "suggestion")
	assert.Equal(t, "", doc.Mismatches[0]["suggestion"])
}

func TestNewRun_CountsReadFilesOnly(t *testing.T) {
	t.Parallel()

	run := report.NewRun("types.ts", nil, &scanner.Result{
		Root:    "src",
		Files:   []string{"a.ts", "b.ts"},
		Skipped: []string{"locked.ts"},
	})

	assert.Equal(t, 2, run.Files)
	assert.Equal(t, []string{"locked.ts"}, run.Skipped)
}

func TestMarkdownFormatter(t *testing.T) {
	t.Parallel()

	ms := sample()
	ms[0].Message = "Column 'a|b' not found"

	var buf bytes.Buffer

	require.NoError(t, report.NewMarkdownFormatter(&buf, report.Options{Run: testRun()}).Format(report.Aggregate(ms)))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "# Schema Mismatch Report\n"))
	assert.Contains(t, out, "| critical | 2 |")
	assert.Contains(t, out, "### a.ts")
	assert.Contains(t, out, `Column 'a\|b' not found`)
	assert.Contains(t, out, "- **Estimated effort:** Low (< 30 min)")
	assert.Contains(t, out, "## Next Steps")
}

func TestHTMLFormatter(t *testing.T) {
	t.Parallel()

	ms := sample()
	ms[0].Suggestion = "<script>alert(1)</script>"

	var buf bytes.Buffer

	f, err := report.NewFormatter(schemadrift.FormatHTML, &buf, report.Options{Run: testRun()})
	require.NoError(t, err)
	require.NoError(t, f.Format(report.Aggregate(ms)))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<h1 id=\"schema-mismatch-report\">Schema Mismatch Report</h1>")
	assert.NotContains(t, out, "<script>")
	assert.True(t, strings.HasSuffix(out, "</html>\n"))
}
