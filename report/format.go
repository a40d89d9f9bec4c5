package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/rlch/schemadrift"
	"github.com/rlch/schemadrift/analysis"
	"github.com/rlch/schemadrift/scanner"
	"github.com/rlch/schemadrift/schema"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// Formatter renders a report.
type Formatter interface {
	Format(r *Report) error
}

// Run describes the inputs of one check.
type Run struct {
	Root    string               `json:"root"`
	Schema  string               `json:"schema"`
	Model   schema.Stats         `json:"model"`
	Files   int                  `json:"files_scanned"`
	Skipped []string             `json:"files_skipped,omitempty"`
	Events  map[scanner.Kind]int `json:"events"`
}

// NewRun summarizes a model and a scan result.
func NewRun(schemaPath string, model *schema.Model, res *scanner.Result) Run {
	run := Run{Schema: schemaPath, Events: map[scanner.Kind]int{}}

	if model != nil {
		run.Model = model.Stats()
	}

	if res != nil {
		run.Root = res.Root
		run.Files = len(res.Files)
		run.Skipped = res.Skipped
		run.Events = res.Counts()
	}

	return run
}

// Options configure formatters.
type Options struct {
	// Color enables ANSI styling in the text format.
	Color bool

	// Run is rendered as the report header.
	Run Run
}

// IsTerminal reports whether w is a terminal, for choosing Options.Color.
func IsTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	return false
}

// NewFormatter creates a formatter by name.
func NewFormatter(name string, w io.Writer, opts Options) (Formatter, error) {
	switch name {
	case schemadrift.FormatText, "":
		return NewTextFormatter(w, opts), nil
	case schemadrift.FormatJSON:
		return NewJSONFormatter(w, opts), nil
	case schemadrift.FormatMarkdown:
		return NewMarkdownFormatter(w, opts), nil
	case schemadrift.FormatHTML:
		return NewHTMLFormatter(w, opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", schemadrift.ErrUnknownFormat, name)
	}
}

// -----------------------------------------------------------------------------
// Text Formatter
// -----------------------------------------------------------------------------

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	fileStyle     = lipgloss.NewStyle().Bold(true).Underline(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	suggestStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	severityStyle = map[analysis.Severity]lipgloss.Style{
		analysis.SeverityCritical: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F87")),
		analysis.SeverityHigh:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8700")),
		analysis.SeverityMedium:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD75F")),
		analysis.SeverityLow:      lipgloss.NewStyle().Foreground(lipgloss.Color("#87AFD7")),
	}
)

// TextFormatter prints a human-readable report grouped by file.
type TextFormatter struct {
	w         io.Writer
	opts      Options
	highlight *highlighter
}

// NewTextFormatter creates a text formatter.
func NewTextFormatter(w io.Writer, opts Options) *TextFormatter {
	f := &TextFormatter{w: w, opts: opts}
	if opts.Color {
		f.highlight = newHighlighter()
	}

	return f
}

func (f *TextFormatter) paint(style lipgloss.Style, s string) string {
	if !f.opts.Color {
		return s
	}

	return style.Render(s)
}

func (f *TextFormatter) severity(sev analysis.Severity) string {
	return f.paint(severityStyle[sev], fmt.Sprintf("%-8s", sev))
}

// Format prints the report.
func (f *TextFormatter) Format(r *Report) error {
	var b strings.Builder

	run := f.opts.Run

	fmt.Fprintln(&b, f.paint(titleStyle, "schemadrift report"))

	if run.Schema != "" {
		fmt.Fprintf(&b, "schema: %s (%d schemas, %d tables, %d views, %d functions)\n",
			run.Schema, run.Model.Schemas, run.Model.Tables, run.Model.Views, run.Model.Functions)
	}

	if run.Root != "" {
		fmt.Fprintf(&b, "root:   %s (%d files, %d skipped, %d access events)\n",
			run.Root, run.Files, len(run.Skipped), eventTotal(run.Events))
	}

	fmt.Fprintln(&b)

	if r.Summary.Total == 0 {
		fmt.Fprintln(&b, f.paint(suggestStyle, "No mismatches found."))
	} else {
		parts := make([]string, 0, len(analysis.Severities))
		for _, sev := range analysis.Severities {
			parts = append(parts, fmt.Sprintf("%d %s", r.Summary.BySeverity[sev], sev))
		}

		fmt.Fprintf(&b, "%d mismatches: %s\n", r.Summary.Total, strings.Join(parts, ", "))
	}

	for _, fg := range r.Files {
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "%s %s\n", f.paint(fileStyle, fg.File),
			f.paint(dimStyle, fmt.Sprintf("(priority %d: %d critical, %d total)", fg.Priority, fg.Critical, fg.Total)))

		for _, m := range fg.Mismatches {
			fmt.Fprintf(&b, "  %4d  %s  %s  %s\n", m.Line, f.severity(m.Severity), m.Type, m.Message)

			if m.Suggestion != "" {
				fmt.Fprintf(&b, "        %s\n", f.paint(suggestStyle, "hint: "+m.Suggestion))
			}

			if m.Context != "" {
				fmt.Fprintf(&b, "        %s %s\n", f.paint(dimStyle, "|"), f.code(m.Context))
			}
		}
	}

	if len(r.Recommendations) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, f.paint(titleStyle, "Recommendations"))

		for i, rec := range r.Recommendations {
			fmt.Fprintf(&b, "  %d. %s x%d  %s  effort: %s\n",
				i+1, rec.Type, rec.Count, f.severity(rec.Severity), rec.Effort)
			fmt.Fprintf(&b, "     %s\n", rec.FixApproach)

			for _, ex := range rec.Examples {
				fmt.Fprintf(&b, "     %s\n", f.paint(dimStyle, fmt.Sprintf("%s:%d %s", ex.File, ex.Line, ex.CodeElement)))
			}
		}
	}

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, f.paint(titleStyle, "Next steps"))

	for _, step := range r.NextSteps {
		fmt.Fprintf(&b, "  - %s\n", step)
	}

	_, err := io.WriteString(f.w, b.String())

	return err
}

func (f *TextFormatter) code(line string) string {
	if f.highlight == nil {
		return line
	}

	return f.highlight.Highlight(line)
}

func eventTotal(events map[scanner.Kind]int) int {
	total := 0
	for _, n := range events {
		total += n
	}

	return total
}

// -----------------------------------------------------------------------------
// JSON Formatter
// -----------------------------------------------------------------------------

// JSONFormatter writes the report and run summary as one JSON document.
type JSONFormatter struct {
	w    io.Writer
	opts Options
}

// NewJSONFormatter creates a JSON formatter.
func NewJSONFormatter(w io.Writer, opts Options) *JSONFormatter {
	return &JSONFormatter{w: w, opts: opts}
}

type jsonDocument struct {
	Run Run `json:"run"`
	*Report
}

// Format writes the JSON document.
func (f *JSONFormatter) Format(r *Report) error {
	enc := json.NewEncoder(f.w)
	enc.SetIndent("", "  ")

	return enc.Encode(jsonDocument{Run: f.opts.Run, Report: r})
}

// -----------------------------------------------------------------------------
// Markdown Formatter
// -----------------------------------------------------------------------------

// MarkdownFormatter writes a GitHub-flavoured markdown report.
type MarkdownFormatter struct {
	w    io.Writer
	opts Options
}

// NewMarkdownFormatter creates a markdown formatter.
func NewMarkdownFormatter(w io.Writer, opts Options) *MarkdownFormatter {
	return &MarkdownFormatter{w: w, opts: opts}
}

// Format writes the markdown report.
func (f *MarkdownFormatter) Format(r *Report) error {
	_, err := io.WriteString(f.w, renderMarkdown(r, f.opts.Run))

	return err
}

func renderMarkdown(r *Report, run Run) string {
	var b strings.Builder

	fmt.Fprintln(&b, "# Schema Mismatch Report")
	fmt.Fprintln(&b)

	if run.Schema != "" {
		fmt.Fprintf(&b, "- **Schema:** `%s` (%d schemas, %d tables, %d views, %d functions)\n",
			run.Schema, run.Model.Schemas, run.Model.Tables, run.Model.Views, run.Model.Functions)
	}

	if run.Root != "" {
		fmt.Fprintf(&b, "- **Root:** `%s` (%d files scanned, %d skipped)\n", run.Root, run.Files, len(run.Skipped))
	}

	fmt.Fprintf(&b, "- **Total mismatches:** %d\n", r.Summary.Total)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "## Summary")
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "| Severity | Count |")
	fmt.Fprintln(&b, "|---|---|")

	for _, sev := range analysis.Severities {
		fmt.Fprintf(&b, "| %s | %d |\n", sev, r.Summary.BySeverity[sev])
	}

	fmt.Fprintln(&b)

	if len(r.Files) > 0 {
		fmt.Fprintln(&b, "## Files")
		fmt.Fprintln(&b)

		for _, fg := range r.Files {
			fmt.Fprintf(&b, "### %s\n", mdEscape(fg.File))
			fmt.Fprintln(&b)
			fmt.Fprintf(&b, "Priority %d (%d critical, %d total)\n", fg.Priority, fg.Critical, fg.Total)
			fmt.Fprintln(&b)
			fmt.Fprintln(&b, "| Line | Severity | Type | Element | Message | Suggestion |")
			fmt.Fprintln(&b, "|---|---|---|---|---|---|")

			for _, m := range fg.Mismatches {
				fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s |\n",
					m.Line, m.Severity, m.Type, mdEscape(m.CodeElement), mdEscape(m.Message), mdEscape(m.Suggestion))
			}

			fmt.Fprintln(&b)
		}
	}

	if len(r.Recommendations) > 0 {
		fmt.Fprintln(&b, "## Recommendations")
		fmt.Fprintln(&b)

		for i, rec := range r.Recommendations {
			fmt.Fprintf(&b, "### %d. %s\n", i+1, rec.Type)
			fmt.Fprintln(&b)
			fmt.Fprintf(&b, "- **Count:** %d\n", rec.Count)
			fmt.Fprintf(&b, "- **Severity:** %s\n", rec.Severity)
			fmt.Fprintf(&b, "- **Estimated effort:** %s\n", rec.Effort)
			fmt.Fprintf(&b, "- **Fix:** %s\n", rec.FixApproach)

			for _, ex := range rec.Examples {
				fmt.Fprintf(&b, "  - %s:%d %s\n", mdEscape(ex.File), ex.Line, mdEscape(ex.Message))
			}

			fmt.Fprintln(&b)
		}
	}

	fmt.Fprintln(&b, "## Next Steps")
	fmt.Fprintln(&b)

	for i, step := range r.NextSteps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}

	return b.String()
}

var mdReplacer = strings.NewReplacer(
	"|", `\|`,
	"<", "&lt;",
	">", "&gt;",
	"\n", " ",
)

func mdEscape(s string) string {
	return mdReplacer.Replace(s)
}

// -----------------------------------------------------------------------------
// HTML Formatter
// -----------------------------------------------------------------------------

// HTMLFormatter renders the markdown report to a standalone HTML page.
type HTMLFormatter struct {
	w    io.Writer
	opts Options
	md   goldmark.Markdown
}

// NewHTMLFormatter creates an HTML formatter.
func NewHTMLFormatter(w io.Writer, opts Options) *HTMLFormatter {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)

	return &HTMLFormatter{w: w, opts: opts, md: md}
}

const htmlHead = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Schema Mismatch Report</title>
<style>
body { font-family: sans-serif; max-width: 72rem; margin: 2rem auto; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.25rem 0.5rem; text-align: left; }
</style>
</head>
<body>
`

const htmlTail = `</body>
</html>
`

// Format writes the HTML page.
func (f *HTMLFormatter) Format(r *Report) error {
	var body bytes.Buffer
	if err := f.md.Convert([]byte(renderMarkdown(r, f.opts.Run)), &body); err != nil {
		return fmt.Errorf("rendering html: %w", err)
	}

	if _, err := io.WriteString(f.w, htmlHead); err != nil {
		return err
	}

	if _, err := body.WriteTo(f.w); err != nil {
		return err
	}

	_, err := io.WriteString(f.w, htmlTail)

	return err
}
