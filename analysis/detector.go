package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rlch/schemadrift/scanner"
	"github.com/rlch/schemadrift/schema"
	"github.com/sahilm/fuzzy"
	"go.uber.org/zap"
)

// Detector applies rules to access events.
type Detector struct {
	model        *schema.Model
	rules        []*Rule
	strict       bool
	requireViews bool
	suggestions  bool
	ignore       []*ignoreFilter
	logger       *zap.Logger
}

// Option configures a Detector.
type Option func(*Detector) error

// WithStrict reports missing RPC functions as critical instead of high.
func WithStrict(strict bool) Option {
	return func(d *Detector) error {
		d.strict = strict

		return nil
	}
}

// WithRequireViews reports .from() calls that resolve only to a base table.
func WithRequireViews(require bool) Option {
	return func(d *Detector) error {
		d.requireViews = require

		return nil
	}
}

// WithRules replaces the default rule set.
func WithRules(rules ...*Rule) Option {
	return func(d *Detector) error {
		d.rules = rules

		return nil
	}
}

// WithSuggestions toggles fuzzy "did you mean" suggestions. On by default.
func WithSuggestions(enabled bool) Option {
	return func(d *Detector) error {
		d.suggestions = enabled

		return nil
	}
}

// WithLogger sets the logger used for ignore-filter evaluation errors.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Detector) error {
		if logger != nil {
			d.logger = logger
		}

		return nil
	}
}

// WithIgnore drops mismatches for which any expression evaluates to true.
// Expressions see type, severity, file, line, code, message, suggestion,
// and context, e.g. `type == "property_possibly_not_found" && file startsWith "tests/"`.
func WithIgnore(exprs ...string) Option {
	return func(d *Detector) error {
		for _, src := range exprs {
			f, err := compileIgnore(src)
			if err != nil {
				return err
			}

			d.ignore = append(d.ignore, f)
		}

		return nil
	}
}

// NewDetector creates a Detector over model with the default rules.
func NewDetector(model *schema.Model, opts ...Option) (*Detector, error) {
	if model == nil {
		model = schema.NewModel()
	}

	d := &Detector{
		model:       model,
		rules:       DefaultRules(),
		suggestions: true,
		logger:      zap.NewNop(),
	}

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// Detect classifies events and returns mismatches in event order.
func (d *Detector) Detect(events []scanner.AccessEvent) []Mismatch {
	byKind := make(map[scanner.Kind][]*Rule)
	for _, r := range d.rules {
		byKind[r.Kind] = append(byKind[r.Kind], r)
	}

	p := &Pass{
		Model:        d.model,
		Strict:       d.strict,
		RequireViews: d.requireViews,
		suggestions:  d.suggestions,
		mismatches:   []Mismatch{},
	}

	for _, ev := range events {
		for _, r := range byKind[ev.Kind] {
			r.Run(p, ev)
		}
	}

	if len(d.ignore) == 0 {
		return p.mismatches
	}

	kept := make([]Mismatch, 0, len(p.mismatches))

	for _, m := range p.mismatches {
		if d.ignored(m) {
			continue
		}

		kept = append(kept, m)
	}

	return kept
}

func (d *Detector) ignored(m Mismatch) bool {
	for _, f := range d.ignore {
		ok, err := f.match(m)
		if err != nil {
			d.logger.Warn("Ignore expression failed",
				zap.String("expr", f.source),
				zap.Error(err))

			continue
		}

		if ok {
			return true
		}
	}

	return false
}

// Pass carries the state shared by rules during one Detect call.
type Pass struct {
	// Model is the schema being checked against.
	Model *schema.Model

	// Strict raises missing RPC functions to critical.
	Strict bool

	// RequireViews reports relations that resolve only to a base table.
	RequireViews bool

	suggestions bool
	mismatches  []Mismatch

	// lazily computed lookups
	allColumns []string
	allViews   []string
}

// Report records a mismatch for ev, filling in location and context.
func (p *Pass) Report(ev scanner.AccessEvent, m Mismatch) {
	m.File = ev.File
	m.Line = ev.Line
	m.Context = ev.Context

	p.mismatches = append(p.mismatches, m)
}

func (p *Pass) columns() []string {
	if p.allColumns == nil {
		p.allColumns = p.Model.Columns()
	}

	return p.allColumns
}

func (p *Pass) viewNames() []string {
	if p.allViews == nil {
		seen := make(map[string]struct{})
		for _, s := range p.Model.Schemas {
			for name := range s.Views {
				seen[name] = struct{}{}
			}
		}

		p.allViews = make([]string, 0, len(seen))
		for name := range seen {
			p.allViews = append(p.allViews, name)
		}

		sort.Strings(p.allViews)
	}

	return p.allViews
}

// didYouMean returns a suggestion naming the closest candidate, or fallback.
func (p *Pass) didYouMean(name string, candidates []string, fallback string) string {
	if !p.suggestions {
		return fallback
	}

	if best := closest(name, candidates); best != "" {
		return fmt.Sprintf("Did you mean '%s'?", best)
	}

	return fallback
}

// closest finds the best fuzzy match for name. Candidates that contain name
// as a subsequence are preferred; otherwise candidates contained in name
// are considered. Ties resolve to the lexically smallest candidate.
func closest(name string, candidates []string) string {
	if name == "" || len(candidates) == 0 {
		return ""
	}

	lower := strings.ToLower(name)
	lowered := make([]string, len(candidates))

	for i, c := range candidates {
		lowered[i] = strings.ToLower(c)
	}

	matches := fuzzy.Find(lower, lowered)
	if len(matches) > 0 {
		return candidates[bestMatch(matches, candidates)]
	}

	var reverse fuzzy.Matches

	for i, c := range lowered {
		if len(c) < 3 {
			continue
		}

		for _, m := range fuzzy.Find(c, []string{lower}) {
			m.Index = i
			reverse = append(reverse, m)
		}
	}

	if len(reverse) > 0 {
		return candidates[bestMatch(reverse, candidates)]
	}

	return ""
}

func bestMatch(matches fuzzy.Matches, candidates []string) int {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}

		return candidates[matches[i].Index] < candidates[matches[j].Index]
	})

	return matches[0].Index
}

// ignoreFilter is a compiled ignore expression.
type ignoreFilter struct {
	source  string
	program *vm.Program
}

// ignoreEnv declares the variables visible to ignore expressions.
var ignoreEnv = map[string]any{
	"type":       "",
	"severity":   "",
	"file":       "",
	"line":       0,
	"code":       "",
	"message":    "",
	"suggestion": "",
	"context":    "",
}

func compileIgnore(src string) (*ignoreFilter, error) {
	program, err := expr.Compile(src, expr.Env(ignoreEnv), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compiling ignore expression %q: %w", src, err)
	}

	return &ignoreFilter{source: src, program: program}, nil
}

func (f *ignoreFilter) match(m Mismatch) (bool, error) {
	out, err := expr.Run(f.program, map[string]any{
		"type":       string(m.Type),
		"severity":   string(m.Severity),
		"file":       m.File,
		"line":       m.Line,
		"code":       m.CodeElement,
		"message":    m.Message,
		"suggestion": m.Suggestion,
		"context":    m.Context,
	})
	if err != nil {
		return false, err
	}

	ok, _ := out.(bool)

	return ok, nil
}
