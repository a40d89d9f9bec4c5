package report

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/charmbracelet/lipgloss"
)

// highlighter renders TypeScript source lines with lipgloss styles.
type highlighter struct {
	lexer chroma.Lexer
}

func newHighlighter() *highlighter {
	l := lexers.Get("TypeScript")
	if l == nil {
		l = lexers.Get("JavaScript")
	}

	if l == nil {
		l = lexers.Fallback
	}

	return &highlighter{lexer: chroma.Coalesce(l)}
}

var (
	codeKeyword  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C678DD"))
	codeString   = lipgloss.NewStyle().Foreground(lipgloss.Color("#98C379"))
	codeNumber   = lipgloss.NewStyle().Foreground(lipgloss.Color("#D19A66"))
	codeComment  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5C6370")).Italic(true)
	codeFunction = lipgloss.NewStyle().Foreground(lipgloss.Color("#61AFEF"))
	codeOperator = lipgloss.NewStyle().Foreground(lipgloss.Color("#56B6C2"))
)

// Highlight styles one line of code. Tokenizer failures return line unchanged.
func (h *highlighter) Highlight(line string) string {
	iter, err := h.lexer.Tokenise(nil, line)
	if err != nil {
		return line
	}

	var b strings.Builder
	b.Grow(len(line) * 2)

	for _, tok := range iter.Tokens() {
		if tok.Value == "" {
			continue
		}

		style, ok := codeStyle(tok.Type)
		if !ok || strings.Contains(tok.Value, "\n") {
			b.WriteString(tok.Value)
			continue
		}

		b.WriteString(style.Render(tok.Value))
	}

	return b.String()
}

func codeStyle(tt chroma.TokenType) (lipgloss.Style, bool) {
	switch {
	case tt == chroma.NameFunction:
		return codeFunction, true
	case tt.InCategory(chroma.Keyword):
		return codeKeyword, true
	case tt.InSubCategory(chroma.LiteralString):
		return codeString, true
	case tt.InSubCategory(chroma.LiteralNumber):
		return codeNumber, true
	case tt.InCategory(chroma.Comment):
		return codeComment, true
	case tt.InCategory(chroma.Operator):
		return codeOperator, true
	default:
		return lipgloss.Style{}, false
	}
}
