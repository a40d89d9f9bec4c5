package schema

import (
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/alecthomas/participle/v2/lexer"
)

// Token type constants - negative values as per participle convention.
const (
	tEOF        lexer.TokenType = lexer.EOF
	tComment    lexer.TokenType = -(iota + 2) //nolint:mnd // participle convention
	tString                                   // quoted and template strings
	tNumber                                   // numeric literals
	tIdent                                    // identifiers
	tOp                                       // operators and stray punctuation
	tColon                                    // :
	tComma                                    // ,
	tSemi                                     // ;
	tLParen                                   // (
	tRParen                                   // )
	tLBracket                                 // [
	tRBracket                                 // ]
	tLBrace                                   // {
	tRBrace                                   // }
	tLAngle                                   // <
	tRAngle                                   // >
	tNewline                                  // whitespace containing a line break
	tWhitespace                               // spaces and tabs
)

// typeDefinition implements lexer.Definition for generated type files.
// It never fails: malformed input degrades into operator tokens so that
// extraction stays best-effort.
type typeDefinition struct {
	symbols map[string]lexer.TokenType
}

var typeLexer = newTypeLexer()

// Lexer is the shared definition for type-file tokenization.
var Lexer lexer.Definition = typeLexer

func newTypeLexer() *typeDefinition {
	return &typeDefinition{
		symbols: map[string]lexer.TokenType{
			"EOF":        tEOF,
			"Comment":    tComment,
			"String":     tString,
			"Number":     tNumber,
			"Ident":      tIdent,
			"Op":         tOp,
			"Colon":      tColon,
			"Comma":      tComma,
			"Semi":       tSemi,
			"Newline":    tNewline,
			"Whitespace": tWhitespace,
			"(":          tLParen,
			")":          tRParen,
			"[":          tLBracket,
			"]":          tRBracket,
			"{":          tLBrace,
			"}":          tRBrace,
			"<":          tLAngle,
			">":          tRAngle,
		},
	}
}

// Symbols returns the mapping of symbol names to token types.
func (d *typeDefinition) Symbols() map[string]lexer.TokenType {
	return d.symbols
}

// Lex creates a new Lexer for the given reader.
//
//nolint:ireturn // Required by participle's lexer.Definition interface.
func (d *typeDefinition) Lex(filename string, r io.Reader) (lexer.Lexer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	return newLexerState(filename, string(data)), nil
}

// LexString implements lexer.StringDefinition.
//
//nolint:ireturn // Required by participle's lexer.StringDefinition interface.
func (d *typeDefinition) LexString(filename string, input string) (lexer.Lexer, error) {
	return newLexerState(filename, input), nil
}

// tokenize lexes the whole input. Comments and plain whitespace are dropped;
// newlines are kept because they terminate type expressions.
func tokenize(filename, input string) []lexer.Token {
	lex, _ := typeLexer.LexString(filename, input)

	// typeDefinition never returns an error.
	all, _ := lexer.ConsumeAll(lex)

	tokens := make([]lexer.Token, 0, len(all))

	for _, tok := range all {
		if tok.Type == tComment || tok.Type == tWhitespace {
			continue
		}

		tokens = append(tokens, tok)
	}

	return tokens
}

type lexerState struct {
	filename string
	input    string
	offset   int
	line     int
	col      int
}

func newLexerState(filename, input string) *lexerState {
	return &lexerState{
		filename: filename,
		input:    input,
		line:     1,
		col:      1,
	}
}

// Next returns the next token.
func (l *lexerState) Next() (lexer.Token, error) {
	if l.eof() {
		return lexer.EOFToken(l.pos()), nil
	}

	start := l.pos()
	r := l.peek()

	if isSpace(r) {
		newline := false

		for !l.eof() && isSpace(l.peek()) {
			if l.advance() == '\n' {
				newline = true
			}
		}

		if newline {
			return l.token(tNewline, start), nil
		}

		return l.token(tWhitespace, start), nil
	}

	if r == '/' && l.peekAt(1) == '/' {
		for !l.eof() && l.peek() != '\n' {
			l.advance()
		}

		return l.token(tComment, start), nil
	}

	if r == '/' && l.peekAt(1) == '*' {
		l.advance()
		l.advance()

		for !l.eof() && !l.match("*/") {
			l.advance()
		}

		l.advance()
		l.advance()

		return l.token(tComment, start), nil
	}

	if r == '"' || r == '\'' || r == '`' {
		return l.scanString(start, r), nil
	}

	if isDigit(r) {
		for !l.eof() && (isDigit(l.peek()) || l.peek() == '.' || l.peek() == '_') {
			l.advance()
		}

		return l.token(tNumber, start), nil
	}

	if isIdentStart(r) {
		l.advance()

		for !l.eof() && isIdentContinue(l.peek()) {
			l.advance()
		}

		return l.token(tIdent, start), nil
	}

	if l.match("=>") {
		l.advance()
		l.advance()

		return l.token(tOp, start), nil
	}

	l.advance()

	switch r {
	case ':':
		return l.token(tColon, start), nil
	case ',':
		return l.token(tComma, start), nil
	case ';':
		return l.token(tSemi, start), nil
	case '(':
		return l.token(tLParen, start), nil
	case ')':
		return l.token(tRParen, start), nil
	case '[':
		return l.token(tLBracket, start), nil
	case ']':
		return l.token(tRBracket, start), nil
	case '{':
		return l.token(tLBrace, start), nil
	case '}':
		return l.token(tRBrace, start), nil
	case '<':
		return l.token(tLAngle, start), nil
	case '>':
		return l.token(tRAngle, start), nil
	}

	return l.token(tOp, start), nil
}

func (l *lexerState) pos() lexer.Position {
	return lexer.Position{
		Filename: l.filename,
		Offset:   l.offset,
		Line:     l.line,
		Column:   l.col,
	}
}

func (l *lexerState) eof() bool {
	return l.offset >= len(l.input)
}

func (l *lexerState) peek() rune {
	if l.eof() {
		return 0
	}

	r, _ := utf8.DecodeRuneInString(l.input[l.offset:])

	return r
}

func (l *lexerState) peekAt(n int) rune {
	off := l.offset + n
	if off >= len(l.input) {
		return 0
	}

	r, _ := utf8.DecodeRuneInString(l.input[off:])

	return r
}

func (l *lexerState) advance() rune {
	if l.eof() {
		return 0
	}

	r, size := utf8.DecodeRuneInString(l.input[l.offset:])
	l.offset += size

	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}

	return r
}

func (l *lexerState) match(s string) bool {
	return strings.HasPrefix(l.input[l.offset:], s)
}

func (l *lexerState) token(typ lexer.TokenType, start lexer.Position) lexer.Token {
	return lexer.Token{
		Type:  typ,
		Value: l.input[start.Offset:l.offset],
		Pos:   start,
	}
}

// scanString consumes a quoted string. Single and double quoted strings stop
// at an unescaped line break so one bad quote cannot swallow the file.
func (l *lexerState) scanString(start lexer.Position, quote rune) lexer.Token {
	l.advance()

	for !l.eof() {
		ch := l.peek()
		if ch == '\\' && l.peekAt(1) != 0 {
			l.advance()
			l.advance()

			continue
		}

		if ch == quote {
			l.advance()

			break
		}

		if ch == '\n' && quote != '`' {
			break
		}

		l.advance()
	}

	return l.token(tString, start)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isIdentStart(r rune) bool {
	return r == '$' || r == '_' || unicode.IsLetter(r)
}

func isIdentContinue(r rune) bool {
	return r == '$' || r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
