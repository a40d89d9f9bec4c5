package schema

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// entry is one `key: value` pair of an object literal.
//
// Value holds the normalized source text of the value. Fields holds the
// entries of the first object literal found at the top level of the value,
// which covers both plain nested objects and union alternatives such as
// `| { Args: never; Returns: undefined }`.
type entry struct {
	Key    string
	Line   int
	Value  string
	Fields []*entry
}

// field returns the first child entry with the given key.
func (e *entry) field(key string) *entry {
	for _, f := range e.Fields {
		if f.Key == key {
			return f
		}
	}

	return nil
}

// literalParser walks a token stream with an explicit bracket-depth counter.
// It recognizes object literals anywhere in the input and tolerates
// everything it does not understand by skipping to the next separator.
type literalParser struct {
	input  string
	tokens []lexer.Token
	pos    int
}

func newLiteralParser(filename, input string) *literalParser {
	return &literalParser{
		input:  input,
		tokens: tokenize(filename, input),
	}
}

// parseDocument returns one synthetic root entry per top-level object literal.
func (p *literalParser) parseDocument() []*entry {
	var roots []*entry

	for !p.atEOF() {
		tok := p.peek()
		if tok.Type == tLBrace {
			roots = append(roots, &entry{
				Line:   tok.Pos.Line,
				Fields: p.parseObject(),
			})

			continue
		}

		p.next()
	}

	return roots
}

// parseObject consumes `{ ... }` and returns its entries.
func (p *literalParser) parseObject() []*entry {
	p.next() // {

	return p.parseEntries()
}

// parseEntries reads entries until the closing brace (consumed) or EOF.
func (p *literalParser) parseEntries() []*entry {
	var entries []*entry

	for {
		p.skip(tNewline, tSemi, tComma)

		tok := p.peek()

		switch {
		case tok.Type == tEOF:
			return entries
		case tok.Type == tRBrace:
			p.next()

			return entries
		}

		key, ok := p.parseKey()
		if !ok {
			p.skipJunk()

			continue
		}

		value, fields := p.parseValue()
		entries = append(entries, &entry{
			Key:    key,
			Line:   tok.Pos.Line,
			Value:  value,
			Fields: fields,
		})
	}
}

// parseKey consumes `name:`, `name?:`, or `"name":` and reports whether a key was read.
func (p *literalParser) parseKey() (string, bool) {
	tok := p.peek()
	if tok.Type != tIdent && tok.Type != tString {
		return "", false
	}

	i := p.pos + 1
	if i < len(p.tokens) && p.tokens[i].Type == tOp && p.tokens[i].Value == "?" {
		i++
	}

	if i >= len(p.tokens) || p.tokens[i].Type != tColon {
		return "", false
	}

	p.pos = i + 1

	key := tok.Value
	if tok.Type == tString {
		key = strings.Trim(key, "\"'`")
	}

	return key, true
}

// parseValue reads a type expression. The expression ends at `;` or `,` at
// depth zero, at the parent's closing brace, or at a line break that is not
// followed by a union/intersection continuation.
func (p *literalParser) parseValue() (string, []*entry) {
	p.skip(tNewline)

	start := p.peek().Pos.Offset
	end := start
	depth := 0
	objectSeen := false

	var fields []*entry

	for {
		tok := p.peek()

		switch tok.Type {
		case tEOF:
			return p.text(start, end), fields

		case tLBrace:
			if depth == 0 {
				if !objectSeen {
					objectSeen = true
					fields = p.parseObject()
				} else {
					p.skipBalanced()
				}

				end = p.prevEnd()

				continue
			}

			depth++

		case tLParen, tLBracket, tLAngle:
			depth++

		case tRParen, tRBracket, tRAngle:
			if depth > 0 {
				depth--
			}

		case tRBrace:
			if depth == 0 {
				return p.text(start, end), fields
			}

			depth--

		case tSemi, tComma:
			if depth == 0 {
				p.next()

				return p.text(start, end), fields
			}

		case tNewline:
			if depth == 0 {
				if end == start || p.continuesExpression() {
					p.next()

					continue
				}

				p.next()

				return p.text(start, end), fields
			}

			p.next()

			continue
		}

		p.next()
		end = tok.Pos.Offset + len(tok.Value)
	}
}

// continuesExpression reports whether the token after the current newline
// carries the expression onto the next line.
func (p *literalParser) continuesExpression() bool {
	i := p.pos + 1
	if i >= len(p.tokens) {
		return false
	}

	next := p.tokens[i]

	return next.Type == tOp && (next.Value == "|" || next.Value == "&")
}

// skipJunk drops an entry the parser does not understand (index signatures,
// spreads, methods) up to the next separator at depth zero.
func (p *literalParser) skipJunk() {
	depth := 0

	for {
		tok := p.peek()

		switch tok.Type {
		case tEOF:
			return
		case tLBrace, tLParen, tLBracket, tLAngle:
			depth++
		case tRParen, tRBracket, tRAngle:
			if depth > 0 {
				depth--
			}
		case tRBrace:
			if depth == 0 {
				return
			}

			depth--
		case tSemi, tComma, tNewline:
			if depth == 0 {
				p.next()

				return
			}
		}

		p.next()
	}
}

// skipBalanced consumes a `{ ... }` group without building entries.
func (p *literalParser) skipBalanced() {
	depth := 0

	for !p.atEOF() {
		switch p.next().Type {
		case tLBrace:
			depth++
		case tRBrace:
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

func (p *literalParser) skip(types ...lexer.TokenType) {
	for !p.atEOF() {
		tok := p.peek()

		matched := false

		for _, t := range types {
			if tok.Type == t {
				matched = true

				break
			}
		}

		if !matched {
			return
		}

		p.next()
	}
}

func (p *literalParser) peek() lexer.Token {
	return p.tokens[p.pos]
}

func (p *literalParser) next() lexer.Token {
	tok := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}

	return tok
}

func (p *literalParser) atEOF() bool {
	return p.tokens[p.pos].Type == tEOF
}

// prevEnd returns the end offset of the last consumed token.
func (p *literalParser) prevEnd() int {
	if p.pos == 0 {
		return 0
	}

	prev := p.tokens[p.pos-1]

	return prev.Pos.Offset + len(prev.Value)
}

// text returns the source between two offsets with whitespace runs
// collapsed. Members written on separate lines are joined with "; " so a
// multi-line object type stays a valid type string.
func (p *literalParser) text(start, end int) string {
	if end <= start {
		return ""
	}

	var b strings.Builder

	prev := ""

	for _, line := range strings.Split(p.input[start:end], "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}

		if prev != "" {
			if needsSeparator(prev, line) {
				b.WriteByte(';')
			}

			b.WriteByte(' ')
		}

		b.WriteString(line)
		prev = line
	}

	return b.String()
}

// needsSeparator reports whether a line break between two lines ends a
// member rather than continuing an open bracket, list, or union.
func needsSeparator(prev, next string) bool {
	if strings.ContainsRune("{[(<,;|&:=", rune(prev[len(prev)-1])) {
		return false
	}

	return !strings.ContainsRune("}])>|&.", rune(next[0]))
}
