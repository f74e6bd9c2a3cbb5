// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ListPrefix marks a parameter reference as a list placeholder.
const ListPrefix = "LIST_"

// Syntax holds the lexical rules that differ between SQL engines. They
// decide where string literals and comments end, and so which @ signs are
// parameter references.
type Syntax struct {
	// BackslashEscapes makes a backslash escape the next character inside
	// string literals.
	BackslashEscapes bool
	// HashComments makes # start a comment running to the end of the line.
	HashComments bool
	// DashCommentNeedsSpace requires whitespace or a control character after
	// -- for it to start a comment.
	DashCommentNeedsSpace bool
}

// MySQL is the syntax of MySQL and MariaDB with their default sql_mode.
var MySQL = Syntax{BackslashEscapes: true, HashComments: true, DashCommentNeedsSpace: true}

// Standard is the syntax of SQLite and of PostgreSQL with
// standard_conforming_strings on.
var Standard = Syntax{}

func NewParser(syntax Syntax) *Parser {
	return &Parser{syntax: syntax}
}

type Parser struct {
	syntax Syntax

	input string
	pos   int
	// nextPos is start of the next char.
	nextPos int
	// char is the rune starting at pos. char is set to 0 when pos reaches the
	// end of input.
	char rune
	// prevPartEnd is the value of pos when we last finished parsing a
	// parameter reference.
	prevPartEnd int
	// currentPartStart is the value of pos just before we started parsing
	// the reference under pos. We maintain currentPartStart >= prevPartEnd.
	currentPartStart int
	parts            []queryPart
	lineNum          int
	// lineStart is the position of the first char of the current line in the
	// input.
	lineStart int
}

// Parse splits an SQL template into verbatim chunks, parameter references and
// list placeholders.
func (p *Parser) Parse(input string) (t *Template, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("cannot parse statement: %s", err)
		}
	}()

	p.init(input)

	for p.pos < len(p.input) {
		if ok, err := p.skipQuoted(); err != nil {
			return nil, err
		} else if ok {
			continue
		}
		if p.skipComment() {
			continue
		}
		if p.char == '@' {
			p.currentPartStart = p.pos
			if part, ok := p.parseReference(); ok {
				p.add(part)
			}
			continue
		}
		p.advanceChar()
	}

	p.currentPartStart = p.pos
	// Add any remaining unparsed input.
	p.add(nil)
	return &Template{parts: p.parts}, nil
}

// init resets the state of the parser and sets the input string.
func (p *Parser) init(input string) {
	p.input = input
	p.pos = 0
	p.nextPos = 0
	p.char = 0
	p.prevPartEnd = 0
	p.currentPartStart = 0
	p.parts = []queryPart{}
	p.lineNum = 1
	p.lineStart = 0
	p.advanceChar()
}

// colNum calculates the current column number taking into account line breaks.
func (p *Parser) colNum() int {
	return p.pos - p.lineStart + 1
}

// advanceChar moves the parser to the next character in the input. It also
// takes care of updating the line and column numbers if it encounters line
// breaks.
func (p *Parser) advanceChar() bool {
	if p.nextPos >= len(p.input) {
		p.char = 0
		p.pos = p.nextPos
		return false
	}
	if p.char == '\n' {
		p.lineStart = p.nextPos
		p.lineNum++
	}
	var size int
	p.char, size = utf8.DecodeRuneInString(p.input[p.nextPos:])
	p.pos = p.nextPos
	p.nextPos += size
	return true
}

// errorAt wraps an error with line and column information.
func errorAt(err error, line int, column int, input string) error {
	if strings.ContainsRune(input, '\n') {
		return fmt.Errorf("line %d, column %d: %w", line, column, err)
	}
	return fmt.Errorf("column %d: %w", column, err)
}

// checkpoint holds parser state so a failed attempt can be undone.
type checkpoint struct {
	parser    *Parser
	pos       int
	nextPos   int
	char      rune
	lineNum   int
	lineStart int
}

func (p *Parser) save() *checkpoint {
	return &checkpoint{
		parser:    p,
		pos:       p.pos,
		nextPos:   p.nextPos,
		char:      p.char,
		lineNum:   p.lineNum,
		lineStart: p.lineStart,
	}
}

func (cp *checkpoint) restore() {
	cp.parser.pos = cp.pos
	cp.parser.nextPos = cp.nextPos
	cp.parser.char = cp.char
	cp.parser.lineNum = cp.lineNum
	cp.parser.lineStart = cp.lineStart
}

// add pushes the parsed part to the list of parts along with the bypass chunk
// that stretches from the end of the previous part to the beginning of this
// one.
func (p *Parser) add(part queryPart) {
	if p.prevPartEnd != p.currentPartStart {
		p.parts = append(p.parts,
			&bypassPart{p.input[p.prevPartEnd:p.currentPartStart]})
	}

	if part != nil {
		p.parts = append(p.parts, part)
	}

	p.prevPartEnd = p.pos
	p.currentPartStart = p.pos
}

// parseReference parses a parameter reference starting at an '@'. System
// variables (@@name) and a lone '@' are consumed and left in the bypass chunk.
func (p *Parser) parseReference() (queryPart, bool) {
	start := p.pos
	p.skipChar('@')
	if p.skipChar('@') {
		p.skipName()
		return nil, false
	}
	nameStart := p.pos
	if !p.skipName() {
		return nil, false
	}
	name := p.input[nameStart:p.pos]
	raw := p.input[start:p.pos]
	if strings.HasPrefix(name, ListPrefix) && len(name) > len(ListPrefix) {
		return &listPart{name: name[len(ListPrefix):], raw: raw}, true
	}
	return &paramPart{name: name, raw: raw}, true
}

// skipComment jumps over --, # and /* */ comments as the syntax allows. If no
// comment is found the parser state is left unchanged.
func (p *Parser) skipComment() bool {
	cp := p.save()
	c := p.char
	if p.syntax.HashComments && p.skipChar('#') {
		p.skipLine()
		return true
	}
	if p.skipChar('-') || p.skipChar('/') {
		if c == '-' && p.skipChar('-') {
			if p.syntax.DashCommentNeedsSpace && p.pos < len(p.input) && p.char > ' ' {
				cp.restore()
				return false
			}
			p.skipLine()
			return true
		}
		if c == '/' && p.skipChar('*') {
			for p.pos < len(p.input) {
				if p.skipChar('*') {
					if p.skipChar('/') {
						return true
					}
					continue
				}
				p.advanceChar()
			}
			// Reached end of input (valid comment end).
			return true
		}
		cp.restore()
		return false
	}
	return false
}

// skipLine advances to the next newline without consuming it.
func (p *Parser) skipLine() {
	for p.pos < len(p.input) && p.char != '\n' {
		p.advanceChar()
	}
}

// skipQuoted jumps over string literals and quoted identifiers. Doubled up
// quotes are escaped. With BackslashEscapes so are backslash escaped quotes
// inside string literals.
func (p *Parser) skipQuoted() (bool, error) {
	c := p.char
	if c != '"' && c != '\'' && c != '`' {
		return false, nil
	}
	line, col := p.lineNum, p.colNum()
	p.advanceChar()
	for p.pos < len(p.input) {
		switch {
		case p.syntax.BackslashEscapes && p.char == '\\' && c != '`':
			p.advanceChar()
			p.advanceChar()
		case p.char == c:
			p.advanceChar()
			if !p.skipChar(c) {
				return true, nil
			}
		default:
			p.advanceChar()
		}
	}
	what := "string literal"
	if c == '`' {
		what = "quoted identifier"
	}
	return false, errorAt(fmt.Errorf("missing closing quote in %s", what), line, col, p.input)
}

// skipChar jumps over the current char if it matches the char passed as a
// parameter. Returns true in that case, false otherwise.
func (p *Parser) skipChar(c rune) bool {
	if p.pos < len(p.input) && p.char == c {
		p.advanceChar()
		return true
	}
	return false
}

// isNameChar returns true if the given char can be part of a name.
func isNameChar(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_'
}

// isInitialNameChar returns true if the given char can appear at the start of a
// name.
func isInitialNameChar(c rune) bool {
	return unicode.IsLetter(c) || c == '_'
}

// skipName advances the parser until it is on the first non name char and
// returns true. If the p.pos does not start on a name char it returns false.
func (p *Parser) skipName() bool {
	if p.pos >= len(p.input) {
		return false
	}
	mark := p.pos
	if isInitialNameChar(p.char) {
		p.advanceChar()
		for p.pos < len(p.input) && isNameChar(p.char) {
			p.advanceChar()
		}
	}
	return p.pos > mark
}
