package expr

import (
	"fmt"
	"strings"
	"unicode"
)

// DefaultDelimiter ends statements in a script until a DELIMITER directive
// changes it.
const DefaultDelimiter = ";"

const delimiterDirective = "DELIMITER"

// SplitScript splits a script into its statements. Statements end at the
// active delimiter when it appears outside string literals, quoted
// identifiers and comments. A line starting with the client directive
// "DELIMITER x" at the start of a statement sets the delimiter to x; the
// directive itself is not a statement. Statements are trimmed, and those made
// only of whitespace and comments are dropped.
func (p *Parser) SplitScript(input string) (stmts []string, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("cannot split script: %s", err)
		}
	}()

	p.init(input)

	delim := DefaultDelimiter
	start := 0
	// blank is true while the current statement holds only whitespace and
	// comments, which are left out of the statement.
	blank := true
	for p.pos < len(p.input) {
		if blank {
			d, ok, err := p.skipDelimiterDirective()
			if err != nil {
				return nil, err
			}
			if ok {
				delim = d
				start = p.pos
				continue
			}
		}
		if strings.HasPrefix(p.input[p.pos:], delim) {
			if !blank {
				stmts = append(stmts, strings.TrimSpace(p.input[start:p.pos]))
			}
			end := p.pos + len(delim)
			for p.pos < end {
				p.advanceChar()
			}
			start = p.pos
			blank = true
			continue
		}
		if ok, err := p.skipQuoted(); err != nil {
			return nil, err
		} else if ok {
			blank = false
			continue
		}
		if p.skipComment() {
			if blank {
				start = p.pos
			}
			continue
		}
		if !unicode.IsSpace(p.char) {
			blank = false
		}
		p.advanceChar()
		if blank {
			start = p.pos
		}
	}
	if !blank {
		stmts = append(stmts, strings.TrimSpace(p.input[start:]))
	}
	return stmts, nil
}

// skipDelimiterDirective consumes a DELIMITER line and returns the new
// delimiter. If the parser is not on such a line its state is left
// unchanged.
func (p *Parser) skipDelimiterDirective() (string, bool, error) {
	rest := p.input[p.pos:]
	if len(rest) <= len(delimiterDirective) || !strings.EqualFold(rest[:len(delimiterDirective)], delimiterDirective) {
		return "", false, nil
	}
	if c := rest[len(delimiterDirective)]; c != ' ' && c != '\t' {
		return "", false, nil
	}
	line, col := p.lineNum, p.colNum()
	argStart := p.pos + len(delimiterDirective)
	p.skipLine()
	fields := strings.Fields(p.input[argStart:p.pos])
	if len(fields) == 0 {
		return "", false, errorAt(fmt.Errorf("missing delimiter after %s", delimiterDirective), line, col, p.input)
	}
	return fields[0], true, nil
}
