// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr

import (
	"bytes"
	"strconv"
)

// Template is a parsed SQL statement.
type Template struct {
	parts []queryPart
}

// String returns a debugging representation of the parsed parts.
func (t *Template) String() string {
	var out bytes.Buffer
	out.WriteString("Template[")
	for i, p := range t.parts {
		if i > 0 {
			out.WriteString(" ")
		}
		out.WriteString(p.String())
	}
	out.WriteString("]")
	return out.String()
}

// SQL returns the template text.
func (t *Template) SQL() string {
	var b sqlBuilder
	for _, p := range t.parts {
		b.writePart(p)
	}
	return b.getSQL()
}

// Params returns the names of the parameters referenced by the template, in
// order of appearance. A name referenced twice is listed twice.
func (t *Template) Params() []string {
	var names []string
	for _, p := range t.parts {
		if pp, ok := p.(*paramPart); ok {
			names = append(names, pp.name)
		}
	}
	return names
}

// Lists returns the names of the list placeholders in the template.
func (t *Template) Lists() []string {
	var names []string
	for _, p := range t.parts {
		if lp, ok := p.(*listPart); ok {
			names = append(names, lp.name)
		}
	}
	return names
}

// ExpandList returns a copy of the template in which every placeholder for
// the named list is replaced by count parameter references name0 to
// name{count-1}, separated by commas. The second result reports whether a
// placeholder was found; if not, the template is returned unchanged.
func (t *Template) ExpandList(name string, count int) (*Template, bool) {
	found := false
	parts := make([]queryPart, 0, len(t.parts))
	for _, p := range t.parts {
		lp, ok := p.(*listPart)
		if !ok || lp.name != name {
			parts = append(parts, p)
			continue
		}
		found = true
		for i := 0; i < count; i++ {
			if i > 0 {
				parts = append(parts, &bypassPart{","})
			}
			itemName := ListItemName(name, i)
			parts = append(parts, &paramPart{name: itemName, raw: "@" + itemName})
		}
	}
	if !found {
		return t, false
	}
	return &Template{parts: parts}, true
}

// ListItemName returns the parameter name bound to the i-th item of a list.
func ListItemName(name string, i int) string {
	return name + strconv.Itoa(i)
}

// Render produces driver ready SQL. Each parameter reference for which lookup
// reports a value is replaced by placeholder(n), where n counts the arguments
// from 1, and the value is appended to the returned arguments. Any other
// reference is written out verbatim.
func (t *Template) Render(placeholder func(n int) string, lookup func(name string) (any, bool)) (string, []any) {
	var b sqlBuilder
	var args []any
	for _, p := range t.parts {
		pp, ok := p.(*paramPart)
		if !ok {
			b.writePart(p)
			continue
		}
		v, ok := lookup(pp.name)
		if !ok {
			b.writePart(p)
			continue
		}
		args = append(args, v)
		b.write(placeholder(len(args)))
	}
	return b.getSQL(), args
}

type sqlBuilder struct {
	buf bytes.Buffer
}

func (b *sqlBuilder) writePart(p queryPart) {
	switch p := p.(type) {
	case *bypassPart:
		b.buf.WriteString(p.chunk)
	case *paramPart:
		b.buf.WriteString(p.raw)
	case *listPart:
		b.buf.WriteString(p.raw)
	}
}

func (b *sqlBuilder) write(s string) {
	b.buf.WriteString(s)
}

// getSQL returns the generated SQL string.
func (b *sqlBuilder) getSQL() string {
	return b.buf.String()
}
