package sqldao

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/canonical/sqldao/dialect"
	"github.com/canonical/sqldao/internal/expr"
)

// templates caches parsed SQL text for all commands.
var templates = newTemplateCache()

// ParamType is the storage type a parameter is bound with.
type ParamType int

const (
	// TypeObject parameters are handed to the driver unchanged.
	TypeObject ParamType = iota
	// TypeDateTime parameters are bound as a time.Time.
	TypeDateTime
	// TypeDateTimeOffset parameters are bound as a time.Time normalised to
	// UTC so that the instant survives engines without offset support.
	TypeDateTimeOffset
	// TypeBoolean parameters are bound as a plain bool.
	TypeBoolean
)

func (t ParamType) String() string {
	switch t {
	case TypeDateTime:
		return "DateTime"
	case TypeDateTimeOffset:
		return "DateTimeOffset"
	case TypeBoolean:
		return "Boolean"
	}
	return "Object"
}

// Param is a named value bound to a command.
type Param struct {
	Name  string
	Value any
	Type  ParamType
}

// KV returns a parameter whose type is inferred from its value.
func KV(name string, value any) Param {
	return Param{Name: name, Value: value, Type: inferType(value)}
}

// TypedKV returns a parameter bound with an explicit type.
func TypedKV(name string, value any, typ ParamType) Param {
	return Param{Name: name, Value: value, Type: typ}
}

// When returns KV(name, value) if cond holds. Otherwise it returns the
// parameter with an empty name, which Bind skips.
func When(cond bool, name string, value any) Param {
	if !cond {
		return Param{}
	}
	return KV(name, value)
}

func inferType(v any) ParamType {
	switch v := v.(type) {
	case time.Time:
		return inferTimeType(v)
	case *time.Time:
		if v != nil {
			return inferTimeType(*v)
		}
		return TypeObject
	case bool:
		return TypeBoolean
	}
	if v != nil && reflect.TypeOf(v).Kind() == reflect.Bool {
		return TypeBoolean
	}
	return TypeObject
}

func inferTimeType(t time.Time) ParamType {
	if loc := t.Location(); loc == time.UTC || loc == time.Local {
		return TypeDateTime
	}
	return TypeDateTimeOffset
}

// bindValue returns the value handed to the driver.
func (p Param) bindValue() (any, error) {
	v := p.Value
	if t, ok := v.(*time.Time); ok {
		if t == nil {
			return nil, nil
		}
		v = *t
	}
	if v == nil {
		return nil, nil
	}
	switch p.Type {
	case TypeDateTime:
		return Coerce[time.Time](v)
	case TypeDateTimeOffset:
		t, err := Coerce[time.Time](v)
		return t.UTC(), err
	case TypeBoolean:
		return Coerce[bool](v)
	}
	return v, nil
}

// Command is an SQL statement together with its bound parameters. Parameters
// are referenced in the statement as @name. A list placeholder @LIST_name
// stands for a variable number of values, see ExpandList.
//
// A Command is built for a single execution and must not be shared between
// goroutines.
type Command struct {
	raw    string
	syntax expr.Syntax
	lists  []ListArg
	// listParams bind the items of the lists found in the template.
	listParams []Param

	tmpl     *expr.Template
	sql      string
	params   []Param
	timeout  time.Duration
	warnings []string
	err      error
}

// NewCommand returns a command for sql with the given parameters bound. An
// invalid statement is reported when the command is executed.
//
// The statement is read with MySQL syntax until it runs on a target, when it
// is read again with the syntax of the target's dialect. Until then SQL, Err
// and Warnings describe the MySQL reading.
func NewCommand(sql string, params ...Param) *Command {
	cmd := &Command{raw: sql}
	cmd.build(expr.MySQL)
	return cmd.Bind(params...)
}

// build parses the statement with syntax and applies the list expansions
// made so far.
func (c *Command) build(syntax expr.Syntax) {
	c.syntax = syntax
	c.sql = c.raw
	c.warnings = nil
	c.listParams = nil
	c.tmpl, c.err = templates.parse(c.raw, syntax)
	for _, l := range c.lists {
		c.expandTemplate(l)
	}
}

// Bind appends parameters to the command in order. Parameters with an empty
// name are skipped.
func (c *Command) Bind(params ...Param) *Command {
	for _, p := range params {
		p.Name = strings.TrimPrefix(p.Name, "@")
		if p.Name == "" {
			continue
		}
		c.params = append(c.params, p)
	}
	return c
}

// WithTimeout overrides the command timeout policy of the database for this
// command. A zero duration means no timeout.
func (c *Command) WithTimeout(d time.Duration) *Command {
	c.timeout = d
	if d == 0 {
		c.timeout = -1
	}
	return c
}

// SQL returns the statement text after list expansion.
func (c *Command) SQL() string {
	return c.sql
}

// Params returns the bound parameters followed by those bound to list items.
func (c *Command) Params() []Param {
	if len(c.listParams) == 0 {
		return c.params
	}
	return append(append([]Param(nil), c.params...), c.listParams...)
}

// Warnings returns the problems found while building the command that do
// not prevent it from running.
func (c *Command) Warnings() []string {
	return c.warnings
}

// Err returns the error that will prevent the command from running, if any.
func (c *Command) Err() error {
	return c.err
}

// ListArg is a list of values for a list placeholder.
type ListArg struct {
	name  string
	items []any
}

// List returns the values for the list placeholder @LIST_name.
func List[T any](name string, items []T) ListArg {
	arg := ListArg{name: name, items: make([]any, len(items))}
	for i, item := range items {
		arg.items[i] = item
	}
	return arg
}

// ExpandList replaces every @LIST_name placeholder in the command with the
// references @name0 to @name{N-1}, separated by commas, and binds the items
// to them. An empty list leaves nothing in place of the placeholder, so
// "IN (@LIST_name)" becomes "IN ()" and the caller must handle that case.
// If the placeholder does not occur the command is unchanged and a warning
// is recorded.
func ExpandList[T any](cmd *Command, name string, items []T) *Command {
	return cmd.Expand(List(name, items))
}

// Expand applies several list expansions in order.
func (c *Command) Expand(lists ...ListArg) *Command {
	for _, l := range lists {
		c.expand(l)
	}
	return c
}

func (c *Command) expand(l ListArg) {
	c.lists = append(c.lists, l)
	c.expandTemplate(l)
}

// expandTemplate spells out the list in the template and binds its items.
func (c *Command) expandTemplate(l ListArg) {
	if c.err != nil {
		return
	}
	expanded, ok := c.tmpl.ExpandList(l.name, len(l.items))
	if !ok {
		c.warnings = append(c.warnings,
			fmt.Sprintf("list placeholder @%s%s not found in %q", expr.ListPrefix, l.name, c.sql))
		return
	}
	c.tmpl = expanded
	c.sql = expanded.SQL()
	for i, item := range l.items {
		c.listParams = append(c.listParams, KV(expr.ListItemName(l.name, i), item))
	}
}

// render produces the driver statement and arguments for the dialect,
// reading the statement again first if the dialect has another syntax.
func (c *Command) render(d dialect.Dialect) (string, []any, error) {
	if syntax := expr.Syntax(d.Syntax()); syntax != c.syntax {
		c.build(syntax)
	}
	if c.err != nil {
		return "", nil, c.err
	}
	params := c.Params()
	values := make(map[string]any, len(params))
	for _, p := range params {
		v, err := p.bindValue()
		if err != nil {
			return "", nil, errors.Wrapf(err, "cannot bind parameter %q as %s", p.Name, p.Type)
		}
		values[p.Name] = v
	}
	sql, args := c.tmpl.Render(d.Placeholder, func(name string) (any, bool) {
		v, ok := values[name]
		return v, ok
	})
	return sql, args, nil
}
