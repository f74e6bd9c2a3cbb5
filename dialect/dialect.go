// Package dialect describes the SQL text that differs between database
// engines: placeholders, identifier quoting, identity retrieval and the
// catalog probes and DDL used for schema evolution.
//
// Catalog probes are templates that reference their arguments by name
// (@table, @indexName, @schema, @column, @routine). Arguments a template does
// not reference are ignored.
package dialect

import (
	"sort"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// ErrUnsupported is returned when an engine has no equivalent of an
// operation.
var ErrUnsupported = errors.New("operation not supported by dialect")

// Dialect is the interface that describes a dialect of a particular SQL
// engine.
type Dialect interface {
	// Name returns the name the dialect is registered under.
	Name() string

	// Placeholder returns the nth positional placeholder, starting from 1.
	Placeholder(n int) string

	// Syntax returns the lexical rules statements are parsed with.
	Syntax() Syntax

	// QuoteIdent safely quotes an identifier such as a table or column name.
	QuoteIdent(ident string) string

	// MaxIdentifierLength is the longest identifier the engine accepts.
	MaxIdentifierLength() int

	// LastInsertIDQuery returns the generated identity of the last insert on
	// the same session.
	LastInsertIDQuery() string

	// IndexExistsQuery returns rows only if the index @indexName exists on
	// table.
	IndexExistsQuery(table string) string
	CreateIndex(unique bool, name, table string, fields []string) string
	DropIndex(table, name string) string
	// ReplaceIndex drops oldName and adds the new index in one statement
	// where the engine allows it.
	ReplaceIndex(table, oldName string, unique bool, name string, fields []string) string

	// ColumnExistsQuery returns rows only if @column exists on @table in
	// @schema. An empty @schema means the session's current schema.
	ColumnExistsQuery() string
	AddColumn(table, column, dataType string) string
	ModifyColumn(table, column, dataType string) (string, error)

	AddForeignKey(fromTable, toTable, fromKey, toKey string) (string, error)

	// FunctionExistsQuery returns rows only if the routine @routine exists in
	// @schema.
	FunctionExistsQuery() (string, error)
}

// Syntax holds the lexical rules that decide where string literals and
// comments end in a statement.
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

var (
	mu       sync.RWMutex
	byName   = map[string]Dialect{}
	byDriver = map[string]Dialect{}
)

func init() {
	for _, d := range []Dialect{MySQL, SQLite, Postgres} {
		byName[d.Name()] = d
	}
	for _, driver := range []string{"mysql"} {
		byDriver[driver] = MySQL
	}
	for _, driver := range []string{"sqlite3", "sqlite", "dqlite"} {
		byDriver[driver] = SQLite
	}
	for _, driver := range []string{"postgres", "pgx", "pq-timeouts"} {
		byDriver[driver] = Postgres
	}
}

// Register makes d the dialect of databases opened with driverName.
func Register(driverName string, d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	byDriver[driverName] = d
}

// ByName returns the dialect with the given name.
func ByName(name string) (Dialect, error) {
	mu.RLock()
	defer mu.RUnlock()
	if d, ok := byName[strings.ToLower(name)]; ok {
		return d, nil
	}
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return nil, errors.Errorf("unknown dialect %q, expected one of %s", name, strings.Join(names, ", "))
}

// ForDriver returns the dialect of databases opened with driverName. Drivers
// that were not registered fall back on the bind type sqlx knows for them.
func ForDriver(driverName string) (Dialect, error) {
	mu.RLock()
	d, ok := byDriver[driverName]
	mu.RUnlock()
	if ok {
		return d, nil
	}
	switch sqlx.BindType(driverName) {
	case sqlx.DOLLAR:
		return Postgres, nil
	case sqlx.QUESTION:
		return MySQL, nil
	}
	return nil, errors.Errorf("cannot determine dialect for driver %q", driverName)
}

func indexKind(unique bool) string {
	if unique {
		return "UNIQUE INDEX"
	}
	return "INDEX"
}

func quoteWith(ident string, q string) string {
	return q + strings.ReplaceAll(ident, q, q+q) + q
}
