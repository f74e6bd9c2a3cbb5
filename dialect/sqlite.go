package dialect

import (
	"fmt"
	"strings"
)

// SQLite is the implementation of Dialect for SQLite and dqlite. SQLite has
// no catalog of stored routines and cannot change a column type or add a
// foreign key to an existing table.
var SQLite Dialect = sqlite{}

type sqlite struct{}

func (sqlite) Name() string { return "sqlite" }

func (sqlite) Placeholder(int) string { return "?" }

func (sqlite) Syntax() Syntax { return Syntax{} }

func (sqlite) QuoteIdent(ident string) string { return quoteWith(ident, `"`) }

func (sqlite) MaxIdentifierLength() int { return 64 }

func (sqlite) LastInsertIDQuery() string { return "SELECT last_insert_rowid()" }

func (sqlite) IndexExistsQuery(string) string {
	return "SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = @table AND name = @indexName"
}

func (d sqlite) CreateIndex(unique bool, name, table string, fields []string) string {
	return fmt.Sprintf("CREATE %s %s ON %s (%s)",
		indexKind(unique), d.QuoteIdent(name), d.QuoteIdent(table), strings.Join(fields, ","))
}

func (d sqlite) DropIndex(_, name string) string {
	return "DROP INDEX " + d.QuoteIdent(name)
}

func (d sqlite) ReplaceIndex(table, oldName string, unique bool, name string, fields []string) string {
	return d.DropIndex(table, oldName) + "; " + d.CreateIndex(unique, name, table, fields)
}

func (sqlite) ColumnExistsQuery() string {
	return "SELECT type FROM pragma_table_info(@table) WHERE name = @column"
}

func (d sqlite) AddColumn(table, column, dataType string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", d.QuoteIdent(table), d.QuoteIdent(column), dataType)
}

func (sqlite) ModifyColumn(string, string, string) (string, error) {
	return "", ErrUnsupported
}

func (sqlite) AddForeignKey(string, string, string, string) (string, error) {
	return "", ErrUnsupported
}

func (sqlite) FunctionExistsQuery() (string, error) {
	return "", ErrUnsupported
}
