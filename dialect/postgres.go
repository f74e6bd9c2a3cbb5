package dialect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// Postgres is the implementation of Dialect for PostgreSQL.
var Postgres Dialect = postgres{}

type postgres struct{}

func (postgres) Name() string { return "postgres" }

func (postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgres) Syntax() Syntax { return Syntax{} }

func (postgres) QuoteIdent(ident string) string { return pq.QuoteIdentifier(ident) }

func (postgres) MaxIdentifierLength() int { return 63 }

// LastInsertIDQuery relies on the insert having advanced a sequence in the
// same session.
func (postgres) LastInsertIDQuery() string { return "SELECT lastval()" }

func (postgres) IndexExistsQuery(string) string {
	return "SELECT indexname FROM pg_indexes WHERE schemaname = current_schema() AND tablename = @table AND indexname = @indexName"
}

func (d postgres) CreateIndex(unique bool, name, table string, fields []string) string {
	return fmt.Sprintf("CREATE %s %s ON %s (%s)",
		indexKind(unique), d.QuoteIdent(name), d.QuoteIdent(table), strings.Join(fields, ","))
}

func (d postgres) DropIndex(_, name string) string {
	return "DROP INDEX " + d.QuoteIdent(name)
}

func (d postgres) ReplaceIndex(table, oldName string, unique bool, name string, fields []string) string {
	return d.DropIndex(table, oldName) + "; " + d.CreateIndex(unique, name, table, fields)
}

func (postgres) ColumnExistsQuery() string {
	return `SELECT data_type FROM information_schema.columns
WHERE table_schema = COALESCE(NULLIF(@schema, ''), current_schema())
AND table_name = @table
AND column_name = @column`
}

func (d postgres) AddColumn(table, column, dataType string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", d.QuoteIdent(table), d.QuoteIdent(column), dataType)
}

func (d postgres) ModifyColumn(table, column, dataType string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s", d.QuoteIdent(table), d.QuoteIdent(column), dataType), nil
}

func (d postgres) AddForeignKey(fromTable, toTable, fromKey, toKey string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		d.QuoteIdent(fromTable), d.QuoteIdent("FK_"+fromKey+"_"+fromTable+"_"+toTable), fromKey, d.QuoteIdent(toTable), toKey), nil
}

func (postgres) FunctionExistsQuery() (string, error) {
	return `SELECT routine_name FROM information_schema.routines
WHERE routine_schema = COALESCE(NULLIF(@schema, ''), current_schema())
AND routine_name = @routine`, nil
}
