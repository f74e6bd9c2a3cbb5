package dialect

import (
	"fmt"
	"strings"
)

// MySQL is the implementation of Dialect for MySQL and MariaDB.
var MySQL Dialect = mySQL{}

type mySQL struct{}

func (mySQL) Name() string { return "mysql" }

func (mySQL) Placeholder(int) string { return "?" }

func (mySQL) Syntax() Syntax {
	return Syntax{BackslashEscapes: true, HashComments: true, DashCommentNeedsSpace: true}
}

func (mySQL) QuoteIdent(ident string) string { return quoteWith(ident, "`") }

func (mySQL) MaxIdentifierLength() int { return 64 }

func (mySQL) LastInsertIDQuery() string { return "SELECT last_insert_id()" }

func (d mySQL) IndexExistsQuery(table string) string {
	return "SHOW INDEX FROM " + d.QuoteIdent(table) + " WHERE KEY_NAME = @indexName"
}

func (d mySQL) CreateIndex(unique bool, name, table string, fields []string) string {
	return fmt.Sprintf("CREATE %s %s ON %s (%s)",
		indexKind(unique), d.QuoteIdent(name), d.QuoteIdent(table), strings.Join(fields, ","))
}

func (d mySQL) DropIndex(table, name string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP INDEX %s", d.QuoteIdent(table), d.QuoteIdent(name))
}

func (d mySQL) ReplaceIndex(table, oldName string, unique bool, name string, fields []string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP INDEX %s, ADD %s %s (%s)",
		d.QuoteIdent(table), d.QuoteIdent(oldName), indexKind(unique), d.QuoteIdent(name), strings.Join(fields, ","))
}

func (mySQL) ColumnExistsQuery() string {
	return `SELECT data_type FROM information_schema.columns
WHERE table_schema = COALESCE(NULLIF(@schema, ''), DATABASE())
AND table_name = @table
AND column_name = @column`
}

func (d mySQL) AddColumn(table, column, dataType string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", d.QuoteIdent(table), d.QuoteIdent(column), dataType)
}

func (d mySQL) ModifyColumn(table, column, dataType string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s %s", d.QuoteIdent(table), d.QuoteIdent(column), dataType), nil
}

func (d mySQL) AddForeignKey(fromTable, toTable, fromKey, toKey string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s ADD FOREIGN KEY FK_%s_%s_%s (%s) REFERENCES %s (%s)",
		d.QuoteIdent(fromTable), fromKey, fromTable, toTable, fromKey, d.QuoteIdent(toTable), toKey), nil
}

func (mySQL) FunctionExistsQuery() (string, error) {
	return `SELECT routine_name FROM information_schema.routines
WHERE routine_schema = COALESCE(NULLIF(@schema, ''), DATABASE())
AND routine_name = @routine`, nil
}
