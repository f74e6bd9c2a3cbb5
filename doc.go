/*
Package sqldao is a data access layer for SQL databases. It runs units of
work inside correctly scoped transactions, binds named parameters including
variable length lists, maps fully read results through caller supplied
converters and evolves a live schema idempotently.

# Units of work

A [DB] holds one or more named targets, each a database with its own
connection pool and [dialect.Dialect]. Work runs either in a transaction:

	id, err := sqldao.Transaction(ctx, db, func(tx *sqldao.Tx) (int64, error) {
		return sqldao.InsertID(ctx, tx, sqldao.NewCommand(
			"INSERT INTO device (tag) VALUES (@tag)", sqldao.KV("tag", "PT-101")))
	})

or as an operation on a plain connection, see [Operation]. A transaction is
committed when the unit of work returns a nil error and rolled back
otherwise. The connection is always released.

# Commands

Parameters are referenced in SQL text as @name and bound with [KV]. Times
and booleans are bound with explicit types, see [ParamType]. Text inside
string literals, quoted identifiers and comments is never treated as a
reference, and neither are MySQL system variables such as @@sql_mode.
Where literals and comments end follows the target's dialect, see
[dialect.Syntax].

A list placeholder @LIST_name stands for a variable number of values:

	cmd := sqldao.ExpandList(
		sqldao.NewCommand("SELECT * FROM device WHERE id IN (@LIST_ids)"),
		"ids", []int64{4, 8, 15})

becomes "SELECT * FROM device WHERE id IN (@ids0,@ids1,@ids2)" with three
parameters bound. An empty list produces "IN ()", which callers must avoid
or accept.

# Results

Queries read the whole result into a [ResultSet]. Converters of the form
func(Row) (T, error) turn rows into values; see [ToList], [FirstOrFail],
[FirstOrNil], [ToMap] and [Struct].

# Schema

[CreateIndexIfNotExists], [DeleteIndexIfExists], [ReplaceIndex] and
[AddOrAlterColumn] probe the catalog before changing anything, so they can
run on every start up. [Script] runs migration scripts, including stored
routine bodies set off with DELIMITER lines.
*/
package sqldao
