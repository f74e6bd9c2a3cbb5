package sqldao

import (
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// ResultSet is a fully read query result.
type ResultSet struct {
	Columns []string
	Rows    [][]any

	logger *slog.Logger
}

// NewResultSet returns a result set holding the given rows. Each row holds
// one value per column.
func NewResultSet(columns []string, rows [][]any) *ResultSet {
	return &ResultSet{Columns: columns, Rows: rows, logger: slog.Default()}
}

// readAll materialises rows and closes them.
func readAll(rows *sqlx.Rows, logger *slog.Logger) (*ResultSet, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	rs := &ResultSet{Columns: cols, Rows: [][]any{}, logger: logger}
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

// Len returns the number of rows.
func (rs *ResultSet) Len() int {
	return len(rs.Rows)
}

// Row returns the row at index i.
func (rs *ResultSet) Row(i int) Row {
	return Row{rs: rs, values: rs.Rows[i], index: i}
}

// columnIndex looks a column up by exact name, then ignoring case.
func (rs *ResultSet) columnIndex(name string) (int, bool) {
	for i, c := range rs.Columns {
		if c == name {
			return i, true
		}
	}
	for i, c := range rs.Columns {
		if strings.EqualFold(c, name) {
			return i, true
		}
	}
	return -1, false
}

func (rs *ResultSet) log() *slog.Logger {
	if rs.logger == nil {
		return slog.Default()
	}
	return rs.logger
}

// Row is a read only view of one row of a ResultSet.
type Row struct {
	rs     *ResultSet
	values []any
	index  int
}

// Index returns the position of the row in its result set.
func (r Row) Index() int {
	return r.index
}

// Columns returns the column names.
func (r Row) Columns() []string {
	return r.rs.Columns
}

// At returns the value in column i.
func (r Row) At(i int) any {
	return r.values[i]
}

// Lookup returns the value of the named column and whether the column
// exists.
func (r Row) Lookup(col string) (any, bool) {
	i, ok := r.rs.columnIndex(col)
	if !ok {
		return nil, false
	}
	return r.values[i], true
}

// Value returns the value of the named column, or nil if there is no such
// column.
func (r Row) Value(col string) any {
	v, _ := r.Lookup(col)
	return v
}

// Map returns the row as a map from column name to value.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.values))
	for i, c := range r.rs.Columns {
		m[c] = r.values[i]
	}
	return m
}

// String returns the named column as a string. NULL and missing columns give
// the empty string.
func (r Row) String(col string) string {
	return stringOf(r.Value(col))
}

// Int and the accessors below convert the named column with Coerce.
func (r Row) Int(col string) (int, error) { return Column[int](r, col) }
func (r Row) Int64(col string) (int64, error) { return Column[int64](r, col) }
func (r Row) Float32(col string) (float32, error) { return Column[float32](r, col) }
func (r Row) Float64(col string) (float64, error) { return Column[float64](r, col) }
func (r Row) Bool(col string) (bool, error) { return Column[bool](r, col) }
func (r Row) Time(col string) (time.Time, error) { return Column[time.Time](r, col) }
func (r Row) Bytes(col string) ([]byte, error) { return Column[[]byte](r, col) }

// Column returns the named column of r converted to T.
func Column[T any](r Row, col string) (T, error) {
	v, ok := r.Lookup(col)
	if !ok {
		var zero T
		return zero, errors.Errorf("cannot find column %q", col)
	}
	return Coerce[T](v)
}
