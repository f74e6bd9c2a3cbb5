package sqldao

import (
	"reflect"

	"github.com/pkg/errors"

	sqldaoreflect "github.com/canonical/sqldao/internal/reflect"
)

// The mapping functions below apply a converter to the rows of a result
// set. Each comes in two forms: the plain form passes the converter the row
// only, the Indexed form also passes the row index and the total row count.

func withoutIndex[T any](fn func(Row) (T, error)) func(Row, int, int) (T, error) {
	return func(row Row, _, _ int) (T, error) {
		return fn(row)
	}
}

// ForEach calls fn on every row in result order, stopping at the first
// error.
func ForEach(rs *ResultSet, fn func(Row) error) error {
	return ForEachIndexed(rs, func(row Row, _, _ int) error {
		return fn(row)
	})
}

// ForEachIndexed is like ForEach but also passes the row index and count.
func ForEachIndexed(rs *ResultSet, fn func(row Row, idx, count int) error) error {
	count := rs.Len()
	for i := 0; i < count; i++ {
		if err := fn(rs.Row(i), i, count); err != nil {
			return err
		}
	}
	return nil
}

// ToList converts every row, preserving result order.
func ToList[T any](rs *ResultSet, fn func(Row) (T, error)) ([]T, error) {
	return ToListIndexed(rs, withoutIndex(fn))
}

// ToListIndexed is like ToList but also passes the row index and count.
func ToListIndexed[T any](rs *ResultSet, fn func(row Row, idx, count int) (T, error)) ([]T, error) {
	count := rs.Len()
	out := make([]T, 0, count)
	for i := 0; i < count; i++ {
		v, err := fn(rs.Row(i), i, count)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ElementOrDefaultAt converts the row at rowIdx, or returns def if the result
// has no such row. Use FirstOrNil rather than a nil default.
func ElementOrDefaultAt[T any](rs *ResultSet, def T, rowIdx int, fn func(Row) (T, error)) (T, error) {
	return ElementOrDefaultAtIndexed(rs, def, rowIdx, withoutIndex(fn))
}

// ElementOrDefaultAtIndexed is like ElementOrDefaultAt but also passes the
// row index and count.
func ElementOrDefaultAtIndexed[T any](rs *ResultSet, def T, rowIdx int, fn func(row Row, idx, count int) (T, error)) (T, error) {
	if isNil(def) {
		rs.log().Warn("nil default passed for a non-nullable result, use FirstOrNil", "row", rowIdx)
	}
	count := rs.Len()
	if rowIdx < 0 || rowIdx >= count {
		return def, nil
	}
	return fn(rs.Row(rowIdx), rowIdx, count)
}

// FirstOrDefault converts the first row, or returns def for an empty result.
func FirstOrDefault[T any](rs *ResultSet, def T, fn func(Row) (T, error)) (T, error) {
	return ElementOrDefaultAtIndexed(rs, def, 0, withoutIndex(fn))
}

// FirstOrDefaultIndexed is like FirstOrDefault but also passes the row index
// and count.
func FirstOrDefaultIndexed[T any](rs *ResultSet, def T, fn func(row Row, idx, count int) (T, error)) (T, error) {
	return ElementOrDefaultAtIndexed(rs, def, 0, fn)
}

// FirstOrNil converts the first row, or returns nil for an empty result.
func FirstOrNil[T any](rs *ResultSet, fn func(Row) (T, error)) (*T, error) {
	return FirstOrNilIndexed(rs, withoutIndex(fn))
}

// FirstOrNilIndexed is like FirstOrNil but also passes the row index and
// count.
func FirstOrNilIndexed[T any](rs *ResultSet, fn func(row Row, idx, count int) (T, error)) (*T, error) {
	if rs.Len() == 0 {
		return nil, nil
	}
	v, err := fn(rs.Row(0), 0, rs.Len())
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ElementOrFailAt converts the row at rowIdx. A missing row is reported as a
// *NotFoundError.
func ElementOrFailAt[T any](rs *ResultSet, rowIdx int, fn func(Row) (T, error)) (T, error) {
	return ElementOrFailAtIndexed(rs, rowIdx, withoutIndex(fn))
}

// ElementOrFailAtIndexed is like ElementOrFailAt but also passes the row
// index and count.
func ElementOrFailAtIndexed[T any](rs *ResultSet, rowIdx int, fn func(row Row, idx, count int) (T, error)) (T, error) {
	count := rs.Len()
	if rowIdx < 0 || rowIdx >= count {
		var zero T
		return zero, &NotFoundError{Index: rowIdx, Count: count}
	}
	return fn(rs.Row(rowIdx), rowIdx, count)
}

// FirstOrFail converts the first row. An empty result is reported as a
// *NotFoundError.
func FirstOrFail[T any](rs *ResultSet, fn func(Row) (T, error)) (T, error) {
	return ElementOrFailAtIndexed(rs, 0, withoutIndex(fn))
}

// FirstOrFailIndexed is like FirstOrFail but also passes the row index and
// count.
func FirstOrFailIndexed[T any](rs *ResultSet, fn func(row Row, idx, count int) (T, error)) (T, error) {
	return ElementOrFailAtIndexed(rs, 0, fn)
}

// ToMap builds a map from the key and value each row converts to. A key
// produced by more than one row is reported as a *DuplicateKeyError.
func ToMap[K comparable, V any](rs *ResultSet, fn func(Row) (K, V, error)) (map[K]V, error) {
	return ToMapIndexed(rs, func(row Row, _, _ int) (K, V, error) {
		return fn(row)
	})
}

// ToMapIndexed is like ToMap but also passes the row index and count.
func ToMapIndexed[K comparable, V any](rs *ResultSet, fn func(row Row, idx, count int) (K, V, error)) (map[K]V, error) {
	count := rs.Len()
	out := make(map[K]V, count)
	for i := 0; i < count; i++ {
		k, v, err := fn(rs.Row(i), i, count)
		if err != nil {
			return nil, err
		}
		if _, ok := out[k]; ok {
			return nil, &DuplicateKeyError{Key: k, Row: i}
		}
		out[k] = v
	}
	return out, nil
}

// GroupBy collects the values of rows sharing a key, in result order.
func GroupBy[K comparable, V any](rs *ResultSet, fn func(Row) (K, V, error)) (map[K][]V, error) {
	out := map[K][]V{}
	err := ForEach(rs, func(row Row) error {
		k, v, err := fn(row)
		if err != nil {
			return err
		}
		out[k] = append(out[k], v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// HasRows reports whether the result set has at least one row.
func HasRows(rs *ResultSet) bool {
	return rs.Len() > 0
}

// Value returns a converter reading the named column as T.
func Value[T any](col string) func(Row) (T, error) {
	return func(row Row) (T, error) {
		return Column[T](row, col)
	}
}

// Struct returns a converter populating the fields of T tagged with a "db"
// column name. Columns without a field are ignored. A field tagged
// "name,required" must have its column in the result. NULL leaves the field
// at its zero value unless the field is a pointer, which is then nil.
func Struct[T any]() func(Row) (T, error) {
	return func(row Row) (T, error) {
		var out T
		typ := reflect.TypeOf(&out).Elem()
		if typ.Kind() != reflect.Struct {
			return out, errors.Errorf("cannot map row to %s: not a struct", typ)
		}
		st, err := sqldaoreflect.Cache().Reflect(typ)
		if err != nil {
			return out, err
		}
		v := reflect.ValueOf(&out).Elem()
		for _, col := range st.Columns {
			field := st.Fields[col]
			raw, ok := row.Lookup(col)
			if !ok {
				if field.Required {
					return out, errors.Errorf("cannot map row to %s: missing column %q", typ, col)
				}
				continue
			}
			if raw == nil && field.Type.Kind() != reflect.Pointer && field.Type.Kind() != reflect.Interface {
				continue
			}
			fv, err := coerceTo(raw, field.Type)
			if err != nil {
				return out, &ConversionError{Value: raw, Target: field.Type.String(), Err: errors.Wrapf(err, "field %s", field.Name)}
			}
			v.FieldByIndex(field.Index).Set(fv)
		}
		return out, nil
	}
}

// isNil reports whether v is a nil pointer or interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
