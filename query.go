package sqldao

import (
	"context"
	"database/sql"
	"reflect"
)

// Query runs cmd and returns all the rows it produced.
func Query(ctx context.Context, q Querier, cmd *Command) (rs *ResultSet, err error) {
	err = q.withSession(ctx, func(s *session) error {
		rs, err = s.query(ctx, cmd)
		return err
	})
	return rs, err
}

// Exec runs cmd and returns the number of rows it affected.
func Exec(ctx context.Context, q Querier, cmd *Command) (int64, error) {
	var affected int64
	err := q.withSession(ctx, func(s *session) error {
		res, err := s.exec(ctx, cmd)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

// Exists reports whether cmd returns at least one row.
func Exists(ctx context.Context, q Querier, cmd *Command) (bool, error) {
	rs, err := Query(ctx, q, cmd)
	if err != nil {
		return false, err
	}
	return HasRows(rs), nil
}

// Scalar runs cmd and converts the first column of the first row to T. A
// result without rows is treated as NULL.
func Scalar[T any](ctx context.Context, q Querier, cmd *Command) (T, error) {
	var out T
	err := q.withSession(ctx, func(s *session) error {
		rs, err := s.query(ctx, cmd)
		if err != nil {
			return err
		}
		var raw any
		if rs.Len() > 0 && len(rs.Columns) > 0 {
			raw = rs.Rows[0][0]
		}
		out, err = Coerce[T](raw)
		if err != nil {
			s.db.logger.Error("cannot convert scalar", "sql", cmd.SQL(), "value", raw, "target", reflect.TypeOf(&out).Elem().String())
		}
		return err
	})
	return out, err
}

// ScalarThen is like Scalar but passes the value through fn.
func ScalarThen[T any](ctx context.Context, q Querier, cmd *Command, fn func(T) (T, error)) (T, error) {
	v, err := Scalar[T](ctx, q, cmd)
	if err != nil {
		return v, err
	}
	return fn(v)
}

// InsertID runs cmd and returns the identity it generated. The identity is
// read on the same connection immediately after cmd. A statement that did
// not generate an identity is reported as a *MissingIdentityError.
func InsertID(ctx context.Context, q Querier, cmd *Command) (int64, error) {
	var id int64
	err := q.withSession(ctx, func(s *session) error {
		if _, err := s.exec(ctx, cmd); err != nil {
			return err
		}
		rs, err := s.query(ctx, NewCommand(s.target.dialect.LastInsertIDQuery()))
		if err != nil {
			return err
		}
		var raw any
		if rs.Len() > 0 {
			raw = rs.Rows[0][0]
		}
		var n sql.NullInt64
		if err := n.Scan(raw); err != nil {
			return &ConversionError{Value: raw, Target: "int64", Err: err}
		}
		if !n.Valid || n.Int64 == 0 {
			return &MissingIdentityError{SQL: cmd.SQL(), Params: cmd.Params()}
		}
		id = n.Int64
		return nil
	})
	return id, err
}

// QueryList runs cmd and converts every row.
func QueryList[T any](ctx context.Context, q Querier, cmd *Command, fn func(Row) (T, error)) ([]T, error) {
	rs, err := Query(ctx, q, cmd)
	if err != nil {
		return nil, err
	}
	return ToList(rs, fn)
}

// QueryFirstOrDefault runs cmd and converts the first row, or returns def.
func QueryFirstOrDefault[T any](ctx context.Context, q Querier, cmd *Command, def T, fn func(Row) (T, error)) (T, error) {
	rs, err := Query(ctx, q, cmd)
	if err != nil {
		return def, err
	}
	return FirstOrDefault(rs, def, fn)
}

// QueryFirstOrNil runs cmd and converts the first row, or returns nil.
func QueryFirstOrNil[T any](ctx context.Context, q Querier, cmd *Command, fn func(Row) (T, error)) (*T, error) {
	rs, err := Query(ctx, q, cmd)
	if err != nil {
		return nil, err
	}
	return FirstOrNil(rs, fn)
}

// QueryFirstOrFail runs cmd and converts the first row, failing with a
// *NotFoundError if there is none.
func QueryFirstOrFail[T any](ctx context.Context, q Querier, cmd *Command, fn func(Row) (T, error)) (T, error) {
	rs, err := Query(ctx, q, cmd)
	if err != nil {
		var zero T
		return zero, err
	}
	return FirstOrFail(rs, fn)
}

// QueryMap runs cmd and builds a map from the rows.
func QueryMap[K comparable, V any](ctx context.Context, q Querier, cmd *Command, fn func(Row) (K, V, error)) (map[K]V, error) {
	rs, err := Query(ctx, q, cmd)
	if err != nil {
		return nil, err
	}
	return ToMap(rs, fn)
}
