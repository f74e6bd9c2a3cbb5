// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqldao

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrTxDone is returned when a transaction or connection is used after the
// invocation that supplied it has ended.
var ErrTxDone = sql.ErrTxDone

// ErrUnknownTarget is returned when a named database target is not
// configured.
var ErrUnknownTarget = errors.New("unknown database target")

// ErrNotFound matches, through errors.Is, every error reporting that
// something the caller required was absent: a *NotFoundError for a missing
// row and a *MissingIdentityError for a missing generated identity.
var ErrNotFound = errors.New("not found")

// ConversionError is returned when a value cannot be converted to the
// requested type.
type ConversionError struct {
	Value  any
	Target string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %v (%T) to %s: %v", e.Value, e.Value, e.Target, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned when a row required by the caller is absent.
type NotFoundError struct {
	Index int
	Count int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cannot find row %d: result has %d rows", e.Index, e.Count)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// DuplicateKeyError is returned when two rows map to the same key.
type DuplicateKeyError struct {
	Key any
	Row int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key %v in row %d", e.Key, e.Row)
}

// MissingIdentityError is returned when a statement did not generate an
// identity value.
type MissingIdentityError struct {
	SQL    string
	Params []Param
}

func (e *MissingIdentityError) Error() string {
	return fmt.Sprintf("no generated identity found for %q with %d parameters: %s",
		e.SQL, len(e.Params), paramSummary(e.Params))
}

func (e *MissingIdentityError) Is(target error) bool {
	return target == ErrNotFound
}

// ExecutionError wraps a failure reported by the driver together with the
// statement that caused it.
type ExecutionError struct {
	SQL    string
	Params []Param
	Err    error
}

func (e *ExecutionError) Error() string {
	if len(e.Params) == 0 {
		return fmt.Sprintf("cannot execute %q: %v", e.SQL, e.Err)
	}
	return fmt.Sprintf("cannot execute %q with %s: %v", e.SQL, paramSummary(e.Params), e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func paramSummary(params []Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = fmt.Sprintf("%s=%v", p.Name, p.Value)
	}
	return strings.Join(parts, ", ")
}
