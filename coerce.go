package sqldao

import (
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	timeType    = reflect.TypeOf(time.Time{})
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
)

// timeLayouts are tried in order when a timestamp arrives as text.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02",
}

// Coerce converts a value read from the database to T. Numeric and boolean
// conversions follow the rules database/sql applies when scanning, so text
// encodings sent by drivers are parsed. Conversion to string never fails.
func Coerce[T any](v any) (T, error) {
	if t, ok := v.(T); ok {
		return t, nil
	}
	var zero T
	target := reflect.TypeOf(&zero).Elem()
	rv, err := coerceTo(v, target)
	if err != nil {
		return zero, &ConversionError{Value: v, Target: target.String(), Err: err}
	}
	// A nil interface value does not assert to T.
	t, _ := rv.Interface().(T)
	return t, nil
}

func coerceTo(v any, target reflect.Type) (reflect.Value, error) {
	out := reflect.New(target).Elem()

	if target.Kind() != reflect.Pointer && reflect.PointerTo(target).Implements(scannerType) {
		if err := out.Addr().Interface().(sql.Scanner).Scan(v); err != nil {
			return out, err
		}
		return out, nil
	}

	switch target.Kind() {
	case reflect.Interface:
		if v == nil {
			return out, nil
		}
		if !reflect.TypeOf(v).Implements(target) {
			return out, errors.Errorf("%T does not implement %s", v, target)
		}
		out.Set(reflect.ValueOf(v))
		return out, nil
	case reflect.Pointer:
		if v == nil {
			return out, nil
		}
		elem, err := coerceTo(v, target.Elem())
		if err != nil {
			return out, err
		}
		ptr := reflect.New(target.Elem())
		ptr.Elem().Set(elem)
		return ptr, nil
	case reflect.String:
		out.SetString(stringOf(v))
		return out, nil
	}

	if v == nil {
		return out, errors.New("value is null")
	}

	if target == timeType {
		t, err := coerceTime(v)
		if err != nil {
			return out, err
		}
		out.Set(reflect.ValueOf(t))
		return out, nil
	}

	switch target.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n sql.NullInt64
		if err := n.Scan(v); err != nil {
			return out, err
		}
		if out.OverflowInt(n.Int64) {
			return out, errors.Errorf("value %d overflows", n.Int64)
		}
		out.SetInt(n.Int64)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(strings.TrimSpace(stringOf(v)), 10, 64)
		if err != nil {
			return out, err
		}
		if out.OverflowUint(u) {
			return out, errors.Errorf("value %d overflows", u)
		}
		out.SetUint(u)
	case reflect.Float32, reflect.Float64:
		var f sql.NullFloat64
		if err := f.Scan(v); err != nil {
			return out, err
		}
		if out.OverflowFloat(f.Float64) {
			return out, errors.Errorf("value %g overflows", f.Float64)
		}
		out.SetFloat(f.Float64)
	case reflect.Bool:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Bool {
			out.SetBool(rv.Bool())
			break
		}
		var b sql.NullBool
		if err := b.Scan(v); err != nil {
			return out, err
		}
		out.SetBool(b.Bool)
	case reflect.Slice:
		if target.Elem().Kind() != reflect.Uint8 {
			return out, errors.Errorf("unsupported target type %s", target)
		}
		switch v := v.(type) {
		case []byte:
			out.SetBytes(append([]byte{}, v...))
		case string:
			out.SetBytes([]byte(v))
		default:
			return out, errors.Errorf("cannot use %T as bytes", v)
		}
	default:
		rv := reflect.ValueOf(v)
		if !rv.Type().ConvertibleTo(target) {
			return out, errors.Errorf("unsupported target type %s", target)
		}
		out.Set(rv.Convert(target))
	}
	return out, nil
}

func coerceTime(v any) (time.Time, error) {
	var s string
	switch v := v.(type) {
	case time.Time:
		return v, nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return time.Time{}, errors.Errorf("cannot use %T as a timestamp", v)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognised timestamp %q", s)
}

func stringOf(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}
