package reflect

import (
	"reflect"
)

// Field represents a single field from a struct type.
type Field struct {
	// Name is the name of the struct field.
	Name string

	// Index is the index sequence for reflect.Value.FieldByIndex. It has
	// more than one element for fields promoted from embedded structs.
	Index []int

	// Type is the type of the struct field.
	Type reflect.Type

	// Required is true when "required" is a property of the field's "db"
	// tag. The column must then be present in the result set.
	Required bool
}

// Struct represents reflected information about a struct type.
type Struct struct {
	typ reflect.Type

	// Fields maps "db" tags to struct fields.
	// Fields without a "db" tag are not populated from rows.
	Fields map[string]Field

	// Columns lists the tags in field order.
	Columns []string
}

// Kind returns the Struct's reflect.Kind.
func (r Struct) Kind() reflect.Kind {
	return r.typ.Kind()
}

// Name returns the name of the Struct's type.
func (r Struct) Name() string {
	return r.typ.Name()
}
