package reflect

import (
	"reflect"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// cache is responsible for generating, caching and retrieving reflection
// information for struct types populated from result rows.
type cache struct {
	mutex sync.RWMutex
	cache map[reflect.Type]Struct
}

// Reflect will return the Struct information of a given type, generating
// and caching as required. Pointer types are dereferenced. Types that are
// not structs are rejected.
func (r *cache) Reflect(typ reflect.Type) (Struct, error) {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	r.mutex.RLock()
	info, ok := r.cache[typ]
	r.mutex.RUnlock()
	if ok {
		return info, nil
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if info, ok := r.cache[typ]; ok {
		return info, nil
	}

	info, err := generate(typ)
	if err != nil {
		return Struct{}, err
	}
	r.cache[typ] = info
	return info, nil
}

// generate produces and returns reflection information for the input type.
func generate(typ reflect.Type) (Struct, error) {
	if typ.Kind() != reflect.Struct {
		return Struct{}, errors.Errorf("cannot map rows to %s: not a struct", typ)
	}

	info := Struct{
		Fields: make(map[string]Field),
		typ:    typ,
	}
	if err := addFields(&info, typ, nil); err != nil {
		return Struct{}, err
	}
	return info, nil
}

// addFields records the tagged fields of typ. Untagged embedded structs are
// walked so that their fields are promoted, as with Go field selectors.
func addFields(info *Struct, typ reflect.Type, index []int) error {
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		fieldIndex := append(append([]int{}, index...), i)

		tag := field.Tag.Get("db")
		if tag == "" {
			if field.Anonymous && field.Type.Kind() == reflect.Struct {
				if err := addFields(info, field.Type, fieldIndex); err != nil {
					return err
				}
			}
			continue
		}
		if tag == "-" || !field.IsExported() {
			continue
		}

		name, required, err := parseTag(tag)
		if err != nil {
			return err
		}
		if _, ok := info.Fields[name]; ok {
			return errors.Errorf("column %q tagged on more than one field of %s", name, info.typ.Name())
		}

		info.Fields[name] = Field{
			Name:     field.Name,
			Index:    fieldIndex,
			Type:     field.Type,
			Required: required,
		}
		info.Columns = append(info.Columns, name)
	}
	return nil
}

// parseTag parses the input tag string and returns its
// name and whether it contains the "required" option.
func parseTag(tag string) (string, bool, error) {
	options := strings.Split(tag, ",")

	var required bool
	if len(options) > 1 {
		if strings.ToLower(options[1]) != "required" {
			return "", false, errors.Errorf("unexpected tag value %q", options[1])
		}
		required = true
	}

	return options[0], required, nil
}
