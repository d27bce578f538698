// Package rowmap maps structs to database rows through their "db" tags.
// Embedded structs (entity.Catalog, entity.BaseActivatable) are flattened.
package rowmap

import (
	"fmt"
	"reflect"
	"sync"
)

// Columns extracts all column names from struct "db" tags in declaration order.
// It is meant for initialization time, so reflection overhead is acceptable.
//
// Usage:
//
//	columns := rowmap.Columns[warehouse.Warehouse]()
//	// Returns: ["id", "version", "code", "name", "is_active", ...]
func Columns[T any]() []string {
	var zero T
	return columnsOf(reflect.TypeOf(zero))
}

func columnsOf(t reflect.Type) []string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	var cols []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Anonymous {
			cols = append(cols, columnsOf(field.Type)...)
			continue
		}

		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		cols = append(cols, tag)
	}
	return cols
}

// typeMetadata contains cached reflection metadata for a type.
// index is a field path suitable for reflect.Value.FieldByIndex.
type typeMetadata struct {
	byColumn map[string][]int
	order    []string
}

var typeCache sync.Map // map[reflect.Type]*typeMetadata

func metadataFor(t reflect.Type) *typeMetadata {
	if cached, ok := typeCache.Load(t); ok {
		return cached.(*typeMetadata)
	}

	meta := &typeMetadata{byColumn: make(map[string][]int)}
	collect(t, nil, meta)

	actual, _ := typeCache.LoadOrStore(t, meta)
	return actual.(*typeMetadata)
}

func collect(t reflect.Type, prefix []int, meta *typeMetadata) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		path := append(append([]int(nil), prefix...), i)

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			collect(field.Type, path, meta)
			continue
		}

		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" || field.PkgPath != "" {
			continue
		}
		if _, dup := meta.byColumn[tag]; dup {
			continue // outer declaration wins
		}
		meta.byColumn[tag] = path
		meta.order = append(meta.order, tag)
	}
}

func structValue(v any) (reflect.Value, bool) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	return rv, rv.Kind() == reflect.Struct
}

// ToMap converts a struct to a column -> value map.
// Only fields with a "db" tag other than "-" are included.
func ToMap(v any) map[string]any {
	rv, ok := structValue(v)
	if !ok {
		return nil
	}

	meta := metadataFor(rv.Type())
	res := make(map[string]any, len(meta.order))
	for _, col := range meta.order {
		res[col] = rv.FieldByIndex(meta.byColumn[col]).Interface()
	}
	return res
}

// Get returns the value stored under column.
func Get(v any, column string) (any, bool) {
	rv, ok := structValue(v)
	if !ok {
		return nil, false
	}
	path, ok := metadataFor(rv.Type()).byColumn[column]
	if !ok {
		return nil, false
	}
	return rv.FieldByIndex(path).Interface(), true
}

// Set writes values into the struct v points to. Values are converted when the
// types differ but are convertible (e.g. int to int64); nil clears pointer fields.
func Set(v any, values map[string]any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("rowmap: set requires a non-nil pointer, got %T", v)
	}
	rv, ok := structValue(v)
	if !ok {
		return fmt.Errorf("rowmap: %T is not a struct pointer", v)
	}

	meta := metadataFor(rv.Type())
	for col, val := range values {
		path, ok := meta.byColumn[col]
		if !ok {
			return fmt.Errorf("rowmap: unknown column %q", col)
		}
		field := rv.FieldByIndex(path)

		if val == nil {
			switch field.Kind() {
			case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map:
				field.Set(reflect.Zero(field.Type()))
				continue
			}
			return fmt.Errorf("rowmap: column %q is not nullable", col)
		}

		src := reflect.ValueOf(val)
		switch {
		case src.Type().AssignableTo(field.Type()):
			field.Set(src)
		case field.Kind() == reflect.Ptr && src.Type().AssignableTo(field.Type().Elem()):
			ptr := reflect.New(field.Type().Elem())
			ptr.Elem().Set(src)
			field.Set(ptr)
		case src.Type().ConvertibleTo(field.Type()) && (field.Kind() != reflect.String || src.Kind() == reflect.String):
			field.Set(src.Convert(field.Type()))
		default:
			return fmt.Errorf("rowmap: cannot assign %T to column %q (%s)", val, col, field.Type())
		}
	}
	return nil
}
