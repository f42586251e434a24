package keel

import (
	"fmt"
	"reflect"
)

// Metadata is the key/value configuration attached to a registration at build time.
type Metadata map[string]any

func (m Metadata) clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}

// Get returns the value stored under key.
func (m Metadata) Get(key string) (any, bool) {
	v, ok := m[key]

	return v, ok
}

// MetadataView maps metadata onto the exported fields of struct M. Keys match
// field names, or the `meta:"..."` tag when present. Fields without a matching
// key keep their zero value.
//
// Example:
//
//	type HandlerMeta struct {
//	    Route string
//	    Order int `meta:"order"`
//	}
//	view, err := MetadataView[HandlerMeta](lazy.Metadata())
func MetadataView[M any](md Metadata) (M, error) {
	var view M

	v := reflect.ValueOf(&view).Elem()
	if v.Kind() != reflect.Struct {
		return view, NewArgumentError("M", fmt.Sprintf("metadata view must be a struct, got %s", v.Type()))
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		raw, ok := md[metadataKey(field)]
		if !ok {
			continue
		}

		val, err := convertValue(raw, field.Type)
		if err != nil {
			return view, fmt.Errorf("metadata %q: %w", metadataKey(field), err)
		}

		v.Field(i).Set(val)
	}

	return view, nil
}

// metadataFromStruct flattens the exported fields of a struct (or pointer to
// struct) into metadata entries.
func metadataFromStruct(src any) (Metadata, error) {
	v := reflect.ValueOf(src)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, NewArgumentError("metadata", "cannot be a nil pointer")
		}

		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return nil, NewArgumentError("metadata", fmt.Sprintf("expected a struct, got %s", v.Type()))
	}

	md := make(Metadata, v.NumField())

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.IsExported() {
			md[metadataKey(field)] = v.Field(i).Interface()
		}
	}

	return md, nil
}

func metadataKey(f reflect.StructField) string {
	if tag := f.Tag.Get("meta"); tag != "" {
		return tag
	}

	return f.Name
}
