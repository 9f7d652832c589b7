package storage

import (
	"database/sql"
	"fmt"
	"reflect"
	"sync"

	"stockroom/internal/core/entity"
)

// Persisted column names of the lifecycle pair.
const (
	ColumnLifecycle = "lifecycle"
	ColumnIsActive  = "is_active"
	ColumnIsDeleted = "is_deleted"
	ColumnID        = "id"
	ColumnVersion   = "version"
)

var lifecycleType = reflect.TypeOf(entity.Lifecycle(0))

// fieldInfo contains pre-computed metadata about a struct field.
type fieldInfo struct {
	index  []int  // path for FieldByIndex, embedded structs flattened
	column string // database column name
}

// typeMetadata contains cached reflection metadata for a type.
type typeMetadata struct {
	fields []fieldInfo
}

// typeCache holds *typeMetadata per struct type.
var typeCache sync.Map

func indirectType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// metadataFor returns cached metadata, computing it once per type.
func metadataFor(t reflect.Type) *typeMetadata {
	t = indirectType(t)
	if cached, ok := typeCache.Load(t); ok {
		return cached.(*typeMetadata)
	}

	meta := &typeMetadata{}
	if t.Kind() == reflect.Struct {
		collectFields(t, nil, meta)
	}
	actual, _ := typeCache.LoadOrStore(t, meta)
	return actual.(*typeMetadata)
}

func collectFields(t reflect.Type, prefix []int, meta *typeMetadata) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		path := append(append([]int(nil), prefix...), i)

		if field.Anonymous && field.Type.Kind() == reflect.Struct && field.Tag.Get("db") == "" {
			collectFields(field.Type, path, meta)
			continue
		}

		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" || !field.IsExported() {
			continue
		}
		meta.fields = append(meta.fields, fieldInfo{index: path, column: tag})
	}
}

// Columns returns the db-tagged columns of T in declaration order,
// embedded structs flattened. The lifecycle column is reported as "lifecycle".
func Columns[T any]() []string {
	return columnsOf(reflect.TypeOf((*T)(nil)).Elem())
}

// ColumnsOf is Columns for the dynamic type of v.
func ColumnsOf(v any) []string {
	if v == nil {
		return nil
	}
	return columnsOf(reflect.TypeOf(v))
}

func columnsOf(t reflect.Type) []string {
	meta := metadataFor(t)
	cols := make([]string, len(meta.fields))
	for i, f := range meta.fields {
		cols[i] = f.column
	}
	return cols
}

// PersistedColumns expands "lifecycle" into the is_active / is_deleted pair,
// giving the physical column set usable in filters.
func PersistedColumns(columns []string) []string {
	out := make([]string, 0, len(columns)+1)
	for _, c := range columns {
		if c == ColumnLifecycle {
			out = append(out, ColumnIsActive, ColumnIsDeleted)
			continue
		}
		out = append(out, c)
	}
	return out
}

// EncodeRow converts a struct to its persisted column map using "db" tags.
// The lifecycle field is written as is_active / is_deleted.
func EncodeRow(v any) map[string]any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	meta := metadataFor(rv.Type())
	res := make(map[string]any, len(meta.fields)+1)
	for _, fi := range meta.fields {
		fv := rv.FieldByIndex(fi.index)
		if fi.column == ColumnLifecycle && fv.Type() == lifecycleType {
			isActive, isDeleted := entity.Lifecycle(fv.Uint()).Flags()
			res[ColumnIsActive] = isActive
			res[ColumnIsDeleted] = isDeleted
			continue
		}
		res[fi.column] = fv.Interface()
	}
	return res
}

// DecodeRow fills dest (a pointer to struct) from a persisted column map.
// Missing columns leave fields untouched; pointer values are copied, never shared.
func DecodeRow(row map[string]any, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("decode row: dest must be a non-nil pointer, got %T", dest)
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("decode row: dest must point to a struct, got %T", dest)
	}

	meta := metadataFor(rv.Type())
	for _, fi := range meta.fields {
		fv := rv.FieldByIndex(fi.index)

		if fi.column == ColumnLifecycle && fv.Type() == lifecycleType {
			a, okA := row[ColumnIsActive].(bool)
			d, okD := row[ColumnIsDeleted].(bool)
			if okA || okD {
				fv.SetUint(uint64(entity.LifecycleFromFlags(a, d)))
				continue
			}
		}

		val, ok := row[fi.column]
		if !ok {
			continue
		}
		if err := assign(fv, val); err != nil {
			return fmt.Errorf("decode row: column %s: %w", fi.column, err)
		}
	}
	return nil
}

func assign(dst reflect.Value, val any) error {
	if val == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}

	src := reflect.ValueOf(val)
	for src.Kind() == reflect.Pointer {
		if src.IsNil() {
			dst.Set(reflect.Zero(dst.Type()))
			return nil
		}
		src = src.Elem()
	}

	if dst.Kind() == reflect.Pointer {
		elem := reflect.New(dst.Type().Elem())
		if err := assign(elem.Elem(), src.Interface()); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	switch {
	case src.Type().AssignableTo(dst.Type()):
		dst.Set(src)
	case src.Type().ConvertibleTo(dst.Type()) && src.Kind() != reflect.String && dst.Kind() != reflect.String:
		dst.Set(src.Convert(dst.Type()))
	case src.Kind() == reflect.String && dst.Kind() == reflect.String:
		dst.SetString(src.String())
	default:
		if dst.CanAddr() {
			if sc, ok := dst.Addr().Interface().(sql.Scanner); ok {
				return sc.Scan(src.Interface())
			}
		}
		return fmt.Errorf("cannot assign %s to %s", src.Type(), dst.Type())
	}
	return nil
}

// CloneRow returns a shallow copy of row.
func CloneRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
