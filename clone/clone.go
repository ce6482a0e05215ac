// Package clone produces detached deep copies of snapshot values so that a
// captured history entry can never alias memory that live edits still touch.
package clone

import "reflect"

// Value returns a deep copy of v. Pointers, maps, slices, arrays and nested
// structs are copied recursively. Unexported struct fields keep a shallow copy,
// which is exact for value types such as time.Time.
func Value[T any](v T) T {
	var zero T
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return zero
	}
	copied := cloneValue(rv)
	if !copied.IsValid() {
		return zero
	}
	target := reflect.TypeOf((*T)(nil)).Elem()
	if copied.Type() != target {
		result := reflect.New(target).Elem()
		if target.Kind() == reflect.Interface {
			result.Set(copied)
		} else {
			result.Set(copied.Convert(target))
		}
		return result.Interface().(T)
	}
	return copied.Interface().(T)
}

// Slice deep copies every element of items. A nil input stays nil so callers
// can keep the nil/empty distinction they started with.
func Slice[T any](items []T) []T {
	if items == nil {
		return nil
	}
	out := make([]T, len(items))
	for i := range items {
		out[i] = Value(items[i])
	}
	return out
}

func cloneValue(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(cloneValue(v.Elem()))
		return out
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		elem := cloneValue(v.Elem())
		if !elem.IsValid() {
			return reflect.Zero(v.Type())
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(elem)
		return out
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := 0; i < v.NumField(); i++ {
			field := out.Field(i)
			if !field.CanSet() {
				continue
			}
			field.Set(cloneValue(v.Field(i)))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneValue(v.Index(i)))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneValue(v.Index(i)))
		}
		return out
	default:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		return out
	}
}
