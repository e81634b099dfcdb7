package cell

import "reflect"

// EqualityFunc reports whether two values should be treated as equal.
type EqualityFunc[T any] func(a, b T) bool

// Identical reports whether a and b are the same value.
//
// Scalars and strings compare by value (NaN is identical to NaN). Maps,
// slices, pointers, channels and funcs compare by reference; a slice is
// identical to another only when both share the backing array, length and
// capacity. Structs and arrays are identical when all their fields or
// elements are.
func Identical[T any](a, b T) bool {
	return identical(reflect.ValueOf(&a).Elem(), reflect.ValueOf(&b).Elem())
}

func identical(a, b reflect.Value) bool {
	switch a.Kind() {
	case reflect.Invalid:
		return !b.IsValid()
	case reflect.Float32, reflect.Float64:
		x, y := a.Float(), b.Float()
		return x == y || (x != x && y != y)
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return a.Pointer() == b.Pointer()
	case reflect.Slice:
		return a.Pointer() == b.Pointer() && a.Len() == b.Len() && a.Cap() == b.Cap()
	case reflect.Interface:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() && b.IsNil()
		}
		ea, eb := a.Elem(), b.Elem()
		if ea.Type() != eb.Type() {
			return false
		}
		return identical(ea, eb)
	case reflect.Struct:
		for i := 0; i < a.NumField(); i++ {
			if !identical(a.Field(i), b.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Array:
		for i := 0; i < a.Len(); i++ {
			if !identical(a.Index(i), b.Index(i)) {
				return false
			}
		}
		return true
	default:
		return a.Equal(b)
	}
}

// ShallowEqual compares a and b one level deep: struct fields, map
// entries, and slice or array elements are compared with Identical.
// Pointers to structs are dereferenced once. Other values fall back to
// Identical.
func ShallowEqual[T any](a, b T) bool {
	return shallowEqual(reflect.ValueOf(&a).Elem(), reflect.ValueOf(&b).Elem())
}

func shallowEqual(a, b reflect.Value) bool {
	if identical(a, b) {
		return true
	}

	switch a.Kind() {
	case reflect.Interface:
		if a.IsNil() || b.IsNil() || a.Elem().Type() != b.Elem().Type() {
			return false
		}
		return shallowEqual(a.Elem(), b.Elem())
	case reflect.Pointer:
		if a.IsNil() || b.IsNil() || a.Elem().Kind() != reflect.Struct {
			return false
		}
		return identical(a.Elem(), b.Elem())
	case reflect.Map:
		if a.Len() != b.Len() {
			return false
		}
		iter := a.MapRange()
		for iter.Next() {
			bv := b.MapIndex(iter.Key())
			if !bv.IsValid() || !identical(iter.Value(), bv) {
				return false
			}
		}
		return true
	case reflect.Slice, reflect.Array:
		if a.Len() != b.Len() {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			if !identical(a.Index(i), b.Index(i)) {
				return false
			}
		}
		return true
	default:
		// structs are already compared field by field by identical
		return false
	}
}

// Never is an equality function that treats every pair as different.
func Never[T any](a, b T) bool { return false }

// Always is an equality function that treats every pair as equal.
func Always[T any](a, b T) bool { return true }
