package cell

import (
	"fmt"
	"reflect"

	merr "github.com/vango-dev/microscope/internal/errors"
)

// Patch shallow-merges partial into the current value and writes the
// result. Keys name exported struct fields or map keys; a nil value resets
// the field to its zero value.
//
// Patch is defined for structs, non-nil pointers to structs (the pointee is
// copied, never modified) and maps with string keys. For any other value it
// returns an error matching ErrNotObject and leaves the cell unchanged.
func (c *Cell[T]) Patch(partial map[string]any, label ...string) error {
	return c.PatchFunc(func(T) map[string]any { return partial }, label...)
}

// PatchFunc is like Patch but computes the partial from the current value.
func (c *Cell[T]) PatchFunc(fn func(prev T) map[string]any, label ...string) error {
	var err error
	c.Set(Transform(func(prev T) T {
		if !isObject(reflect.ValueOf(&prev).Elem()) {
			err = merr.New(merr.CodeNotObject).
				WithDetailf("cell %q holds %s", c.name, describe(prev)).
				Wrap(ErrNotObject)
			return prev
		}

		next, mergeErr := merge(prev, fn(prev))
		if mergeErr != nil {
			err = merr.New(merr.CodeUnknownField).
				WithDetailf("cell %q: %v", c.name, mergeErr).
				Wrap(ErrUnknownField)
			return prev
		}
		return next
	}), label...)
	return err
}

func isObject(v reflect.Value) bool {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return false
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Struct:
		return true
	case reflect.Pointer:
		return !v.IsNil() && v.Elem().Kind() == reflect.Struct
	case reflect.Map:
		return v.Type().Key().Kind() == reflect.String
	default:
		return false
	}
}

func describe(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}

// merge returns a shallow copy of prev with partial applied.
func merge[T any](prev T, partial map[string]any) (T, error) {
	src := reflect.ValueOf(&prev).Elem()
	if src.Kind() == reflect.Interface {
		src = src.Elem()
	}

	var out reflect.Value
	switch src.Kind() {
	case reflect.Struct:
		out = reflect.New(src.Type()).Elem()
		out.Set(src)
		if err := setFields(out, partial); err != nil {
			return prev, err
		}
	case reflect.Pointer:
		ptr := reflect.New(src.Type().Elem())
		ptr.Elem().Set(src.Elem())
		if err := setFields(ptr.Elem(), partial); err != nil {
			return prev, err
		}
		out = ptr
	case reflect.Map:
		m, err := mergeMap(src, partial)
		if err != nil {
			return prev, err
		}
		out = m
	}

	var next T
	reflect.ValueOf(&next).Elem().Set(out)
	return next, nil
}

func setFields(dst reflect.Value, partial map[string]any) error {
	for name, val := range partial {
		f := dst.FieldByName(name)
		if !f.IsValid() || !f.CanSet() {
			return fmt.Errorf("no settable field %q in %s", name, dst.Type())
		}
		v, err := assignable(val, f.Type())
		if err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		f.Set(v)
	}
	return nil
}

func mergeMap(src reflect.Value, partial map[string]any) (reflect.Value, error) {
	typ := src.Type()
	out := reflect.MakeMapWithSize(typ, src.Len()+len(partial))

	iter := src.MapRange()
	for iter.Next() {
		out.SetMapIndex(iter.Key(), iter.Value())
	}

	for k, val := range partial {
		v, err := assignable(val, typ.Elem())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("key %q: %w", k, err)
		}
		out.SetMapIndex(reflect.ValueOf(k).Convert(typ.Key()), v)
	}
	return out, nil
}

func assignable(val any, typ reflect.Type) (reflect.Value, error) {
	if val == nil {
		return reflect.Zero(typ), nil
	}
	v := reflect.ValueOf(val)
	if !v.Type().AssignableTo(typ) {
		return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", v.Type(), typ)
	}
	return v, nil
}
