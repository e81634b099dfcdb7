package cell

import (
	"reflect"

	"github.com/mohae/deepcopy"
)

// Updater describes a write. It is either a replacement value or a
// transform of the previous value. The zero Updater replaces the value
// with the zero value of T.
type Updater[T any] struct {
	value T
	fn    func(T) T
}

// Replace returns an updater that replaces the current value with v.
func Replace[T any](v T) Updater[T] {
	return Updater[T]{value: v}
}

// Transform returns an updater that computes the next value from the
// previous one.
func Transform[T any](fn func(prev T) T) Updater[T] {
	return Updater[T]{fn: fn}
}

// IsTransform reports whether u computes its value from the previous one.
func (u Updater[T]) IsTransform() bool {
	return u.fn != nil
}

// Apply returns the value u produces when the current value is prev.
func (u Updater[T]) Apply(prev T) T {
	if u.fn != nil {
		return u.fn(prev)
	}
	return u.value
}

// Mutate returns an updater that clones the previous value and lets fn
// modify the clone in place.
func Mutate[T any](clone func(T) T, fn func(draft *T)) Updater[T] {
	return Transform(func(prev T) T {
		next := clone(prev)
		fn(&next)
		return next
	})
}

// Draft returns an updater that deep-copies the previous value and lets fn
// modify the copy in place. When fn leaves the copy deeply equal to the
// previous value, the previous value is returned unchanged so the write is
// a no-op.
//
// Only exported struct fields survive the copy; use Mutate with a custom
// clone for types with unexported state.
func Draft[T any](fn func(draft *T)) Updater[T] {
	return Transform(func(prev T) T {
		next, ok := deepcopy.Copy(prev).(T)
		if !ok {
			// nil interface values copy to nil
			next = prev
		}
		fn(&next)
		if reflect.DeepEqual(prev, next) {
			return prev
		}
		return next
	})
}
