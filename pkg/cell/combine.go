package cell

import (
	"sync"
)

// Combined is a read-only cell computed from several sources. Every change
// of any source recomputes the value once; simultaneous writes to several
// sources are not coalesced.
type Combined[R any] struct {
	cell   *Cell[R]
	once   sync.Once
	unsubs []func()
}

// Combine2 combines two sources.
func Combine2[A, B, R any](a Source[A], b Source[B], fn func(A, B) R) *Combined[R] {
	compute := func() R { return fn(a.Get(), b.Get()) }
	return newCombined(compute, subscriber(a), subscriber(b))
}

// Combine3 combines three sources.
func Combine3[A, B, C, R any](a Source[A], b Source[B], c Source[C], fn func(A, B, C) R) *Combined[R] {
	compute := func() R { return fn(a.Get(), b.Get(), c.Get()) }
	return newCombined(compute, subscriber(a), subscriber(b), subscriber(c))
}

// CombineN combines any number of sources of the same type. fn receives
// the source values in the order of sources.
func CombineN[T, R any](sources []Source[T], fn func(values []T) R) *Combined[R] {
	compute := func() R {
		values := make([]T, len(sources))
		for i, s := range sources {
			values[i] = s.Get()
		}
		return fn(values)
	}

	subs := make([]func(func()) func(), len(sources))
	for i, s := range sources {
		subs[i] = subscriber(s)
	}
	return newCombined(compute, subs...)
}

// subscriber erases the source type so every source can share one
// recompute callback.
func subscriber[T any](s Source[T]) func(func()) func() {
	return func(recompute func()) func() {
		return s.Subscribe(func(T) { recompute() })
	}
}

func newCombined[R any](compute func() R, subs ...func(func()) func()) *Combined[R] {
	c := &Combined[R]{cell: New(compute())}
	recompute := func() { c.cell.SetValue(compute()) }

	c.unsubs = make([]func(), 0, len(subs))
	for _, sub := range subs {
		c.unsubs = append(c.unsubs, sub(recompute))
	}
	return c
}

// Get returns the combined value.
func (c *Combined[R]) Get() R {
	return c.cell.Get()
}

// Subscribe registers fn for changes of the combined value.
func (c *Combined[R]) Subscribe(fn func(R)) (unsubscribe func()) {
	return c.cell.Subscribe(fn)
}

// Name returns the name of the underlying cell.
func (c *Combined[R]) Name() string {
	return c.cell.Name()
}

// Dispose releases every source subscription. Dispose is idempotent.
func (c *Combined[R]) Dispose() {
	c.once.Do(func() {
		for _, unsub := range c.unsubs {
			unsub()
		}
	})
}
