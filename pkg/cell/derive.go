package cell

import (
	"sync"
)

// Derived is a cell whose value is a projection of a source. It embeds
// *Cell so it can be subscribed to, derived from and combined like any
// other cell.
//
// Writing to a Derived directly is allowed but escapes the projection: the
// written value stays until the next source change that alters the
// projection.
type Derived[S any] struct {
	*Cell[S]

	once        sync.Once
	unsubscribe func()
}

// Derive creates a cell holding selector(src.Get()) and keeps it in sync
// with src. After each source notification the projection is recomputed;
// when eq reports it unchanged the derived cell is left alone. eq defaults
// to ShallowEqual.
func Derive[T, S any](src Source[T], selector func(T) S, eq ...EqualityFunc[S]) *Derived[S] {
	equal := EqualityFunc[S](ShallowEqual[S])
	if len(eq) > 0 && eq[0] != nil {
		equal = eq[0]
	}

	var mu sync.Mutex
	cached := selector(src.Get())

	d := &Derived[S]{Cell: New(cached, Named(derivedName(src)))}
	d.unsubscribe = src.Subscribe(func(v T) {
		projected := selector(v)

		mu.Lock()
		if equal(cached, projected) {
			mu.Unlock()
			return
		}
		cached = projected
		mu.Unlock()

		d.SetValue(projected)
	})
	return d
}

// Dispose releases the subscription to the source. The derived cell keeps
// its last value. Dispose is idempotent.
func (d *Derived[S]) Dispose() {
	d.once.Do(d.unsubscribe)
}

type named interface {
	Name() string
}

func derivedName(src any) string {
	if n, ok := src.(named); ok {
		return n.Name() + ".derived"
	}
	return ""
}
