package cell

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/vango-dev/microscope/internal/logging"
)

// Middleware rewrites a pending write. It receives the committed value
// prev, the value produced so far next, the cell being written and the
// write's label (empty when none was given), and returns the value to pass
// on. Returning prev vetoes the write.
type Middleware[T any] func(prev, next T, c *Cell[T], label string) T

// Source is anything a derivation can read and subscribe to.
type Source[T any] interface {
	Get() T
	Subscribe(fn func(T)) (unsubscribe func())
}

// Cell is a reactive value container.
type Cell[T any] struct {
	id     uint64
	name   string
	logger *slog.Logger

	// value is the committed value, guarded by mu.
	value T
	mu    sync.RWMutex

	// writeMu serializes writers across compute, fold and commit.
	writeMu sync.Mutex

	// middlewares run in registration order, guarded by writeMu.
	middlewares []Middleware[T]

	identical func(a, b T) bool

	subs subscribers[T]
}

// New creates a cell holding initial.
func New[T any](initial T, opts ...Option) *Cell[T] {
	o := applyOptions(opts)
	c := &Cell[T]{
		id:        nextID(),
		name:      o.name,
		logger:    o.logger,
		value:     initial,
		identical: Identical[T],
	}
	if c.name == "" {
		c.name = fmt.Sprintf("cell-%d", c.id)
	}
	return c
}

// NewLazy creates a cell whose initial value is produced by init, which is
// called exactly once before NewLazy returns.
func NewLazy[T any](init func() T, opts ...Option) *Cell[T] {
	return New(init(), opts...)
}

// Use appends middlewares to the pipeline and returns the cell.
func (c *Cell[T]) Use(mws ...Middleware[T]) *Cell[T] {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	for _, mw := range mws {
		if mw != nil {
			c.middlewares = append(c.middlewares, mw)
		}
	}
	return c
}

// WithIdentity replaces the identity check used for the write
// short-circuit and the veto check. It returns the cell.
func (c *Cell[T]) WithIdentity(fn func(a, b T) bool) *Cell[T] {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if fn != nil {
		c.identical = fn
	}
	return c
}

// ID returns the unique identifier for this cell.
func (c *Cell[T]) ID() uint64 {
	return c.id
}

// Name returns the cell name.
func (c *Cell[T]) Name() string {
	return c.name
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set applies u. The optional label names the write for middlewares
// (actions pass their name, persistence passes "hydrate" or "sync").
//
// If the next value is identical to the current one nothing happens.
// Otherwise the middlewares run in order; if the folded value is still
// identical to the current one the write is dropped, else it is committed
// and every listener is notified before Set returns.
func (c *Cell[T]) Set(u Updater[T], label ...string) {
	if c.commit(u, firstLabel(label)) {
		c.notify()
	}
}

// SetValue replaces the value. It is shorthand for Set(Replace(v)).
func (c *Cell[T]) SetValue(v T, label ...string) {
	c.Set(Replace(v), label...)
}

// Update computes the next value from the previous one. It is shorthand
// for Set(Transform(fn)).
func (c *Cell[T]) Update(fn func(prev T) T, label ...string) {
	c.Set(Transform(fn), label...)
}

// commit runs the write under writeMu and reports whether it changed the
// value.
func (c *Cell[T]) commit(u Updater[T], label string) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	prev := c.Get()
	next := u.Apply(prev)
	if c.identical(prev, next) {
		return false
	}

	for _, mw := range c.middlewares {
		next = mw(prev, next, c, label)
	}
	if c.identical(prev, next) {
		return false
	}

	c.mu.Lock()
	c.value = next
	c.mu.Unlock()
	return true
}

// notify calls every active listener with the latest committed value.
func (c *Cell[T]) notify() {
	for _, sub := range c.subs.snapshot() {
		// unsubscribed by an earlier listener in this round
		if !sub.active.Load() {
			continue
		}
		c.call(sub, c.Get())
	}
}

func (c *Cell[T]) call(sub *subscription[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			logging.OrDefault(c.logger).Error("microscope: listener panicked",
				"cell", c.name,
				"panic", r,
			)
		}
	}()
	sub.fn(v)
}

// Subscribe registers fn and returns a function that removes it. Calling
// the returned function more than once is a no-op.
func (c *Cell[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	sub := c.subs.add(&subscription[T]{fn: fn})
	return func() { c.subs.remove(sub) }
}

// SubscribeListener registers l, deduplicated by l.ID(). The returned
// function removes the registration.
func (c *Cell[T]) SubscribeListener(l Listener[T]) (unsubscribe func()) {
	sub := c.subs.add(&subscription[T]{key: l.ID(), fn: l.Notify})
	return func() { c.subs.remove(sub) }
}

// Listeners returns the number of registered listeners.
func (c *Cell[T]) Listeners() int {
	return c.subs.len()
}

func firstLabel(label []string) string {
	if len(label) == 0 {
		return ""
	}
	return label[0]
}
