package persist

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	merr "github.com/vango-dev/microscope/internal/errors"
	"github.com/vango-dev/microscope/internal/logging"
	"github.com/vango-dev/microscope/pkg/cell"
	"github.com/vango-dev/microscope/pkg/storage"
)

// Write labels used by the persistence layer.
const (
	LabelHydrate = "hydrate"
	LabelSync    = "sync"
)

// Cell is a cell whose value is kept in a storage backend.
type Cell[T any] struct {
	*cell.Cell[T]

	key    string
	kind   StorageKind
	engine storage.Engine
	env    *Environment
	codec  Codec[T]
	logger *slog.Logger

	// origin tags this cell's writes so its own change events are ignored.
	origin string

	// lastText is the text last written to or received from the backend
	// for key, guarded by mu.
	mu       sync.Mutex
	lastText string
	hasLast  bool

	// inbox holds change events by other origins until a drain goroutine
	// commits them. draining is set while that goroutine runs. Both are
	// guarded by inboxMu.
	inboxMu  sync.Mutex
	inbox    []storage.Event
	draining bool

	// feedMu guards the current feed subscription and the environment
	// watch that replaces it when the backend changes.
	feedMu      sync.Mutex
	cancelFeed  func()
	cancelWatch func()
	closed      bool
}

// New creates a cell persisted under key. Unless SkipHydration is given,
// the stored value (if any) replaces initial before New returns.
//
// A cell that listens for changes by other origins (WithFeed, or a Local
// backend providing a storage.Feed) is referenced by that feed, and a
// Local cell resolved through an Environment is referenced by the
// environment, until Close is called. No goroutine is kept while no
// change is pending.
func New[T any](key string, initial T, opts ...Option) *Cell[T] {
	cfg := &config{kind: Local}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.env == nil && cfg.engine == nil {
		cfg.env = DefaultEnvironment()
	}

	c := &Cell[T]{
		key:    key,
		kind:   cfg.kind,
		engine: cfg.engine,
		env:    cfg.env,
		codec:  codecFor[T](cfg),
		logger: logging.OrDefault(cfg.logger),
		origin: uuid.NewString(),
	}

	if !cfg.skip {
		if v, ok := c.read(); ok {
			initial = v
		}
	}

	c.Cell = cell.New(initial, cell.Named(key), cell.WithLogger(c.logger))
	c.Cell.Use(middlewaresFor[T](cfg)...)
	c.Cell.Use(c.persist)

	switch {
	case cfg.feed != nil:
		c.listen(cfg.feed)
	case c.kind != Local:
	case c.engine != nil:
		c.listenEngine(c.engine)
	default:
		// held across both steps so a concurrent SetEngine is applied after
		// the initial subscription
		c.feedMu.Lock()
		c.cancelWatch = c.env.watch(Local, c.listenEngine)
		f, _ := c.rawBackend().(storage.Feed)
		c.listenLocked(f)
		c.feedMu.Unlock()
	}
	return c
}

// Key returns the storage key.
func (c *Cell[T]) Key() string {
	return c.key
}

// Origin returns the identifier attached to this cell's writes.
func (c *Cell[T]) Origin() string {
	return c.origin
}

// Hydrate reads the stored value and, when one exists and decodes, commits
// it with the label "hydrate" through the full middleware chain. It
// reports whether a stored value was applied.
func (c *Cell[T]) Hydrate() bool {
	v, ok := c.read()
	if !ok {
		return false
	}
	c.Set(cell.Replace(v), LabelHydrate)
	return true
}

// Remove deletes the stored value. The in-memory value is kept.
func (c *Cell[T]) Remove() {
	e := c.backend()
	if e == nil {
		return
	}
	if err := e.RemoveItem(c.key); err != nil {
		c.warn(merr.New(merr.CodeStorageRemove).Wrap(err))
		return
	}
	c.forget()
}

// Close stops listening for changes by other origins and releases the
// feed and environment references. Close is idempotent.
func (c *Cell[T]) Close() {
	c.feedMu.Lock()
	defer c.feedMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	if c.cancelWatch != nil {
		c.cancelWatch()
		c.cancelWatch = nil
	}
	if c.cancelFeed != nil {
		c.cancelFeed()
		c.cancelFeed = nil
	}
}

// listenEngine follows e's change feed, or stops listening when e has
// none. It runs again whenever the environment swaps the backend.
func (c *Cell[T]) listenEngine(e storage.Engine) {
	f, _ := e.(storage.Feed)
	c.listen(f)
}

// listen replaces the current feed subscription with one on f.
func (c *Cell[T]) listen(f storage.Feed) {
	c.feedMu.Lock()
	defer c.feedMu.Unlock()
	c.listenLocked(f)
}

func (c *Cell[T]) listenLocked(f storage.Feed) {
	if c.closed {
		return
	}
	if c.cancelFeed != nil {
		c.cancelFeed()
		c.cancelFeed = nil
	}
	if f != nil {
		c.cancelFeed = f.Subscribe(c.onStorageEvent)
	}
}

// listening reports whether a feed subscription is active.
func (c *Cell[T]) listening() bool {
	c.feedMu.Lock()
	defer c.feedMu.Unlock()
	return c.cancelFeed != nil
}

// rawBackend resolves the engine without attaching the origin.
func (c *Cell[T]) rawBackend() storage.Engine {
	if c.engine != nil {
		return c.engine
	}
	if c.env == nil {
		return nil
	}
	return c.env.Engine(c.kind)
}

func (c *Cell[T]) backend() storage.Engine {
	e := c.rawBackend()
	if t, ok := e.(storage.Tagged); ok {
		return t.WithOrigin(c.origin)
	}
	return e
}

// read loads and decodes the stored value. Failures are logged.
func (c *Cell[T]) read() (T, bool) {
	var zero T

	e := c.backend()
	if e == nil {
		return zero, false
	}

	text, ok, err := e.GetItem(c.key)
	if err != nil {
		c.warn(merr.New(merr.CodeStorageRead).Wrap(err))
		return zero, false
	}
	if !ok {
		return zero, false
	}

	v, err := c.codec.Decode(text)
	if err != nil {
		c.warn(merr.New(merr.CodeDecode).Wrap(err))
		return zero, false
	}

	c.remember(text)
	return v, true
}

// persist is the persistence middleware. It never alters the value.
func (c *Cell[T]) persist(prev, next T, _ *cell.Cell[T], label string) T {
	text, err := c.codec.Encode(next)
	if err != nil {
		c.warn(merr.New(merr.CodeEncode).WithDetailf("label %q", label).Wrap(err))
		return next
	}

	if c.seen(text) {
		return next
	}

	e := c.backend()
	if e == nil {
		return next
	}
	if err := e.SetItem(c.key, text); err != nil {
		c.warn(merr.New(merr.CodeStorageWrite).WithDetailf("label %q", label).Wrap(err))
		return next
	}
	c.remember(text)
	return next
}

// onStorageEvent queues events for this key written by other origins.
// Publishers may hold another cell's write lock, so events are committed
// from a drain goroutine, in arrival order. The goroutine exits once the
// queue is empty.
func (c *Cell[T]) onStorageEvent(ev storage.Event) {
	if ev.Key != c.key || ev.Origin == c.origin {
		return
	}

	c.inboxMu.Lock()
	defer c.inboxMu.Unlock()

	c.inbox = append(c.inbox, ev)
	if !c.draining {
		c.draining = true
		go c.drain()
	}
}

func (c *Cell[T]) drain() {
	for {
		c.inboxMu.Lock()
		if len(c.inbox) == 0 {
			c.inbox = nil
			c.draining = false
			c.inboxMu.Unlock()
			return
		}
		ev := c.inbox[0]
		c.inbox = c.inbox[1:]
		c.inboxMu.Unlock()

		c.apply(ev)
	}
}

func (c *Cell[T]) apply(ev storage.Event) {
	if ev.NewValue == nil {
		c.forget()
		return
	}

	v, err := c.codec.Decode(*ev.NewValue)
	if err != nil {
		c.warn(merr.New(merr.CodeDecode).WithDetailf("origin %q", ev.Origin).Wrap(err))
		return
	}

	// recorded first so the persistence middleware does not write it back
	c.remember(*ev.NewValue)
	c.Set(cell.Replace(v), LabelSync)
}

func (c *Cell[T]) remember(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastText = text
	c.hasLast = true
}

func (c *Cell[T]) forget() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastText = ""
	c.hasLast = false
}

func (c *Cell[T]) seen(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasLast && c.lastText == text
}

func (c *Cell[T]) warn(err *merr.Error) {
	c.logger.Warn("microscope: persistence degraded",
		"key", c.key,
		"code", err.Code,
		"error", err,
	)
}
