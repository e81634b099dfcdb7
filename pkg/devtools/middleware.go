package devtools

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/vango-dev/microscope/pkg/cell"
)

// Option configures Middleware.
type Option func(*options)

type options struct {
	hub *Hub
}

// WithHub uses h instead of Default().
func WithHub(h *Hub) Option {
	return func(o *options) {
		o.hub = h
	}
}

// store connects one cell to a hub.
type store[T any] struct {
	name string
	hub  *Hub
	cell *cell.Cell[T]

	mu    sync.Mutex
	label string

	// timeTravel is set while a state from the inspector is being applied.
	timeTravel atomic.Bool
}

// Middleware reports the writes of a cell to the inspector under name and
// applies states the inspector pushes back.
func Middleware[T any](name string, opts ...Option) cell.Middleware[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.hub == nil {
		o.hub = Default()
	}

	s := &store[T]{name: name, hub: o.hub}
	var once sync.Once

	return func(prev, next T, c *cell.Cell[T], label string) T {
		if !s.hub.Enabled() {
			return next
		}

		once.Do(func() {
			s.cell = c
			c.Subscribe(s.committed)
			s.hub.register(s.name, s)
		})

		s.mu.Lock()
		s.label = label
		s.mu.Unlock()
		return next
	}
}

// committed sends the committed state with the label of the write.
func (s *store[T]) committed(v T) {
	s.mu.Lock()
	label := s.label
	s.mu.Unlock()

	if s.timeTravel.Load() && label == LabelTimeTravel {
		return
	}

	state, err := json.Marshal(v)
	if err != nil {
		s.hub.logger.Debug("devtools: cannot encode state", "store", s.name, "error", err)
		return
	}
	s.hub.send(Message{Type: TypeAction, Store: s.name, Label: label, State: state})
}

func (s *store[T]) snapshot() (json.RawMessage, error) {
	return json.Marshal(s.cell.Get())
}

func (s *store[T]) jump(state json.RawMessage) error {
	var v T
	if err := json.Unmarshal(state, &v); err != nil {
		return err
	}

	s.timeTravel.Store(true)
	defer s.timeTravel.Store(false)
	s.cell.Set(cell.Replace(v), LabelTimeTravel)
	return nil
}
