package storage

import "sync"

// Shared wraps an engine so that writes publish change events on a hub.
// Like browser storage events, an event is published only when the stored
// text actually changes.
//
// Every view returned by WithOrigin shares the engine, hub and write lock;
// only the origin attached to published events differs.
type Shared struct {
	engine Engine
	hub    *Hub
	origin string
	mu     *sync.Mutex
}

// NewShared wraps engine. A nil hub creates a fresh one.
func NewShared(engine Engine, hub *Hub, origin string) *Shared {
	if hub == nil {
		hub = NewHub()
	}
	return &Shared{
		engine: engine,
		hub:    hub,
		origin: origin,
		mu:     &sync.Mutex{},
	}
}

// WithOrigin implements Tagged.
func (s *Shared) WithOrigin(origin string) Engine {
	return &Shared{
		engine: s.engine,
		hub:    s.hub,
		origin: origin,
		mu:     s.mu,
	}
}

// Engine returns the wrapped engine.
func (s *Shared) Engine() Engine {
	return s.engine
}

// Hub returns the hub events are published on.
func (s *Shared) Hub() *Hub {
	return s.hub
}

// Origin returns the origin attached to writes through this view.
func (s *Shared) Origin() string {
	return s.origin
}

// GetItem implements Engine.
func (s *Shared) GetItem(key string) (string, bool, error) {
	return s.engine.GetItem(key)
}

// SetItem implements Engine.
func (s *Shared) SetItem(key, value string) error {
	s.mu.Lock()
	old, ok, err := s.engine.GetItem(key)
	if err == nil && ok && old == value {
		s.mu.Unlock()
		return nil
	}
	if err := s.engine.SetItem(key, value); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.hub.Publish(Event{Key: key, NewValue: &value, Origin: s.origin})
	return nil
}

// RemoveItem implements Engine.
func (s *Shared) RemoveItem(key string) error {
	s.mu.Lock()
	_, ok, err := s.engine.GetItem(key)
	if err == nil && !ok {
		s.mu.Unlock()
		return nil
	}
	if err := s.engine.RemoveItem(key); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.hub.Publish(Event{Key: key, Origin: s.origin})
	return nil
}

// Keys implements Lister when the wrapped engine does.
func (s *Shared) Keys() ([]string, error) {
	return Keys(s.engine)
}

// Subscribe implements Feed.
func (s *Shared) Subscribe(fn func(Event)) (cancel func()) {
	return s.hub.Subscribe(fn)
}
