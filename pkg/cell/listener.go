package cell

import (
	"sync"
	"sync/atomic"
)

// Listener is a subscriber with a stable identity. Subscribing the same
// listener twice (by ID) registers it once.
type Listener[T any] interface {
	// Notify is called with the committed value after each change.
	Notify(value T)

	// ID returns a unique identifier for this listener.
	ID() uint64
}

// subscription is one registered callback.
type subscription[T any] struct {
	// key is the Listener ID for deduplicated listeners, 0 otherwise.
	key    uint64
	fn     func(T)
	active atomic.Bool
}

// subscribers is an ordered list of subscriptions.
type subscribers[T any] struct {
	mu   sync.RWMutex
	list []*subscription[T]
}

// add appends sub, or returns the existing subscription with the same key.
func (s *subscribers[T]) add(sub *subscription[T]) *subscription[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub.key != 0 {
		for _, existing := range s.list {
			if existing.key == sub.key {
				return existing
			}
		}
	}

	sub.active.Store(true)
	s.list = append(s.list, sub)
	return sub
}

// remove deactivates sub and removes it, keeping the order of the rest.
func (s *subscribers[T]) remove(sub *subscription[T]) {
	if !sub.active.CompareAndSwap(true, false) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.list {
		if existing == sub {
			s.list = append(s.list[:i:i], s.list[i+1:]...)
			return
		}
	}
}

// snapshot copies the current list so notification never holds the lock.
func (s *subscribers[T]) snapshot() []*subscription[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*subscription[T], len(s.list))
	copy(out, s.list)
	return out
}

func (s *subscribers[T]) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.list)
}
