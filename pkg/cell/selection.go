package cell

import "sync"

// Selection caches a projection of a source for UI bindings. Get returns
// the same cached selection until the source value changes and the new
// selection is not equal to the cached one, so consumers comparing
// snapshots do not re-render needlessly.
type Selection[T, S any] struct {
	src      Source[T]
	selector func(T) S
	equal    EqualityFunc[S]

	mu        sync.Mutex
	lastState T
	lastSel   S
}

// Select builds a selection over src. eq defaults to ShallowEqual.
func Select[T, S any](src Source[T], selector func(T) S, eq ...EqualityFunc[S]) *Selection[T, S] {
	equal := EqualityFunc[S](ShallowEqual[S])
	if len(eq) > 0 && eq[0] != nil {
		equal = eq[0]
	}

	state := src.Get()
	return &Selection[T, S]{
		src:       src,
		selector:  selector,
		equal:     equal,
		lastState: state,
		lastSel:   selector(state),
	}
}

// Get returns the current snapshot.
func (s *Selection[T, S]) Get() S {
	return s.snapshot(s.src.Get())
}

// snapshot returns the cached selection for state, replacing it when the
// selection of state is not equal to it.
func (s *Selection[T, S]) snapshot(state T) S {
	s.mu.Lock()
	defer s.mu.Unlock()

	if Identical(state, s.lastState) {
		return s.lastSel
	}
	s.lastState = state

	next := s.selector(state)
	if !s.equal(s.lastSel, next) {
		s.lastSel = next
	}
	return s.lastSel
}

// Subscribe calls fn with the new snapshot whenever the source changes in
// a way the selection observes. Each subscription compares against the
// selection it last delivered, so subscribers and Get callers never hide
// a change from one another.
func (s *Selection[T, S]) Subscribe(fn func(S)) (unsubscribe func()) {
	var mu sync.Mutex
	lastState := s.src.Get()
	lastSel := s.selector(lastState)

	return s.src.Subscribe(func(state T) {
		mu.Lock()
		if Identical(state, lastState) {
			mu.Unlock()
			return
		}
		lastState = state
		next := s.selector(state)
		if s.equal(lastSel, next) {
			mu.Unlock()
			return
		}
		lastSel = next
		mu.Unlock()

		fn(s.snapshot(state))
	})
}
