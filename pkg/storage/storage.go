package storage

import "errors"

// Engine is a string key/value store.
type Engine interface {
	// GetItem returns the text stored under key. The boolean is false when
	// the key is absent.
	GetItem(key string) (string, bool, error)

	// SetItem stores value under key.
	SetItem(key, value string) error

	// RemoveItem deletes key. Removing an absent key is not an error.
	RemoveItem(key string) error
}

// Lister is implemented by engines that can enumerate their keys.
type Lister interface {
	Keys() ([]string, error)
}

// Tagged is implemented by engines that attribute writes to an origin.
// WithOrigin returns a view of the same storage whose writes carry origin.
type Tagged interface {
	WithOrigin(origin string) Engine
}

// Event describes a change of one key.
type Event struct {
	Key string `json:"key"`

	// NewValue is nil when the key was removed.
	NewValue *string `json:"value"`

	// Origin identifies the writer.
	Origin string `json:"origin"`
}

// Feed delivers change events.
type Feed interface {
	Subscribe(fn func(Event)) (cancel func())
}

// ErrClosed is returned by engines used after Close.
var ErrClosed = errors.New("storage: engine closed")

// ErrEmptyKey is returned when an engine is asked to store an empty key.
var ErrEmptyKey = errors.New("storage: empty key")

// Keys lists the keys of e, or returns nil when e cannot enumerate them.
func Keys(e Engine) ([]string, error) {
	if l, ok := e.(Lister); ok {
		return l.Keys()
	}
	return nil, nil
}
