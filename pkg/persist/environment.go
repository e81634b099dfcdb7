package persist

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/vango-dev/microscope/internal/logging"
	"github.com/vango-dev/microscope/pkg/storage"
)

// StorageKind names a backend in an Environment.
type StorageKind int

const (
	// Local is durable storage shared by every origin.
	Local StorageKind = iota
	// Session is storage private to the current process.
	Session
)

func (k StorageKind) String() string {
	switch k {
	case Local:
		return "local"
	case Session:
		return "session"
	default:
		return "unknown"
	}
}

// Environment holds the named backends. A nil engine for a kind means the
// backend is unavailable.
type Environment struct {
	mu       sync.RWMutex
	engines  map[StorageKind]storage.Engine
	watchers map[uint64]watcher
	nextID   uint64
}

type watcher struct {
	kind StorageKind
	fn   func(storage.Engine)
}

// NewEnvironment creates an environment. Either engine may be nil.
func NewEnvironment(local, session storage.Engine) *Environment {
	e := &Environment{
		engines:  make(map[StorageKind]storage.Engine),
		watchers: make(map[uint64]watcher),
	}
	e.SetEngine(Local, local)
	e.SetEngine(Session, session)
	return e
}

// Engine returns the backend for kind, or nil when it is unavailable.
func (e *Environment) Engine(kind StorageKind) storage.Engine {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.engines[kind]
}

// SetEngine installs or (with nil) removes the backend for kind. Cells
// resolve their backend on every access, so the change applies to
// existing cells too; Local cells also move their change-feed
// subscription to the new engine.
func (e *Environment) SetEngine(kind StorageKind, engine storage.Engine) {
	e.mu.Lock()
	if engine == nil {
		delete(e.engines, kind)
	} else {
		e.engines[kind] = engine
	}
	var notify []func(storage.Engine)
	for _, w := range e.watchers {
		if w.kind == kind {
			notify = append(notify, w.fn)
		}
	}
	e.mu.Unlock()

	for _, fn := range notify {
		fn(engine)
	}
}

// watch calls fn with the new engine each time SetEngine changes kind.
func (e *Environment) watch(kind StorageKind, fn func(storage.Engine)) (cancel func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.watchers[id] = watcher{kind: kind, fn: fn}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.watchers, id)
			e.mu.Unlock()
		})
	}
}

// watching returns the number of registered watches.
func (e *Environment) watching() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.watchers)
}

var (
	defaultEnv     *Environment
	defaultEnvOnce sync.Once
)

// Environment variables read by DefaultEnvironment.
const (
	// EnvStore is the path of the SQLite file backing Local.
	EnvStore = "MICROSCOPE_STORE"
	// EnvRelay is the websocket URL of a relay server that carries Local
	// change events between processes.
	EnvRelay = "MICROSCOPE_RELAY"
)

// DefaultEnvironment returns the process-wide environment, creating it on
// first use.
//
// Session is an in-process memory engine. Local is a SQLite file at
// $MICROSCOPE_STORE and is unavailable when the variable is unset or the
// file cannot be opened. When $MICROSCOPE_RELAY is also set, Local change
// events are exchanged with the relay.
func DefaultEnvironment() *Environment {
	defaultEnvOnce.Do(func() {
		defaultEnv = newDefaultEnvironment(slog.Default())
	})
	return defaultEnv
}

func newDefaultEnvironment(logger *slog.Logger) *Environment {
	logger = logging.OrDefault(logger)
	env := NewEnvironment(nil, storage.NewShared(storage.NewMemory(), nil, ""))

	path := os.Getenv(EnvStore)
	if path == "" {
		return env
	}

	db, err := storage.OpenSQLite(path)
	if err != nil {
		logger.Warn("microscope: local storage unavailable", "path", path, "error", err)
		return env
	}
	local := storage.NewShared(db, nil, "")
	env.SetEngine(Local, local)

	if url := os.Getenv(EnvRelay); url != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// the SQLite file is shared, so relayed events only need publishing
		if _, err := storage.DialRelay(ctx, url, local.Hub(), nil, storage.WithRelayLogger(logger)); err != nil {
			logger.Warn("microscope: relay unavailable", "url", url, "error", err)
		}
	}
	return env
}
