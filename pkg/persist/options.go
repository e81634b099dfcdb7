package persist

import (
	"fmt"
	"log/slog"

	"github.com/vango-dev/microscope/pkg/cell"
	"github.com/vango-dev/microscope/pkg/storage"
)

// Option configures a persisted cell.
type Option func(*config)

type config struct {
	kind        StorageKind
	engine      storage.Engine
	env         *Environment
	codec       any
	middlewares any
	skip        bool
	feed        storage.Feed
	logger      *slog.Logger
}

// WithStorage selects the named backend. Defaults to Local.
func WithStorage(kind StorageKind) Option {
	return func(c *config) {
		c.kind = kind
	}
}

// WithEngine injects a storage engine, bypassing the environment.
func WithEngine(e storage.Engine) Option {
	return func(c *config) {
		c.engine = e
	}
}

// WithEnvironment resolves named backends in env instead of
// DefaultEnvironment().
func WithEnvironment(env *Environment) Option {
	return func(c *config) {
		c.env = env
	}
}

// WithCodec sets the codec. Defaults to JSON.
func WithCodec[T any](codec Codec[T]) Option {
	return func(c *config) {
		c.codec = codec
	}
}

// WithSerializer sets the codec from a serializer and a deserializer.
func WithSerializer[T any](encode func(T) (string, error), decode func(string) (T, error)) Option {
	return WithCodec(FuncCodec(encode, decode))
}

// WithMiddlewares adds middlewares that run before the persistence
// middleware.
func WithMiddlewares[T any](mws ...cell.Middleware[T]) Option {
	return func(c *config) {
		c.middlewares = mws
	}
}

// SkipHydration defers the construction-time read until Hydrate is
// called.
func SkipHydration() Option {
	return func(c *config) {
		c.skip = true
	}
}

// WithFeed subscribes the cell to feed for changes made by other origins,
// whatever its backend.
func WithFeed(feed storage.Feed) Option {
	return func(c *config) {
		c.feed = feed
	}
}

// WithLogger sets the logger for storage and codec warnings. Defaults to
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

func codecFor[T any](cfg *config) Codec[T] {
	if cfg.codec == nil {
		return JSON[T]()
	}
	codec, ok := cfg.codec.(Codec[T])
	if !ok {
		panic(fmt.Sprintf("persist: codec %T does not encode %T", cfg.codec, *new(T)))
	}
	return codec
}

func middlewaresFor[T any](cfg *config) []cell.Middleware[T] {
	if cfg.middlewares == nil {
		return nil
	}
	mws, ok := cfg.middlewares.([]cell.Middleware[T])
	if !ok {
		panic(fmt.Sprintf("persist: middlewares %T do not apply to %T", cfg.middlewares, *new(T)))
	}
	return mws
}
