package action

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Option configures a Bound.
type Option func(*options)

type options struct {
	tracer trace.Tracer
	logger *slog.Logger
}

// WithTracer wraps each dispatch in a span named "action.<name>".
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithLogger logs each dispatch at debug level and recovered panics of
// asynchronous bodies at error level. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
