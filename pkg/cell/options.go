package cell

import "log/slog"

// Option configures a cell at construction.
type Option func(*options)

type options struct {
	name   string
	logger *slog.Logger
}

// Named sets the cell name reported to logs, metrics and devtools.
func Named(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger sets the logger used to report recovered listener panics.
// Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
