package middleware

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/microscope/pkg/cell"
)

// Default tracer name for microscope cells.
const defaultTracerName = "microscope"

// maxValueAttr bounds the length of the recorded value attribute.
const maxValueAttr = 256

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "microscope").
	TracerName string

	// IncludeValue records the written value, formatted with %v and
	// truncated. May contain sensitive information - disabled by default.
	IncludeValue bool

	// Filter determines which writes to trace by label.
	// If nil, all writes are traced.
	Filter func(label string) bool

	// tracer overrides the global provider when set.
	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracer uses t instead of the global tracer provider.
func WithTracer(t trace.Tracer) OTelOption {
	return func(c *OTelConfig) {
		c.tracer = t
	}
}

// WithIncludeValue enables recording the written value.
func WithIncludeValue(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeValue = include
	}
}

// WithLabelFilter sets a filter on write labels.
func WithLabelFilter(filter func(label string) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// Trace creates a middleware that emits a span for every write reaching
// it. Spans are named "microscope.write" and carry the cell name, label
// and whether an earlier middleware vetoed the write.
//
// The tracer uses the global OpenTelemetry tracer provider unless
// WithTracer is given.
func Trace[T any](cellName string, opts ...OTelOption) cell.Middleware[T] {
	config := OTelConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	if config.tracer == nil {
		config.tracer = otel.Tracer(config.TracerName)
	}

	return func(prev, next T, c *cell.Cell[T], label string) T {
		if config.Filter != nil && !config.Filter(label) {
			return next
		}

		attrs := []attribute.KeyValue{
			attribute.String("microscope.cell", cellName),
			attribute.String("microscope.label", label),
			attribute.Bool("microscope.vetoed", cell.Identical(prev, next)),
		}
		if c != nil {
			attrs = append(attrs, attribute.Int("microscope.listeners", c.Listeners()))
		}
		if config.IncludeValue {
			attrs = append(attrs, attribute.String("microscope.value", truncate(fmt.Sprintf("%v", next), maxValueAttr)))
		}

		_, span := config.tracer.Start(context.Background(), "microscope.write",
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attrs...),
		)
		span.End()
		return next
	}
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
