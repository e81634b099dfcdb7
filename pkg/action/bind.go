package action

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	merr "github.com/vango-dev/microscope/internal/errors"
	"github.com/vango-dev/microscope/internal/logging"
	"github.com/vango-dev/microscope/pkg/cell"
)

// Target is anything actions can write to. *cell.Cell and *persist.Cell
// satisfy it.
type Target[T any] interface {
	Set(u cell.Updater[T], label ...string)
}

// Bound is a set of actions bound to a target.
type Bound[T any] struct {
	target  Target[T]
	actions Map[T]
	tracer  trace.Tracer
	logger  *slog.Logger
}

// Bind binds actions to target. The map is copied.
func Bind[T any](target Target[T], actions Map[T], opts ...Option) *Bound[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	copied := make(Map[T], len(actions))
	for name, a := range actions {
		copied[name] = a
	}

	return &Bound[T]{
		target:  target,
		actions: copied,
		tracer:  o.tracer,
		logger:  logging.OrDefault(o.logger),
	}
}

// Names returns the bound action names, sorted.
func (b *Bound[T]) Names() []string {
	names := make([]string, 0, len(b.actions))
	for name := range b.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is bound.
func (b *Bound[T]) Has(name string) bool {
	_, ok := b.actions[name]
	return ok
}

// Call runs the named action on the calling goroutine, waiting for
// asynchronous bodies, and commits its updater with the action name as
// label. The body's error is returned unmodified and nothing is committed.
func (b *Bound[T]) Call(name string, args ...any) error {
	return b.CallContext(context.Background(), name, args...)
}

// CallContext is Call with a context passed to asynchronous bodies.
func (b *Bound[T]) CallContext(ctx context.Context, name string, args ...any) error {
	a, ok := b.actions[name]
	if !ok {
		return unknown(name)
	}
	return b.dispatch(ctx, name, a, args)
}

// Go dispatches the named action and returns a completion handle.
// Synchronous bodies have committed by the time Go returns; asynchronous
// bodies run on a new goroutine.
func (b *Bound[T]) Go(ctx context.Context, name string, args ...any) *Completion {
	done := newCompletion()

	a, ok := b.actions[name]
	if !ok {
		done.resolve(unknown(name))
		return done
	}

	if !a.async {
		done.resolve(b.dispatch(ctx, name, a, args))
		return done
	}

	go func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("microscope: action panicked", "action", name, "panic", r)
				err = fmt.Errorf("action %q panicked: %v", name, r)
			}
			done.resolve(err)
		}()
		err = b.dispatch(ctx, name, a, args)
	}()
	return done
}

func (b *Bound[T]) dispatch(ctx context.Context, name string, a Action[T], args []any) (err error) {
	if b.tracer != nil {
		var span trace.Span
		ctx, span = b.tracer.Start(ctx, "action."+name,
			trace.WithAttributes(
				attribute.String("microscope.action", name),
				attribute.Bool("microscope.async", a.async),
				attribute.Int("microscope.args", len(args)),
			),
		)
		defer func() {
			if r := recover(); r != nil {
				span.SetStatus(codes.Error, fmt.Sprintf("panic: %v", r))
				span.End()
				panic(r)
			}
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}
			span.End()
		}()
	}

	u, err := a.run(ctx, args)
	if err != nil {
		b.logger.Debug("microscope: action failed", "action", name, "error", err)
		return err
	}

	b.target.Set(u, name)
	b.logger.Debug("microscope: action committed", "action", name)
	return nil
}

func unknown(name string) error {
	return merr.New(merr.CodeUnknownAction).WithDetailf("%q", name).Wrap(ErrUnknownAction)
}
