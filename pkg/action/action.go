package action

import (
	"context"
	"fmt"

	"github.com/vango-dev/microscope/pkg/cell"
)

// Action is an action body. Build one with Sync, Async, Sync1 or Async1.
type Action[T any] struct {
	run   func(ctx context.Context, args []any) (cell.Updater[T], error)
	async bool
}

// Async reports whether the body runs on its own goroutine when
// dispatched with Go.
func (a Action[T]) Async() bool {
	return a.async
}

// Map names a set of actions.
type Map[T any] map[string]Action[T]

// Sync wraps a body that computes its updater immediately.
func Sync[T any](fn func(args ...any) (cell.Updater[T], error)) Action[T] {
	return Action[T]{
		run: func(_ context.Context, args []any) (cell.Updater[T], error) {
			return fn(args...)
		},
	}
}

// Async wraps a body that may block, for example on I/O.
func Async[T any](fn func(ctx context.Context, args ...any) (cell.Updater[T], error)) Action[T] {
	return Action[T]{
		run: func(ctx context.Context, args []any) (cell.Updater[T], error) {
			return fn(ctx, args...)
		},
		async: true,
	}
}

// Sync1 wraps a synchronous body taking exactly one argument of type A.
func Sync1[T, A any](fn func(arg A) (cell.Updater[T], error)) Action[T] {
	return Action[T]{
		run: func(_ context.Context, args []any) (cell.Updater[T], error) {
			arg, err := single[A](args)
			if err != nil {
				return cell.Updater[T]{}, err
			}
			return fn(arg)
		},
	}
}

// Async1 wraps an asynchronous body taking exactly one argument of type A.
func Async1[T, A any](fn func(ctx context.Context, arg A) (cell.Updater[T], error)) Action[T] {
	return Action[T]{
		run: func(ctx context.Context, args []any) (cell.Updater[T], error) {
			arg, err := single[A](args)
			if err != nil {
				return cell.Updater[T]{}, err
			}
			return fn(ctx, arg)
		},
		async: true,
	}
}

func single[A any](args []any) (A, error) {
	var zero A
	if len(args) != 1 {
		return zero, fmt.Errorf("%w: want 1 argument, got %d", ErrBadArgs, len(args))
	}
	arg, ok := args[0].(A)
	if !ok {
		return zero, fmt.Errorf("%w: want %T, got %T", ErrBadArgs, zero, args[0])
	}
	return arg, nil
}
