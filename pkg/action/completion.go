package action

import "context"

// Completion is resolved once a dispatched action has committed or failed.
type Completion struct {
	done chan struct{}
	err  error
}

func newCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

func (c *Completion) resolve(err error) {
	c.err = err
	close(c.done)
}

// Done is closed when the action has finished. The cell holds the action's
// value (unless a later write replaced it) by then.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the action finishes or ctx is done, and returns the
// action error or ctx.Err().
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the action error, or nil while the action is running.
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}
