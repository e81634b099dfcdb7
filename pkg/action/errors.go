package action

import "errors"

// ErrUnknownAction is returned when a name is not bound.
var ErrUnknownAction = errors.New("action: unknown action")

// ErrBadArgs is returned by typed actions called with the wrong number or
// types of arguments.
var ErrBadArgs = errors.New("action: bad arguments")
