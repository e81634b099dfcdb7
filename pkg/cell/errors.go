package cell

import "errors"

// ErrNotObject is returned by Patch when the cell does not hold a struct,
// a pointer to a struct, or a string-keyed map.
var ErrNotObject = errors.New("cell: cannot patch primitive state")

// ErrUnknownField is returned by Patch when a key does not name a settable
// field, or its value is not assignable to the field's type.
var ErrUnknownField = errors.New("cell: unknown or mistyped patch field")
