// Package errors provides structured error values for microscope.
//
// Errors carry a short code, a category and an optional wrapped cause so
// callers can branch with errors.Is/As while the CLI can render a readable
// report.
//
// # Error Categories
//
//   - misuse: programming errors raised to the caller (patching a primitive
//     cell, dispatching an unknown action)
//   - storage: backend read/write failures (always recovered by the
//     persistence layer, surfaced by the CLI)
//   - codec: encode/decode failures of persisted values
//   - devtools: inspector connection problems
//   - config: invalid configuration files
//
// # Usage
//
//	err := errors.New("M001").
//	    WithDetail("cell \"counter\" holds int").
//	    Wrap(cell.ErrNotObject)
//
//	fmt.Println(err.Format())
package errors
