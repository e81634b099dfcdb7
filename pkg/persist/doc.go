// Package persist wraps cells with durable storage.
//
// A persisted cell is a cell.Cell plus a persistence middleware and an
// optional subscription to the backend's change feed:
//
//	todos := persist.New("todos", []Todo{})
//	todos.Set(cell.Transform(func(prev []Todo) []Todo {
//	    return append(prev, Todo{Text: "milk"})
//	}), "add")
//
// Construction reads the key from the backend and starts from the decoded
// value when one is stored (eager hydration). SkipHydration defers the
// read until Hydrate is called.
//
// Storage and codec failures never reach the caller: they are logged at
// warn level and the in-memory value is kept.
//
// # Backends
//
// WithEngine injects an engine. Otherwise the cell names a backend (Local
// or Session) that is looked up in its Environment on every access; a
// missing backend makes reads and writes no-ops.
//
// # Synchronization
//
// Cells on the Local backend subscribe to its change feed when the backend
// provides one (storage.Shared does). When the cell resolves Local through
// an Environment, the subscription follows SetEngine, so a backend
// installed after the cell was created is listened to as well. Writes by
// other origins to the same key are decoded and committed with the label
// "sync" without being written back. They are committed from a short-lived
// goroutine that exits once no event is pending, so listeners may observe
// them after the writer's Set has returned.
//
// The feed and the Environment keep a reference to every listening cell.
// Call Close on cells that are no longer used to release them.
package persist
