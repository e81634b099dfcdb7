// Package storage provides key/value engines for persisted cells.
//
// An Engine stores text under string keys. Engines never interpret the
// text; encoding is the caller's concern.
//
// # Engines
//
//   - Memory keeps items in process memory.
//   - SQLite keeps items in a SQLite database file.
//   - S3 keeps one object per item in an S3 bucket.
//   - Shared wraps any engine and publishes an Event on a Hub whenever an
//     item actually changes, tagged with the writer's origin.
//
// # Change feeds
//
// A Feed delivers Events to subscribers. Hub is the in-process feed; a
// RelayClient connects a Hub to a RelayServer so that events cross process
// boundaries:
//
//	hub := storage.NewHub()
//	local := storage.NewShared(storage.NewMemory(), hub, "")
//	client, err := storage.DialRelay(ctx, "ws://localhost:7332/relay", hub, local.Engine())
package storage
