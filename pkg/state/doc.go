// Package state is the persistence adapter for editor documents. A Store
// saves and loads one flattened snapshot per document id; it never sees the
// history ledger, so a failed save cannot corrupt undo state.
//
// Implementations:
//   - MemoryStore keeps cloned records in a map, for tests and examples.
//   - SQLiteStore keeps JSON snapshots in a single table (modernc.org/sqlite).
//
// Autosaver wraps any Store with a fire-and-forget, coalescing writer for the
// "save after every commit" flow.
package state
