// Package storage provides JSON-based persistence for seen state and event history.
//
// The storage package manages the files that carry information across runs:
// the seen state (every event ID ever notified plus the last check time) and the
// history ledger (first/last sighting, expiry and registration duration per event).
// Files are written atomically through a temporary file and a rename, and a missing
// or unreadable file is treated as an empty record rather than an error. The seen state
// can alternatively live in Redis.
package storage
