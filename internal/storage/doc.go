// Package storage keeps an optional append-only audit trail of outbound notifications.
//
// Nothing is read back to drive the poll loop: restart semantics stay "memory only".
// Drivers:
//   - "file":   <path>.audit.jsonl (JSON Lines)
//   - "sqlite": SQLite database file (modernc.org/sqlite, pure Go)
package storage
