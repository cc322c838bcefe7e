// Package storage persists subscribers and run history.
//
// Drivers:
//   - "memory": in-process maps (tests, dry runs)
//   - "file":   JSON snapshot of subscribers + append-only JSONL run journal
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//   - "postgres": PostgreSQL via pgx connection pool
//
// Every driver implements subscriber.Pager, so the subscriber registry can read
// any of them page by page. Credentials are sealed at rest when a secret key is
// configured (see Sealer).
package storage
