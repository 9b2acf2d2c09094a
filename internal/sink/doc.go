// Package sink provides append-only destinations for encoded invocation records.
//
// A sink is addressed by a location string resolved once by Open:
//
//	main.log, file:///var/log/calls.log   JSON lines file
//	sqlite://calls.db                     SQLite table (go-sqlite3)
//	postgres://user@host/db               PostgreSQL table (lib/pq)
//	redis://localhost:6379/0?stream=calls Redis stream (go-redis)
//	journald://calltrace                  systemd journal
//	memory://name                         process-local, for tests
//
// # Append Contract
//
// Every backend appends one record per Append call as a single atomic
// operation: one write(2) on an O_APPEND descriptor, one INSERT, one XADD or
// one journal datagram. A failed append leaves previously written entries
// untouched. No backend ever updates, truncates or deletes entries.
//
// Write handles are scoped to one append. The file backend opens and closes
// the file inside Append; table and stream backends hold a connection pool
// that Close releases.
package sink
