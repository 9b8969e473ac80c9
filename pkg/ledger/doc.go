// Package ledger keeps the history of rotation runs in SQLite.
//
// Every finished run is stored with its counts and a flat list of events
// (uploads, promotions, deletions, parse failures). The pure Go driver
// modernc.org/sqlite is registered as "sqlite" and is the default;
// github.com/mattn/go-sqlite3 is registered as "sqlite3" for cgo builds.
//
// When the ledger is disabled New returns Nop, which drops everything.
package ledger
