// Package history keeps an optional SQLite ledger of export runs.
//
// Only run metadata is stored: when the run happened, which REDCap project
// and events it queried, where the output went and how many rows were fetched
// and kept. Session records themselves are never written to the ledger.
//
// # Database Configuration
//
//   - WAL mode: readers (the history command) do not block a running export
//   - synchronous=NORMAL
//   - busy_timeout=5000
//
// Schema changes are tracked with PRAGMA user_version.
package history
