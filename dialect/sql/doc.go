// Package sql provides the runtime plumbing shared by compiled repositories.
//
// # Connection Sources
//
// Every repository operation runs on a [Lease] taken from a [Source]:
//
//	src := sql.Shared(db)       // one connection, operations serialized by its lock
//	src := sql.DBConns(db)      // a dedicated *sql.Conn per operation, no locking
//	src := sql.PerCall(openFn)  // a caller-supplied connection per operation
//
// A connection or transaction passed to an operation as an argument is used
// through [Explicit], which locks that object. If the repository shares a
// single *sql.Conn, that connection is locked first.
//
// # Locks
//
// [LockRegistry] hands out one lock per connection object, a weighted
// semaphore of size one. Entries are reference counted and dropped when
// unused. Lock waits honor the context.
//
// # Result Columns
//
// [ReaderHelper] maps the columns an entity needs to positions in a result
// set by name, case-insensitively and ignoring table qualifiers, and caches
// the mapping per query text and column list. [VerifyFieldsAreUnique] rejects result sets
// with ambiguous column names before any row is read.
//
// # Statistics
//
// [Recorder] wraps connections with counters, debug logging through log/slog
// and slow statement detection.
package sql
