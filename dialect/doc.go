// Package dialect describes the SQL engines repositories are compiled for.
//
// A Dialect is a capability profile: how parameters are written, how primitive
// types map onto column types, how the key assigned by an insert is read back,
// and which optional statements it can express. Optional capabilities are
// separate interfaces so callers test for them instead of branching on names:
//
//	type StoredProcedures interface {
//	    ProcedureCall(name string, params []string) string
//	}
//
//	type Upserter interface {
//	    Upsert(table string, columns, keys []string) string
//	}
//
// # Reference Dialects
//
//   - Full: unbounded text (nvarchar(max)), int identity(1,1) keys read with a
//     batched select scope_identity(), stored procedures via exec, merge upserts.
//   - Lite: SQLite. Text defaults to varchar(255), keys alias the rowid and are
//     read with select last_insert_rowid(), no stored procedures, insert or
//     replace upserts.
//
// Both dialects use named parameters (@name), bound with sql.Named.
//
// # Sub-packages
//
//   - dialect/sql: runtime plumbing shared by compiled repositories
//     (connection sources, per-connection locks, result column binding, stats).
package dialect
