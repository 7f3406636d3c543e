package dialect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/sqlrepo/schema/field"
)

// Dialect names.
const (
	FullName = "full"
	LiteName = "lite"
)

// ErrUnsupported is returned when a dialect lacks a capability an
// operation requires.
var ErrUnsupported = errors.New("dialect: unsupported capability")

// UnsupportedError reports a capability a dialect does not provide.
type UnsupportedError struct {
	Dialect    string
	Capability string
	Detail     string
}

// Error implements the error interface.
func (e *UnsupportedError) Error() string {
	msg := fmt.Sprintf("dialect %s does not support %s", e.Dialect, e.Capability)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is reports whether the target matches ErrUnsupported.
func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}

// =============================================================================
// Capabilities
// =============================================================================

// TypeMapper maps primitive column types onto SQL data types.
type TypeMapper interface {
	// ColumnType returns the data type of a column. width overrides the
	// default width of text columns when non-nil.
	ColumnType(info *field.TypeInfo, width *int) string
	// IdentityType returns the data type of a database-assigned key column.
	IdentityType(info *field.TypeInfo) string
}

// IdentityRetriever describes how the key assigned by the last insert is read.
type IdentityRetriever interface {
	// LastIdentity returns the query yielding the last assigned identity.
	LastIdentity() string
	// BatchIdentity reports if LastIdentity must be appended to the insert
	// and run as one batch. Otherwise it runs as a follow-up statement on
	// the same connection.
	BatchIdentity() bool
}

// StoredProcedures is implemented by dialects that can call stored procedures.
type StoredProcedures interface {
	// ProcedureCall returns the statement invoking the procedure with the
	// named parameters bound by name.
	ProcedureCall(name string, params []string) string
}

// Upserter is implemented by dialects with an atomic insert-or-replace form.
type Upserter interface {
	// Upsert returns the statement inserting a row or replacing the row with
	// the same key.
	Upsert(table string, columns, keys []string) string
}

// Dialect is the capability profile of a target SQL engine.
type Dialect interface {
	// Name returns the dialect name.
	Name() string
	// Param returns the placeholder for a named parameter.
	Param(name string) string
	// TableExists returns a query counting the tables named by the
	// @tableName parameter.
	TableExists() string
	// Exists wraps a select statement into a query returning 1 when it
	// yields at least one row and 0 otherwise.
	Exists(query string) string
	TypeMapper
	IdentityRetriever
}

// ProcedureCall returns the procedure call statement for d, or an
// UnsupportedError when d has no stored procedures.
func ProcedureCall(d Dialect, name string, params []string) (string, error) {
	sp, ok := d.(StoredProcedures)
	if !ok {
		return "", &UnsupportedError{
			Dialect:    d.Name(),
			Capability: "stored procedures",
			Detail:     fmt.Sprintf("%q must be attached as plain SQL", name),
		}
	}
	return sp.ProcedureCall(name, params), nil
}

// SupportsStoredProcedures reports if d can call stored procedures.
func SupportsStoredProcedures(d Dialect) bool {
	_, ok := d.(StoredProcedures)
	return ok
}

// Upsert returns the insert-or-replace statement for d, or an
// UnsupportedError when d has none.
func Upsert(d Dialect, table string, columns, keys []string) (string, error) {
	u, ok := d.(Upserter)
	if !ok {
		return "", &UnsupportedError{Dialect: d.Name(), Capability: "upsert", Detail: "table " + table + " has no identity"}
	}
	return u.Upsert(table, columns, keys), nil
}

// ByName returns the reference dialect with the given name.
func ByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case FullName:
		return Full, nil
	case LiteName:
		return Lite, nil
	default:
		return nil, fmt.Errorf("dialect: unknown dialect %q", name)
	}
}

func params(d Dialect, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = d.Param(n)
	}
	return out
}
