package sqlrepo

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors raised by compiled repositories.
var (
	// ErrNoRows is returned when a strict singleton read finds no row.
	ErrNoRows = errors.New("sqlrepo: no rows found")

	// ErrTooManyRows is returned when a singleton read finds more than one row
	// and the method fails on multiple rows.
	ErrTooManyRows = errors.New("sqlrepo: more than one row found")

	// ErrColumnNotFound is returned when a result set lacks a column an
	// entity property needs.
	ErrColumnNotFound = errors.New("sqlrepo: column not found")

	// ErrDuplicateColumn is returned when a result set carries the same
	// unqualified column name twice.
	ErrDuplicateColumn = errors.New("sqlrepo: duplicate column")
)

// NoRowsError is returned when a singleton read that requires a row finds none.
type NoRowsError struct {
	Repository string
	Method     string
}

// Error returns the error string.
func (e *NoRowsError) Error() string {
	return fmt.Sprintf("sqlrepo: %s.%s: no rows found", e.Repository, e.Method)
}

// Is reports whether the target error matches NoRowsError.
// This allows errors.Is(err, ErrNoRows) to return true.
func (e *NoRowsError) Is(err error) bool {
	return err == ErrNoRows
}

// NewNoRowsError returns a new NoRowsError for the given method.
func NewNoRowsError(repository, method string) *NoRowsError {
	return &NoRowsError{Repository: repository, Method: method}
}

// IsNoRows returns true if the error is a NoRowsError.
func IsNoRows(err error) bool {
	if err == nil {
		return false
	}
	var e *NoRowsError
	return errors.As(err, &e) || errors.Is(err, ErrNoRows)
}

// TooManyRowsError is returned when a singleton read finds a second row.
type TooManyRowsError struct {
	Repository string
	Method     string
}

// Error returns the error string.
func (e *TooManyRowsError) Error() string {
	return fmt.Sprintf("sqlrepo: %s.%s: more than one row found", e.Repository, e.Method)
}

// Is reports whether the target error matches TooManyRowsError.
func (e *TooManyRowsError) Is(err error) bool {
	return err == ErrTooManyRows
}

// NewTooManyRowsError returns a new TooManyRowsError for the given method.
func NewTooManyRowsError(repository, method string) *TooManyRowsError {
	return &TooManyRowsError{Repository: repository, Method: method}
}

// IsTooManyRows returns true if the error is a TooManyRowsError.
func IsTooManyRows(err error) bool {
	if err == nil {
		return false
	}
	var e *TooManyRowsError
	return errors.As(err, &e) || errors.Is(err, ErrTooManyRows)
}

// ColumnError is returned by result-column resolution, before any row
// is materialized.
type ColumnError struct {
	Column string
	Query  string
	Err    error // ErrColumnNotFound or ErrDuplicateColumn
}

// Error returns the error string.
func (e *ColumnError) Error() string {
	return fmt.Sprintf("%v: %q (query: %s)", e.Err, e.Column, e.Query)
}

// Unwrap returns the underlying sentinel.
func (e *ColumnError) Unwrap() error {
	return e.Err
}

// IsColumnError returns true if the error is a ColumnError.
func IsColumnError(err error) bool {
	if err == nil {
		return false
	}
	var e *ColumnError
	return errors.As(err, &e)
}

// BackgroundLoadError wraps a failure raised by the source of a Collection.
// It is returned only when a consumer advances past the last row that was
// buffered before the failure.
type BackgroundLoadError struct {
	Index int   // Number of rows buffered before the failure
	Err   error // Error raised by the source
}

// Error returns the error string.
func (e *BackgroundLoadError) Error() string {
	return fmt.Sprintf("sqlrepo: background load failed after %d rows: %v", e.Index, e.Err)
}

// Unwrap returns the underlying error.
func (e *BackgroundLoadError) Unwrap() error {
	return e.Err
}

// IsBackgroundLoadError returns true if the error is a BackgroundLoadError.
func IsBackgroundLoadError(err error) bool {
	if err == nil {
		return false
	}
	var e *BackgroundLoadError
	return errors.As(err, &e)
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "sqlrepo: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("sqlrepo: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}

// QueryError wraps a read failure with the repository method that issued it.
type QueryError struct {
	Table string // Table being queried
	Op    string // Method name
	Err   error  // Underlying error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("sqlrepo: querying %s (%s): %v", e.Table, e.Op, e.Err)
	}
	return fmt.Sprintf("sqlrepo: querying %s: %v", e.Table, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError returns a new QueryError.
func NewQueryError(table, op string, err error) *QueryError {
	return &QueryError{Table: table, Op: op, Err: err}
}

// IsQueryError returns true if the error is a QueryError.
func IsQueryError(err error) bool {
	if err == nil {
		return false
	}
	var e *QueryError
	return errors.As(err, &e)
}

// MutationError wraps a write failure with the repository method that issued it.
type MutationError struct {
	Table string // Table being mutated
	Op    string // Method name
	Err   error  // Underlying error
}

// Error returns the error string.
func (e *MutationError) Error() string {
	return fmt.Sprintf("sqlrepo: %s %s: %v", e.Op, e.Table, e.Err)
}

// Unwrap returns the underlying error.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// NewMutationError returns a new MutationError.
func NewMutationError(table, op string, err error) *MutationError {
	return &MutationError{Table: table, Op: op, Err: err}
}

// IsMutationError returns true if the error is a MutationError.
func IsMutationError(err error) bool {
	if err == nil {
		return false
	}
	var e *MutationError
	return errors.As(err, &e)
}
