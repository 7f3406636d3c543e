package sql

import (
	"context"
	"database/sql"
	"errors"
)

// ExecQuerier wraps the standard Exec and Query methods.
// It is implemented by *sql.DB, *sql.Conn and *sql.Tx.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn is an ExecQuerier that is closed after use, such as a *sql.Conn.
type Conn interface {
	ExecQuerier
	Close() error
}

// ColumnScanner is the interface that wraps the standard
// sql.Rows methods used for scanning database rows.
type ColumnScanner interface {
	Close() error
	Columns() ([]string, error)
	Err() error
	Next() bool
	Scan(dest ...any) error
}

// rowsWithCloser wraps the ColumnScanner interface with a custom Close hook.
type rowsWithCloser struct {
	ColumnScanner
	closer func() error
}

// Close closes the underlying ColumnScanner and calls the custom closer.
func (r rowsWithCloser) Close() error {
	err := r.ColumnScanner.Close()
	return errors.Join(err, r.closer())
}

// WithCloser returns rows whose Close also calls closer.
func WithCloser(rows ColumnScanner, closer func() error) ColumnScanner {
	return rowsWithCloser{rows, closer}
}

type (
	// Result is an alias to sql.Result.
	Result = sql.Result
	// TxOptions holds the transaction options to be used in DB.BeginTx.
	TxOptions = sql.TxOptions
)
