package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// ErrNoSource is returned when a repository operation has no connection.
var ErrNoSource = errors.New("dialect/sql: no connection configured")

// Lease is the connection of one repository operation. It must be released
// once the operation, including reading its rows, is complete.
type Lease struct {
	ExecQuerier
	release func() error
	once    sync.Once
	err     error
}

// Release ends the lease. It is safe to call more than once.
func (l *Lease) Release() error {
	l.once.Do(func() {
		if l.release != nil {
			l.err = l.release()
		}
	})
	return l.err
}

// Source provides the connection of each repository operation.
type Source interface {
	Acquire(ctx context.Context) (*Lease, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(context.Context) (*Lease, error)

// Acquire calls f(ctx).
func (f SourceFunc) Acquire(ctx context.Context) (*Lease, error) { return f(ctx) }

// Shared returns a source that hands the same connection to every operation.
// Operations are serialized by the lock of the connection object, so at most
// one operation has live statements against it at any time.
func Shared(conn ExecQuerier) Source {
	return &shared{conn: conn, locks: Locks}
}

type shared struct {
	conn  ExecQuerier
	locks *LockRegistry
}

func (s *shared) Acquire(ctx context.Context) (*Lease, error) {
	if s.conn == nil {
		return nil, ErrNoSource
	}
	unlock, err := s.locks.Lock(ctx, s.conn)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: lock connection: %w", err)
	}
	return &Lease{
		ExecQuerier: s.conn,
		release: func() error {
			unlock()
			return nil
		},
	}, nil
}

// PerCall returns a source that opens a connection for each operation and
// closes it when the operation completes. Operations do not lock each other.
func PerCall(open func(context.Context) (Conn, error)) Source {
	return SourceFunc(func(ctx context.Context) (*Lease, error) {
		if open == nil {
			return nil, ErrNoSource
		}
		conn, err := open(ctx)
		if err != nil {
			return nil, fmt.Errorf("dialect/sql: open connection: %w", err)
		}
		return &Lease{ExecQuerier: conn, release: conn.Close}, nil
	})
}

// DBConns returns a per-call source taking a dedicated connection from db
// for each operation.
func DBConns(db *sql.DB) Source {
	return PerCall(func(ctx context.Context) (Conn, error) {
		return db.Conn(ctx)
	})
}

// Explicit returns a source for a connection or transaction passed as an
// argument, locking that object. When repo shares a single *sql.Conn, that
// connection is locked first: a transaction begun on it runs on the same
// driver connection as every other operation of the repository.
func Explicit(conn ExecQuerier, repo Source) Source {
	arg := &shared{conn: conn, locks: Locks}
	outer, ok := repo.(*shared)
	if !ok || outer.conn == conn {
		return arg
	}
	if _, single := outer.conn.(*sql.Conn); !single {
		return arg
	}
	return SourceFunc(func(ctx context.Context) (*Lease, error) {
		ol, err := outer.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		il, err := arg.Acquire(ctx)
		if err != nil {
			ol.Release()
			return nil, err
		}
		return &Lease{
			ExecQuerier: conn,
			release: func() error {
				err := il.Release()
				ol.Release()
				return err
			},
		}, nil
	})
}
