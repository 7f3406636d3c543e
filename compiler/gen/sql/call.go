package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	dsql "github.com/syssam/sqlrepo/dialect/sql"
)

// BindOption configures the runtime of a bound contract.
type BindOption func(*binder)

// WithStats records the statements of every call.
func WithStats(r *dsql.Recorder) BindOption {
	return func(b *binder) {
		b.stats = r
	}
}

// WithLogger sets the logger of the bound contract. It defaults to
// slog.Default().
func WithLogger(l *slog.Logger) BindOption {
	return func(b *binder) {
		if l != nil {
			b.logger = l
		}
	}
}

type binder struct {
	src    dsql.Source
	stats  *dsql.Recorder
	logger *slog.Logger
}

// Bind returns a new *C, where C is the contract type of the program, with
// every method field implemented against src. A method taking a
// connection or transaction argument uses that argument instead of src
// when it is not nil.
func (p *Program) Bind(src dsql.Source, opts ...BindOption) reflect.Value {
	b := &binder{src: src, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	v := reflect.New(p.Contract)
	for _, plan := range p.plans {
		v.Elem().FieldByName(plan.Method).Set(reflect.MakeFunc(plan.fn, b.method(plan)))
	}
	return v
}

// New binds the program to src and returns the implementation of C.
func New[C any](p *Program, src dsql.Source, opts ...BindOption) (*C, error) {
	if t := reflect.TypeFor[C](); t != p.Contract {
		return nil, fmt.Errorf("sql: program of %s cannot implement %s", p.Contract, t)
	}
	return p.Bind(src, opts...).Interface().(*C), nil
}

func (b *binder) method(p *Plan) func([]reflect.Value) []reflect.Value {
	return func(args []reflect.Value) []reflect.Value {
		out := make([]reflect.Value, p.fn.NumOut())
		for i := range out {
			out[i] = reflect.Zero(p.fn.Out(i))
		}
		err := b.invoke(p, args, out)
		if err == nil {
			return out
		}
		if p.errOut < 0 {
			panic(err)
		}
		for i := range out {
			out[i] = reflect.Zero(p.fn.Out(i))
		}
		out[p.errOut] = reflect.ValueOf(&err).Elem()
		return out
	}
}

func (b *binder) invoke(p *Plan, args, out []reflect.Value) (err error) {
	ctx := context.Background()
	if p.ctx >= 0 {
		if c, ok := args[p.ctx].Interface().(context.Context); ok && c != nil {
			ctx = c
		}
	}
	src := b.src
	if p.conn >= 0 && !args[p.conn].IsNil() {
		src = dsql.Explicit(args[p.conn].Interface().(dsql.ExecQuerier), b.src)
	}
	if src == nil {
		return dsql.ErrNoSource
	}
	lease, err := src.Acquire(ctx)
	if err != nil {
		return err
	}
	b.logger.DebugContext(ctx, "sqlrepo: call", "repository", p.repository, "method", p.Method, "kind", p.Kind)
	c := &call{
		ctx:    ctx,
		args:   args,
		out:    out,
		plan:   p,
		binder: b,
		raw:    lease.ExecQuerier,
		conn:   b.wrap(lease.ExecQuerier),
		lease:  lease,
	}
	defer func() {
		if c.detached {
			return
		}
		if rerr := lease.Release(); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()
	return p.run(c)
}

func (b *binder) wrap(eq dsql.ExecQuerier) dsql.ExecQuerier {
	if b.stats == nil {
		return eq
	}
	return b.stats.Wrap(eq)
}

// call is one invocation of a bound method.
type call struct {
	ctx    context.Context
	args   []reflect.Value
	out    []reflect.Value
	plan   *Plan
	binder *binder
	// raw is the leased connection and conn the one statements run on.
	raw   dsql.ExecQuerier
	conn  dsql.ExecQuerier
	lease *dsql.Lease
	// detached is set once a background reader owns the lease.
	detached bool
}

func (c *call) exec(s *Statement) (sql.Result, error) {
	args, err := s.Args(c.args)
	if err != nil {
		return nil, err
	}
	res, err := c.conn.ExecContext(c.ctx, s.SQL, args...)
	if err != nil {
		return nil, c.plan.wrap(err)
	}
	return res, nil
}

func (c *call) query(s *Statement) (*sql.Rows, error) {
	args, err := s.Args(c.args)
	if err != nil {
		return nil, err
	}
	rows, err := c.conn.QueryContext(c.ctx, s.SQL, args...)
	if err != nil {
		return nil, c.plan.wrap(err)
	}
	return rows, nil
}

// scalar returns the first column of the first row, or the zero value of
// the type when there is no row.
func (c *call) scalar(s *Statement, r *reader) (reflect.Value, error) {
	rows, err := c.query(s)
	if err != nil {
		return reflect.Value{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return reflect.Value{}, c.plan.wrap(err)
		}
		return reflect.Zero(r.elem), nil
	}
	next, err := r.open(rows, c.args)
	if err != nil {
		return reflect.Value{}, err
	}
	v, err := next()
	if err != nil {
		return reflect.Value{}, c.plan.wrap(err)
	}
	return v, nil
}

// count runs a statement selecting one integer. No row yields 0.
func (c *call) count(s *Statement) (int64, error) {
	rows, err := c.query(s)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	var n sql.NullInt64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, c.plan.wrap(err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, c.plan.wrap(err)
	}
	return n.Int64, nil
}

// pin runs fn with every statement on the same connection. Statements of
// one call may otherwise run on different connections of a *sql.DB pool.
func (c *call) pin(fn func() error) error {
	db, ok := c.raw.(*sql.DB)
	if !ok {
		return fn()
	}
	conn, err := db.Conn(c.ctx)
	if err != nil {
		return c.plan.wrap(err)
	}
	prev := c.conn
	c.conn = c.binder.wrap(conn)
	defer func() { c.conn = prev }()
	err = fn()
	if cerr := conn.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}

// detach hands the lease to a background reader and returns its release.
func (c *call) detach() func() {
	c.detached = true
	return func() {
		if err := c.lease.Release(); err != nil {
			c.binder.logger.Warn("sqlrepo: release connection",
				"repository", c.plan.repository, "method", c.plan.Method, "error", err)
		}
	}
}

func (c *call) result(v reflect.Value) {
	if c.plan.result >= 0 {
		c.out[c.plan.result] = v
	}
}

// setInt sets an integer result.
func (c *call) setInt(n int64) {
	if c.plan.result >= 0 {
		c.out[c.plan.result] = integer(n, c.plan.fn.Out(c.plan.result))
	}
}
