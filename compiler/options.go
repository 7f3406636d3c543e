package compiler

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"slices"

	"github.com/syssam/sqlrepo/compiler/gen"
	"github.com/syssam/sqlrepo/compiler/load"
	"github.com/syssam/sqlrepo/dialect"
	dsql "github.com/syssam/sqlrepo/dialect/sql"
	"github.com/syssam/sqlrepo/schema/naming"
)

// config holds the options of a registry or of one definition.
type config struct {
	build  []load.Option
	source dsql.Source
	stats  *dsql.Recorder
	logger *slog.Logger
	setup  *load.Setup
}

// Option configures a Registry, or a single definition when passed to
// Define. Definition options take precedence over registry options.
type Option func(*config) error

// WithDialect sets the dialect repositories are compiled for.
func WithDialect(d dialect.Dialect) Option {
	return func(c *config) error {
		if d == nil {
			return gen.NewConfigError("Dialect", nil, "dialect cannot be nil")
		}
		c.build = append(c.build, load.WithDialect(d))
		return nil
	}
}

// WithConnection shares conn between all operations. Operations on the
// same connection are serialized.
func WithConnection(conn dsql.ExecQuerier) Option {
	return func(c *config) error {
		if conn == nil {
			return gen.NewConfigError("Connection", nil, "connection cannot be nil")
		}
		c.source = dsql.Shared(conn)
		return nil
	}
}

// WithConnectionFactory opens a connection for every operation and closes
// it when the operation completes.
func WithConnectionFactory(open func(context.Context) (dsql.Conn, error)) Option {
	return func(c *config) error {
		if open == nil {
			return gen.NewConfigError("ConnectionFactory", nil, "factory cannot be nil")
		}
		c.source = dsql.PerCall(open)
		return nil
	}
}

// WithSource sets the connection source directly.
func WithSource(src dsql.Source) Option {
	return func(c *config) error {
		if src == nil {
			return gen.NewConfigError("Source", nil, "source cannot be nil")
		}
		c.source = src
		return nil
	}
}

// WithEntity sets the entity type E instead of inferring it from the
// contract methods.
func WithEntity[E any]() Option {
	return func(c *config) error {
		c.build = append(c.build, load.WithEntity(reflect.TypeFor[E]()))
		return nil
	}
}

// WithConstructors registers the constructors of the entity.
func WithConstructors(ctors ...load.ConstructorFunc) Option {
	return func(c *config) error {
		for _, ctor := range ctors {
			c.build = append(c.build, load.Constructor(ctor.Func, ctor.Params...))
		}
		return nil
	}
}

// WithTableNaming sets the convention deriving table names.
func WithTableNaming(n *naming.Convention) Option {
	return func(c *config) error {
		c.build = append(c.build, load.WithTableNaming(n))
		return nil
	}
}

// WithColumnNaming sets the convention deriving column names.
func WithColumnNaming(n *naming.Convention) Option {
	return func(c *config) error {
		c.build = append(c.build, load.WithColumnNaming(n))
		return nil
	}
}

// WithSetup reads a YAML setup file. Its section for a contract is applied
// when the contract is defined.
func WithSetup(r io.Reader) Option {
	return func(c *config) error {
		s, err := load.ParseSetup(r)
		if err != nil {
			return err
		}
		c.setup = s
		return nil
	}
}

// WithLogger sets the logger of the registry and of the bound repositories.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) error {
		if l == nil {
			return gen.NewConfigError("Logger", nil, "logger cannot be nil")
		}
		c.logger = l
		return nil
	}
}

// WithStats records the statements of every repository operation.
func WithStats(r *dsql.Recorder) Option {
	return func(c *config) error {
		if r == nil {
			return gen.NewConfigError("Stats", nil, "recorder cannot be nil")
		}
		c.stats = r
		return nil
	}
}

func (c *config) apply(opts []Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return nil
}

// merge returns the options of a definition: the fields of def override
// those of c. Build options run in order: those of c, those of the setup
// section of the contract, then those of def.
func (c *config) merge(def *config, contract string) (*config, error) {
	m := &config{
		source: c.source,
		stats:  c.stats,
		logger: c.logger,
		setup:  c.setup,
	}
	if def.source != nil {
		m.source = def.source
	}
	if def.stats != nil {
		m.stats = def.stats
	}
	if def.logger != nil {
		m.logger = def.logger
	}
	if def.setup != nil {
		m.setup = def.setup
	}
	setup, err := m.setup.Options(contract)
	if err != nil {
		return nil, err
	}
	m.build = slices.Concat(c.build, setup, def.build)
	return m, nil
}
