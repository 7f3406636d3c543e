package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/sqlrepo/compiler/gen"
	gensql "github.com/syssam/sqlrepo/compiler/gen/sql"
	"github.com/syssam/sqlrepo/compiler/load"
	"github.com/syssam/sqlrepo/schema"
)

// ErrDefined is returned when a contract type is defined twice.
var ErrDefined = errors.New("compiler: contract already defined")

// Registry holds repository definitions and the repositories compiled from
// them. Definitions are compiled lazily: the first Get compiles every
// pending definition in one batch. A compiled repository is never rebuilt.
type Registry struct {
	cfg *config

	mu      sync.Mutex
	entries map[reflect.Type]*entry
	pending []*entry
	batches int
}

type entry struct {
	def  *schema.RepositoryDef
	cfg  *config
	prog *gensql.Program
	// impl is the *C implementing the contract once compiled.
	impl any
	err  error
}

// NewRegistry returns an empty registry. opts apply to every definition.
func NewRegistry(opts ...Option) (*Registry, error) {
	cfg := &config{logger: slog.Default()}
	if err := cfg.apply(opts); err != nil {
		return nil, err
	}
	return &Registry{cfg: cfg, entries: make(map[reflect.Type]*entry)}, nil
}

// Define builds the definition of the contract C and registers it for the
// next compilation batch. The returned definition may be adjusted through
// its setup methods until it is compiled.
func Define[C any](r *Registry, opts ...Option) (*schema.RepositoryDef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.define(reflect.TypeFor[C](), opts)
	if err != nil {
		return nil, err
	}
	return e.def, nil
}

func (r *Registry) define(t reflect.Type, opts []Option) (*entry, error) {
	if e, ok := r.entries[t]; ok && e.err == nil {
		return nil, fmt.Errorf("%w: %s", ErrDefined, t)
	}
	local := &config{}
	if err := local.apply(opts); err != nil {
		return nil, err
	}
	cfg, err := r.cfg.merge(local, t.Name())
	if err != nil {
		return nil, err
	}
	def, err := load.Build(t, cfg.build...)
	if err != nil {
		return nil, err
	}
	if err := cfg.setup.Apply(def); err != nil {
		return nil, err
	}
	e := &entry{def: def, cfg: cfg}
	r.entries[t] = e
	r.pending = append(r.pending, e)
	return e, nil
}

// Get returns the repository implementing C. A contract that was not
// defined is defined with the registry options. If C is not compiled yet,
// every pending definition is compiled first. Get returns the same *C on
// every call.
func Get[C any](ctx context.Context, r *Registry) (*C, error) {
	t := reflect.TypeFor[C]()
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[t]
	if !ok {
		var err error
		if e, err = r.define(t, nil); err != nil {
			return nil, err
		}
	}
	if e.impl == nil && e.err == nil {
		if err := r.compile(ctx); err != nil {
			return nil, err
		}
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.impl.(*C), nil
}

// compile compiles all pending definitions in parallel. Definitions that
// fail keep their error, the others are bound to their connection source.
func (r *Registry) compile(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	batch := r.pending
	r.pending = nil
	start := time.Now()
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, e := range batch {
		g.Go(func() error {
			p, err := gensql.Compile(e.def)
			if err != nil {
				e.err = err
				return nil
			}
			e.prog = p
			e.impl = p.Bind(e.cfg.source, e.cfg.bindOptions()...).Interface()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	r.batches++
	failed := 0
	for _, e := range batch {
		if e.err != nil {
			failed++
			r.cfg.logger.WarnContext(ctx, "sqlrepo: compile repository", "repository", e.def.Name, "error", e.err)
		}
	}
	r.cfg.logger.InfoContext(ctx, "sqlrepo: compiled repositories",
		"batch", r.batches, "count", len(batch), "failed", failed, "duration", time.Since(start))
	return nil
}

func (c *config) bindOptions() []gensql.BindOption {
	var opts []gensql.BindOption
	if c.stats != nil {
		opts = append(opts, gensql.WithStats(c.stats))
	}
	if c.logger != nil {
		opts = append(opts, gensql.WithLogger(c.logger))
	}
	return opts
}

// Compiled reports if the contract type t has been compiled successfully.
func (r *Registry) Compiled(t reflect.Type) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[t]
	return ok && e.prog != nil
}

// Compilations returns the number of compilation batches run so far.
func (r *Registry) Compilations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches
}

// Program returns the compiled program of the contract type t, or nil.
func (r *Registry) Program(t reflect.Type) *gensql.Program {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[t]; ok {
		return e.prog
	}
	return nil
}

// Snapshots returns the SQL of every compiled repository.
func (r *Registry) Snapshots() []*gen.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	var snaps []*gen.Snapshot
	for _, e := range r.entries {
		if e.prog != nil {
			snaps = append(snaps, e.prog.Snapshot())
		}
	}
	return snaps
}

// WriteSnapshots writes the SQL of every compiled repository as Go
// constants, one file per repository.
func (r *Registry) WriteSnapshots(ctx context.Context, opts ...gen.Option) error {
	cfg, err := gen.NewConfig(opts...)
	if err != nil {
		return err
	}
	w, err := gen.NewStatementWriter(cfg)
	if err != nil {
		return err
	}
	return w.WriteAll(ctx, r.Snapshots()...)
}
