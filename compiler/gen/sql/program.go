package sql

import (
	"reflect"

	"github.com/syssam/sqlrepo"
	"github.com/syssam/sqlrepo/compiler/gen"
	dsql "github.com/syssam/sqlrepo/dialect/sql"
	"github.com/syssam/sqlrepo/schema"
)

// Program is the compiled form of a repository definition. It holds the
// statements and result readers of every method and no longer refers to
// the definition it was compiled from.
type Program struct {
	Repository string
	Contract   reflect.Type
	Dialect    string
	plans      []*Plan
}

// Plan is the compiled form of one contract method.
type Plan struct {
	Method string
	Kind   schema.MethodKind
	// Statements lists every statement the method may run, in the order
	// they run.
	Statements []*Statement

	repository string
	table      string
	fn         reflect.Type
	// Argument and result indexes, -1 when absent.
	ctx, conn, result, out, errOut int
	run                            func(*call) error
}

// Plans returns the plans of all methods in contract order.
func (p *Program) Plans() []*Plan { return p.plans }

// Plan returns the plan of the named method, or nil.
func (p *Program) Plan(method string) *Plan {
	for _, plan := range p.plans {
		if plan.Method == method {
			return plan
		}
	}
	return nil
}

// Snapshot returns the SQL of every method.
func (p *Program) Snapshot() *gen.Snapshot {
	s := &gen.Snapshot{Repository: p.Repository, Dialect: p.Dialect}
	for _, plan := range p.plans {
		ms := gen.MethodSnapshot{Method: plan.Method, Kind: plan.Kind.String()}
		for _, st := range plan.Statements {
			ms.SQL = append(ms.SQL, st.SQL)
		}
		s.Methods = append(s.Methods, ms)
	}
	return s
}

// wrap attributes a driver error to the method.
func (p *Plan) wrap(err error) error {
	if p.Kind.Mutating() || p.Kind == schema.KindCreateTable || p.Kind == schema.KindDropTable {
		return sqlrepo.NewMutationError(p.table, p.repository+"."+p.Method, err)
	}
	return sqlrepo.NewQueryError(p.table, p.repository+"."+p.Method, err)
}

// Compile validates def and compiles every method. A definition failing
// validation is rejected with a *gen.ValidationFailedError listing all
// problems, before any statement is built. On success def is frozen.
func Compile(def *schema.RepositoryDef) (*Program, error) {
	if def == nil {
		return nil, gen.NewGenerationError("", "", "nil repository definition", nil)
	}
	if def.Dialect == nil {
		return nil, gen.NewGenerationError(def.Name, "", "no dialect", nil)
	}
	if err := gen.Check(def); err != nil {
		return nil, err
	}
	c := &compiler{def: def, d: def.Dialect, helper: dsql.NewReaderHelper()}
	p := &Program{Repository: def.Name, Contract: def.Contract, Dialect: def.Dialect.Name()}
	var errs []error
	for _, m := range def.Methods {
		plan, err := c.plan(m)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		p.plans = append(p.plans, plan)
	}
	if err := sqlrepo.NewAggregateError(errs...); err != nil {
		return nil, err
	}
	def.Freeze()
	return p, nil
}
