package sql

import (
	"errors"
	"fmt"
	"iter"
	"reflect"
	"strings"

	"github.com/syssam/sqlrepo"
	"github.com/syssam/sqlrepo/compiler/gen"
	"github.com/syssam/sqlrepo/dialect"
	dsql "github.com/syssam/sqlrepo/dialect/sql"
	"github.com/syssam/sqlrepo/schema"
	"github.com/syssam/sqlrepo/schema/field"
)

var errorType = reflect.TypeFor[error]()

type compiler struct {
	def    *schema.RepositoryDef
	d      dialect.Dialect
	helper *dsql.ReaderHelper
}

func (c *compiler) plan(m *schema.MethodDef) (*Plan, error) {
	p := &Plan{
		Method:     m.Name,
		Kind:       m.Kind,
		repository: c.def.Name,
		fn:         m.Func,
		ctx:        -1,
		conn:       -1,
		result:     m.ReturnIndex,
		out:        -1,
		errOut:     -1,
	}
	if e := c.def.Entity; e != nil {
		p.table = e.Table
	}
	if m.ContextParameter != nil {
		p.ctx = m.ContextParameter.Index
	}
	if m.ConnectionOrTransactionParameter != nil {
		p.conn = m.ConnectionOrTransactionParameter.Index
	}
	if m.OutParameter != nil {
		p.out = m.OutParameter.Index
	}
	if m.HasError {
		p.errOut = m.Func.NumOut() - 1
	}
	var err error
	switch m.Kind {
	case schema.KindCreateTable:
		c.createTable(p)
	case schema.KindDropTable:
		c.dropTable(p)
	case schema.KindTableExists:
		c.tableExists(p)
	case schema.KindGetCount:
		c.getCount(p, m)
	case schema.KindExists:
		c.exists(p, m)
	case schema.KindInsert:
		c.insert(p, m)
	case schema.KindUpdate:
		err = c.update(p, m)
	case schema.KindDelete:
		c.delete(p, m)
	case schema.KindCreate:
		c.create(p, m)
	case schema.KindUpsert:
		err = c.upsert(p, m)
	case schema.KindGet:
		c.get(p, m)
	default:
		err = c.custom(p, m)
	}
	if err != nil {
		return nil, gen.NewGenerationError(c.def.Name, m.Name, "cannot build statement", err)
	}
	return p, nil
}

// =============================================================================
// Tables
// =============================================================================

func (c *compiler) createTable(p *Plan) {
	e := c.def.Entity
	id := e.Identity()
	defs := make([]string, 0, len(e.Columns)+1)
	for _, col := range e.Columns {
		switch {
		case col == id:
			defs = append(defs, col.Column+" "+c.d.IdentityType(col.Info))
		case col.Info.Nullable:
			defs = append(defs, col.Column+" "+c.d.ColumnType(col.Info, col.Width))
		default:
			defs = append(defs, col.Column+" "+c.d.ColumnType(col.Info, col.Width)+" not null")
		}
	}
	if len(e.PrimaryKey) > 0 {
		defs = append(defs, "constraint pk_"+e.Table+" primary key ("+strings.Join(schema.ColumnNames(e.PrimaryKey), ", ")+")")
	}
	s := &Statement{SQL: "create table " + e.Table + " (" + strings.Join(defs, ", ") + ")"}
	p.Statements = []*Statement{s}
	p.run = func(cl *call) error {
		_, err := cl.exec(s)
		return err
	}
}

func (c *compiler) dropTable(p *Plan) {
	s := &Statement{SQL: "drop table " + c.def.Entity.Table}
	p.Statements = []*Statement{s}
	p.run = func(cl *call) error {
		_, err := cl.exec(s)
		return err
	}
}

func (c *compiler) tableExists(p *Plan) {
	s := &Statement{
		SQL:      c.d.TableExists(),
		Bindings: []Binding{{Name: "tableName", From: FromConstant, Value: c.def.Entity.Table}},
	}
	p.Statements = []*Statement{s}
	p.run = func(cl *call) error {
		n, err := cl.count(s)
		if err != nil {
			return err
		}
		cl.result(reflect.ValueOf(n > 0).Convert(cl.plan.fn.Out(cl.plan.result)))
		return nil
	}
}

// =============================================================================
// Counting
// =============================================================================

func (c *compiler) getCount(p *Plan, m *schema.MethodDef) {
	where, bs := c.filter(m)
	s := &Statement{SQL: "select count(*) from " + c.def.Entity.Table + where, Bindings: bs}
	p.Statements = []*Statement{s}
	p.run = func(cl *call) error {
		n, err := cl.count(s)
		if err != nil {
			return err
		}
		cl.setInt(n)
		return nil
	}
}

func (c *compiler) exists(p *Plan, m *schema.MethodDef) {
	where, bs := c.filter(m)
	s := &Statement{SQL: c.d.Exists("select 1 from " + c.def.Entity.Table + where), Bindings: bs}
	p.Statements = []*Statement{s}
	p.run = func(cl *call) error {
		n, err := cl.count(s)
		if err != nil {
			return err
		}
		cl.result(reflect.ValueOf(n != 0).Convert(cl.plan.fn.Out(cl.plan.result)))
		return nil
	}
}

// filter returns the where clause comparing the columns of the primitive
// arguments of m to their values.
func (c *compiler) filter(m *schema.MethodDef) (string, []Binding) {
	var (
		conds []string
		bs    []Binding
	)
	for _, prm := range m.Primitives() {
		col := prm.Property.Column
		conds = append(conds, col+" = "+c.d.Param(col))
		bs = append(bs, Binding{Name: col, From: FromArgument, Arg: prm.Index, Info: prm.Info})
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " where " + strings.Join(conds, " and "), bs
}

// =============================================================================
// Mutations
// =============================================================================

func (c *compiler) insert(p *Plan, m *schema.MethodDef) {
	s := c.insertStatement(m, c.def.Entity.Columns)
	p.Statements = []*Statement{s}
	p.run = execAffected(s)
}

func (c *compiler) update(p *Plan, m *schema.MethodDef) error {
	s, err := c.updateStatement(m)
	if err != nil {
		return err
	}
	p.Statements = []*Statement{s}
	p.run = execAffected(s)
	return nil
}

func (c *compiler) delete(p *Plan, m *schema.MethodDef) {
	e := c.def.Entity
	where, bs := c.keyFilter(m)
	s := &Statement{SQL: "delete from " + e.Table + where, Bindings: bs}
	p.Statements = []*Statement{s}
	p.run = execAffected(s)
}

func (c *compiler) create(p *Plan, m *schema.MethodDef) {
	e := c.def.Entity
	id := e.Identity()
	stmts := c.identityStatements(c.insertStatement(m, e.NonKeyColumns()))
	arg := m.EntityParameter.Index
	p.Statements = stmts
	p.run = func(cl *call) error {
		n, err := insertIdentity(cl, stmts)
		if err != nil {
			return err
		}
		if err := assignKey(cl.args[arg], id, n); err != nil {
			return err
		}
		cl.setInt(n)
		return nil
	}
}

// upsert inserts entities with a zero identity and updates the others.
// Without identity the dialect must have an insert-or-replace statement.
func (c *compiler) upsert(p *Plan, m *schema.MethodDef) error {
	e := c.def.Entity
	arg := m.EntityParameter.Index
	id := e.Identity()
	if id == nil {
		q, err := dialect.Upsert(c.d, e.Table, schema.ColumnNames(e.Columns), schema.ColumnNames(e.PrimaryKey))
		if err != nil {
			return err
		}
		s := &Statement{SQL: q, Bindings: entityBindings(arg, e.Columns)}
		p.Statements = []*Statement{s}
		p.run = execAffected(s)
		return nil
	}
	creates := c.identityStatements(c.insertStatement(m, e.NonKeyColumns()))
	upd, err := c.updateStatement(m)
	if err != nil {
		return err
	}
	p.Statements = append(append([]*Statement{}, creates...), upd)
	p.run = func(cl *call) error {
		ev, err := entityValue(cl.args[arg])
		if err != nil {
			return err
		}
		if !id.Info.IsZero(ev.FieldByIndex(id.Index)) {
			return execAffected(upd)(cl)
		}
		n, err := insertIdentity(cl, creates)
		if err != nil {
			return err
		}
		if err := assignKey(cl.args[arg], id, n); err != nil {
			return err
		}
		cl.setInt(1)
		return nil
	}
	return nil
}

func (c *compiler) insertStatement(m *schema.MethodDef, cols []*schema.PropertyDef) *Statement {
	table := c.def.Entity.Table
	if len(cols) == 0 {
		return &Statement{SQL: "insert into " + table + " default values"}
	}
	names := schema.ColumnNames(cols)
	params := make([]string, len(names))
	for i, n := range names {
		params[i] = c.d.Param(n)
	}
	return &Statement{
		SQL:      "insert into " + table + " (" + strings.Join(names, ", ") + ") values (" + strings.Join(params, ", ") + ")",
		Bindings: entityBindings(m.EntityParameter.Index, cols),
	}
}

func (c *compiler) updateStatement(m *schema.MethodDef) (*Statement, error) {
	e := c.def.Entity
	cols := e.NonKeyColumns()
	if len(cols) == 0 {
		return nil, errors.New("entity " + e.Name + " has no columns outside its primary key")
	}
	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = col.Column + " = " + c.d.Param(col.Column)
	}
	where, keys := c.keyFilter(m)
	return &Statement{
		SQL:      "update " + e.Table + " set " + strings.Join(sets, ", ") + where,
		Bindings: append(entityBindings(m.EntityParameter.Index, cols), keys...),
	}, nil
}

// keyFilter returns the where clause matching the primary key of the
// entity argument of m.
func (c *compiler) keyFilter(m *schema.MethodDef) (string, []Binding) {
	pk := c.def.Entity.PrimaryKey
	conds := make([]string, len(pk))
	for i, k := range pk {
		conds[i] = k.Column + " = " + c.d.Param(k.Column)
	}
	return " where " + strings.Join(conds, " and "), entityBindings(m.EntityParameter.Index, pk)
}

// identityStatements returns the statements inserting a row and selecting
// its identity, as one batch when the dialect requires it.
func (c *compiler) identityStatements(ins *Statement) []*Statement {
	if c.d.BatchIdentity() {
		return []*Statement{{SQL: ins.SQL + "; " + c.d.LastIdentity(), Bindings: ins.Bindings}}
	}
	return []*Statement{ins, {SQL: c.d.LastIdentity()}}
}

func entityBindings(arg int, props []*schema.PropertyDef) []Binding {
	bs := make([]Binding, len(props))
	for i, p := range props {
		bs[i] = Binding{Name: p.Column, From: FromEntity, Arg: arg, Index: p.Index, Info: p.Info}
	}
	return bs
}

func execAffected(s *Statement) func(*call) error {
	return func(cl *call) error {
		res, err := cl.exec(s)
		if err != nil {
			return err
		}
		if cl.plan.result < 0 {
			return nil
		}
		n, err := res.RowsAffected()
		if err != nil {
			return cl.plan.wrap(err)
		}
		cl.setInt(n)
		return nil
	}
}

// insertIdentity runs the statements of identityStatements and returns the
// assigned key. Separate statements share one connection.
func insertIdentity(cl *call, stmts []*Statement) (int64, error) {
	if len(stmts) == 1 {
		return cl.count(stmts[0])
	}
	var id int64
	err := cl.pin(func() error {
		if _, err := cl.exec(stmts[0]); err != nil {
			return err
		}
		var err error
		id, err = cl.count(stmts[1])
		return err
	})
	return id, err
}

// assignKey stores the assigned identity n on the entity argument.
func assignKey(arg reflect.Value, id *schema.PropertyDef, n int64) error {
	ev, err := entityValue(arg)
	if err != nil {
		return err
	}
	if key := ev.FieldByIndex(id.Index); key.CanSet() {
		key.Set(integer(n, id.Info.Ident))
	}
	return nil
}

// =============================================================================
// Queries
// =============================================================================

// get selects the columns not bound to an argument. Bound columns are
// filled from the arguments.
func (c *compiler) get(p *Plan, m *schema.MethodDef) {
	e := c.def.Entity
	bound := make(map[*schema.PropertyDef]int)
	for _, prm := range m.Primitives() {
		bound[prm.Property] = prm.Index
	}
	row := newRowType(e, bound)
	list := "1"
	if cols := row.selected(); len(cols) > 0 {
		list = strings.Join(cols, ", ")
	}
	where, bs := c.filter(m)
	s := &Statement{SQL: "select " + list + " from " + e.Table + where, Bindings: bs}
	c.shape(p, m, s, &reader{row: row, pos: row.positions(), elem: rowElem(m)})
}

// custom runs attached SQL. Primitive arguments bind under their parameter
// names, entity arguments under their column names. Result columns are
// matched to properties by name.
func (c *compiler) custom(p *Plan, m *schema.MethodDef) error {
	var (
		bs    []Binding
		names []string
	)
	for _, prm := range m.Parameters {
		switch prm.Kind {
		case schema.ParamPrimitive:
			bs = append(bs, Binding{Name: prm.Name, From: FromArgument, Arg: prm.Index, Info: prm.Info})
			names = append(names, prm.Name)
		case schema.ParamEntity:
			e := c.def.Entity
			if e == nil || schema.EntityStruct(prm.Type) != e.Type {
				return fmt.Errorf("argument %s of type %s is not the repository entity", prm.Name, prm.Type)
			}
			for _, b := range entityBindings(prm.Index, e.Columns) {
				bs = append(bs, b)
				names = append(names, b.Name)
			}
		}
	}
	query := m.CustomSQL
	if m.IsStoredProcedure {
		q, err := dialect.ProcedureCall(c.d, m.CustomSQL, names)
		if err != nil {
			return err
		}
		query = q
	}
	s := &Statement{SQL: query, Bindings: bs}
	r := &reader{elem: rowElem(m), query: query, helper: c.helper}
	if r.elem != nil {
		if info, ok := field.Lookup(r.elem); ok {
			r.prim = info
		} else if m.Entity != nil && schema.EntityStruct(r.elem) == m.Entity.Type {
			r.row = newRowType(m.Entity, nil)
		} else {
			return fmt.Errorf("no row definition for %s", r.elem)
		}
	}
	c.shape(p, m, s, r)
	return nil
}

// rowElem returns the type of the values read from each row.
func rowElem(m *schema.MethodDef) reflect.Type {
	switch {
	case m.IsTryGet:
		return m.RowType()
	case m.Shape.Enumerable():
		return m.Elem
	}
	return m.ReturnType
}

// shape sets the runner reading the result of s as declared by m.
func (c *compiler) shape(p *Plan, m *schema.MethodDef, s *Statement, r *reader) {
	p.Statements = []*Statement{s}
	switch {
	case m.IsTryGet, m.Shape == schema.ShapeEntity:
		p.run = singleton(s, r, m.IsTryGet, m.SingletonGetBehavior)
	case m.Shape == schema.ShapeScalar:
		p.run = func(cl *call) error {
			v, err := cl.scalar(s, r)
			if err != nil {
				return err
			}
			cl.result(v)
			return nil
		}
	case m.Shape == schema.ShapeSlice:
		p.run = many(s, r)
	case m.Shape == schema.ShapeSeq, m.Shape == schema.ShapeCollection:
		p.run = background(s, r, m.Shape)
	default:
		p.run = func(cl *call) error {
			_, err := cl.exec(s)
			return err
		}
	}
}

// singleton reads at most one row. A second row fails when b has
// FailIfMultipleRowsFound and is ignored otherwise. No row fails when b
// has FailIfNoRowFound, except for TryGet which then reports false.
func singleton(s *Statement, r *reader, tryGet bool, b schema.SingletonGetBehavior) func(*call) error {
	return func(cl *call) error {
		rows, err := cl.query(s)
		if err != nil {
			return err
		}
		defer rows.Close()
		next, err := r.open(rows, cl.args)
		if err != nil {
			return err
		}
		p := cl.plan
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return p.wrap(err)
			}
			if !tryGet && b.Has(schema.FailIfNoRowFound) {
				return sqlrepo.NewNoRowsError(p.repository, p.Method)
			}
			return nil
		}
		v, err := next()
		if err != nil {
			return p.wrap(err)
		}
		if b.Has(schema.FailIfMultipleRowsFound) {
			if rows.Next() {
				return sqlrepo.NewTooManyRowsError(p.repository, p.Method)
			}
			if err := rows.Err(); err != nil {
				return p.wrap(err)
			}
		}
		if tryGet {
			cl.out[p.out] = v
			cl.result(reflect.ValueOf(true).Convert(p.fn.Out(p.result)))
			return nil
		}
		cl.result(v)
		return nil
	}
}

// many reads every row into the declared slice type.
func many(s *Statement, r *reader) func(*call) error {
	return func(cl *call) error {
		rows, err := cl.query(s)
		if err != nil {
			return err
		}
		defer rows.Close()
		next, err := r.open(rows, cl.args)
		if err != nil {
			return err
		}
		out := reflect.MakeSlice(cl.plan.fn.Out(cl.plan.result), 0, 0)
		for rows.Next() {
			v, err := next()
			if err != nil {
				return cl.plan.wrap(err)
			}
			out = reflect.Append(out, v)
		}
		if err := rows.Err(); err != nil {
			return cl.plan.wrap(err)
		}
		cl.result(out)
		return nil
	}
}

// background returns a collection or sequence drained by a background
// goroutine. The goroutine owns the connection lease until the last row is
// read.
func background(s *Statement, r *reader, shape schema.ResultShape) func(*call) error {
	return func(cl *call) error {
		rows, err := cl.query(s)
		if err != nil {
			return err
		}
		next, err := r.open(rows, cl.args)
		if err != nil {
			rows.Close()
			return err
		}
		p := cl.plan
		release := cl.detach()
		var source iter.Seq2[any, error] = func(yield func(any, error) bool) {
			defer func() {
				rows.Close()
				release()
			}()
			for rows.Next() {
				v, err := next()
				if err != nil {
					yield(nil, p.wrap(err))
					return
				}
				if !yield(v.Interface(), nil) {
					return
				}
			}
			if err := rows.Err(); err != nil {
				yield(nil, p.wrap(err))
			}
		}
		t := p.fn.Out(p.result)
		if shape == schema.ShapeSeq {
			cl.result(seqOf(t, r.elem, sqlrepo.NewCollection(source)))
			return nil
		}
		dst := reflect.New(t.Elem())
		if err := sqlrepo.LoadInto(dst.Interface(), source); err != nil {
			rows.Close()
			release()
			return err
		}
		cl.result(dst)
		return nil
	}
}

// seqOf returns a function of the sequence type t replaying c.
func seqOf(t, elem reflect.Type, c *sqlrepo.Collection[any]) reflect.Value {
	return reflect.MakeFunc(t, func(in []reflect.Value) []reflect.Value {
		yield := in[0]
		for v, err := range c.All() {
			ev := reflect.Zero(elem)
			if v != nil {
				ev = reflect.ValueOf(v)
			}
			errv := reflect.Zero(errorType)
			if err != nil {
				errv = reflect.ValueOf(&err).Elem()
			}
			if !yield.Call([]reflect.Value{ev, errv})[0].Bool() {
				break
			}
		}
		return nil
	})
}
