package sql

import (
	"database/sql"
	"fmt"
	"reflect"

	dsql "github.com/syssam/sqlrepo/dialect/sql"
	"github.com/syssam/sqlrepo/schema"
	"github.com/syssam/sqlrepo/schema/field"
)

// slot is one property of a materialized row.
type slot struct {
	column string
	index  []int
	info   *field.TypeInfo
	// arg is the method argument supplying the value, or -1 when the
	// value is read from the result.
	arg int
}

// rowType materializes rows of one entity struct, either by assigning the
// properties of a new value or by calling the entity constructor with the
// slot values in order.
type rowType struct {
	typ   reflect.Type
	slots []slot
	ctor  reflect.Value
}

// newRowType returns the row type of e. Properties in bound are taken from
// the method argument with the mapped index instead of the result.
func newRowType(e *schema.EntityDef, bound map[*schema.PropertyDef]int) *rowType {
	r := &rowType{typ: e.Type}
	if e.CreateThroughConstructor && e.Constructor != nil {
		r.ctor = e.Constructor.Func
	}
	for _, p := range e.Columns {
		s := slot{column: p.Column, index: p.Index, info: p.Info, arg: -1}
		if i, ok := bound[p]; ok {
			s.arg = i
		}
		r.slots = append(r.slots, s)
	}
	return r
}

// selected returns the columns read from the result, in slot order.
func (r *rowType) selected() []string {
	var cols []string
	for _, s := range r.slots {
		if s.arg < 0 {
			cols = append(cols, s.column)
		}
	}
	return cols
}

// positions returns the result position of every slot for a select list
// built from selected.
func (r *rowType) positions() []int {
	pos := make([]int, len(r.slots))
	n := 0
	for i, s := range r.slots {
		if s.arg >= 0 {
			pos[i] = -1
			continue
		}
		pos[i] = n
		n++
	}
	return pos
}

func (r *rowType) read(rows *sql.Rows, width int, pos []int, args []reflect.Value) (reflect.Value, error) {
	dests := placeholders(width)
	for i := range r.slots {
		if p := pos[i]; p >= 0 {
			dests[p] = r.slots[i].info.ScanDest()
		}
	}
	if err := rows.Scan(dests...); err != nil {
		return reflect.Value{}, err
	}
	values := make([]reflect.Value, len(r.slots))
	for i := range r.slots {
		s := &r.slots[i]
		if pos[i] < 0 {
			values[i] = coerce(args[s.arg], s.info)
			continue
		}
		v, err := s.info.Scanned(dests[pos[i]])
		if err != nil {
			return reflect.Value{}, fmt.Errorf("sql: column %s: %w", s.column, err)
		}
		values[i] = v
	}
	if r.ctor.IsValid() {
		return r.ctor.Call(values)[0], nil
	}
	v := reflect.New(r.typ)
	for i := range r.slots {
		v.Elem().FieldByIndex(r.slots[i].index).Set(values[i])
	}
	return v, nil
}

// reader turns the rows of one result set into values of elem.
type reader struct {
	// row is nil for rows of a primitive type.
	row  *rowType
	prim *field.TypeInfo
	elem reflect.Type
	// pos are the fixed slot positions of generated statements. Hand-written
	// statements resolve positions by column name through helper.
	pos    []int
	query  string
	helper *dsql.ReaderHelper
}

// open resolves the columns of rows and returns the function reading the
// current row. Column problems are reported before any row is read.
func (r *reader) open(rows *sql.Rows, args []reflect.Value) (func() (reflect.Value, error), error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	width := len(cols)
	if r.row == nil {
		return func() (reflect.Value, error) {
			return scanFirst(rows, width, r.prim)
		}, nil
	}
	pos := r.pos
	if pos == nil {
		names := make([]string, len(r.row.slots))
		for i, s := range r.row.slots {
			names[i] = s.column
		}
		if pos, err = r.helper.Indexes(r.query, cols, names); err != nil {
			return nil, err
		}
	}
	return func() (reflect.Value, error) {
		v, err := r.row.read(rows, width, pos, args)
		if err != nil {
			return reflect.Value{}, err
		}
		return as(v, r.elem), nil
	}, nil
}

// scanFirst reads the first column of the current row as info.
func scanFirst(rows *sql.Rows, width int, info *field.TypeInfo) (reflect.Value, error) {
	dests := placeholders(max(width, 1))
	dests[0] = info.ScanDest()
	if err := rows.Scan(dests...); err != nil {
		return reflect.Value{}, err
	}
	return info.Scanned(dests[0])
}

func placeholders(n int) []any {
	dests := make([]any, n)
	for i := range dests {
		dests[i] = new(any)
	}
	return dests
}

// as converts an entity value or pointer to t, which is the struct type or
// a pointer to it.
func as(v reflect.Value, t reflect.Type) reflect.Value {
	if t.Kind() == reflect.Pointer {
		if v.Kind() == reflect.Pointer {
			return v
		}
		p := reflect.New(v.Type())
		p.Elem().Set(v)
		return p
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Zero(t)
		}
		return v.Elem()
	}
	return v
}

// coerce converts an argument to the declared type of a property with the
// same base type.
func coerce(v reflect.Value, info *field.TypeInfo) reflect.Value {
	t := info.Ident
	switch {
	case v.Type() == t:
		return v
	case v.Kind() == reflect.Pointer && t.Kind() != reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(t)
		}
		return v.Elem().Convert(t)
	case t.Kind() == reflect.Pointer && v.Kind() != reflect.Pointer:
		p := reflect.New(t.Elem())
		p.Elem().Set(v.Convert(t.Elem()))
		return p
	}
	return v.Convert(t)
}

// integer returns n as a value of the integer type t or *t.
func integer(n int64, t reflect.Type) reflect.Value {
	if t.Kind() == reflect.Pointer {
		p := reflect.New(t.Elem())
		p.Elem().Set(reflect.ValueOf(n).Convert(t.Elem()))
		return p
	}
	return reflect.ValueOf(n).Convert(t)
}
