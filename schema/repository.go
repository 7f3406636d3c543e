package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/syssam/sqlrepo/dialect"
)

var (
	// ErrFrozen is returned by setters of a compiled repository definition.
	ErrFrozen = errors.New("schema: repository definition is compiled and can no longer change")
	// ErrUnknownName is returned when a setter names a property or method
	// the definition does not have.
	ErrUnknownName = errors.New("schema: unknown name")
	// ErrNoEntity is returned by entity setters of a definition without entity.
	ErrNoEntity = errors.New("schema: repository has no entity")
)

// RepositoryDef is the inferred description of one repository contract.
type RepositoryDef struct {
	// Contract is the contract struct type.
	Contract reflect.Type
	// Name is the contract type name.
	Name    string
	Entity  *EntityDef
	Methods []*MethodDef
	Dialect dialect.Dialect
	// ExplicitPrimaryKey is true once SetPrimaryKey was called.
	ExplicitPrimaryKey bool

	frozen atomic.Bool
}

// Freeze marks the definition as compiled.
func (r *RepositoryDef) Freeze() { r.frozen.Store(true) }

// Frozen reports if the definition was compiled.
func (r *RepositoryDef) Frozen() bool { return r.frozen.Load() }

// Method returns the method with the given name, or nil.
func (r *RepositoryDef) Method(name string) *MethodDef {
	for _, m := range r.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// HasKind reports if any method has kind k.
func (r *RepositoryDef) HasKind(k MethodKind) bool {
	for _, m := range r.Methods {
		if m.Kind == k {
			return true
		}
	}
	return false
}

func (r *RepositoryDef) mutable() error {
	if r.Frozen() {
		return fmt.Errorf("%w: %s", ErrFrozen, r.Name)
	}
	return nil
}

func (r *RepositoryDef) entity() (*EntityDef, error) {
	if err := r.mutable(); err != nil {
		return nil, err
	}
	if r.Entity == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoEntity, r.Name)
	}
	return r.Entity, nil
}

func (r *RepositoryDef) property(name string) (*PropertyDef, error) {
	e, err := r.entity()
	if err != nil {
		return nil, err
	}
	p := e.Property(name)
	if p == nil {
		return nil, fmt.Errorf("%w: property %s.%s", ErrUnknownName, e.Name, name)
	}
	return p, nil
}

func (r *RepositoryDef) method(name string) (*MethodDef, error) {
	if err := r.mutable(); err != nil {
		return nil, err
	}
	m := r.Method(name)
	if m == nil {
		return nil, fmt.Errorf("%w: method %s.%s", ErrUnknownName, r.Name, name)
	}
	return m, nil
}

// SetTableName overrides the table name.
func (r *RepositoryDef) SetTableName(name string) error {
	e, err := r.entity()
	if err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return errors.New("schema: empty table name")
	}
	e.Table = name
	return nil
}

// SetPrimaryKey sets the primary key to the named properties, in order.
// An explicit key disables key inference and its ambiguity check.
func (r *RepositoryDef) SetPrimaryKey(names ...string) error {
	e, err := r.entity()
	if err != nil {
		return err
	}
	key := make([]*PropertyDef, 0, len(names))
	for _, n := range names {
		p, err := r.property(n)
		if err != nil {
			return err
		}
		key = append(key, p)
	}
	e.PrimaryKey = key
	r.ExplicitPrimaryKey = true
	return nil
}

// SetDialect selects the dialect the repository is compiled for.
func (r *RepositoryDef) SetDialect(d dialect.Dialect) error {
	if err := r.mutable(); err != nil {
		return err
	}
	if d == nil {
		return errors.New("schema: nil dialect")
	}
	r.Dialect = d
	return nil
}

// SetColumnName overrides the column name of a property.
func (r *RepositoryDef) SetColumnName(property, column string) error {
	p, err := r.property(property)
	if err != nil {
		return err
	}
	if strings.TrimSpace(column) == "" {
		return fmt.Errorf("schema: empty column name for %s", property)
	}
	p.Column = column
	return nil
}

// SetStringWidth overrides the width of a text column.
func (r *RepositoryDef) SetStringWidth(property string, width int) error {
	p, err := r.property(property)
	if err != nil {
		return err
	}
	if width <= 0 {
		return fmt.Errorf("schema: invalid width %d for %s", width, property)
	}
	p.Width = &width
	return nil
}

// SetCustomSQL attaches hand-written SQL to a method, which makes it a
// Custom method. With storedProcedure set, query is a procedure name.
// An empty query detaches the SQL and restores name-based classification.
func (r *RepositoryDef) SetCustomSQL(method, query string, storedProcedure bool) error {
	m, err := r.method(method)
	if err != nil {
		return err
	}
	m.CustomSQL = query
	m.IsStoredProcedure = storedProcedure && query != ""
	m.Reclassify()
	r.InferKeys()
	return nil
}

// InferKeys derives the primary key and the identity flag of the entity
// from the current method kinds. The key is the parameter list of the
// singleton getter with the most primitive parameters, the first declared
// on ties. Without such a getter, a property named Id or <Entity>Id is the
// key. A key set through SetPrimaryKey is kept.
func (r *RepositoryDef) InferKeys() {
	e := r.Entity
	if e == nil {
		return
	}
	e.HasIdentity = r.HasKind(KindCreate)
	if !r.ExplicitPrimaryKey {
		e.PrimaryKey = inferPrimaryKey(r.Methods, e)
	}
}

func inferPrimaryKey(methods []*MethodDef, e *EntityDef) []*PropertyDef {
	var best *MethodDef
	for _, m := range methods {
		if m.Kind != KindGet || !m.IsSingleton || EntityStruct(m.RowType()) != e.Type {
			continue
		}
		if n := len(m.Primitives()); n > 0 && (best == nil || n > len(best.Primitives())) {
			best = m
		}
	}
	if best != nil {
		var key []*PropertyDef
		for _, p := range best.Primitives() {
			if p.Property != nil && e.IsColumn(p.Property) {
				key = append(key, p.Property)
			}
		}
		return key
	}
	for _, c := range e.Columns {
		if strings.EqualFold(c.Name, "Id") || strings.EqualFold(c.Name, e.Name+"Id") {
			return []*PropertyDef{c}
		}
	}
	return nil
}

// SetSingletonGetBehavior sets how a singleton read treats zero or several rows.
func (r *RepositoryDef) SetSingletonGetBehavior(method string, b SingletonGetBehavior) error {
	m, err := r.method(method)
	if err != nil {
		return err
	}
	if b&^Strict != 0 {
		return fmt.Errorf("schema: invalid singleton get behavior %d", b)
	}
	m.SingletonGetBehavior = b
	return nil
}
