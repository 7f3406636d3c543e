package schema

import (
	"reflect"
	"strings"

	"github.com/syssam/sqlrepo/schema/field"
)

// PropertyDef is one settable entity field and the column it maps to.
type PropertyDef struct {
	// Name is the Go field name.
	Name string
	// Column is the column name, derived from the naming convention
	// unless overridden.
	Column string
	// Info is the primitive type of the field.
	Info *field.TypeInfo
	// Index is the field index sequence for reflect.Value.FieldByIndex.
	Index []int
	// Width overrides the default width of a text column.
	Width *int
}

// Type returns the Go type of the field.
func (p *PropertyDef) Type() reflect.Type { return p.Info.Ident }

// Constructor is a registered function building the entity from column values.
type Constructor struct {
	// Func has signature func(args...) E or func(args...) *E.
	Func reflect.Value
	// Params are the declared parameter names, in order.
	Params []string
	// Properties are the properties matching Params, in order. Nil entries
	// mark parameters without a matching property.
	Properties []*PropertyDef
}

// Qualifies reports if every parameter matches a property of the same type.
func (c *Constructor) Qualifies() bool {
	if len(c.Properties) == 0 || len(c.Properties) != len(c.Params) {
		return false
	}
	for i, p := range c.Properties {
		if p == nil || c.Func.Type().In(i) != p.Type() {
			return false
		}
	}
	return true
}

// EntityDef describes the row type of a repository and the table it lives in.
type EntityDef struct {
	// Type is the entity struct type.
	Type reflect.Type
	// Name is the struct type name.
	Name string
	// Table is the table name.
	Table string
	// Properties are all exported, settable fields of a primitive type.
	Properties []*PropertyDef
	// Columns are the persisted properties, unique by column name.
	Columns []*PropertyDef
	// PrimaryKey is an ordered subset of Columns.
	PrimaryKey []*PropertyDef
	// HasIdentity is true if the key is assigned by the database.
	HasIdentity bool
	// CreateThroughConstructor is true if rows are materialized by calling
	// Constructor instead of assigning properties of a zero value.
	CreateThroughConstructor bool
	Constructor              *Constructor
	// Constructors are all registered constructors.
	Constructors []*Constructor
}

// Property returns the property with the given name, compared case-insensitively.
func (e *EntityDef) Property(name string) *PropertyDef {
	for _, p := range e.Properties {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}

// Column returns the column property with the given column name.
func (e *EntityDef) Column(name string) *PropertyDef {
	for _, p := range e.Columns {
		if strings.EqualFold(p.Column, name) {
			return p
		}
	}
	return nil
}

// IsColumn reports if p is a persisted column.
func (e *EntityDef) IsColumn(p *PropertyDef) bool {
	for _, c := range e.Columns {
		if c == p {
			return true
		}
	}
	return false
}

// IsKey reports if p is part of the primary key.
func (e *EntityDef) IsKey(p *PropertyDef) bool {
	for _, k := range e.PrimaryKey {
		if k == p {
			return true
		}
	}
	return false
}

// NonKeyColumns returns the columns not in the primary key, in column order.
func (e *EntityDef) NonKeyColumns() []*PropertyDef {
	cols := make([]*PropertyDef, 0, len(e.Columns))
	for _, c := range e.Columns {
		if !e.IsKey(c) {
			cols = append(cols, c)
		}
	}
	return cols
}

// Identity returns the database-assigned key column, or nil.
func (e *EntityDef) Identity() *PropertyDef {
	if !e.HasIdentity || len(e.PrimaryKey) != 1 {
		return nil
	}
	return e.PrimaryKey[0]
}

// ColumnNames returns the column names of props.
func ColumnNames(props []*PropertyDef) []string {
	names := make([]string, len(props))
	for i, p := range props {
		names[i] = p.Column
	}
	return names
}
