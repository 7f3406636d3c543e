package sql

import (
	"database/sql"
	"errors"
	"reflect"

	"github.com/syssam/sqlrepo/schema/field"
)

// ErrNilEntity is returned when a nil entity pointer is passed to a method
// reading values from it.
var ErrNilEntity = errors.New("sql: nil entity argument")

// From tells where the value of a statement parameter comes from.
type From uint8

// Parameter sources.
const (
	// FromArgument binds a primitive method argument.
	FromArgument From = iota
	// FromEntity binds a property of the entity argument.
	FromEntity
	// FromConstant binds a value fixed at compile time.
	FromConstant
)

// Binding binds one named statement parameter.
type Binding struct {
	// Name is the parameter name without the dialect prefix.
	Name string
	From From
	// Arg is the index of the method argument.
	Arg int
	// Index is the field index of the property for FromEntity.
	Index []int
	Info  *field.TypeInfo
	// Value is the bound value for FromConstant.
	Value any
}

func (b *Binding) value(args []reflect.Value) (any, error) {
	switch b.From {
	case FromConstant:
		return b.Value, nil
	case FromEntity:
		ev, err := entityValue(args[b.Arg])
		if err != nil {
			return nil, err
		}
		return b.Info.Value(ev.FieldByIndex(b.Index)), nil
	default:
		return b.Info.Value(args[b.Arg]), nil
	}
}

// Statement is one SQL command with its ordered parameter bindings.
type Statement struct {
	SQL      string
	Bindings []Binding
}

// Args returns the named driver arguments of the statement for one call.
func (s *Statement) Args(args []reflect.Value) ([]any, error) {
	if len(s.Bindings) == 0 {
		return nil, nil
	}
	out := make([]any, len(s.Bindings))
	for i := range s.Bindings {
		b := &s.Bindings[i]
		v, err := b.value(args)
		if err != nil {
			return nil, err
		}
		out[i] = sql.Named(b.Name, v)
	}
	return out, nil
}

// entityValue dereferences an entity argument.
func entityValue(v reflect.Value) (reflect.Value, error) {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, ErrNilEntity
		}
		v = v.Elem()
	}
	return v, nil
}
