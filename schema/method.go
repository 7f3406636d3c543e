package schema

import (
	"context"
	"database/sql"
	"reflect"

	"github.com/syssam/sqlrepo"
	"github.com/syssam/sqlrepo/schema/field"
)

// ParameterKind tells how a method parameter is used.
type ParameterKind uint8

// List of parameter kinds.
const (
	ParamPrimitive ParameterKind = iota
	ParamEntity
	ParamOut
	ParamConnection
	ParamTransaction
	ParamContext
	ParamUnsupported
)

var paramKindNames = [...]string{
	ParamPrimitive:   "primitive",
	ParamEntity:      "entity",
	ParamOut:         "out",
	ParamConnection:  "connection",
	ParamTransaction: "transaction",
	ParamContext:     "context",
	ParamUnsupported: "unsupported",
}

func (k ParameterKind) String() string {
	if int(k) < len(paramKindNames) {
		return paramKindNames[k]
	}
	return "invalid"
}

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
	dbType      = reflect.TypeFor[*sql.DB]()
	connType    = reflect.TypeFor[*sql.Conn]()
	txType      = reflect.TypeFor[*sql.Tx]()
)

// ParameterKindOf classifies a parameter of type t. Struct and pointer to
// struct parameters are entity parameters.
func ParameterKindOf(t reflect.Type) ParameterKind {
	switch {
	case t == contextType:
		return ParamContext
	case t == dbType || t == connType:
		return ParamConnection
	case t == txType:
		return ParamTransaction
	}
	if _, ok := field.Lookup(t); ok {
		return ParamPrimitive
	}
	if EntityStruct(t) != nil {
		return ParamEntity
	}
	return ParamUnsupported
}

// ParameterDetails describes one parameter of a contract method. TryGet
// entity results are described as ParamOut parameters.
type ParameterDetails struct {
	Name string
	Kind ParameterKind
	// Index is the argument position, or the result position for ParamOut.
	Index int
	Type  reflect.Type
	// Info is set for primitive parameters.
	Info *field.TypeInfo
	// Property is the entity property a primitive parameter binds to.
	Property *PropertyDef
}

// ResultShape is the shape of the main result of a method.
type ResultShape uint8

// List of result shapes.
const (
	ShapeNone ResultShape = iota
	ShapeScalar
	ShapeEntity
	ShapeSlice
	ShapeSeq
	ShapeCollection
	ShapeUnsupported
)

// Enumerable reports if the shape yields any number of rows.
func (s ResultShape) Enumerable() bool {
	return s == ShapeSlice || s == ShapeSeq || s == ShapeCollection
}

// ShapeOf returns the shape of a result type and the row type it carries:
// the element type for enumerable shapes and t itself otherwise.
func ShapeOf(t reflect.Type) (ResultShape, reflect.Type) {
	if t == nil {
		return ShapeNone, nil
	}
	if _, ok := field.Lookup(t); ok {
		return ShapeScalar, t
	}
	if elem, ok := sqlrepo.CollectionElem(t); ok {
		return ShapeCollection, elem
	}
	if elem, ok := seqElem(t); ok {
		return ShapeSeq, elem
	}
	switch {
	case t.Kind() == reflect.Slice:
		return ShapeSlice, t.Elem()
	case EntityStruct(t) != nil:
		return ShapeEntity, t
	}
	return ShapeUnsupported, t
}

// seqElem matches iter.Seq2[T, error] and returns T.
func seqElem(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() != reflect.Func || t.NumIn() != 1 || t.NumOut() != 0 {
		return nil, false
	}
	y := t.In(0)
	if y.Kind() != reflect.Func || y.NumIn() != 2 || y.NumOut() != 1 ||
		y.In(1) != errorType || y.Out(0).Kind() != reflect.Bool {
		return nil, false
	}
	return y.In(0), true
}

// EntityStruct returns the struct type of t when t is a struct or a pointer
// to a struct, and nil otherwise. Registered primitives such as time.Time
// are not entities.
func EntityStruct(t reflect.Type) reflect.Type {
	if t == nil {
		return nil
	}
	if _, ok := field.Lookup(t); ok {
		return nil
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	if _, ok := field.Lookup(t); ok {
		return nil
	}
	return t
}

// MethodDef describes one contract method.
type MethodDef struct {
	Name string
	// Func is the func type of the contract field.
	Func       reflect.Type
	Parameters []*ParameterDetails
	// ReturnType is the last non-error result, or nil.
	ReturnType reflect.Type
	// ReturnIndex is the result position of ReturnType, or -1.
	ReturnIndex int
	// Shape and Elem describe ReturnType.
	Shape ResultShape
	Elem  reflect.Type
	// HasError is true if the last result is an error.
	HasError bool
	// Extra is set when the method declares results beyond the supported
	// [out,] [return,] error layout.
	Extra bool

	Kind          MethodKind
	IsSingleton   bool
	IsTryGet      bool
	IsSimpleQuery bool

	OutParameter                     *ParameterDetails
	ConnectionOrTransactionParameter *ParameterDetails
	EntityParameter                  *ParameterDetails
	ContextParameter                 *ParameterDetails

	CustomSQL            string
	IsStoredProcedure    bool
	SingletonGetBehavior SingletonGetBehavior

	// Entity is the row type the method reads or writes. It is the
	// repository entity unless a custom method returns another struct.
	Entity *EntityDef
}

// HasCustomSQL reports if hand-written SQL is attached.
func (m *MethodDef) HasCustomSQL() bool { return m.CustomSQL != "" }

// Primitives returns the primitive parameters in declaration order.
func (m *MethodDef) Primitives() []*ParameterDetails {
	var ps []*ParameterDetails
	for _, p := range m.Parameters {
		if p.Kind == ParamPrimitive {
			ps = append(ps, p)
		}
	}
	return ps
}

// RowType returns the row type the method materializes: the out parameter
// type for TryGet methods and the result element otherwise.
func (m *MethodDef) RowType() reflect.Type {
	if m.IsTryGet {
		if m.OutParameter == nil {
			return nil
		}
		return m.OutParameter.Type
	}
	return m.Elem
}

// Reclassify recomputes the derived flags from the signature and attached SQL.
func (m *MethodDef) Reclassify() {
	m.Kind = Classify(m.Name, m.HasCustomSQL())
	m.IsTryGet = IsTryGetName(m.Name)
	m.IsSingleton = m.IsTryGet || !m.Shape.Enumerable()
	m.IsSimpleQuery = !m.IsTryGet && m.Shape == ShapeScalar
}
