package field

import (
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// A Type represents a primitive column type.
type Type uint8

// List of primitive types.
const (
	TypeInvalid Type = iota
	TypeBool
	TypeUint8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeDecimal
	TypeString
	TypeTime
	TypeBytes
	TypeUUID
	endTypes
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeBool:    "bool",
	TypeUint8:   "uint8",
	TypeInt16:   "int16",
	TypeInt32:   "int32",
	TypeInt64:   "int64",
	TypeFloat32: "float32",
	TypeFloat64: "float64",
	TypeDecimal: "decimal.Decimal",
	TypeString:  "string",
	TypeTime:    "time.Time",
	TypeBytes:   "[]byte",
	TypeUUID:    "uuid.UUID",
}

// String returns the Go name of the type.
func (t Type) String() string {
	if t < endTypes {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// Valid reports if the type is one of the registered primitives.
func (t Type) Valid() bool { return t > TypeInvalid && t < endTypes }

// Integer reports if the type is an integer type.
func (t Type) Integer() bool { return t >= TypeUint8 && t <= TypeInt64 }

// Numeric reports if the type is an integer, a float or a decimal.
func (t Type) Numeric() bool { return t >= TypeUint8 && t <= TypeDecimal }

// TypeInfo describes the Go type a column is read into and written from.
type TypeInfo struct {
	Type Type
	// Nullable is true for pointer types and for []byte.
	Nullable bool
	// Ident is the Go type as declared on the entity or method.
	Ident reflect.Type
}

// Base returns the non-pointer Go type.
func (ti *TypeInfo) Base() reflect.Type {
	if ti.Ident.Kind() == reflect.Pointer {
		return ti.Ident.Elem()
	}
	return ti.Ident
}

// Pointer reports if the declared type is a pointer.
func (ti *TypeInfo) Pointer() bool { return ti.Ident.Kind() == reflect.Pointer }

// Enum reports if the base type is a user defined named type
// that resolves through its underlying kind.
func (ti *TypeInfo) Enum() bool {
	b := ti.Base()
	_, builtin := registry[b]
	return !builtin
}

// String returns the declared Go type.
func (ti *TypeInfo) String() string { return ti.Ident.String() }

var (
	timeType    = reflect.TypeOf(time.Time{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
	bytesType   = reflect.TypeOf([]byte(nil))

	// registry maps the builtin Go types to their primitive. It is
	// populated once during package initialization and never mutated.
	registry map[reflect.Type]Type

	kinds = map[reflect.Kind]Type{
		reflect.Bool:    TypeBool,
		reflect.Uint8:   TypeUint8,
		reflect.Int16:   TypeInt16,
		reflect.Int32:   TypeInt32,
		reflect.Int64:   TypeInt64,
		reflect.Int:     TypeInt64,
		reflect.Float32: TypeFloat32,
		reflect.Float64: TypeFloat64,
		reflect.String:  TypeString,
	}
)

func init() {
	registry = map[reflect.Type]Type{
		reflect.TypeOf(false):      TypeBool,
		reflect.TypeOf(uint8(0)):   TypeUint8,
		reflect.TypeOf(int16(0)):   TypeInt16,
		reflect.TypeOf(int32(0)):   TypeInt32,
		reflect.TypeOf(int64(0)):   TypeInt64,
		reflect.TypeOf(0):          TypeInt64,
		reflect.TypeOf(float32(0)): TypeFloat32,
		reflect.TypeOf(float64(0)): TypeFloat64,
		reflect.TypeOf(""):         TypeString,
		timeType:                   TypeTime,
		decimalType:                TypeDecimal,
		bytesType:                  TypeBytes,
		uuidType:                   TypeUUID,
	}
}

// Lookup returns the primitive type information for t.
// It returns false if t is not a registered primitive or a nullable variant of one.
func Lookup(t reflect.Type) (*TypeInfo, bool) {
	if t == nil {
		return nil, false
	}
	if t.Kind() == reflect.Pointer {
		base, ok := lookupBase(t.Elem())
		if !ok || base == TypeBytes {
			return nil, false
		}
		return &TypeInfo{Type: base, Nullable: true, Ident: t}, true
	}
	base, ok := lookupBase(t)
	if !ok {
		return nil, false
	}
	return &TypeInfo{Type: base, Nullable: base == TypeBytes, Ident: t}, true
}

func lookupBase(t reflect.Type) (Type, bool) {
	if typ, ok := registry[t]; ok {
		return typ, true
	}
	switch {
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8:
		return TypeBytes, true
	case t.ConvertibleTo(timeType) && t.Kind() == reflect.Struct && t.NumField() == timeType.NumField():
		return TypeTime, true
	case t.Kind() == reflect.Array && t.ConvertibleTo(uuidType):
		return TypeUUID, true
	case t.Kind() == reflect.Struct && t.ConvertibleTo(decimalType):
		return TypeDecimal, true
	}
	typ, ok := kinds[t.Kind()]
	return typ, ok
}
