package field

import (
	"database/sql"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var builtins = [...]reflect.Type{
	TypeBool:    reflect.TypeOf(false),
	TypeUint8:   reflect.TypeOf(uint8(0)),
	TypeInt16:   reflect.TypeOf(int16(0)),
	TypeInt32:   reflect.TypeOf(int32(0)),
	TypeInt64:   reflect.TypeOf(int64(0)),
	TypeFloat32: reflect.TypeOf(float32(0)),
	TypeFloat64: reflect.TypeOf(float64(0)),
	TypeDecimal: decimalType,
	TypeString:  reflect.TypeOf(""),
	TypeTime:    timeType,
	TypeBytes:   bytesType,
	TypeUUID:    uuidType,
}

// Value returns the driver argument for v, which must be of type ti.Ident.
// A nil pointer yields nil. A nil blob yields an explicitly typed null so
// drivers that care about parameter types bind it as binary.
func (ti *TypeInfo) Value(v reflect.Value) any {
	if ti.Pointer() {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	switch ti.Type {
	case TypeBytes:
		if v.IsNil() {
			return sql.Null[[]byte]{}
		}
		return v.Convert(bytesType).Interface()
	case TypeUUID:
		return v.Convert(uuidType).Interface().(uuid.UUID).String()
	case TypeDecimal:
		return v.Convert(decimalType).Interface().(decimal.Decimal).String()
	case TypeTime:
		return v.Convert(timeType).Interface().(time.Time)
	default:
		return v.Convert(builtins[ti.Type]).Interface()
	}
}

// Null reports if v holds the SQL NULL value for the type.
func (ti *TypeInfo) Null(v reflect.Value) bool {
	switch {
	case ti.Pointer():
		return v.IsNil()
	case ti.Type == TypeBytes:
		return v.IsNil()
	}
	return false
}

// IsZero reports if v is the zero value of its type. Used to decide
// whether an identity key has been assigned.
func (ti *TypeInfo) IsZero(v reflect.Value) bool {
	if ti.Pointer() {
		return v.IsNil() || v.Elem().IsZero()
	}
	return v.IsZero()
}

// ScanDest returns a fresh destination for sql.Rows.Scan that accepts
// NULL for any type.
func (ti *TypeInfo) ScanDest() any {
	switch ti.Type {
	case TypeBool:
		return new(sql.NullBool)
	case TypeUint8, TypeInt16, TypeInt32, TypeInt64:
		return new(sql.NullInt64)
	case TypeFloat32, TypeFloat64:
		return new(sql.NullFloat64)
	case TypeDecimal:
		return new(decimal.NullDecimal)
	case TypeString:
		return new(sql.NullString)
	case TypeTime:
		return new(sql.NullTime)
	case TypeBytes:
		return new([]byte)
	case TypeUUID:
		return new(uuid.NullUUID)
	default:
		panic(fmt.Sprintf("field: no scan destination for %s", ti.Type))
	}
}

// Assign writes a value previously scanned into dest (as returned by
// ScanDest) to the settable value dst of type ti.Ident. SQL NULL becomes
// nil for nullable types and the zero value otherwise. Numbers that do not
// fit the declared type are rejected.
func (ti *TypeInfo) Assign(dst reflect.Value, dest any) error {
	raw, valid := unwrap(dest)
	if !valid {
		dst.Set(reflect.Zero(ti.Ident))
		return nil
	}
	rv := reflect.ValueOf(raw)
	base := ti.Base()
	if !rv.Type().ConvertibleTo(base) {
		return fmt.Errorf("field: cannot convert %s to %s", rv.Type(), base)
	}
	if overflows(rv, base) {
		return fmt.Errorf("field: value %v overflows %s", raw, base)
	}
	rv = rv.Convert(base)
	if ti.Pointer() {
		p := reflect.New(base)
		p.Elem().Set(rv)
		rv = p
	}
	dst.Set(rv)
	return nil
}

func overflows(rv reflect.Value, t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.CanInt() && t.OverflowInt(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.CanInt() && (rv.Int() < 0 || t.OverflowUint(uint64(rv.Int())))
	case reflect.Float32:
		return rv.CanFloat() && t.OverflowFloat(rv.Float())
	}
	return false
}

// Scanned returns a new value of type ti.Ident holding the scanned dest.
func (ti *TypeInfo) Scanned(dest any) (reflect.Value, error) {
	v := reflect.New(ti.Ident).Elem()
	if err := ti.Assign(v, dest); err != nil {
		return reflect.Value{}, err
	}
	return v, nil
}

func unwrap(dest any) (any, bool) {
	switch d := dest.(type) {
	case *sql.NullBool:
		return d.Bool, d.Valid
	case *sql.NullInt64:
		return d.Int64, d.Valid
	case *sql.NullFloat64:
		return d.Float64, d.Valid
	case *sql.NullString:
		return d.String, d.Valid
	case *sql.NullTime:
		return d.Time, d.Valid
	case *[]byte:
		return *d, *d != nil
	case *uuid.NullUUID:
		return d.UUID, d.Valid
	case *decimal.NullDecimal:
		return d.Decimal, d.Valid
	default:
		return nil, false
	}
}
