// Package field holds the closed set of primitive column types a repository
// entity may use, and the process-wide registry that maps Go types onto them.
//
// # Types
//
//	bool                 TypeBool
//	uint8 (byte)         TypeUint8
//	int16                TypeInt16
//	int32                TypeInt32
//	int, int64           TypeInt64
//	float32              TypeFloat32
//	float64              TypeFloat64
//	decimal.Decimal      TypeDecimal
//	string               TypeString
//	time.Time            TypeTime
//	[]byte               TypeBytes
//	uuid.UUID            TypeUUID
//
// Pointers to any of the above are the nullable variants. []byte is nullable
// on its own. Named types (enums such as `type Status int32`) resolve through
// their underlying kind and convert back on read.
//
// # Usage
//
//	info, ok := field.Lookup(reflect.TypeOf((*int32)(nil)))
//	// info.Type == field.TypeInt32, info.Nullable == true
//
//	arg := info.Value(reflect.ValueOf(&n)) // driver argument
//	dst := info.ScanDest()                 // pass to rows.Scan
//	err := info.Assign(target, dst)        // write the scanned value back
package field
