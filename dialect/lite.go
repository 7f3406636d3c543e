package dialect

import (
	"strconv"
	"strings"

	"github.com/syssam/sqlrepo/schema/field"
)

// DefaultLiteWidth is the width of text columns without an explicit override.
const DefaultLiteWidth = 255

// Lite is the lightweight dialect modelled on SQLite: fixed-width text,
// rowid identities read with last_insert_rowid() and no stored procedures.
var Lite Dialect = lite{}

type lite struct{}

func (lite) Name() string { return LiteName }

func (lite) Param(name string) string { return "@" + name }

func (lite) ColumnType(info *field.TypeInfo, width *int) string {
	switch info.Type {
	case field.TypeBool:
		return "boolean"
	case field.TypeUint8, field.TypeInt16, field.TypeInt32, field.TypeInt64:
		return "integer"
	case field.TypeFloat32, field.TypeFloat64:
		return "real"
	case field.TypeDecimal:
		// Stored as text so that values keep every digit.
		return "text"
	case field.TypeString:
		w := DefaultLiteWidth
		if width != nil {
			w = *width
		}
		return "varchar(" + strconv.Itoa(w) + ")"
	case field.TypeTime:
		return "datetime"
	case field.TypeBytes:
		return "blob"
	case field.TypeUUID:
		return "char(36)"
	default:
		return "text"
	}
}

// IdentityType returns integer so the key column aliases the rowid.
func (lite) IdentityType(*field.TypeInfo) string { return "integer" }

func (lite) LastIdentity() string { return "select last_insert_rowid()" }

func (lite) BatchIdentity() bool { return false }

func (lite) TableExists() string {
	return "select count(*) from sqlite_master where type = 'table' and name = @tableName"
}

func (lite) Exists(query string) string {
	return "select exists (" + query + ")"
}

func (d lite) Upsert(table string, columns, _ []string) string {
	return "insert or replace into " + table + " (" + strings.Join(columns, ", ") +
		") values (" + strings.Join(params(d, columns), ", ") + ")"
}
