package dialect

import (
	"strconv"
	"strings"

	"github.com/syssam/sqlrepo/schema/field"
)

// Full is the full-featured dialect: unbounded text, batched
// scope_identity(), stored procedures and merge based upserts.
var Full Dialect = full{}

type full struct{}

func (full) Name() string { return FullName }

func (full) Param(name string) string { return "@" + name }

func (full) ColumnType(info *field.TypeInfo, width *int) string {
	switch info.Type {
	case field.TypeBool:
		return "bit"
	case field.TypeUint8:
		return "tinyint"
	case field.TypeInt16:
		return "smallint"
	case field.TypeInt32:
		return "int"
	case field.TypeInt64:
		return "bigint"
	case field.TypeFloat32:
		return "real"
	case field.TypeFloat64:
		return "float"
	case field.TypeDecimal:
		return "decimal(18,4)"
	case field.TypeString:
		if width != nil {
			return "nvarchar(" + strconv.Itoa(*width) + ")"
		}
		return "nvarchar(max)"
	case field.TypeTime:
		return "datetime2"
	case field.TypeBytes:
		return "varbinary(max)"
	case field.TypeUUID:
		return "uniqueidentifier"
	default:
		return "sql_variant"
	}
}

func (d full) IdentityType(info *field.TypeInfo) string {
	if info.Type == field.TypeInt64 {
		return "bigint identity(1,1)"
	}
	return "int identity(1,1)"
}

func (full) LastIdentity() string { return "select scope_identity()" }

func (full) BatchIdentity() bool { return true }

func (full) TableExists() string {
	return "select count(*) from information_schema.tables where table_name = @tableName"
}

func (full) Exists(query string) string {
	return "select case when exists (" + query + ") then 1 else 0 end"
}

func (d full) ProcedureCall(name string, names []string) string {
	if len(names) == 0 {
		return "exec " + name
	}
	args := make([]string, len(names))
	for i, n := range names {
		args[i] = d.Param(n) + " = " + d.Param(n)
	}
	return "exec " + name + " " + strings.Join(args, ", ")
}

func (d full) Upsert(table string, columns, keys []string) string {
	var b strings.Builder
	b.WriteString("merge into ")
	b.WriteString(table)
	b.WriteString(" with (holdlock) as target using (select ")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.Param(c) + " as " + c)
	}
	b.WriteString(") as source on ")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(" and ")
		}
		b.WriteString("target." + k + " = source." + k)
	}
	var sets []string
	for _, c := range columns {
		if !contains(keys, c) {
			sets = append(sets, c+" = source."+c)
		}
	}
	if len(sets) > 0 {
		b.WriteString(" when matched then update set ")
		b.WriteString(strings.Join(sets, ", "))
	}
	b.WriteString(" when not matched then insert (")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(") values (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("source." + c)
	}
	b.WriteString(");")
	return b.String()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
