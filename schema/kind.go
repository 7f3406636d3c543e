package schema

import (
	"fmt"
	"strings"
)

// MethodKind is the operation a contract method performs.
type MethodKind uint8

// List of method kinds.
const (
	KindCustom MethodKind = iota
	KindGet
	KindInsert
	KindUpdate
	KindDelete
	KindCreate
	KindUpsert
	KindCreateTable
	KindDropTable
	KindTableExists
	KindGetCount
	KindExists
)

var kindNames = [...]string{
	KindCustom:      "Custom",
	KindGet:         "Get",
	KindInsert:      "Insert",
	KindUpdate:      "Update",
	KindDelete:      "Delete",
	KindCreate:      "Create",
	KindUpsert:      "Upsert",
	KindCreateTable: "CreateTable",
	KindDropTable:   "DropTable",
	KindTableExists: "TableExists",
	KindGetCount:    "GetCount",
	KindExists:      "Exists",
}

// String returns the kind name.
func (k MethodKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("MethodKind(%d)", k)
}

// Mutating reports if the kind writes an entity argument.
func (k MethodKind) Mutating() bool {
	switch k {
	case KindInsert, KindUpdate, KindDelete, KindCreate, KindUpsert:
		return true
	}
	return false
}

// rules are evaluated in order; the first match wins.
var rules = []struct {
	match func(name string) bool
	kind  MethodKind
}{
	{prefix("CreateTable"), KindCreateTable},
	{prefix("DropTable"), KindDropTable},
	{prefix("TableExists"), KindTableExists},
	{prefix("GetCount"), KindGetCount},
	{func(name string) bool { return strings.Contains(name, "Exists") }, KindExists},
	{prefix("Get", "TryGet", "Find", "TryFind"), KindGet},
	{prefix("Insert"), KindInsert},
	{prefix("Delete"), KindDelete},
	{prefix("Update"), KindUpdate},
	{prefix("Upsert"), KindUpsert},
	{prefix("Create"), KindCreate},
}

func prefix(ps ...string) func(string) bool {
	return func(name string) bool {
		for _, p := range ps {
			if strings.HasPrefix(name, p) {
				return true
			}
		}
		return false
	}
}

// Classify returns the kind of the method with the given name. Attached SQL
// makes every method Custom; otherwise the name decides, and names matching
// no rule are Custom too.
func Classify(name string, hasCustomSQL bool) MethodKind {
	if hasCustomSQL {
		return KindCustom
	}
	for _, r := range rules {
		if r.match(name) {
			return r.kind
		}
	}
	return KindCustom
}

// IsTryGetName reports if name declares a TryGet-shaped accessor.
func IsTryGetName(name string) bool {
	return strings.HasPrefix(name, "TryGet") || strings.HasPrefix(name, "TryFind")
}

// SingletonGetBehavior controls how singleton reads treat zero or several rows.
type SingletonGetBehavior uint8

// Singleton get flags.
const (
	FailIfNoRowFound SingletonGetBehavior = 1 << iota
	FailIfMultipleRowsFound

	// Loose returns nil on zero rows and the first row on several.
	Loose SingletonGetBehavior = 0
	// Strict fails on zero rows and on several rows.
	Strict = FailIfNoRowFound | FailIfMultipleRowsFound
)

// Has reports if all flags in f are set.
func (b SingletonGetBehavior) Has(f SingletonGetBehavior) bool { return b&f == f }

// String returns the behavior name.
func (b SingletonGetBehavior) String() string {
	switch b {
	case Strict:
		return "strict"
	case Loose:
		return "loose"
	case FailIfNoRowFound:
		return "failIfNoRowFound"
	case FailIfMultipleRowsFound:
		return "failIfMultipleRowsFound"
	default:
		return fmt.Sprintf("SingletonGetBehavior(%d)", b)
	}
}

// ParseSingletonGetBehavior parses the names returned by String.
func ParseSingletonGetBehavior(s string) (SingletonGetBehavior, error) {
	for _, b := range []SingletonGetBehavior{Strict, Loose, FailIfNoRowFound, FailIfMultipleRowsFound} {
		if strings.EqualFold(s, b.String()) {
			return b, nil
		}
	}
	return 0, fmt.Errorf("schema: unknown singleton get behavior %q", s)
}
