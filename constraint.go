package sqlrepo

import (
	"errors"
	"strings"
)

// IsConstraintError reports if err resulted from a database constraint
// violation. Driver errors are found anywhere in the chain, so the errors
// of compiled repositories can be passed as is.
func IsConstraintError(err error) bool {
	return IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsCheckConstraintError(err) ||
		IsNotNullConstraintError(err)
}

// numberer is implemented by errors of Full (T-SQL) drivers.
type numberer interface {
	SQLErrorNumber() int32
}

// coder is implemented by errors of Lite (SQLite) drivers, which report
// extended result codes.
type coder interface {
	Code() int
}

// Full error numbers.
const (
	fullUniqueIndex      = 2601
	fullUniqueConstraint = 2627
	fullConflict         = 547 // foreign key and check constraints
	fullNotNull          = 515
)

// Lite extended result codes.
const (
	liteCheck      = 275
	liteForeignKey = 787
	liteNotNull    = 1299
	litePrimaryKey = 1555
	liteUnique     = 2067
)

// IsUniqueConstraintError reports if err resulted from a duplicate primary
// or unique key.
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if n, ok := asError[numberer](err); ok {
		switch n.SQLErrorNumber() {
		case fullUniqueIndex, fullUniqueConstraint:
			return true
		}
	}
	if c, ok := asError[coder](err); ok {
		switch c.Code() {
		case liteUnique, litePrimaryKey:
			return true
		}
	}
	return containsAny(err.Error(),
		"UNIQUE constraint failed",
		"Violation of PRIMARY KEY constraint",
		"Violation of UNIQUE KEY constraint",
		"Cannot insert duplicate key",
	)
}

// IsForeignKeyConstraintError reports if err resulted from a foreign key
// violation.
func IsForeignKeyConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if c, ok := asError[coder](err); ok && c.Code() == liteForeignKey {
		return true
	}
	return containsAny(err.Error(),
		"FOREIGN KEY constraint failed",
		"conflicted with the FOREIGN KEY constraint",
		"conflicted with the REFERENCE constraint",
	)
}

// IsCheckConstraintError reports if err resulted from a check constraint
// violation.
func IsCheckConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if c, ok := asError[coder](err); ok && c.Code() == liteCheck {
		return true
	}
	if n, ok := asError[numberer](err); ok && n.SQLErrorNumber() == fullConflict {
		return strings.Contains(err.Error(), "CHECK")
	}
	return containsAny(err.Error(),
		"CHECK constraint failed",
		"conflicted with the CHECK constraint",
	)
}

// IsNotNullConstraintError reports if err resulted from storing NULL in a
// column declared not null.
func IsNotNullConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if n, ok := asError[numberer](err); ok && n.SQLErrorNumber() == fullNotNull {
		return true
	}
	if c, ok := asError[coder](err); ok && c.Code() == liteNotNull {
		return true
	}
	return containsAny(err.Error(),
		"NOT NULL constraint failed",
		"Cannot insert the value NULL",
	)
}

// asError returns the first error in the chain of err implementing T.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
