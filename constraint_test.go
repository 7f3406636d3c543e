package sqlrepo_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/sqlrepo"
)

type fullError struct {
	number int32
	msg    string
}

func (e fullError) Error() string { return e.msg }
func (e fullError) SQLErrorNumber() int32 { return e.number }

type liteError struct {
	code int
	msg  string
}

func (e liteError) Error() string { return e.msg }
func (e liteError) Code() int     { return e.code }

func TestConstraintErrors(t *testing.T) {
	tests := []struct {
		name                            string
		err                             error
		unique, foreign, check, notNull bool
	}{
		{name: "full unique", err: fullError{2627, "Violation of PRIMARY KEY constraint 'pk_users'"}, unique: true},
		{name: "full unique index", err: fullError{2601, "duplicate row"}, unique: true},
		{name: "full check", err: fullError{547, "The INSERT statement conflicted with the CHECK constraint"}, check: true},
		{name: "full foreign key", err: fullError{547, "The INSERT statement conflicted with the FOREIGN KEY constraint"}, foreign: true},
		{name: "full not null", err: fullError{515, "Cannot insert the value NULL into column 'Name'"}, notNull: true},
		{name: "lite primary key", err: liteError{1555, "constraint failed"}, unique: true},
		{name: "lite unique", err: liteError{2067, "constraint failed"}, unique: true},
		{name: "lite foreign key", err: liteError{787, "constraint failed"}, foreign: true},
		{name: "lite check", err: liteError{275, "constraint failed"}, check: true},
		{name: "lite not null", err: liteError{1299, "constraint failed"}, notNull: true},
		{name: "message only", err: errors.New("UNIQUE constraint failed: tags.Value"), unique: true},
		{name: "other", err: errors.New("no such table: users")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sqlrepo.NewMutationError("users", "UserRepo.Insert", tt.err)
			assert.Equal(t, tt.unique, sqlrepo.IsUniqueConstraintError(err))
			assert.Equal(t, tt.foreign, sqlrepo.IsForeignKeyConstraintError(err))
			assert.Equal(t, tt.check, sqlrepo.IsCheckConstraintError(err))
			assert.Equal(t, tt.notNull, sqlrepo.IsNotNullConstraintError(err))
			assert.Equal(t, tt.unique || tt.foreign || tt.check || tt.notNull, sqlrepo.IsConstraintError(err))
		})
	}
	assert.False(t, sqlrepo.IsConstraintError(nil))
}
