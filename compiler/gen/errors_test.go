package gen

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqlrepo/schema"
)

func TestSchemaError(t *testing.T) {
	t.Run("Error message with all fields", func(t *testing.T) {
		cause := errors.New("underlying error")
		err := NewSchemaError("UserRepo", "Get", "not a func", cause)

		assert.Contains(t, err.Error(), "sqlrepo: schema error")
		assert.Contains(t, err.Error(), "type UserRepo")
		assert.Contains(t, err.Error(), "field Get")
		assert.Contains(t, err.Error(), "not a func")
		assert.Contains(t, err.Error(), "underlying error")
	})

	t.Run("Error message with type only", func(t *testing.T) {
		err := &SchemaError{Type: "User"}
		assert.Contains(t, err.Error(), "type User")
		assert.NotContains(t, err.Error(), "field")
	})

	t.Run("Unwrap returns cause", func(t *testing.T) {
		cause := errors.New("root cause")
		err := NewSchemaError("User", "", "", cause)

		assert.Equal(t, cause, err.Unwrap())
		assert.True(t, errors.Is(err, cause))
	})

	t.Run("Is matches ErrInvalidSchema", func(t *testing.T) {
		err := NewSchemaError("User", "", "", nil)
		assert.True(t, errors.Is(err, ErrInvalidSchema))
		assert.True(t, IsSchemaError(fmt.Errorf("wrap: %w", err)))
		assert.False(t, IsSchemaError(errors.New("other")))
	})
}

func TestConfigError(t *testing.T) {
	t.Run("Error message with value", func(t *testing.T) {
		err := NewConfigError("Dialect", "oracle", "unknown dialect")

		assert.Equal(t, `sqlrepo: config error for "Dialect" (value: oracle): unknown dialect`, err.Error())
	})

	t.Run("Error message without value", func(t *testing.T) {
		err := NewConfigError("Connection", nil, "cannot be nil")
		assert.Equal(t, `sqlrepo: config error for "Connection": cannot be nil`, err.Error())
	})

	t.Run("Is matches ErrMissingConfig", func(t *testing.T) {
		err := NewConfigError("Connection", nil, "cannot be nil")
		assert.True(t, errors.Is(err, ErrMissingConfig))
		assert.True(t, IsConfigError(err))
		assert.False(t, IsConfigError(ErrMissingConfig))
	})
}

func TestGenerationError(t *testing.T) {
	cause := errors.New("no upsert")
	err := NewGenerationError("UserRepo", "Upsert", "cannot build statement", cause)
	assert.Equal(t, "sqlrepo: generation error in UserRepo.Upsert: cannot build statement: no upsert", err.Error())
	assert.True(t, errors.Is(err, ErrGenerationFailed))
	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsGenerationError(err))

	err = &GenerationError{}
	assert.Equal(t, "sqlrepo: generation error", err.Error())
}

func TestValidationFailedError(t *testing.T) {
	err := &ValidationFailedError{
		Repository: "UserRepo",
		Errors: []schema.ValidationError{
			schema.Errorf(schema.BothCreateAndInsert, "Create and Insert both declared"),
			schema.Errorf(schema.TryGetNoOut, "TryGet has no out result"),
		},
	}
	assert.True(t, errors.Is(err, ErrValidationFailed))
	assert.True(t, IsValidationFailed(fmt.Errorf("compile: %w", err)))
	assert.True(t, err.Has(schema.TryGetNoOut))
	assert.False(t, err.Has(schema.DupePrimaryKey))
	assert.Contains(t, err.Error(), "validation of UserRepo failed with 2 error(s)")
	assert.Contains(t, err.Error(), "- BothCreateAndInsert: Create and Insert both declared")

	var ve schema.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, schema.BothCreateAndInsert, ve.Code)
	assert.True(t, errors.Is(err, schema.Errorf(schema.TryGetNoOut, "TryGet has no out result")))
}

func TestSentinelErrors(t *testing.T) {
	sentinels := []error{ErrInvalidSchema, ErrMissingConfig, ErrGenerationFailed, ErrValidationFailed}
	for i, a := range sentinels {
		assert.Contains(t, a.Error(), "sqlrepo:")
		for j, b := range sentinels {
			if i != j {
				assert.False(t, errors.Is(a, b))
			}
		}
	}
}
