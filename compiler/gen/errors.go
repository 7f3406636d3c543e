package gen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/sqlrepo/schema"
)

// Sentinel errors for common failure cases.
var (
	// ErrInvalidSchema indicates a contract or entity that cannot be described.
	ErrInvalidSchema = errors.New("sqlrepo: invalid schema")
	// ErrMissingConfig indicates a configuration error.
	ErrMissingConfig = errors.New("sqlrepo: missing configuration")
	// ErrGenerationFailed indicates a statement generation failure.
	ErrGenerationFailed = errors.New("sqlrepo: generation failed")
	// ErrValidationFailed indicates a repository definition failed validation.
	ErrValidationFailed = errors.New("sqlrepo: validation failed")
)

// SchemaError represents a structural problem in a contract or entity type.
type SchemaError struct {
	Type    string // Contract or entity type name
	Field   string // Field or method name (if applicable)
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("sqlrepo: schema error")
	if e.Type != "" {
		b.WriteString(" on type ")
		b.WriteString(e.Type)
	}
	if e.Field != "" {
		b.WriteString(" field ")
		b.WriteString(e.Field)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *SchemaError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches the sentinel error for SchemaError.
func (e *SchemaError) Is(target error) bool {
	return target == ErrInvalidSchema
}

// NewSchemaError creates a new SchemaError.
func NewSchemaError(typeName, fieldName, message string, cause error) *SchemaError {
	return &SchemaError{
		Type:    typeName,
		Field:   fieldName,
		Message: message,
		Cause:   cause,
	}
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Option  string
	Value   any
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("sqlrepo: config error for %q (value: %v): %s", e.Option, e.Value, e.Message)
	}
	return fmt.Sprintf("sqlrepo: config error for %q: %s", e.Option, e.Message)
}

// Is reports whether the target matches the sentinel error for ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrMissingConfig
}

// NewConfigError creates a new ConfigError.
func NewConfigError(option string, value any, message string) *ConfigError {
	return &ConfigError{
		Option:  option,
		Value:   value,
		Message: message,
	}
}

// GenerationError represents a failure to generate the statements of a method.
type GenerationError struct {
	Repository string
	Method     string
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	var b strings.Builder
	b.WriteString("sqlrepo: generation error")
	if e.Repository != "" {
		b.WriteString(" in ")
		b.WriteString(e.Repository)
		if e.Method != "" {
			b.WriteString(".")
			b.WriteString(e.Method)
		}
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches the sentinel error for GenerationError.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}

// NewGenerationError creates a new GenerationError.
func NewGenerationError(repository, method, message string, cause error) *GenerationError {
	return &GenerationError{
		Repository: repository,
		Method:     method,
		Message:    message,
		Cause:      cause,
	}
}

// ValidationFailedError lists every problem found in a repository definition.
type ValidationFailedError struct {
	Repository string
	Errors     []schema.ValidationError
}

// Error implements the error interface.
func (e *ValidationFailedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "sqlrepo: validation of %s failed with %d error(s):", e.Repository, len(e.Errors))
	for _, ve := range e.Errors {
		b.WriteString("\n  - ")
		b.WriteString(ve.Error())
	}
	return b.String()
}

// Is reports whether the target matches the sentinel error for ValidationFailedError.
func (e *ValidationFailedError) Is(target error) bool {
	return target == ErrValidationFailed
}

// Unwrap returns the individual validation errors.
func (e *ValidationFailedError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, ve := range e.Errors {
		errs[i] = ve
	}
	return errs
}

// Has reports if an error with the given code was found.
func (e *ValidationFailedError) Has(code schema.Code) bool {
	for _, ve := range e.Errors {
		if ve.Code == code {
			return true
		}
	}
	return false
}

// IsSchemaError reports whether the error is a SchemaError.
func IsSchemaError(err error) bool {
	var schemaErr *SchemaError
	return errors.As(err, &schemaErr)
}

// IsConfigError reports whether the error is a ConfigError.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// IsGenerationError reports whether the error is a GenerationError.
func IsGenerationError(err error) bool {
	var genErr *GenerationError
	return errors.As(err, &genErr)
}

// IsValidationFailed reports whether the error is a ValidationFailedError.
func IsValidationFailed(err error) bool {
	var valErr *ValidationFailedError
	return errors.As(err, &valErr)
}
