package schema

import "fmt"

// Code is the stable identifier of a validation failure.
type Code string

// Validation codes.
const (
	ParameterDoesntHaveProperty   Code = "ParameterDoesntHaveProperty"
	ParameterAndPropertyDontMatch Code = "ParameterAndPropertyDontMatch"
	CantInferEntityType           Code = "CantInferEntityType"
	BothCreateAndInsert           Code = "BothCreateAndInsert"
	CustomMethodWithoutSql        Code = "CustomMethodWithoutSql"
	MultiGetReturnWrongType       Code = "MultiGetReturnWrongType"
	SingleGetReturnWrongType      Code = "SingleGetReturnWrongType"
	TryGetReturnWrongType         Code = "TryGetReturnWrongType"
	TryGetNoOut                   Code = "TryGetNoOut"
	TryGetOutParamWrongType       Code = "TryGetOutParamWrongType"
	DupePrimaryKey                Code = "DupePrimaryKey"
	StoredProcedureNotSupported   Code = "StoredProcedureNotSupported"
	MissingErrorResult            Code = "MissingErrorResult"
	MissingEntityParameter        Code = "MissingEntityParameter"
	EntityParameterNotPointer     Code = "EntityParameterNotPointer"
	NoPrimaryKey                  Code = "NoPrimaryKey"
	InvalidIdentity               Code = "InvalidIdentity"
	UnsupportedParameterType      Code = "UnsupportedParameterType"
	UnsupportedReturnType         Code = "UnsupportedReturnType"
	DuplicateColumn               Code = "DuplicateColumn"
)

// ValidationError is one problem found in a repository definition.
// Values compare equal when code and message are equal.
type ValidationError struct {
	Code    Code
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Errorf returns a ValidationError with a formatted message.
func Errorf(code Code, format string, args ...any) ValidationError {
	return ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}
