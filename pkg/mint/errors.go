package mint

import (
	"errors"
	"fmt"
)

// Error codes for the failure kinds a caller may need to tell apart.
const (
	// ErrCodeKeyImport indicates malformed key material.
	ErrCodeKeyImport = "KEY_IMPORT_FAILED"

	// ErrCodeSigning indicates the signing operation itself failed.
	ErrCodeSigning = "SIGNING_FAILED"

	// ErrCodeDecode indicates a malformed carrier, payload or field.
	ErrCodeDecode = "DECODE_FAILED"

	// ErrCodeStructure indicates missing identity fields (id, signature, issuer key)
	// or an unsupported schema version.
	ErrCodeStructure = "STRUCTURE_INVALID"

	// ErrCodeSignatureInvalid labels a verification that returned false.
	// Verify never returns it; it is only attached to ingest rejections.
	ErrCodeSignatureInvalid = "SIGNATURE_INVALID"

	// ErrCodeDuplicate indicates the id is already present in the store.
	ErrCodeDuplicate = "DUPLICATE"
)

// Error is a mint processing error carrying one of the ErrCode* values.
type Error struct {
	// Code is one of the ErrCode* constants.
	Code string

	// Message is a human-readable description.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// NewError creates a new Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WrapError creates a new Error that wraps an underlying error.
func WrapError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Sentinels for errors.Is checks by code.
var (
	ErrKeyImport        = NewError(ErrCodeKeyImport, "malformed key material")
	ErrSigning          = NewError(ErrCodeSigning, "signing failed")
	ErrDecode           = NewError(ErrCodeDecode, "malformed mint payload")
	ErrStructure        = NewError(ErrCodeStructure, "mint structure is invalid")
	ErrSignatureInvalid = NewError(ErrCodeSignatureInvalid, "signature verification failed")
	ErrDuplicate        = NewError(ErrCodeDuplicate, "mint already present")
)

// Lifecycle errors.
var (
	ErrUnitsExhausted = errors.New("not enough units left to redeem")
	ErrInvalidUnits   = errors.New("units must be positive")
	ErrExpired        = errors.New("mint has expired")
	ErrAlreadyUsed    = errors.New("mint has already been used")
	ErrAlreadyClosed  = errors.New("mint is already redeemed")
	ErrNotDeletable   = errors.New("mint is still active and not expired")
)

// AsError checks if err is an *Error and returns it if so.
func AsError(err error) (*Error, bool) {
	var mintErr *Error
	if errors.As(err, &mintErr) {
		return mintErr, true
	}
	return nil, false
}

// GetErrorCode extracts the code from an *Error, or returns "".
func GetErrorCode(err error) string {
	if mintErr, ok := AsError(err); ok {
		return mintErr.Code
	}
	return ""
}
