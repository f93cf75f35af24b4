package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches domain errors by code so wrapped variants with a custom
// message still satisfy errors.Is against the sentinels below
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes
const (
	CodeValidation            = "VALIDATION_ERROR"
	CodeNotFound              = "NOT_FOUND"
	CodeDecryptionFailed      = "DECRYPTION_FAILED"
	CodeConfigDecryption      = "CONFIG_DECRYPTION_FAILED"
	CodeInvalidState          = "INVALID_STATE"
	CodeConcurrencyConflict   = "CONCURRENCY_CONFLICT"
	CodeAlreadyExists         = "ALREADY_EXISTS"
	CodeTransferFailed        = "TRANSFER_ERROR"
	CodeProbeFailed           = "PROBE_ERROR"
	CodeInternal              = "INTERNAL_ERROR"
	CodeIdempotencyInProgress = "IDEMPOTENCY_IN_PROGRESS"
)

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists       = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInvalidInput        = NewDomainError(CodeValidation, "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrDecryption          = NewDomainError(CodeDecryptionFailed, "Failed to decrypt value")
	ErrConfigDecryption    = NewDomainError(CodeConfigDecryption, "Failed to decrypt integration configuration")
)

// NewValidationError returns a VALIDATION_ERROR with the given message
func NewValidationError(message string) *DomainError {
	return NewDomainError(CodeValidation, message)
}

// NewInvalidStateError returns an INVALID_STATE error with the given message
func NewInvalidStateError(message string) *DomainError {
	return NewDomainError(CodeInvalidState, message)
}

// NewInternalError returns an INTERNAL_ERROR with the given message
func NewInternalError(message string) *DomainError {
	return NewDomainError(CodeInternal, message)
}

// IsNotFound reports whether err carries the NOT_FOUND code
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
