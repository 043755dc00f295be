package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Common sentinel errors for quick checks
var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when request input is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("operation timeout")

	// ErrServiceUnavailable is returned when a required service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Upload stages reported by UploadFailureError.
const (
	StageFile     = "file"
	StageMetadata = "metadata"
)

// Error is the base interface for all custom errors in the system.
// It extends the standard error interface with additional context.
type Error interface {
	error
	// Code returns the error code
	Code() string
	// Message returns the human-readable error message
	Message() string
	// Unwrap returns the underlying cause
	Unwrap() error
}

// BaseError provides a foundation for all typed errors.
type BaseError struct {
	code    string
	message string
	cause   error
	stack   []uintptr
}

// Error implements the error interface.
func (e *BaseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error code.
func (e *BaseError) Code() string {
	return e.code
}

// Message returns the error message.
func (e *BaseError) Message() string {
	return e.message
}

// Unwrap returns the underlying cause.
func (e *BaseError) Unwrap() error {
	return e.cause
}

func newBase(code, message string, cause error) *BaseError {
	return &BaseError{
		code:    code,
		message: message,
		cause:   cause,
		stack:   captureStack(2),
	}
}

// captureStack captures the current stack trace.
func captureStack(skip int) []uintptr {
	const maxDepth = 32
	stack := make([]uintptr, maxDepth)
	n := runtime.Callers(skip+2, stack)
	return stack[:n]
}

// StackTrace returns a formatted stack trace string.
func (e *BaseError) StackTrace() string {
	if len(e.stack) == 0 {
		return ""
	}

	var buf strings.Builder
	frames := runtime.CallersFrames(e.stack)
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			fmt.Fprintf(&buf, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return buf.String()
}

// ValidationError represents an input validation error.
type ValidationError struct {
	*BaseError
	Field string
	Value interface{}
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		BaseError: newBase(CodeValidation, message, nil),
		Field:     field,
		Value:     value,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.message)
	}
	return fmt.Sprintf("validation error: %s", e.message)
}

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	*BaseError
	Resource string
	ID       string
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{
		BaseError: newBase(CodeNotFound, fmt.Sprintf("%s not found", resource), nil),
		Resource:  resource,
		ID:        id,
	}
}

// WithCause attaches the underlying error, typically the ledger revert.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s with ID '%s' not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// InternalError represents an internal server error.
type InternalError struct {
	*BaseError
	Operation string
}

// NewInternalError creates a new internal error.
func NewInternalError(message string, cause error) *InternalError {
	if message == "" {
		message = "internal error"
	}
	return &InternalError{
		BaseError: newBase(CodeInternal, message, cause),
	}
}

// WithOperation sets the operation context.
func (e *InternalError) WithOperation(op string) *InternalError {
	e.Operation = op
	return e
}

// ServiceError represents a downstream service error.
type ServiceError struct {
	*BaseError
	Service    string
	StatusCode int
}

// NewServiceError creates a new service error.
func NewServiceError(service, message string, statusCode int, cause error) *ServiceError {
	if message == "" {
		message = fmt.Sprintf("%s service error", service)
	}
	return &ServiceError{
		BaseError:  newBase(CodeServiceUnavailable, message, cause),
		Service:    service,
		StatusCode: statusCode,
	}
}

// ProviderUnavailableError is returned when the session has no signing
// provider to talk to.
type ProviderUnavailableError struct {
	*BaseError
}

// NewProviderUnavailableError creates a new provider unavailable error.
func NewProviderUnavailableError(cause error) *ProviderUnavailableError {
	return &ProviderUnavailableError{
		BaseError: newBase(CodeProviderUnavailable, "no signing provider available", cause),
	}
}

// UserRejectedError is returned when the human declines a provider prompt.
type UserRejectedError struct {
	*BaseError
	Operation string
}

// NewUserRejectedError creates a new user rejected error.
func NewUserRejectedError(operation string, cause error) *UserRejectedError {
	message := "request rejected by user"
	if operation != "" {
		message = fmt.Sprintf("%s rejected by user", operation)
	}
	return &UserRejectedError{
		BaseError: newBase(CodeUserRejected, message, cause),
		Operation: operation,
	}
}

// NotConnectedError is returned when a write needs an account and the
// session has none.
type NotConnectedError struct {
	*BaseError
	Operation string
}

// NewNotConnectedError creates a new not connected error.
func NewNotConnectedError(operation string) *NotConnectedError {
	message := "wallet not connected"
	if operation != "" {
		message = fmt.Sprintf("%s requires a connected wallet", operation)
	}
	return &NotConnectedError{
		BaseError: newBase(CodeNotConnected, message, nil),
		Operation: operation,
	}
}

// WrongNetworkError is returned when the provider could not be moved to the
// target chain. Have is zero when the current chain is unknown.
type WrongNetworkError struct {
	*BaseError
	Want uint64
	Have uint64
}

// NewWrongNetworkError creates a new wrong network error.
func NewWrongNetworkError(want, have uint64) *WrongNetworkError {
	message := fmt.Sprintf("wrong network: want chain %d", want)
	if have != 0 {
		message = fmt.Sprintf("wrong network: want chain %d, provider is on %d", want, have)
	}
	return &WrongNetworkError{
		BaseError: newBase(CodeWrongNetwork, message, nil),
		Want:      want,
		Have:      have,
	}
}

// TransactionRevertedError is returned when the ledger rejects a write,
// either at submission or in the mined receipt.
type TransactionRevertedError struct {
	*BaseError
	Hash   string
	Reason string
}

// NewTransactionRevertedError creates a new transaction reverted error.
func NewTransactionRevertedError(hash, reason string, cause error) *TransactionRevertedError {
	message := "transaction reverted"
	if reason != "" {
		message = fmt.Sprintf("transaction reverted: %s", reason)
	}
	return &TransactionRevertedError{
		BaseError: newBase(CodeTransactionReverted, message, cause),
		Hash:      hash,
		Reason:    reason,
	}
}

// LedgerError wraps RPC, encoding and decoding failures against the ledger.
type LedgerError struct {
	*BaseError
	Method string
}

// NewLedgerError creates a new ledger error for a contract method.
func NewLedgerError(method string, cause error) *LedgerError {
	return &LedgerError{
		BaseError: newBase(CodeLedgerError, fmt.Sprintf("ledger call %s failed", method), cause),
		Method:    method,
	}
}

// UploadFailureError is returned when a content store put fails. Stage is
// StageFile or StageMetadata.
type UploadFailureError struct {
	*BaseError
	Stage string
}

// NewUploadFailureError creates a new upload failure error.
func NewUploadFailureError(stage string, cause error) *UploadFailureError {
	message := "content upload failed"
	if stage != "" {
		message = fmt.Sprintf("content upload failed at %s stage", stage)
	}
	return &UploadFailureError{
		BaseError: newBase(CodeUploadFailed, message, cause),
		Stage:     stage,
	}
}

// ResolutionFailureError is returned when a CID is malformed, unreachable or
// does not hold what the caller expected.
type ResolutionFailureError struct {
	*BaseError
	CID string
}

// NewResolutionFailureError creates a new resolution failure error.
func NewResolutionFailureError(cid string, cause error) *ResolutionFailureError {
	return &ResolutionFailureError{
		BaseError: newBase(CodeResolutionFailed, fmt.Sprintf("cannot resolve %q", cid), cause),
		CID:       cid,
	}
}

// AuxIndexUnavailableError is returned for any failure of the read mirror:
// transport errors, non-2xx responses and malformed bodies alike.
type AuxIndexUnavailableError struct {
	*BaseError
	Endpoint   string
	StatusCode int
}

// NewAuxIndexUnavailableError creates a new aux index unavailable error.
func NewAuxIndexUnavailableError(endpoint string, statusCode int, cause error) *AuxIndexUnavailableError {
	message := fmt.Sprintf("aux index unavailable at %s", endpoint)
	if statusCode != 0 {
		message = fmt.Sprintf("aux index returned %d at %s", statusCode, endpoint)
	}
	return &AuxIndexUnavailableError{
		BaseError:  newBase(CodeAuxIndexUnavailable, message, cause),
		Endpoint:   endpoint,
		StatusCode: statusCode,
	}
}
