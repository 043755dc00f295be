package errors

import (
	"context"
	"errors"
)

// IsNotFound checks if an error indicates a resource was not found.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr) || errors.Is(err, ErrNotFound)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	if err == nil {
		return false
	}

	var validationErr *ValidationError
	return errors.As(err, &validationErr) || errors.Is(err, ErrInvalidInput)
}

// IsTimeout checks if an error indicates a timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// IsServiceUnavailable checks if an error indicates a service is unavailable.
func IsServiceUnavailable(err error) bool {
	if err == nil {
		return false
	}

	var serviceErr *ServiceError
	return errors.As(err, &serviceErr) || errors.Is(err, ErrServiceUnavailable)
}

// IsProviderUnavailable checks if the session had no provider.
func IsProviderUnavailable(err error) bool {
	var e *ProviderUnavailableError
	return err != nil && errors.As(err, &e)
}

// IsUserRejected checks if the human declined a provider request.
func IsUserRejected(err error) bool {
	var e *UserRejectedError
	return err != nil && errors.As(err, &e)
}

// IsNotConnected checks if a write failed for lack of a connected account.
func IsNotConnected(err error) bool {
	var e *NotConnectedError
	return err != nil && errors.As(err, &e)
}

// IsWrongNetwork checks if the provider was not on the target chain.
func IsWrongNetwork(err error) bool {
	var e *WrongNetworkError
	return err != nil && errors.As(err, &e)
}

// IsTransactionReverted checks if the ledger rejected a transaction.
func IsTransactionReverted(err error) bool {
	var e *TransactionRevertedError
	return err != nil && errors.As(err, &e)
}

// IsLedgerError checks if a ledger RPC failed.
func IsLedgerError(err error) bool {
	var e *LedgerError
	return err != nil && errors.As(err, &e)
}

// IsUploadFailure checks if a content store put failed.
func IsUploadFailure(err error) bool {
	var e *UploadFailureError
	return err != nil && errors.As(err, &e)
}

// UploadStage returns the failing stage of an upload error, or "".
func UploadStage(err error) string {
	var e *UploadFailureError
	if err != nil && errors.As(err, &e) {
		return e.Stage
	}
	return ""
}

// IsResolutionFailure checks if a CID could not be resolved.
func IsResolutionFailure(err error) bool {
	var e *ResolutionFailureError
	return err != nil && errors.As(err, &e)
}

// IsAuxIndexUnavailable checks if the read mirror failed to answer.
func IsAuxIndexUnavailable(err error) bool {
	var e *AuxIndexUnavailableError
	return err != nil && errors.As(err, &e)
}

// ShouldRetry checks if an operation may be retried based on the error.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	if IsTimeout(err) || IsServiceUnavailable(err) {
		return true
	}

	var customErr Error
	if errors.As(err, &customErr) {
		return IsRetryable(customErr.Code())
	}

	return false
}

// Action returns a short hint telling the user what to do about err.
func Action(err error) string {
	switch {
	case err == nil:
		return ""
	case IsProviderUnavailable(err):
		return "install or start a wallet provider"
	case IsUserRejected(err):
		return "approve the request in your wallet"
	case IsNotConnected(err):
		return "connect your wallet"
	case IsWrongNetwork(err):
		return "switch your wallet to the configured network"
	case IsTransactionReverted(err):
		return "check the inputs and your permissions on the registry"
	case IsUploadFailure(err):
		return "retry the upload"
	case IsLedgerError(err):
		return "check that the ledger RPC endpoint is reachable"
	case IsResolutionFailure(err):
		return "check the content identifier"
	case IsNotFound(err):
		return "check the identifier"
	case IsValidation(err):
		return "fix the input"
	case ShouldRetry(err):
		return "retry later"
	default:
		return ""
	}
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	if err == nil {
		return CodeOK
	}

	var customErr Error
	if errors.As(err, &customErr) {
		return customErr.Code()
	}

	// Try to infer from sentinel errors
	switch {
	case errors.Is(err, context.Canceled):
		return CodeCancelled
	case IsNotFound(err):
		return CodeNotFound
	case IsValidation(err):
		return CodeValidation
	case IsTimeout(err):
		return CodeTimeout
	case IsServiceUnavailable(err):
		return CodeServiceUnavailable
	default:
		return CodeInternal
	}
}

// GetErrorMessage extracts a human-readable message from an error.
func GetErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var customErr Error
	if errors.As(err, &customErr) {
		return customErr.Message()
	}

	return err.Error()
}
