package errors

// Error codes for categorizing errors.
// Generic codes map to HTTP status codes for the indexer API; the domain
// codes identify failures of the wallet session, the ledger and the stores.
const (
	// CodeOK indicates success (not an error).
	CodeOK = "OK"

	// CodeCancelled indicates the operation was cancelled.
	CodeCancelled = "CANCELLED"

	// CodeInvalidArgument indicates client specified an invalid argument.
	CodeInvalidArgument = "INVALID_ARGUMENT"

	// CodeDeadlineExceeded indicates operation deadline was exceeded.
	CodeDeadlineExceeded = "DEADLINE_EXCEEDED"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound = "NOT_FOUND"

	// CodeInternal indicates internal errors.
	CodeInternal = "INTERNAL"

	// CodeUnavailable indicates the service is currently unavailable.
	CodeUnavailable = "UNAVAILABLE"

	// CodeValidation indicates input validation failed.
	CodeValidation = "VALIDATION_ERROR"

	// CodeTimeout indicates an operation timed out.
	CodeTimeout = "TIMEOUT"

	// CodeServiceUnavailable indicates a downstream service is unavailable.
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"

	// Wallet session codes

	// CodeProviderUnavailable indicates no signing provider is attached to the session.
	CodeProviderUnavailable = "PROVIDER_UNAVAILABLE"

	// CodeUserRejected indicates the human declined a provider request.
	CodeUserRejected = "USER_REJECTED"

	// CodeNotConnected indicates a write was attempted without a connected account.
	CodeNotConnected = "NOT_CONNECTED"

	// CodeWrongNetwork indicates the provider is not on the target chain.
	CodeWrongNetwork = "WRONG_NETWORK"

	// Ledger codes

	// CodeTransactionReverted indicates the ledger rejected a transaction.
	CodeTransactionReverted = "TRANSACTION_REVERTED"

	// CodeLedgerError indicates an RPC or decoding failure talking to the ledger.
	CodeLedgerError = "LEDGER_ERROR"

	// Store codes

	// CodeUploadFailed indicates a content store put failed.
	CodeUploadFailed = "CONTENT_UPLOAD_FAILED"

	// CodeResolutionFailed indicates a CID could not be resolved to content.
	CodeResolutionFailed = "CONTENT_RESOLUTION_FAILED"

	// CodeAuxIndexUnavailable indicates the read mirror could not answer.
	CodeAuxIndexUnavailable = "AUX_INDEX_UNAVAILABLE"
)

// ErrorCategory represents a high-level error category.
type ErrorCategory string

const (
	// CategoryClient indicates a client-side error (4xx).
	CategoryClient ErrorCategory = "CLIENT_ERROR"

	// CategoryServer indicates a server-side error (5xx).
	CategoryServer ErrorCategory = "SERVER_ERROR"

	// CategoryNetwork indicates a network-related error.
	CategoryNetwork ErrorCategory = "NETWORK_ERROR"

	// CategoryTimeout indicates a timeout error.
	CategoryTimeout ErrorCategory = "TIMEOUT_ERROR"

	// CategoryWallet indicates a problem with the signing session.
	CategoryWallet ErrorCategory = "WALLET_ERROR"

	// CategoryLedger indicates the ledger refused or failed an operation.
	CategoryLedger ErrorCategory = "LEDGER_ERROR"
)

// GetCategory returns the category for an error code.
func GetCategory(code string) ErrorCategory {
	switch code {
	case CodeInvalidArgument, CodeValidation, CodeNotFound:
		return CategoryClient

	case CodeProviderUnavailable, CodeUserRejected,
		CodeNotConnected, CodeWrongNetwork:
		return CategoryWallet

	case CodeTransactionReverted, CodeLedgerError:
		return CategoryLedger

	case CodeTimeout, CodeDeadlineExceeded:
		return CategoryTimeout

	case CodeServiceUnavailable, CodeUnavailable,
		CodeAuxIndexUnavailable, CodeUploadFailed, CodeResolutionFailed:
		return CategoryNetwork

	default:
		return CategoryServer
	}
}

// IsRetryable returns true if an error with the given code may succeed when
// the caller tries again. Nothing in this module retries on its own.
func IsRetryable(code string) bool {
	switch code {
	case CodeTimeout, CodeDeadlineExceeded,
		CodeServiceUnavailable, CodeUnavailable,
		CodeAuxIndexUnavailable, CodeUploadFailed,
		CodeLedgerError:
		return true
	default:
		return false
	}
}
