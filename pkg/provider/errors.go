package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// EIP-1193 and JSON-RPC error codes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeChainDisconnected = 4901
	CodeUnrecognizedChain = 4902
	CodeMethodNotFound    = -32601
	CodeInvalidParams     = -32602
	CodeInternal          = -32603
	CodeExecutionReverted = 3
)

// RPCError is an error object returned by a provider.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// ErrorCode implements rpc.Error.
func (e *RPCError) ErrorCode() int { return e.Code }

// ErrorData implements rpc.DataError.
func (e *RPCError) ErrorData() interface{} {
	if len(e.Data) == 0 {
		return nil
	}
	return e.Data
}

// NewRPCError builds an RPCError without data.
func NewRPCError(code int, message string) *RPCError {
	return &RPCError{Code: code, Message: message}
}

// AsRPCError extracts a provider error object from err. It understands
// *RPCError and the error types of go-ethereum's rpc client.
func AsRPCError(err error) (*RPCError, bool) {
	if err == nil {
		return nil, false
	}
	var re *RPCError
	if errors.As(err, &re) {
		return re, true
	}
	var ge rpc.Error
	if !errors.As(err, &ge) {
		return nil, false
	}
	out := &RPCError{Code: ge.ErrorCode(), Message: ge.Error()}
	var de rpc.DataError
	if errors.As(err, &de) && de.ErrorData() != nil {
		if b, mErr := json.Marshal(de.ErrorData()); mErr == nil {
			out.Data = b
		}
	}
	return out, true
}

// ErrorCode returns the provider error code carried by err, or 0.
func ErrorCode(err error) int {
	if re, ok := AsRPCError(err); ok {
		return re.Code
	}
	return 0
}

// IsUserRejected reports whether the human declined the request.
func IsUserRejected(err error) bool {
	return ErrorCode(err) == CodeUserRejected
}

// IsUnrecognizedChain reports whether a switch failed because the wallet
// does not know the chain.
func IsUnrecognizedChain(err error) bool {
	return ErrorCode(err) == CodeUnrecognizedChain
}

// IsMethodUnsupported reports whether the provider does not implement the method.
func IsMethodUnsupported(err error) bool {
	code := ErrorCode(err)
	return code == CodeMethodNotFound || code == CodeUnsupportedMethod
}

// IsExecutionReverted reports whether the ledger reverted the call. Nodes
// disagree on the code, so the message is checked too.
func IsExecutionReverted(err error) bool {
	re, ok := AsRPCError(err)
	if !ok {
		return false
	}
	if re.Code == CodeExecutionReverted {
		return true
	}
	msg := strings.ToLower(re.Message)
	return strings.Contains(msg, "execution reverted") || strings.Contains(msg, "reverted with")
}
