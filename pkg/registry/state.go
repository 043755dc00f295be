package registry

import "github.com/ethereum/go-ethereum/common"

// WriteState is the progress of a single ledger write.
type WriteState int

const (
	StateIdle WriteState = iota
	StateAwaitingSignature
	StateSubmitted
	StateConfirmed
	StateRejected
	StateReverted
	// StateFailed covers transport and encoding failures that are neither
	// a rejection nor a revert.
	StateFailed
)

func (s WriteState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingSignature:
		return "awaiting_signature"
	case StateSubmitted:
		return "submitted"
	case StateConfirmed:
		return "confirmed"
	case StateRejected:
		return "rejected"
	case StateReverted:
		return "reverted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition follows s.
func (s WriteState) Terminal() bool {
	return s == StateConfirmed || s == StateRejected || s == StateReverted || s == StateFailed
}

// StateObserver is told about every write state transition. tx is zero
// until the transaction has been submitted.
type StateObserver func(method string, state WriteState, tx common.Hash)
