// Package wallet owns the signing session: which provider is attached, which
// account is connected, and whether the provider is on the target network.
package wallet

import (
	"sync"

	"github.com/DeBrosOfficial/caseledger/pkg/provider"
	"github.com/ethereum/go-ethereum/common"
)

// Session is the explicit connection state shared by the connection manager,
// the network guard and ledger writes. It is safe for concurrent use.
type Session struct {
	provider provider.Provider

	mu        sync.RWMutex
	account   common.Address
	connected bool

	submitMu sync.Mutex
}

// NewSession returns a session bound to p. A nil provider is allowed and
// makes every provider-backed operation fail with ProviderUnavailable.
func NewSession(p provider.Provider) *Session {
	return &Session{provider: p}
}

// Provider returns the signing provider, or nil.
func (s *Session) Provider() provider.Provider {
	return s.provider
}

// Account returns the connected account and whether there is one.
func (s *Session) Account() (common.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account, s.connected
}

func (s *Session) setAccount(a common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = a
	s.connected = true
}

func (s *Session) clearAccount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = common.Address{}
	s.connected = false
}

// LockSubmit serializes the sign-and-submit step of writes made through
// this session. The returned function releases the lock.
func (s *Session) LockSubmit() (unlock func()) {
	s.submitMu.Lock()
	return s.submitMu.Unlock
}
