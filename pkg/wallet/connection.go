package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	apperrors "github.com/DeBrosOfficial/caseledger/pkg/errors"
	"github.com/DeBrosOfficial/caseledger/pkg/logging"
	"github.com/DeBrosOfficial/caseledger/pkg/provider"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// ConnectionManager obtains account access from the session's provider and
// keeps the session account in step with the provider's accountsChanged
// events. There is no disconnect; the provider owns teardown.
type ConnectionManager struct {
	session *Session
	logger  *logging.ColoredLogger

	mu          sync.Mutex
	unsubscribe func()
}

// NewConnectionManager returns a manager for session.
func NewConnectionManager(session *Session, logger *logging.ColoredLogger) *ConnectionManager {
	return &ConnectionManager{
		session: session,
		logger:  logging.OrNop(logger),
	}
}

// Connect requests account access and records the first granted account.
// While connected it returns that account without asking the provider again.
func (m *ConnectionManager) Connect(ctx context.Context) (common.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if account, ok := m.session.Account(); ok {
		return account, nil
	}

	p := m.session.Provider()
	if p == nil {
		return common.Address{}, apperrors.NewProviderUnavailableError(nil)
	}

	accounts, err := p.RequestAccounts(ctx)
	if err != nil {
		switch {
		case provider.IsUserRejected(err):
			m.logger.ComponentWarn(logging.ComponentWallet, "account access rejected")
			return common.Address{}, apperrors.NewUserRejectedError(provider.MethodRequestAccounts, err)
		case provider.ErrorCode(err) == provider.CodeDisconnected:
			return common.Address{}, apperrors.NewProviderUnavailableError(err)
		case ctx.Err() != nil:
			return common.Address{}, ctx.Err()
		}
		return common.Address{}, fmt.Errorf("request accounts: %w", err)
	}
	if len(accounts) == 0 {
		m.logger.ComponentWarn(logging.ComponentWallet, "provider granted no accounts")
		return common.Address{}, apperrors.NewUserRejectedError(provider.MethodRequestAccounts, nil)
	}

	m.session.setAccount(accounts[0])
	if m.unsubscribe == nil {
		m.unsubscribe = p.Subscribe(provider.EventAccountsChanged, m.onAccountsChanged)
	}
	m.logger.ComponentInfo(logging.ComponentWallet, "wallet connected", zap.String("account", accounts[0].Hex()))
	return accounts[0], nil
}

// CurrentAccount returns the last known account without querying the provider.
func (m *ConnectionManager) CurrentAccount() (common.Address, bool) {
	return m.session.Account()
}

// Close stops following provider account changes.
func (m *ConnectionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

func (m *ConnectionManager) onAccountsChanged(raw json.RawMessage) {
	accounts, err := provider.ParseAccounts(raw)
	if err != nil {
		m.logger.ComponentWarn(logging.ComponentWallet, "ignoring malformed accountsChanged", zap.Error(err))
		return
	}
	if len(accounts) == 0 {
		m.session.clearAccount()
		m.logger.ComponentInfo(logging.ComponentWallet, "wallet disconnected by provider")
		return
	}
	m.session.setAccount(accounts[0])
	m.logger.ComponentInfo(logging.ComponentWallet, "wallet account changed", zap.String("account", accounts[0].Hex()))
}
