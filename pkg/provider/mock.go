package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// HandlerFunc answers one mocked request. The returned value is JSON encoded.
type HandlerFunc func(params []json.RawMessage) (any, error)

// Call records a request made against a MockProvider.
type Call struct {
	Method string
	Params []json.RawMessage
}

// Reject returns a handler that always fails with the given provider error.
func Reject(code int, message string) HandlerFunc {
	return func([]json.RawMessage) (any, error) {
		return nil, NewRPCError(code, message)
	}
}

// MockProvider is an in-memory wallet. It answers account, chain id and
// chain switching requests from its own state; any method can be scripted
// with On. Every request is recorded.
type MockProvider struct {
	emitter

	mu       sync.Mutex
	accounts []common.Address
	chainID  uint64
	known    map[uint64]bool
	handlers map[string]HandlerFunc
	calls    []Call
}

// NewMockProvider returns a mock on chainID that grants accounts.
func NewMockProvider(chainID uint64, accounts ...common.Address) *MockProvider {
	return &MockProvider{
		accounts: accounts,
		chainID:  chainID,
		known:    map[uint64]bool{chainID: true},
		handlers: make(map[string]HandlerFunc),
	}
}

// On scripts the answer for method, replacing any built-in behavior.
func (m *MockProvider) On(method string, h HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[method] = h
}

// Off removes a scripted handler.
func (m *MockProvider) Off(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, method)
}

// RequestAccounts implements Provider.
func (m *MockProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	raw, err := m.Request(ctx, MethodRequestAccounts)
	if err != nil {
		return nil, err
	}
	return ParseAccounts(raw)
}

// Request implements Provider.
func (m *MockProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	encoded, err := encodeParams(params)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, Call{Method: method, Params: encoded})
	h, ok := m.handlers[method]
	m.mu.Unlock()

	if !ok {
		h = m.builtin(method)
	}
	result, err := h(encoded)
	if err != nil {
		return nil, err
	}
	if raw, ok := result.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode mock result: %w", err)
	}
	return b, nil
}

func (m *MockProvider) builtin(method string) HandlerFunc {
	switch method {
	case MethodRequestAccounts, MethodAccounts:
		return func([]json.RawMessage) (any, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			out := make([]common.Address, len(m.accounts))
			copy(out, m.accounts)
			return out, nil
		}
	case MethodChainID:
		return func([]json.RawMessage) (any, error) {
			return ChainIDHex(m.ChainID()), nil
		}
	case MethodSwitchChain:
		return m.switchChain
	case MethodAddChain:
		return m.addChain
	default:
		return Reject(CodeMethodNotFound, fmt.Sprintf("the method %s does not exist/is not available", method))
	}
}

func (m *MockProvider) switchChain(params []json.RawMessage) (any, error) {
	var p SwitchChainParams
	if len(params) != 1 || json.Unmarshal(params[0], &p) != nil {
		return nil, NewRPCError(CodeInvalidParams, "expected [{chainId}]")
	}
	id, err := ParseChainID(json.RawMessage(`"` + p.ChainID + `"`))
	if err != nil {
		return nil, NewRPCError(CodeInvalidParams, err.Error())
	}

	m.mu.Lock()
	if !m.known[id] {
		m.mu.Unlock()
		return nil, NewRPCError(CodeUnrecognizedChain, fmt.Sprintf("Unrecognized chain ID %q", p.ChainID))
	}
	changed := m.chainID != id
	m.chainID = id
	m.mu.Unlock()

	if changed {
		m.emit(EventChainChanged, ChainIDHex(id))
	}
	return nil, nil
}

func (m *MockProvider) addChain(params []json.RawMessage) (any, error) {
	var p AddChainParams
	if len(params) != 1 || json.Unmarshal(params[0], &p) != nil {
		return nil, NewRPCError(CodeInvalidParams, "expected [{chainId, chainName, nativeCurrency, rpcUrls}]")
	}
	id, err := ParseChainID(json.RawMessage(`"` + p.ChainID + `"`))
	if err != nil {
		return nil, NewRPCError(CodeInvalidParams, err.Error())
	}
	m.AddKnownChain(id)
	return nil, nil
}

// AddKnownChain makes id switchable without registration.
func (m *MockProvider) AddKnownChain(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.known[id] = true
}

// ChainID returns the chain the mock is on.
func (m *MockProvider) ChainID() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chainID
}

// SetChainID moves the mock to id and emits chainChanged.
func (m *MockProvider) SetChainID(id uint64) {
	m.mu.Lock()
	m.chainID = id
	m.known[id] = true
	m.mu.Unlock()
	m.emit(EventChainChanged, ChainIDHex(id))
}

// SetAccounts replaces the granted accounts and emits accountsChanged.
func (m *MockProvider) SetAccounts(accounts ...common.Address) {
	m.mu.Lock()
	m.accounts = accounts
	m.mu.Unlock()
	if accounts == nil {
		accounts = []common.Address{}
	}
	m.emit(EventAccountsChanged, accounts)
}

// Emit delivers an arbitrary event to subscribers.
func (m *MockProvider) Emit(event string, payload any) {
	m.emit(event, payload)
}

// Calls returns a copy of every recorded request.
func (m *MockProvider) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times method was requested.
func (m *MockProvider) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// ResetCalls forgets recorded requests.
func (m *MockProvider) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
