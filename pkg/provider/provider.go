// Package provider defines the signing capability the wallet session talks
// to: an EIP-1193 style request/event interface, plus implementations backed
// by a JSON-RPC signer, a browser wallet relay, and an in-memory mock.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Provider events
const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
	EventDisconnect      = "disconnect"
)

// Methods used by this module.
const (
	MethodRequestAccounts = "eth_requestAccounts"
	MethodAccounts        = "eth_accounts"
	MethodChainID         = "eth_chainId"
	MethodSwitchChain     = "wallet_switchEthereumChain"
	MethodAddChain        = "wallet_addEthereumChain"
	MethodSendTransaction = "eth_sendTransaction"
)

// Provider is a signing capability. Errors returned from Request are
// *RPCError when the provider answered with an error object.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
	Subscribe(event string, handler func(json.RawMessage)) (cancel func())
}

// SwitchChainParams is the single parameter of wallet_switchEthereumChain.
type SwitchChainParams struct {
	ChainID string `json:"chainId"`
}

// NativeCurrency describes a chain's currency for wallet_addEthereumChain.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// AddChainParams is the single parameter of wallet_addEthereumChain.
type AddChainParams struct {
	ChainID        string         `json:"chainId"`
	ChainName      string         `json:"chainName"`
	NativeCurrency NativeCurrency `json:"nativeCurrency"`
	RPCURLs        []string       `json:"rpcUrls"`
}

// TransactionArgs is the single parameter of eth_sendTransaction.
type TransactionArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to,omitempty"`
	Data  hexutil.Bytes   `json:"data"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Gas   *hexutil.Uint64 `json:"gas,omitempty"`
}

// ChainIDHex formats a chain id the way providers expect it ("0x7a69").
func ChainIDHex(id uint64) string {
	return hexutil.EncodeUint64(id)
}

// ParseChainID decodes an eth_chainId result. Providers answer with a hex
// quantity; a few older ones send a decimal string or number.
func ParseChainID(raw json.RawMessage) (uint64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("missing chain id")
	}
	var q hexutil.Uint64
	if err := json.Unmarshal(raw, &q); err == nil {
		return uint64(q), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if id, err := strconv.ParseUint(s, 10, 64); err == nil {
			return id, nil
		}
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	return 0, fmt.Errorf("invalid chain id %s", string(raw))
}

// ParseAccounts decodes an eth_accounts style result.
func ParseAccounts(raw json.RawMessage) ([]common.Address, error) {
	var accounts []common.Address
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("invalid accounts result: %w", err)
	}
	return accounts, nil
}

func encodeParams(params []any) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		if raw, ok := p.(json.RawMessage); ok {
			out = append(out, raw)
			continue
		}
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode param: %w", err)
		}
		out = append(out, b)
	}
	return out, nil
}

// emitter fans provider events out to subscribers. Handlers run on the
// emitting goroutine, outside the lock.
type emitter struct {
	mu   sync.Mutex
	seq  uint64
	subs map[string]map[uint64]func(json.RawMessage)
}

// Subscribe registers handler for event and returns a function that removes it.
func (e *emitter) Subscribe(event string, handler func(json.RawMessage)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.subs == nil {
		e.subs = make(map[string]map[uint64]func(json.RawMessage))
	}
	if e.subs[event] == nil {
		e.subs[event] = make(map[uint64]func(json.RawMessage))
	}
	e.seq++
	id := e.seq
	e.subs[event][id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs[event], id)
			e.mu.Unlock()
		})
	}
}

func (e *emitter) emit(event string, payload any) {
	raw, ok := payload.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(payload)
		if err != nil {
			return
		}
		raw = b
	}

	e.mu.Lock()
	handlers := make([]func(json.RawMessage), 0, len(e.subs[event]))
	for _, h := range e.subs[event] {
		handlers = append(handlers, h)
	}
	e.mu.Unlock()

	for _, h := range handlers {
		h(raw)
	}
}

func sameAccounts(a, b []common.Address) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
