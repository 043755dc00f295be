package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/DeBrosOfficial/caseledger/pkg/logging"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// RPCProvider speaks to a JSON-RPC signer: a development node with unlocked
// accounts, Clef, or any endpoint that implements eth_sendTransaction.
// Such endpoints push no events, so account and chain changes are derived
// from the answers the provider observes.
type RPCProvider struct {
	emitter

	client *rpc.Client
	logger *logging.ColoredLogger

	mu           sync.Mutex
	accounts     []common.Address
	seenAccounts bool
	chainID      uint64
}

// DialRPC connects to a JSON-RPC signer at url.
func DialRPC(ctx context.Context, url string, logger *logging.ColoredLogger) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial signer %s: %w", url, err)
	}
	return NewRPCProvider(client, logger), nil
}

// NewRPCProvider wraps an existing rpc client.
func NewRPCProvider(client *rpc.Client, logger *logging.ColoredLogger) *RPCProvider {
	return &RPCProvider{
		client: client,
		logger: logging.OrNop(logger),
	}
}

// Client exposes the underlying rpc client so ledger reads can share it.
func (p *RPCProvider) Client() *rpc.Client {
	return p.client
}

// Request implements Provider.
func (p *RPCProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := p.client.CallContext(ctx, &raw, method, params...); err != nil {
		if re, ok := AsRPCError(err); ok {
			return nil, re
		}
		return nil, err
	}
	p.observe(ctx, method, raw)
	return raw, nil
}

// RequestAccounts implements Provider. Signers without eth_requestAccounts
// are asked for eth_accounts instead.
func (p *RPCProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	raw, err := p.Request(ctx, MethodRequestAccounts)
	if IsMethodUnsupported(err) {
		p.logger.ComponentDebug(logging.ComponentWallet, "signer lacks eth_requestAccounts, using eth_accounts")
		raw, err = p.Request(ctx, MethodAccounts)
	}
	if err != nil {
		return nil, err
	}
	return ParseAccounts(raw)
}

// Close closes the rpc client.
func (p *RPCProvider) Close() {
	p.client.Close()
}

func (p *RPCProvider) observe(ctx context.Context, method string, raw json.RawMessage) {
	switch method {
	case MethodRequestAccounts, MethodAccounts:
		accounts, err := ParseAccounts(raw)
		if err != nil {
			return
		}
		p.mu.Lock()
		changed := p.seenAccounts && !sameAccounts(p.accounts, accounts)
		p.accounts = accounts
		p.seenAccounts = true
		p.mu.Unlock()
		if changed {
			p.emit(EventAccountsChanged, accounts)
		}
	case MethodChainID:
		id, err := ParseChainID(raw)
		if err != nil {
			return
		}
		p.setChain(id)
	case MethodSwitchChain:
		var id string
		if err := p.client.CallContext(ctx, &id, MethodChainID); err != nil {
			p.logger.ComponentWarn(logging.ComponentNetwork, "cannot read chain id after switch", zap.Error(err))
			return
		}
		if n, err := ParseChainID(json.RawMessage(`"` + id + `"`)); err == nil {
			p.setChain(n)
		}
	}
}

func (p *RPCProvider) setChain(id uint64) {
	p.mu.Lock()
	prev := p.chainID
	p.chainID = id
	p.mu.Unlock()
	if prev != 0 && prev != id {
		p.emit(EventChainChanged, ChainIDHex(id))
	}
}
