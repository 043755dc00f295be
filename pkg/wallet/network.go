package wallet

import (
	"context"
	"fmt"

	apperrors "github.com/DeBrosOfficial/caseledger/pkg/errors"
	"github.com/DeBrosOfficial/caseledger/pkg/logging"
	"github.com/DeBrosOfficial/caseledger/pkg/provider"
	"go.uber.org/zap"
)

// Network is the single chain writes must target.
type Network struct {
	ChainID  uint64
	Name     string
	Currency provider.NativeCurrency
	RPCURL   string
}

// NetworkGuard moves the session's provider onto the target network.
type NetworkGuard struct {
	session *Session
	target  Network
	logger  *logging.ColoredLogger
}

// NewNetworkGuard returns a guard for target.
func NewNetworkGuard(session *Session, target Network, logger *logging.ColoredLogger) *NetworkGuard {
	return &NetworkGuard{
		session: session,
		target:  target,
		logger:  logging.OrNop(logger),
	}
}

// Target returns the network the guard enforces.
func (g *NetworkGuard) Target() Network {
	return g.target
}

// CurrentChainID asks the provider which chain it is on.
func (g *NetworkGuard) CurrentChainID(ctx context.Context) (uint64, error) {
	p := g.session.Provider()
	if p == nil {
		return 0, apperrors.NewProviderUnavailableError(nil)
	}
	raw, err := p.Request(ctx, provider.MethodChainID)
	if err != nil {
		return 0, err
	}
	return provider.ParseChainID(raw)
}

// EnsureCorrectNetwork reports whether the provider is on the target chain,
// switching it there when it is not. An unknown chain is registered and the
// switch tried once more. Declined, failed or unverifiable switches report
// false with a nil error; only switch errors unrelated to an unknown chain
// are returned.
func (g *NetworkGuard) EnsureCorrectNetwork(ctx context.Context) (bool, error) {
	p := g.session.Provider()
	if p == nil {
		return false, apperrors.NewProviderUnavailableError(nil)
	}

	current, err := g.CurrentChainID(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		g.logger.ComponentWarn(logging.ComponentNetwork, "cannot read chain id", zap.Error(err))
		return false, nil
	}
	if current == g.target.ChainID {
		return true, nil
	}

	g.logger.ComponentInfo(logging.ComponentNetwork, "switching network",
		zap.Uint64("from", current), zap.Uint64("to", g.target.ChainID))

	switchParams := provider.SwitchChainParams{ChainID: provider.ChainIDHex(g.target.ChainID)}
	_, err = p.Request(ctx, provider.MethodSwitchChain, switchParams)
	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case provider.IsUserRejected(err):
		g.logger.ComponentWarn(logging.ComponentNetwork, "network switch declined")
		return false, nil
	case !provider.IsUnrecognizedChain(err):
		return false, fmt.Errorf("switch to chain %d: %w", g.target.ChainID, err)
	}

	g.logger.ComponentInfo(logging.ComponentNetwork, "wallet does not know the network, registering it",
		zap.String("name", g.target.Name))
	if _, err := p.Request(ctx, provider.MethodAddChain, g.addChainParams()); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		g.logger.ComponentWarn(logging.ComponentNetwork, "failed to register network", zap.Error(err))
		return false, nil
	}
	if _, err := p.Request(ctx, provider.MethodSwitchChain, switchParams); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		g.logger.ComponentWarn(logging.ComponentNetwork, "switch after registration failed", zap.Error(err))
		return false, nil
	}
	return true, nil
}

// RequireCorrectNetwork is EnsureCorrectNetwork for writes: a false answer
// becomes a WrongNetwork error.
func (g *NetworkGuard) RequireCorrectNetwork(ctx context.Context) error {
	ok, err := g.EnsureCorrectNetwork(ctx)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	have, _ := g.CurrentChainID(ctx)
	return apperrors.NewWrongNetworkError(g.target.ChainID, have)
}

func (g *NetworkGuard) addChainParams() provider.AddChainParams {
	var rpcURLs []string
	if g.target.RPCURL != "" {
		rpcURLs = []string{g.target.RPCURL}
	}
	return provider.AddChainParams{
		ChainID:        provider.ChainIDHex(g.target.ChainID),
		ChainName:      g.target.Name,
		NativeCurrency: g.target.Currency,
		RPCURLs:        rpcURLs,
	}
}
