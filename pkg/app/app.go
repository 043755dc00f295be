// Package app assembles the components of caseledger from a Config.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/DeBrosOfficial/caseledger/pkg/config"
	"github.com/DeBrosOfficial/caseledger/pkg/contentstore"
	"github.com/DeBrosOfficial/caseledger/pkg/facade"
	"github.com/DeBrosOfficial/caseledger/pkg/index"
	"github.com/DeBrosOfficial/caseledger/pkg/logging"
	"github.com/DeBrosOfficial/caseledger/pkg/provider"
	"github.com/DeBrosOfficial/caseledger/pkg/registry"
	"github.com/DeBrosOfficial/caseledger/pkg/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// App holds the wired components. Close releases the provider and the
// ledger connection.
type App struct {
	Config     *config.Config
	Logger     *logging.ColoredLogger
	Session    *wallet.Session
	Connection *wallet.ConnectionManager
	Guard      *wallet.NetworkGuard
	Registry   *registry.Client
	Content    *contentstore.Store
	Index      *index.Client // nil when the aux index is disabled
	Facade     *facade.Facade

	closers []func()
}

// Option overrides a component New would otherwise build from config.
type Option func(*options)

type options struct {
	provider provider.Provider
	backend  registry.Backend
	objects  contentstore.ObjectStore
	observer registry.StateObserver
}

// WithProvider uses p instead of dialing the configured signer.
func WithProvider(p provider.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithBackend uses b for ledger reads and receipts instead of dialing network.rpc_url.
func WithBackend(b registry.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithObjectStore uses s instead of the configured storage backend.
func WithObjectStore(s contentstore.ObjectStore) Option {
	return func(o *options) { o.objects = s }
}

// WithWriteObserver receives every ledger write state transition.
func WithWriteObserver(fn registry.StateObserver) Option {
	return func(o *options) { o.observer = fn }
}

// New wires every component. Providers are dialed lazily where possible;
// the bridge provider starts its relay server immediately.
func New(ctx context.Context, cfg *config.Config, logger *logging.ColoredLogger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Logger: logging.OrNop(logger)}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	if o.provider == nil {
		p, err := a.dialProvider(ctx)
		if err != nil {
			return nil, err
		}
		o.provider = p
	}
	if o.backend == nil {
		b, err := a.dialBackend(ctx, o.provider)
		if err != nil {
			return nil, err
		}
		o.backend = b
	}
	if o.objects == nil {
		o.objects = a.objectStore()
	}

	a.Session = wallet.NewSession(o.provider)
	a.Connection = wallet.NewConnectionManager(a.Session, a.Logger)
	a.closers = append(a.closers, a.Connection.Close)
	a.Guard = wallet.NewNetworkGuard(a.Session, TargetNetwork(cfg.Network), a.Logger)

	reg, err := registry.NewClient(o.backend, common.HexToAddress(cfg.Registry.ContractAddress),
		registry.WithSession(a.Session, a.Guard),
		registry.WithLogger(a.Logger),
		registry.WithPollInterval(cfg.Registry.ReceiptPollInterval),
		registry.WithStateObserver(o.observer),
	)
	if err != nil {
		return nil, err
	}
	a.Registry = reg
	a.Content = contentstore.NewStore(o.objects, cfg.Storage.GatewayURL, a.Logger)

	fopts := []facade.Option{facade.WithContent(a.Content), facade.WithLogger(a.Logger)}
	if cfg.Index.Enabled {
		a.Index = index.NewClient(index.Config{BaseURL: cfg.Index.BaseURL, Timeout: cfg.Index.Timeout}, a.Logger)
		fopts = append(fopts, facade.WithIndex(a.Index))
	}
	a.Facade = facade.New(a.Registry, fopts...)

	ok = true
	return a, nil
}

// Close releases everything New opened, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// TargetNetwork converts the network section into the guard's target.
func TargetNetwork(nc config.NetworkConfig) wallet.Network {
	return wallet.Network{
		ChainID: nc.ChainID,
		Name:    nc.Name,
		Currency: provider.NativeCurrency{
			Name:     nc.Currency.Name,
			Symbol:   nc.Currency.Symbol,
			Decimals: nc.Currency.Decimals,
		},
		RPCURL: nc.RPCURL,
	}
}

func (a *App) dialProvider(ctx context.Context) (provider.Provider, error) {
	wc := a.Config.Wallet
	switch wc.Provider {
	case config.ProviderBridge:
		b, err := provider.NewBridgeProvider(provider.BridgeOptions{
			ListenAddr:  wc.BridgeListenAddr,
			OpenBrowser: wc.OpenBrowser,
		}, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("start wallet bridge: %w", err)
		}
		a.closers = append(a.closers, func() { b.Close() })
		return b, nil
	case config.ProviderRPC, "":
		url := wc.SignerURL
		if url == "" {
			url = a.Config.Network.RPCURL
		}
		p, err := provider.DialRPC(ctx, url, a.Logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, p.Close)
		return p, nil
	default:
		return nil, fmt.Errorf("unknown wallet provider %q", wc.Provider)
	}
}

// dialBackend reuses the signer connection when it points at the ledger
// node, and dials network.rpc_url otherwise.
func (a *App) dialBackend(ctx context.Context, p provider.Provider) (registry.Backend, error) {
	if rp, ok := p.(*provider.RPCProvider); ok && (a.Config.Wallet.SignerURL == "" || a.Config.Wallet.SignerURL == a.Config.Network.RPCURL) {
		return ethclient.NewClient(rp.Client()), nil
	}
	client, err := ethclient.DialContext(ctx, a.Config.Network.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger %s: %w", a.Config.Network.RPCURL, err)
	}
	a.closers = append(a.closers, client.Close)
	return client, nil
}

func (a *App) objectStore() contentstore.ObjectStore {
	sc := a.Config.Storage
	if sc.Backend == config.BackendMemory {
		a.Logger.ComponentWarn(logging.ComponentStorage, "using in-memory content store; uploads are lost on exit")
		return contentstore.NewMemoryBackend()
	}
	return contentstore.NewIPFSBackend(contentstore.IPFSConfig{
		ClusterAPIURL:     sc.ClusterAPIURL,
		IPFSAPIURL:        sc.IPFSAPIURL,
		Timeout:           sc.Timeout,
		ReplicationFactor: sc.ReplicationFactor,
	}, a.Logger)
}

// NewLogger builds the logger described by the logging section. The
// returned cleanup closes the log file, if any.
func NewLogger(lc config.LoggingConfig) (*logging.ColoredLogger, func(), error) {
	opts := logging.Options{Level: lc.Level, Format: lc.Format, Colors: lc.Colors}
	var (
		logger  *logging.ColoredLogger
		cleanup = func() {}
		err     error
	)
	if lc.OutputFile != "" {
		var closeFile func() error
		logger, closeFile, err = logging.NewFileLogger(lc.OutputFile, opts)
		if err == nil {
			cleanup = func() { _ = closeFile() }
		}
	} else {
		logger, err = logging.NewLogger(opts)
	}
	if err != nil {
		return nil, func() {}, err
	}
	logger.ComponentDebug(logging.ComponentGeneral, "logger ready",
		zap.String("level", lc.Level), zap.String("format", lc.Format))
	return logger, cleanup, nil
}
