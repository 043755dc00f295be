package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ValidationError represents a single validation error with context.
type ValidationError struct {
	Path    string // e.g., "network.chain_id"
	Message string // e.g., "must be positive"
	Hint    string // e.g., "31337 for a local Hardhat node"
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s; %s", e.Path, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validate performs comprehensive validation of the entire config.
// It aggregates all errors and returns them, allowing the caller to print all issues at once.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateNetwork()...)
	errs = append(errs, c.validateRegistry()...)
	errs = append(errs, c.validateWallet()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateIndex()...)
	errs = append(errs, c.validateIndexer()...)
	errs = append(errs, c.validateLogging()...)
	errs = append(errs, c.validateTelemetry()...)

	return errs
}

func (c *Config) validateNetwork() []error {
	var errs []error
	nc := c.Network

	if nc.ChainID == 0 {
		errs = append(errs, ValidationError{
			Path:    "network.chain_id",
			Message: "must be positive",
			Hint:    "31337 for a local Hardhat node",
		})
	}
	if strings.TrimSpace(nc.Name) == "" {
		errs = append(errs, ValidationError{
			Path:    "network.name",
			Message: "must not be empty",
			Hint:    "shown by wallets asked to add the chain",
		})
	}
	if nc.Currency.Symbol == "" {
		errs = append(errs, ValidationError{
			Path:    "network.currency.symbol",
			Message: "must not be empty",
		})
	}
	if nc.Currency.Decimals == 0 {
		errs = append(errs, ValidationError{
			Path:    "network.currency.decimals",
			Message: "must be positive",
			Hint:    "18 for ETH-like currencies",
		})
	}
	errs = append(errs, validateURL("network.rpc_url", nc.RPCURL, "http", "https", "ws", "wss")...)

	return errs
}

func (c *Config) validateRegistry() []error {
	var errs []error
	rc := c.Registry

	if !common.IsHexAddress(rc.ContractAddress) {
		errs = append(errs, ValidationError{
			Path:    "registry.contract_address",
			Message: fmt.Sprintf("invalid address %q", rc.ContractAddress),
			Hint:    "expected 0x followed by 40 hex characters",
		})
	} else if common.HexToAddress(rc.ContractAddress) == (common.Address{}) {
		errs = append(errs, ValidationError{
			Path:    "registry.contract_address",
			Message: "must not be the zero address",
		})
	}
	if rc.ReceiptPollInterval <= 0 {
		errs = append(errs, ValidationError{
			Path:    "registry.receipt_poll_interval",
			Message: "must be positive",
		})
	}

	return errs
}

func (c *Config) validateWallet() []error {
	var errs []error
	wc := c.Wallet

	switch wc.Provider {
	case ProviderRPC:
		if wc.SignerURL != "" {
			errs = append(errs, validateURL("wallet.signer_url", wc.SignerURL, "http", "https", "ws", "wss")...)
		}
	case ProviderBridge:
		if _, _, err := net.SplitHostPort(wc.BridgeListenAddr); err != nil {
			errs = append(errs, ValidationError{
				Path:    "wallet.bridge_listen_addr",
				Message: err.Error(),
				Hint:    "e.g. 127.0.0.1:0 for a random local port",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Path:    "wallet.provider",
			Message: fmt.Sprintf("unknown provider %q", wc.Provider),
			Hint:    "use rpc or bridge",
		})
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error
	sc := c.Storage

	switch sc.Backend {
	case BackendMemory:
	case BackendIPFS:
		errs = append(errs, validateURL("storage.cluster_api_url", sc.ClusterAPIURL, "http", "https")...)
		errs = append(errs, validateURL("storage.ipfs_api_url", sc.IPFSAPIURL, "http", "https")...)
		if sc.ReplicationFactor < 0 {
			errs = append(errs, ValidationError{
				Path:    "storage.replication_factor",
				Message: "must not be negative",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Path:    "storage.backend",
			Message: fmt.Sprintf("unknown backend %q", sc.Backend),
			Hint:    "use ipfs or memory",
		})
	}
	errs = append(errs, validateURL("storage.gateway_url", sc.GatewayURL, "http", "https")...)
	if sc.Timeout < 0 {
		errs = append(errs, ValidationError{
			Path:    "storage.timeout",
			Message: "must not be negative",
		})
	}

	return errs
}

func (c *Config) validateIndex() []error {
	if !c.Index.Enabled {
		return nil
	}
	errs := validateURL("index.base_url", c.Index.BaseURL, "http", "https")
	if c.Index.Timeout < 0 {
		errs = append(errs, ValidationError{
			Path:    "index.timeout",
			Message: "must not be negative",
		})
	}
	return errs
}

func (c *Config) validateIndexer() []error {
	var errs []error
	ic := c.Indexer

	if _, _, err := net.SplitHostPort(ic.ListenAddr); err != nil {
		errs = append(errs, ValidationError{
			Path:    "indexer.listen_addr",
			Message: err.Error(),
			Hint:    "e.g. :3001",
		})
	}
	switch ic.Driver {
	case DriverSQLite, DriverRQLite:
	default:
		errs = append(errs, ValidationError{
			Path:    "indexer.driver",
			Message: fmt.Sprintf("unknown driver %q", ic.Driver),
			Hint:    "use sqlite3 or rqlite",
		})
	}
	if ic.DSN == "" {
		errs = append(errs, ValidationError{
			Path:    "indexer.dsn",
			Message: "must not be empty",
		})
	}
	if ic.SyncInterval <= 0 {
		errs = append(errs, ValidationError{
			Path:    "indexer.sync_interval",
			Message: "must be positive",
		})
	}

	return errs
}

func (c *Config) validateLogging() []error {
	var errs []error
	lc := c.Logging

	switch lc.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Path:    "logging.level",
			Message: fmt.Sprintf("invalid value %q", lc.Level),
			Hint:    "allowed values: debug, info, warn, error",
		})
	}
	switch lc.Format {
	case "json", "console":
	default:
		errs = append(errs, ValidationError{
			Path:    "logging.format",
			Message: fmt.Sprintf("invalid value %q", lc.Format),
			Hint:    "allowed values: json, console",
		})
	}

	return errs
}

func (c *Config) validateTelemetry() []error {
	if !c.Telemetry.Enabled {
		return nil
	}
	var errs []error
	if c.Telemetry.Endpoint == "" {
		errs = append(errs, ValidationError{
			Path:    "telemetry.endpoint",
			Message: "must not be empty when telemetry is enabled",
			Hint:    "host:port of an OTLP/HTTP collector, e.g. localhost:4318",
		})
	}
	if c.Telemetry.ServiceName == "" {
		errs = append(errs, ValidationError{
			Path:    "telemetry.service_name",
			Message: "must not be empty",
		})
	}
	return errs
}

func validateURL(path, raw string, schemes ...string) []error {
	if raw == "" {
		return []error{ValidationError{Path: path, Message: "must not be empty"}}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return []error{ValidationError{
			Path:    path,
			Message: fmt.Sprintf("invalid URL %q", raw),
		}}
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return []error{ValidationError{
		Path:    path,
		Message: fmt.Sprintf("unsupported scheme %q", u.Scheme),
		Hint:    "expected one of " + strings.Join(schemes, ", "),
	}}
}
