package config

import "time"

// Config is the full configuration shared by evidencectl and the indexer.
type Config struct {
	Network   NetworkConfig   `yaml:"network" envPrefix:"NETWORK_"`
	Registry  RegistryConfig  `yaml:"registry" envPrefix:"REGISTRY_"`
	Wallet    WalletConfig    `yaml:"wallet" envPrefix:"WALLET_"`
	Storage   StorageConfig   `yaml:"storage" envPrefix:"STORAGE_"`
	Index     IndexConfig     `yaml:"index" envPrefix:"INDEX_"`
	Indexer   IndexerConfig   `yaml:"indexer" envPrefix:"INDEXER_"`
	Logging   LoggingConfig   `yaml:"logging" envPrefix:"LOG_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

// RegistryConfig locates the case registry contract.
type RegistryConfig struct {
	ContractAddress     string        `yaml:"contract_address" env:"CONTRACT_ADDRESS"`
	ReceiptPollInterval time.Duration `yaml:"receipt_poll_interval" env:"RECEIPT_POLL_INTERVAL"`
}

// TelemetryConfig enables OTLP trace export.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" env:"ENABLED"`
	Endpoint    string `yaml:"endpoint" env:"ENDPOINT"` // host:port of the OTLP/HTTP collector
	Insecure    bool   `yaml:"insecure" env:"INSECURE"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
}

// DefaultConfig returns a configuration for a local Hardhat node with a
// local IPFS daemon and the indexer on :3001.
func DefaultConfig() *Config {
	return &Config{
		Network: NetworkConfig{
			ChainID: 31337,
			Name:    "Hardhat",
			Currency: CurrencyConfig{
				Name:     "Ether",
				Symbol:   "ETH",
				Decimals: 18,
			},
			RPCURL: "http://127.0.0.1:8545",
		},
		Registry: RegistryConfig{
			ContractAddress:     "0x5FbDB2315678afecb367f032d93F642f64180aa3",
			ReceiptPollInterval: time.Second,
		},
		Wallet: WalletConfig{
			Provider:         ProviderRPC,
			BridgeListenAddr: "127.0.0.1:0",
			OpenBrowser:      true,
		},
		Storage: StorageConfig{
			Backend:           BackendIPFS,
			ClusterAPIURL:     "http://localhost:9094",
			IPFSAPIURL:        "http://localhost:5001",
			GatewayURL:        "https://ipfs.io",
			ReplicationFactor: 1,
		},
		Index: IndexConfig{
			Enabled: true,
			BaseURL: "http://localhost:3001/api",
			Timeout: 5 * time.Second,
		},
		Indexer: IndexerConfig{
			ListenAddr:   ":3001",
			Driver:       DriverSQLite,
			DSN:          "file:caseledger-index.db?_foreign_keys=on",
			SyncInterval: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "caseledger",
		},
	}
}
