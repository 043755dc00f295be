package config

// NetworkConfig describes the single target chain the wallet must be on.
type NetworkConfig struct {
	ChainID  uint64         `yaml:"chain_id" env:"CHAIN_ID"`
	Name     string         `yaml:"name" env:"NAME"`
	Currency CurrencyConfig `yaml:"currency" envPrefix:"CURRENCY_"`
	RPCURL   string         `yaml:"rpc_url" env:"RPC_URL"` // also offered to wallets that do not know the chain
}

// CurrencyConfig is the native currency advertised when registering the chain.
type CurrencyConfig struct {
	Name     string `yaml:"name" env:"NAME"`
	Symbol   string `yaml:"symbol" env:"SYMBOL"`
	Decimals uint8  `yaml:"decimals" env:"DECIMALS"`
}
