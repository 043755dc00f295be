package config

// Wallet provider kinds
const (
	ProviderRPC    = "rpc"
	ProviderBridge = "bridge"
)

// WalletConfig selects how transactions get signed.
type WalletConfig struct {
	// Provider is "rpc" (a JSON-RPC signer such as a dev node or Clef) or
	// "bridge" (a browser wallet reached through a local relay page).
	Provider string `yaml:"provider" env:"PROVIDER"`
	// SignerURL is the JSON-RPC signer endpoint. Empty means network.rpc_url.
	SignerURL        string `yaml:"signer_url" env:"SIGNER_URL"`
	BridgeListenAddr string `yaml:"bridge_listen_addr" env:"BRIDGE_LISTEN_ADDR"`
	OpenBrowser      bool   `yaml:"open_browser" env:"OPEN_BROWSER"`
}
