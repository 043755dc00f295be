package config

import "time"

// Storage backends
const (
	BackendIPFS   = "ipfs"
	BackendMemory = "memory"
)

// StorageConfig contains content store configuration
type StorageConfig struct {
	Backend string `yaml:"backend" env:"BACKEND"`

	// ClusterAPIURL is the IPFS Cluster HTTP API URL used for adds and pins.
	ClusterAPIURL string `yaml:"cluster_api_url" env:"CLUSTER_API_URL"`

	// IPFSAPIURL is the IPFS HTTP API URL used for content retrieval.
	IPFSAPIURL string `yaml:"ipfs_api_url" env:"IPFS_API_URL"`

	// GatewayURL prefixes resolvable URLs: <gateway>/ipfs/<cid>.
	GatewayURL string `yaml:"gateway_url" env:"GATEWAY_URL"`

	// Timeout bounds each backend request. Zero means none; uploads then
	// wait until the caller's context ends.
	Timeout           time.Duration `yaml:"timeout" env:"TIMEOUT"`
	ReplicationFactor int           `yaml:"replication_factor" env:"REPLICATION_FACTOR"`
}
