package config

import "time"

// Indexer store drivers
const (
	DriverSQLite = "sqlite3"
	DriverRQLite = "rqlite"
)

// IndexConfig points clients at the aux read index.
type IndexConfig struct {
	Enabled bool          `yaml:"enabled" env:"ENABLED"`
	BaseURL string        `yaml:"base_url" env:"BASE_URL"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// IndexerConfig configures the mirror service behind the aux index.
type IndexerConfig struct {
	ListenAddr   string        `yaml:"listen_addr" env:"LISTEN_ADDR"`
	Driver       string        `yaml:"driver" env:"DRIVER"` // sqlite3 or rqlite
	DSN          string        `yaml:"dsn" env:"DSN"`
	SyncInterval time.Duration `yaml:"sync_interval" env:"SYNC_INTERVAL"`
}
