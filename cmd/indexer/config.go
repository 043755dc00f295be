package main

import (
	"flag"
	"fmt"

	"github.com/DeBrosOfficial/caseledger/pkg/config"
)

// parseIndexerConfig loads the config file and applies flag overrides.
// Priority: flags > env > file > defaults.
func parseIndexerConfig(args []string) (*config.Config, error) {
	fs := flag.NewFlagSet("indexer", flag.ContinueOnError)
	path := fs.String("config", "", "config file (default ~/.caseledger/config.yaml)")
	addr := fs.String("addr", "", "HTTP listen address (e.g., :3001)")
	driver := fs.String("driver", "", "store driver: sqlite3 or rqlite")
	dsn := fs.String("dsn", "", "store data source name")
	interval := fs.Duration("sync-interval", 0, "ledger sync interval")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := config.Load(*path)
	if err != nil {
		return nil, err
	}
	if *addr != "" {
		cfg.Indexer.ListenAddr = *addr
	}
	if *driver != "" {
		cfg.Indexer.Driver = *driver
	}
	if *dsn != "" {
		cfg.Indexer.DSN = *dsn
	}
	if *interval != 0 {
		cfg.Indexer.SyncInterval = *interval
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %v", errs)
	}
	return cfg, nil
}
