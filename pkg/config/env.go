package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment variable read by ParseEnv,
// e.g. CASELEDGER_NETWORK_CHAIN_ID or CASELEDGER_STORAGE_BACKEND.
const EnvPrefix = "CASELEDGER_"

// ParseEnv overlays environment variables onto target. Unset variables
// leave the existing values alone.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
