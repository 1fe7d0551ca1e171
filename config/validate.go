package config

import (
	"fmt"
	"strings"

	"fall/core/types"
)

var storageBackends = map[string]struct{}{
	"leveldb": {},
	"bolt":    {},
	"memory":  {},
}

// Validate rejects settings the engines cannot run with.
func (c *Config) Validate() error {
	if _, ok := storageBackends[c.Storage.Backend]; !ok {
		return fmt.Errorf("storage: unknown backend %q", c.Storage.Backend)
	}
	if strings.TrimSpace(c.Exchange.ID) == "" {
		return fmt.Errorf("exchange: id required")
	}
	if c.Exchange.LiquidityFeeBps >= types.PercentBase {
		return fmt.Errorf("exchange: liquidity fee must be below %d bps", types.PercentBase)
	}
	if c.Exchange.ProtocolFeeBps >= types.PercentBase {
		return fmt.Errorf("exchange: protocol fee must be below %d bps", types.PercentBase)
	}
	if c.Clock.BlockIntervalMs <= 0 {
		return fmt.Errorf("clock: block interval must be positive")
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("max_connections must not be negative")
	}
	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit: values must not be negative")
	}
	if c.Auth.Enabled && strings.TrimSpace(c.Auth.HMACSecret) == "" {
		return fmt.Errorf("auth: hmac secret required when enabled")
	}
	return nil
}
