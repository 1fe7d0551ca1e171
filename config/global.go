package config

import (
	"path/filepath"
	"strings"
	"time"

	"fall/core/types"
	"fall/crypto"
	nativecommon "fall/native/common"
)

// LendingParams converts the lending section into engine constants.
func (c *Config) LendingParams() types.LendingParams {
	return types.LendingParams{
		BaseInterestRate:         c.Lending.BaseInterestRate,
		MinCollateralRatioBps:    c.Lending.MinCollateralRatioBps,
		LiquidationRewardDivisor: c.Lending.LiquidationRewardDivisor,
	}.Normalize()
}

// Pauses returns the set of modules that reject mutations.
func (c *Config) Pauses() nativecommon.StaticPauses {
	return nativecommon.NewStaticPauses(c.PausedModules)
}

// ExchangeAdmin decodes the configured admin. An empty value selects an
// address derived from the exchange id.
func (c *Config) ExchangeAdmin() (crypto.Address, error) {
	if admin := strings.TrimSpace(c.Exchange.Admin); admin != "" {
		return crypto.DecodeAddress(admin)
	}
	return crypto.DeriveAddress([]byte("fall/exchange-admin"), []byte(c.Exchange.ID)), nil
}

// Genesis returns the wall-clock origin of block height zero.
func (c *Config) Genesis() time.Time {
	return time.Unix(c.Clock.GenesisUnix, 0).UTC()
}

func (c *Config) BlockInterval() time.Duration {
	return time.Duration(c.Clock.BlockIntervalMs) * time.Millisecond
}

// JournalDSN resolves relative sqlite paths against DataDir.
func (c *Config) JournalDSN() string {
	dsn := strings.TrimSpace(c.Journal.DSN)
	if dsn == "" || dsn == ":memory:" || strings.Contains(dsn, "://") || strings.HasPrefix(dsn, "file:") {
		return dsn
	}
	if filepath.IsAbs(dsn) {
		return dsn
	}
	return filepath.Join(c.DataDir, dsn)
}
