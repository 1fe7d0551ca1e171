package types

const (
	// PercentBase is the denominator for every basis-point value.
	PercentBase uint64 = 10_000
	// MinimumLiquidity is locked forever on the first deposit into a pool.
	MinimumLiquidity uint64 = 10

	DefaultLiquidityFeeBps          uint64 = 10
	DefaultProtocolFeeBps           uint64 = 10
	DefaultBaseInterestRate         uint64 = 5
	DefaultMinCollateralRatioBps    uint64 = 10_000
	DefaultLiquidationRewardDivisor uint64 = 100
)

// LendingParams are the configured constants applied by the lending engine.
type LendingParams struct {
	// BaseInterestRate is charged per block, in basis points of principal.
	BaseInterestRate uint64
	// MinCollateralRatioBps is the required collateral value over borrowed
	// principal, in basis points.
	MinCollateralRatioBps uint64
	// LiquidationRewardDivisor sets the liquidator reward to
	// collateral / divisor.
	LiquidationRewardDivisor uint64
}

// DefaultLendingParams returns the protocol constants.
func DefaultLendingParams() LendingParams {
	return LendingParams{
		BaseInterestRate:         DefaultBaseInterestRate,
		MinCollateralRatioBps:    DefaultMinCollateralRatioBps,
		LiquidationRewardDivisor: DefaultLiquidationRewardDivisor,
	}
}

// Normalize fills zero fields with defaults.
func (p LendingParams) Normalize() LendingParams {
	defaults := DefaultLendingParams()
	if p.MinCollateralRatioBps == 0 {
		p.MinCollateralRatioBps = defaults.MinCollateralRatioBps
	}
	if p.LiquidationRewardDivisor == 0 {
		p.LiquidationRewardDivisor = defaults.LiquidationRewardDivisor
	}
	return p
}
