package lending

import (
	"fall/core/types"
	"fall/native/fixedmath"
)

// CollateralValue prices an amount of the second asset in units of the first
// at the pool's reserve ratio, truncating toward zero. Values beyond uint64
// clamp to the maximum.
func CollateralValue(pool *types.Pool, amountB uint64) (uint64, error) {
	if pool.ReserveA == 0 || pool.ReserveB == 0 {
		return 0, ErrEmptyPool
	}
	value, err := fixedmath.SaturatingMulDivWide(amountB, pool.ReserveA, 1, pool.ReserveB)
	if err != nil {
		return 0, arithmetic(err)
	}
	return value, nil
}

// ConvertToB prices an amount of the first asset in units of the second. An
// unpriced pool converts to zero.
func ConvertToB(pool *types.Pool, amountA uint64) uint64 {
	if pool.ReserveA == 0 || pool.ReserveB == 0 || amountA == 0 {
		return 0
	}
	value, err := fixedmath.SaturatingMulDivWide(amountA, pool.ReserveB, 1, pool.ReserveA)
	if err != nil {
		return 0
	}
	return value
}

// MeetsCollateralRatio reports whether value*PercentBase >= amount*ratioBps.
func MeetsCollateralRatio(value, amount, ratioBps uint64) bool {
	return fixedmath.MulCmp(value, types.PercentBase, amount, ratioBps) >= 0
}
