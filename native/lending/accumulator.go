package lending

import (
	"math"

	"fall/core/types"
	"fall/native/fixedmath"
)

// Accumulator kinds reported when an index saturates.
const (
	KindBorrowInterest = "borrow_interest"
	KindShareLending   = "share_lending"
)

// Advance moves a time-weighted accumulator from lastHeight to currentHeight:
// acc + (currentHeight-lastHeight)*weight, saturating at math.MaxUint64. A
// current height below lastHeight is a clock regression and fails.
func Advance(acc, lastHeight, currentHeight, weight uint64) (uint64, uint64, error) {
	return advance(acc, lastHeight, currentHeight, weight, 1, 1)
}

func advance(acc, lastHeight, currentHeight, weight, rate, base uint64) (uint64, uint64, error) {
	if currentHeight < lastHeight {
		return acc, lastHeight, ErrArithmeticOverflow
	}
	delta, err := fixedmath.SaturatingMulDivWide(currentHeight-lastHeight, weight, rate, base)
	if err != nil {
		return acc, lastHeight, arithmetic(err)
	}
	return fixedmath.SaturatingAdd(acc, delta), currentHeight, nil
}

// AdvanceBorrowInterest accrues blocks*TotalBorrowed*rate/PercentBase into the
// borrow interest index. The product is floored once after the full wide
// multiplication. It reports true when this call pushed the index to its
// saturation point.
func AdvanceBorrowInterest(pool *types.Pool, height, rate uint64) (bool, error) {
	before := pool.BorrowInterestAccumulator
	acc, h, err := advance(before, pool.BorrowInterestHeight, height, pool.TotalBorrowed, rate, types.PercentBase)
	if err != nil {
		return false, err
	}
	pool.BorrowInterestAccumulator, pool.BorrowInterestHeight = acc, h
	return acc == math.MaxUint64 && before != math.MaxUint64, nil
}

// AdvanceShareLending accrues blocks*TotalLent into the share lending index.
func AdvanceShareLending(pool *types.Pool, height uint64) (bool, error) {
	before := pool.ShareLendingAccumulator
	acc, h, err := Advance(before, pool.ShareLendingHeight, height, pool.TotalLent)
	if err != nil {
		return false, err
	}
	pool.ShareLendingAccumulator, pool.ShareLendingHeight = acc, h
	return acc == math.MaxUint64 && before != math.MaxUint64, nil
}

// ReduceShareLending removes a redeemed lender's time weight. Truncation
// across many lenders can leave less than amount, so it clamps at zero.
func ReduceShareLending(pool *types.Pool, amount uint64) {
	pool.ShareLendingAccumulator = fixedmath.SaturatingSub(pool.ShareLendingAccumulator, amount)
}
