package amm

import (
	"fall/core/types"
	"fall/native/fixedmath"
)

// QuoteOutput returns the constant-product output for input before fees:
// reserveOut - floor(reserveIn*reserveOut/(reserveIn+input)).
func QuoteOutput(reserveIn, reserveOut, input uint64) (uint64, error) {
	if input == 0 {
		return 0, ErrInvalidInput
	}
	if reserveIn == 0 || reserveOut == 0 {
		return 0, ErrEmptyPool
	}
	denominator, err := fixedmath.Add(reserveIn, input)
	if err != nil {
		return 0, overflow(err)
	}
	remaining, err := fixedmath.MulDiv(reserveIn, reserveOut, denominator)
	if err != nil {
		return 0, overflow(err)
	}
	return reserveOut - remaining, nil
}

// ApplyFee splits raw output into the net amount paid out and the fee kept by
// the pool.
func ApplyFee(raw, feeBps uint64) (net, fee uint64, err error) {
	if feeBps > types.PercentBase {
		return 0, 0, ErrInvalidFee
	}
	fee, err = fixedmath.MulDiv(raw, feeBps, types.PercentBase)
	if err != nil {
		return 0, 0, overflow(err)
	}
	return raw - fee, fee, nil
}

// SwapResult describes a priced trade.
type SwapResult struct {
	Raw           uint64
	Fee           uint64
	Net           uint64
	NewReserveIn  uint64
	NewReserveOut uint64
}

// SwapAmounts prices a trade and returns the reserves after it settles.
func SwapAmounts(reserveIn, reserveOut, input, minOutput, feeBps uint64) (SwapResult, error) {
	raw, err := QuoteOutput(reserveIn, reserveOut, input)
	if err != nil {
		return SwapResult{}, err
	}
	net, fee, err := ApplyFee(raw, feeBps)
	if err != nil {
		return SwapResult{}, err
	}
	if net < minOutput {
		return SwapResult{}, ErrExcessiveSlippage
	}
	if net == 0 {
		return SwapResult{}, ErrOutputTooSmall
	}
	newIn, err := fixedmath.Add(reserveIn, input)
	if err != nil {
		return SwapResult{}, overflow(err)
	}
	return SwapResult{
		Raw:           raw,
		Fee:           fee,
		Net:           net,
		NewReserveIn:  newIn,
		NewReserveOut: reserveOut - net,
	}, nil
}

// VerifyInvariant checks realized post-trade balances against the pre-trade
// product. The floor in QuoteOutput can leave the product short by less than
// one unit of the output reserve, so newIn*(newOut+1) must reach the old
// product.
func VerifyInvariant(oldIn, oldOut, newIn, newOut uint64) error {
	if fixedmath.MulCmp(newIn, fixedmath.SaturatingAdd(newOut, 1), oldIn, oldOut) < 0 {
		return ErrInvariantViolated
	}
	return nil
}

// DepositResult is the outcome of pricing a liquidity deposit.
type DepositResult struct {
	AcceptedA      uint64
	AcceptedB      uint64
	Minted         uint64
	UserShares     uint64
	ProtocolShares uint64
	// Locked is the minimum liquidity retained on pool creation.
	Locked uint64
}

// DepositAmounts rescales the offered amounts to the reserve ratio and prices
// the shares to mint. An empty pool accepts the offer as-is and locks
// MinimumLiquidity.
func DepositAmounts(reserveA, reserveB, wantA, wantB, protocolFeeBps uint64) (DepositResult, error) {
	if protocolFeeBps > types.PercentBase {
		return DepositResult{}, ErrInvalidFee
	}
	if wantA == 0 || wantB == 0 {
		return DepositResult{}, ErrDepositTooSmall
	}
	var res DepositResult
	switch {
	case reserveA == 0 && reserveB == 0:
		root := fixedmath.SqrtProduct(wantA, wantB)
		if root <= types.MinimumLiquidity {
			return DepositResult{}, ErrDepositTooSmall
		}
		res.AcceptedA, res.AcceptedB = wantA, wantB
		res.Minted = root - types.MinimumLiquidity
		res.Locked = types.MinimumLiquidity
	case reserveA == 0 || reserveB == 0:
		return DepositResult{}, ErrEmptyPool
	default:
		optimalB, err := fixedmath.MulDiv(wantA, reserveB, reserveA)
		if err != nil {
			return DepositResult{}, overflow(err)
		}
		if optimalB <= wantB {
			res.AcceptedA, res.AcceptedB = wantA, optimalB
		} else {
			optimalA, err := fixedmath.MulDiv(wantB, reserveA, reserveB)
			if err != nil {
				return DepositResult{}, overflow(err)
			}
			res.AcceptedA, res.AcceptedB = optimalA, wantB
		}
		if res.AcceptedA == 0 || res.AcceptedB == 0 {
			return DepositResult{}, ErrDepositTooSmall
		}
		res.Minted = fixedmath.SqrtProduct(res.AcceptedA, res.AcceptedB)
	}
	if res.Minted == 0 {
		return DepositResult{}, ErrDepositTooSmall
	}
	user, err := fixedmath.MulDiv(res.Minted, types.PercentBase-protocolFeeBps, types.PercentBase)
	if err != nil {
		return DepositResult{}, overflow(err)
	}
	res.UserShares = user
	res.ProtocolShares = res.Minted - user
	return res, nil
}

// WithdrawAmounts returns the reserves owed for burning shares out of supply.
func WithdrawAmounts(reserveA, reserveB, shares, supply uint64) (outA, outB uint64, err error) {
	if shares == 0 {
		return 0, 0, ErrInvalidInput
	}
	if shares > supply {
		return 0, 0, ErrInsufficientBalance
	}
	if outA, err = fixedmath.MulDiv(reserveA, shares, supply); err != nil {
		return 0, 0, overflow(err)
	}
	if outB, err = fixedmath.MulDiv(reserveB, shares, supply); err != nil {
		return 0, 0, overflow(err)
	}
	return outA, outB, nil
}
