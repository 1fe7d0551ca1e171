// Package errors classifies engine failures into the classes callers act on.
package errors

import (
	stderrors "errors"

	"fall/native/amm"
	nativecommon "fall/native/common"
	"fall/native/fixedmath"
	"fall/native/lending"
)

var (
	ErrClockRegression = stderrors.New("core: block height moved backwards")
	ErrFaucetDisabled  = stderrors.New("core: faucet disabled")
	ErrInvalidAddress  = stderrors.New("core: invalid address")
)

// Class groups errors by how callers should react.
type Class string

const (
	ClassNone          Class = ""
	ClassValidation    Class = "validation"
	ClassNotFound      Class = "not_found"
	ClassConflict      Class = "conflict"
	ClassLiquidity     Class = "liquidity"
	ClassPaused        Class = "paused"
	ClassProtocolFault Class = "protocol_fault"
	ClassInternal      Class = "internal"
)

var classes = []struct {
	class Class
	errs  []error
}{
	{ClassProtocolFault, []error{
		ErrClockRegression,
		amm.ErrInvariantViolated, amm.ErrMathOverflow,
		lending.ErrArithmeticOverflow, lending.ErrCalculation,
		fixedmath.ErrOverflow, fixedmath.ErrUnderflow, fixedmath.ErrDivideByZero,
	}},
	{ClassPaused, []error{nativecommon.ErrModulePaused, ErrFaucetDisabled}},
	{ClassNotFound, []error{amm.ErrUnknownPool, amm.ErrUnknownExchange, lending.ErrUnknownPool, lending.ErrNoPosition}},
	{ClassConflict, []error{amm.ErrExchangeExists, amm.ErrPoolExists, lending.ErrExistingLending, lending.ErrExistingBorrow}},
	{ClassLiquidity, []error{
		amm.ErrExcessiveSlippage, amm.ErrOutputTooSmall, amm.ErrEmptyPool,
		lending.ErrInsufficientLiquidity, lending.ErrInsufficientCollateral,
		lending.ErrEmptyPool, lending.ErrNotLiquidatable,
	}},
	{ClassValidation, []error{
		ErrInvalidAddress,
		amm.ErrInvalidInput, amm.ErrInsufficientBalance, amm.ErrDepositTooSmall,
		amm.ErrInvalidFee, amm.ErrInvalidMint,
		lending.ErrInvalidInput, lending.ErrInsufficientBalance,
		nativecommon.ErrInsufficientFunds,
	}},
}

// Classify returns the class of err, ClassNone for nil and ClassInternal for
// anything unrecognised.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	for _, group := range classes {
		for _, target := range group.errs {
			if stderrors.Is(err, target) {
				return group.class
			}
		}
	}
	return ClassInternal
}
