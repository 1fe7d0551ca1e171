package amm

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidFee          = errors.New("amm: invalid fee value")
	ErrInvalidMint         = errors.New("amm: asset does not belong to the pool")
	ErrDepositTooSmall     = errors.New("amm: depositing too little liquidity")
	ErrOutputTooSmall      = errors.New("amm: output rounds to zero")
	ErrInvariantViolated   = errors.New("amm: invariant does not hold")
	ErrMathOverflow        = errors.New("amm: math overflow")
	ErrEmptyPool           = errors.New("amm: pool has no liquidity")
	ErrExcessiveSlippage   = errors.New("amm: output below the minimum expected")
	ErrInvalidInput        = errors.New("amm: invalid input")
	ErrInsufficientBalance = errors.New("amm: insufficient balance")
	ErrExchangeExists      = errors.New("amm: exchange already exists")
	ErrUnknownExchange     = errors.New("amm: exchange not found")
	ErrPoolExists          = errors.New("amm: pool already exists")
	ErrUnknownPool         = errors.New("amm: pool not found")

	errNilState = errors.New("amm: state not configured")
)

func overflow(err error) error {
	return fmt.Errorf("%w: %v", ErrMathOverflow, err)
}
