package lending

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput           = errors.New("lending engine: amount must be positive")
	ErrInsufficientBalance    = errors.New("lending engine: insufficient balance")
	ErrExistingLending        = errors.New("lending engine: lender already has active lending")
	ErrExistingBorrow         = errors.New("lending engine: borrower already has an open borrow")
	ErrNoPosition             = errors.New("lending engine: position not found")
	ErrInsufficientCollateral = errors.New("lending engine: insufficient collateral")
	ErrInsufficientLiquidity  = errors.New("lending engine: insufficient liquidity")
	ErrNotLiquidatable        = errors.New("lending engine: position is sufficiently collateralized")
	ErrEmptyPool              = errors.New("lending engine: pool has no reserves to price collateral")
	ErrUnknownPool            = errors.New("lending engine: pool not found")
	ErrArithmeticOverflow     = errors.New("lending engine: arithmetic overflow")
	ErrCalculation            = errors.New("lending engine: calculation error")

	errNilState = errors.New("lending engine: state not configured")
)

func arithmetic(err error) error {
	return fmt.Errorf("%w: %v", ErrArithmeticOverflow, err)
}

func calculation(err error) error {
	return fmt.Errorf("%w: %v", ErrCalculation, err)
}
