// Package fixedmath provides checked integer arithmetic for the accounting
// engines. Intermediates are carried in 256-bit words so products of two or
// three uint64 operands never wrap before the final narrowing.
package fixedmath

import (
	"errors"
	"math"

	"github.com/holiman/uint256"
)

var (
	ErrOverflow     = errors.New("fixedmath: overflow")
	ErrUnderflow    = errors.New("fixedmath: underflow")
	ErrDivideByZero = errors.New("fixedmath: division by zero")
)

// Add returns a+b or ErrOverflow.
func Add(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b or ErrUnderflow.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

// Mul returns a*b or ErrOverflow.
func Mul(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	product := a * b
	if product/b != a {
		return 0, ErrOverflow
	}
	return product, nil
}

// SaturatingAdd returns a+b clamped to math.MaxUint64.
func SaturatingAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return math.MaxUint64
	}
	return sum
}

// SaturatingSub returns a-b clamped to zero.
func SaturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// MulDiv returns floor(a*b/d).
func MulDiv(a, b, d uint64) (uint64, error) {
	return MulDivWide(a, b, 1, d)
}

// MulDivWide returns floor(a*b*c/d) computed in one pass.
func MulDivWide(a, b, c, d uint64) (uint64, error) {
	q, err := wideQuotient(a, b, c, d)
	if err != nil {
		return 0, err
	}
	if !q.IsUint64() {
		return 0, ErrOverflow
	}
	return q.Uint64(), nil
}

// SaturatingMulDivWide is MulDivWide with the result clamped to
// math.MaxUint64 instead of failing.
func SaturatingMulDivWide(a, b, c, d uint64) (uint64, error) {
	q, err := wideQuotient(a, b, c, d)
	if err != nil {
		return 0, err
	}
	if !q.IsUint64() {
		return math.MaxUint64, nil
	}
	return q.Uint64(), nil
}

func wideQuotient(a, b, c, d uint64) (*uint256.Int, error) {
	if d == 0 {
		return nil, ErrDivideByZero
	}
	// 64*3 bits always fits in a 256-bit word.
	product := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	product.Mul(product, uint256.NewInt(c))
	return product.Div(product, uint256.NewInt(d)), nil
}

// MulCmp compares a*b with c*d and returns -1, 0 or +1.
func MulCmp(a, b, c, d uint64) int {
	left := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	right := new(uint256.Int).Mul(uint256.NewInt(c), uint256.NewInt(d))
	return left.Cmp(right)
}

// SqrtProduct returns floor(sqrt(a*b)). The root of a 128-bit product always
// fits back into 64 bits.
func SqrtProduct(a, b uint64) uint64 {
	product := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	return new(uint256.Int).Sqrt(product).Uint64()
}

// Min returns the smaller operand.
func Min(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
