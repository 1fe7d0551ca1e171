package amm

import (
	"errors"
	"testing"

	"fall/native/fixedmath"
)

func TestQuoteOutputReferenceSwap(t *testing.T) {
	raw, err := QuoteOutput(10_000, 10_000, 1_000)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if raw != 910 {
		t.Fatalf("expected raw output 910, got %d", raw)
	}
	net, fee, err := ApplyFee(raw, 10)
	if err != nil {
		t.Fatalf("fee: %v", err)
	}
	if fee != 0 || net != 910 {
		t.Fatalf("expected fee 0 and net 910, got fee=%d net=%d", fee, net)
	}
}

func TestQuoteOutputValidation(t *testing.T) {
	if _, err := QuoteOutput(10, 10, 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := QuoteOutput(0, 10, 5); !errors.Is(err, ErrEmptyPool) {
		t.Fatalf("expected ErrEmptyPool, got %v", err)
	}
	if _, err := QuoteOutput(^uint64(0), 10, 5); !errors.Is(err, ErrMathOverflow) {
		t.Fatalf("expected ErrMathOverflow, got %v", err)
	}
	if _, _, err := ApplyFee(10, 10_001); !errors.Is(err, ErrInvalidFee) {
		t.Fatalf("expected ErrInvalidFee, got %v", err)
	}
}

func TestSwapAmountsPreservesProduct(t *testing.T) {
	reserves := [][2]uint64{{10_000, 10_000}, {1_000_000, 3_000}, {7, 1 << 40}, {1 << 62, 1 << 62}}
	inputs := []uint64{1, 3, 999, 1_000_000}
	fees := []uint64{0, 10, 30, 300}
	for _, r := range reserves {
		for _, input := range inputs {
			for _, fee := range fees {
				res, err := SwapAmounts(r[0], r[1], input, 0, fee)
				if errors.Is(err, ErrOutputTooSmall) {
					continue
				}
				if err != nil {
					t.Fatalf("swap %v in=%d fee=%d: %v", r, input, fee, err)
				}
				if res.Net > res.Raw {
					t.Fatalf("net %d exceeds raw %d", res.Net, res.Raw)
				}
				if res.Net+res.Fee != res.Raw {
					t.Fatalf("fee accounting mismatch: %+v", res)
				}
				if err := VerifyInvariant(r[0], r[1], res.NewReserveIn, res.NewReserveOut); err != nil {
					t.Fatalf("invariant broken for %v in=%d fee=%d: %+v", r, input, fee, res)
				}
			}
		}
	}
}

func TestSwapAmountsSlippage(t *testing.T) {
	if _, err := SwapAmounts(10_000, 10_000, 1_000, 911, 10); !errors.Is(err, ErrExcessiveSlippage) {
		t.Fatalf("expected ErrExcessiveSlippage, got %v", err)
	}
	res, err := SwapAmounts(10_000, 10_000, 1_000, 910, 10)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if res.NewReserveIn != 11_000 || res.NewReserveOut != 9_090 {
		t.Fatalf("unexpected reserves %+v", res)
	}
}

func TestVerifyInvariantRejectsDrain(t *testing.T) {
	if err := VerifyInvariant(10_000, 10_000, 11_000, 9_000); !errors.Is(err, ErrInvariantViolated) {
		t.Fatalf("expected ErrInvariantViolated, got %v", err)
	}
	if err := VerifyInvariant(10_000, 10_000, 11_000, 9_090); err != nil {
		t.Fatalf("expected truncated quote to pass, got %v", err)
	}
}

func TestDepositAmountsFirstDeposit(t *testing.T) {
	res, err := DepositAmounts(0, 0, 10_000, 10_000, 0)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.Minted != 9_990 || res.UserShares != 9_990 || res.ProtocolShares != 0 || res.Locked != 10 {
		t.Fatalf("unexpected first deposit %+v", res)
	}

	res, err = DepositAmounts(0, 0, 10_000, 10_000, 10)
	if err != nil {
		t.Fatalf("deposit with protocol fee: %v", err)
	}
	if res.Minted != 9_990 || res.UserShares != 9_980 || res.ProtocolShares != 10 {
		t.Fatalf("unexpected protocol split %+v", res)
	}
}

func TestDepositAmountsTooSmall(t *testing.T) {
	if _, err := DepositAmounts(0, 0, 10, 10, 0); !errors.Is(err, ErrDepositTooSmall) {
		t.Fatalf("expected ErrDepositTooSmall, got %v", err)
	}
	res, err := DepositAmounts(0, 0, 11, 11, 0)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.Minted != 1 {
		t.Fatalf("expected 1 share, got %d", res.Minted)
	}
	if _, err := DepositAmounts(100, 100, 0, 5, 0); !errors.Is(err, ErrDepositTooSmall) {
		t.Fatalf("expected ErrDepositTooSmall for zero side, got %v", err)
	}
	if _, err := DepositAmounts(100, 0, 5, 5, 0); !errors.Is(err, ErrEmptyPool) {
		t.Fatalf("expected ErrEmptyPool for one-sided reserves, got %v", err)
	}
}

func TestDepositAmountsRescalesScarceSide(t *testing.T) {
	res, err := DepositAmounts(10_000, 20_000, 1_000, 1_000, 0)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.AcceptedA != 500 || res.AcceptedB != 1_000 {
		t.Fatalf("expected (500, 1000), got (%d, %d)", res.AcceptedA, res.AcceptedB)
	}
	if res.Minted != fixedmath.SqrtProduct(500, 1_000) {
		t.Fatalf("unexpected minted %d", res.Minted)
	}

	res, err = DepositAmounts(20_000, 10_000, 1_000, 1_000, 0)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.AcceptedA != 1_000 || res.AcceptedB != 500 {
		t.Fatalf("expected (1000, 500), got (%d, %d)", res.AcceptedA, res.AcceptedB)
	}
}

func TestDepositAmountsScaleLinearly(t *testing.T) {
	cases := [][2]uint64{{10_000, 10_000}, {10_000, 40_000}, {123_457, 987_654}}
	for _, reserves := range cases {
		base := uint64(100)
		wantB := base * reserves[1] / reserves[0]
		single, err := DepositAmounts(reserves[0], reserves[1], base, wantB, 0)
		if err != nil {
			t.Fatalf("single deposit: %v", err)
		}
		double, err := DepositAmounts(reserves[0], reserves[1], 2*base, 2*wantB+1, 0)
		if err != nil {
			t.Fatalf("double deposit: %v", err)
		}
		lo, hi := 2*single.Minted, 2*single.Minted+2
		if double.Minted < lo || double.Minted > hi {
			t.Fatalf("reserves %v: expected ~%d shares for 2x, got %d (1x=%d)", reserves, lo, double.Minted, single.Minted)
		}
	}
}

func TestWithdrawAmounts(t *testing.T) {
	outA, outB, err := WithdrawAmounts(10_000, 20_000, 2_500, 10_000)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if outA != 2_500 || outB != 5_000 {
		t.Fatalf("unexpected withdraw (%d, %d)", outA, outB)
	}
	if _, _, err := WithdrawAmounts(10, 10, 11, 10); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if _, _, err := WithdrawAmounts(10, 10, 0, 10); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
