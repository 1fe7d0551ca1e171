package core

import (
	"context"
	"errors"
	"strings"

	coreerrors "fall/core/errors"
	"fall/core/types"
	"fall/crypto"
	"fall/native/amm"
	"fall/native/lending"
)

func (s *Service) CreateExchange(ctx context.Context, id string, admin crypto.Address, liquidityFeeBps, protocolFeeBps uint64) (*types.Exchange, error) {
	var out *types.Exchange
	err := s.execute(ctx, "create_exchange", types.PoolID{}, admin.String(), func(t *tx) error {
		var err error
		out, err = t.amm.CreateExchange(id, admin, liquidityFeeBps, protocolFeeBps)
		return err
	})
	return out, err
}

// EnsureExchange creates the exchange unless it is already registered.
func (s *Service) EnsureExchange(ctx context.Context, id string, admin crypto.Address, liquidityFeeBps, protocolFeeBps uint64) (*types.Exchange, error) {
	exchange, err := s.CreateExchange(ctx, id, admin, liquidityFeeBps, protocolFeeBps)
	if errors.Is(err, amm.ErrExchangeExists) {
		return s.Exchange(id)
	}
	return exchange, err
}

func (s *Service) CreatePool(ctx context.Context, exchangeID, assetA, assetB string) (*types.Pool, error) {
	var out *types.Pool
	id := types.NewPoolID(exchangeID, assetA, assetB)
	err := s.execute(ctx, "create_pool", id, "", func(t *tx) error {
		var err error
		out, err = t.amm.CreatePool(exchangeID, assetA, assetB)
		return err
	})
	return out, err
}

func (s *Service) DepositLiquidity(ctx context.Context, depositor crypto.Address, poolID types.PoolID, wantA, wantB uint64) (amm.DepositResult, error) {
	var out amm.DepositResult
	err := s.execute(ctx, "deposit_liquidity", poolID, depositor.String(), func(t *tx) error {
		var err error
		out, err = t.amm.DepositLiquidity(depositor, poolID, wantA, wantB)
		return err
	})
	return out, err
}

// WithdrawResult reports the assets returned for burned shares.
type WithdrawResult struct {
	AmountA uint64
	AmountB uint64
}

func (s *Service) WithdrawLiquidity(ctx context.Context, owner crypto.Address, poolID types.PoolID, shares uint64) (WithdrawResult, error) {
	var out WithdrawResult
	err := s.execute(ctx, "withdraw_liquidity", poolID, owner.String(), func(t *tx) error {
		var err error
		out.AmountA, out.AmountB, err = t.amm.WithdrawLiquidity(owner, poolID, shares)
		return err
	})
	return out, err
}

func (s *Service) Swap(ctx context.Context, trader crypto.Address, poolID types.PoolID, assetIn string, input, minOutput uint64) (amm.SwapResult, error) {
	var out amm.SwapResult
	err := s.execute(ctx, "swap", poolID, trader.String(), func(t *tx) error {
		var err error
		out, err = t.amm.Swap(trader, poolID, assetIn, input, minOutput)
		return err
	})
	return out, err
}

func (s *Service) Lend(ctx context.Context, lender crypto.Address, poolID types.PoolID, amount uint64) error {
	return s.execute(ctx, "lend", poolID, lender.String(), func(t *tx) error {
		return t.lending.Lend(lender, poolID, amount)
	})
}

func (s *Service) Redeem(ctx context.Context, lender crypto.Address, poolID types.PoolID) (lending.RedeemResult, error) {
	var out lending.RedeemResult
	err := s.execute(ctx, "redeem", poolID, lender.String(), func(t *tx) error {
		var err error
		out, err = t.lending.Redeem(lender, poolID)
		return err
	})
	return out, err
}

func (s *Service) DepositCollateral(ctx context.Context, borrower crypto.Address, poolID types.PoolID, amount uint64) (*types.BorrowPosition, error) {
	var out *types.BorrowPosition
	err := s.execute(ctx, "deposit_collateral", poolID, borrower.String(), func(t *tx) error {
		var err error
		out, err = t.lending.DepositCollateral(borrower, poolID, amount)
		return err
	})
	return out, err
}

func (s *Service) Borrow(ctx context.Context, borrower crypto.Address, poolID types.PoolID, amount uint64) (*types.BorrowPosition, error) {
	var out *types.BorrowPosition
	err := s.execute(ctx, "borrow", poolID, borrower.String(), func(t *tx) error {
		var err error
		out, err = t.lending.Borrow(borrower, poolID, amount)
		return err
	})
	return out, err
}

func (s *Service) Repay(ctx context.Context, borrower crypto.Address, poolID types.PoolID) (lending.RepayResult, error) {
	var out lending.RepayResult
	err := s.execute(ctx, "repay", poolID, borrower.String(), func(t *tx) error {
		var err error
		out, err = t.lending.Repay(borrower, poolID)
		return err
	})
	return out, err
}

func (s *Service) Liquidate(ctx context.Context, liquidator, borrower crypto.Address, poolID types.PoolID) (lending.LiquidationResult, error) {
	var out lending.LiquidationResult
	err := s.execute(ctx, "liquidate", poolID, liquidator.String(), func(t *tx) error {
		var err error
		out, err = t.lending.Liquidate(liquidator, borrower, poolID)
		return err
	})
	return out, err
}

// Faucet mints test balances. It is rejected unless enabled in configuration.
func (s *Service) Faucet(ctx context.Context, to crypto.Address, asset string, amount uint64) error {
	if !s.faucet {
		return coreerrors.ErrFaucetDisabled
	}
	if amount == 0 || strings.TrimSpace(asset) == "" || types.IsShareAsset(asset) {
		return amm.ErrInvalidInput
	}
	return s.execute(ctx, "faucet", types.PoolID{}, to.String(), func(t *tx) error {
		return t.ledger.Mint(asset, to, amount)
	})
}
