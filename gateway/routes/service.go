package routes

import (
	"context"

	"fall/core"
	"fall/core/types"
	"fall/crypto"
	"fall/native/amm"
	"fall/native/lending"
)

// Service is the part of core.Service the gateway serves.
type Service interface {
	CreateExchange(ctx context.Context, id string, admin crypto.Address, liquidityFeeBps, protocolFeeBps uint64) (*types.Exchange, error)
	CreatePool(ctx context.Context, exchangeID, assetA, assetB string) (*types.Pool, error)
	DepositLiquidity(ctx context.Context, depositor crypto.Address, poolID types.PoolID, wantA, wantB uint64) (amm.DepositResult, error)
	WithdrawLiquidity(ctx context.Context, owner crypto.Address, poolID types.PoolID, shares uint64) (core.WithdrawResult, error)
	Swap(ctx context.Context, trader crypto.Address, poolID types.PoolID, assetIn string, input, minOutput uint64) (amm.SwapResult, error)
	Lend(ctx context.Context, lender crypto.Address, poolID types.PoolID, amount uint64) error
	Redeem(ctx context.Context, lender crypto.Address, poolID types.PoolID) (lending.RedeemResult, error)
	DepositCollateral(ctx context.Context, borrower crypto.Address, poolID types.PoolID, amount uint64) (*types.BorrowPosition, error)
	Borrow(ctx context.Context, borrower crypto.Address, poolID types.PoolID, amount uint64) (*types.BorrowPosition, error)
	Repay(ctx context.Context, borrower crypto.Address, poolID types.PoolID) (lending.RepayResult, error)
	Liquidate(ctx context.Context, liquidator, borrower crypto.Address, poolID types.PoolID) (lending.LiquidationResult, error)
	Faucet(ctx context.Context, to crypto.Address, asset string, amount uint64) error

	Pool(id types.PoolID) (*core.PoolView, error)
	Pools() ([]*core.PoolView, error)
	Price(id types.PoolID) (reserveA, reserveB uint64, err error)
	LenderPosition(pool types.PoolID, lender crypto.Address) (*types.LenderPosition, error)
	BorrowPosition(pool types.PoolID, borrower crypto.Address) (*types.BorrowPosition, error)
	Balance(asset string, holder crypto.Address) (uint64, error)
	Height() (uint64, error)
}

// Subscriber hands out event subscriptions. events.Broadcaster implements it.
type Subscriber interface {
	Subscribe(buffer int) (<-chan *types.Event, func())
}
