package lending

import (
	"fall/core/events"
	"fall/core/types"
	"fall/crypto"
	"fall/native/fixedmath"
)

// DepositCollateral posts amount of the pool's second asset into the lending
// vault. It may be called before a borrow or to top up an open one.
func (e *Engine) DepositCollateral(borrower crypto.Address, poolID types.PoolID, amount uint64) (*types.BorrowPosition, error) {
	pool, err := e.begin(poolID)
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidInput
	}
	balance, err := e.ledger.BalanceOf(pool.AssetB, borrower)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, ErrInsufficientBalance
	}
	position, err := e.state.BorrowPosition(pool.ID, borrower)
	if err != nil {
		return nil, err
	}
	if position == nil {
		position = &types.BorrowPosition{
			Pool:     pool.ID,
			Borrower: append([]byte(nil), borrower.Bytes()...),
		}
	}
	collateral, err := fixedmath.Add(position.Collateral, amount)
	if err != nil {
		return nil, arithmetic(err)
	}
	totalCollateral, err := fixedmath.Add(pool.TotalCollateral, amount)
	if err != nil {
		return nil, arithmetic(err)
	}

	if err := e.ledger.Transfer(pool.AssetB, borrower, pool.LendingVault(), amount); err != nil {
		return nil, err
	}
	position.Collateral = collateral
	pool.TotalCollateral = totalCollateral
	if err := e.state.PutBorrowPosition(position); err != nil {
		return nil, err
	}
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.CollateralDeposited{Pool: pool.ID, Borrower: borrower, Amount: amount, Total: collateral})
	return position, nil
}

// Borrow lends amount of the first asset against the borrower's posted
// collateral. The collateral value must cover amount at the minimum
// collateral ratio, and the vault must hold unborrowed, lent funds.
func (e *Engine) Borrow(borrower crypto.Address, poolID types.PoolID, amount uint64) (*types.BorrowPosition, error) {
	pool, err := e.begin(poolID)
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidInput
	}
	position, err := e.state.BorrowPosition(pool.ID, borrower)
	if err != nil {
		return nil, err
	}
	if position == nil || position.Collateral == 0 {
		return nil, ErrInsufficientCollateral
	}
	if position.Principal > 0 {
		return nil, ErrExistingBorrow
	}

	value, err := CollateralValue(pool, position.Collateral)
	if err != nil {
		return nil, err
	}
	if !MeetsCollateralRatio(value, amount, e.params.MinCollateralRatioBps) {
		return nil, ErrInsufficientCollateral
	}

	vault := pool.LendingVault()
	vaultA, err := e.ledger.BalanceOf(pool.AssetA, vault)
	if err != nil {
		return nil, err
	}
	if amount > vaultA {
		return nil, ErrInsufficientLiquidity
	}
	totalBorrowed, err := fixedmath.Add(pool.TotalBorrowed, amount)
	if err != nil {
		return nil, arithmetic(err)
	}
	if totalBorrowed > pool.TotalLent {
		return nil, ErrInsufficientLiquidity
	}

	// Accrue with the borrowed supply from before this loan.
	if err := e.advanceBorrow(pool); err != nil {
		return nil, err
	}
	if err := e.ledger.Transfer(pool.AssetA, vault, borrower, amount); err != nil {
		return nil, err
	}
	position.Principal = amount
	position.CheckpointHeight = e.blockHeight
	pool.TotalBorrowed = totalBorrowed
	if err := e.state.PutBorrowPosition(position); err != nil {
		return nil, err
	}
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.Borrowed{
		Pool:       pool.ID,
		Borrower:   borrower,
		Amount:     amount,
		Collateral: position.Collateral,
		Height:     e.blockHeight,
	})
	return position, nil
}

// RepayResult reports the settlement of a borrow.
type RepayResult struct {
	Principal          uint64
	InterestA          uint64
	InterestB          uint64
	CollateralReturned uint64
}

// Repay returns the principal and closes the position. Interest accrued since
// the checkpoint is charged in the second asset out of the collateral; the
// remainder is returned only when positive and the vault can cover it.
// Interest beyond the collateral is absorbed, not carried as debt.
func (e *Engine) Repay(borrower crypto.Address, poolID types.PoolID) (RepayResult, error) {
	pool, err := e.begin(poolID)
	if err != nil {
		return RepayResult{}, err
	}
	position, err := e.state.BorrowPosition(pool.ID, borrower)
	if err != nil {
		return RepayResult{}, err
	}
	if position == nil || position.Principal == 0 {
		return RepayResult{}, ErrNoPosition
	}
	if e.blockHeight < position.CheckpointHeight {
		return RepayResult{}, ErrArithmeticOverflow
	}
	balance, err := e.ledger.BalanceOf(pool.AssetA, borrower)
	if err != nil {
		return RepayResult{}, err
	}
	if balance < position.Principal {
		return RepayResult{}, ErrInsufficientBalance
	}

	if err := e.advanceBorrow(pool); err != nil {
		return RepayResult{}, err
	}
	vault := pool.LendingVault()
	if err := e.ledger.Transfer(pool.AssetA, borrower, vault, position.Principal); err != nil {
		return RepayResult{}, err
	}

	res := RepayResult{Principal: position.Principal}
	blocks := e.blockHeight - position.CheckpointHeight
	res.InterestA, err = fixedmath.MulDivWide(blocks, position.Principal, e.params.BaseInterestRate, types.PercentBase)
	if err != nil {
		return RepayResult{}, arithmetic(err)
	}
	res.InterestB = ConvertToB(pool, res.InterestA)

	if pool.TotalBorrowed, err = fixedmath.Sub(pool.TotalBorrowed, position.Principal); err != nil {
		return RepayResult{}, calculation(err)
	}
	if pool.TotalCollateral, err = fixedmath.Sub(pool.TotalCollateral, position.Collateral); err != nil {
		return RepayResult{}, calculation(err)
	}
	if err := e.state.DeleteBorrowPosition(pool.ID, borrower); err != nil {
		return RepayResult{}, err
	}

	if position.Collateral > res.InterestB {
		refund := position.Collateral - res.InterestB
		vaultB, err := e.ledger.BalanceOf(pool.AssetB, vault)
		if err != nil {
			return RepayResult{}, err
		}
		if vaultB >= refund {
			if err := e.ledger.Transfer(pool.AssetB, vault, borrower, refund); err != nil {
				return RepayResult{}, err
			}
			res.CollateralReturned = refund
		}
	}

	if err := e.state.PutPool(pool); err != nil {
		return RepayResult{}, err
	}
	e.emitter.Emit(events.Repaid{
		Pool:               pool.ID,
		Borrower:           borrower,
		Principal:          res.Principal,
		InterestB:          res.InterestB,
		CollateralReturned: res.CollateralReturned,
	})
	return res, nil
}

// LiquidationResult reports a closed under-collateralized position.
type LiquidationResult struct {
	Principal       uint64
	Collateral      uint64
	CollateralValue uint64
	Reward          uint64
}

// Liquidate closes a position whose collateral is worth less than its
// principal. The liquidator receives collateral/LiquidationRewardDivisor; the
// rest stays in the vault and backs lender redemptions.
func (e *Engine) Liquidate(liquidator, borrower crypto.Address, poolID types.PoolID) (LiquidationResult, error) {
	pool, err := e.begin(poolID)
	if err != nil {
		return LiquidationResult{}, err
	}
	position, err := e.state.BorrowPosition(pool.ID, borrower)
	if err != nil {
		return LiquidationResult{}, err
	}
	if position == nil || position.Principal == 0 {
		return LiquidationResult{}, ErrNoPosition
	}
	value, err := CollateralValue(pool, position.Collateral)
	if err != nil {
		return LiquidationResult{}, err
	}
	if value >= position.Principal {
		return LiquidationResult{}, ErrNotLiquidatable
	}

	res := LiquidationResult{
		Principal:       position.Principal,
		Collateral:      position.Collateral,
		CollateralValue: value,
		Reward:          position.Collateral / e.params.LiquidationRewardDivisor,
	}
	if err := e.ledger.Transfer(pool.AssetB, pool.LendingVault(), liquidator, res.Reward); err != nil {
		return LiquidationResult{}, err
	}

	// Interest on the liquidated principal accrues up to this height.
	if err := e.advanceBorrow(pool); err != nil {
		return LiquidationResult{}, err
	}
	if pool.TotalBorrowed, err = fixedmath.Sub(pool.TotalBorrowed, position.Principal); err != nil {
		return LiquidationResult{}, calculation(err)
	}
	if pool.TotalCollateral, err = fixedmath.Sub(pool.TotalCollateral, position.Collateral); err != nil {
		return LiquidationResult{}, calculation(err)
	}
	if err := e.state.DeleteBorrowPosition(pool.ID, borrower); err != nil {
		return LiquidationResult{}, err
	}
	if err := e.state.PutPool(pool); err != nil {
		return LiquidationResult{}, err
	}
	e.emitter.Emit(events.Liquidated{
		Pool:       pool.ID,
		Borrower:   borrower,
		Liquidator: liquidator,
		Principal:  res.Principal,
		Collateral: res.Collateral,
		Reward:     res.Reward,
	})
	return res, nil
}
