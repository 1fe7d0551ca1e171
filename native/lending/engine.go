package lending

import (
	"fall/core/events"
	"fall/core/types"
	"fall/crypto"
	nativecommon "fall/native/common"
	"fall/native/fixedmath"
)

const moduleName = "lending"

type engineState interface {
	Pool(id types.PoolID) (*types.Pool, error)
	PutPool(pool *types.Pool) error
	LenderPosition(pool types.PoolID, lender crypto.Address) (*types.LenderPosition, error)
	PutLenderPosition(position *types.LenderPosition) error
	DeleteLenderPosition(pool types.PoolID, lender crypto.Address) error
	BorrowPosition(pool types.PoolID, borrower crypto.Address) (*types.BorrowPosition, error)
	PutBorrowPosition(position *types.BorrowPosition) error
	DeleteBorrowPosition(pool types.PoolID, borrower crypto.Address) error
}

// Engine orchestrates lending and borrowing against a pool's lending vault.
// Collateral is priced with the pool's AMM reserves.
type Engine struct {
	state       engineState
	ledger      nativecommon.Ledger
	emitter     events.Emitter
	pauses      nativecommon.PauseView
	params      types.LendingParams
	blockHeight uint64
}

// NewEngine constructs a lending engine applying the given constants.
func NewEngine(params types.LendingParams) *Engine {
	return &Engine{params: params.Normalize(), emitter: events.NoopEmitter{}}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger wires the custody service.
func (e *Engine) SetLedger(ledger nativecommon.Ledger) { e.ledger = ledger }

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetBlockHeight records the block height used when computing accrual deltas.
func (e *Engine) SetBlockHeight(height uint64) {
	if e == nil {
		return
	}
	e.blockHeight = height
}

// Params returns the constants applied by the engine.
func (e *Engine) Params() types.LendingParams {
	return e.params
}

func (e *Engine) begin(poolID types.PoolID) (*types.Pool, error) {
	if e == nil || e.state == nil || e.ledger == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	pool, err := e.state.Pool(poolID)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, ErrUnknownPool
	}
	return pool, nil
}

func (e *Engine) advanceBorrow(pool *types.Pool) error {
	saturated, err := AdvanceBorrowInterest(pool, e.blockHeight, e.params.BaseInterestRate)
	if err != nil {
		return err
	}
	if saturated {
		e.emitter.Emit(events.AccumulatorSaturated{Pool: pool.ID, Kind: KindBorrowInterest})
	}
	return nil
}

func (e *Engine) advanceShare(pool *types.Pool) error {
	saturated, err := AdvanceShareLending(pool, e.blockHeight)
	if err != nil {
		return err
	}
	if saturated {
		e.emitter.Emit(events.AccumulatorSaturated{Pool: pool.ID, Kind: KindShareLending})
	}
	return nil
}

// Lend moves amount of the pool's first asset from the lender into the lending
// vault and opens the lender's position at the current height.
func (e *Engine) Lend(lender crypto.Address, poolID types.PoolID, amount uint64) error {
	pool, err := e.begin(poolID)
	if err != nil {
		return err
	}
	if amount == 0 {
		return ErrInvalidInput
	}
	balance, err := e.ledger.BalanceOf(pool.AssetA, lender)
	if err != nil {
		return err
	}
	if balance < amount {
		return ErrInsufficientBalance
	}
	existing, err := e.state.LenderPosition(pool.ID, lender)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrExistingLending
	}

	// Accrue with the supply that was lent before this deposit.
	if err := e.advanceShare(pool); err != nil {
		return err
	}
	totalLent, err := fixedmath.Add(pool.TotalLent, amount)
	if err != nil {
		return arithmetic(err)
	}

	if err := e.ledger.Transfer(pool.AssetA, lender, pool.LendingVault(), amount); err != nil {
		return err
	}
	position := &types.LenderPosition{
		Pool:             pool.ID,
		Lender:           append([]byte(nil), lender.Bytes()...),
		Principal:        amount,
		CheckpointHeight: e.blockHeight,
	}
	if err := e.state.PutLenderPosition(position); err != nil {
		return err
	}
	pool.TotalLent = totalLent
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emitter.Emit(events.Lent{Pool: pool.ID, Lender: lender, Amount: amount, Height: e.blockHeight})
	return nil
}

// RedeemResult reports what a lender received on redemption.
type RedeemResult struct {
	Principal    uint64
	PrincipalA   uint64
	PrincipalB   uint64
	// InterestOwed is the lender's accrued share in the second asset;
	// InterestB is what the vault could pay of it.
	InterestOwed uint64
	InterestB    uint64
}

// Redeem closes the lender's position. Interest is the lender's share of the
// borrow interest index, weighted by the lender's time-weighted principal
// against the pool's accrual since the last update, and is paid in the second
// asset out of collateral not backing open borrows. Principal follows the
// redemption waterfall.
func (e *Engine) Redeem(lender crypto.Address, poolID types.PoolID) (RedeemResult, error) {
	pool, err := e.begin(poolID)
	if err != nil {
		return RedeemResult{}, err
	}
	position, err := e.state.LenderPosition(pool.ID, lender)
	if err != nil {
		return RedeemResult{}, err
	}
	if position == nil {
		return RedeemResult{}, ErrNoPosition
	}
	if e.blockHeight < position.CheckpointHeight {
		return RedeemResult{}, ErrArithmeticOverflow
	}
	lenderWeight, err := fixedmath.Mul(e.blockHeight-position.CheckpointHeight, position.Principal)
	if err != nil {
		return RedeemResult{}, arithmetic(err)
	}

	previous := pool.ShareLendingAccumulator
	if err := e.advanceShare(pool); err != nil {
		return RedeemResult{}, err
	}
	poolWeight, err := fixedmath.Sub(pool.ShareLendingAccumulator, previous)
	if err != nil {
		return RedeemResult{}, calculation(err)
	}

	vault := pool.LendingVault()
	vaultB, err := e.ledger.BalanceOf(pool.AssetB, vault)
	if err != nil {
		return RedeemResult{}, err
	}

	res := RedeemResult{Principal: position.Principal}
	if poolWeight != 0 {
		res.InterestOwed, err = fixedmath.SaturatingMulDivWide(lenderWeight, pool.BorrowInterestAccumulator, 1, poolWeight)
		if err != nil {
			return RedeemResult{}, calculation(err)
		}
		free := fixedmath.SaturatingSub(vaultB, pool.TotalCollateral)
		res.InterestB = fixedmath.Min(res.InterestOwed, free)
		if res.InterestB > 0 {
			if err := e.ledger.Transfer(pool.AssetB, vault, lender, res.InterestB); err != nil {
				return RedeemResult{}, err
			}
			vaultB -= res.InterestB
		}
	}

	ReduceShareLending(pool, lenderWeight)
	if err := e.state.DeleteLenderPosition(pool.ID, lender); err != nil {
		return RedeemResult{}, err
	}

	vaultA, err := e.ledger.BalanceOf(pool.AssetA, vault)
	if err != nil {
		return RedeemResult{}, err
	}
	plan, err := PlanRedemption(position.Principal, vaultA, vaultB, pool.TotalLent, pool.TotalBorrowed, pool.TotalCollateral)
	if err != nil {
		return RedeemResult{}, err
	}
	if err := e.ledger.Transfer(pool.AssetA, vault, lender, plan.PayA); err != nil {
		return RedeemResult{}, err
	}
	if err := e.ledger.Transfer(pool.AssetB, vault, lender, plan.PayB); err != nil {
		return RedeemResult{}, err
	}
	res.PrincipalA, res.PrincipalB = plan.PayA, plan.PayB

	if pool.TotalLent, err = fixedmath.Sub(pool.TotalLent, position.Principal); err != nil {
		return RedeemResult{}, calculation(err)
	}
	if err := e.state.PutPool(pool); err != nil {
		return RedeemResult{}, err
	}
	e.emitter.Emit(events.Redeemed{
		Pool:       pool.ID,
		Lender:     lender,
		Principal:  res.Principal,
		PrincipalA: res.PrincipalA,
		PrincipalB: res.PrincipalB,
		InterestB:  res.InterestB,
	})
	return res, nil
}
