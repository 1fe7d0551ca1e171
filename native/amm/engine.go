package amm

import (
	"strings"

	"fall/core/events"
	"fall/core/types"
	"fall/crypto"
	nativecommon "fall/native/common"
	"fall/native/fixedmath"
)

const moduleName = "amm"

type engineState interface {
	Exchange(id string) (*types.Exchange, error)
	PutExchange(exchange *types.Exchange) error
	Pool(id types.PoolID) (*types.Pool, error)
	PutPool(pool *types.Pool) error
}

// Engine applies exchange operations to pool state and moves the matching
// balances through the ledger.
type Engine struct {
	state       engineState
	ledger      nativecommon.Ledger
	emitter     events.Emitter
	pauses      nativecommon.PauseView
	blockHeight uint64
}

func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState wires the engine to the persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger wires the custody service used for transfers, mints and burns.
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

// SetBlockHeight records the height stamped on newly created pools.
func (e *Engine) SetBlockHeight(height uint64) {
	if e == nil {
		return
	}
	e.blockHeight = height
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil || e.ledger == nil {
		return errNilState
	}
	return nil
}

func (e *Engine) mutable() error {
	if err := e.ready(); err != nil {
		return err
	}
	return nativecommon.Guard(e.pauses, moduleName)
}

// CreateExchange registers a trading venue with its fee configuration.
func (e *Engine) CreateExchange(id string, admin crypto.Address, liquidityFeeBps, protocolFeeBps uint64) (*types.Exchange, error) {
	if err := e.mutable(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" || admin.IsZero() {
		return nil, ErrInvalidInput
	}
	if liquidityFeeBps >= types.PercentBase || protocolFeeBps >= types.PercentBase {
		return nil, ErrInvalidFee
	}
	existing, err := e.state.Exchange(id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrExchangeExists
	}
	exchange := &types.Exchange{
		ID:              id,
		Admin:           append([]byte(nil), admin.Bytes()...),
		LiquidityFeeBps: liquidityFeeBps,
		ProtocolFeeBps:  protocolFeeBps,
	}
	if err := e.state.PutExchange(exchange); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.ExchangeCreated{
		Exchange:        id,
		Admin:           admin,
		LiquidityFeeBps: liquidityFeeBps,
		ProtocolFeeBps:  protocolFeeBps,
	})
	return exchange, nil
}

// CreatePool opens an empty pool for the asset pair. Liquidity arrives through
// the first DepositLiquidity call.
func (e *Engine) CreatePool(exchangeID, assetA, assetB string) (*types.Pool, error) {
	if err := e.mutable(); err != nil {
		return nil, err
	}
	assetA = strings.TrimSpace(assetA)
	assetB = strings.TrimSpace(assetB)
	if assetA == "" || assetB == "" || assetA == assetB {
		return nil, ErrInvalidMint
	}
	exchange, err := e.state.Exchange(exchangeID)
	if err != nil {
		return nil, err
	}
	if exchange == nil {
		return nil, ErrUnknownExchange
	}
	id := types.NewPoolID(exchange.ID, assetA, assetB)
	existing, err := e.state.Pool(id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrPoolExists
	}
	pool := &types.Pool{
		ID:                   id,
		Exchange:             exchange.ID,
		AssetA:               assetA,
		AssetB:               assetB,
		BorrowInterestHeight: e.blockHeight,
		ShareLendingHeight:   e.blockHeight,
		CreatedHeight:        e.blockHeight,
	}
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.PoolCreated{
		Pool:     id,
		Exchange: exchange.ID,
		AssetA:   assetA,
		AssetB:   assetB,
		Height:   e.blockHeight,
	})
	return pool, nil
}

func (e *Engine) loadPool(id types.PoolID) (*types.Pool, *types.Exchange, error) {
	pool, err := e.state.Pool(id)
	if err != nil {
		return nil, nil, err
	}
	if pool == nil {
		return nil, nil, ErrUnknownPool
	}
	exchange, err := e.state.Exchange(pool.Exchange)
	if err != nil {
		return nil, nil, err
	}
	if exchange == nil {
		return nil, nil, ErrUnknownExchange
	}
	return pool, exchange, nil
}

// DepositLiquidity adds liquidity at the current reserve ratio. Requested
// amounts above the depositor's balances are clamped to those balances.
func (e *Engine) DepositLiquidity(depositor crypto.Address, poolID types.PoolID, wantA, wantB uint64) (DepositResult, error) {
	if err := e.mutable(); err != nil {
		return DepositResult{}, err
	}
	pool, exchange, err := e.loadPool(poolID)
	if err != nil {
		return DepositResult{}, err
	}

	balanceA, err := e.ledger.BalanceOf(pool.AssetA, depositor)
	if err != nil {
		return DepositResult{}, err
	}
	balanceB, err := e.ledger.BalanceOf(pool.AssetB, depositor)
	if err != nil {
		return DepositResult{}, err
	}
	wantA = fixedmath.Min(wantA, balanceA)
	wantB = fixedmath.Min(wantB, balanceB)

	res, err := DepositAmounts(pool.ReserveA, pool.ReserveB, wantA, wantB, exchange.ProtocolFeeBps)
	if err != nil {
		return DepositResult{}, err
	}

	newReserveA, err := fixedmath.Add(pool.ReserveA, res.AcceptedA)
	if err != nil {
		return DepositResult{}, overflow(err)
	}
	newReserveB, err := fixedmath.Add(pool.ReserveB, res.AcceptedB)
	if err != nil {
		return DepositResult{}, overflow(err)
	}
	newSupply, err := fixedmath.Add(pool.ShareSupply, res.Minted)
	if err != nil {
		return DepositResult{}, overflow(err)
	}
	if newSupply, err = fixedmath.Add(newSupply, res.Locked); err != nil {
		return DepositResult{}, overflow(err)
	}

	vault := pool.Vault()
	if err := e.ledger.Transfer(pool.AssetA, depositor, vault, res.AcceptedA); err != nil {
		return DepositResult{}, err
	}
	if err := e.ledger.Transfer(pool.AssetB, depositor, vault, res.AcceptedB); err != nil {
		return DepositResult{}, err
	}
	shareAsset := pool.ShareAsset()
	if err := e.ledger.Mint(shareAsset, depositor, res.UserShares); err != nil {
		return DepositResult{}, err
	}
	if res.ProtocolShares > 0 {
		if err := e.ledger.Mint(shareAsset, exchange.AdminAddress(), res.ProtocolShares); err != nil {
			return DepositResult{}, err
		}
	}
	if res.Locked > 0 {
		if err := e.ledger.Mint(shareAsset, pool.LockedLiquidity(), res.Locked); err != nil {
			return DepositResult{}, err
		}
	}

	pool.ReserveA = newReserveA
	pool.ReserveB = newReserveB
	pool.ShareSupply = newSupply
	if err := e.state.PutPool(pool); err != nil {
		return DepositResult{}, err
	}
	e.emitter.Emit(events.LiquidityDeposited{
		Pool:           pool.ID,
		Provider:       depositor,
		AmountA:        res.AcceptedA,
		AmountB:        res.AcceptedB,
		Shares:         res.UserShares,
		ProtocolShares: res.ProtocolShares,
	})
	return res, nil
}

// WithdrawLiquidity burns shares and pays out the proportional reserves.
func (e *Engine) WithdrawLiquidity(owner crypto.Address, poolID types.PoolID, shares uint64) (outA, outB uint64, err error) {
	if err := e.mutable(); err != nil {
		return 0, 0, err
	}
	pool, _, err := e.loadPool(poolID)
	if err != nil {
		return 0, 0, err
	}
	shareAsset := pool.ShareAsset()
	held, err := e.ledger.BalanceOf(shareAsset, owner)
	if err != nil {
		return 0, 0, err
	}
	if held < shares {
		return 0, 0, ErrInsufficientBalance
	}
	outA, outB, err = WithdrawAmounts(pool.ReserveA, pool.ReserveB, shares, pool.ShareSupply)
	if err != nil {
		return 0, 0, err
	}
	if outA == 0 && outB == 0 {
		return 0, 0, ErrOutputTooSmall
	}

	if err := e.ledger.Burn(shareAsset, owner, shares); err != nil {
		return 0, 0, err
	}
	vault := pool.Vault()
	if err := e.ledger.Transfer(pool.AssetA, vault, owner, outA); err != nil {
		return 0, 0, err
	}
	if err := e.ledger.Transfer(pool.AssetB, vault, owner, outB); err != nil {
		return 0, 0, err
	}

	pool.ReserveA -= outA
	pool.ReserveB -= outB
	pool.ShareSupply -= shares
	if err := e.state.PutPool(pool); err != nil {
		return 0, 0, err
	}
	e.emitter.Emit(events.LiquidityWithdrawn{
		Pool:     pool.ID,
		Provider: owner,
		Shares:   shares,
		AmountA:  outA,
		AmountB:  outB,
	})
	return outA, outB, nil
}

// Swap sells input of assetIn for the other side of the pair.
func (e *Engine) Swap(trader crypto.Address, poolID types.PoolID, assetIn string, input, minOutput uint64) (SwapResult, error) {
	if err := e.mutable(); err != nil {
		return SwapResult{}, err
	}
	pool, exchange, err := e.loadPool(poolID)
	if err != nil {
		return SwapResult{}, err
	}

	var assetOut string
	var reserveIn, reserveOut uint64
	switch assetIn {
	case pool.AssetA:
		assetOut, reserveIn, reserveOut = pool.AssetB, pool.ReserveA, pool.ReserveB
	case pool.AssetB:
		assetOut, reserveIn, reserveOut = pool.AssetA, pool.ReserveB, pool.ReserveA
	default:
		return SwapResult{}, ErrInvalidMint
	}

	balance, err := e.ledger.BalanceOf(assetIn, trader)
	if err != nil {
		return SwapResult{}, err
	}
	if balance < input {
		return SwapResult{}, ErrInsufficientBalance
	}

	res, err := SwapAmounts(reserveIn, reserveOut, input, minOutput, exchange.LiquidityFeeBps)
	if err != nil {
		return SwapResult{}, err
	}

	vault := pool.Vault()
	if err := e.ledger.Transfer(assetIn, trader, vault, input); err != nil {
		return SwapResult{}, err
	}
	if err := e.ledger.Transfer(assetOut, vault, trader, res.Net); err != nil {
		return SwapResult{}, err
	}

	realizedIn, err := e.ledger.BalanceOf(assetIn, vault)
	if err != nil {
		return SwapResult{}, err
	}
	realizedOut, err := e.ledger.BalanceOf(assetOut, vault)
	if err != nil {
		return SwapResult{}, err
	}
	if err := VerifyInvariant(reserveIn, reserveOut, realizedIn, realizedOut); err != nil {
		return SwapResult{}, err
	}

	if assetIn == pool.AssetA {
		pool.ReserveA, pool.ReserveB = res.NewReserveIn, res.NewReserveOut
	} else {
		pool.ReserveB, pool.ReserveA = res.NewReserveIn, res.NewReserveOut
	}
	if err := e.state.PutPool(pool); err != nil {
		return SwapResult{}, err
	}
	e.emitter.Emit(events.Swapped{
		Pool:      pool.ID,
		Trader:    trader,
		AssetIn:   assetIn,
		AmountIn:  input,
		AssetOut:  assetOut,
		AmountOut: res.Net,
		Fee:       res.Fee,
	})
	return res, nil
}

// Price returns the current reserves of the pool.
func (e *Engine) Price(poolID types.PoolID) (reserveA, reserveB uint64, err error) {
	if err := e.ready(); err != nil {
		return 0, 0, err
	}
	pool, err := e.state.Pool(poolID)
	if err != nil {
		return 0, 0, err
	}
	if pool == nil {
		return 0, 0, ErrUnknownPool
	}
	return pool.ReserveA, pool.ReserveB, nil
}
