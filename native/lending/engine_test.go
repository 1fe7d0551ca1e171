package lending

import (
	"errors"
	"testing"

	"fall/core/events"
	"fall/core/state"
	"fall/core/types"
	"fall/crypto"
	"fall/native/amm"
	nativecommon "fall/native/common"
	"fall/storage"
)

const (
	assetA = "USDC"
	assetB = "SOL"
)

type fixture struct {
	amm      *amm.Engine
	engine   *Engine
	state    *state.Manager
	ledger   *state.Ledger
	events   *events.Buffer
	poolID   types.PoolID
	maker    crypto.Address
	lender   crypto.Address
	borrower crypto.Address
	keeper   crypto.Address
}

func makeAddress(suffix byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(crypto.FallPrefix, raw)
}

// newFixture creates a pool seeded with 10000/10000 reserves at height 0.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	ledger := state.NewLedger(manager)
	buf := &events.Buffer{}

	market := amm.NewEngine()
	market.SetState(manager)
	market.SetLedger(ledger)

	engine := NewEngine(types.DefaultLendingParams())
	engine.SetState(manager)
	engine.SetLedger(ledger)
	engine.SetEmitter(buf)

	f := &fixture{
		amm:      market,
		engine:   engine,
		state:    manager,
		ledger:   ledger,
		events:   buf,
		maker:    makeAddress(0x10),
		lender:   makeAddress(0x11),
		borrower: makeAddress(0x12),
		keeper:   makeAddress(0x13),
	}
	if _, err := market.CreateExchange("main", makeAddress(0xAD), 10, 10); err != nil {
		t.Fatalf("create exchange: %v", err)
	}
	pool, err := market.CreatePool("main", assetA, assetB)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	f.poolID = pool.ID
	for _, addr := range []crypto.Address{f.maker, f.lender, f.borrower} {
		f.mint(t, assetA, addr, 50_000)
		f.mint(t, assetB, addr, 50_000)
	}
	if _, err := market.DepositLiquidity(f.maker, f.poolID, 10_000, 10_000); err != nil {
		t.Fatalf("seed liquidity: %v", err)
	}
	return f
}

func (f *fixture) mint(t *testing.T, asset string, addr crypto.Address, amount uint64) {
	t.Helper()
	if err := f.ledger.Mint(asset, addr, amount); err != nil {
		t.Fatalf("mint: %v", err)
	}
}

func (f *fixture) at(height uint64) {
	f.amm.SetBlockHeight(height)
	f.engine.SetBlockHeight(height)
}

func (f *fixture) balance(t *testing.T, asset string, addr crypto.Address) uint64 {
	t.Helper()
	bal, err := f.ledger.BalanceOf(asset, addr)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal
}

func (f *fixture) pool(t *testing.T) *types.Pool {
	t.Helper()
	pool, err := f.state.Pool(f.poolID)
	if err != nil || pool == nil {
		t.Fatalf("load pool: %v", err)
	}
	return pool
}

func TestLendRedeemSameHeightReturnsPrincipal(t *testing.T) {
	f := newFixture(t)
	f.at(4)
	before := f.balance(t, assetA, f.lender)
	if err := f.engine.Lend(f.lender, f.poolID, 1_000); err != nil {
		t.Fatalf("lend: %v", err)
	}
	if got := f.balance(t, assetA, f.pool(t).LendingVault()); got != 1_000 {
		t.Fatalf("vault holds %d", got)
	}
	res, err := f.engine.Redeem(f.lender, f.poolID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if res.PrincipalA != 1_000 || res.PrincipalB != 0 || res.InterestB != 0 {
		t.Fatalf("unexpected redemption %+v", res)
	}
	if got := f.balance(t, assetA, f.lender); got != before {
		t.Fatalf("lender balance %d, want %d", got, before)
	}
	pool := f.pool(t)
	if pool.TotalLent != 0 || pool.ShareLendingAccumulator != 0 {
		t.Fatalf("pool not reset: %+v", pool)
	}
	position, err := f.state.LenderPosition(f.poolID, f.lender)
	if err != nil || position != nil {
		t.Fatalf("position must be deleted: %+v %v", position, err)
	}
	evs := f.events.Events()
	if len(evs) != 2 || evs[0].EventType() != events.TypeLent || evs[1].EventType() != events.TypeRedeemed {
		t.Fatalf("unexpected events %+v", evs)
	}
}

func TestLendValidation(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Lend(f.lender, f.poolID, 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := f.engine.Lend(f.lender, f.poolID, 50_001); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := f.engine.Lend(f.lender, types.NewPoolID("main", "X", "Y"), 1); !errors.Is(err, ErrUnknownPool) {
		t.Fatalf("expected ErrUnknownPool, got %v", err)
	}
	if err := f.engine.Lend(f.lender, f.poolID, 1_000); err != nil {
		t.Fatalf("lend: %v", err)
	}
	if err := f.engine.Lend(f.lender, f.poolID, 1_000); !errors.Is(err, ErrExistingLending) {
		t.Fatalf("expected ErrExistingLending, got %v", err)
	}
	if _, err := f.engine.Redeem(f.borrower, f.poolID); !errors.Is(err, ErrNoPosition) {
		t.Fatalf("expected ErrNoPosition, got %v", err)
	}
}

func TestRedeemRejectsClockRegression(t *testing.T) {
	f := newFixture(t)
	f.at(10)
	if err := f.engine.Lend(f.lender, f.poolID, 1_000); err != nil {
		t.Fatalf("lend: %v", err)
	}
	f.at(5)
	if _, err := f.engine.Redeem(f.lender, f.poolID); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected ErrArithmeticOverflow, got %v", err)
	}
}

func TestBorrowRepayRedeemWithInterest(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Lend(f.lender, f.poolID, 1_000); err != nil {
		t.Fatalf("lend: %v", err)
	}
	if _, err := f.engine.DepositCollateral(f.borrower, f.poolID, 2_000); err != nil {
		t.Fatalf("collateral: %v", err)
	}
	startA := f.balance(t, assetA, f.borrower)
	position, err := f.engine.Borrow(f.borrower, f.poolID, 500)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if position.Principal != 500 || position.Collateral != 2_000 || position.CheckpointHeight != 0 {
		t.Fatalf("unexpected position %+v", position)
	}
	if got := f.balance(t, assetA, f.borrower); got != startA+500 {
		t.Fatalf("borrower balance %d", got)
	}

	f.at(100)
	startB := f.balance(t, assetB, f.borrower)
	repaid, err := f.engine.Repay(f.borrower, f.poolID)
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if repaid.InterestA != 25 || repaid.InterestB != 25 || repaid.CollateralReturned != 1_975 {
		t.Fatalf("unexpected repayment %+v", repaid)
	}
	if got := f.balance(t, assetB, f.borrower); got != startB+1_975 {
		t.Fatalf("borrower collateral balance %d", got)
	}
	pool := f.pool(t)
	if pool.TotalBorrowed != 0 || pool.TotalCollateral != 0 || pool.BorrowInterestAccumulator != 25 {
		t.Fatalf("unexpected pool after repay %+v", pool)
	}

	f.at(200)
	startLenderB := f.balance(t, assetB, f.lender)
	redeemed, err := f.engine.Redeem(f.lender, f.poolID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if redeemed.PrincipalA != 1_000 || redeemed.PrincipalB != 0 || redeemed.InterestB != 25 {
		t.Fatalf("unexpected redemption %+v", redeemed)
	}
	if got := f.balance(t, assetB, f.lender); got != startLenderB+25 {
		t.Fatalf("lender interest balance %d", got)
	}
	vault := f.pool(t).LendingVault()
	if a, b := f.balance(t, assetA, vault), f.balance(t, assetB, vault); a != 0 || b != 0 {
		t.Fatalf("vault not drained: %d %d", a, b)
	}
}

func TestBorrowValidation(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Lend(f.lender, f.poolID, 1_000); err != nil {
		t.Fatalf("lend: %v", err)
	}
	if _, err := f.engine.Borrow(f.borrower, f.poolID, 100); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected ErrInsufficientCollateral without collateral, got %v", err)
	}
	if _, err := f.engine.DepositCollateral(f.borrower, f.poolID, 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.engine.DepositCollateral(f.borrower, f.poolID, 60_000); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if _, err := f.engine.DepositCollateral(f.borrower, f.poolID, 600); err != nil {
		t.Fatalf("collateral: %v", err)
	}
	if _, err := f.engine.DepositCollateral(f.borrower, f.poolID, 400); err != nil {
		t.Fatalf("top up: %v", err)
	}
	// Collateral worth 1000 A at a 1:1 price supports at most 1000.
	for _, amount := range []uint64{1_001, 1_500, 10_000} {
		if _, err := f.engine.Borrow(f.borrower, f.poolID, amount); !errors.Is(err, ErrInsufficientCollateral) {
			t.Fatalf("borrow %d: expected ErrInsufficientCollateral, got %v", amount, err)
		}
	}
	if _, err := f.engine.Borrow(f.borrower, f.poolID, 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.engine.Borrow(f.borrower, f.poolID, 800); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if _, err := f.engine.Borrow(f.borrower, f.poolID, 100); !errors.Is(err, ErrExistingBorrow) {
		t.Fatalf("expected ErrExistingBorrow, got %v", err)
	}
	if _, err := f.engine.Repay(f.keeper, f.poolID); !errors.Is(err, ErrNoPosition) {
		t.Fatalf("expected ErrNoPosition, got %v", err)
	}
	if _, err := f.engine.Liquidate(f.keeper, f.borrower, f.poolID); !errors.Is(err, ErrNotLiquidatable) {
		t.Fatalf("expected ErrNotLiquidatable, got %v", err)
	}
}

func TestBorrowLimitedByLentSupply(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Lend(f.lender, f.poolID, 300); err != nil {
		t.Fatalf("lend: %v", err)
	}
	if _, err := f.engine.DepositCollateral(f.borrower, f.poolID, 5_000); err != nil {
		t.Fatalf("collateral: %v", err)
	}
	if _, err := f.engine.Borrow(f.borrower, f.poolID, 301); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
	if _, err := f.engine.Borrow(f.borrower, f.poolID, 300); err != nil {
		t.Fatalf("borrow: %v", err)
	}
}

func TestLiquidationFeedsRedemptionWaterfall(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Lend(f.lender, f.poolID, 1_000); err != nil {
		t.Fatalf("lend: %v", err)
	}
	if _, err := f.engine.DepositCollateral(f.borrower, f.poolID, 1_000); err != nil {
		t.Fatalf("collateral: %v", err)
	}
	if _, err := f.engine.Borrow(f.borrower, f.poolID, 900); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	// Dump B into the pool so the collateral is worth far less than 900 A.
	if _, err := f.amm.Swap(f.maker, f.poolID, assetB, 5_000, 0); err != nil {
		t.Fatalf("swap: %v", err)
	}

	res, err := f.engine.Liquidate(f.keeper, f.borrower, f.poolID)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if res.Reward != 10 || res.Principal != 900 || res.CollateralValue >= 900 {
		t.Fatalf("unexpected liquidation %+v", res)
	}
	if got := f.balance(t, assetB, f.keeper); got != 10 {
		t.Fatalf("keeper reward %d", got)
	}
	pool := f.pool(t)
	if pool.TotalBorrowed != 0 || pool.TotalCollateral != 0 || pool.BorrowInterestAccumulator != 0 {
		t.Fatalf("unexpected pool after liquidation %+v", pool)
	}
	if position, _ := f.state.BorrowPosition(f.poolID, f.borrower); position != nil {
		t.Fatalf("position must be deleted")
	}

	f.at(10)
	redeemed, err := f.engine.Redeem(f.lender, f.poolID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if redeemed.PrincipalA != 100 || redeemed.PrincipalB != 990 || redeemed.InterestB != 0 {
		t.Fatalf("unexpected redemption %+v", redeemed)
	}
	if got := f.pool(t).TotalLent; got != 0 {
		t.Fatalf("total lent %d", got)
	}
}

func TestLiquidationAccruesInterestOnWrittenOffPrincipal(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Lend(f.lender, f.poolID, 1_000); err != nil {
		t.Fatalf("lend: %v", err)
	}
	if _, err := f.engine.DepositCollateral(f.borrower, f.poolID, 1_000); err != nil {
		t.Fatalf("collateral: %v", err)
	}
	if _, err := f.engine.Borrow(f.borrower, f.poolID, 900); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if _, err := f.amm.Swap(f.maker, f.poolID, assetB, 5_000, 0); err != nil {
		t.Fatalf("swap: %v", err)
	}

	f.at(100)
	if _, err := f.engine.Liquidate(f.keeper, f.borrower, f.poolID); err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	// 100 blocks of 900 borrowed at 5 bps.
	pool := f.pool(t)
	if pool.BorrowInterestAccumulator != 45 || pool.BorrowInterestHeight != 100 {
		t.Fatalf("borrow index %d at %d, want 45 at 100", pool.BorrowInterestAccumulator, pool.BorrowInterestHeight)
	}
	if pool.TotalBorrowed != 0 || pool.TotalCollateral != 0 {
		t.Fatalf("counters not cleared: %+v", pool)
	}

	startB := f.balance(t, assetB, f.lender)
	redeemed, err := f.engine.Redeem(f.lender, f.poolID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if redeemed.InterestOwed != 45 || redeemed.InterestB != 45 {
		t.Fatalf("unexpected interest %+v", redeemed)
	}
	if redeemed.PrincipalA != 100 || redeemed.PrincipalB != 945 {
		t.Fatalf("unexpected principal %+v", redeemed)
	}
	if got := f.balance(t, assetB, f.lender); got != startB+990 {
		t.Fatalf("lender B balance %d, want %d", got, startB+990)
	}
}

func TestRedeemPaysInterestUnconvertedInSecondAsset(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Lend(f.lender, f.poolID, 1_000); err != nil {
		t.Fatalf("lend: %v", err)
	}
	if _, err := f.engine.DepositCollateral(f.borrower, f.poolID, 2_000); err != nil {
		t.Fatalf("collateral: %v", err)
	}
	if _, err := f.engine.Borrow(f.borrower, f.poolID, 1_000); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	// Move the price well away from 1:1.
	if _, err := f.amm.Swap(f.maker, f.poolID, assetA, 5_000, 0); err != nil {
		t.Fatalf("swap: %v", err)
	}

	f.at(200)
	repaid, err := f.engine.Repay(f.borrower, f.poolID)
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if repaid.InterestA != 100 || repaid.InterestB != 44 {
		t.Fatalf("unexpected repayment %+v", repaid)
	}
	vault := f.pool(t).LendingVault()
	f.mint(t, assetB, vault, 1_000)

	f.at(400)
	startB := f.balance(t, assetB, f.lender)
	redeemed, err := f.engine.Redeem(f.lender, f.poolID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if redeemed.InterestOwed != 100 || redeemed.InterestB != 100 {
		t.Fatalf("interest owed %d paid %d, want 100 paid in full", redeemed.InterestOwed, redeemed.InterestB)
	}
	if redeemed.PrincipalA != 1_000 || redeemed.PrincipalB != 0 {
		t.Fatalf("unexpected principal %+v", redeemed)
	}
	if got := f.balance(t, assetB, f.lender); got != startB+100 {
		t.Fatalf("lender B balance %d, want %d", got, startB+100)
	}
}

func TestRedeemCapsInterestToFreeSecondAsset(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Lend(f.lender, f.poolID, 1_000); err != nil {
		t.Fatalf("lend: %v", err)
	}
	if _, err := f.engine.DepositCollateral(f.borrower, f.poolID, 2_000); err != nil {
		t.Fatalf("collateral: %v", err)
	}
	if _, err := f.engine.Borrow(f.borrower, f.poolID, 1_000); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if _, err := f.amm.Swap(f.maker, f.poolID, assetA, 5_000, 0); err != nil {
		t.Fatalf("swap: %v", err)
	}
	f.at(200)
	if _, err := f.engine.Repay(f.borrower, f.poolID); err != nil {
		t.Fatalf("repay: %v", err)
	}
	f.at(400)
	redeemed, err := f.engine.Redeem(f.lender, f.poolID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	// Only the 44 B absorbed at repay is free.
	if redeemed.InterestOwed != 100 || redeemed.InterestB != 44 {
		t.Fatalf("unexpected interest %+v", redeemed)
	}
}

func TestRepayForgivesInterestBeyondCollateral(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Lend(f.lender, f.poolID, 1_000); err != nil {
		t.Fatalf("lend: %v", err)
	}
	if _, err := f.engine.DepositCollateral(f.borrower, f.poolID, 1_000); err != nil {
		t.Fatalf("collateral: %v", err)
	}
	if _, err := f.engine.Borrow(f.borrower, f.poolID, 1_000); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	// 3000 blocks at 5 bps charges 1500 A against 1000 B of collateral.
	f.at(3_000)
	res, err := f.engine.Repay(f.borrower, f.poolID)
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if res.InterestB != 1_500 || res.CollateralReturned != 0 {
		t.Fatalf("unexpected repayment %+v", res)
	}
	if position, _ := f.state.BorrowPosition(f.poolID, f.borrower); position != nil {
		t.Fatalf("position must be closed")
	}
}

func TestRepayRequiresPrincipal(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Lend(f.lender, f.poolID, 1_000); err != nil {
		t.Fatalf("lend: %v", err)
	}
	if _, err := f.engine.DepositCollateral(f.keeper, f.poolID, 1); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if _, err := f.engine.DepositCollateral(f.borrower, f.poolID, 1_000); err != nil {
		t.Fatalf("collateral: %v", err)
	}
	if _, err := f.engine.Repay(f.borrower, f.poolID); !errors.Is(err, ErrNoPosition) {
		t.Fatalf("collateral-only position: expected ErrNoPosition, got %v", err)
	}
	if _, err := f.engine.Borrow(f.borrower, f.poolID, 500); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	// Spend the borrowed A so the principal cannot be returned.
	drain := f.balance(t, assetA, f.borrower) - 100
	if err := f.ledger.Transfer(assetA, f.borrower, f.keeper, drain); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if _, err := f.engine.Repay(f.borrower, f.poolID); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestPausedModuleRejectsMutations(t *testing.T) {
	f := newFixture(t)
	f.engine.SetPauses(nativecommon.NewStaticPauses([]string{"Lending"}))
	if err := f.engine.Lend(f.lender, f.poolID, 1_000); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if _, err := f.engine.Liquidate(f.keeper, f.borrower, f.poolID); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
}

func TestEngineRequiresState(t *testing.T) {
	engine := NewEngine(types.LendingParams{})
	if err := engine.Lend(makeAddress(1), types.PoolID{}, 1); err == nil {
		t.Fatalf("expected error without state")
	}
	if engine.Params().LiquidationRewardDivisor != types.DefaultLiquidationRewardDivisor {
		t.Fatalf("params not normalized")
	}
}
