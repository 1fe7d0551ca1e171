package amm

import (
	"errors"
	"testing"

	"fall/core/events"
	"fall/core/state"
	"fall/core/types"
	"fall/crypto"
	nativecommon "fall/native/common"
	"fall/storage"
)

type fixture struct {
	engine  *Engine
	state   *state.Manager
	ledger  *state.Ledger
	events  *events.Buffer
	admin   crypto.Address
	alice   crypto.Address
	bob     crypto.Address
	poolID  types.PoolID
	created *types.Pool
}

func makeAddress(suffix byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(crypto.FallPrefix, raw)
}

func newFixture(t *testing.T, protocolFeeBps uint64) *fixture {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	ledger := state.NewLedger(manager)
	buf := &events.Buffer{}

	engine := NewEngine()
	engine.SetState(manager)
	engine.SetLedger(ledger)
	engine.SetEmitter(buf)
	engine.SetBlockHeight(7)

	f := &fixture{
		engine: engine,
		state:  manager,
		ledger: ledger,
		events: buf,
		admin:  makeAddress(0xAD),
		alice:  makeAddress(0x01),
		bob:    makeAddress(0x02),
	}
	if _, err := engine.CreateExchange("main", f.admin, 10, protocolFeeBps); err != nil {
		t.Fatalf("create exchange: %v", err)
	}
	pool, err := engine.CreatePool("main", "USDC", "SOL")
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	f.poolID = pool.ID
	f.created = pool
	for _, addr := range []crypto.Address{f.alice, f.bob} {
		if err := ledger.Mint("USDC", addr, 50_000); err != nil {
			t.Fatalf("fund: %v", err)
		}
		if err := ledger.Mint("SOL", addr, 50_000); err != nil {
			t.Fatalf("fund: %v", err)
		}
	}
	return f
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

func TestCreatePoolValidation(t *testing.T) {
	f := newFixture(t, 0)
	if f.created.CreatedHeight != 7 || f.created.BorrowInterestHeight != 7 || f.created.ShareLendingHeight != 7 {
		t.Fatalf("expected heights stamped at creation, got %+v", f.created)
	}
	if _, err := f.engine.CreatePool("main", "USDC", "SOL"); !errors.Is(err, ErrPoolExists) {
		t.Fatalf("expected ErrPoolExists, got %v", err)
	}
	if _, err := f.engine.CreatePool("main", "USDC", "USDC"); !errors.Is(err, ErrInvalidMint) {
		t.Fatalf("expected ErrInvalidMint, got %v", err)
	}
	if _, err := f.engine.CreatePool("other", "USDC", "ETH"); !errors.Is(err, ErrUnknownExchange) {
		t.Fatalf("expected ErrUnknownExchange, got %v", err)
	}
	if _, err := f.engine.CreateExchange("fees", f.admin, 10_000, 0); !errors.Is(err, ErrInvalidFee) {
		t.Fatalf("expected ErrInvalidFee, got %v", err)
	}
	if _, err := f.engine.CreateExchange("main", f.admin, 10, 10); !errors.Is(err, ErrExchangeExists) {
		t.Fatalf("expected ErrExchangeExists, got %v", err)
	}
}

func TestFirstDepositLocksMinimumLiquidity(t *testing.T) {
	f := newFixture(t, 10)
	res, err := f.engine.DepositLiquidity(f.alice, f.poolID, 10_000, 10_000)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.Minted != 9_990 || res.UserShares != 9_980 || res.ProtocolShares != 10 {
		t.Fatalf("unexpected deposit %+v", res)
	}
	pool := f.pool(t)
	share := pool.ShareAsset()
	if got := f.balance(t, share, f.alice); got != 9_980 {
		t.Fatalf("alice shares %d", got)
	}
	if got := f.balance(t, share, f.admin); got != 10 {
		t.Fatalf("admin shares %d", got)
	}
	if got := f.balance(t, share, pool.LockedLiquidity()); got != types.MinimumLiquidity {
		t.Fatalf("locked shares %d", got)
	}
	if pool.ShareSupply != 10_000 || pool.ReserveA != 10_000 || pool.ReserveB != 10_000 {
		t.Fatalf("unexpected pool %+v", pool)
	}
	if got := f.balance(t, "USDC", pool.Vault()); got != 10_000 {
		t.Fatalf("vault USDC %d", got)
	}
}

func TestDepositClampsToBalance(t *testing.T) {
	f := newFixture(t, 0)
	if _, err := f.engine.DepositLiquidity(f.alice, f.poolID, 10_000, 10_000); err != nil {
		t.Fatalf("seed: %v", err)
	}
	carol := makeAddress(0x03)
	if err := f.ledger.Mint("USDC", carol, 500); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if err := f.ledger.Mint("SOL", carol, 5_000); err != nil {
		t.Fatalf("fund: %v", err)
	}
	res, err := f.engine.DepositLiquidity(carol, f.poolID, 1_000, 1_000)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.AcceptedA != 500 || res.AcceptedB != 500 || res.UserShares != 500 {
		t.Fatalf("expected clamp to 500, got %+v", res)
	}
	if got := f.balance(t, "USDC", carol); got != 0 {
		t.Fatalf("carol USDC %d", got)
	}
}

func TestSwapReferenceTrade(t *testing.T) {
	f := newFixture(t, 0)
	if _, err := f.engine.DepositLiquidity(f.alice, f.poolID, 10_000, 10_000); err != nil {
		t.Fatalf("seed: %v", err)
	}
	f.events.Flush(nil)

	res, err := f.engine.Swap(f.bob, f.poolID, "USDC", 1_000, 900)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if res.Raw != 910 || res.Fee != 0 || res.Net != 910 {
		t.Fatalf("unexpected swap %+v", res)
	}
	pool := f.pool(t)
	if pool.ReserveA != 11_000 || pool.ReserveB != 9_090 {
		t.Fatalf("unexpected reserves %d/%d", pool.ReserveA, pool.ReserveB)
	}
	if got := f.balance(t, "SOL", f.bob); got != 50_910 {
		t.Fatalf("bob SOL %d", got)
	}
	if got := f.balance(t, "SOL", pool.Vault()); got != pool.ReserveB {
		t.Fatalf("vault SOL %d does not match reserve %d", got, pool.ReserveB)
	}
	emitted := f.events.Events()
	if len(emitted) != 1 || emitted[0].EventType() != events.TypeSwapped {
		t.Fatalf("expected one swap event, got %v", emitted)
	}

	// Reverse direction.
	res, err = f.engine.Swap(f.bob, f.poolID, "SOL", 910, 0)
	if err != nil {
		t.Fatalf("reverse swap: %v", err)
	}
	after := f.pool(t)
	if after.ReserveB != 10_000 || after.ReserveA != 11_000-res.Net {
		t.Fatalf("unexpected reserves after reverse %d/%d", after.ReserveA, after.ReserveB)
	}
}

func TestSwapRejections(t *testing.T) {
	f := newFixture(t, 0)
	if _, err := f.engine.Swap(f.bob, f.poolID, "USDC", 1_000, 0); !errors.Is(err, ErrEmptyPool) {
		t.Fatalf("expected ErrEmptyPool, got %v", err)
	}
	if _, err := f.engine.DepositLiquidity(f.alice, f.poolID, 10_000, 10_000); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := f.engine.Swap(f.bob, f.poolID, "USDC", 1_000, 911); !errors.Is(err, ErrExcessiveSlippage) {
		t.Fatalf("expected ErrExcessiveSlippage, got %v", err)
	}
	if _, err := f.engine.Swap(f.bob, f.poolID, "ETH", 1_000, 0); !errors.Is(err, ErrInvalidMint) {
		t.Fatalf("expected ErrInvalidMint, got %v", err)
	}
	if _, err := f.engine.Swap(f.bob, f.poolID, "USDC", 60_000, 0); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if got := f.balance(t, "USDC", f.bob); got != 50_000 {
		t.Fatalf("rejected swaps must not move funds, bob has %d", got)
	}
}

// skimmingLedger pays out more than asked whenever funds leave a vault.
type skimmingLedger struct {
	nativecommon.Ledger
	vault crypto.Address
}

func (s skimmingLedger) Transfer(asset string, from, to crypto.Address, amount uint64) error {
	if from.Equal(s.vault) {
		amount += 100
	}
	return s.Ledger.Transfer(asset, from, to, amount)
}

func TestSwapDetectsInconsistentCustody(t *testing.T) {
	f := newFixture(t, 0)
	if _, err := f.engine.DepositLiquidity(f.alice, f.poolID, 10_000, 10_000); err != nil {
		t.Fatalf("seed: %v", err)
	}
	f.engine.SetLedger(skimmingLedger{Ledger: f.ledger, vault: f.pool(t).Vault()})
	if _, err := f.engine.Swap(f.bob, f.poolID, "USDC", 1_000, 0); !errors.Is(err, ErrInvariantViolated) {
		t.Fatalf("expected ErrInvariantViolated, got %v", err)
	}
}

func TestWithdrawLiquidity(t *testing.T) {
	f := newFixture(t, 0)
	if _, err := f.engine.DepositLiquidity(f.alice, f.poolID, 10_000, 20_000); err != nil {
		t.Fatalf("seed: %v", err)
	}
	pool := f.pool(t)
	shares := f.balance(t, pool.ShareAsset(), f.alice)

	if _, _, err := f.engine.WithdrawLiquidity(f.alice, f.poolID, shares+1); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	outA, outB, err := f.engine.WithdrawLiquidity(f.alice, f.poolID, shares)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	wantA := pool.ReserveA * shares / pool.ShareSupply
	wantB := pool.ReserveB * shares / pool.ShareSupply
	if outA != wantA || outB != wantB {
		t.Fatalf("expected (%d, %d), got (%d, %d)", wantA, wantB, outA, outB)
	}
	after := f.pool(t)
	if after.ShareSupply != types.MinimumLiquidity {
		t.Fatalf("expected only locked liquidity left, got %d", after.ShareSupply)
	}
	if after.ReserveA == 0 || after.ReserveB == 0 {
		t.Fatalf("locked liquidity must keep reserves non-zero")
	}
	if got := f.balance(t, "USDC", after.Vault()); got != after.ReserveA {
		t.Fatalf("vault %d does not match reserve %d", got, after.ReserveA)
	}
}

func TestPausedEngineRejectsMutations(t *testing.T) {
	f := newFixture(t, 0)
	f.engine.SetPauses(nativecommon.NewStaticPauses([]string{"amm"}))
	if _, err := f.engine.DepositLiquidity(f.alice, f.poolID, 10_000, 10_000); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if _, _, err := f.engine.Price(f.poolID); err != nil {
		t.Fatalf("price must stay readable while paused: %v", err)
	}
}
