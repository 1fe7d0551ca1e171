package core

import (
	"fall/core/state"
	"fall/core/types"
	"fall/crypto"
	"fall/native/amm"
	"fall/native/lending"
)

// PoolView is a pool together with the balances of its custody addresses.
type PoolView struct {
	*types.Pool
	VaultA        uint64
	VaultB        uint64
	LendingVaultA uint64
	LendingVaultB uint64
}

func (s *Service) reader() *state.Manager {
	return state.NewManager(s.db)
}

// Exchange returns the registered exchange or amm.ErrUnknownExchange.
func (s *Service) Exchange(id string) (*types.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exchange, err := s.reader().Exchange(id)
	if err != nil {
		return nil, err
	}
	if exchange == nil {
		return nil, amm.ErrUnknownExchange
	}
	return exchange, nil
}

func (s *Service) Pool(id types.PoolID) (*PoolView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.poolView(s.reader(), id)
}

func (s *Service) poolView(m *state.Manager, id types.PoolID) (*PoolView, error) {
	pool, err := m.Pool(id)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, amm.ErrUnknownPool
	}
	view := &PoolView{Pool: pool}
	balances := []struct {
		asset string
		addr  crypto.Address
		dst   *uint64
	}{
		{pool.AssetA, pool.Vault(), &view.VaultA},
		{pool.AssetB, pool.Vault(), &view.VaultB},
		{pool.AssetA, pool.LendingVault(), &view.LendingVaultA},
		{pool.AssetB, pool.LendingVault(), &view.LendingVaultB},
	}
	for _, b := range balances {
		if *b.dst, err = m.Balance(b.asset, b.addr); err != nil {
			return nil, err
		}
	}
	return view, nil
}

// Pools lists every pool in id order.
func (s *Service) Pools() ([]*PoolView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.reader()
	ids, err := m.PoolIDs()
	if err != nil {
		return nil, err
	}
	out := make([]*PoolView, 0, len(ids))
	for _, id := range ids {
		view, err := s.poolView(m, id)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}

// Price returns the pool's reserves. The price of A in B is reserveB/reserveA.
func (s *Service) Price(id types.PoolID) (reserveA, reserveB uint64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	engine := amm.NewEngine()
	engine.SetState(s.reader())
	engine.SetLedger(state.NewLedger(s.reader()))
	return engine.Price(id)
}

func (s *Service) LenderPosition(pool types.PoolID, lender crypto.Address) (*types.LenderPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	position, err := s.reader().LenderPosition(pool, lender)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, lending.ErrNoPosition
	}
	return position, nil
}

func (s *Service) BorrowPosition(pool types.PoolID, borrower crypto.Address) (*types.BorrowPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	position, err := s.reader().BorrowPosition(pool, borrower)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, lending.ErrNoPosition
	}
	return position, nil
}

func (s *Service) Balance(asset string, holder crypto.Address) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return state.NewLedger(s.reader()).BalanceOf(asset, holder)
}

// Height returns the last height a committed operation observed.
func (s *Service) Height() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().LastHeight()
}
