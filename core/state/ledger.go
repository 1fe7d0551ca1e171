package state

import (
	"fmt"
	"strings"

	"fall/crypto"
	"fall/native/common"
	"fall/native/fixedmath"
)

// Ledger implements the custody primitives on top of a Manager. Running it over
// a storage.Overlay makes every call part of the surrounding operation's
// all-or-nothing commit.
type Ledger struct {
	m *Manager
}

func NewLedger(m *Manager) *Ledger {
	return &Ledger{m: m}
}

var _ common.Ledger = (*Ledger)(nil)

func validAsset(asset string) error {
	if strings.TrimSpace(asset) == "" {
		return fmt.Errorf("ledger: asset must not be empty")
	}
	return nil
}

func (l *Ledger) BalanceOf(asset string, holder crypto.Address) (uint64, error) {
	if err := validAsset(asset); err != nil {
		return 0, err
	}
	return l.m.Balance(asset, holder)
}

func (l *Ledger) Transfer(asset string, from, to crypto.Address, amount uint64) error {
	if err := validAsset(asset); err != nil {
		return err
	}
	if amount == 0 || from.Equal(to) {
		return nil
	}
	fromBal, err := l.m.Balance(asset, from)
	if err != nil {
		return err
	}
	if fromBal < amount {
		return fmt.Errorf("%w: %s has %d %s, needs %d", common.ErrInsufficientFunds, from, fromBal, asset, amount)
	}
	toBal, err := l.m.Balance(asset, to)
	if err != nil {
		return err
	}
	credited, err := fixedmath.Add(toBal, amount)
	if err != nil {
		return fmt.Errorf("ledger: credit %s: %w", asset, err)
	}
	if err := l.m.SetBalance(asset, from, fromBal-amount); err != nil {
		return err
	}
	return l.m.SetBalance(asset, to, credited)
}

func (l *Ledger) Mint(asset string, to crypto.Address, amount uint64) error {
	if err := validAsset(asset); err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}
	supply, err := l.m.Supply(asset)
	if err != nil {
		return err
	}
	newSupply, err := fixedmath.Add(supply, amount)
	if err != nil {
		return fmt.Errorf("ledger: mint %s: %w", asset, err)
	}
	balance, err := l.m.Balance(asset, to)
	if err != nil {
		return err
	}
	// balance <= supply, so this cannot overflow once the supply check passed.
	if err := l.m.SetBalance(asset, to, balance+amount); err != nil {
		return err
	}
	return l.m.SetSupply(asset, newSupply)
}

func (l *Ledger) Burn(asset string, from crypto.Address, amount uint64) error {
	if err := validAsset(asset); err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}
	balance, err := l.m.Balance(asset, from)
	if err != nil {
		return err
	}
	if balance < amount {
		return fmt.Errorf("%w: %s has %d %s, burning %d", common.ErrInsufficientFunds, from, balance, asset, amount)
	}
	supply, err := l.m.Supply(asset)
	if err != nil {
		return err
	}
	if err := l.m.SetBalance(asset, from, balance-amount); err != nil {
		return err
	}
	return l.m.SetSupply(asset, fixedmath.SaturatingSub(supply, amount))
}
