package common

import (
	"errors"

	"fall/crypto"
)

var ErrInsufficientFunds = errors.New("ledger: insufficient funds")

// Ledger is the custody service the engines hand balance mutations to. Each
// call is all-or-nothing and the whole operation is rolled back by the host
// when any later step fails.
type Ledger interface {
	Transfer(asset string, from, to crypto.Address, amount uint64) error
	Mint(asset string, to crypto.Address, amount uint64) error
	Burn(asset string, from crypto.Address, amount uint64) error
	BalanceOf(asset string, holder crypto.Address) (uint64, error)
}

// Clock yields the current block height. Heights never decrease.
type Clock interface {
	CurrentHeight() (uint64, error)
}
