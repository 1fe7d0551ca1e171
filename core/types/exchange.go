package types

import "fall/crypto"

// Exchange configures a trading venue. Fee rates are in basis points: the
// liquidity fee applies to swap output and the protocol fee is the share of
// newly minted liquidity diverted to the admin.
type Exchange struct {
	ID              string
	Admin           []byte
	LiquidityFeeBps uint64
	ProtocolFeeBps  uint64
}

func (e *Exchange) AdminAddress() crypto.Address {
	if e == nil || len(e.Admin) == 0 {
		return crypto.Address{}
	}
	return crypto.NewAddress(crypto.FallPrefix, e.Admin)
}

// LenderPosition is the open lending claim of one identity in one pool.
type LenderPosition struct {
	Pool             PoolID
	Lender           []byte
	Principal        uint64
	CheckpointHeight uint64
}

func (p *LenderPosition) LenderAddress() crypto.Address {
	return crypto.NewAddress(crypto.FallPrefix, p.Lender)
}

// BorrowPosition tracks posted collateral and the outstanding principal of a
// borrower. Principal is zero while only collateral has been posted.
type BorrowPosition struct {
	Pool             PoolID
	Borrower         []byte
	Principal        uint64
	Collateral       uint64
	CheckpointHeight uint64
}

func (p *BorrowPosition) BorrowerAddress() crypto.Address {
	return crypto.NewAddress(crypto.FallPrefix, p.Borrower)
}

// Event represents a typed event emitted during state transitions.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
