package events

import (
	"fall/core/types"
	"fall/crypto"
)

const (
	TypeLent                 = "lending.lent"
	TypeRedeemed             = "lending.redeemed"
	TypeCollateralDeposited  = "lending.collateral_deposited"
	TypeBorrowed             = "lending.borrowed"
	TypeRepaid               = "lending.repaid"
	TypeLiquidated           = "lending.liquidated"
	TypeAccumulatorSaturated = "lending.accumulator_saturated"
)

type Lent struct {
	Pool   types.PoolID
	Lender crypto.Address
	Amount uint64
	Height uint64
}

func (Lent) EventType() string { return TypeLent }

func (e Lent) Event() *types.Event {
	return &types.Event{
		Type: TypeLent,
		Attributes: map[string]string{
			"pool":   e.Pool.String(),
			"lender": e.Lender.String(),
			"amount": u64(e.Amount),
			"height": u64(e.Height),
		},
	}
}

// Redeemed reports what a lender received. PrincipalB is non-zero only when
// the waterfall paid part of the principal out of liquidated collateral.
type Redeemed struct {
	Pool       types.PoolID
	Lender     crypto.Address
	Principal  uint64
	PrincipalA uint64
	PrincipalB uint64
	InterestB  uint64
}

func (Redeemed) EventType() string { return TypeRedeemed }

func (e Redeemed) Event() *types.Event {
	return &types.Event{
		Type: TypeRedeemed,
		Attributes: map[string]string{
			"pool":       e.Pool.String(),
			"lender":     e.Lender.String(),
			"principal":  u64(e.Principal),
			"principalA": u64(e.PrincipalA),
			"principalB": u64(e.PrincipalB),
			"interestB":  u64(e.InterestB),
		},
	}
}

type CollateralDeposited struct {
	Pool     types.PoolID
	Borrower crypto.Address
	Amount   uint64
	Total    uint64
}

func (CollateralDeposited) EventType() string { return TypeCollateralDeposited }

func (e CollateralDeposited) Event() *types.Event {
	return &types.Event{
		Type: TypeCollateralDeposited,
		Attributes: map[string]string{
			"pool":     e.Pool.String(),
			"borrower": e.Borrower.String(),
			"amount":   u64(e.Amount),
			"total":    u64(e.Total),
		},
	}
}

type Borrowed struct {
	Pool       types.PoolID
	Borrower   crypto.Address
	Amount     uint64
	Collateral uint64
	Height     uint64
}

func (Borrowed) EventType() string { return TypeBorrowed }

func (e Borrowed) Event() *types.Event {
	return &types.Event{
		Type: TypeBorrowed,
		Attributes: map[string]string{
			"pool":       e.Pool.String(),
			"borrower":   e.Borrower.String(),
			"amount":     u64(e.Amount),
			"collateral": u64(e.Collateral),
			"height":     u64(e.Height),
		},
	}
}

type Repaid struct {
	Pool               types.PoolID
	Borrower           crypto.Address
	Principal          uint64
	InterestB          uint64
	CollateralReturned uint64
}

func (Repaid) EventType() string { return TypeRepaid }

func (e Repaid) Event() *types.Event {
	return &types.Event{
		Type: TypeRepaid,
		Attributes: map[string]string{
			"pool":               e.Pool.String(),
			"borrower":           e.Borrower.String(),
			"principal":          u64(e.Principal),
			"interestB":          u64(e.InterestB),
			"collateralReturned": u64(e.CollateralReturned),
		},
	}
}

type Liquidated struct {
	Pool       types.PoolID
	Borrower   crypto.Address
	Liquidator crypto.Address
	Principal  uint64
	Collateral uint64
	Reward     uint64
}

func (Liquidated) EventType() string { return TypeLiquidated }

func (e Liquidated) Event() *types.Event {
	return &types.Event{
		Type: TypeLiquidated,
		Attributes: map[string]string{
			"pool":       e.Pool.String(),
			"borrower":   e.Borrower.String(),
			"liquidator": e.Liquidator.String(),
			"principal":  u64(e.Principal),
			"collateral": u64(e.Collateral),
			"reward":     u64(e.Reward),
		},
	}
}

// AccumulatorSaturated marks a pool whose accumulator reached the maximum
// representable value. Further accrual on it is frozen.
type AccumulatorSaturated struct {
	Pool types.PoolID
	Kind string
}

func (AccumulatorSaturated) EventType() string { return TypeAccumulatorSaturated }

func (e AccumulatorSaturated) Event() *types.Event {
	return &types.Event{
		Type: TypeAccumulatorSaturated,
		Attributes: map[string]string{
			"pool": e.Pool.String(),
			"kind": e.Kind,
		},
	}
}
