package lending

import "fall/native/fixedmath"

// RedemptionPlan splits a lender's principal between the lent asset and the
// liquidated collateral held by the lending vault.
type RedemptionPlan struct {
	PayA uint64
	PayB uint64
	// Shortfall is the part of the principal the vault could not pay in A.
	Shortfall uint64
}

// PlanRedemption pays principal in A when the vault holds enough. Otherwise it
// pays out all of the vault's A and covers the remainder pro rata out of
// collateral left behind by liquidations:
//
//	liquidated = totalLent - totalBorrowed - vaultA
//	payB       = (vaultB - totalCollateral) * remaining / liquidated
//
// totalLent must still include the redeeming position.
func PlanRedemption(principal, vaultA, vaultB, totalLent, totalBorrowed, totalCollateral uint64) (RedemptionPlan, error) {
	if vaultA >= principal {
		return RedemptionPlan{PayA: principal}, nil
	}
	remaining := principal - vaultA
	unborrowed, err := fixedmath.Sub(totalLent, totalBorrowed)
	if err != nil {
		return RedemptionPlan{}, calculation(err)
	}
	liquidated, err := fixedmath.Sub(unborrowed, vaultA)
	if err != nil {
		return RedemptionPlan{}, calculation(err)
	}
	if liquidated == 0 || remaining > liquidated {
		return RedemptionPlan{}, ErrCalculation
	}
	availableB, err := fixedmath.Sub(vaultB, totalCollateral)
	if err != nil {
		return RedemptionPlan{}, calculation(err)
	}
	payB, err := fixedmath.MulDiv(availableB, remaining, liquidated)
	if err != nil {
		return RedemptionPlan{}, calculation(err)
	}
	return RedemptionPlan{PayA: vaultA, PayB: payB, Shortfall: remaining}, nil
}
