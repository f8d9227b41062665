// Package metrics derives yield and risk figures from a position's stored
// fields. Everything here is pure; the store and aggregators call Apply on
// read so derived numbers are never persisted.
package metrics

import (
	"github.com/shopspring/decimal"

	"github.com/trogers1052/wheel-tracker/internal/models"
)

var daysPerYear = decimal.NewFromInt(365)

// PremiumTotal is premium_per_share * multiplier * contracts.
func PremiumTotal(premiumPerShare decimal.Decimal, multiplier, contracts int) decimal.Decimal {
	return premiumPerShare.
		Mul(decimal.NewFromInt(int64(multiplier))).
		Mul(decimal.NewFromInt(int64(contracts)))
}

// Collateral is strike_price * multiplier * contracts, the capital reserved
// for the position.
func Collateral(strikePrice decimal.Decimal, multiplier, contracts int) decimal.Decimal {
	return strikePrice.
		Mul(decimal.NewFromInt(int64(multiplier))).
		Mul(decimal.NewFromInt(int64(contracts)))
}

// ROCPeriod is premium_total / collateral. Returns nil when collateral is not
// positive; the positive-strike invariant makes that unreachable for stored
// positions, but the calculator never divides by zero regardless.
func ROCPeriod(premiumTotal, collateral decimal.Decimal) *decimal.Decimal {
	if !collateral.IsPositive() {
		return nil
	}
	roc := premiumTotal.Div(collateral)
	return &roc
}

// DTE is the contract duration in days, expiration_date minus open_date.
// Note this is fixed at creation, not a live countdown.
func DTE(openDate, expirationDate models.Date) int {
	return openDate.DaysUntil(expirationDate)
}

// AnnualizedROC is roc_period * (365 / dte). Returns nil when dte is zero: a
// same-day trade has no meaningful annualization.
func AnnualizedROC(rocPeriod *decimal.Decimal, dte int) *decimal.Decimal {
	if rocPeriod == nil || dte == 0 {
		return nil
	}
	annualized := rocPeriod.Mul(daysPerYear).Div(decimal.NewFromInt(int64(dte)))
	return &annualized
}

// Compute derives all six metrics from a position's stored fields.
func Compute(p *models.Position) models.Derived {
	premiumTotal := PremiumTotal(p.PremiumPerShare, p.Multiplier, p.Contracts)
	collateral := Collateral(p.StrikePrice, p.Multiplier, p.Contracts)
	roc := ROCPeriod(premiumTotal, collateral)
	dte := DTE(p.OpenDate, p.ExpirationDate)

	return models.Derived{
		PremiumTotal:  premiumTotal,
		PremiumNet:    premiumTotal.Sub(p.OpenFees).Sub(p.CloseFees),
		Collateral:    collateral,
		ROCPeriod:     roc,
		DTE:           dte,
		AnnualizedROC: AnnualizedROC(roc, dte),
	}
}

// Apply attaches the derived metrics to p in place.
func Apply(p *models.Position) {
	p.Derived = Compute(p)
}
