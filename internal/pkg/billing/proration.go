package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ProrationResult reports the mid-cycle cost delta of a plan change, in
// minor units. NetDueCents may be negative, meaning a credit is owed.
type ProrationResult struct {
	UnusedCreditCents    int64 `json:"unused_credit_cents"`
	RemainderChargeCents int64 `json:"remainder_charge_cents"`
	NetDueCents          int64 `json:"net_due_cents"`
}

// Prorate computes the unused credit on the old plan and the charge for the
// new plan over the remainder of the current period. All intermediate math
// stays in decimals; rounding half-up happens exactly once per output value
// so repeated plan changes cannot accumulate rounding drift.
func Prorate(oldAmountCents, newAmountCents int64, periodStart, periodEnd, now time.Time) (ProrationResult, error) {
	if oldAmountCents < 0 || newAmountCents < 0 {
		return ProrationResult{}, fmt.Errorf("%w: negative plan amount", ErrValidation)
	}
	if !periodEnd.After(periodStart) {
		return ProrationResult{}, fmt.Errorf("%w: period end must be after period start", ErrValidation)
	}

	periodSeconds := decimal.NewFromFloat(periodEnd.Sub(periodStart).Seconds())
	remaining := periodEnd.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	if remaining > periodEnd.Sub(periodStart) {
		remaining = periodEnd.Sub(periodStart)
	}
	remainingSeconds := decimal.NewFromFloat(remaining.Seconds())
	fraction := remainingSeconds.Div(periodSeconds)

	credit := decimal.NewFromInt(oldAmountCents).Mul(fraction)
	charge := decimal.NewFromInt(newAmountCents).Mul(fraction)
	net := charge.Sub(credit)

	return ProrationResult{
		UnusedCreditCents:    roundHalfUp(credit),
		RemainderChargeCents: roundHalfUp(charge),
		NetDueCents:          roundHalfUp(net),
	}, nil
}

// roundHalfUp rounds to whole cents with half-cent values going toward
// positive infinity, so -50.5 becomes -50. decimal.Round is half away from
// zero and would give -51 there.
func roundHalfUp(d decimal.Decimal) int64 {
	return d.Add(decimal.New(5, -1)).Floor().IntPart()
}
