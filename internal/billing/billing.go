// internal/billing/billing.go
package billing

import (
	"fmt"
	"math"
	"time"
)

// PeriodDays is the billing period policy. Trial periods and paid periods
// share the same length.
const PeriodDays = 30

// Cycle describes where a subscription sits inside its billing period.
// ElapsedDays defaults to zero, which resolves RemainingDays to the full
// period; callers with a real elapsed-time source can inject a partial value.
type Cycle struct {
	Anchor      time.Time `json:"anchor"`
	PeriodDays  int       `json:"period_days"`
	IsTrial     bool      `json:"is_trial"`
	ElapsedDays int       `json:"elapsed_days"`
}

// NewCycle builds a cycle anchored at the given date with the standard
// period length.
func NewCycle(anchor time.Time, isTrial bool) Cycle {
	return Cycle{Anchor: anchor, PeriodDays: PeriodDays, IsTrial: isTrial}
}

// Validate checks the cycle invariants
func (c Cycle) Validate() error {
	if c.PeriodDays <= 0 {
		return fmt.Errorf("period length must be positive, got %d", c.PeriodDays)
	}
	if c.ElapsedDays < 0 || c.ElapsedDays > c.PeriodDays {
		return fmt.Errorf("elapsed days %d outside period of %d days", c.ElapsedDays, c.PeriodDays)
	}
	return nil
}

// PeriodEnd returns the end of the period that starts at anchor. The same
// math covers trial ends and next paid period ends.
func PeriodEnd(anchor time.Time, periodDays int) time.Time {
	return anchor.AddDate(0, 0, periodDays)
}

// End returns the end date of this cycle
func (c Cycle) End() time.Time {
	return PeriodEnd(c.Anchor, c.PeriodDays)
}

// RemainingDays resolves how many days of the period are left
func (c Cycle) RemainingDays() int {
	remaining := c.PeriodDays - c.ElapsedDays
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Prorate computes today's charge for a mid-cycle plan change: the price
// delta, clamped at zero, scaled by the remaining share of the period.
// Downgrades never charge anything today under this rule.
func Prorate(newMonthly, oldMonthly float64, remainingDays, periodDays int) float64 {
	if periodDays <= 0 || remainingDays <= 0 {
		return 0
	}
	delta := newMonthly - oldMonthly
	if delta <= 0 {
		return 0
	}
	return delta * float64(remainingDays) / float64(periodDays)
}

// RoundCents rounds to two decimal places, half-up. Applied at the point
// of producing a line item, not before.
func RoundCents(amount float64) float64 {
	return math.Floor(amount*100+0.5) / 100
}
