// internal/confirmation/builder.go
package confirmation

import (
	"errors"
	"fmt"
	"time"

	"github.com/ufukkilic-eva/cancellation/internal/billing"
	"github.com/ufukkilic-eva/cancellation/internal/catalog"
	"github.com/ufukkilic-eva/cancellation/internal/funnel"
)

const dateLayout = "Jan 02, 2006"

// ErrNegativeAmount signals an internal invariant violation: a computed
// charge went negative before clamping. It should never surface to callers.
var ErrNegativeAmount = errors.New("computed charge is negative")

// Builder assembles confirmation plans against a fixed plan catalog
type Builder struct {
	catalog *catalog.Catalog
}

// NewBuilder creates a builder for the given catalog
func NewBuilder(cat *catalog.Catalog) *Builder {
	return &Builder{catalog: cat}
}

// ComputeConfirmation resolves a funnel selection against a subscription
// snapshot and builds the confirmation plan. It is a pure function of its
// inputs: the wall clock is injected, nothing is mutated, and identical
// inputs always yield identical output.
func (b *Builder) ComputeConfirmation(snap funnel.Snapshot, sel funnel.Selection, clock func() time.Time) (*Plan, error) {
	// Normalize a zero-value cycle before validating: a missing anchor
	// means "today" and a missing period length means the standard one.
	cycle := snap.Cycle
	if cycle.Anchor.IsZero() {
		cycle.Anchor = clock()
	}
	if cycle.PeriodDays == 0 {
		cycle.PeriodDays = billing.PeriodDays
	}
	if err := cycle.Validate(); err != nil {
		return nil, err
	}
	snap.Cycle = cycle

	action, err := funnel.Resolve(snap, sel)
	if err != nil {
		return nil, err
	}

	periodDays := cycle.PeriodDays
	endDate := cycle.End()

	mode := ModePaid
	if snap.Cycle.IsTrial || action.Kind == funnel.ActionSwitch {
		// Switching to ScaleAds always starts with a free month, even from
		// a paid Growth subscription.
		mode = ModeTrial
	}

	plan := &Plan{
		Kind:    action.Kind,
		Mode:    mode,
		EndDate: endDate,
	}

	switch action.Kind {
	case funnel.ActionCancel:
		if err := b.buildCancel(plan, snap, action, periodDays); err != nil {
			return nil, err
		}
	case funnel.ActionDowngrade, funnel.ActionSwitch:
		if err := b.buildChange(plan, snap, action, periodDays, endDate); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unhandled action kind: %s", action.Kind)
	}

	for _, item := range plan.LineItems {
		if item.AmountToday < 0 {
			return nil, fmt.Errorf("line item %q: %w", item.Name, ErrNegativeAmount)
		}
		plan.TotalToday += item.AmountToday
	}
	plan.TotalToday = billing.RoundCents(plan.TotalToday)
	plan.ChargedTodayVisible = plan.TotalToday > 0

	narrative, message, err := b.narrativeFor(plan, action, periodDays)
	if err != nil {
		return nil, err
	}
	plan.Narrative = narrative
	plan.Message = message
	plan.PrimaryActionLabel = actionLabel(action.Kind)

	return plan, nil
}

// buildCancel produces one line item per active billable component; trial
// cancellations keep the same shape with zero amounts.
func (b *Builder) buildCancel(plan *Plan, snap funnel.Snapshot, action funnel.ChangeAction, periodDays int) error {
	trial := plan.Mode == ModeTrial

	for _, id := range action.From {
		p, err := b.catalog.Get(id)
		if err != nil {
			return err
		}

		name := p.DisplayName
		amount := billing.RoundCents(p.Monthly)
		if trial {
			name += " (Trial)"
			amount = 0
		}
		plan.LineItems = append(plan.LineItems, LineItem{
			Name:        name,
			Days:        periodDays,
			AmountToday: amount,
		})
	}

	if action.ReimbursementSurvivesAlone() {
		plan.AuxMessage = fmt.Sprintf(
			"Your FBA Reimbursement service will continue at a %d%% commission rate.",
			action.ReimbursementRate)
	}
	return nil
}

// buildChange produces the single line item for a downgrade or switch plus
// the compare block and, on trial flows, the first real charge.
func (b *Builder) buildChange(plan *Plan, snap funnel.Snapshot, action funnel.ChangeAction, periodDays int, endDate time.Time) error {
	fromMonthly, fromLabel, err := b.compositionPrice(action.From)
	if err != nil {
		return err
	}

	to, err := b.catalog.Get(*action.To)
	if err != nil {
		return err
	}

	if plan.Mode == ModeTrial {
		name := to.DisplayName + " (starts after trial)"
		if action.Kind == funnel.ActionSwitch {
			name = to.DisplayName + " - Free month"
		}
		plan.LineItems = append(plan.LineItems, LineItem{
			Name:        name,
			Days:        periodDays,
			AmountToday: 0,
		})

		firstCharge := billing.RoundCents(to.Monthly)
		first := endDate
		plan.FirstChargeDate = &first
		plan.FirstChargeAmount = &firstCharge
	} else {
		remaining := snap.Cycle.RemainingDays()
		amount := billing.RoundCents(billing.Prorate(to.Monthly, fromMonthly, remaining, periodDays))
		plan.LineItems = append(plan.LineItems, LineItem{
			Name:        fmt.Sprintf("Plan change (difference for next %d days)", remaining),
			Days:        remaining,
			AmountToday: amount,
		})
	}

	compare := &Compare{
		FromLabel:   fromLabel,
		FromMonthly: fromMonthly,
		ToLabel:     to.DisplayName,
		ToMonthly:   to.Monthly,
	}
	if snap.ReimbursementAttached {
		compare.FromAddons = []string{reimbursementLabel(catalog.RateWithPlatform)}
	}
	if action.KeepReimbursement {
		compare.ToAddons = []string{reimbursementLabel(action.ReimbursementRate)}
	}
	plan.Compare = compare

	return nil
}

// compositionPrice sums the monthly prices of the current components and
// derives the label shown on the compare block.
func (b *Builder) compositionPrice(components []catalog.PlanID) (float64, string, error) {
	var total float64
	label := ""
	for _, id := range components {
		p, err := b.catalog.Get(id)
		if err != nil {
			return 0, "", err
		}
		total += p.Monthly
		if label == "" {
			label = p.DisplayName
		} else {
			label += " + " + p.DisplayName
		}
	}
	return total, label, nil
}

// narrativeFor selects exactly one of the six copy templates. Any kind and
// mode pairing outside the matrix is an error, never a fallthrough.
func (b *Builder) narrativeFor(plan *Plan, action funnel.ChangeAction, periodDays int) (Narrative, string, error) {
	end := plan.EndDate.Format(dateLayout)

	switch {
	case plan.Kind == funnel.ActionCancel && plan.Mode == ModePaid:
		msg := fmt.Sprintf(
			"When you cancel, your subscription stays active for %d days from today. You'll be charged one full month now, and your plan will remain active until %s.",
			periodDays, end)
		return NarrativeCancelPaid, msg, nil

	case plan.Kind == funnel.ActionCancel && plan.Mode == ModeTrial:
		msg := fmt.Sprintf(
			"You're on a free period. If you cancel now, you won't be charged. Your trial remains active until %s, after which your subscription will end automatically.",
			end)
		return NarrativeCancelTrial, msg, nil

	case plan.Kind == funnel.ActionSwitch && plan.Mode == ModeTrial:
		msg := fmt.Sprintf(
			"You're moving to %s with a free month. You'll pay $0.00 today. Your free period runs until %s.",
			plan.Compare.ToLabel, end)
		return NarrativeSwitchTrial, msg, nil

	case plan.Kind == funnel.ActionDowngrade && plan.Mode == ModeTrial:
		msg := fmt.Sprintf(
			"You're on a free period now. Your plan will switch to %s when the trial ends on %s. You'll pay $0.00 today.",
			plan.Compare.ToLabel, end)
		return NarrativeDowngradeTrial, msg, nil

	case plan.Kind == funnel.ActionDowngrade && plan.Mode == ModePaid && plan.TotalToday > 0:
		msg := fmt.Sprintf(
			"You're switching plans. Today you'll be charged the difference between the new and current monthly price for the next %d days.",
			snapRemaining(plan))
		return NarrativeDowngradePaidCharged, msg, nil

	case plan.Kind == funnel.ActionDowngrade && plan.Mode == ModePaid:
		msg := "You're switching plans. The new plan is not more expensive than your current one, so there is nothing to pay today."
		return NarrativeDowngradePaidFree, msg, nil
	}

	return "", "", fmt.Errorf("no narrative template for kind %s in mode %s", plan.Kind, plan.Mode)
}

func snapRemaining(plan *Plan) int {
	if len(plan.LineItems) > 0 {
		return plan.LineItems[0].Days
	}
	return billing.PeriodDays
}

func reimbursementLabel(rate int) string {
	return fmt.Sprintf("FBA Reimbursement - %d%% commission", rate)
}

func actionLabel(kind funnel.ActionKind) string {
	switch kind {
	case funnel.ActionCancel:
		return "Cancel my subscription"
	case funnel.ActionSwitch:
		return "Start free month"
	default:
		return "Confirm plan change"
	}
}
