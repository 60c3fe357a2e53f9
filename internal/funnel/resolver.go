// internal/funnel/resolver.go
package funnel

import "github.com/ufukkilic-eva/cancellation/internal/catalog"

// ActionKind is the canonical change category a selection resolves to
type ActionKind string

const (
	ActionCancel    ActionKind = "cancel"
	ActionDowngrade ActionKind = "downgrade"
	ActionSwitch    ActionKind = "switch"
)

// ChangeAction is the canonical outcome of resolving a selection: what the
// customer moves away from, what (if anything) they move to, and whether
// the reimbursement add-on survives the change.
type ChangeAction struct {
	Kind ActionKind
	From []catalog.PlanID

	// To is nil when no platform plan remains; the confirmation builder
	// suppresses the compare block in that case.
	To *catalog.PlanID

	KeepReimbursement bool

	// ReimbursementRate is set only when the reimbursement add-on survives
	ReimbursementRate int
}

// PlatformRemains reports whether any platform plan stays active after
// the change.
func (a ChangeAction) PlatformRemains() bool {
	return a.To != nil
}

// ReimbursementSurvivesAlone reports the standalone-reimbursement outcome:
// the platform plan is gone but the add-on continues.
func (a ChangeAction) ReimbursementSurvivesAlone() bool {
	return a.KeepReimbursement && a.To == nil
}

func planRef(id catalog.PlanID) *catalog.PlanID {
	return &id
}

// Resolve maps a funnel selection to a canonical change action. Rules apply
// top to bottom; any combination that falls through is rejected rather than
// defaulted. Continue selections never reach this function (see
// Selection.IsContinue) and are rejected here as well.
func Resolve(snap Snapshot, sel Selection) (ChangeAction, error) {
	if err := Validate(snap, sel); err != nil {
		return ChangeAction{}, err
	}
	if sel.IsContinue() {
		// Continue never builds a confirmation; callers must short-circuit.
		return ChangeAction{}, invalidSelection(snap.Funnel, sel.Choice, "continue selections do not produce a confirmation")
	}

	from := snap.PlatformComponents()
	keep := sel.KeepReimbursement && snap.ReimbursementAttached

	switch sel.Choice {
	case ChoiceConsiderScaleAds:
		// The only richer-upgrade-with-free-period offer in any funnel.
		action := ChangeAction{
			Kind:              ActionSwitch,
			From:              from,
			To:                planRef(catalog.PlanScaleAds),
			KeepReimbursement: keep,
		}
		if keep {
			action.ReimbursementRate = catalog.ReimbursementRate(true)
		}
		return action, nil

	case ChoiceConsiderGrowth:
		action := ChangeAction{
			Kind:              ActionDowngrade,
			From:              from,
			To:                planRef(catalog.PlanGrowth),
			KeepReimbursement: keep,
		}
		if keep {
			action.ReimbursementRate = catalog.ReimbursementRate(true)
		}
		return action, nil

	case ChoiceScaleAdsWithoutDedicated:
		action := ChangeAction{
			Kind:              ActionDowngrade,
			From:              from,
			To:                planRef(catalog.PlanScaleAds),
			KeepReimbursement: keep,
		}
		if keep {
			action.ReimbursementRate = catalog.ReimbursementRate(true)
		}
		return action, nil

	case ChoiceNotInterested:
		// Sub-toggles reinterpret "not interested" before it becomes a
		// full cancellation.
		if sel.AlsoConsiderGrowth {
			action := ChangeAction{
				Kind:              ActionDowngrade,
				From:              from,
				To:                planRef(catalog.PlanGrowth),
				KeepReimbursement: keep,
			}
			if keep {
				action.ReimbursementRate = catalog.ReimbursementRate(true)
			}
			return action, nil
		}
		if keep {
			// Platform plan goes away, reimbursement survives alone.
			return ChangeAction{
				Kind:              ActionCancel,
				From:              from,
				KeepReimbursement: true,
				ReimbursementRate: catalog.ReimbursementRate(false),
			}, nil
		}
		return ChangeAction{Kind: ActionCancel, From: from}, nil
	}

	return ChangeAction{}, invalidSelection(snap.Funnel, sel.Choice, "no resolution rule matched")
}

// Validate enforces the closed choice enumeration per funnel and rejects
// sub-toggle combinations that have no meaning for the snapshot. A continue
// selection is valid on a trial cycle even though it resolves to nothing.
func Validate(snap Snapshot, sel Selection) error {
	allowed, ok := funnelChoices[snap.Funnel]
	if !ok {
		return invalidSelection(snap.Funnel, sel.Choice, "unknown funnel")
	}
	if !allowed[sel.Choice] {
		return invalidSelection(snap.Funnel, sel.Choice, "choice not offered by this funnel")
	}

	if sel.Choice == ChoiceContinue && !snap.Cycle.IsTrial {
		return invalidSelection(snap.Funnel, sel.Choice, "continue is a trial-only choice")
	}

	if sel.AlsoConsiderGrowth {
		if sel.Choice != ChoiceNotInterested {
			return invalidSelection(snap.Funnel, sel.Choice, "consider-growth toggle applies to not-interested only")
		}
		if snap.Funnel == FunnelGrowth {
			return invalidSelection(snap.Funnel, sel.Choice, "already on the Growth Plan")
		}
	}

	if sel.KeepReimbursement && !snap.ReimbursementAttached {
		return invalidSelection(snap.Funnel, sel.Choice, "no reimbursement add-on to keep")
	}

	return nil
}

var funnelChoices = map[Funnel]map[Choice]bool{
	FunnelGrowth: {
		ChoiceConsiderScaleAds: true,
		ChoiceNotInterested:    true,
	},
	FunnelScaleAds: {
		ChoiceContinue:       true,
		ChoiceConsiderGrowth: true,
		ChoiceNotInterested:  true,
	},
	FunnelScaleAdsDedicated: {
		ChoiceContinue:                 true,
		ChoiceScaleAdsWithoutDedicated: true,
		ChoiceNotInterested:            true,
	},
}
