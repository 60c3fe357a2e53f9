// internal/funnel/funnel.go
package funnel

import (
	"fmt"

	"github.com/ufukkilic-eva/cancellation/internal/billing"
	"github.com/ufukkilic-eva/cancellation/internal/catalog"
)

// Funnel identifies one of the three retention flows, named after the
// customer's current platform composition.
type Funnel string

const (
	FunnelGrowth            Funnel = "growth"
	FunnelScaleAds          Funnel = "scaleads"
	FunnelScaleAdsDedicated Funnel = "scaleads_dedicated"
)

// Choice is the primary selection inside a funnel. The valid set is
// funnel-specific; see Validate.
type Choice string

const (
	ChoiceContinue                 Choice = "continue"
	ChoiceConsiderScaleAds         Choice = "consider_scaleads"
	ChoiceConsiderGrowth           Choice = "consider_growth"
	ChoiceScaleAdsWithoutDedicated Choice = "scaleads_without_dedicated"
	ChoiceNotInterested            Choice = "not_interested"
)

// Snapshot is the customer's current subscription composition. It is a
// read-only input to one engine invocation.
type Snapshot struct {
	Funnel                Funnel        `json:"funnel"`
	ReimbursementAttached bool          `json:"reimbursement_attached"`
	Cycle                 billing.Cycle `json:"cycle"`
}

// Selection is the resolved user intent for one funnel pass: a primary
// choice plus the boolean sub-toggles.
type Selection struct {
	Choice             Choice `json:"choice"`
	KeepReimbursement  bool   `json:"keep_reimbursement"`
	AlsoConsiderGrowth bool   `json:"also_consider_growth"`
}

// IsContinue reports whether the selection keeps the current plan. Continue
// short-circuits: no confirmation is built and the engine is never invoked.
func (s Selection) IsContinue() bool {
	return s.Choice == ChoiceContinue
}

// PlatformComponents returns the active billable platform components for
// the snapshot's composition.
func (s Snapshot) PlatformComponents() []catalog.PlanID {
	switch s.Funnel {
	case FunnelGrowth:
		return []catalog.PlanID{catalog.PlanGrowth}
	case FunnelScaleAds:
		return []catalog.PlanID{catalog.PlanScaleAds}
	case FunnelScaleAdsDedicated:
		return []catalog.PlanID{catalog.PlanScaleAds, catalog.PlanDedicated}
	}
	return nil
}

// InvalidSelectionError reports a selection whose choice does not belong to
// the funnel's closed enumeration, or whose sub-toggle combination falls
// through every resolution rule.
type InvalidSelectionError struct {
	Funnel Funnel
	Choice Choice
	Reason string
}

func (e *InvalidSelectionError) Error() string {
	return fmt.Sprintf("invalid selection %q for funnel %q: %s", e.Choice, e.Funnel, e.Reason)
}

func invalidSelection(f Funnel, c Choice, reason string) error {
	return &InvalidSelectionError{Funnel: f, Choice: c, Reason: reason}
}

// ParseFunnel maps a raw string to a funnel
func ParseFunnel(raw string) (Funnel, error) {
	switch Funnel(raw) {
	case FunnelGrowth, FunnelScaleAds, FunnelScaleAdsDedicated:
		return Funnel(raw), nil
	}
	return "", fmt.Errorf("unknown funnel: %s", raw)
}
