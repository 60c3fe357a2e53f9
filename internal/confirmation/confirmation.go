// internal/confirmation/confirmation.go
package confirmation

import (
	"time"

	"github.com/ufukkilic-eva/cancellation/internal/funnel"
)

// Mode is the billing mode of a confirmation
type Mode string

const (
	ModePaid  Mode = "paid"
	ModeTrial Mode = "trial"
)

// Narrative identifies one of the six mutually exclusive copy templates
// selected by kind and mode.
type Narrative string

const (
	NarrativeCancelPaid           Narrative = "cancel_paid"
	NarrativeCancelTrial          Narrative = "cancel_trial"
	NarrativeSwitchTrial          Narrative = "switch_trial"
	NarrativeDowngradeTrial       Narrative = "downgrade_trial"
	NarrativeDowngradePaidCharged Narrative = "downgrade_paid_charged"
	NarrativeDowngradePaidFree    Narrative = "downgrade_paid_free"
)

// LineItem is one "charged today" row
type LineItem struct {
	Name        string  `json:"name"`
	Days        int     `json:"days"`
	AmountToday float64 `json:"amount_today"`
}

// Compare is the current-vs-new monthly price block. It is present only for
// platform-plan-to-platform-plan transitions.
type Compare struct {
	FromLabel   string   `json:"from_label"`
	FromMonthly float64  `json:"from_monthly"`
	ToLabel     string   `json:"to_label"`
	ToMonthly   float64  `json:"to_monthly"`
	FromAddons  []string `json:"from_addons,omitempty"`
	ToAddons    []string `json:"to_addons,omitempty"`
}

// Plan is the engine output: what is charged today, what will be charged
// later, and which narrative the presentation layer should render. It is
// produced fresh for each proceed event and never mutated afterwards.
type Plan struct {
	Kind      funnel.ActionKind `json:"kind"`
	Mode      Mode              `json:"mode"`
	Narrative Narrative         `json:"narrative"`
	Message   string            `json:"message"`

	EndDate   time.Time  `json:"end_date"`
	LineItems []LineItem `json:"line_items"`

	// TotalToday is the sum of the line items; the charged-today block is
	// rendered only while it is strictly positive.
	TotalToday          float64 `json:"total_today"`
	ChargedTodayVisible bool    `json:"charged_today_visible"`

	Compare *Compare `json:"compare,omitempty"`

	FirstChargeDate   *time.Time `json:"first_charge_date,omitempty"`
	FirstChargeAmount *float64   `json:"first_charge_amount,omitempty"`

	AuxMessage         string `json:"aux_message,omitempty"`
	PrimaryActionLabel string `json:"primary_action_label"`
}
