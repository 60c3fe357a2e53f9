// cmd/retention-service/models.go
package main

import (
	"time"

	"github.com/ufukkilic-eva/cancellation/internal/confirmation"
	"github.com/ufukkilic-eva/cancellation/internal/funnel"
)

// Session is one customer's pass through a retention funnel. The engine
// itself stays pure; the session is the only stateful record, held in the
// session store until it reaches a terminal state or expires.
type Session struct {
	ID             string             `json:"id"`
	Funnel         funnel.Funnel      `json:"funnel"`
	Snapshot       funnel.Snapshot    `json:"snapshot"`
	State          funnel.State       `json:"state"`
	Selection      *funnel.Selection  `json:"selection,omitempty"`
	Plan           *confirmation.Plan `json:"plan,omitempty"`
	ConfirmationID string             `json:"confirmation_id,omitempty"`
	MutationID     string             `json:"mutation_id,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// Request/Response structs

// CreateSessionRequest opens a funnel session for a subscription snapshot
type CreateSessionRequest struct {
	IsTrial               bool   `json:"is_trial"`
	ReimbursementAttached bool   `json:"reimbursement_attached"`
	ElapsedDays           int    `json:"elapsed_days,omitempty"`
	AnchorDate            string `json:"anchor_date,omitempty"` // YYYY-MM-DD, defaults to today
}

// SelectRequest records the customer's choice and sub-toggles
type SelectRequest struct {
	Choice             string `json:"choice"`
	KeepReimbursement  bool   `json:"keep_reimbursement"`
	AlsoConsiderGrowth bool   `json:"also_consider_growth"`
}

// ConfirmRequest carries the terms acknowledgement that gates confirm
type ConfirmRequest struct {
	Acknowledged bool `json:"acknowledged"`
}

// PreviewRequest is the stateless engine boundary: a snapshot plus a
// selection, with an optional fixed date for deterministic output.
type PreviewRequest struct {
	Funnel                string `json:"funnel"`
	IsTrial               bool   `json:"is_trial"`
	ReimbursementAttached bool   `json:"reimbursement_attached"`
	ElapsedDays           int    `json:"elapsed_days,omitempty"`
	AnchorDate            string `json:"anchor_date,omitempty"`

	Choice             string `json:"choice"`
	KeepReimbursement  bool   `json:"keep_reimbursement"`
	AlsoConsiderGrowth bool   `json:"also_consider_growth"`
}

// SessionResponse wraps a session with an optional message
type SessionResponse struct {
	Session *Session `json:"session"`
	Message string   `json:"message,omitempty"`
}

// ConfirmResponse reports the billing-mutation handoff
type ConfirmResponse struct {
	Session    *Session `json:"session"`
	MutationID string   `json:"mutation_id,omitempty"`
	Message    string   `json:"message,omitempty"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Custom errors
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

var (
	ErrSessionNotFound = ValidationError{Field: "id", Message: "session not found"}
	ErrMissingChoice   = ValidationError{Field: "choice", Message: "choice is required"}
)

const anchorDateLayout = "2006-01-02"
