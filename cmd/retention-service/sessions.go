// cmd/retention-service/sessions.go
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/ufukkilic-eva/cancellation/internal/billing"
	"github.com/ufukkilic-eva/cancellation/internal/confirmation"
	"github.com/ufukkilic-eva/cancellation/internal/funnel"
	"github.com/ufukkilic-eva/cancellation/internal/websocket"
)

// SessionHandler drives funnel sessions through the state machine
type SessionHandler struct {
	store    SessionStore
	builder  *confirmation.Builder
	billing  *BillingClient
	outcomes *OutcomeStore
	hub      *websocket.Hub
	clock    func() time.Time
	logger   *log.Logger
}

// NewSessionHandler creates a session handler with dependencies
func NewSessionHandler(store SessionStore, builder *confirmation.Builder, billingClient *BillingClient, outcomes *OutcomeStore, hub *websocket.Hub, clock func() time.Time, logger *log.Logger) *SessionHandler {
	return &SessionHandler{
		store:    store,
		builder:  builder,
		billing:  billingClient,
		outcomes: outcomes,
		hub:      hub,
		clock:    clock,
		logger:   logger,
	}
}

// CreateSession handles POST /funnels/{funnel}/sessions
func (sh *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)

	f, err := funnel.ParseFunnel(vars["funnel"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), "UNKNOWN_FUNNEL")
		return
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST")
		return
	}

	anchor := sh.clock()
	if req.AnchorDate != "" {
		anchor, err = time.Parse(anchorDateLayout, req.AnchorDate)
		if err != nil {
			respondError(w, http.StatusBadRequest, "anchor_date must be YYYY-MM-DD", "VALIDATION_ERROR")
			return
		}
	}

	cycle := billing.NewCycle(anchor, req.IsTrial)
	cycle.ElapsedDays = req.ElapsedDays
	if err := cycle.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	now := sh.clock()
	session := &Session{
		ID:     uuid.New().String(),
		Funnel: f,
		Snapshot: funnel.Snapshot{
			Funnel:                f,
			ReimbursementAttached: req.ReimbursementAttached,
			Cycle:                 cycle,
		},
		State:     funnel.StateIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := sh.store.Save(ctx, session); err != nil {
		sh.logger.Printf("Error saving session: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to create session", "INTERNAL_ERROR")
		return
	}

	sh.hub.BroadcastEvent(websocket.TypeFunnel, websocket.EventSessionOpened, websocket.FunnelData{
		SessionID: session.ID,
		Funnel:    string(session.Funnel),
		State:     string(session.State),
	})

	sh.logger.Printf("Opened %s funnel session %s (trial=%v)", f, session.ID, req.IsTrial)
	respondJSON(w, http.StatusCreated, SessionResponse{Session: session})
}

// GetSession handles GET /sessions/{id}
func (sh *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := sh.loadSession(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, SessionResponse{Session: session})
}

// Select handles PUT /sessions/{id}/select
func (sh *SessionHandler) Select(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := sh.loadSession(w, r)
	if !ok {
		return
	}

	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST")
		return
	}
	if req.Choice == "" {
		respondError(w, http.StatusBadRequest, ErrMissingChoice.Error(), "VALIDATION_ERROR")
		return
	}

	selection := funnel.Selection{
		Choice:             funnel.Choice(req.Choice),
		KeepReimbursement:  req.KeepReimbursement,
		AlsoConsiderGrowth: req.AlsoConsiderGrowth,
	}

	if err := funnel.Validate(session.Snapshot, selection); err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), "INVALID_SELECTION")
		return
	}

	next, err := funnel.Next(session.State, funnel.EventSelect, funnel.Guards{})
	if err != nil {
		respondError(w, http.StatusConflict, err.Error(), "INVALID_TRANSITION")
		return
	}

	session.State = next
	session.Selection = &selection
	session.Plan = nil
	session.ConfirmationID = ""
	session.UpdatedAt = sh.clock()

	if err := sh.store.Save(ctx, session); err != nil {
		sh.logger.Printf("Error saving session: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to save session", "INTERNAL_ERROR")
		return
	}

	respondJSON(w, http.StatusOK, SessionResponse{Session: session})
}

// Proceed handles POST /sessions/{id}/proceed. A continue selection
// finishes the funnel without ever invoking the engine; everything else
// builds a confirmation plan.
func (sh *SessionHandler) Proceed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := sh.loadSession(w, r)
	if !ok {
		return
	}

	if session.Selection != nil && session.Selection.IsContinue() {
		next, err := funnel.Next(session.State, funnel.EventAbort, funnel.Guards{})
		if err != nil {
			respondError(w, http.StatusConflict, err.Error(), "INVALID_TRANSITION")
			return
		}
		session.State = next
		session.UpdatedAt = sh.clock()
		if err := sh.store.Save(ctx, session); err != nil {
			sh.logger.Printf("Error saving session: %v", err)
			respondError(w, http.StatusInternalServerError, "Failed to save session", "INTERNAL_ERROR")
			return
		}
		sh.logger.Printf("Session %s finished: current plan continues", session.ID)
		respondJSON(w, http.StatusOK, SessionResponse{
			Session: session,
			Message: "Current plan continues unchanged",
		})
		return
	}

	next, err := funnel.Next(session.State, funnel.EventProceed, funnel.Guards{HasSelection: session.Selection != nil})
	if err != nil {
		respondError(w, http.StatusConflict, err.Error(), "INVALID_TRANSITION")
		return
	}

	plan, err := sh.builder.ComputeConfirmation(session.Snapshot, *session.Selection, sh.clock)
	if err != nil {
		status, code := engineErrorStatus(err)
		sh.logger.Printf("Engine rejected session %s: %v", session.ID, err)
		respondError(w, status, err.Error(), code)
		return
	}

	session.State = next
	session.Plan = plan
	session.ConfirmationID = uuid.New().String()
	session.UpdatedAt = sh.clock()

	if err := sh.store.Save(ctx, session); err != nil {
		sh.logger.Printf("Error saving session: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to save session", "INTERNAL_ERROR")
		return
	}

	sh.hub.BroadcastEvent(websocket.TypeFunnel, websocket.EventPlanBuilt, websocket.FunnelData{
		SessionID:  session.ID,
		Funnel:     string(session.Funnel),
		State:      string(session.State),
		Kind:       string(plan.Kind),
		Mode:       string(plan.Mode),
		TotalToday: plan.TotalToday,
	})

	sh.logger.Printf("Built %s/%s confirmation for session %s (total today %.2f)",
		plan.Kind, plan.Mode, session.ID, plan.TotalToday)
	respondJSON(w, http.StatusOK, SessionResponse{Session: session})
}

// Back handles POST /sessions/{id}/back. The built plan is discarded and
// the funnel starts over.
func (sh *SessionHandler) Back(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := sh.loadSession(w, r)
	if !ok {
		return
	}

	next, err := funnel.Next(session.State, funnel.EventBack, funnel.Guards{})
	if err != nil {
		respondError(w, http.StatusConflict, err.Error(), "INVALID_TRANSITION")
		return
	}

	session.State = next
	session.Selection = nil
	session.Plan = nil
	session.ConfirmationID = ""
	session.UpdatedAt = sh.clock()

	if err := sh.store.Save(ctx, session); err != nil {
		sh.logger.Printf("Error saving session: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to save session", "INTERNAL_ERROR")
		return
	}

	respondJSON(w, http.StatusOK, SessionResponse{Session: session})
}

// Confirm handles POST /sessions/{id}/confirm. Confirmation is gated on the
// acknowledgement flag and hands the plan to the billing-mutation service;
// the session only advances once that call succeeds.
func (sh *SessionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := sh.loadSession(w, r)
	if !ok {
		return
	}

	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST")
		return
	}

	next, err := funnel.Next(session.State, funnel.EventConfirm, funnel.Guards{Acknowledged: req.Acknowledged})
	if err != nil {
		respondError(w, http.StatusConflict, err.Error(), "INVALID_TRANSITION")
		return
	}

	applyResp, err := sh.billing.ApplyConfirmation(ctx, &ApplyConfirmationRequest{
		ConfirmationID: session.ConfirmationID,
		SessionID:      session.ID,
		Funnel:         string(session.Funnel),
		Plan:           session.Plan,
	})
	if err != nil {
		sh.logger.Printf("Billing mutation failed for session %s: %v", session.ID, err)
		respondError(w, http.StatusBadGateway, "Failed to apply the change. Please try again.", "BILLING_ERROR")
		return
	}

	session.State = next
	session.MutationID = applyResp.MutationID
	session.UpdatedAt = sh.clock()

	if err := sh.store.Save(ctx, session); err != nil {
		sh.logger.Printf("Error saving session: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to save session", "INTERNAL_ERROR")
		return
	}

	if sh.outcomes != nil {
		outcome := outcomeFromSession(session)
		if err := sh.outcomes.RecordOutcome(ctx, outcome); err != nil {
			// Analytics only; the confirmation already succeeded.
			sh.logger.Printf("Error recording outcome for session %s: %v", session.ID, err)
		}
	}

	sh.hub.BroadcastEvent(websocket.TypeFunnel, websocket.EventConfirmed, websocket.FunnelData{
		SessionID:  session.ID,
		Funnel:     string(session.Funnel),
		State:      string(session.State),
		Kind:       string(session.Plan.Kind),
		Mode:       string(session.Plan.Mode),
		TotalToday: session.Plan.TotalToday,
	})

	sh.logger.Printf("Session %s confirmed: mutation=%s", session.ID, applyResp.MutationID)
	respondJSON(w, http.StatusOK, ConfirmResponse{
		Session:    session,
		MutationID: applyResp.MutationID,
		Message:    "Change confirmed and handed off to billing",
	})
}

// Abort handles POST /sessions/{id}/abort
func (sh *SessionHandler) Abort(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := sh.loadSession(w, r)
	if !ok {
		return
	}

	next, err := funnel.Next(session.State, funnel.EventAbort, funnel.Guards{})
	if err != nil {
		respondError(w, http.StatusConflict, err.Error(), "INVALID_TRANSITION")
		return
	}

	session.State = next
	session.UpdatedAt = sh.clock()

	if err := sh.store.Save(ctx, session); err != nil {
		sh.logger.Printf("Error saving session: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to save session", "INTERNAL_ERROR")
		return
	}

	sh.hub.BroadcastEvent(websocket.TypeFunnel, websocket.EventAborted, websocket.FunnelData{
		SessionID: session.ID,
		Funnel:    string(session.Funnel),
		State:     string(session.State),
	})

	respondJSON(w, http.StatusOK, SessionResponse{Session: session})
}

// loadSession fetches the session from the path id, writing the error
// response itself when the session cannot be served.
func (sh *SessionHandler) loadSession(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := mux.Vars(r)["id"]

	session, err := sh.store.Load(r.Context(), id)
	if err != nil {
		if err == ErrSessionNotFound {
			respondError(w, http.StatusNotFound, "Session not found", "SESSION_NOT_FOUND")
			return nil, false
		}
		sh.logger.Printf("Error loading session %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "Failed to load session", "INTERNAL_ERROR")
		return nil, false
	}
	return session, true
}

func outcomeFromSession(session *Session) *FunnelOutcome {
	return &FunnelOutcome{
		ID:             uuid.New().String(),
		SessionID:      session.ID,
		ConfirmationID: session.ConfirmationID,
		MutationID:     session.MutationID,
		Funnel:         string(session.Funnel),
		Kind:           string(session.Plan.Kind),
		Mode:           string(session.Plan.Mode),
		TotalToday:     session.Plan.TotalToday,
		CreatedAt:      session.UpdatedAt,
	}
}
