// cmd/retention-service/handlers.go
package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ufukkilic-eva/cancellation/internal/billing"
	"github.com/ufukkilic-eva/cancellation/internal/cache"
	"github.com/ufukkilic-eva/cancellation/internal/catalog"
	"github.com/ufukkilic-eva/cancellation/internal/confirmation"
	"github.com/ufukkilic-eva/cancellation/internal/database"
	"github.com/ufukkilic-eva/cancellation/internal/events"
	"github.com/ufukkilic-eva/cancellation/internal/funnel"
	"github.com/ufukkilic-eva/cancellation/internal/websocket"
)

// Handler holds dependencies for the catalog, preview, stats and ops
// endpoints
type Handler struct {
	catalog  *catalog.Catalog
	builder  *confirmation.Builder
	outcomes *OutcomeStore
	db       *database.DB
	cache    *cache.Client
	hub      *websocket.Hub
	clock    func() time.Time
	logger   *log.Logger
}

// NewHandler creates a new handler with dependencies
func NewHandler(cat *catalog.Catalog, builder *confirmation.Builder, outcomes *OutcomeStore, db *database.DB, cacheClient *cache.Client, hub *websocket.Hub, clock func() time.Time, logger *log.Logger) *Handler {
	return &Handler{
		catalog:  cat,
		builder:  builder,
		outcomes: outcomes,
		db:       db,
		cache:    cacheClient,
		hub:      hub,
		clock:    clock,
		logger:   logger,
	}
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string, code string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// engineErrorStatus maps engine errors to HTTP status and error code
func engineErrorStatus(err error) (int, string) {
	var selErr *funnel.InvalidSelectionError
	var planErr *catalog.UnknownPlanError

	switch {
	case errors.As(err, &selErr):
		return http.StatusBadRequest, "INVALID_SELECTION"
	case errors.As(err, &planErr):
		// Catalog misses are configuration errors, not user errors.
		return http.StatusInternalServerError, "UNKNOWN_PLAN"
	case errors.Is(err, confirmation.ErrNegativeAmount):
		return http.StatusInternalServerError, "NEGATIVE_AMOUNT"
	}
	return http.StatusBadRequest, "VALIDATION_ERROR"
}

// ============== Plan Handlers ==============

// ListPlans handles GET /plans
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans := h.catalog.List()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"plans": plans,
		"total": len(plans),
	})
}

// GetPlan handles GET /plans/{id}
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	plan, err := h.catalog.Get(catalog.PlanID(id))
	if err != nil {
		respondError(w, http.StatusNotFound, "Plan not found", "PLAN_NOT_FOUND")
		return
	}

	respondJSON(w, http.StatusOK, plan)
}

// ============== Preview Handler ==============

// Preview handles POST /confirmations/preview, the stateless engine
// boundary. Identical requests always produce identical plans.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST")
		return
	}

	f, err := funnel.ParseFunnel(req.Funnel)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), "UNKNOWN_FUNNEL")
		return
	}
	if req.Choice == "" {
		respondError(w, http.StatusBadRequest, ErrMissingChoice.Error(), "VALIDATION_ERROR")
		return
	}

	anchor := h.clock()
	if req.AnchorDate != "" {
		anchor, err = time.Parse(anchorDateLayout, req.AnchorDate)
		if err != nil {
			respondError(w, http.StatusBadRequest, "anchor_date must be YYYY-MM-DD", "VALIDATION_ERROR")
			return
		}
	}

	cycle := billing.NewCycle(anchor, req.IsTrial)
	cycle.ElapsedDays = req.ElapsedDays

	snapshot := funnel.Snapshot{
		Funnel:                f,
		ReimbursementAttached: req.ReimbursementAttached,
		Cycle:                 cycle,
	}
	selection := funnel.Selection{
		Choice:             funnel.Choice(req.Choice),
		KeepReimbursement:  req.KeepReimbursement,
		AlsoConsiderGrowth: req.AlsoConsiderGrowth,
	}

	plan, err := h.builder.ComputeConfirmation(snapshot, selection, h.clock)
	if err != nil {
		status, code := engineErrorStatus(err)
		respondError(w, status, err.Error(), code)
		return
	}

	respondJSON(w, http.StatusOK, plan)
}

// ============== Stats Handler ==============

// GetFunnelStats handles GET /stats/funnels
func (h *Handler) GetFunnelStats(w http.ResponseWriter, r *http.Request) {
	if h.outcomes == nil {
		respondError(w, http.StatusServiceUnavailable, "Outcome analytics requires a database", "STATS_UNAVAILABLE")
		return
	}

	stats, err := h.outcomes.GetFunnelStats(r.Context())
	if err != nil {
		h.logger.Printf("Error getting funnel stats: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to get stats", "INTERNAL_ERROR")
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// ============== Event Intake ==============

// ReceiveEvent handles POST /internal/events: collaborators push events
// here and the hub fans them out to dashboard clients.
func (h *Handler) ReceiveEvent(w http.ResponseWriter, r *http.Request) {
	var event events.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid event payload", "INVALID_REQUEST")
		return
	}
	if event.Type == "" || event.Event == "" {
		respondError(w, http.StatusBadRequest, "Event type and name are required", "VALIDATION_ERROR")
		return
	}

	h.hub.BroadcastEvent(event.Type, event.Event, event.Data)
	respondJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// ============== Health ==============

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	dbStatus := "not configured"
	if h.db != nil {
		dbStatus = "healthy"
		if err := h.db.Ping(); err != nil {
			dbStatus = "unhealthy"
		}
	}

	cacheStatus := "not configured"
	if h.cache != nil {
		cacheStatus = "healthy"
		if err := h.cache.HealthCheck(); err != nil {
			cacheStatus = "unhealthy"
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"service":    "retention-service",
		"status":     "healthy",
		"database":   dbStatus,
		"cache":      cacheStatus,
		"ws_clients": h.hub.ClientCount(),
		"timestamp":  h.clock(),
	})
}
