// cmd/mock-billing/main.go
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/ufukkilic-eva/cancellation/internal/confirmation"
	"github.com/ufukkilic-eva/cancellation/internal/events"
)

// MockBilling simulates the billing-mutation backend. Mutations are
// idempotent by confirmation ID: replaying an apply returns the
// original mutation instead of charging twice.
type MockBilling struct {
	mu           sync.RWMutex
	isHealthy    bool
	failureRate  float64
	responseTime time.Duration
	mutations    map[string]*Mutation
	stats        BillingStats
	publisher    *events.Publisher
}

type Mutation struct {
	ID             string     `json:"id"`
	ConfirmationID string     `json:"confirmation_id"`
	SessionID      string     `json:"session_id"`
	Funnel         string     `json:"funnel"`
	Kind           string     `json:"kind"`
	Mode           string     `json:"mode"`
	AmountCharged  float64    `json:"amount_charged"`
	FirstChargeAt  *time.Time `json:"first_charge_at,omitempty"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
}

type BillingStats struct {
	TotalRequests   int     `json:"total_requests"`
	Applied         int     `json:"applied"`
	Failed          int     `json:"failed"`
	Replayed        int     `json:"replayed"`
	SuccessRate     float64 `json:"success_rate"`
	TotalCharged    float64 `json:"total_charged"`
	AvgResponseTime int     `json:"avg_response_time_ms"`
}

type ApplyRequest struct {
	ConfirmationID string             `json:"confirmation_id"`
	SessionID      string             `json:"session_id"`
	Funnel         string             `json:"funnel"`
	Plan           *confirmation.Plan `json:"plan"`
}

type ApplyResponse struct {
	Success      bool   `json:"success"`
	MutationID   string `json:"mutation_id,omitempty"`
	Status       string `json:"status,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func NewMockBilling(publisher *events.Publisher) *MockBilling {
	return &MockBilling{
		isHealthy:    true,
		failureRate:  0.05, // 5% failure rate (95% success)
		responseTime: 150 * time.Millisecond,
		mutations:    make(map[string]*Mutation),
		stats: BillingStats{
			AvgResponseTime: 150,
		},
		publisher: publisher,
	}
}

func (b *MockBilling) apply(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	b.mu.Lock()
	b.stats.TotalRequests++
	b.mu.Unlock()

	// Simulate processing time
	time.Sleep(b.responseTime)

	var req ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.ConfirmationID == "" || req.Plan == nil {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	// Idempotent replay: same confirmation ID returns the original result
	b.mu.Lock()
	if existing, ok := b.mutations[req.ConfirmationID]; ok {
		b.stats.Replayed++
		b.mu.Unlock()

		response := ApplyResponse{
			Success:    true,
			MutationID: existing.ID,
			Status:     existing.Status,
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
		return
	}
	healthy := b.isHealthy
	failRate := b.failureRate
	b.mu.Unlock()

	if !healthy {
		b.fail(w, req, "BILLING_UNAVAILABLE", "Billing backend temporarily unavailable", http.StatusServiceUnavailable)
		return
	}

	// Simulate random failures based on failure rate
	if rand.Float64() < failRate {
		errors := []struct {
			code    string
			message string
			status  int
		}{
			{"PAYMENT_DECLINED", "Proration charge declined by issuing bank", http.StatusPaymentRequired},
			{"SUBSCRIPTION_LOCKED", "Subscription is locked by another mutation", http.StatusConflict},
			{"TIMEOUT", "Request timeout", http.StatusRequestTimeout},
		}
		errorType := errors[rand.Intn(len(errors))]
		b.fail(w, req, errorType.code, errorType.message, errorType.status)
		return
	}

	mutation := &Mutation{
		ID:             fmt.Sprintf("mut_%s", uuid.New().String()[:8]),
		ConfirmationID: req.ConfirmationID,
		SessionID:      req.SessionID,
		Funnel:         req.Funnel,
		Kind:           string(req.Plan.Kind),
		Mode:           string(req.Plan.Mode),
		AmountCharged:  req.Plan.TotalToday,
		FirstChargeAt:  req.Plan.FirstChargeDate,
		Status:         "applied",
		CreatedAt:      time.Now(),
	}

	b.mu.Lock()
	b.mutations[req.ConfirmationID] = mutation
	b.stats.Applied++
	b.stats.SuccessRate = float64(b.stats.Applied) / float64(b.stats.Applied+b.stats.Failed) * 100
	b.stats.TotalCharged += mutation.AmountCharged
	b.stats.AvgResponseTime = int(time.Since(start).Milliseconds())
	b.mu.Unlock()

	if b.publisher != nil {
		b.publisher.PublishBillingApplied(events.BillingEventData{
			MutationID:     mutation.ID,
			ConfirmationID: mutation.ConfirmationID,
			SessionID:      mutation.SessionID,
			Kind:           mutation.Kind,
			AmountCharged:  mutation.AmountCharged,
			Status:         mutation.Status,
		})
	}

	response := ApplyResponse{
		Success:    true,
		MutationID: mutation.ID,
		Status:     mutation.Status,
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

func (b *MockBilling) fail(w http.ResponseWriter, req ApplyRequest, code, message string, status int) {
	b.mu.Lock()
	b.stats.Failed++
	if b.stats.Applied+b.stats.Failed > 0 {
		b.stats.SuccessRate = float64(b.stats.Applied) / float64(b.stats.Applied+b.stats.Failed) * 100
	}
	b.mu.Unlock()

	if b.publisher != nil {
		b.publisher.PublishBillingFailed(events.BillingEventData{
			ConfirmationID: req.ConfirmationID,
			SessionID:      req.SessionID,
			Status:         "failed",
			ErrorMessage:   message,
		})
	}

	response := ApplyResponse{
		Success:      false,
		ErrorCode:    code,
		ErrorMessage: message,
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func (b *MockBilling) getMutation(w http.ResponseWriter, r *http.Request) {
	confirmationID := mux.Vars(r)["id"]

	b.mu.RLock()
	mutation, ok := b.mutations[confirmationID]
	b.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "Mutation not found"})
		return
	}
	json.NewEncoder(w).Encode(mutation)
}

// Admin endpoints for testing
func (b *MockBilling) setFailureRate(w http.ResponseWriter, r *http.Request) {
	rateStr := r.URL.Query().Get("rate")
	if rateStr == "" {
		http.Error(w, "Missing rate parameter", http.StatusBadRequest)
		return
	}

	rate, err := strconv.ParseFloat(rateStr, 64)
	if err != nil || rate < 0 || rate > 100 {
		http.Error(w, "Invalid rate (0-100)", http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	b.failureRate = rate / 100
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":      "Failure rate updated",
		"failure_rate": rate,
	})
}

func (b *MockBilling) toggleStatus(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.isHealthy = !b.isHealthy
	status := b.isHealthy
	b.mu.Unlock()

	statusStr := "unhealthy"
	if status {
		statusStr = "healthy"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Billing status toggled",
		"status":  statusStr,
	})
}

func (b *MockBilling) getStats(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	stats := b.stats
	healthy := b.isHealthy
	failRate := b.failureRate
	mutationCount := len(b.mutations)
	b.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"service":      "mock-billing",
		"is_healthy":   healthy,
		"failure_rate": failRate * 100,
		"mutations":    mutationCount,
		"stats":        stats,
		"timestamp":    time.Now(),
	})
}

func (b *MockBilling) health(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	healthy := b.isHealthy
	b.mu.RUnlock()

	status := "healthy"
	statusCode := http.StatusOK
	if !healthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"service":   "mock-billing",
		"status":    status,
		"timestamp": time.Now(),
		"version":   "1.0.0",
	})
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	port := getEnv("PORT", "8104")
	retentionURL := getEnv("RETENTION_SERVICE_URL", "http://localhost:8004")

	publisher := events.NewPublisher(retentionURL)
	billing := NewMockBilling(publisher)

	r := mux.NewRouter()

	// Core billing endpoints
	r.HandleFunc("/billing/apply", billing.apply).Methods("POST")
	r.HandleFunc("/billing/mutations/{id}", billing.getMutation).Methods("GET")

	// Admin endpoints for testing
	r.HandleFunc("/admin/set-failure-rate", billing.setFailureRate).Methods("POST")
	r.HandleFunc("/admin/toggle-status", billing.toggleStatus).Methods("POST")
	r.HandleFunc("/admin/stats", billing.getStats).Methods("GET")

	// Health check
	r.HandleFunc("/health", billing.health).Methods("GET")

	rand.Seed(time.Now().UnixNano())

	log.Printf("Mock Billing starting on port %s", port)
	log.Println("Default settings: 95% success rate, 150ms response time")
	log.Println("Admin endpoints:")
	log.Println("   POST /admin/set-failure-rate?rate=50")
	log.Println("   POST /admin/toggle-status")
	log.Println("   GET /admin/stats")

	log.Fatal(http.ListenAndServe(":"+port, r))
}
