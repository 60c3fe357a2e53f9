package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ufukkilic-eva/cancellation/internal/cache"
	"github.com/ufukkilic-eva/cancellation/internal/catalog"
	"github.com/ufukkilic-eva/cancellation/internal/config"
	"github.com/ufukkilic-eva/cancellation/internal/confirmation"
	"github.com/ufukkilic-eva/cancellation/internal/database"
	"github.com/ufukkilic-eva/cancellation/internal/logger"
	"github.com/ufukkilic-eva/cancellation/internal/websocket"
)

func main() {
	lg := logger.New("retention-service")
	cfg := config.Load()

	// Plan catalog: file override first, built-in table otherwise
	cat, err := catalog.LoadFile(cfg.PlansConfigPath)
	if err != nil {
		lg.Warn("Using built-in plan catalog", "reason", err)
		cat = catalog.Default()
	} else {
		lg.Info("Loaded plan catalog", "path", cfg.PlansConfigPath)
	}

	builder := confirmation.NewBuilder(cat)
	clock := time.Now

	// Postgres is optional: without it the service runs with outcome
	// analytics disabled.
	var outcomes *OutcomeStore
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		lg.Warn("Failed to connect to database, outcome analytics disabled", "error", err)
		db = nil
	} else {
		defer db.Close()
		outcomes = NewOutcomeStore(db)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := outcomes.EnsureSchema(ctx); err != nil {
			lg.Warn("Failed to ensure outcomes schema, outcome analytics disabled", "error", err)
			outcomes = nil
		}
		cancel()
		lg.Info("Connected to database")
	}

	// Redis is optional too: sessions fall back to process memory.
	var store SessionStore
	cacheClient, err := cache.NewRedisClient(cfg.RedisURL)
	if err != nil {
		lg.Warn("Failed to connect to Redis, using in-memory sessions", "error", err)
		cacheClient = nil
		store = NewMemorySessionStore()
	} else {
		defer cacheClient.Close()
		store = NewRedisSessionStore(cacheClient, cfg.SessionTTL)
	}

	hub := websocket.NewHub(lg.Std())
	go hub.Run()

	billingClient := NewBillingClient(cfg.BillingServiceURL)

	handler := NewHandler(cat, builder, outcomes, db, cacheClient, hub, clock, lg.Std())
	sessionHandler := NewSessionHandler(store, builder, billingClient, outcomes, hub, clock, lg.Std())

	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.Health).Methods("GET")

	// Plans endpoints
	r.HandleFunc("/plans", handler.ListPlans).Methods("GET")
	r.HandleFunc("/plans/{id}", handler.GetPlan).Methods("GET")

	// Stateless engine boundary
	r.HandleFunc("/confirmations/preview", handler.Preview).Methods("POST")

	// Funnel session endpoints
	r.HandleFunc("/funnels/{funnel}/sessions", sessionHandler.CreateSession).Methods("POST")
	r.HandleFunc("/sessions/{id}", sessionHandler.GetSession).Methods("GET")
	r.HandleFunc("/sessions/{id}/select", sessionHandler.Select).Methods("PUT")
	r.HandleFunc("/sessions/{id}/proceed", sessionHandler.Proceed).Methods("POST")
	r.HandleFunc("/sessions/{id}/back", sessionHandler.Back).Methods("POST")
	r.HandleFunc("/sessions/{id}/confirm", sessionHandler.Confirm).Methods("POST")
	r.HandleFunc("/sessions/{id}/abort", sessionHandler.Abort).Methods("POST")

	// Stats endpoint
	r.HandleFunc("/stats/funnels", handler.GetFunnelStats).Methods("GET")

	// Dashboard event feed
	r.HandleFunc("/ws", hub.ServeWs)
	r.HandleFunc("/internal/events", handler.ReceiveEvent).Methods("POST")

	addr := ":" + cfg.Port
	lg.Info("Retention Service starting", "addr", addr, "billing", cfg.BillingServiceURL)
	lg.Fatal("Server stopped", "error", http.ListenAndServe(addr, r))
}
