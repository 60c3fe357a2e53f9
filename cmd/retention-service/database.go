// cmd/retention-service/database.go
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ufukkilic-eva/cancellation/internal/database"
)

// FunnelOutcome is one confirmed funnel pass, recorded for retention
// analytics. Subscription state itself lives with the billing service.
type FunnelOutcome struct {
	ID             string    `json:"id" db:"id"`
	SessionID      string    `json:"session_id" db:"session_id"`
	ConfirmationID string    `json:"confirmation_id" db:"confirmation_id"`
	MutationID     string    `json:"mutation_id" db:"mutation_id"`
	Funnel         string    `json:"funnel" db:"funnel"`
	Kind           string    `json:"kind" db:"kind"`
	Mode           string    `json:"mode" db:"mode"`
	TotalToday     float64   `json:"total_today" db:"total_today"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// FunnelStats aggregates confirmed outcomes
type FunnelStats struct {
	Total             int                `json:"total"`
	ByFunnel          map[string]int     `json:"by_funnel"`
	ByKind            map[string]int     `json:"by_kind"`
	ChargedTodayTotal float64            `json:"charged_today_total"`
	ChargedByFunnel   map[string]float64 `json:"charged_by_funnel"`
}

// OutcomeStore records confirmed outcomes in Postgres
type OutcomeStore struct {
	db *database.DB
}

// NewOutcomeStore creates an outcome store on an existing connection
func NewOutcomeStore(db *database.DB) *OutcomeStore {
	return &OutcomeStore{db: db}
}

// EnsureSchema creates the outcomes table if needed
func (s *OutcomeStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS funnel_outcomes (
			id VARCHAR(64) PRIMARY KEY,
			session_id VARCHAR(64) NOT NULL,
			confirmation_id VARCHAR(64) NOT NULL,
			mutation_id VARCHAR(64),
			funnel VARCHAR(32) NOT NULL,
			kind VARCHAR(16) NOT NULL,
			mode VARCHAR(8) NOT NULL,
			total_today NUMERIC(10,2) NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`

	if _, err := s.db.Conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create funnel_outcomes table: %w", err)
	}
	return nil
}

// RecordOutcome inserts one confirmed outcome
func (s *OutcomeStore) RecordOutcome(ctx context.Context, o *FunnelOutcome) error {
	query := `
		INSERT INTO funnel_outcomes
			(id, session_id, confirmation_id, mutation_id, funnel, kind, mode, total_today, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.Conn.ExecContext(ctx, query,
		o.ID, o.SessionID, o.ConfirmationID, o.MutationID,
		o.Funnel, o.Kind, o.Mode, o.TotalToday, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

// GetFunnelStats aggregates outcomes by funnel and kind
func (s *OutcomeStore) GetFunnelStats(ctx context.Context) (*FunnelStats, error) {
	query := `
		SELECT funnel, kind, COUNT(*), COALESCE(SUM(total_today), 0)
		FROM funnel_outcomes
		GROUP BY funnel, kind`

	rows, err := s.db.Conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query funnel stats: %w", err)
	}
	defer rows.Close()

	stats := &FunnelStats{
		ByFunnel:        make(map[string]int),
		ByKind:          make(map[string]int),
		ChargedByFunnel: make(map[string]float64),
	}

	for rows.Next() {
		var f, kind string
		var count int
		var charged float64

		if err := rows.Scan(&f, &kind, &count, &charged); err != nil {
			return nil, fmt.Errorf("failed to scan funnel stats: %w", err)
		}

		stats.Total += count
		stats.ByFunnel[f] += count
		stats.ByKind[kind] += count
		stats.ChargedTodayTotal += charged
		stats.ChargedByFunnel[f] += charged
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating funnel stats: %w", err)
	}

	return stats, nil
}
