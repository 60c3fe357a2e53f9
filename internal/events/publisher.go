package events

import (
	"context"
	"time"

	"github.com/ufukkilic-eva/cancellation/internal/httpclient"
)

// Publisher sends events to the retention service's WebSocket hub
type Publisher struct {
	client *httpclient.Client
}

// NewPublisher creates a new event publisher targeting the retention
// service's /internal/events intake.
func NewPublisher(retentionURL string) *Publisher {
	return &Publisher{
		client: httpclient.NewClient(retentionURL, 5*time.Second),
	}
}

// Event represents an event to publish
type Event struct {
	Type  string      `json:"type"`
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Publish sends an event to the hub
func (p *Publisher) Publish(ctx context.Context, eventType, eventName string, data interface{}) error {
	return p.client.Post(ctx, "/internal/events", Event{
		Type:  eventType,
		Event: eventName,
		Data:  data,
	}, nil)
}

// PublishAsync sends an event asynchronously (fire and forget)
func (p *Publisher) PublishAsync(eventType, eventName string, data interface{}) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Ignore errors for async publishing
		p.Publish(ctx, eventType, eventName, data)
	}()
}

// Event type constants
const (
	TypeBilling = "billing"
)

// Billing event constants
const (
	BillingApplied = "applied"
	BillingFailed  = "failed"
)

// BillingEventData represents billing-mutation event payload
type BillingEventData struct {
	MutationID     string  `json:"mutation_id"`
	ConfirmationID string  `json:"confirmation_id"`
	SessionID      string  `json:"session_id,omitempty"`
	Kind           string  `json:"kind,omitempty"`
	AmountCharged  float64 `json:"amount_charged"`
	Status         string  `json:"status"`
	ErrorMessage   string  `json:"error_message,omitempty"`
}

// PublishBillingApplied publishes a billing mutation applied event
func (p *Publisher) PublishBillingApplied(data BillingEventData) {
	p.PublishAsync(TypeBilling, BillingApplied, data)
}

// PublishBillingFailed publishes a billing mutation failed event
func (p *Publisher) PublishBillingFailed(data BillingEventData) {
	p.PublishAsync(TypeBilling, BillingFailed, data)
}
