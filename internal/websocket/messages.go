package websocket

import (
	"encoding/json"
	"time"
)

// Message types for WebSocket events
const (
	TypeFunnel    = "funnel"
	TypeBilling   = "billing"
	TypeHealth    = "health"
	TypeHeartbeat = "heartbeat"
)

// Funnel events
const (
	EventSessionOpened = "session_opened"
	EventPlanBuilt     = "plan_built"
	EventConfirmed     = "confirmed"
	EventAborted       = "aborted"
)

// Billing events
const (
	EventBillingApplied = "applied"
	EventBillingFailed  = "failed"
)

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	Event     string      `json:"event"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType, event string, data interface{}) *Message {
	return &Message{
		Type:      msgType,
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the message to JSON bytes
func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FunnelData represents funnel event data on the dashboard feed
type FunnelData struct {
	SessionID  string  `json:"session_id"`
	Funnel     string  `json:"funnel"`
	State      string  `json:"state,omitempty"`
	Kind       string  `json:"kind,omitempty"`
	Mode       string  `json:"mode,omitempty"`
	TotalToday float64 `json:"total_today"`
	ToPlan     string  `json:"to_plan,omitempty"`
}

// HeartbeatData represents heartbeat data
type HeartbeatData struct {
	ServerTime  time.Time `json:"server_time"`
	ClientCount int       `json:"client_count"`
}
