// cmd/retention-service/clients.go
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ufukkilic-eva/cancellation/internal/confirmation"
	"github.com/ufukkilic-eva/cancellation/internal/httpclient"
)

// BillingClient talks to the external billing-mutation service. The
// retention service never charges anything itself; it only hands over a
// confirmed plan.
type BillingClient struct {
	client *httpclient.Client
}

// NewBillingClient creates a client for the billing-mutation service
func NewBillingClient(baseURL string) *BillingClient {
	return &BillingClient{
		client: httpclient.NewClient(baseURL, 10*time.Second),
	}
}

// ApplyConfirmationRequest hands a confirmed plan to the billing service.
// ConfirmationID doubles as the idempotency key.
type ApplyConfirmationRequest struct {
	ConfirmationID string             `json:"confirmation_id"`
	SessionID      string             `json:"session_id"`
	Funnel         string             `json:"funnel"`
	Plan           *confirmation.Plan `json:"plan"`
}

// ApplyConfirmationResponse is the billing service's answer
type ApplyConfirmationResponse struct {
	Success      bool   `json:"success"`
	MutationID   string `json:"mutation_id,omitempty"`
	Status       string `json:"status,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// ApplyConfirmation applies a confirmed plan
func (c *BillingClient) ApplyConfirmation(ctx context.Context, req *ApplyConfirmationRequest) (*ApplyConfirmationResponse, error) {
	var resp ApplyConfirmationResponse
	if err := c.client.Post(ctx, "/billing/apply", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("billing mutation rejected: %s (%s)", resp.ErrorMessage, resp.ErrorCode)
	}
	return &resp, nil
}
