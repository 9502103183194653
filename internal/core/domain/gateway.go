package domain

import (
	"time"

	"github.com/google/uuid"
)

// GatewayEvent is the parsed payload of a payment-gateway webhook.
// Delivery is at-least-once: the same logical event may arrive any
// number of times and must reconcile to the same final state.
type GatewayEvent struct {
	OrderCode    string `json:"order_code"`
	Success      bool   `json:"success"`
	Amount       Money  `json:"amount"`
	GatewayTxnID string `json:"gateway_txn_id"`
	Reason       string `json:"reason,omitempty"`
}

// CheckoutSession is what the gateway returns when a top-up checkout is
// created; the caller redirects the user to CheckoutURL or renders QRCode.
type CheckoutSession struct {
	OrderCode   string `json:"order_code"`
	CheckoutURL string `json:"checkout_url"`
	QRCode      string `json:"qr_code,omitempty"`
}

// WebhookRecord logs one received gateway delivery and how it was handled.
// Append-only; kept for reconciliation audits, never read on the hot path.
type WebhookRecord struct {
	ID         uuid.UUID `json:"id"`
	OrderCode  string    `json:"order_code"`
	Payload    string    `json:"payload"`
	Outcome    string    `json:"outcome"` // APPLIED, REPLAY, FAILED, REJECTED
	ReceivedAt time.Time `json:"received_at"`
}

// Webhook handling outcomes.
const (
	WebhookOutcomeApplied  = "APPLIED"
	WebhookOutcomeReplay   = "REPLAY"
	WebhookOutcomeFailed   = "FAILED"
	WebhookOutcomeRejected = "REJECTED"
)
