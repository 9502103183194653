package domain

import (
	"time"

	"github.com/google/uuid"
)

// TopupStatus represents the lifecycle state of a top-up request.
type TopupStatus string

const (
	TopupStatusPending TopupStatus = "PENDING"
	TopupStatusSuccess TopupStatus = "SUCCESS"
	TopupStatusFailed  TopupStatus = "FAILED"
)

// TopupRequest is the pending record created when a user initiates an
// external payment. The gateway echoes OrderCode back in its webhook,
// which is the only component allowed to resolve a pending request.
type TopupRequest struct {
	ID          uuid.UUID   `json:"id"`
	WalletID    uuid.UUID   `json:"wallet_id"`
	Amount      Money       `json:"amount"`
	OrderCode   string      `json:"order_code"`
	Status      TopupStatus `json:"status"`
	CheckoutURL string      `json:"checkout_url,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// NewTopupRequest creates a pending top-up bound to a wallet and order code.
func NewTopupRequest(walletID uuid.UUID, amount Money, orderCode string, ttl time.Duration) *TopupRequest {
	now := time.Now().UTC()
	return &TopupRequest{
		ID:        uuid.New(),
		WalletID:  walletID,
		Amount:    amount,
		OrderCode: orderCode,
		Status:    TopupStatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsTerminal returns true if the request reached a final state.
func (r *TopupRequest) IsTerminal() bool {
	return r.Status == TopupStatusSuccess || r.Status == TopupStatusFailed
}
