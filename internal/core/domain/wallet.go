package domain

import (
	"time"

	"github.com/google/uuid"
)

// WalletStatus represents the lifecycle state of a wallet.
type WalletStatus string

const (
	WalletStatusActive WalletStatus = "ACTIVE"
	WalletStatusFrozen WalletStatus = "FROZEN"
	WalletStatusClosed WalletStatus = "CLOSED"
)

// Wallet is the per-user money account. Balance is only ever mutated by
// resolving a ledger entry; there is no direct set-balance operation.
// Version is the optimistic-lock token compared at write time.
type Wallet struct {
	ID        uuid.UUID    `json:"id"`
	UserID    uuid.UUID    `json:"user_id"`
	Balance   Money        `json:"balance"`
	Status    WalletStatus `json:"status"`
	Version   int64        `json:"-"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewWallet creates an empty active wallet for a user.
func NewWallet(userID uuid.UUID) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		ID:        uuid.New(),
		UserID:    userID,
		Balance:   0,
		Status:    WalletStatusActive,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsActive reports whether balance-changing operations are allowed.
// Frozen and closed wallets stay readable.
func (w *Wallet) IsActive() bool {
	return w.Status == WalletStatusActive
}
