package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntryType represents the kind of money movement.
type EntryType string

const (
	EntryTypeTopup    EntryType = "TOPUP"
	EntryTypePayment  EntryType = "PAYMENT"
	EntryTypeRefund   EntryType = "REFUND"
	EntryTypeWithdraw EntryType = "WITHDRAW"
)

// EntryDirection tells whether the amount is credited to or debited from
// the wallet.
type EntryDirection string

const (
	DirectionIn  EntryDirection = "IN"
	DirectionOut EntryDirection = "OUT"
)

// EntryStatus represents the lifecycle state of a ledger entry.
// The only legal transitions are PENDING -> SUCCESS and PENDING -> FAILED.
type EntryStatus string

const (
	EntryStatusPending EntryStatus = "PENDING"
	EntryStatusSuccess EntryStatus = "SUCCESS"
	EntryStatusFailed  EntryStatus = "FAILED"
)

// LedgerEntry is an immutable record of one balance-affecting event.
// Terminal entries are never edited; corrections are modeled as new
// compensating entries (a REFUND entry reversing a PAYMENT entry).
type LedgerEntry struct {
	ID              uuid.UUID      `json:"id"`
	WalletID        uuid.UUID      `json:"wallet_id"`
	Type            EntryType      `json:"type"`
	Direction       EntryDirection `json:"direction"`
	Amount          Money          `json:"amount"`
	BalanceBefore   Money          `json:"balance_before"`
	BalanceAfter    Money          `json:"balance_after"`
	Status          EntryStatus    `json:"status"`
	Description     string         `json:"description"`
	ExternalRef     *string        `json:"external_ref,omitempty"`
	OriginalEntryID *uuid.UUID     `json:"original_entry_id,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}

// NewPendingEntry creates a PENDING ledger entry snapshot. The wallet
// balance is not touched until the entry is resolved.
func NewPendingEntry(walletID uuid.UUID, typ EntryType, dir EntryDirection, amount Money, description string) *LedgerEntry {
	return &LedgerEntry{
		ID:          uuid.New(),
		WalletID:    walletID,
		Type:        typ,
		Direction:   dir,
		Amount:      amount,
		Status:      EntryStatusPending,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
}

// IsTerminal returns true if the entry reached a final state.
func (e *LedgerEntry) IsTerminal() bool {
	return e.Status == EntryStatusSuccess || e.Status == EntryStatusFailed
}

// IsRefundable returns true if this entry can be reversed by a refund.
func (e *LedgerEntry) IsRefundable() bool {
	return e.Type == EntryTypePayment && e.Status == EntryStatusSuccess
}

// AppliedBalance computes the balance that results from applying the
// entry to the given starting balance.
func (e *LedgerEntry) AppliedBalance(before Money) Money {
	if e.Direction == DirectionIn {
		return before.Add(e.Amount)
	}
	return before.Sub(e.Amount)
}

// CheckArithmetic verifies the ledger invariant
// balance_after = balance_before +/- amount for a resolved entry.
func (e *LedgerEntry) CheckArithmetic() bool {
	return e.BalanceAfter == e.AppliedBalance(e.BalanceBefore)
}
