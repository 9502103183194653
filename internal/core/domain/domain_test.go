package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney_Arithmetic(t *testing.T) {
	assert.Equal(t, Money(150000), Money(100000).Add(50000))
	assert.Equal(t, Money(50000), Money(100000).Sub(50000))
	assert.Equal(t, Money(-20000), Money(30000).Sub(50000))
}

func TestMoney_Predicates(t *testing.T) {
	tests := []struct {
		name     string
		amount   Money
		positive bool
		negative bool
	}{
		{"positive", 100, true, false},
		{"zero", 0, false, false},
		{"negative", -100, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.positive, tt.amount.IsPositive())
			assert.Equal(t, tt.negative, tt.amount.IsNegative())
		})
	}
}

func TestMoney_String(t *testing.T) {
	assert.Equal(t, "50000", Money(50000).String())
	assert.Equal(t, "-1", Money(-1).String())
}

func TestWallet_IsActive(t *testing.T) {
	tests := []struct {
		name   string
		status WalletStatus
		want   bool
	}{
		{"active", WalletStatusActive, true},
		{"frozen", WalletStatusFrozen, false},
		{"closed", WalletStatusClosed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &Wallet{Status: tt.status}
			assert.Equal(t, tt.want, w.IsActive())
		})
	}
}

func TestNewWallet(t *testing.T) {
	userID := uuid.New()
	w := NewWallet(userID)

	assert.Equal(t, userID, w.UserID)
	assert.Equal(t, Money(0), w.Balance)
	assert.Equal(t, WalletStatusActive, w.Status)
	assert.Equal(t, int64(1), w.Version)
}

func TestLedgerEntry_IsTerminal(t *testing.T) {
	tests := []struct {
		name   string
		status EntryStatus
		want   bool
	}{
		{"pending", EntryStatusPending, false},
		{"success", EntryStatusSuccess, true},
		{"failed", EntryStatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &LedgerEntry{Status: tt.status}
			assert.Equal(t, tt.want, e.IsTerminal())
		})
	}
}

func TestLedgerEntry_IsRefundable(t *testing.T) {
	tests := []struct {
		name   string
		typ    EntryType
		status EntryStatus
		want   bool
	}{
		{"successful payment", EntryTypePayment, EntryStatusSuccess, true},
		{"failed payment", EntryTypePayment, EntryStatusFailed, false},
		{"pending payment", EntryTypePayment, EntryStatusPending, false},
		{"successful topup", EntryTypeTopup, EntryStatusSuccess, false},
		{"successful refund", EntryTypeRefund, EntryStatusSuccess, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &LedgerEntry{Type: tt.typ, Status: tt.status}
			assert.Equal(t, tt.want, e.IsRefundable())
		})
	}
}

func TestLedgerEntry_AppliedBalance(t *testing.T) {
	credit := &LedgerEntry{Direction: DirectionIn, Amount: 50000}
	assert.Equal(t, Money(150000), credit.AppliedBalance(100000))

	debit := &LedgerEntry{Direction: DirectionOut, Amount: 50000}
	assert.Equal(t, Money(50000), debit.AppliedBalance(100000))

	// A debit larger than the balance yields a negative result; the
	// caller must reject it before writing.
	overdraft := &LedgerEntry{Direction: DirectionOut, Amount: 200000}
	assert.True(t, overdraft.AppliedBalance(100000).IsNegative())
}

func TestLedgerEntry_CheckArithmetic(t *testing.T) {
	ok := &LedgerEntry{
		Direction:     DirectionIn,
		Amount:        50000,
		BalanceBefore: 100000,
		BalanceAfter:  150000,
	}
	assert.True(t, ok.CheckArithmetic())

	bad := &LedgerEntry{
		Direction:     DirectionOut,
		Amount:        50000,
		BalanceBefore: 100000,
		BalanceAfter:  60000,
	}
	assert.False(t, bad.CheckArithmetic())
}

func TestNewPendingEntry(t *testing.T) {
	walletID := uuid.New()
	e := NewPendingEntry(walletID, EntryTypeTopup, DirectionIn, 50000, "wallet top-up")

	require.NotEqual(t, uuid.Nil, e.ID)
	assert.Equal(t, walletID, e.WalletID)
	assert.Equal(t, EntryTypeTopup, e.Type)
	assert.Equal(t, DirectionIn, e.Direction)
	assert.Equal(t, Money(50000), e.Amount)
	assert.Equal(t, EntryStatusPending, e.Status)
	assert.Nil(t, e.CompletedAt)
}

func TestNewTopupRequest(t *testing.T) {
	walletID := uuid.New()
	r := NewTopupRequest(walletID, 100000, "TKW-ABC123", 15*time.Minute)

	require.NotEqual(t, uuid.Nil, r.ID)
	assert.Equal(t, walletID, r.WalletID)
	assert.Equal(t, Money(100000), r.Amount)
	assert.Equal(t, "TKW-ABC123", r.OrderCode)
	assert.Equal(t, TopupStatusPending, r.Status)
	assert.False(t, r.IsTerminal())
	assert.WithinDuration(t, r.CreatedAt.Add(15*time.Minute), r.ExpiresAt, time.Second)
}

func TestTopupRequest_IsTerminal(t *testing.T) {
	tests := []struct {
		name   string
		status TopupStatus
		want   bool
	}{
		{"pending", TopupStatusPending, false},
		{"success", TopupStatusSuccess, true},
		{"failed", TopupStatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &TopupRequest{Status: tt.status}
			assert.Equal(t, tt.want, r.IsTerminal())
		})
	}
}
