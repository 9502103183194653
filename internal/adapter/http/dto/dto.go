package dto

import (
	"time"

	"ticket-wallet-service/internal/core/domain"
)

// TopupRequest is the request body for initiating a wallet top-up.
type TopupRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// ChargeRequest is the request body for charging a booking.
type ChargeRequest struct {
	BookingRef  string `json:"booking_ref" binding:"required,max=100"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Description string `json:"description" binding:"max=255"`
}

// RefundRequest is the request body for refunding a booking.
type RefundRequest struct {
	BookingRef string `json:"booking_ref" binding:"required,max=100"`
	Amount     *int64 `json:"amount,omitempty"` // nil = full refund
	Reason     string `json:"reason" binding:"required,max=255"`
}

// WalletBalanceResponse is the response for the balance query.
type WalletBalanceResponse struct {
	WalletID string `json:"wallet_id"`
	Balance  int64  `json:"balance"`
	Status   string `json:"status"`
}

// TopupResponse is the response for a created top-up request.
type TopupResponse struct {
	OrderCode   string `json:"order_code"`
	Amount      int64  `json:"amount"`
	Status      string `json:"status"`
	CheckoutURL string `json:"checkout_url"`
	ExpiresAt   string `json:"expires_at"`
}

// EntryResponse is the response body for one ledger entry.
type EntryResponse struct {
	ID            string  `json:"id"`
	Type          string  `json:"type"`
	Direction     string  `json:"direction"`
	Amount        int64   `json:"amount"`
	BalanceBefore int64   `json:"balance_before"`
	BalanceAfter  int64   `json:"balance_after"`
	Status        string  `json:"status"`
	Description   string  `json:"description,omitempty"`
	ExternalRef   *string `json:"external_ref,omitempty"`
	CreatedAt     string  `json:"created_at"`
	CompletedAt   *string `json:"completed_at,omitempty"`
}

// EntryListResponse wraps a paginated ledger history page.
type EntryListResponse struct {
	Items      []EntryResponse `json:"items"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
}

// SummaryResponse is the response for aggregated wallet totals.
type SummaryResponse struct {
	TotalEntries int64 `json:"total_entries"`
	Successful   int64 `json:"successful"`
	Failed       int64 `json:"failed"`
	Pending      int64 `json:"pending"`
	TotalIn      int64 `json:"total_in"`
	TotalOut     int64 `json:"total_out"`
}

// FromEntry maps a domain ledger entry to its response shape.
func FromEntry(e *domain.LedgerEntry) EntryResponse {
	resp := EntryResponse{
		ID:            e.ID.String(),
		Type:          string(e.Type),
		Direction:     string(e.Direction),
		Amount:        e.Amount.Int64(),
		BalanceBefore: e.BalanceBefore.Int64(),
		BalanceAfter:  e.BalanceAfter.Int64(),
		Status:        string(e.Status),
		Description:   e.Description,
		ExternalRef:   e.ExternalRef,
		CreatedAt:     e.CreatedAt.UTC().Format(time.RFC3339),
	}
	if e.CompletedAt != nil {
		s := e.CompletedAt.UTC().Format(time.RFC3339)
		resp.CompletedAt = &s
	}
	return resp
}

// FromTopup maps a domain top-up request to its response shape.
func FromTopup(t *domain.TopupRequest) TopupResponse {
	return TopupResponse{
		OrderCode:   t.OrderCode,
		Amount:      t.Amount.Int64(),
		Status:      string(t.Status),
		CheckoutURL: t.CheckoutURL,
		ExpiresAt:   t.ExpiresAt.UTC().Format(time.RFC3339),
	}
}
