package ports

import (
	"context"
	"time"

	"ticket-wallet-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepository defines persistence operations for wallets.
// Balance writes use optimistic concurrency: UpdateBalance compares the
// wallet's version token and reports a conflict instead of blocking.
type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	// GetByIDTx reads a wallet inside an open transaction.
	GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	// UpdateBalance performs the compare-and-swap write:
	// SET balance, version = version+1 WHERE id AND version = expectedVersion.
	// Returns false (and no error) when the version token no longer matches.
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, newBalance domain.Money, expectedVersion int64) (bool, error)
}

// LedgerRepository defines persistence operations for ledger entries.
// Entries are append-mostly: only the PENDING -> terminal transition is a
// write, guarded by status in SQL so a lost race surfaces as zero rows.
type LedgerRepository interface {
	// Create inserts a PENDING entry. A duplicate external_ref must fail
	// with apperror.ErrDuplicateReference (unique constraint, not a
	// check-then-insert).
	Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error)
	GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.LedgerEntry, error)
	GetByExternalRef(ctx context.Context, ref string) (*domain.LedgerEntry, error)
	// MarkSuccess resolves a PENDING entry. Returns false when the entry
	// was no longer pending (no rows updated).
	MarkSuccess(ctx context.Context, tx pgx.Tx, id uuid.UUID, before, after domain.Money, completedAt time.Time) (bool, error)
	// MarkFailed resolves a PENDING entry to FAILED without balance fields.
	MarkFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID, completedAt time.Time) (bool, error)
	CheckRefundExists(ctx context.Context, originalEntryID uuid.UUID) (bool, error)
	List(ctx context.Context, params EntryListParams) ([]domain.LedgerEntry, int64, error)
	GetSummary(ctx context.Context, walletID uuid.UUID) (*LedgerSummary, error)
}

// EntryListParams holds filter + pagination for listing ledger entries.
type EntryListParams struct {
	WalletID uuid.UUID
	Status   *domain.EntryStatus
	Type     *domain.EntryType
	Page     int
	PageSize int
}

// LedgerSummary holds aggregated per-wallet ledger totals.
type LedgerSummary struct {
	TotalEntries int64
	Successful   int64
	Failed       int64
	Pending      int64
	TotalIn      int64 // Sum of successful credited amounts
	TotalOut     int64 // Sum of successful debited amounts
}

// TopupRepository defines persistence for top-up requests.
type TopupRepository interface {
	Create(ctx context.Context, tx pgx.Tx, req *domain.TopupRequest) error
	GetByOrderCode(ctx context.Context, orderCode string) (*domain.TopupRequest, error)
	// Resolve transitions a PENDING request to a terminal status.
	// Returns false when the request was no longer pending.
	Resolve(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TopupStatus, completedAt time.Time) (bool, error)
	// ListExpired returns PENDING requests whose expiry passed before the cutoff.
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]domain.TopupRequest, error)
}

// WebhookRepository records received gateway deliveries (append-only).
type WebhookRepository interface {
	Record(ctx context.Context, rec *domain.WebhookRecord) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
