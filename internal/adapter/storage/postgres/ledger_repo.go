package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ticket-wallet-service/internal/core/domain"
	"ticket-wallet-service/internal/core/ports"
	"ticket-wallet-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository. Entries are append-mostly;
// the only update is the guarded PENDING -> terminal transition.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

const entryColumns = `id, wallet_id, entry_type, direction, amount, balance_before, balance_after,
		status, description, external_ref, original_entry_id, created_at, completed_at`

// Create inserts a PENDING entry. The unique index on external_ref is
// the idempotency guarantee: a duplicate reference surfaces as
// apperror.ErrDuplicateReference instead of a second row.
func (r *LedgerRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (id, wallet_id, entry_type, direction, amount, balance_before,
		balance_after, status, description, external_ref, original_entry_id, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.WalletID, e.Type, e.Direction, e.Amount.Int64(), e.BalanceBefore.Int64(),
		e.BalanceAfter.Int64(), e.Status, e.Description, e.ExternalRef, e.OriginalEntryID,
		e.CreatedAt, e.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ErrDuplicateReference()
		}
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// GetByID fetches an entry by UUID.
func (r *LedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE id = $1`
	return scanEntry(r.pool.QueryRow(ctx, query, id))
}

// GetByIDTx fetches an entry inside an open transaction.
func (r *LedgerRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE id = $1`
	return scanEntry(tx.QueryRow(ctx, query, id))
}

// GetByExternalRef fetches an entry by its idempotency reference.
func (r *LedgerRepo) GetByExternalRef(ctx context.Context, ref string) (*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE external_ref = $1`
	return scanEntry(r.pool.QueryRow(ctx, query, ref))
}

// MarkSuccess resolves a PENDING entry, recording the balance window it
// applied to. The status guard makes a lost race visible as zero rows.
func (r *LedgerRepo) MarkSuccess(ctx context.Context, tx pgx.Tx, id uuid.UUID, before, after domain.Money, completedAt time.Time) (bool, error) {
	query := `UPDATE ledger_entries SET status = 'SUCCESS', balance_before = $1, balance_after = $2,
		completed_at = $3 WHERE id = $4 AND status = 'PENDING'`

	tag, err := tx.Exec(ctx, query, before.Int64(), after.Int64(), completedAt, id)
	if err != nil {
		return false, fmt.Errorf("mark entry success: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed resolves a PENDING entry to FAILED. Balance fields stay at
// their creation-time snapshot; the wallet is untouched.
func (r *LedgerRepo) MarkFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID, completedAt time.Time) (bool, error) {
	query := `UPDATE ledger_entries SET status = 'FAILED', completed_at = $1
		WHERE id = $2 AND status = 'PENDING'`

	tag, err := tx.Exec(ctx, query, completedAt, id)
	if err != nil {
		return false, fmt.Errorf("mark entry failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CheckRefundExists checks if a non-failed refund already references the
// original entry.
func (r *LedgerRepo) CheckRefundExists(ctx context.Context, originalEntryID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM ledger_entries
		WHERE original_entry_id = $1 AND entry_type = 'REFUND' AND status != 'FAILED')`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, originalEntryID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check refund exists: %w", err)
	}
	return exists, nil
}

// List fetches entries with filtering and pagination, newest first.
func (r *LedgerRepo) List(ctx context.Context, params ports.EntryListParams) ([]domain.LedgerEntry, int64, error) {
	conditions := []string{"wallet_id = $1"}
	args := []any{params.WalletID}
	argIdx := 2

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.Type != nil {
		conditions = append(conditions, fmt.Sprintf("entry_type = $%d", argIdx))
		args = append(args, *params.Type)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM ledger_entries WHERE ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	listQuery := fmt.Sprintf(`SELECT %s FROM ledger_entries WHERE %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, entryColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanEntryRow(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate ledger entries: %w", err)
	}

	return entries, total, nil
}

// GetSummary returns aggregated totals for one wallet.
func (r *LedgerRepo) GetSummary(ctx context.Context, walletID uuid.UUID) (*ports.LedgerSummary, error) {
	query := `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE status = 'SUCCESS'),
		COUNT(*) FILTER (WHERE status = 'FAILED'),
		COUNT(*) FILTER (WHERE status = 'PENDING'),
		COALESCE(SUM(amount) FILTER (WHERE status = 'SUCCESS' AND direction = 'IN'), 0),
		COALESCE(SUM(amount) FILTER (WHERE status = 'SUCCESS' AND direction = 'OUT'), 0)
		FROM ledger_entries WHERE wallet_id = $1`

	s := &ports.LedgerSummary{}
	err := r.pool.QueryRow(ctx, query, walletID).Scan(
		&s.TotalEntries, &s.Successful, &s.Failed, &s.Pending, &s.TotalIn, &s.TotalOut,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger summary: %w", err)
	}
	return s, nil
}

func scanEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	e, err := scanEntryRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

func scanEntryRow(row pgx.Row) (*domain.LedgerEntry, error) {
	e := &domain.LedgerEntry{}
	var amount, before, after int64
	err := row.Scan(
		&e.ID, &e.WalletID, &e.Type, &e.Direction, &amount, &before, &after,
		&e.Status, &e.Description, &e.ExternalRef, &e.OriginalEntryID,
		&e.CreatedAt, &e.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan ledger entry: %w", err)
	}
	e.Amount = domain.Money(amount)
	e.BalanceBefore = domain.Money(before)
	e.BalanceAfter = domain.Money(after)
	return e, nil
}
