package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ticket-wallet-service/internal/core/domain"
	"ticket-wallet-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TopupRepo implements ports.TopupRepository.
type TopupRepo struct {
	pool Pool
}

// NewTopupRepo creates a new TopupRepo.
func NewTopupRepo(pool Pool) *TopupRepo {
	return &TopupRepo{pool: pool}
}

const topupColumns = `id, wallet_id, amount, order_code, status, created_at, expires_at, completed_at`

// Create inserts a pending top-up request. A duplicate order code fails
// with apperror.ErrDuplicateReference (unique constraint).
func (r *TopupRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.TopupRequest) error {
	query := `INSERT INTO topup_requests (id, wallet_id, amount, order_code, status, created_at, expires_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.WalletID, t.Amount.Int64(), t.OrderCode, t.Status, t.CreatedAt, t.ExpiresAt, t.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ErrDuplicateReference()
		}
		return fmt.Errorf("insert topup request: %w", err)
	}
	return nil
}

// GetByOrderCode fetches a top-up request by its gateway order code.
func (r *TopupRepo) GetByOrderCode(ctx context.Context, orderCode string) (*domain.TopupRequest, error) {
	query := `SELECT ` + topupColumns + ` FROM topup_requests WHERE order_code = $1`

	t := &domain.TopupRequest{}
	var amount int64
	err := r.pool.QueryRow(ctx, query, orderCode).Scan(
		&t.ID, &t.WalletID, &amount, &t.OrderCode, &t.Status, &t.CreatedAt, &t.ExpiresAt, &t.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get topup by order code: %w", err)
	}
	t.Amount = domain.Money(amount)
	return t, nil
}

// Resolve transitions a PENDING request to a terminal status within a
// transaction. Returns false when the request was no longer pending.
func (r *TopupRepo) Resolve(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TopupStatus, completedAt time.Time) (bool, error) {
	query := `UPDATE topup_requests SET status = $1, completed_at = $2
		WHERE id = $3 AND status = 'PENDING'`

	tag, err := tx.Exec(ctx, query, status, completedAt, id)
	if err != nil {
		return false, fmt.Errorf("resolve topup request: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListExpired returns PENDING requests whose expiry passed before cutoff.
func (r *TopupRepo) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]domain.TopupRequest, error) {
	query := `SELECT ` + topupColumns + ` FROM topup_requests
		WHERE status = 'PENDING' AND expires_at < $1 ORDER BY expires_at LIMIT $2`

	rows, err := r.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired topups: %w", err)
	}
	defer rows.Close()

	var out []domain.TopupRequest
	for rows.Next() {
		t := domain.TopupRequest{}
		var amount int64
		err := rows.Scan(&t.ID, &t.WalletID, &amount, &t.OrderCode, &t.Status, &t.CreatedAt, &t.ExpiresAt, &t.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("scan topup request: %w", err)
		}
		t.Amount = domain.Money(amount)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topup requests: %w", err)
	}
	return out, nil
}
