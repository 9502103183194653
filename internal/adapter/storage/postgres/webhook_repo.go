package postgres

import (
	"context"
	"fmt"

	"ticket-wallet-service/internal/core/domain"
)

// WebhookRepo implements ports.WebhookRepository: an append-only log of
// received gateway deliveries, kept for reconciliation audits.
type WebhookRepo struct {
	pool Pool
}

// NewWebhookRepo creates a new WebhookRepo.
func NewWebhookRepo(pool Pool) *WebhookRepo {
	return &WebhookRepo{pool: pool}
}

// Record appends one received delivery.
func (r *WebhookRepo) Record(ctx context.Context, rec *domain.WebhookRecord) error {
	query := `INSERT INTO webhook_events (id, order_code, payload, outcome, received_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query, rec.ID, rec.OrderCode, rec.Payload, rec.Outcome, rec.ReceivedAt)
	if err != nil {
		return fmt.Errorf("insert webhook event: %w", err)
	}
	return nil
}
