package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ticket-wallet-service/internal/core/domain"
	"ticket-wallet-service/internal/core/ports"
	"ticket-wallet-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const replayCacheTTL = 24 * time.Hour

// WebhookServiceImpl implements ports.WebhookService. Gateway delivery
// is at-least-once, so the handler is safe to invoke any number of times
// for the same logical event: replays of resolved order codes return the
// resolved entry without reapplying any balance change.
type WebhookServiceImpl struct {
	ledgerRepo  ports.LedgerRepository
	topupRepo   ports.TopupRepository
	webhookRepo ports.WebhookRepository
	resolver    *Resolver
	sigSvc      ports.SignatureService
	secret      string
	cache       ports.ResponseCache
	log         zerolog.Logger
}

// NewWebhookService creates a new WebhookServiceImpl. secret is the
// shared key the gateway signs webhook bodies with. cache may be nil to
// disable the replay fast path.
func NewWebhookService(
	ledgerRepo ports.LedgerRepository,
	topupRepo ports.TopupRepository,
	webhookRepo ports.WebhookRepository,
	resolver *Resolver,
	sigSvc ports.SignatureService,
	secret string,
	cache ports.ResponseCache,
	log zerolog.Logger,
) *WebhookServiceImpl {
	return &WebhookServiceImpl{
		ledgerRepo:  ledgerRepo,
		topupRepo:   topupRepo,
		webhookRepo: webhookRepo,
		resolver:    resolver,
		sigSvc:      sigSvc,
		secret:      secret,
		cache:       cache,
		log:         log,
	}
}

// HandleGatewayEvent verifies the delivery, locates the pending entry by
// its order code and reconciles it exactly once.
func (s *WebhookServiceImpl) HandleGatewayEvent(ctx context.Context, rawBody []byte, signature string) (*domain.LedgerEntry, error) {
	if !s.sigSvc.Verify(s.secret, string(rawBody), signature) {
		s.log.Warn().Str("signature", signature).Msg("webhook rejected: signature mismatch")
		s.record(ctx, "", rawBody, domain.WebhookOutcomeRejected)
		return nil, apperror.ErrUntrustedWebhook()
	}

	var event domain.GatewayEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return nil, apperror.Validation("malformed webhook payload")
	}
	if event.OrderCode == "" {
		return nil, apperror.Validation("webhook payload missing order_code")
	}

	// Fast path: a previously resolved delivery cached in Redis.
	if cached := s.cachedEntry(ctx, event.OrderCode); cached != nil {
		s.record(ctx, event.OrderCode, rawBody, domain.WebhookOutcomeReplay)
		return cached, nil
	}

	entry, err := s.ledgerRepo.GetByExternalRef(ctx, event.OrderCode)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lookup entry: %w", err))
	}
	if entry == nil {
		return nil, apperror.ErrNotFound("ledger entry")
	}
	if entry.IsTerminal() {
		s.record(ctx, event.OrderCode, rawBody, domain.WebhookOutcomeReplay)
		s.cacheEntry(ctx, event.OrderCode, entry)
		return entry, nil
	}
	if event.Amount != 0 && event.Amount != entry.Amount {
		s.log.Warn().
			Str("order_code", event.OrderCode).
			Int64("event_amount", event.Amount.Int64()).
			Int64("entry_amount", entry.Amount.Int64()).
			Msg("webhook rejected: amount mismatch")
		return nil, apperror.Validation("webhook amount does not match pending entry")
	}

	topup, err := s.topupRepo.GetByOrderCode(ctx, event.OrderCode)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lookup topup: %w", err))
	}

	extra := s.resolveTopup(topup)

	var resolved *domain.LedgerEntry
	if event.Success {
		resolved, err = s.resolver.Resolve(ctx, entry.ID, extra)
		if err != nil {
			return resolved, err
		}
		s.record(ctx, event.OrderCode, rawBody, domain.WebhookOutcomeApplied)
	} else {
		resolved, err = s.resolver.Fail(ctx, entry.ID, extra)
		if err != nil {
			return resolved, err
		}
		s.record(ctx, event.OrderCode, rawBody, domain.WebhookOutcomeFailed)
	}

	s.cacheEntry(ctx, event.OrderCode, resolved)
	return resolved, nil
}

// resolveTopup returns the extra step that resolves the owning top-up
// request in the same transaction as the entry. Nil topup (an order code
// not created by RequestTopup) yields a no-op.
func (s *WebhookServiceImpl) resolveTopup(topup *domain.TopupRequest) ResolveExtra {
	if topup == nil {
		return nil
	}
	return func(ctx context.Context, tx pgx.Tx, status domain.EntryStatus) error {
		topupStatus := domain.TopupStatusFailed
		if status == domain.EntryStatusSuccess {
			topupStatus = domain.TopupStatusSuccess
		}
		_, err := s.topupRepo.Resolve(ctx, tx, topup.ID, topupStatus, time.Now().UTC())
		return err
	}
}

// cachedEntry returns the cached resolved entry for an order code, or nil.
func (s *WebhookServiceImpl) cachedEntry(ctx context.Context, orderCode string) *domain.LedgerEntry {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, orderCode)
	if err != nil {
		s.log.Warn().Err(err).Str("order_code", orderCode).Msg("replay cache read failed, falling through to DB")
		return nil
	}
	if data == nil {
		return nil
	}
	entry := &domain.LedgerEntry{}
	if err := json.Unmarshal(data, entry); err != nil {
		return nil
	}
	return entry
}

// cacheEntry stores the resolved entry for replay short-circuiting (best effort).
func (s *WebhookServiceImpl) cacheEntry(ctx context.Context, orderCode string, entry *domain.LedgerEntry) {
	if s.cache == nil || entry == nil || !entry.IsTerminal() {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, orderCode, data, replayCacheTTL); err != nil {
		s.log.Warn().Err(err).Str("order_code", orderCode).Msg("replay cache write failed")
	}
}

// record appends the delivery to the webhook log (best effort).
func (s *WebhookServiceImpl) record(ctx context.Context, orderCode string, payload []byte, outcome string) {
	if s.webhookRepo == nil {
		return
	}
	rec := &domain.WebhookRecord{
		ID:         uuid.New(),
		OrderCode:  orderCode,
		Payload:    string(payload),
		Outcome:    outcome,
		ReceivedAt: time.Now().UTC(),
	}
	if err := s.webhookRepo.Record(ctx, rec); err != nil {
		s.log.Warn().Err(err).Str("order_code", orderCode).Msg("webhook log write failed")
	}
}
