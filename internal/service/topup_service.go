package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ticket-wallet-service/internal/core/domain"
	"ticket-wallet-service/internal/core/ports"
	"ticket-wallet-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const expiryBatchSize = 100

// TopupServiceImpl implements ports.TopupService.
type TopupServiceImpl struct {
	walletRepo ports.WalletRepository
	ledgerRepo ports.LedgerRepository
	topupRepo  ports.TopupRepository
	transactor ports.DBTransactor
	gateway    ports.GatewayClient
	resolver   *Resolver
	minTopup   domain.Money
	expiry     time.Duration
	log        zerolog.Logger
}

// NewTopupService creates a new TopupServiceImpl. minTopup is the
// server-authoritative minimum top-up amount; expiry is how long a
// pending request stays eligible for webhook resolution.
func NewTopupService(
	walletRepo ports.WalletRepository,
	ledgerRepo ports.LedgerRepository,
	topupRepo ports.TopupRepository,
	transactor ports.DBTransactor,
	gateway ports.GatewayClient,
	resolver *Resolver,
	minTopup domain.Money,
	expiry time.Duration,
	log zerolog.Logger,
) *TopupServiceImpl {
	return &TopupServiceImpl{
		walletRepo: walletRepo,
		ledgerRepo: ledgerRepo,
		topupRepo:  topupRepo,
		transactor: transactor,
		gateway:    gateway,
		resolver:   resolver,
		minTopup:   minTopup,
		expiry:     expiry,
		log:        log,
	}
}

// RequestTopup creates a pending top-up request together with its
// pending TOPUP ledger entry, both carrying the order code the gateway
// echoes back, then asks the gateway for a checkout session. The wallet
// balance is not touched until the webhook resolves the entry.
func (s *TopupServiceImpl) RequestTopup(ctx context.Context, userID uuid.UUID, amount domain.Money) (*domain.TopupRequest, error) {
	if !amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if amount < s.minTopup {
		return nil, apperror.ErrAmountTooSmall(s.minTopup.Int64())
	}

	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	if !wallet.IsActive() {
		return nil, apperror.ErrWalletFrozen()
	}

	orderCode := newOrderCode()
	req := domain.NewTopupRequest(wallet.ID, amount, orderCode, s.expiry)

	entry := domain.NewPendingEntry(wallet.ID, domain.EntryTypeTopup, domain.DirectionIn, amount, "Wallet top-up")
	entry.ExternalRef = &orderCode
	entry.BalanceBefore = wallet.Balance // snapshot, recomputed at apply time

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := s.ledgerRepo.Create(ctx, tx, entry); err != nil {
		return nil, err
	}
	if err := s.topupRepo.Create(ctx, tx, req); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit topup: %w", err))
	}

	session, err := s.gateway.CreateCheckout(ctx, orderCode, amount, "Wallet top-up")
	if err != nil {
		// The pending rows stay behind and expire through the sweep.
		s.log.Error().Err(err).Str("order_code", orderCode).Msg("gateway checkout failed")
		return nil, apperror.ErrGatewayUnavailable(err)
	}
	req.CheckoutURL = session.CheckoutURL

	s.log.Info().
		Str("order_code", orderCode).
		Str("wallet_id", wallet.ID.String()).
		Int64("amount", amount.Int64()).
		Msg("topup requested")

	return req, nil
}

// ExpireStaleTopups fails PENDING top-up requests whose expiry window
// passed, together with their pending ledger entries, so the gateway
// webhook can no longer resolve them. Returns the number expired.
func (s *TopupServiceImpl) ExpireStaleTopups(ctx context.Context) (int, error) {
	stale, err := s.topupRepo.ListExpired(ctx, time.Now().UTC(), expiryBatchSize)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("list expired topups: %w", err))
	}

	expired := 0
	for i := range stale {
		req := stale[i]

		entry, err := s.ledgerRepo.GetByExternalRef(ctx, req.OrderCode)
		if err != nil {
			s.log.Error().Err(err).Str("order_code", req.OrderCode).Msg("expiry: entry lookup failed")
			continue
		}
		if entry == nil {
			s.log.Warn().Str("order_code", req.OrderCode).Msg("expiry: topup has no ledger entry")
			continue
		}

		_, err = s.resolver.Fail(ctx, entry.ID, func(ctx context.Context, tx pgx.Tx, _ domain.EntryStatus) error {
			_, rerr := s.topupRepo.Resolve(ctx, tx, req.ID, domain.TopupStatusFailed, time.Now().UTC())
			return rerr
		})
		if err != nil {
			s.log.Error().Err(err).Str("order_code", req.OrderCode).Msg("expiry: failed to expire topup")
			continue
		}
		expired++
	}

	if expired > 0 {
		s.log.Info().Int("count", expired).Msg("expired stale topup requests")
	}
	return expired, nil
}

// newOrderCode generates the unique reference echoed by the gateway.
func newOrderCode() string {
	return "TKW-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
