package service

import (
	"context"
	"fmt"

	"ticket-wallet-service/internal/core/domain"
	"ticket-wallet-service/internal/core/ports"
	"ticket-wallet-service/pkg/apperror"

	"github.com/rs/zerolog"
)

// PaymentServiceImpl implements ports.PaymentService: booking charges
// and compensating refunds against a user wallet.
type PaymentServiceImpl struct {
	walletRepo ports.WalletRepository
	ledgerRepo ports.LedgerRepository
	transactor ports.DBTransactor
	resolver   *Resolver
	log        zerolog.Logger
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(
	walletRepo ports.WalletRepository,
	ledgerRepo ports.LedgerRepository,
	transactor ports.DBTransactor,
	resolver *Resolver,
	log zerolog.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		walletRepo: walletRepo,
		ledgerRepo: ledgerRepo,
		transactor: transactor,
		resolver:   resolver,
		log:        log,
	}
}

// ChargePayment debits the wallet for a booking. The booking reference
// is the idempotency key: replaying a successfully charged reference
// returns the existing entry. The insufficient-balance check happens at
// apply time inside the atomic step, not as a separate preceding read.
func (s *PaymentServiceImpl) ChargePayment(ctx context.Context, req ports.ChargeRequest) (*domain.LedgerEntry, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.BookingRef == "" {
		return nil, apperror.Validation("booking reference is required")
	}

	existing, err := s.ledgerRepo.GetByExternalRef(ctx, req.BookingRef)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("idempotency lookup: %w", err))
	}
	if existing != nil {
		if existing.Type == domain.EntryTypePayment && existing.Status == domain.EntryStatusSuccess {
			return existing, nil
		}
		return nil, apperror.ErrDuplicateReference()
	}

	wallet, err := s.walletRepo.GetByUserID(ctx, req.UserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	if !wallet.IsActive() {
		return nil, apperror.ErrWalletFrozen()
	}

	entry := domain.NewPendingEntry(wallet.ID, domain.EntryTypePayment, domain.DirectionOut, req.Amount, req.Description)
	bookingRef := req.BookingRef
	entry.ExternalRef = &bookingRef
	entry.BalanceBefore = wallet.Balance

	if err := s.createPending(ctx, entry); err != nil {
		return nil, err
	}

	resolved, err := s.resolver.Resolve(ctx, entry.ID, nil)
	if err != nil {
		return resolved, err
	}

	s.log.Info().
		Str("entry_id", resolved.ID.String()).
		Str("booking_ref", req.BookingRef).
		Int64("amount", req.Amount.Int64()).
		Msg("booking charged")

	return resolved, nil
}

// RefundPayment reverses a successful booking charge with a compensating
// REFUND entry. History is never edited; the original entry stays as is.
// One refund per original entry, partial refunds up to the original amount.
func (s *PaymentServiceImpl) RefundPayment(ctx context.Context, req ports.RefundRequest) (*domain.LedgerEntry, error) {
	orig, err := s.ledgerRepo.GetByExternalRef(ctx, req.BookingRef)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find original entry: %w", err))
	}
	if orig == nil {
		return nil, apperror.ErrNotFound("original payment")
	}
	if !orig.IsRefundable() {
		return nil, apperror.ErrRefundNotAllowed()
	}

	refundExists, err := s.ledgerRepo.CheckRefundExists(ctx, orig.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check refund exists: %w", err))
	}
	if refundExists {
		return nil, apperror.ErrDuplicateReference()
	}

	amount := orig.Amount
	if req.Amount != nil {
		if !req.Amount.IsPositive() {
			return nil, apperror.ErrInvalidAmount()
		}
		if *req.Amount > orig.Amount {
			return nil, apperror.ErrRefundAmountExceedsOriginal()
		}
		amount = *req.Amount
	}

	wallet, err := s.walletRepo.GetByID(ctx, orig.WalletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	if wallet.UserID != req.UserID {
		return nil, apperror.ErrNotFound("original payment")
	}
	if !wallet.IsActive() {
		return nil, apperror.ErrWalletFrozen()
	}

	entry := domain.NewPendingEntry(wallet.ID, domain.EntryTypeRefund, domain.DirectionIn, amount, req.Reason)
	refundRef := "REFUND-" + req.BookingRef
	entry.ExternalRef = &refundRef
	entry.OriginalEntryID = &orig.ID
	entry.BalanceBefore = wallet.Balance

	if err := s.createPending(ctx, entry); err != nil {
		return nil, err
	}

	resolved, err := s.resolver.Resolve(ctx, entry.ID, nil)
	if err != nil {
		return resolved, err
	}

	s.log.Info().
		Str("entry_id", resolved.ID.String()).
		Str("original_entry_id", orig.ID.String()).
		Int64("refund_amount", amount.Int64()).
		Msg("booking refunded")

	return resolved, nil
}

// createPending inserts the entry in its own short transaction. The
// unique constraint on external_ref closes the race between the
// idempotency lookup and the insert.
func (s *PaymentServiceImpl) createPending(ctx context.Context, entry *domain.LedgerEntry) error {
	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := s.ledgerRepo.Create(ctx, tx, entry); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit pending entry: %w", err))
	}
	return nil
}
