package service

import (
	"context"
	"fmt"

	"ticket-wallet-service/internal/core/domain"
	"ticket-wallet-service/internal/core/ports"
	"ticket-wallet-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// WalletServiceImpl implements ports.WalletService: wallet provisioning
// and the read-only surface (balance, history, summary). Reads work on
// frozen wallets.
type WalletServiceImpl struct {
	walletRepo ports.WalletRepository
	ledgerRepo ports.LedgerRepository
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(walletRepo ports.WalletRepository, ledgerRepo ports.LedgerRepository, log zerolog.Logger) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo: walletRepo,
		ledgerRepo: ledgerRepo,
		log:        log,
	}
}

// CreateWallet provisions the single wallet for a user with balance 0.
// Idempotent: an existing wallet is returned unchanged.
func (s *WalletServiceImpl) CreateWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	existing, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if existing != nil {
		return existing, nil
	}

	wallet := domain.NewWallet(userID)
	if err := s.walletRepo.Create(ctx, wallet); err != nil {
		// Concurrent provisioning: the unique user_id constraint lost the
		// race, the winner's wallet is the wallet.
		if again, gerr := s.walletRepo.GetByUserID(ctx, userID); gerr == nil && again != nil {
			return again, nil
		}
		return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("user_id", userID.String()).
		Msg("wallet created")

	return wallet, nil
}

// GetBalance returns the user's wallet, including balance and status.
func (s *WalletServiceImpl) GetBalance(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}

// ListEntries returns a page of the user's ledger history, newest first.
func (s *WalletServiceImpl) ListEntries(ctx context.Context, userID uuid.UUID, q ports.EntryListQuery) ([]domain.LedgerEntry, int64, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, 0, apperror.ErrNotFound("wallet")
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	entries, total, err := s.ledgerRepo.List(ctx, ports.EntryListParams{
		WalletID: wallet.ID,
		Status:   q.Status,
		Type:     q.Type,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list entries: %w", err))
	}
	return entries, total, nil
}

// GetSummary returns aggregated ledger totals for the user's wallet.
func (s *WalletServiceImpl) GetSummary(ctx context.Context, userID uuid.UUID) (*ports.LedgerSummary, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	summary, err := s.ledgerRepo.GetSummary(ctx, wallet.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("ledger summary: %w", err))
	}
	return summary, nil
}
