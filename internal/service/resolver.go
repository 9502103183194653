package service

import (
	"context"
	"fmt"
	"time"

	"ticket-wallet-service/internal/core/domain"
	"ticket-wallet-service/internal/core/ports"
	"ticket-wallet-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ResolveExtra runs additional writes inside the same database
// transaction as the apply step, after the entry reached its terminal
// status but before commit. Used to resolve the owning top-up request
// together with its ledger entry.
type ResolveExtra func(ctx context.Context, tx pgx.Tx, status domain.EntryStatus) error

// Resolver is the single place that mutates wallet balances. It applies
// a PENDING ledger entry as one atomic unit: re-read wallet, compute the
// new balance, compare-and-swap on the wallet version, mark the entry
// terminal, commit. A lost CAS means a concurrent writer got there
// first, so the whole step is retried from a fresh read.
type Resolver struct {
	walletRepo  ports.WalletRepository
	ledgerRepo  ports.LedgerRepository
	transactor  ports.DBTransactor
	maxAttempts int
	retryDelay  time.Duration
	log         zerolog.Logger
}

// NewResolver creates a Resolver. maxAttempts bounds the CAS retry loop;
// retryDelay is slept between attempts.
func NewResolver(
	walletRepo ports.WalletRepository,
	ledgerRepo ports.LedgerRepository,
	transactor ports.DBTransactor,
	maxAttempts int,
	retryDelay time.Duration,
	log zerolog.Logger,
) *Resolver {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Resolver{
		walletRepo:  walletRepo,
		ledgerRepo:  ledgerRepo,
		transactor:  transactor,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		log:         log,
	}
}

// Resolve applies the entry's balance change exactly once. Replays (the
// entry is already terminal) return the resolved entry with no mutation.
// A debit that would drive the balance negative marks the entry FAILED,
// leaves the balance untouched and returns the failed entry together
// with ErrInsufficientBalance. The negative-balance check runs inside
// the same transaction as the write, never as a separate preceding read.
func (r *Resolver) Resolve(ctx context.Context, entryID uuid.UUID, extra ResolveExtra) (*domain.LedgerEntry, error) {
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, apperror.InternalError(err)
		}

		entry, retry, err := r.tryApply(ctx, entryID, extra)
		if err != nil || !retry {
			return entry, err
		}

		r.log.Debug().
			Str("entry_id", entryID.String()).
			Int("attempt", attempt).
			Msg("wallet version conflict, retrying apply")

		if attempt < r.maxAttempts && r.retryDelay > 0 {
			time.Sleep(r.retryDelay)
		}
	}

	return nil, apperror.ErrConcurrentUpdateConflict()
}

// tryApply performs one attempt. retry=true signals a lost CAS race that
// the caller should retry from a fresh read.
func (r *Resolver) tryApply(ctx context.Context, entryID uuid.UUID, extra ResolveExtra) (entry *domain.LedgerEntry, retry bool, err error) {
	tx, err := r.transactor.Begin(ctx)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	entry, err = r.ledgerRepo.GetByIDTx(ctx, tx, entryID)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("read entry: %w", err))
	}
	if entry == nil {
		return nil, false, apperror.ErrNotFound("ledger entry")
	}
	// Replay-safe: a terminal entry is returned as-is, nothing reapplied.
	if entry.IsTerminal() {
		return entry, false, nil
	}

	wallet, err := r.walletRepo.GetByIDTx(ctx, tx, entry.WalletID)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("read wallet: %w", err))
	}
	if wallet == nil {
		return nil, false, apperror.ErrNotFound("wallet")
	}
	if !wallet.IsActive() {
		return nil, false, apperror.ErrWalletFrozen()
	}

	now := time.Now().UTC()
	after := entry.AppliedBalance(wallet.Balance)

	if after.IsNegative() {
		return r.failInsufficient(ctx, tx, entry, extra, now)
	}

	swapped, err := r.walletRepo.UpdateBalance(ctx, tx, wallet.ID, after, wallet.Version)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}
	if !swapped {
		// Concurrent writer bumped the version; start over.
		return nil, true, nil
	}

	marked, err := r.ledgerRepo.MarkSuccess(ctx, tx, entry.ID, wallet.Balance, after, now)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("mark entry success: %w", err))
	}
	if !marked {
		// The entry turned terminal under us. Rolling back undoes the
		// balance write; the next attempt returns the terminal state.
		return nil, true, nil
	}

	if extra != nil {
		if err := extra(ctx, tx, domain.EntryStatusSuccess); err != nil {
			return nil, false, apperror.InternalError(fmt.Errorf("resolve linked records: %w", err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("commit apply: %w", err))
	}

	entry.Status = domain.EntryStatusSuccess
	entry.BalanceBefore = wallet.Balance
	entry.BalanceAfter = after
	entry.CompletedAt = &now

	r.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("wallet_id", wallet.ID.String()).
		Str("type", string(entry.Type)).
		Int64("amount", entry.Amount.Int64()).
		Int64("balance_after", after.Int64()).
		Msg("ledger entry applied")

	return entry, false, nil
}

// failInsufficient marks a debit entry FAILED because it would drive the
// balance below zero. The wallet row is not written.
func (r *Resolver) failInsufficient(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry, extra ResolveExtra, now time.Time) (*domain.LedgerEntry, bool, error) {
	marked, err := r.ledgerRepo.MarkFailed(ctx, tx, entry.ID, now)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("mark entry failed: %w", err))
	}
	if !marked {
		return nil, true, nil
	}
	if extra != nil {
		if err := extra(ctx, tx, domain.EntryStatusFailed); err != nil {
			return nil, false, apperror.InternalError(fmt.Errorf("resolve linked records: %w", err))
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("commit failed entry: %w", err))
	}

	entry.Status = domain.EntryStatusFailed
	entry.CompletedAt = &now

	r.log.Warn().
		Str("entry_id", entry.ID.String()).
		Str("wallet_id", entry.WalletID.String()).
		Int64("amount", entry.Amount.Int64()).
		Msg("debit rejected, would drive balance negative")

	return entry, false, apperror.ErrInsufficientBalance()
}

// Fail resolves a PENDING entry to FAILED without touching the wallet
// balance (gateway reported failure, or the top-up expired). Terminal
// entries are returned unchanged.
func (r *Resolver) Fail(ctx context.Context, entryID uuid.UUID, extra ResolveExtra) (*domain.LedgerEntry, error) {
	tx, err := r.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	entry, err := r.ledgerRepo.GetByIDTx(ctx, tx, entryID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("read entry: %w", err))
	}
	if entry == nil {
		return nil, apperror.ErrNotFound("ledger entry")
	}
	if entry.IsTerminal() {
		return entry, nil
	}

	now := time.Now().UTC()
	marked, err := r.ledgerRepo.MarkFailed(ctx, tx, entry.ID, now)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark entry failed: %w", err))
	}
	if !marked {
		return nil, apperror.ErrInvalidStateTransition()
	}

	if extra != nil {
		if err := extra(ctx, tx, domain.EntryStatusFailed); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("resolve linked records: %w", err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit failed entry: %w", err))
	}

	entry.Status = domain.EntryStatusFailed
	entry.CompletedAt = &now
	return entry, nil
}
