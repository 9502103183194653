package service

import (
	"context"
	"testing"
	"time"

	"ticket-wallet-service/internal/core/domain"
	"ticket-wallet-service/internal/core/ports/mocks"
	"ticket-wallet-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type resolverTestDeps struct {
	resolver   *Resolver
	walletRepo *mocks.MockWalletRepository
	ledgerRepo *mocks.MockLedgerRepository
	transactor *mocks.MockDBTransactor
	ctrl       *gomock.Controller
}

func setupResolver(t *testing.T, maxAttempts int) *resolverTestDeps {
	ctrl := gomock.NewController(t)
	d := &resolverTestDeps{
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		ledgerRepo: mocks.NewMockLedgerRepository(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		ctrl:       ctrl,
	}
	d.resolver = NewResolver(d.walletRepo, d.ledgerRepo, d.transactor, maxAttempts, 0, zerolog.Nop())
	return d
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func pendingEntry(walletID uuid.UUID, dir domain.EntryDirection, amount domain.Money) *domain.LedgerEntry {
	return domain.NewPendingEntry(walletID, domain.EntryTypeTopup, dir, amount, "test entry")
}

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}

func TestResolver_Resolve_CreditApplied(t *testing.T) {
	d := setupResolver(t, 3)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}

	wallet := &domain.Wallet{
		ID:      walletID,
		Balance: 100000,
		Status:  domain.WalletStatusActive,
		Version: 3,
	}
	entry := pendingEntry(walletID, domain.DirectionIn, 50000)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledgerRepo.EXPECT().GetByIDTx(ctx, tx, entry.ID).Return(entry, nil)
	d.walletRepo.EXPECT().GetByIDTx(ctx, tx, walletID).Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, walletID, domain.Money(150000), int64(3)).Return(true, nil)
	d.ledgerRepo.EXPECT().MarkSuccess(ctx, tx, entry.ID, domain.Money(100000), domain.Money(150000), gomock.Any()).Return(true, nil)

	result, err := d.resolver.Resolve(ctx, entry.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, domain.EntryStatusSuccess, result.Status)
	assert.Equal(t, domain.Money(100000), result.BalanceBefore)
	assert.Equal(t, domain.Money(150000), result.BalanceAfter)
	assert.True(t, result.CheckArithmetic())
	require.NotNil(t, result.CompletedAt)
}

func TestResolver_Resolve_DebitApplied(t *testing.T) {
	d := setupResolver(t, 3)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}

	wallet := &domain.Wallet{ID: walletID, Balance: 100000, Status: domain.WalletStatusActive, Version: 1}
	entry := pendingEntry(walletID, domain.DirectionOut, 60000)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledgerRepo.EXPECT().GetByIDTx(ctx, tx, entry.ID).Return(entry, nil)
	d.walletRepo.EXPECT().GetByIDTx(ctx, tx, walletID).Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, walletID, domain.Money(40000), int64(1)).Return(true, nil)
	d.ledgerRepo.EXPECT().MarkSuccess(ctx, tx, entry.ID, domain.Money(100000), domain.Money(40000), gomock.Any()).Return(true, nil)

	result, err := d.resolver.Resolve(ctx, entry.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(40000), result.BalanceAfter)
}

func TestResolver_Resolve_TerminalEntryIsNoOp(t *testing.T) {
	d := setupResolver(t, 3)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}

	entry := pendingEntry(walletID, domain.DirectionIn, 50000)
	entry.Status = domain.EntryStatusSuccess
	entry.BalanceBefore = 100000
	entry.BalanceAfter = 150000

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledgerRepo.EXPECT().GetByIDTx(ctx, tx, entry.ID).Return(entry, nil)
	// No wallet read, no balance write.

	result, err := d.resolver.Resolve(ctx, entry.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.EntryStatusSuccess, result.Status)
	assert.Equal(t, domain.Money(150000), result.BalanceAfter)
}

func TestResolver_Resolve_InsufficientBalanceFailsEntry(t *testing.T) {
	d := setupResolver(t, 3)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}

	wallet := &domain.Wallet{ID: walletID, Balance: 30000, Status: domain.WalletStatusActive, Version: 1}
	entry := pendingEntry(walletID, domain.DirectionOut, 50000)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledgerRepo.EXPECT().GetByIDTx(ctx, tx, entry.ID).Return(entry, nil)
	d.walletRepo.EXPECT().GetByIDTx(ctx, tx, walletID).Return(wallet, nil)
	// Balance is never written; only the entry is marked FAILED.
	d.ledgerRepo.EXPECT().MarkFailed(ctx, tx, entry.ID, gomock.Any()).Return(true, nil)

	result, err := d.resolver.Resolve(ctx, entry.ID, nil)
	assertAppError(t, err, "WAL_006")
	require.NotNil(t, result)
	assert.Equal(t, domain.EntryStatusFailed, result.Status)
	require.NotNil(t, result.CompletedAt)
}

func TestResolver_Resolve_FrozenWallet(t *testing.T) {
	d := setupResolver(t, 3)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}

	wallet := &domain.Wallet{ID: walletID, Balance: 100000, Status: domain.WalletStatusFrozen, Version: 1}
	entry := pendingEntry(walletID, domain.DirectionIn, 50000)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledgerRepo.EXPECT().GetByIDTx(ctx, tx, entry.ID).Return(entry, nil)
	d.walletRepo.EXPECT().GetByIDTx(ctx, tx, walletID).Return(wallet, nil)

	result, err := d.resolver.Resolve(ctx, entry.ID, nil)
	assert.Nil(t, result)
	assertAppError(t, err, "WAL_002")
}

func TestResolver_Resolve_RetriesLostRace(t *testing.T) {
	d := setupResolver(t, 3)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}

	entry := pendingEntry(walletID, domain.DirectionIn, 50000)

	// Attempt 1: version 1 is stale, CAS loses.
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledgerRepo.EXPECT().GetByIDTx(ctx, tx, entry.ID).Return(entry, nil)
	d.walletRepo.EXPECT().GetByIDTx(ctx, tx, walletID).Return(
		&domain.Wallet{ID: walletID, Balance: 100000, Status: domain.WalletStatusActive, Version: 1}, nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, walletID, domain.Money(150000), int64(1)).Return(false, nil)

	// Attempt 2: fresh read observes the bumped version and balance.
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledgerRepo.EXPECT().GetByIDTx(ctx, tx, entry.ID).Return(entry, nil)
	d.walletRepo.EXPECT().GetByIDTx(ctx, tx, walletID).Return(
		&domain.Wallet{ID: walletID, Balance: 120000, Status: domain.WalletStatusActive, Version: 2}, nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, walletID, domain.Money(170000), int64(2)).Return(true, nil)
	d.ledgerRepo.EXPECT().MarkSuccess(ctx, tx, entry.ID, domain.Money(120000), domain.Money(170000), gomock.Any()).Return(true, nil)

	result, err := d.resolver.Resolve(ctx, entry.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(170000), result.BalanceAfter)
	assert.True(t, result.CheckArithmetic())
}

func TestResolver_Resolve_ConflictAfterMaxAttempts(t *testing.T) {
	d := setupResolver(t, 2)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}

	entry := pendingEntry(walletID, domain.DirectionIn, 50000)
	wallet := &domain.Wallet{ID: walletID, Balance: 100000, Status: domain.WalletStatusActive, Version: 1}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil).Times(2)
	d.ledgerRepo.EXPECT().GetByIDTx(ctx, tx, entry.ID).Return(entry, nil).Times(2)
	d.walletRepo.EXPECT().GetByIDTx(ctx, tx, walletID).Return(wallet, nil).Times(2)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, walletID, domain.Money(150000), int64(1)).Return(false, nil).Times(2)

	result, err := d.resolver.Resolve(ctx, entry.ID, nil)
	assert.Nil(t, result)
	assertAppError(t, err, "WAL_008")
}

func TestResolver_Resolve_EntryNotFound(t *testing.T) {
	d := setupResolver(t, 3)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	entryID := uuid.New()

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledgerRepo.EXPECT().GetByIDTx(ctx, tx, entryID).Return(nil, nil)

	result, err := d.resolver.Resolve(ctx, entryID, nil)
	assert.Nil(t, result)
	assertAppError(t, err, "WAL_001")
}

func TestResolver_Resolve_ExtraRunsBeforeCommit(t *testing.T) {
	d := setupResolver(t, 3)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}

	wallet := &domain.Wallet{ID: walletID, Balance: 0, Status: domain.WalletStatusActive, Version: 1}
	entry := pendingEntry(walletID, domain.DirectionIn, 50000)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledgerRepo.EXPECT().GetByIDTx(ctx, tx, entry.ID).Return(entry, nil)
	d.walletRepo.EXPECT().GetByIDTx(ctx, tx, walletID).Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, walletID, domain.Money(50000), int64(1)).Return(true, nil)
	d.ledgerRepo.EXPECT().MarkSuccess(ctx, tx, entry.ID, domain.Money(0), domain.Money(50000), gomock.Any()).Return(true, nil)

	var extraStatus domain.EntryStatus
	extra := func(_ context.Context, gotTx pgx.Tx, status domain.EntryStatus) error {
		assert.Equal(t, pgx.Tx(tx), gotTx)
		extraStatus = status
		return nil
	}

	_, err := d.resolver.Resolve(ctx, entry.ID, extra)
	require.NoError(t, err)
	assert.Equal(t, domain.EntryStatusSuccess, extraStatus)
}

func TestResolver_Fail_PendingEntry(t *testing.T) {
	d := setupResolver(t, 3)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}

	entry := pendingEntry(walletID, domain.DirectionIn, 50000)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledgerRepo.EXPECT().GetByIDTx(ctx, tx, entry.ID).Return(entry, nil)
	d.ledgerRepo.EXPECT().MarkFailed(ctx, tx, entry.ID, gomock.Any()).Return(true, nil)

	result, err := d.resolver.Fail(ctx, entry.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.EntryStatusFailed, result.Status)
	require.NotNil(t, result.CompletedAt)
}

func TestResolver_Fail_TerminalEntryUnchanged(t *testing.T) {
	d := setupResolver(t, 3)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}

	entry := pendingEntry(walletID, domain.DirectionIn, 50000)
	entry.Status = domain.EntryStatusSuccess
	now := time.Now().UTC()
	entry.CompletedAt = &now

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledgerRepo.EXPECT().GetByIDTx(ctx, tx, entry.ID).Return(entry, nil)

	result, err := d.resolver.Fail(ctx, entry.ID, nil)
	require.NoError(t, err)
	// A success stays a success; Fail never rewrites terminal state.
	assert.Equal(t, domain.EntryStatusSuccess, result.Status)
}
