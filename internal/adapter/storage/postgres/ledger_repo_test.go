package postgres

import (
	"context"
	"testing"
	"time"

	"ticket-wallet-service/internal/core/domain"
	"ticket-wallet-service/internal/core/ports"
	"ticket-wallet-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEntry(walletID uuid.UUID) *domain.LedgerEntry {
	ref := "TKW-20260829-abc123"
	return &domain.LedgerEntry{
		ID:            uuid.New(),
		WalletID:      walletID,
		Type:          domain.EntryTypeTopup,
		Direction:     domain.DirectionIn,
		Amount:        50000,
		BalanceBefore: 100000,
		BalanceAfter:  100000,
		Status:        domain.EntryStatusPending,
		Description:   "Wallet top-up",
		ExternalRef:   &ref,
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
}

func entryTestColumns() []string {
	return []string{
		"id", "wallet_id", "entry_type", "direction", "amount", "balance_before",
		"balance_after", "status", "description", "external_ref", "original_entry_id",
		"created_at", "completed_at",
	}
}

func entryRow(e *domain.LedgerEntry) *pgxmock.Rows {
	return pgxmock.NewRows(entryTestColumns()).AddRow(
		e.ID, e.WalletID, e.Type, e.Direction, e.Amount.Int64(), e.BalanceBefore.Int64(),
		e.BalanceAfter.Int64(), e.Status, e.Description, e.ExternalRef, e.OriginalEntryID,
		e.CreatedAt, e.CompletedAt,
	)
}

func TestLedgerRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := newTestEntry(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(e.ID, e.WalletID, e.Type, e.Direction, e.Amount.Int64(), e.BalanceBefore.Int64(),
			e.BalanceAfter.Int64(), e.Status, e.Description, e.ExternalRef, e.OriginalEntryID,
			e.CreatedAt, e.CompletedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, e)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_Create_DuplicateReference(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := newTestEntry(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(e.ID, e.WalletID, e.Type, e.Direction, e.Amount.Int64(), e.BalanceBefore.Int64(),
			e.BalanceAfter.Int64(), e.Status, e.Description, e.ExternalRef, e.OriginalEntryID,
			e.CreatedAt, e.CompletedAt).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_ledger_entries_external_ref"})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, e)
	require.Error(t, err)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "WAL_005", appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_GetByExternalRef(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := newTestEntry(uuid.New())

	mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE external_ref").
		WithArgs(*e.ExternalRef).
		WillReturnRows(entryRow(e))

	result, err := repo.GetByExternalRef(context.Background(), *e.ExternalRef)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, e.ID, result.ID)
	assert.Equal(t, domain.Money(50000), result.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_GetByExternalRef_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE external_ref").
		WithArgs("TKW-missing").
		WillReturnRows(pgxmock.NewRows(entryTestColumns()))

	result, err := repo.GetByExternalRef(context.Background(), "TKW-missing")
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_MarkSuccess(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	entryID := uuid.New()
	completedAt := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE ledger_entries SET status = 'SUCCESS'").
		WithArgs(int64(100000), int64(150000), completedAt, entryID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	marked, err := repo.MarkSuccess(context.Background(), tx, entryID, 100000, 150000, completedAt)
	require.NoError(t, err)
	assert.True(t, marked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_MarkSuccess_AlreadyTerminal(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	entryID := uuid.New()
	completedAt := time.Now().UTC()

	mock.ExpectBegin()
	// The PENDING guard matched nothing: someone else resolved it first.
	mock.ExpectExec("UPDATE ledger_entries SET status = 'SUCCESS'").
		WithArgs(int64(100000), int64(150000), completedAt, entryID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	marked, err := repo.MarkSuccess(context.Background(), tx, entryID, 100000, 150000, completedAt)
	require.NoError(t, err)
	assert.False(t, marked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_MarkFailed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	entryID := uuid.New()
	completedAt := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE ledger_entries SET status = 'FAILED'").
		WithArgs(completedAt, entryID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	marked, err := repo.MarkFailed(context.Background(), tx, entryID, completedAt)
	require.NoError(t, err)
	assert.True(t, marked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_CheckRefundExists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	originalID := uuid.New()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(originalID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.CheckRefundExists(context.Background(), originalID)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	walletID := uuid.New()
	e := newTestEntry(walletID)
	status := domain.EntryStatusPending

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM ledger_entries`).
		WithArgs(walletID, status).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT .+ FROM ledger_entries .+ ORDER BY created_at DESC").
		WithArgs(walletID, status, 20, 0).
		WillReturnRows(entryRow(e))

	entries, total, err := repo.List(context.Background(), ports.EntryListParams{
		WalletID: walletID,
		Status:   &status,
		Page:     1,
		PageSize: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, e.ID, entries[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_GetSummary(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	walletID := uuid.New()

	mock.ExpectQuery("SELECT").
		WithArgs(walletID).
		WillReturnRows(pgxmock.NewRows([]string{"total", "success", "failed", "pending", "in", "out"}).
			AddRow(int64(10), int64(7), int64(2), int64(1), int64(500000), int64(200000)))

	s, err := repo.GetSummary(context.Background(), walletID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), s.TotalEntries)
	assert.Equal(t, int64(7), s.Successful)
	assert.Equal(t, int64(500000), s.TotalIn)
	assert.Equal(t, int64(200000), s.TotalOut)
	assert.NoError(t, mock.ExpectationsWereMet())
}
