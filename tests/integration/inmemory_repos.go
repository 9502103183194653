package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ticket-wallet-service/internal/core/domain"
	"ticket-wallet-service/internal/core/ports"
	"ticket-wallet-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// In-memory repositories mirroring the PostgreSQL adapters' contracts:
// version-checked balance writes, unique external references and
// status-guarded terminal transitions. This lets the integration tests
// exercise the real HTTP layer, middleware, services and Redis stores
// without a database.

// --- In-Memory Wallet Repo ---

type inMemoryWalletRepo struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]*domain.Wallet
	byUser  map[uuid.UUID]uuid.UUID
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{
		wallets: make(map[uuid.UUID]*domain.Wallet),
		byUser:  make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *inMemoryWalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUser[w.UserID]; ok {
		return fmt.Errorf("wallet already exists for user")
	}
	cp := *w
	r.wallets[w.ID] = &cp
	r.byUser[w.UserID] = w.ID
	return nil
}

func (r *inMemoryWalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUser[userID]
	if !ok {
		return nil, nil
	}
	cp := *r.wallets[id]
	return &cp, nil
}

func (r *inMemoryWalletRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	return r.GetByID(ctx, id)
}

// UpdateBalance performs the same compare-and-swap the SQL adapter does:
// the write only lands when the version token still matches.
func (r *inMemoryWalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, newBalance domain.Money, expectedVersion int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return false, nil
	}
	if w.Version != expectedVersion {
		return false, nil
	}
	w.Balance = newBalance
	w.Version++
	w.UpdatedAt = time.Now().UTC()
	return true, nil
}

// --- In-Memory Ledger Repo ---

type inMemoryLedgerRepo struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*domain.LedgerEntry
	byRef   map[string]uuid.UUID
}

func newInMemoryLedgerRepo() *inMemoryLedgerRepo {
	return &inMemoryLedgerRepo{
		entries: make(map[uuid.UUID]*domain.LedgerEntry),
		byRef:   make(map[string]uuid.UUID),
	}
}

func (r *inMemoryLedgerRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ExternalRef != nil {
		if _, ok := r.byRef[*e.ExternalRef]; ok {
			return apperror.ErrDuplicateReference()
		}
		r.byRef[*e.ExternalRef] = e.ID
	}
	cp := *e
	r.entries[e.ID] = &cp
	return nil
}

func (r *inMemoryLedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *inMemoryLedgerRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.LedgerEntry, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryLedgerRepo) GetByExternalRef(ctx context.Context, ref string) (*domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byRef[ref]
	if !ok {
		return nil, nil
	}
	cp := *r.entries[id]
	return &cp, nil
}

func (r *inMemoryLedgerRepo) MarkSuccess(ctx context.Context, tx pgx.Tx, id uuid.UUID, before, after domain.Money, completedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.Status != domain.EntryStatusPending {
		return false, nil
	}
	e.Status = domain.EntryStatusSuccess
	e.BalanceBefore = before
	e.BalanceAfter = after
	e.CompletedAt = &completedAt
	return true, nil
}

func (r *inMemoryLedgerRepo) MarkFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID, completedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.Status != domain.EntryStatusPending {
		return false, nil
	}
	e.Status = domain.EntryStatusFailed
	e.CompletedAt = &completedAt
	return true, nil
}

func (r *inMemoryLedgerRepo) CheckRefundExists(ctx context.Context, originalEntryID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.OriginalEntryID != nil && *e.OriginalEntryID == originalEntryID &&
			e.Type == domain.EntryTypeRefund && e.Status != domain.EntryStatusFailed {
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemoryLedgerRepo) List(ctx context.Context, params ports.EntryListParams) ([]domain.LedgerEntry, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.LedgerEntry
	for _, e := range r.entries {
		if e.WalletID != params.WalletID {
			continue
		}
		if params.Status != nil && e.Status != *params.Status {
			continue
		}
		if params.Type != nil && e.Type != *params.Type {
			continue
		}
		result = append(result, *e)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	total := int64(len(result))

	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.LedgerEntry{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

func (r *inMemoryLedgerRepo) GetSummary(ctx context.Context, walletID uuid.UUID) (*ports.LedgerSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := &ports.LedgerSummary{}
	for _, e := range r.entries {
		if e.WalletID != walletID {
			continue
		}
		s.TotalEntries++
		switch e.Status {
		case domain.EntryStatusSuccess:
			s.Successful++
			if e.Direction == domain.DirectionIn {
				s.TotalIn += e.Amount.Int64()
			} else {
				s.TotalOut += e.Amount.Int64()
			}
		case domain.EntryStatusFailed:
			s.Failed++
		case domain.EntryStatusPending:
			s.Pending++
		}
	}
	return s, nil
}

// --- In-Memory Topup Repo ---

type inMemoryTopupRepo struct {
	mu      sync.RWMutex
	topups  map[uuid.UUID]*domain.TopupRequest
	byOrder map[string]uuid.UUID
}

func newInMemoryTopupRepo() *inMemoryTopupRepo {
	return &inMemoryTopupRepo{
		topups:  make(map[uuid.UUID]*domain.TopupRequest),
		byOrder: make(map[string]uuid.UUID),
	}
}

func (r *inMemoryTopupRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.TopupRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byOrder[t.OrderCode]; ok {
		return apperror.ErrDuplicateReference()
	}
	cp := *t
	r.topups[t.ID] = &cp
	r.byOrder[t.OrderCode] = t.ID
	return nil
}

func (r *inMemoryTopupRepo) GetByOrderCode(ctx context.Context, orderCode string) (*domain.TopupRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byOrder[orderCode]
	if !ok {
		return nil, nil
	}
	cp := *r.topups[id]
	return &cp, nil
}

func (r *inMemoryTopupRepo) Resolve(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TopupStatus, completedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.topups[id]
	if !ok || t.Status != domain.TopupStatusPending {
		return false, nil
	}
	t.Status = status
	t.CompletedAt = &completedAt
	return true, nil
}

func (r *inMemoryTopupRepo) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]domain.TopupRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.TopupRequest
	for _, t := range r.topups {
		if t.Status == domain.TopupStatusPending && t.ExpiresAt.Before(cutoff) {
			out = append(out, *t)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// --- In-Memory Webhook Repo ---

type inMemoryWebhookRepo struct {
	mu      sync.Mutex
	records []domain.WebhookRecord
}

func newInMemoryWebhookRepo() *inMemoryWebhookRepo {
	return &inMemoryWebhookRepo{}
}

func (r *inMemoryWebhookRepo) Record(ctx context.Context, rec *domain.WebhookRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *rec)
	return nil
}

// --- In-Memory Transactor (no-op tx) ---

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &noopTx{}, nil
}

// noopTx is a no-op pgx.Tx implementation for in-memory testing.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }
