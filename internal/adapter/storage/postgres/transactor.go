package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Transactor implements ports.DBTransactor over the pgx pool. Every
// balance apply runs inside a transaction obtained here so the wallet
// CAS and the entry's terminal transition commit or roll back together.
type Transactor struct {
	pool Pool
}

// NewTransactor creates a Transactor over the given pool.
func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

// Begin opens a new transaction.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return t.pool.Begin(ctx)
}
