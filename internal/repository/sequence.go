package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendzd/settlement/internal/domain/ordernumber"
)

const nextSequenceSQL = `INSERT INTO sequences (name, value) VALUES ($1, 1)
	ON CONFLICT (name) DO UPDATE SET value = sequences.value + 1
	RETURNING value`

var _ ordernumber.Counter = (*SequenceRepository)(nil)

// SequenceRepository keeps named counters in PostgreSQL, so vendor order
// sequences survive restarts when no Redis is configured.
type SequenceRepository struct {
	pool *pgxpool.Pool
}

// NewSequenceRepository returns a SequenceRepository that uses the given pool.
func NewSequenceRepository(pool *pgxpool.Pool) *SequenceRepository {
	return &SequenceRepository{pool: pool}
}

// Next atomically increments and returns the named sequence, starting at 1.
func (r *SequenceRepository) Next(ctx context.Context, name string) (uint64, error) {
	var v int64
	if err := r.pool.QueryRow(ctx, nextSequenceSQL, name).Scan(&v); err != nil {
		return 0, errors.Wrapf(err, "next %s", name)
	}
	return uint64(v), nil
}
