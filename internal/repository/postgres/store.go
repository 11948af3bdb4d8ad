// Package postgres is the pgx-backed Store. Stock rows are locked with
// SELECT ... ORDER BY ingredient_id FOR UPDATE so concurrent reservations
// always take row locks in the same order, and lock waits are bounded by
// SET LOCAL lock_timeout.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"good-food/internal/domain"
	"good-food/internal/repository"
)

const (
	codeLockNotAvailable = "55P03"
	codeDeadlock         = "40P01"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

var _ repository.Store = (*Store)(nil)

func New(pool *pgxpool.Pool, lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &Store{pool: pool, lockTimeout: lockTimeout}
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	return s.inTx(ctx, func(t *pgTx) error { return fn(t) })
}

func (s *Store) inTx(ctx context.Context, fn func(t *pgTx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// SET does not take bind parameters.
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("set lock_timeout: %w", err)
	}
	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", translate(err))
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return loadOrder(ctx, s.pool, id, false)
}

func (s *Store) GetCommand(ctx context.Context, id string) (domain.Command, error) {
	return loadCommand(ctx, s.pool, id, false)
}

func (s *Store) GetStock(ctx context.Context, franchiseID, ingredientID string) (domain.Stock, error) {
	st := domain.Stock{FranchiseID: franchiseID, IngredientID: ingredientID}
	err := s.pool.QueryRow(ctx, `
		SELECT quantity, updated_at FROM stock WHERE franchise_id=$1 AND ingredient_id=$2
	`, franchiseID, ingredientID).Scan(&st.Quantity, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Stock{}, &domain.NotFoundError{Entity: domain.EntityStock, ID: franchiseID + "/" + ingredientID}
	}
	if err != nil {
		return domain.Stock{}, fmt.Errorf("get stock: %w", err)
	}
	return st, nil
}

func (s *Store) ListStock(ctx context.Context, franchiseID string) ([]domain.Stock, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ingredient_id, quantity, updated_at FROM stock
		WHERE franchise_id=$1 ORDER BY ingredient_id
	`, franchiseID)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Stock, 0)
	for rows.Next() {
		st := domain.Stock{FranchiseID: franchiseID}
		if err := rows.Scan(&st.IngredientID, &st.Quantity, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) Timeline(ctx context.Context, entity, id string) ([]domain.StatusChange, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT from_status, to_status, changed_by, changed_at FROM status_log
		WHERE entity=$1 AND entity_id=$2 ORDER BY id ASC
	`, entity, id)
	if err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}
	defer rows.Close()

	out := make([]domain.StatusChange, 0)
	for rows.Next() {
		c := domain.StatusChange{Entity: entity, EntityID: id}
		if err := rows.Scan(&c.From, &c.To, &c.ChangedBy, &c.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan status log: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// translate maps lock contention failures onto repository.ErrLockTimeout.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == codeLockNotAvailable || pgErr.Code == codeDeadlock) {
		return fmt.Errorf("%w: %s", repository.ErrLockTimeout, pgErr.Message)
	}
	return err
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) AppendStatusLog(ctx context.Context, c domain.StatusChange) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO status_log (entity, entity_id, from_status, to_status, changed_by, changed_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, c.Entity, c.EntityID, c.From, c.To, c.ChangedBy, c.ChangedAt)
	if err != nil {
		return fmt.Errorf("append status log: %w", err)
	}
	return nil
}
