// Package postgres implements the claim store on PostgreSQL via Grove ORM.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/flashledger"
	"github.com/xraph/flashledger/claim"
	"github.com/xraph/flashledger/store"
	"github.com/xraph/flashledger/types"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("flashledger/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("flashledger/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Claim Store ====================

// selecter is implemented by both the pool and a transaction.
type selecter interface {
	NewSelect(model ...any) *pgdriver.SelectQuery
}

func (s *Store) GetClaim(ctx context.Context, owner types.Owner, asset types.Asset) (int64, error) {
	return getClaim(ctx, s.pg, owner, asset)
}

func getClaim(ctx context.Context, q selecter, owner types.Owner, asset types.Asset) (int64, error) {
	m := new(claimModel)
	err := q.NewSelect(m).
		Where("owner = $1", string(owner)).
		Where("asset = $2", string(asset)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, err
	}
	return m.Amount, nil
}

func (s *Store) ListClaims(ctx context.Context, owner types.Owner, opts claim.ListOpts) ([]*claim.Balance, error) {
	var models []claimModel
	q := s.pg.NewSelect(&models).
		Where("owner = $1", string(owner)).
		Where("amount > 0")

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("asset ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*claim.Balance, len(models))
	for i := range models {
		result[i] = fromClaimModel(&models[i])
	}
	return result, nil
}

func (s *Store) TotalSupply(ctx context.Context, asset types.Asset) (int64, error) {
	var total int64
	err := s.pg.NewRaw(`
		SELECT COALESCE(SUM(amount), 0)::BIGINT FROM flash_claims WHERE asset = $1
	`, string(asset)).Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ApplyClaims applies the batch in one transaction. Credits are upserts;
// debits are guarded updates that only match rows holding enough, so a
// concurrent debit can never drive a balance below zero.
func (s *Store) ApplyClaims(ctx context.Context, adj []claim.Adjustment) error {
	merged, err := claim.Merge(adj)
	if err != nil {
		return flashledger.ErrAmountOverflow
	}
	if len(merged) == 0 {
		return nil
	}

	tx, err := s.pg.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("flashledger/postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	t := now()
	for _, a := range merged {
		if a.Amount < 0 {
			err = debit(ctx, tx, a, t)
		} else {
			err = credit(ctx, tx, a, t)
		}
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("flashledger/postgres: commit: %w", err)
	}
	return nil
}

func credit(ctx context.Context, tx *pgdriver.PgTx, a claim.Adjustment, t time.Time) error {
	cur, err := getClaim(ctx, tx, a.Owner, a.Asset)
	if err != nil {
		return err
	}
	if _, ok := types.AddAmount(cur, a.Amount); !ok {
		return fmt.Errorf("%w: %s %s", flashledger.ErrAmountOverflow, a.Owner, a.Asset)
	}

	m := toClaimModel(a, t)
	_, err = tx.NewInsert(&m).
		OnConflict("(owner, asset) DO UPDATE").
		Set("amount = flash_claims.amount + EXCLUDED.amount").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		if isOutOfRange(err) {
			return fmt.Errorf("%w: %w", flashledger.ErrAmountOverflow, err)
		}
		return fmt.Errorf("flashledger/postgres: credit %s %s: %w", a.Owner, a.Asset, err)
	}
	return nil
}

// debit placeholders are "?": the update builder numbers them.
func debit(ctx context.Context, tx *pgdriver.PgTx, a claim.Adjustment, t time.Time) error {
	need, ok := types.NegateAmount(a.Amount)
	if !ok {
		return flashledger.ErrAmountOverflow
	}

	res, err := tx.NewUpdate(new(claimModel)).
		Set("amount = amount - ?", need).
		Set("updated_at = ?", t).
		Where("owner = ?", string(a.Owner)).
		Where("asset = ?", string(a.Asset)).
		Where("amount >= ?", need).
		Exec(ctx)
	if err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("%w: %w", flashledger.ErrInsufficientClaimBalance, err)
		}
		return fmt.Errorf("flashledger/postgres: debit %s %s: %w", a.Owner, a.Asset, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("flashledger/postgres: debit %s %s: %w", a.Owner, a.Asset, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s needs %d %s",
			flashledger.ErrInsufficientClaimBalance, a.Owner, need, a.Asset)
	}
	return nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isCheckViolation matches SQLSTATE 23514 as rendered by the driver.
func isCheckViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "23514") || strings.Contains(msg, "violates check constraint")
}

// isOutOfRange matches SQLSTATE 22003 (bigint overflow).
func isOutOfRange(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "22003") || strings.Contains(msg, "out of range")
}
