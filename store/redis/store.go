// Package redis implements the claim store on Redis.
//
// Each owner's balances live in one hash keyed by asset, and a second hash
// tracks the total supply per asset. ApplyClaims uses optimistic
// transactions (WATCH/MULTI/EXEC) and retries when a watched hash changes.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/flashledger"
	"github.com/xraph/flashledger/claim"
	"github.com/xraph/flashledger/store"
	"github.com/xraph/flashledger/types"
)

const (
	// DefaultPrefix namespaces every key the store writes.
	DefaultPrefix = "flashledger:"

	// DefaultMaxRetries bounds optimistic transaction retries.
	DefaultMaxRetries = 16
)

// ErrConflict is returned when ApplyClaims keeps losing optimistic races.
var ErrConflict = fmt.Errorf("%w: flashledger/redis: too many concurrent writers", flashledger.ErrStoreConflict)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store on a go-redis client.
type Store struct {
	client     redis.UniversalClient
	prefix     string
	maxRetries int
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithMaxRetries sets how often a conflicting ApplyClaims is retried.
func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// New creates a store on client. The store owns the client and closes it.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:     client,
		prefix:     DefaultPrefix,
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client returns the underlying redis client.
func (s *Store) Client() redis.UniversalClient { return s.client }

func (s *Store) claimKey(owner types.Owner) string { return s.prefix + "claims:" + string(owner) }

func (s *Store) supplyKey() string { return s.prefix + "supply" }

// Migrate is a no-op; redis needs no schema.
func (s *Store) Migrate(context.Context) error { return nil }

// Ping checks server connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) GetClaim(ctx context.Context, owner types.Owner, asset types.Asset) (int64, error) {
	v, err := s.client.HGet(ctx, s.claimKey(owner), string(asset)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("flashledger/redis: get claim: %w", err)
	}
	return v, nil
}

func (s *Store) ListClaims(ctx context.Context, owner types.Owner, opts claim.ListOpts) ([]*claim.Balance, error) {
	fields, err := s.client.HGetAll(ctx, s.claimKey(owner)).Result()
	if err != nil {
		return nil, fmt.Errorf("flashledger/redis: list claims: %w", err)
	}

	var result []*claim.Balance
	for asset, raw := range fields {
		var amount int64
		if _, err := fmt.Sscan(raw, &amount); err != nil {
			return nil, fmt.Errorf("flashledger/redis: decode %s/%s: %w", owner, asset, err)
		}
		if amount <= 0 {
			continue
		}
		result = append(result, &claim.Balance{Owner: owner, Asset: types.Asset(asset), Amount: amount})
	}
	claim.SortBalances(result)

	if opts.Offset >= len(result) {
		return []*claim.Balance{}, nil
	}
	result = result[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(result) {
		result = result[:opts.Limit]
	}
	return result, nil
}

func (s *Store) TotalSupply(ctx context.Context, asset types.Asset) (int64, error) {
	v, err := s.client.HGet(ctx, s.supplyKey(), string(asset)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("flashledger/redis: total supply: %w", err)
	}
	return v, nil
}

// ApplyClaims validates the batch against the watched owner hashes and
// applies it in one MULTI/EXEC block.
func (s *Store) ApplyClaims(ctx context.Context, adj []claim.Adjustment) error {
	merged, err := claim.Merge(adj)
	if err != nil {
		return flashledger.ErrAmountOverflow
	}
	if len(merged) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(merged))
	keys := make([]string, 0, len(merged))
	for _, a := range merged {
		k := s.claimKey(a.Owner)
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}

	txf := func(tx *redis.Tx) error {
		for _, a := range merged {
			cur, err := tx.HGet(ctx, s.claimKey(a.Owner), string(a.Asset)).Int64()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			next, ok := types.AddAmount(cur, a.Amount)
			if !ok {
				return flashledger.ErrAmountOverflow
			}
			if next < 0 {
				return fmt.Errorf("%w: %s holds %d %s, needs %d",
					flashledger.ErrInsufficientClaimBalance, a.Owner, cur, a.Asset, -a.Amount)
			}
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, a := range merged {
				pipe.HIncrBy(ctx, s.claimKey(a.Owner), string(a.Asset), a.Amount)
				pipe.HIncrBy(ctx, s.supplyKey(), string(a.Asset), a.Amount)
			}
			return nil
		})
		return err
	}

	for range s.maxRetries {
		err := s.client.Watch(ctx, txf, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, flashledger.ErrInsufficientClaimBalance) && !errors.Is(err, flashledger.ErrAmountOverflow) {
			return fmt.Errorf("flashledger/redis: apply claims: %w", err)
		}
		return err
	}
	return ErrConflict
}
