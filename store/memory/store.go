// Package memory provides an in-memory claim store for tests and
// single-process deployments.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xraph/flashledger"
	"github.com/xraph/flashledger/claim"
	"github.com/xraph/flashledger/store"
	"github.com/xraph/flashledger/types"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store keeps claim balances in a map guarded by a RWMutex.
type Store struct {
	mu     sync.RWMutex
	claims map[claim.Key]*claim.Balance
	closed bool
}

// New returns an empty store.
func New() *Store {
	return &Store{
		claims: make(map[claim.Key]*claim.Balance),
	}
}

func (s *Store) GetClaim(_ context.Context, owner types.Owner, asset types.Asset) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, flashledger.ErrStoreClosed
	}
	if b, ok := s.claims[claim.Key{Owner: owner, Asset: asset}]; ok {
		return b.Amount, nil
	}
	return 0, nil
}

func (s *Store) ListClaims(_ context.Context, owner types.Owner, opts claim.ListOpts) ([]*claim.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, flashledger.ErrStoreClosed
	}

	var result []*claim.Balance
	for k, b := range s.claims {
		if k.Owner == owner && b.Amount > 0 {
			cp := *b
			result = append(result, &cp)
		}
	}
	claim.SortBalances(result)
	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) TotalSupply(_ context.Context, asset types.Asset) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, flashledger.ErrStoreClosed
	}

	var total int64
	for k, b := range s.claims {
		if k.Asset != asset {
			continue
		}
		next, ok := types.AddAmount(total, b.Amount)
		if !ok {
			return 0, flashledger.ErrAmountOverflow
		}
		total = next
	}
	return total, nil
}

func (s *Store) ApplyClaims(_ context.Context, adj []claim.Adjustment) error {
	merged, err := claim.Merge(adj)
	if err != nil {
		return flashledger.ErrAmountOverflow
	}
	if len(merged) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return flashledger.ErrStoreClosed
	}

	// Validate the whole batch before touching any balance.
	next := make([]int64, len(merged))
	for i, a := range merged {
		var cur int64
		if b, ok := s.claims[claim.Key{Owner: a.Owner, Asset: a.Asset}]; ok {
			cur = b.Amount
		}
		v, ok := types.AddAmount(cur, a.Amount)
		if !ok {
			return flashledger.ErrAmountOverflow
		}
		if v < 0 {
			return fmt.Errorf("%w: %s holds %d %s, needs %d", flashledger.ErrInsufficientClaimBalance, a.Owner, cur, a.Asset, -a.Amount)
		}
		next[i] = v
	}

	t := time.Now().UTC()
	for i, a := range merged {
		k := claim.Key{Owner: a.Owner, Asset: a.Asset}
		b, ok := s.claims[k]
		if !ok {
			b = &claim.Balance{Owner: a.Owner, Asset: a.Asset}
			b.CreatedAt = t
			s.claims[k] = b
		}
		b.Amount = next[i]
		b.UpdatedAt = t
	}
	return nil
}

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return flashledger.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func applyPagination[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
