// Package storetest is a conformance suite every store.Store backend runs
// from its own tests.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/flashledger"
	"github.com/xraph/flashledger/claim"
	"github.com/xraph/flashledger/store"
	"github.com/xraph/flashledger/types"
)

// Factory returns a fresh, migrated, empty store.
type Factory func(t *testing.T) store.Store

// Run exercises s against the store contract.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"MissingClaimIsZero", testMissingClaimIsZero},
		{"CreditAndDebit", testCreditAndDebit},
		{"BatchIsAtomic", testBatchIsAtomic},
		{"BatchNetsSameKey", testBatchNetsSameKey},
		{"EmptyBatch", testEmptyBatch},
		{"ListClaims", testListClaims},
		{"TotalSupply", testTotalSupply},
		{"Ping", testPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func adj(owner types.Owner, asset types.Asset, amount int64) claim.Adjustment {
	return claim.Adjustment{Owner: owner, Asset: asset, Amount: amount}
}

func get(t *testing.T, s store.Store, owner types.Owner, asset types.Asset) int64 {
	t.Helper()
	v, err := s.GetClaim(context.Background(), owner, asset)
	require.NoError(t, err)
	return v
}

func testMissingClaimIsZero(t *testing.T, s store.Store) {
	assert.Equal(t, int64(0), get(t, s, "nobody", "usdc"))
}

func testCreditAndDebit(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.ApplyClaims(ctx, []claim.Adjustment{adj("alice", "usdc", 100)}))
	require.NoError(t, s.ApplyClaims(ctx, []claim.Adjustment{adj("alice", "usdc", -40)}))
	assert.Equal(t, int64(60), get(t, s, "alice", "usdc"))

	require.NoError(t, s.ApplyClaims(ctx, []claim.Adjustment{adj("alice", "usdc", -60)}))
	assert.Equal(t, int64(0), get(t, s, "alice", "usdc"))
}

func testBatchIsAtomic(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.ApplyClaims(ctx, []claim.Adjustment{
		adj("alice", "usdc", 10),
		adj("bob", "usdc", 5),
	}))

	err := s.ApplyClaims(ctx, []claim.Adjustment{
		adj("alice", "usdc", -10),
		adj("carol", "usdc", 16),
		adj("bob", "usdc", -6),
	})
	require.ErrorIs(t, err, flashledger.ErrInsufficientClaimBalance)

	assert.Equal(t, int64(10), get(t, s, "alice", "usdc"))
	assert.Equal(t, int64(5), get(t, s, "bob", "usdc"))
	assert.Equal(t, int64(0), get(t, s, "carol", "usdc"))
}

func testBatchNetsSameKey(t *testing.T, s store.Store) {
	ctx := context.Background()

	// Credit then debit of the same balance within one batch nets out.
	require.NoError(t, s.ApplyClaims(ctx, []claim.Adjustment{
		adj("alice", "eth", 7),
		adj("alice", "eth", -3),
	}))
	assert.Equal(t, int64(4), get(t, s, "alice", "eth"))
}

func testEmptyBatch(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.ApplyClaims(ctx, nil))
	require.NoError(t, s.ApplyClaims(ctx, []claim.Adjustment{adj("alice", "eth", 3), adj("alice", "eth", -3)}))
	assert.Equal(t, int64(0), get(t, s, "alice", "eth"))
}

func testListClaims(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.ApplyClaims(ctx, []claim.Adjustment{
		adj("alice", "usdc", 3),
		adj("alice", "btc", 1),
		adj("alice", "eth", 2),
		adj("bob", "usdc", 9),
	}))
	require.NoError(t, s.ApplyClaims(ctx, []claim.Adjustment{adj("alice", "eth", -2)}))

	all, err := s.ListClaims(ctx, "alice", claim.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 2, "zero balances are not listed")
	assert.Equal(t, types.Asset("btc"), all[0].Asset)
	assert.Equal(t, int64(1), all[0].Amount)
	assert.Equal(t, types.Asset("usdc"), all[1].Asset)
	assert.Equal(t, types.Owner("alice"), all[1].Owner)

	page, err := s.ListClaims(ctx, "alice", claim.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, types.Asset("usdc"), page[0].Asset)

	none, err := s.ListClaims(ctx, "carol", claim.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testTotalSupply(t *testing.T, s store.Store) {
	ctx := context.Background()

	total, err := s.TotalSupply(ctx, "usdc")
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	require.NoError(t, s.ApplyClaims(ctx, []claim.Adjustment{
		adj("alice", "usdc", 30),
		adj("bob", "usdc", 12),
		adj("bob", "eth", 99),
	}))
	require.NoError(t, s.ApplyClaims(ctx, []claim.Adjustment{adj("alice", "usdc", -30), adj("bob", "usdc", 30)}))

	total, err = s.TotalSupply(ctx, "usdc")
	require.NoError(t, err)
	assert.Equal(t, int64(42), total)
}

func testPing(t *testing.T, s store.Store) {
	require.NoError(t, s.Ping(context.Background()))
}
