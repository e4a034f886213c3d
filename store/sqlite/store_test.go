package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/flashledger"
	"github.com/xraph/flashledger/claim"
	"github.com/xraph/flashledger/store"
	"github.com/xraph/flashledger/store/sqlite"
	"github.com/xraph/flashledger/store/storetest"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	ctx := context.Background()

	sdb := sqlitedriver.New()
	require.NoError(t, sdb.Open(ctx, filepath.Join(t.TempDir(), "claims.db")))
	db, err := grove.Open(sdb)
	require.NoError(t, err)

	s := sqlite.New(db)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newStore(t) })
}

func TestMintThenBurn(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.ApplyClaims(ctx, []claim.Adjustment{{Owner: "alice", Asset: "usdc", Amount: 100}}))
	require.NoError(t, s.ApplyClaims(ctx, []claim.Adjustment{{Owner: "alice", Asset: "usdc", Amount: 100}}))
	require.NoError(t, s.ApplyClaims(ctx, []claim.Adjustment{{Owner: "alice", Asset: "usdc", Amount: -50}}))

	v, err := s.GetClaim(ctx, "alice", "usdc")
	require.NoError(t, err)
	assert.Equal(t, int64(150), v)

	total, err := s.TotalSupply(ctx, "usdc")
	require.NoError(t, err)
	assert.Equal(t, int64(150), total)
}

func TestOverdrawLeavesBalance(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.ApplyClaims(ctx, []claim.Adjustment{{Owner: "alice", Asset: "usdc", Amount: 10}}))

	err := s.ApplyClaims(ctx, []claim.Adjustment{{Owner: "alice", Asset: "usdc", Amount: -11}})
	require.ErrorIs(t, err, flashledger.ErrInsufficientClaimBalance)

	// Debiting an owner with no row at all fails the same way.
	err = s.ApplyClaims(ctx, []claim.Adjustment{{Owner: "bob", Asset: "usdc", Amount: -1}})
	require.ErrorIs(t, err, flashledger.ErrInsufficientClaimBalance)

	v, err := s.GetClaim(ctx, "alice", "usdc")
	require.NoError(t, err)
	assert.Equal(t, int64(10), v)
}

func TestCreditBeforeFailedDebitIsRolledBack(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	err := s.ApplyClaims(ctx, []claim.Adjustment{
		{Owner: "carol", Asset: "eth", Amount: 5},
		{Owner: "dave", Asset: "eth", Amount: -1},
	})
	require.ErrorIs(t, err, flashledger.ErrInsufficientClaimBalance)

	all, err := s.ListClaims(ctx, "carol", claim.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestOverflowRejected(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.ApplyClaims(ctx, []claim.Adjustment{{Owner: "alice", Asset: "usdc", Amount: 1 << 62}}))

	err := s.ApplyClaims(ctx, []claim.Adjustment{{Owner: "alice", Asset: "usdc", Amount: 1 << 62}})
	require.ErrorIs(t, err, flashledger.ErrAmountOverflow)
}
