package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xraph/flashledger"
	"github.com/xraph/flashledger/claim"
	"github.com/xraph/flashledger/store"
	"github.com/xraph/flashledger/store/memory"
	"github.com/xraph/flashledger/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return memory.New() })
}

func TestClosedStore(t *testing.T) {
	s := memory.New()
	require.NoError(t, s.Close())

	ctx := context.Background()
	_, err := s.GetClaim(ctx, "alice", "usdc")
	require.ErrorIs(t, err, flashledger.ErrStoreClosed)
	require.ErrorIs(t, s.Ping(ctx), flashledger.ErrStoreClosed)
	err = s.ApplyClaims(ctx, []claim.Adjustment{{Owner: "alice", Asset: "usdc", Amount: 1}})
	require.ErrorIs(t, err, flashledger.ErrStoreClosed)
}

func TestOverflowRejected(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	require.NoError(t, s.ApplyClaims(ctx, []claim.Adjustment{{Owner: "alice", Asset: "usdc", Amount: 1 << 62}}))

	err := s.ApplyClaims(ctx, []claim.Adjustment{{Owner: "alice", Asset: "usdc", Amount: 1 << 62}})
	require.ErrorIs(t, err, flashledger.ErrAmountOverflow)
}
