package claim_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/flashledger/claim"
)

func TestJournalPendingAndNet(t *testing.T) {
	j := claim.NewJournal()

	require.NoError(t, j.Stage(claim.Change{Kind: claim.KindMint, Owner: "alice", Asset: "usdc", Amount: 50}))
	require.NoError(t, j.Stage(claim.Change{Kind: claim.KindTransfer, Owner: "alice", Counterparty: "bob", Asset: "usdc", Amount: 20}))
	require.NoError(t, j.Stage(claim.Change{Kind: claim.KindBurn, Owner: "carol", Asset: "eth", Amount: 5}))

	assert.Equal(t, int64(30), j.Pending("alice", "usdc"))
	assert.Equal(t, int64(20), j.Pending("bob", "usdc"))
	assert.Equal(t, int64(-5), j.Pending("carol", "eth"))
	assert.Equal(t, 3, j.Len())

	assert.Equal(t, []claim.Adjustment{
		{Owner: "alice", Asset: "usdc", Amount: 30},
		{Owner: "bob", Asset: "usdc", Amount: 20},
		{Owner: "carol", Asset: "eth", Amount: -5},
	}, j.Net())
}

func TestJournalNetDropsZero(t *testing.T) {
	j := claim.NewJournal()
	require.NoError(t, j.Stage(claim.Change{Kind: claim.KindMint, Owner: "x", Asset: "a", Amount: 50}))
	require.NoError(t, j.Stage(claim.Change{Kind: claim.KindBurn, Owner: "x", Asset: "a", Amount: 50}))

	assert.Empty(t, j.Net())
	assert.Len(t, j.Changes(), 2)
}

func TestJournalOverflowLeavesStateUnchanged(t *testing.T) {
	j := claim.NewJournal()
	require.NoError(t, j.Stage(claim.Change{Kind: claim.KindMint, Owner: "x", Asset: "a", Amount: math.MaxInt64}))

	err := j.Stage(claim.Change{Kind: claim.KindMint, Owner: "x", Asset: "a", Amount: 1})
	require.ErrorIs(t, err, claim.ErrOverflow)
	assert.Equal(t, int64(math.MaxInt64), j.Pending("x", "a"))
	assert.Equal(t, 1, j.Len())
}

func TestJournalReset(t *testing.T) {
	j := claim.NewJournal()
	require.NoError(t, j.Stage(claim.Change{Kind: claim.KindMint, Owner: "x", Asset: "a", Amount: 1}))
	j.Reset()

	assert.Equal(t, 0, j.Len())
	assert.Empty(t, j.Net())
	assert.Equal(t, int64(0), j.Pending("x", "a"))
}

func TestChangeAdjustments(t *testing.T) {
	c := claim.Change{Kind: claim.KindTransfer, Owner: "a", Counterparty: "b", Asset: "usdc", Amount: 3}
	assert.Equal(t, []claim.Adjustment{
		{Owner: "a", Asset: "usdc", Amount: -3},
		{Owner: "b", Asset: "usdc", Amount: 3},
	}, c.Adjustments())
}

func TestMerge(t *testing.T) {
	got, err := claim.Merge([]claim.Adjustment{
		{Owner: "b", Asset: "usdc", Amount: 5},
		{Owner: "a", Asset: "usdc", Amount: 3},
		{Owner: "b", Asset: "usdc", Amount: -5},
		{Owner: "a", Asset: "usdc", Amount: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []claim.Adjustment{{Owner: "a", Asset: "usdc", Amount: 4}}, got)

	_, err = claim.Merge([]claim.Adjustment{
		{Owner: "a", Asset: "x", Amount: math.MaxInt64},
		{Owner: "a", Asset: "x", Amount: 1},
	})
	require.ErrorIs(t, err, claim.ErrOverflow)
}
