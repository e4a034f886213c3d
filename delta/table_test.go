package delta_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/flashledger/delta"
	"github.com/xraph/flashledger/types"
)

func TestApplyAndGet(t *testing.T) {
	tbl := delta.New(0)

	assert.Equal(t, int64(0), tbl.Get("usdc"))

	v, err := tbl.Apply("usdc", -100)
	require.NoError(t, err)
	assert.Equal(t, int64(-100), v)

	v, err = tbl.Apply("usdc", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	assert.True(t, tbl.Settled())
	assert.Equal(t, []types.Asset{"usdc"}, tbl.Touched())
	assert.Empty(t, tbl.Nonzero())
}

func TestNonzeroSorted(t *testing.T) {
	tbl := delta.New(0)
	_, _ = tbl.Apply("usdc", 5)
	_, _ = tbl.Apply("btc", -2)
	_, _ = tbl.Apply("eth", 0)

	assert.Equal(t, []delta.Entry{
		{Asset: "btc", Amount: -2},
		{Asset: "usdc", Amount: 5},
	}, tbl.Nonzero())
	assert.Len(t, tbl.Touched(), 3)
	assert.False(t, tbl.Settled())
}

func TestOverflowLeavesEntryUnchanged(t *testing.T) {
	tbl := delta.New(0)
	_, err := tbl.Apply("usdc", math.MaxInt64)
	require.NoError(t, err)

	_, err = tbl.Apply("usdc", 1)
	require.ErrorIs(t, err, delta.ErrOverflow)
	assert.Equal(t, int64(math.MaxInt64), tbl.Get("usdc"))
}

func TestMaxAssets(t *testing.T) {
	tbl := delta.New(2)
	_, err := tbl.Apply("a", 1)
	require.NoError(t, err)
	_, err = tbl.Apply("b", 1)
	require.NoError(t, err)

	_, err = tbl.Apply("c", 1)
	require.ErrorIs(t, err, delta.ErrTooManyAssets)

	// Already touched assets remain adjustable.
	_, err = tbl.Apply("a", -1)
	require.NoError(t, err)
	assert.Len(t, tbl.Touched(), 2)
}

func TestReset(t *testing.T) {
	tbl := delta.New(0)
	_, _ = tbl.Apply("usdc", 7)
	tbl.Reset()

	assert.Empty(t, tbl.Touched())
	assert.True(t, tbl.Settled())
	assert.Equal(t, int64(0), tbl.Get("usdc"))
}
