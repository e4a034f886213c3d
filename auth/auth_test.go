package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/flashledger/auth"
)

func TestOwnerOnly(t *testing.T) {
	ctx := context.Background()
	a := auth.OwnerOnly()

	require.NoError(t, a.Authorize(ctx, auth.Request{Caller: "alice", Owner: "alice", Asset: "usdc", Amount: 1}))

	err := a.Authorize(ctx, auth.Request{Caller: "mallory", Owner: "alice", Asset: "usdc", Amount: 1})
	require.ErrorIs(t, err, auth.ErrDenied)
}

func TestOperators(t *testing.T) {
	ctx := context.Background()
	ops := auth.NewOperators()
	req := auth.Request{Caller: "router", Owner: "alice", Asset: "usdc", Amount: 10}

	require.ErrorIs(t, ops.Authorize(ctx, req), auth.ErrDenied)

	ops.SetOperator("alice", "router", true)
	require.NoError(t, ops.Authorize(ctx, req))
	assert.True(t, ops.IsOperator("alice", "router"))

	ops.SetOperator("alice", "router", false)
	require.ErrorIs(t, ops.Authorize(ctx, req), auth.ErrDenied)
}

func TestAllowancesPendingAndConsume(t *testing.T) {
	ctx := context.Background()
	al := auth.NewAllowances()
	al.Approve("alice", "router", "usdc", 100)

	req := auth.Request{Caller: "router", Owner: "alice", Asset: "usdc", Amount: 60}
	require.NoError(t, al.Authorize(ctx, req))

	// A second spend in the same session counts the first as pending.
	second := req
	second.Pending = 60
	require.ErrorIs(t, al.Authorize(ctx, second), auth.ErrDenied)

	second.Amount = 40
	require.NoError(t, al.Authorize(ctx, second))

	require.NoError(t, al.Consume(ctx, req))
	assert.Equal(t, int64(40), al.Allowance("alice", "router", "usdc"))

	require.NoError(t, al.Consume(ctx, auth.Request{Caller: "router", Owner: "alice", Asset: "usdc", Amount: 40}))
	assert.Equal(t, int64(0), al.Allowance("alice", "router", "usdc"))
}

func TestAllowancesUnlimited(t *testing.T) {
	ctx := context.Background()
	al := auth.NewAllowances()
	al.Approve("alice", "router", "usdc", auth.Unlimited)

	req := auth.Request{Caller: "router", Owner: "alice", Asset: "usdc", Amount: 1 << 40, Pending: 1 << 40}
	require.NoError(t, al.Authorize(ctx, req))
	require.NoError(t, al.Consume(ctx, req))
	assert.Equal(t, auth.Unlimited, al.Allowance("alice", "router", "usdc"))
}

func TestAny(t *testing.T) {
	ctx := context.Background()
	ops := auth.NewOperators()
	al := auth.NewAllowances()
	al.Approve("alice", "bob", "eth", 5)

	a := auth.Any(ops, al)
	require.NoError(t, a.Authorize(ctx, auth.Request{Caller: "bob", Owner: "alice", Asset: "eth", Amount: 5}))
	require.ErrorIs(t, a.Authorize(ctx, auth.Request{Caller: "bob", Owner: "alice", Asset: "eth", Amount: 6}), auth.ErrDenied)

	require.ErrorIs(t, auth.Any().Authorize(ctx, auth.Request{Caller: "x", Owner: "y"}), auth.ErrDenied)
}
