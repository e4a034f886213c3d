package adapter_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/flashledger/adapter"
)

func TestVaultDepositAndNotify(t *testing.T) {
	ctx := context.Background()
	v := adapter.NewVault()
	require.NoError(t, v.Fund("alice", "usdc", 500))

	require.NoError(t, v.Deposit(ctx, "alice", "usdc", 200))
	assert.Equal(t, int64(300), v.ExternalBalance("alice", "usdc"))
	assert.Equal(t, int64(200), v.Holdings("usdc"))

	got, err := v.NotifyReceived(ctx, "usdc")
	require.NoError(t, err)
	assert.Equal(t, int64(200), got)

	got, err = v.NotifyReceived(ctx, "usdc")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got, "second notify sees nothing new")
}

func TestVaultDepositInsufficientFunds(t *testing.T) {
	v := adapter.NewVault()
	require.NoError(t, v.Fund("alice", "usdc", 10))

	err := v.Deposit(context.Background(), "alice", "usdc", 11)
	require.ErrorIs(t, err, adapter.ErrInsufficientFunds)
	assert.Equal(t, int64(10), v.ExternalBalance("alice", "usdc"))
}

func TestVaultSyncSkipsUnsyncedValue(t *testing.T) {
	ctx := context.Background()
	v := adapter.NewVault()
	require.NoError(t, v.Fund("alice", "eth", 5))
	require.NoError(t, v.Deposit(ctx, "alice", "eth", 5))

	skipped, err := v.Sync(ctx, "eth")
	require.NoError(t, err)
	assert.Equal(t, int64(5), skipped)

	got, err := v.NotifyReceived(ctx, "eth")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	require.NoError(t, v.ReverseReceipt(ctx, "eth", skipped))
	got, err = v.NotifyReceived(ctx, "eth")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got)
}

func TestVaultPayOutAndReverse(t *testing.T) {
	ctx := context.Background()
	v := adapter.NewVault()
	require.NoError(t, v.Fund("alice", "usdc", 100))
	require.NoError(t, v.Deposit(ctx, "alice", "usdc", 100))
	_, err := v.NotifyReceived(ctx, "usdc")
	require.NoError(t, err)

	tr, err := v.PayOut(ctx, "usdc", "bob", 40)
	require.NoError(t, err)
	assert.Equal(t, int64(40), v.ExternalBalance("bob", "usdc"))
	assert.Equal(t, int64(60), v.Holdings("usdc"))
	assert.Equal(t, int64(60), v.Reserves("usdc"))

	require.NoError(t, v.ReversePayOut(ctx, tr))
	assert.Equal(t, int64(0), v.ExternalBalance("bob", "usdc"))
	assert.Equal(t, int64(100), v.Holdings("usdc"))
	assert.Equal(t, int64(100), v.Reserves("usdc"))

	require.ErrorIs(t, v.ReversePayOut(ctx, tr), adapter.ErrUnknownTransfer)
}

func TestVaultPayOutInsufficientReserves(t *testing.T) {
	v := adapter.NewVault()
	_, err := v.PayOut(context.Background(), "usdc", "bob", 1)
	require.ErrorIs(t, err, adapter.ErrInsufficientReserves)
}

func TestVaultPayOutHookFailureReverses(t *testing.T) {
	ctx := context.Background()
	v := adapter.NewVault()
	require.NoError(t, v.Fund("alice", "usdc", 10))
	require.NoError(t, v.Deposit(ctx, "alice", "usdc", 10))

	boom := errors.New("recipient rejected")
	var seen adapter.Transfer
	v.OnPayOut(func(_ context.Context, tr adapter.Transfer) error {
		seen = tr
		// Lock is released: reads must not deadlock.
		assert.Equal(t, int64(7), v.ExternalBalance("bob", "usdc"))
		return boom
	})

	_, err := v.PayOut(ctx, "usdc", "bob", 7)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(7), seen.Amount)
	assert.Equal(t, int64(0), v.ExternalBalance("bob", "usdc"))
	assert.Equal(t, int64(10), v.Holdings("usdc"))
}

func TestVaultReversePayOutAfterRedeposit(t *testing.T) {
	ctx := context.Background()
	v := adapter.NewVault()
	require.NoError(t, v.Fund("alice", "usdc", 50))
	require.NoError(t, v.Deposit(ctx, "alice", "usdc", 50))
	_, err := v.NotifyReceived(ctx, "usdc")
	require.NoError(t, err)

	// Flash-loan shape: pay out, recipient deposits it straight back.
	tr, err := v.PayOut(ctx, "usdc", "bob", 20)
	require.NoError(t, err)
	require.NoError(t, v.Deposit(ctx, "bob", "usdc", 20))
	got, err := v.NotifyReceived(ctx, "usdc")
	require.NoError(t, err)
	require.Equal(t, int64(20), got)

	// Undo in reverse order.
	require.NoError(t, v.ReverseReceipt(ctx, "usdc", got))
	require.NoError(t, v.ReversePayOut(ctx, tr))

	assert.Equal(t, int64(50), v.Holdings("usdc"))
	assert.Equal(t, int64(50), v.Reserves("usdc"))
	assert.Equal(t, int64(0), v.ExternalBalance("bob", "usdc"))
}

func TestVaultScopeRefundsDepositsOnAbort(t *testing.T) {
	ctx := context.Background()
	v := adapter.NewVault()
	require.NoError(t, v.Fund("alice", "usdc", 30))
	require.NoError(t, v.Fund("bob", "usdc", 5))
	require.NoError(t, v.Deposit(ctx, "bob", "usdc", 5)) // outside any scope

	v.BeginScope(ctx)
	require.NoError(t, v.Deposit(ctx, "alice", "usdc", 10))
	require.NoError(t, v.Deposit(ctx, "alice", "usdc", 20))
	require.NoError(t, v.EndScope(ctx, false))

	assert.Equal(t, int64(30), v.ExternalBalance("alice", "usdc"))
	assert.Equal(t, int64(0), v.ExternalBalance("bob", "usdc"))
	assert.Equal(t, int64(5), v.Holdings("usdc"))
}

func TestVaultScopeKeepsDepositsOnCommit(t *testing.T) {
	ctx := context.Background()
	v := adapter.NewVault()
	require.NoError(t, v.Fund("alice", "usdc", 30))

	v.BeginScope(ctx)
	require.NoError(t, v.Deposit(ctx, "alice", "usdc", 30))
	require.NoError(t, v.EndScope(ctx, true))

	// A later abort has nothing of the committed scope to refund.
	v.BeginScope(ctx)
	require.NoError(t, v.EndScope(ctx, false))

	assert.Equal(t, int64(0), v.ExternalBalance("alice", "usdc"))
	assert.Equal(t, int64(30), v.Holdings("usdc"))
}

func TestVaultScopeRefundsOnlyUnsynced(t *testing.T) {
	ctx := context.Background()
	v := adapter.NewVault()
	require.NoError(t, v.Fund("alice", "usdc", 10))

	v.BeginScope(ctx)
	require.NoError(t, v.Deposit(ctx, "alice", "usdc", 10))
	_, err := v.NotifyReceived(ctx, "usdc")
	require.NoError(t, err)

	// The receipt still stands, so the deposit cannot leave.
	err = v.EndScope(ctx, false)
	require.ErrorIs(t, err, adapter.ErrInsufficientReserves)
	assert.Equal(t, int64(10), v.Holdings("usdc"))
}

func TestVaultScopeRedepositIsNotRefundedTwice(t *testing.T) {
	ctx := context.Background()
	v := adapter.NewVault()
	require.NoError(t, v.Fund("alice", "usdc", 50))
	require.NoError(t, v.Deposit(ctx, "alice", "usdc", 50))
	_, err := v.NotifyReceived(ctx, "usdc")
	require.NoError(t, err)

	v.BeginScope(ctx)
	tr, err := v.PayOut(ctx, "usdc", "bob", 20)
	require.NoError(t, err)
	require.NoError(t, v.Deposit(ctx, "bob", "usdc", 20))
	got, err := v.NotifyReceived(ctx, "usdc")
	require.NoError(t, err)

	require.NoError(t, v.ReverseReceipt(ctx, "usdc", got))
	require.NoError(t, v.ReversePayOut(ctx, tr))
	require.NoError(t, v.EndScope(ctx, false))

	assert.Equal(t, int64(50), v.Holdings("usdc"))
	assert.Equal(t, int64(50), v.Reserves("usdc"))
	assert.Equal(t, int64(0), v.ExternalBalance("bob", "usdc"))
}
