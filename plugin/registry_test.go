package plugin_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/flashledger/adapter"
	"github.com/xraph/flashledger/claim"
	"github.com/xraph/flashledger/plugin"
)

type named struct{ name string }

func (n named) Name() string { return n.name }

type claimRecorder struct {
	named
	mu    sync.Mutex
	kinds []claim.Kind
}

func (r *claimRecorder) record(k claim.Kind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, k)
	return nil
}

func (r *claimRecorder) OnClaimMinted(_ context.Context, c claim.Change) error {
	return r.record(c.Kind)
}

func (r *claimRecorder) OnClaimBurned(_ context.Context, c claim.Change) error {
	return r.record(c.Kind)
}

func (r *claimRecorder) seen() []claim.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]claim.Kind(nil), r.kinds...)
}

type failingPayout struct{ named }

func (failingPayout) OnPayout(context.Context, adapter.Transfer) error {
	return errors.New("boom")
}

type slowSettled struct {
	named
	release chan struct{}
}

func (s slowSettled) OnSettled(context.Context, adapter.Receipt) error {
	<-s.release
	return nil
}

func newRegistry() *plugin.Registry {
	return plugin.NewRegistry().WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.Register(named{name: "a"}))
	require.NoError(t, r.Register(named{name: "b"}))

	err := r.Register(named{name: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	assert.Equal(t, 2, r.Count())
	assert.Len(t, r.List(), 2)
	assert.NotNil(t, r.Get("b"))
	assert.Nil(t, r.Get("missing"))
}

func TestEmitClaimChangeDispatchesByKind(t *testing.T) {
	r := newRegistry()
	rec := &claimRecorder{named: named{name: "rec"}}
	require.NoError(t, r.Register(rec))

	ctx := context.Background()
	r.EmitClaimChange(ctx, claim.Change{Kind: claim.KindMint, Owner: "alice", Asset: "usdc", Amount: 1})
	r.EmitClaimChange(ctx, claim.Change{Kind: claim.KindBurn, Owner: "alice", Asset: "usdc", Amount: 1})
	// No OnClaimTransferred hook: ignored.
	r.EmitClaimChange(ctx, claim.Change{Kind: claim.KindTransfer, Owner: "alice", Counterparty: "bob", Asset: "usdc", Amount: 1})

	assert.Equal(t, []claim.Kind{claim.KindMint, claim.KindBurn}, rec.seen())
}

func TestPluginErrorsDoNotPropagate(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.Register(failingPayout{named{name: "bad"}}))

	assert.NotPanics(t, func() {
		r.EmitPayout(context.Background(), adapter.Transfer{Asset: "usdc", Recipient: "bob", Amount: 1})
	})
}

func TestSlowPluginTimesOut(t *testing.T) {
	r := newRegistry().WithTimeout(20 * time.Millisecond)
	release := make(chan struct{})
	defer close(release)
	require.NoError(t, r.Register(slowSettled{named: named{name: "slow"}, release: release}))

	start := time.Now()
	r.EmitSettled(context.Background(), adapter.Receipt{Asset: "usdc", Amount: 1})
	assert.Less(t, time.Since(start), time.Second)
}

func TestWithTimeoutIgnoresNonPositive(t *testing.T) {
	r := newRegistry().WithTimeout(0).WithTimeout(-time.Second)
	release := make(chan struct{})
	require.NoError(t, r.Register(slowSettled{named: named{name: "slow"}, release: release}))

	done := make(chan struct{})
	go func() {
		r.EmitSettled(context.Background(), adapter.Receipt{Asset: "usdc", Amount: 1})
		close(done)
	}()

	// The default timeout still applies, so the emit waits for the hook.
	select {
	case <-done:
		t.Fatal("emit returned before the hook finished")
	case <-time.After(30 * time.Millisecond):
	}
	close(release)
	<-done
}
