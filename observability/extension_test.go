package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xraph/flashledger"
	"github.com/xraph/flashledger/adapter"
	"github.com/xraph/flashledger/observability"
	"github.com/xraph/flashledger/store/memory"
)

func newTestExtension(t *testing.T) (*observability.MetricsExtension, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	factory := observability.NewOTelFactory(provider.Meter("flashledger-test"))
	return observability.NewMetricsExtension(factory), reader
}

// sumOf returns the total of a float64 sum metric, or 0 if it was never
// recorded.
func sumOf(t *testing.T, reader *sdkmetric.ManualReader, name string) float64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[float64])
			require.True(t, ok, "expected Sum[float64] data, got %T", m.Data)
			var total float64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestMetricsExtension(t *testing.T) {
	ext, reader := newTestExtension(t)
	vault := adapter.NewVault()
	l := flashledger.New(memory.New(),
		flashledger.WithAdapter(vault),
		flashledger.WithPlugin(ext),
	)
	ctx := context.Background()
	require.NoError(t, vault.Fund("alice", "usdc", 100))
	require.NoError(t, vault.Deposit(ctx, "alice", "usdc", 100))

	_, err := l.Open(ctx, "alice", nil, func(ctx context.Context, s *flashledger.Session, _ any) (any, error) {
		if _, err := s.Settle(ctx, "usdc"); err != nil {
			return nil, err
		}
		if err := s.Take(ctx, "usdc", "bob", 30); err != nil {
			return nil, err
		}
		return nil, s.Mint(ctx, "alice", "usdc", 70)
	})
	require.NoError(t, err)

	_, err = l.Open(ctx, "alice", nil, func(_ context.Context, s *flashledger.Session, _ any) (any, error) {
		return nil, s.AdjustDelta("usdc", -1)
	})
	require.ErrorIs(t, err, flashledger.ErrUnresolvedDelta)

	assert.InDelta(t, 1, sumOf(t, reader, "flashledger.session.committed"), 0)
	assert.InDelta(t, 1, sumOf(t, reader, "flashledger.session.aborted"), 0)
	assert.InDelta(t, 1, sumOf(t, reader, "flashledger.session.unresolved"), 0)
	assert.InDelta(t, 1, sumOf(t, reader, "flashledger.claim.minted"), 0)
	assert.InDelta(t, 70, sumOf(t, reader, "flashledger.claim.minted.amount"), 0)
	assert.InDelta(t, 30, sumOf(t, reader, "flashledger.transfer.payout.amount"), 0)
	assert.InDelta(t, 100, sumOf(t, reader, "flashledger.transfer.settled.amount"), 0)
	assert.InDelta(t, 0, sumOf(t, reader, "flashledger.session.reverted_effects"), 0)
}
