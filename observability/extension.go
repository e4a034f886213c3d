// Package observability provides a metrics extension for flashledger that
// records session and settlement counts through a MetricFactory.
package observability

import (
	"context"
	"errors"

	"github.com/xraph/flashledger"
	"github.com/xraph/flashledger/adapter"
	"github.com/xraph/flashledger/claim"
	"github.com/xraph/flashledger/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnSessionCommitted = (*MetricsExtension)(nil)
	_ plugin.OnSessionAborted   = (*MetricsExtension)(nil)
	_ plugin.OnClaimMinted      = (*MetricsExtension)(nil)
	_ plugin.OnClaimBurned      = (*MetricsExtension)(nil)
	_ plugin.OnClaimTransferred = (*MetricsExtension)(nil)
	_ plugin.OnPayout           = (*MetricsExtension)(nil)
	_ plugin.OnSettled          = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records ledger-wide session metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Session metrics
	SessionsCommitted  Counter
	SessionsAborted    Counter
	SessionsUnresolved Counter
	SessionDuration    Histogram
	RevertedEffects    Counter

	// Claim metrics
	ClaimsMinted       Counter
	ClaimsBurned       Counter
	ClaimsTransferred  Counter
	ClaimMintedAmount  Counter
	ClaimBurnedAmount  Counter
	ClaimChangesPerRun Histogram

	// Settlement metrics
	Payouts       Counter
	PayoutAmount  Counter
	Settlements   Counter
	SettledAmount Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		SessionsCommitted:  factory.Counter("flashledger.session.committed"),
		SessionsAborted:    factory.Counter("flashledger.session.aborted"),
		SessionsUnresolved: factory.Counter("flashledger.session.unresolved"),
		SessionDuration:    factory.Histogram("flashledger.session.duration_ms"),
		RevertedEffects:    factory.Counter("flashledger.session.reverted_effects"),

		ClaimsMinted:       factory.Counter("flashledger.claim.minted"),
		ClaimsBurned:       factory.Counter("flashledger.claim.burned"),
		ClaimsTransferred:  factory.Counter("flashledger.claim.transferred"),
		ClaimMintedAmount:  factory.Counter("flashledger.claim.minted.amount"),
		ClaimBurnedAmount:  factory.Counter("flashledger.claim.burned.amount"),
		ClaimChangesPerRun: factory.Histogram("flashledger.session.claim_changes"),

		Payouts:       factory.Counter("flashledger.transfer.payouts"),
		PayoutAmount:  factory.Counter("flashledger.transfer.payout.amount"),
		Settlements:   factory.Counter("flashledger.transfer.settlements"),
		SettledAmount: factory.Counter("flashledger.transfer.settled.amount"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ──────────────────────────────────────────────────
// Session hooks
// ──────────────────────────────────────────────────

// OnSessionCommitted implements plugin.OnSessionCommitted.
func (m *MetricsExtension) OnSessionCommitted(_ context.Context, r *plugin.SessionReceipt) error {
	m.SessionsCommitted.Inc()
	m.SessionDuration.Observe(float64(r.Duration.Milliseconds()))
	m.ClaimChangesPerRun.Observe(float64(len(r.Changes)))
	return nil
}

// OnSessionAborted implements plugin.OnSessionAborted.
func (m *MetricsExtension) OnSessionAborted(_ context.Context, r *plugin.SessionReceipt, cause error) error {
	m.SessionsAborted.Inc()
	if errors.Is(cause, flashledger.ErrUnresolvedDelta) {
		m.SessionsUnresolved.Inc()
	}
	if n := len(r.Payouts) + len(r.Receipts); n > 0 {
		m.RevertedEffects.Add(float64(n))
	}
	m.SessionDuration.Observe(float64(r.Duration.Milliseconds()))
	return nil
}

// ──────────────────────────────────────────────────
// Claim hooks
// ──────────────────────────────────────────────────

// OnClaimMinted implements plugin.OnClaimMinted.
func (m *MetricsExtension) OnClaimMinted(_ context.Context, c claim.Change) error {
	m.ClaimsMinted.Inc()
	m.ClaimMintedAmount.Add(float64(c.Amount))
	return nil
}

// OnClaimBurned implements plugin.OnClaimBurned.
func (m *MetricsExtension) OnClaimBurned(_ context.Context, c claim.Change) error {
	m.ClaimsBurned.Inc()
	m.ClaimBurnedAmount.Add(float64(c.Amount))
	return nil
}

// OnClaimTransferred implements plugin.OnClaimTransferred.
func (m *MetricsExtension) OnClaimTransferred(_ context.Context, _ claim.Change) error {
	m.ClaimsTransferred.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnPayout implements plugin.OnPayout.
func (m *MetricsExtension) OnPayout(_ context.Context, t adapter.Transfer) error {
	m.Payouts.Inc()
	m.PayoutAmount.Add(float64(t.Amount))
	return nil
}

// OnSettled implements plugin.OnSettled.
func (m *MetricsExtension) OnSettled(_ context.Context, r adapter.Receipt) error {
	m.Settlements.Inc()
	m.SettledAmount.Add(float64(r.Amount))
	return nil
}
