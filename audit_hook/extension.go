// Package audithook bridges flashledger events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import an
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/flashledger/adapter"
	"github.com/xraph/flashledger/claim"
	"github.com/xraph/flashledger/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnSessionCommitted = (*Extension)(nil)
	_ plugin.OnSessionAborted   = (*Extension)(nil)
	_ plugin.OnClaimMinted      = (*Extension)(nil)
	_ plugin.OnClaimBurned      = (*Extension)(nil)
	_ plugin.OnClaimTransferred = (*Extension)(nil)
	_ plugin.OnPayout           = (*Extension)(nil)
	_ plugin.OnSettled          = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges flashledger events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Session hooks
// ──────────────────────────────────────────────────

// OnSessionCommitted implements plugin.OnSessionCommitted.
func (e *Extension) OnSessionCommitted(ctx context.Context, r *plugin.SessionReceipt) error {
	return e.record(ctx, ActionSessionCommitted, SeverityInfo, OutcomeSuccess,
		ResourceSession, r.ID.String(), CategorySession, nil,
		"caller", string(r.Caller),
		"touched", len(r.Touched),
		"claim_changes", len(r.Changes),
		"payouts", len(r.Payouts),
		"receipts", len(r.Receipts),
		"duration_ms", r.Duration.Milliseconds(),
	)
}

// OnSessionAborted implements plugin.OnSessionAborted. Reverted effects
// are worth a warning; an abort that never reached the adapter is info.
func (e *Extension) OnSessionAborted(ctx context.Context, r *plugin.SessionReceipt, cause error) error {
	severity := SeverityInfo
	if len(r.Payouts) > 0 || len(r.Receipts) > 0 {
		severity = SeverityWarning
	}
	return e.record(ctx, ActionSessionAborted, severity, OutcomeFailure,
		ResourceSession, r.ID.String(), CategorySession, cause,
		"caller", string(r.Caller),
		"reverted_payouts", len(r.Payouts),
		"reverted_receipts", len(r.Receipts),
	)
}

// ──────────────────────────────────────────────────
// Claim hooks
// ──────────────────────────────────────────────────

// OnClaimMinted implements plugin.OnClaimMinted.
func (e *Extension) OnClaimMinted(ctx context.Context, c claim.Change) error {
	return e.recordClaim(ctx, ActionClaimMinted, c)
}

// OnClaimBurned implements plugin.OnClaimBurned.
func (e *Extension) OnClaimBurned(ctx context.Context, c claim.Change) error {
	return e.recordClaim(ctx, ActionClaimBurned, c)
}

// OnClaimTransferred implements plugin.OnClaimTransferred.
func (e *Extension) OnClaimTransferred(ctx context.Context, c claim.Change) error {
	return e.recordClaim(ctx, ActionClaimTransferred, c,
		"counterparty", string(c.Counterparty),
	)
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnPayout implements plugin.OnPayout.
func (e *Extension) OnPayout(ctx context.Context, t adapter.Transfer) error {
	return e.record(ctx, ActionPayout, SeverityInfo, OutcomeSuccess,
		ResourceTransfer, t.ID.String(), CategorySettlement, nil,
		"asset", string(t.Asset),
		"recipient", string(t.Recipient),
		"amount", t.Amount,
	)
}

// OnSettled implements plugin.OnSettled.
func (e *Extension) OnSettled(ctx context.Context, r adapter.Receipt) error {
	return e.record(ctx, ActionSettled, SeverityInfo, OutcomeSuccess,
		ResourceTransfer, r.ID.String(), CategorySettlement, nil,
		"asset", string(r.Asset),
		"amount", r.Amount,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func (e *Extension) recordClaim(ctx context.Context, action string, c claim.Change, extra ...any) error {
	kv := append([]any{
		"owner", string(c.Owner),
		"asset", string(c.Asset),
		"amount", c.Amount,
	}, extra...)
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceClaim, c.ID.String(), CategoryClaims, nil, kv...)
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
