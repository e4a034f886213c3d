// Package plugin provides an extensible plugin system for flashledger.
// Plugins hook into the ledger lifecycle and into session outcomes. Claim,
// payout and settlement events are only emitted for committed sessions.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/flashledger/adapter"
	"github.com/xraph/flashledger/claim"
	"github.com/xraph/flashledger/id"
	"github.com/xraph/flashledger/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// SessionReceipt summarizes one closed session.
type SessionReceipt struct {
	ID       id.SessionID       `json:"id"`
	Caller   types.Owner        `json:"caller"`
	OpenedAt time.Time          `json:"opened_at"`
	Duration time.Duration      `json:"duration"`
	Touched  []types.Asset      `json:"touched"`
	Changes  []claim.Change     `json:"changes,omitempty"`
	Payouts  []adapter.Transfer `json:"payouts,omitempty"`
	Receipts []adapter.Receipt  `json:"receipts,omitempty"`
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l any) error
}

// OnShutdown is called when the ledger stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Session hooks
// ──────────────────────────────────────────────────

// OnSessionOpened is called before the session callback runs.
type OnSessionOpened interface {
	Plugin
	OnSessionOpened(ctx context.Context, sessionID id.SessionID, caller types.Owner) error
}

// OnSessionCommitted is called after a session settled and its claim
// changes were persisted.
type OnSessionCommitted interface {
	Plugin
	OnSessionCommitted(ctx context.Context, r *SessionReceipt) error
}

// OnSessionAborted is called after a failed session was rolled back. The
// receipt lists what was undone.
type OnSessionAborted interface {
	Plugin
	OnSessionAborted(ctx context.Context, r *SessionReceipt, cause error) error
}

// ──────────────────────────────────────────────────
// Claim hooks
// ──────────────────────────────────────────────────

// OnClaimMinted is called for each committed mint.
type OnClaimMinted interface {
	Plugin
	OnClaimMinted(ctx context.Context, c claim.Change) error
}

// OnClaimBurned is called for each committed burn.
type OnClaimBurned interface {
	Plugin
	OnClaimBurned(ctx context.Context, c claim.Change) error
}

// OnClaimTransferred is called for each committed claim transfer.
type OnClaimTransferred interface {
	Plugin
	OnClaimTransferred(ctx context.Context, c claim.Change) error
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnPayout is called for each payout of a committed session.
type OnPayout interface {
	Plugin
	OnPayout(ctx context.Context, t adapter.Transfer) error
}

// OnSettled is called for each inbound amount settled by a committed
// session.
type OnSettled interface {
	Plugin
	OnSettled(ctx context.Context, r adapter.Receipt) error
}
