package flashledger

import (
	"github.com/xraph/flashledger/claim"
	"github.com/xraph/flashledger/delta"
	"github.com/xraph/flashledger/plugin"
	"github.com/xraph/flashledger/types"
)

// Re-export common types for convenience so users don't have to import the
// leaf packages.

// Asset is re-exported from types package.
type Asset = types.Asset

// Owner is re-exported from types package.
type Owner = types.Owner

// DeltaEntry is re-exported from delta package.
type DeltaEntry = delta.Entry

// ClaimBalance is re-exported from claim package.
type ClaimBalance = claim.Balance

// ClaimChange is re-exported from claim package.
type ClaimChange = claim.Change

// SessionReceipt is re-exported from plugin package.
type SessionReceipt = plugin.SessionReceipt
