// Package store defines the persistence contract for claim balances.
package store

import (
	"context"

	"github.com/xraph/flashledger/claim"
	"github.com/xraph/flashledger/types"
)

// Store persists claim balances. The Delta Table is never persisted.
//
// ApplyClaims is the only write path. It applies a batch of signed
// adjustments atomically: if any resulting balance would be negative the
// whole batch fails with flashledger.ErrInsufficientClaimBalance and no
// balance changes.
type Store interface {
	// GetClaim returns the balance for (owner, asset), zero when absent.
	GetClaim(ctx context.Context, owner types.Owner, asset types.Asset) (int64, error)

	// ListClaims returns owner's nonzero balances sorted by asset.
	ListClaims(ctx context.Context, owner types.Owner, opts claim.ListOpts) ([]*claim.Balance, error)

	// TotalSupply returns the sum of all balances of asset.
	TotalSupply(ctx context.Context, asset types.Asset) (int64, error)

	// ApplyClaims applies adjustments as one atomic batch.
	ApplyClaims(ctx context.Context, adj []claim.Adjustment) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
