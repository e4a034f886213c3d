// Package claim defines the persistent claim balance records and the
// per-session journal that stages claim movements until commit.
package claim

import (
	"sort"
	"time"

	"github.com/xraph/flashledger/id"
	"github.com/xraph/flashledger/types"
)

// Balance is an owner's durable claim on an asset held by the ledger.
type Balance struct {
	types.Entity
	Owner  types.Owner `json:"owner"`
	Asset  types.Asset `json:"asset"`
	Amount int64       `json:"amount"`
}

// Kind classifies a claim movement.
type Kind string

const (
	KindMint     Kind = "mint"
	KindBurn     Kind = "burn"
	KindTransfer Kind = "transfer"
)

// Change is one claim movement recorded during a session. Amount is always
// positive; Kind determines its direction. For transfers Owner is the
// sender and Counterparty the recipient.
type Change struct {
	ID           id.ClaimChangeID `json:"id"`
	Kind         Kind             `json:"kind"`
	Owner        types.Owner      `json:"owner"`
	Counterparty types.Owner      `json:"counterparty,omitempty"`
	Asset        types.Asset      `json:"asset"`
	Amount       int64            `json:"amount"`
	At           time.Time        `json:"at"`
}

// Adjustments returns the signed balance movements the change implies.
func (c Change) Adjustments() []Adjustment {
	switch c.Kind {
	case KindMint:
		return []Adjustment{{Owner: c.Owner, Asset: c.Asset, Amount: c.Amount}}
	case KindBurn:
		return []Adjustment{{Owner: c.Owner, Asset: c.Asset, Amount: -c.Amount}}
	case KindTransfer:
		return []Adjustment{
			{Owner: c.Owner, Asset: c.Asset, Amount: -c.Amount},
			{Owner: c.Counterparty, Asset: c.Asset, Amount: c.Amount},
		}
	default:
		return nil
	}
}

// Adjustment is a signed movement of one (owner, asset) balance. Stores
// apply batches of adjustments atomically.
type Adjustment struct {
	Owner  types.Owner `json:"owner"`
	Asset  types.Asset `json:"asset"`
	Amount int64       `json:"amount"`
}

// Key identifies a claim balance.
type Key struct {
	Owner types.Owner
	Asset types.Asset
}

// ListOpts configures claim listing.
type ListOpts struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// SortAdjustments orders adjustments by owner then asset, in place.
func SortAdjustments(adj []Adjustment) {
	sort.Slice(adj, func(i, j int) bool {
		if adj[i].Owner != adj[j].Owner {
			return adj[i].Owner < adj[j].Owner
		}
		return adj[i].Asset < adj[j].Asset
	})
}

// SortBalances orders balances by owner then asset, in place.
func SortBalances(b []*Balance) {
	sort.Slice(b, func(i, j int) bool {
		if b[i].Owner != b[j].Owner {
			return b[i].Owner < b[j].Owner
		}
		return b[i].Asset < b[j].Asset
	})
}

// Merge nets adjustments that share an (owner, asset) key, drops zero
// results and returns them sorted. It fails with ErrOverflow when a net
// amount does not fit in an int64.
func Merge(adj []Adjustment) ([]Adjustment, error) {
	net := make(map[Key]int64, len(adj))
	for _, a := range adj {
		k := Key{Owner: a.Owner, Asset: a.Asset}
		v, ok := types.AddAmount(net[k], a.Amount)
		if !ok {
			return nil, ErrOverflow
		}
		net[k] = v
	}

	out := make([]Adjustment, 0, len(net))
	for k, v := range net {
		if v != 0 {
			out = append(out, Adjustment{Owner: k.Owner, Asset: k.Asset, Amount: v})
		}
	}
	SortAdjustments(out)
	return out, nil
}
