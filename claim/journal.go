package claim

import "github.com/xraph/flashledger/types"

// ErrOverflow is returned when staging a change would overflow a pending
// balance.
var ErrOverflow = types.ErrAmountOverflow

// Journal stages claim changes for one session. Nothing in the journal is
// visible to other sessions until the owning session commits its Net
// adjustments to a store.
//
// A Journal is not safe for concurrent use.
type Journal struct {
	changes []Change
	pending map[Key]int64
}

// NewJournal returns an empty journal.
func NewJournal() *Journal {
	return &Journal{pending: make(map[Key]int64)}
}

// Pending returns the signed sum of staged movements for (owner, asset).
func (j *Journal) Pending(owner types.Owner, asset types.Asset) int64 {
	return j.pending[Key{Owner: owner, Asset: asset}]
}

// Stage records c. On error the journal is unchanged.
func (j *Journal) Stage(c Change) error {
	adj := c.Adjustments()
	next := make(map[Key]int64, len(adj))
	for _, a := range adj {
		k := Key{Owner: a.Owner, Asset: a.Asset}
		cur, ok := next[k]
		if !ok {
			cur = j.pending[k]
		}
		v, ok := types.AddAmount(cur, a.Amount)
		if !ok {
			return ErrOverflow
		}
		next[k] = v
	}

	for k, v := range next {
		j.pending[k] = v
	}
	j.changes = append(j.changes, c)
	return nil
}

// Changes returns the staged changes in the order they were recorded.
func (j *Journal) Changes() []Change {
	out := make([]Change, len(j.changes))
	copy(out, j.changes)
	return out
}

// Net returns one adjustment per (owner, asset) with a nonzero net
// movement, sorted by owner then asset.
func (j *Journal) Net() []Adjustment {
	out := make([]Adjustment, 0, len(j.pending))
	for k, v := range j.pending {
		if v == 0 {
			continue
		}
		out = append(out, Adjustment{Owner: k.Owner, Asset: k.Asset, Amount: v})
	}
	SortAdjustments(out)
	return out
}

// Len returns the number of staged changes.
func (j *Journal) Len() int { return len(j.changes) }

// Reset discards every staged change.
func (j *Journal) Reset() {
	j.changes = nil
	clear(j.pending)
}
