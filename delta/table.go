// Package delta implements the session-scoped Delta Table: a signed net
// amount per asset that must be driven back to zero before a session may
// close.
//
// A Table is not safe for concurrent use. The owning session serializes
// access to it.
package delta

import (
	"errors"

	"github.com/xraph/flashledger/types"
)

var (
	// ErrOverflow is returned when an adjustment would overflow int64.
	ErrOverflow = types.ErrAmountOverflow

	// ErrTooManyAssets is returned when an adjustment would touch more
	// distinct assets than the table allows.
	ErrTooManyAssets = errors.New("flashledger: too many assets touched in session")
)

// Entry is one asset's net delta.
type Entry struct {
	Asset  types.Asset `json:"asset"`
	Amount int64       `json:"amount"`
}

// Table maps asset to signed net amount. Entries are created on first touch
// and remain touched even after they return to zero.
type Table struct {
	entries   map[types.Asset]int64
	maxAssets int
}

// New returns an empty table. maxAssets <= 0 means unlimited.
func New(maxAssets int) *Table {
	return &Table{
		entries:   make(map[types.Asset]int64),
		maxAssets: maxAssets,
	}
}

// Get returns the current delta for asset (zero when untouched).
func (t *Table) Get(asset types.Asset) int64 {
	return t.entries[asset]
}

// Check reports the value Apply would produce without mutating the table.
func (t *Table) Check(asset types.Asset, amount int64) (int64, error) {
	cur, touched := t.entries[asset]
	if !touched && t.maxAssets > 0 && len(t.entries) >= t.maxAssets {
		return 0, ErrTooManyAssets
	}

	next, ok := types.AddAmount(cur, amount)
	if !ok {
		return 0, ErrOverflow
	}

	return next, nil
}

// Apply adds amount to the asset's delta and returns the new value. On
// error the table is unchanged.
func (t *Table) Apply(asset types.Asset, amount int64) (int64, error) {
	next, err := t.Check(asset, amount)
	if err != nil {
		return 0, err
	}
	t.entries[asset] = next
	return next, nil
}

// Touched returns every asset adjusted since the last Reset, sorted.
func (t *Table) Touched() []types.Asset {
	return types.SortedAssets(t.entries)
}

// Nonzero returns the entries whose amount is not zero, sorted by asset.
func (t *Table) Nonzero() []Entry {
	var out []Entry
	for _, a := range types.SortedAssets(t.entries) {
		if v := t.entries[a]; v != 0 {
			out = append(out, Entry{Asset: a, Amount: v})
		}
	}
	return out
}

// Settled reports whether every entry is zero.
func (t *Table) Settled() bool {
	for _, v := range t.entries {
		if v != 0 {
			return false
		}
	}
	return true
}

// Reset discards every entry.
func (t *Table) Reset() {
	clear(t.entries)
}
