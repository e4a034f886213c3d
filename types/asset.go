package types

import (
	"sort"
	"strings"
)

// Asset is an opaque, totally ordered identifier for a kind of value
// ("usdc", "eth", "pool-share"). Two assets are the same iff their
// identifiers are equal.
type Asset string

// String returns the identifier.
func (a Asset) String() string { return string(a) }

// IsZero reports whether the asset identifier is empty.
func (a Asset) IsZero() bool { return a == "" }

// Compare returns -1, 0 or +1 depending on the ordering of a and b.
func (a Asset) Compare(b Asset) int { return strings.Compare(string(a), string(b)) }

// Owner identifies the holder of a claim balance.
type Owner string

// String returns the identifier.
func (o Owner) String() string { return string(o) }

// IsZero reports whether the owner identifier is empty.
func (o Owner) IsZero() bool { return o == "" }

// SortAssets sorts assets in ascending identifier order, in place.
func SortAssets(assets []Asset) {
	sort.Slice(assets, func(i, j int) bool { return assets[i] < assets[j] })
}

// SortedAssets returns the keys of m in ascending order.
func SortedAssets[V any](m map[Asset]V) []Asset {
	out := make([]Asset, 0, len(m))
	for a := range m {
		out = append(out, a)
	}
	SortAssets(out)
	return out
}
