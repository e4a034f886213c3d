// Package ops contains domain operations that express their economic effect
// purely as delta adjustments on an open session. The accounting core does
// not validate the economics, only that every delta nets to zero by close.
package ops

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/flashledger/types"
)

// ErrInvalidOperation is returned when an operation's parameters cannot
// produce a well-defined adjustment.
var ErrInvalidOperation = errors.New("flashledger/ops: invalid operation")

// Adjuster is the one capability an operation needs from a session.
type Adjuster interface {
	AdjustDelta(asset types.Asset, amount int64) error
}

// Summary is the caller-visible net amount per asset. Negative means the
// caller owes the ledger.
type Summary map[types.Asset]int64

// Operation adjusts deltas on a session and reports what it did.
type Operation interface {
	Name() string
	Apply(ctx context.Context, adj Adjuster) (Summary, error)
}

// Donate gives each amount to the ledger: the caller ends up owing it.
type Donate struct {
	Amounts map[types.Asset]int64
}

// Name implements Operation.
func (Donate) Name() string { return "donate" }

// Apply implements Operation.
func (d Donate) Apply(_ context.Context, adj Adjuster) (Summary, error) {
	sum := make(Summary, len(d.Amounts))
	for _, a := range types.SortedAssets(d.Amounts) {
		amt := d.Amounts[a]
		if amt <= 0 {
			return sum, fmt.Errorf("%w: donate %d %s", ErrInvalidOperation, amt, a)
		}
		if err := adj.AdjustDelta(a, -amt); err != nil {
			return sum, fmt.Errorf("donate %s: %w", a, err)
		}
		sum[a] = -amt
	}
	return sum, nil
}

// FixedRateSwap exchanges AmountIn of In for AmountIn*Numerator/Denominator
// of Out. It is a reference exchange for tests and scripted sessions, not a
// pricing engine.
type FixedRateSwap struct {
	In          types.Asset
	Out         types.Asset
	AmountIn    int64
	Numerator   int64
	Denominator int64
}

// Name implements Operation.
func (FixedRateSwap) Name() string { return "swap" }

// AmountOut returns the output amount the swap credits.
func (s FixedRateSwap) AmountOut() (int64, error) {
	if s.AmountIn <= 0 || s.Numerator <= 0 || s.Denominator <= 0 {
		return 0, fmt.Errorf("%w: swap %d %s at %d/%d", ErrInvalidOperation, s.AmountIn, s.In, s.Numerator, s.Denominator)
	}
	out, ok := types.MulDivAmount(s.AmountIn, s.Numerator, s.Denominator)
	if !ok {
		return 0, fmt.Errorf("%w: swap output overflows", ErrInvalidOperation)
	}
	return out, nil
}

// Apply implements Operation.
func (s FixedRateSwap) Apply(_ context.Context, adj Adjuster) (Summary, error) {
	if s.In == s.Out || s.In.IsZero() || s.Out.IsZero() {
		return nil, fmt.Errorf("%w: swap %q for %q", ErrInvalidOperation, s.In, s.Out)
	}
	out, err := s.AmountOut()
	if err != nil {
		return nil, err
	}

	sum := Summary{}
	if err := adj.AdjustDelta(s.In, -s.AmountIn); err != nil {
		return sum, fmt.Errorf("swap in %s: %w", s.In, err)
	}
	sum[s.In] = -s.AmountIn
	if err := adj.AdjustDelta(s.Out, out); err != nil {
		return sum, fmt.Errorf("swap out %s: %w", s.Out, err)
	}
	sum[s.Out] = out
	return sum, nil
}
