// Package auth decides whether a caller may spend claim balances owned by
// someone else. The ledger consults an Authorizer before any balance
// mutation in burn and transfer when the caller is not the owner.
package auth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/xraph/flashledger/types"
)

// ErrDenied is returned by policies that refuse a request.
var ErrDenied = errors.New("flashledger/auth: denied")

// Action names the claim operation being authorized.
type Action string

const (
	ActionBurn     Action = "burn"
	ActionTransfer Action = "transfer"
)

// Request describes one spend of Owner's claim balance by Caller.
type Request struct {
	Caller types.Owner `json:"caller"`
	Owner  types.Owner `json:"owner"`
	Asset  types.Asset `json:"asset"`
	Amount int64       `json:"amount"`
	Action Action      `json:"action"`

	// Pending is what Caller has already been authorized to spend from
	// Owner's asset balance in the current, not yet committed, session.
	Pending int64 `json:"pending"`
}

// Authorizer allows or denies a request. A nil error means allow.
type Authorizer interface {
	Authorize(ctx context.Context, req Request) error
}

// Consumer is implemented by authorizers that track finite grants. Consume
// is called once per authorized request after the session commits.
type Consumer interface {
	Consume(ctx context.Context, req Request) error
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, req Request) error

// Authorize implements Authorizer.
func (f AuthorizerFunc) Authorize(ctx context.Context, req Request) error { return f(ctx, req) }

// OwnerOnly denies every spend on behalf of another owner.
func OwnerOnly() Authorizer {
	return AuthorizerFunc(func(_ context.Context, req Request) error {
		if req.Caller == req.Owner {
			return nil
		}
		return fmt.Errorf("%w: %s may not spend %s of %s", ErrDenied, req.Caller, req.Asset, req.Owner)
	})
}

// Any allows a request if at least one of the given authorizers allows it.
// With no authorizers it denies everything.
func Any(authorizers ...Authorizer) Authorizer {
	return AuthorizerFunc(func(ctx context.Context, req Request) error {
		errs := make([]error, 0, len(authorizers))
		for _, a := range authorizers {
			err := a.Authorize(ctx, req)
			if err == nil {
				return nil
			}
			errs = append(errs, err)
		}
		if len(errs) == 0 {
			return ErrDenied
		}
		return errors.Join(errs...)
	})
}

// Operators grants blanket approval: an owner may approve an operator to
// spend any of its claim balances.
type Operators struct {
	mu       sync.RWMutex
	approved map[types.Owner]map[types.Owner]bool
}

// NewOperators returns an empty operator table.
func NewOperators() *Operators {
	return &Operators{approved: make(map[types.Owner]map[types.Owner]bool)}
}

// SetOperator approves or revokes operator for owner.
func (o *Operators) SetOperator(owner, operator types.Owner, approved bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !approved {
		delete(o.approved[owner], operator)
		return
	}
	if o.approved[owner] == nil {
		o.approved[owner] = make(map[types.Owner]bool)
	}
	o.approved[owner][operator] = true
}

// IsOperator reports whether operator may act for owner.
func (o *Operators) IsOperator(owner, operator types.Owner) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.approved[owner][operator]
}

// Authorize implements Authorizer.
func (o *Operators) Authorize(_ context.Context, req Request) error {
	if req.Caller == req.Owner || o.IsOperator(req.Owner, req.Caller) {
		return nil
	}
	return fmt.Errorf("%w: %s is not an operator for %s", ErrDenied, req.Caller, req.Owner)
}

// Unlimited is the allowance value that is never decremented.
const Unlimited int64 = math.MaxInt64

type allowanceKey struct {
	owner, spender types.Owner
	asset          types.Asset
}

// Allowances grants per-asset spending limits. Spends are checked against
// the remaining allowance minus what the session already spent, and only
// deducted after the session commits.
type Allowances struct {
	mu     sync.RWMutex
	grants map[allowanceKey]int64
}

// NewAllowances returns an empty allowance table.
func NewAllowances() *Allowances {
	return &Allowances{grants: make(map[allowanceKey]int64)}
}

// Approve sets spender's allowance on owner's asset balance. An amount of
// zero revokes it.
func (a *Allowances) Approve(owner, spender types.Owner, asset types.Asset, amount int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := allowanceKey{owner: owner, spender: spender, asset: asset}
	if amount <= 0 {
		delete(a.grants, k)
		return
	}
	a.grants[k] = amount
}

// Allowance returns the remaining allowance.
func (a *Allowances) Allowance(owner, spender types.Owner, asset types.Asset) int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.grants[allowanceKey{owner: owner, spender: spender, asset: asset}]
}

// Authorize implements Authorizer.
func (a *Allowances) Authorize(_ context.Context, req Request) error {
	if req.Caller == req.Owner {
		return nil
	}

	left := a.Allowance(req.Owner, req.Caller, req.Asset)
	if left == Unlimited {
		return nil
	}
	need, ok := types.AddAmount(req.Pending, req.Amount)
	if !ok || need > left {
		return fmt.Errorf("%w: allowance %d of %s for %s is below %d", ErrDenied, left, req.Asset, req.Caller, need)
	}
	return nil
}

// Consume implements Consumer.
func (a *Allowances) Consume(_ context.Context, req Request) error {
	if req.Caller == req.Owner {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	k := allowanceKey{owner: req.Owner, spender: req.Caller, asset: req.Asset}
	left := a.grants[k]
	if left == Unlimited {
		return nil
	}
	if req.Amount > left {
		return fmt.Errorf("%w: allowance exhausted for %s on %s", ErrDenied, req.Caller, req.Asset)
	}
	if left == req.Amount {
		delete(a.grants, k)
		return nil
	}
	a.grants[k] = left - req.Amount
	return nil
}
