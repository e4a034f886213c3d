package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xraph/flashledger/id"
	"github.com/xraph/flashledger/types"
)

// PayOutHook runs after a payout has been applied, without the vault lock
// held. It may call back into the ledger. A non-nil error reverses the
// payout and fails it.
type PayOutHook func(ctx context.Context, t Transfer) error

// Vault is an in-memory Adapter. It tracks external account balances, what
// the ledger holds per asset, and the synced checkpoint per asset. Value
// deposited after the last checkpoint is what NotifyReceived reports.
//
// Deposits made while a session scope is open are journaled and refunded
// if the session aborts.
type Vault struct {
	mu        sync.Mutex
	external  map[types.Owner]map[types.Asset]int64
	holdings  map[types.Asset]int64
	reserves  map[types.Asset]int64
	transfers map[string]Transfer
	onPayOut  PayOutHook

	scoped   bool
	deposits []deposit
}

type deposit struct {
	from   types.Owner
	asset  types.Asset
	amount int64
}

var _ Scoped = (*Vault)(nil)

// NewVault returns an empty vault.
func NewVault() *Vault {
	return &Vault{
		external:  make(map[types.Owner]map[types.Asset]int64),
		holdings:  make(map[types.Asset]int64),
		reserves:  make(map[types.Asset]int64),
		transfers: make(map[string]Transfer),
	}
}

// OnPayOut installs a hook invoked after every payout.
func (v *Vault) OnPayOut(h PayOutHook) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onPayOut = h
}

// Fund credits an external account, as if value arrived from outside the
// system entirely.
func (v *Vault) Fund(owner types.Owner, asset types.Asset, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	next, ok := types.AddAmount(v.external[owner][asset], amount)
	if !ok {
		return fmt.Errorf("adapter: fund %s %s: overflow", owner, asset)
	}
	v.setExternal(owner, asset, next)
	return nil
}

// Deposit moves amount of asset from an external account into the vault.
// The value becomes visible to the next NotifyReceived.
func (v *Vault) Deposit(_ context.Context, from types.Owner, asset types.Asset, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	have := v.external[from][asset]
	if have < amount {
		return fmt.Errorf("%w: %s holds %d %s, deposit %d", ErrInsufficientFunds, from, have, asset, amount)
	}
	held, ok := types.AddAmount(v.holdings[asset], amount)
	if !ok {
		return fmt.Errorf("adapter: deposit %s: overflow", asset)
	}
	v.setExternal(from, asset, have-amount)
	v.holdings[asset] = held
	if v.scoped {
		v.deposits = append(v.deposits, deposit{from: from, asset: asset, amount: amount})
	}
	return nil
}

// ExternalBalance returns what an external account holds.
func (v *Vault) ExternalBalance(owner types.Owner, asset types.Asset) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.external[owner][asset]
}

// Holdings returns what the vault holds for asset.
func (v *Vault) Holdings(asset types.Asset) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.holdings[asset]
}

// Reserves returns the synced checkpoint for asset.
func (v *Vault) Reserves(asset types.Asset) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.reserves[asset]
}

// PayOut implements Adapter.
func (v *Vault) PayOut(ctx context.Context, asset types.Asset, recipient types.Owner, amount int64) (Transfer, error) {
	if amount <= 0 {
		return Transfer{}, ErrInvalidAmount
	}

	v.mu.Lock()
	if v.holdings[asset] < amount {
		held := v.holdings[asset]
		v.mu.Unlock()
		return Transfer{}, fmt.Errorf("%w: hold %d %s, pay %d", ErrInsufficientReserves, held, asset, amount)
	}
	recv, ok := types.AddAmount(v.external[recipient][asset], amount)
	if !ok {
		v.mu.Unlock()
		return Transfer{}, fmt.Errorf("adapter: pay out %s to %s: overflow", asset, recipient)
	}

	t := Transfer{
		ID:        id.NewTransferID(),
		Asset:     asset,
		Recipient: recipient,
		Amount:    amount,
		At:        time.Now().UTC(),
	}
	v.holdings[asset] -= amount
	v.reserves[asset] -= amount
	v.setExternal(recipient, asset, recv)
	v.transfers[t.ID.String()] = t
	hook := v.onPayOut
	v.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, t); err != nil {
			if revErr := v.ReversePayOut(ctx, t); revErr != nil {
				return Transfer{}, fmt.Errorf("adapter: pay out hook: %w (reverse: %v)", err, revErr)
			}
			return Transfer{}, fmt.Errorf("adapter: pay out hook: %w", err)
		}
	}

	return t, nil
}

// NotifyReceived implements Adapter.
func (v *Vault) NotifyReceived(_ context.Context, asset types.Asset) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	received := v.holdings[asset] - v.reserves[asset]
	if received < 0 {
		received = 0
	}
	v.reserves[asset] = v.holdings[asset]
	return received, nil
}

// Sync implements Adapter.
func (v *Vault) Sync(ctx context.Context, asset types.Asset) (int64, error) {
	return v.NotifyReceived(ctx, asset)
}

// ReversePayOut implements Adapter.
func (v *Vault) ReversePayOut(_ context.Context, t Transfer) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.transfers[t.ID.String()]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTransfer, t.ID)
	}

	// A recipient that already deposited the payout back left it in the
	// vault's unsynced holdings; claw the shortfall back from there.
	have := min(v.external[t.Recipient][t.Asset], t.Amount)
	shortfall := t.Amount - have
	if unsynced := v.holdings[t.Asset] - v.reserves[t.Asset]; shortfall > unsynced {
		return fmt.Errorf("%w: recipient %s already moved %s", ErrInsufficientFunds, t.Recipient, t.ID)
	}
	v.setExternal(t.Recipient, t.Asset, v.external[t.Recipient][t.Asset]-have)
	v.holdings[t.Asset] += have
	v.reserves[t.Asset] += t.Amount
	v.unjournal(t.Recipient, t.Asset, shortfall)
	delete(v.transfers, t.ID.String())
	return nil
}

// unjournal drops up to amount of from's scoped deposits of asset, newest
// first. A clawed-back redeposit must not be refunded again.
func (v *Vault) unjournal(from types.Owner, asset types.Asset, amount int64) {
	for i := len(v.deposits) - 1; i >= 0 && amount > 0; i-- {
		d := &v.deposits[i]
		if d.from != from || d.asset != asset {
			continue
		}
		n := min(d.amount, amount)
		d.amount -= n
		amount -= n
	}
}

// ReverseReceipt implements Adapter.
func (v *Vault) ReverseReceipt(_ context.Context, asset types.Asset, amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.reserves[asset] -= amount
	return nil
}

// BeginScope implements Scoped. Deposits from here on belong to the session.
func (v *Vault) BeginScope(context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scoped = true
	v.deposits = nil
}

// EndScope implements Scoped. Without a commit, deposits made in the scope
// go back to their senders, newest first.
func (v *Vault) EndScope(_ context.Context, committed bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	deposits := v.deposits
	v.scoped = false
	v.deposits = nil
	if committed {
		return nil
	}

	var errs []error
	for i := len(deposits) - 1; i >= 0; i-- {
		d := deposits[i]
		if d.amount == 0 {
			continue
		}
		// Only value above the checkpoint can leave; anything synced was
		// already credited and its receipt is still standing.
		if unsynced := v.holdings[d.asset] - v.reserves[d.asset]; unsynced < d.amount {
			errs = append(errs, fmt.Errorf("%w: refund %d %s to %s, %d unsynced",
				ErrInsufficientReserves, d.amount, d.asset, d.from, unsynced))
			continue
		}
		back, ok := types.AddAmount(v.external[d.from][d.asset], d.amount)
		if !ok {
			errs = append(errs, fmt.Errorf("adapter: refund %s to %s: overflow", d.asset, d.from))
			continue
		}
		v.holdings[d.asset] -= d.amount
		v.setExternal(d.from, d.asset, back)
	}
	return errors.Join(errs...)
}

func (v *Vault) setExternal(owner types.Owner, asset types.Asset, amount int64) {
	if v.external[owner] == nil {
		v.external[owner] = make(map[types.Asset]int64)
	}
	v.external[owner][asset] = amount
}
