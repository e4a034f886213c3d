package flashledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xraph/flashledger/adapter"
	"github.com/xraph/flashledger/auth"
	"github.com/xraph/flashledger/claim"
	"github.com/xraph/flashledger/delta"
	"github.com/xraph/flashledger/id"
	"github.com/xraph/flashledger/ops"
	"github.com/xraph/flashledger/plugin"
	"github.com/xraph/flashledger/types"
)

type effectKind int

const (
	effectPayout effectKind = iota
	effectReceipt
	effectSync
)

// effect is an adapter call already made by the session that rollback must
// undo.
type effect struct {
	kind     effectKind
	transfer adapter.Transfer
	receipt  adapter.Receipt
}

// Session is the handle to the one open unit of work. It is only valid
// inside the callback passed to Ledger.Open; afterwards every primitive
// returns ErrNoActiveSession.
//
// The first primitive failure is recorded and aborts the session: later
// primitives return that failure and Open rolls everything back. The session
// lock is never held while the adapter, the store or the authorizer runs,
// so those may call back into the session.
type Session struct {
	ledger   *Ledger
	id       id.SessionID
	caller   types.Owner
	openedAt time.Time

	mu      sync.Mutex
	closed  bool
	failure error
	deltas  *delta.Table
	claims  *claim.Journal
	spends  []auth.Request
	effects []effect
}

var _ ops.Adjuster = (*Session)(nil)

func newSession(l *Ledger, caller types.Owner) *Session {
	return &Session{
		ledger:   l,
		id:       id.NewSessionID(),
		caller:   caller,
		openedAt: time.Now().UTC(),
		deltas:   delta.New(l.maxTouchedAssets),
		claims:   claim.NewJournal(),
	}
}

// ID returns the session handle.
func (s *Session) ID() id.SessionID { return s.id }

// Caller returns the identity that opened the session.
func (s *Session) Caller() types.Owner { return s.caller }

// Err returns the failure that will abort the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// Delta returns the session's current delta for asset.
func (s *Session) Delta(asset types.Asset) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deltas.Get(asset)
}

// NonzeroDeltas returns every unresolved delta, sorted by asset.
func (s *Session) NonzeroDeltas() []delta.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deltas.Nonzero()
}

// ClaimBalance returns owner's committed balance plus what this session has
// staged for it.
func (s *Session) ClaimBalance(ctx context.Context, owner types.Owner, asset types.Asset) (int64, error) {
	committed, err := s.ledger.store.GetClaim(ctx, owner, asset)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrNoActiveSession
	}
	v, ok := types.AddAmount(committed, s.claims.Pending(owner, asset))
	if !ok {
		return 0, ErrAmountOverflow
	}
	return v, nil
}

// ──────────────────────────────────────────────────
// Primitives
// ──────────────────────────────────────────────────

// AdjustDelta adds a signed amount to the session's delta for asset. Domain
// operations use it to record what the caller owes (negative) or is owed
// (positive).
func (s *Session) AdjustDelta(asset types.Asset, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usableLocked(); err != nil {
		return err
	}
	if err := validateAsset(asset); err != nil {
		return s.failLocked(err)
	}
	if _, err := s.deltas.Apply(asset, amount); err != nil {
		return s.failLocked(fmt.Errorf("adjust %s by %d: %w", asset, amount, err))
	}
	return nil
}

// Take withdraws amount of a positive delta as an external payout to
// recipient. Exact equality with the delta succeeds.
func (s *Session) Take(ctx context.Context, asset types.Asset, recipient types.Owner, amount int64) error {
	if err := s.debitForTake(asset, recipient, amount); err != nil {
		return err
	}

	t, err := s.ledger.adapter.PayOut(ctx, asset, recipient, amount)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.closed {
			_, _ = s.deltas.Apply(asset, amount) //nolint:errcheck // restores the debit made above
		}
		return s.failLocked(fmt.Errorf("%w: pay out %d %s to %s: %w", ErrTransferFailed, amount, asset, recipient, err))
	}
	if err := s.record(ctx, effect{kind: effectPayout, transfer: t}); err != nil {
		return err
	}

	s.ledger.logger.DebugContext(ctx, "take",
		"session_id", s.id.String(),
		"asset", asset,
		"recipient", recipient,
		"amount", amount,
		"transfer_id", t.ID.String(),
	)
	return nil
}

// debitForTake validates a take and debits the delta before the payout so
// a reentrant call cannot spend the same credit.
func (s *Session) debitForTake(asset types.Asset, recipient types.Owner, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usableLocked(); err != nil {
		return err
	}
	if err := firstErr(validateAsset(asset), validateOwner("recipient", recipient), validateAmount(amount)); err != nil {
		return s.failLocked(err)
	}
	if s.ledger.adapter == nil {
		return s.failLocked(ErrNoAdapter)
	}
	if cur := s.deltas.Get(asset); cur < amount {
		return s.failLocked(fmt.Errorf("%w: take %d %s with delta %d", ErrInsufficientCredit, amount, asset, cur))
	}
	if _, err := s.deltas.Apply(asset, -amount); err != nil {
		return s.failLocked(err)
	}
	return nil
}

// Settle credits the session with whatever the adapter received for asset
// since the last checkpoint, and returns that amount.
func (s *Session) Settle(ctx context.Context, asset types.Asset) (int64, error) {
	if err := s.beforeAdapterCall(asset); err != nil {
		return 0, err
	}

	received, err := s.ledger.adapter.NotifyReceived(ctx, asset)
	switch {
	case err != nil:
		return 0, s.fail(fmt.Errorf("%w: notify received %s: %w", ErrTransferFailed, asset, err))
	case received < 0:
		return 0, s.fail(fmt.Errorf("%w: adapter reported %d %s received", ErrTransferFailed, received, asset))
	case received == 0:
		return 0, s.fail(fmt.Errorf("%w: %s", ErrNothingReceived, asset))
	}

	// Recorded before the credit so rollback reverses it even if the credit
	// fails.
	rc := adapter.Receipt{
		ID:     id.NewReceiptID(),
		Asset:  asset,
		Amount: received,
		At:     time.Now().UTC(),
	}
	if err := s.record(ctx, effect{kind: effectReceipt, receipt: rc}); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return 0, err
	}
	if _, err := s.deltas.Apply(asset, received); err != nil {
		return 0, s.failLocked(fmt.Errorf("settle %s: %w", asset, err))
	}

	s.ledger.logger.DebugContext(ctx, "settle",
		"session_id", s.id.String(),
		"asset", asset,
		"received", received,
	)
	return received, nil
}

// Sync checkpoints the adapter's holdings of asset so that a later Settle
// only credits value that arrives after this call.
func (s *Session) Sync(ctx context.Context, asset types.Asset) error {
	if err := s.beforeAdapterCall(asset); err != nil {
		return err
	}

	skipped, err := s.ledger.adapter.Sync(ctx, asset)
	if err != nil {
		return s.fail(fmt.Errorf("%w: sync %s: %w", ErrTransferFailed, asset, err))
	}
	if skipped <= 0 {
		return nil
	}
	return s.record(ctx, effect{kind: effectSync, receipt: adapter.Receipt{Asset: asset, Amount: skipped, At: time.Now().UTC()}})
}

// Mint converts amount of a positive delta into a claim balance for owner.
// The balance is committed only if the session settles.
func (s *Session) Mint(ctx context.Context, owner types.Owner, asset types.Asset, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usableLocked(); err != nil {
		return err
	}
	if err := firstErr(validateOwner("owner", owner), validateAsset(asset), validateAmount(amount)); err != nil {
		return s.failLocked(err)
	}
	if cur := s.deltas.Get(asset); cur < amount {
		return s.failLocked(fmt.Errorf("%w: mint %d %s with delta %d", ErrInsufficientCredit, amount, asset, cur))
	}

	c := claim.Change{
		ID:     id.NewClaimChangeID(),
		Kind:   claim.KindMint,
		Owner:  owner,
		Asset:  asset,
		Amount: amount,
		At:     time.Now().UTC(),
	}
	if err := s.claims.Stage(c); err != nil {
		return s.failLocked(fmt.Errorf("mint %d %s for %s: %w", amount, asset, owner, err))
	}
	if _, err := s.deltas.Apply(asset, -amount); err != nil {
		return s.failLocked(err)
	}

	s.ledger.logger.DebugContext(ctx, "mint",
		"session_id", s.id.String(),
		"owner", owner,
		"asset", asset,
		"amount", amount,
	)
	return nil
}

// Burn consumes amount of owner's claim balance to offset a debt on asset.
// When the session caller is not owner the ledger's authorizer must allow
// the spend first.
func (s *Session) Burn(ctx context.Context, owner types.Owner, asset types.Asset, amount int64) error {
	if err := s.check(firstErr(validateOwner("owner", owner), validateAsset(asset), validateAmount(amount))); err != nil {
		return err
	}
	if err := s.checkDelta(asset, amount); err != nil {
		return err
	}

	req, err := s.spend(ctx, owner, asset, amount, auth.ActionBurn)
	if err != nil {
		return err
	}
	committed, err := s.ledger.store.GetClaim(ctx, owner, asset)
	if err != nil {
		return s.fail(fmt.Errorf("burn: read claim of %s: %w", owner, err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	if err := s.availableLocked(owner, asset, committed, amount); err != nil {
		return s.failLocked(fmt.Errorf("burn %d %s of %s: %w", amount, asset, owner, err))
	}
	if _, err := s.deltas.Check(asset, amount); err != nil {
		return s.failLocked(fmt.Errorf("burn %d %s: %w", amount, asset, err))
	}

	c := claim.Change{
		ID:     id.NewClaimChangeID(),
		Kind:   claim.KindBurn,
		Owner:  owner,
		Asset:  asset,
		Amount: amount,
		At:     time.Now().UTC(),
	}
	if err := s.claims.Stage(c); err != nil {
		return s.failLocked(err)
	}
	if _, err := s.deltas.Apply(asset, amount); err != nil {
		return s.failLocked(err)
	}
	s.spends = append(s.spends, req)

	s.ledger.logger.DebugContext(ctx, "burn",
		"session_id", s.id.String(),
		"owner", owner,
		"asset", asset,
		"amount", amount,
	)
	return nil
}

// TransferClaim stages a move of amount of asset from one claim balance to
// another. It does not touch any delta and rolls back with the session.
func (s *Session) TransferClaim(ctx context.Context, from, to types.Owner, asset types.Asset, amount int64) error {
	if err := s.check(validateTransfer(s.caller, from, to, asset, amount)); err != nil {
		return err
	}

	req, err := s.spend(ctx, from, asset, amount, auth.ActionTransfer)
	if err != nil {
		return err
	}
	committed, err := s.ledger.store.GetClaim(ctx, from, asset)
	if err != nil {
		return s.fail(fmt.Errorf("transfer: read claim of %s: %w", from, err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	if err := s.availableLocked(from, asset, committed, amount); err != nil {
		return s.failLocked(fmt.Errorf("transfer %d %s from %s: %w", amount, asset, from, err))
	}

	c := claim.Change{
		ID:           id.NewClaimChangeID(),
		Kind:         claim.KindTransfer,
		Owner:        from,
		Counterparty: to,
		Asset:        asset,
		Amount:       amount,
		At:           time.Now().UTC(),
	}
	if err := s.claims.Stage(c); err != nil {
		return s.failLocked(err)
	}
	s.spends = append(s.spends, req)

	s.ledger.logger.DebugContext(ctx, "transfer claim",
		"session_id", s.id.String(),
		"from", from,
		"to", to,
		"asset", asset,
		"amount", amount,
	)
	return nil
}

// Execute runs a domain operation against the session and returns its
// summary. A failing operation aborts the session.
func (s *Session) Execute(ctx context.Context, op ops.Operation) (ops.Summary, error) {
	if err := s.check(nil); err != nil {
		return nil, err
	}
	sum, err := op.Apply(ctx, s)
	if err != nil {
		return sum, s.fail(fmt.Errorf("%s: %w", op.Name(), err))
	}
	return sum, nil
}

// ──────────────────────────────────────────────────
// Internals
// ──────────────────────────────────────────────────

func (s *Session) usableLocked() error {
	if s.closed {
		return ErrNoActiveSession
	}
	return s.failure
}

// failLocked records err as the session failure unless one is already
// recorded or the session is closed, and returns err.
func (s *Session) failLocked(err error) error {
	if !s.closed && s.failure == nil {
		s.failure = err
	}
	return err
}

func (s *Session) fail(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failLocked(err)
}

// check returns the usability error, or records and returns validation
// error err.
func (s *Session) check(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if uerr := s.usableLocked(); uerr != nil {
		return uerr
	}
	if err != nil {
		return s.failLocked(err)
	}
	return nil
}

// checkDelta fails the session if crediting amount to asset would overflow
// or exceed the touched-asset limit. Nothing is applied.
func (s *Session) checkDelta(asset types.Asset, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.deltas.Check(asset, amount); err != nil {
		return s.failLocked(fmt.Errorf("%s: %w", asset, err))
	}
	return nil
}

func (s *Session) beforeAdapterCall(asset types.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	if err := validateAsset(asset); err != nil {
		return s.failLocked(err)
	}
	if s.ledger.adapter == nil {
		return s.failLocked(ErrNoAdapter)
	}
	if _, err := s.deltas.Check(asset, 0); err != nil {
		return s.failLocked(fmt.Errorf("%s: %w", asset, err))
	}
	return nil
}

// spend authorizes the session caller to spend amount of owner's asset.
func (s *Session) spend(ctx context.Context, owner types.Owner, asset types.Asset, amount int64, action auth.Action) (auth.Request, error) {
	req := auth.Request{Caller: s.caller, Owner: owner, Asset: asset, Amount: amount, Action: action}
	if s.caller == owner {
		return req, nil
	}

	s.mu.Lock()
	for _, prev := range s.spends {
		if prev.Owner == owner && prev.Asset == asset {
			req.Pending += prev.Amount
		}
	}
	s.mu.Unlock()

	if err := s.ledger.authorize(ctx, req); err != nil {
		return req, s.fail(err)
	}
	return req, nil
}

// availableLocked checks that committed plus staged balance covers amount.
func (s *Session) availableLocked(owner types.Owner, asset types.Asset, committed, amount int64) error {
	avail, ok := types.AddAmount(committed, s.claims.Pending(owner, asset))
	if !ok {
		return ErrAmountOverflow
	}
	if avail < amount {
		return fmt.Errorf("%w: holds %d, needs %d", ErrInsufficientClaimBalance, avail, amount)
	}
	return nil
}

// record appends an adapter effect for rollback. If the session already
// closed while the adapter ran, the effect is undone immediately.
func (s *Session) record(ctx context.Context, e effect) error {
	s.mu.Lock()
	if !s.closed {
		s.effects = append(s.effects, e)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.ledger.undo(context.WithoutCancel(ctx), e); err != nil {
		s.ledger.logger.Error("late adapter effect not reversed",
			"session_id", s.id.String(),
			"error", err,
		)
		return errors.Join(ErrNoActiveSession, err)
	}
	return ErrNoActiveSession
}

func (s *Session) run(ctx context.Context, fn Callback, payload any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: %v", ErrCallbackPanicked, r)
		}
	}()
	return fn(ctx, s, payload)
}

// close ends the session. It decides the outcome, commits staged claims on
// success and rolls back adapter effects on failure.
func (s *Session) close(ctx context.Context, cbErr error) (*plugin.SessionReceipt, error) {
	s.mu.Lock()
	s.closed = true
	cause := cbErr
	if cause == nil {
		cause = s.failure
	}
	if cause == nil {
		if !s.deltas.Settled() {
			cause = newUnresolvedDeltaError(s.deltas.Nonzero())
		}
	}
	rc := &plugin.SessionReceipt{
		ID:       s.id,
		Caller:   s.caller,
		OpenedAt: s.openedAt,
		Touched:  s.deltas.Touched(),
		Changes:  s.claims.Changes(),
	}
	net := s.claims.Net()
	effects := s.effects
	spends := s.spends
	s.deltas.Reset()
	s.claims.Reset()
	s.effects = nil
	s.spends = nil
	s.mu.Unlock()

	for _, e := range effects {
		switch e.kind {
		case effectPayout:
			rc.Payouts = append(rc.Payouts, e.transfer)
		case effectReceipt:
			rc.Receipts = append(rc.Receipts, e.receipt)
		}
	}

	l := s.ledger
	if cause == nil && len(net) > 0 {
		if err := l.store.ApplyClaims(ctx, net); err != nil {
			cause = fmt.Errorf("flashledger: commit claims: %w", err)
		}
	}
	rc.Duration = time.Since(s.openedAt)

	if cause != nil {
		if err := l.rollback(ctx, effects); err != nil {
			l.logger.Error("session rollback failed",
				"session_id", s.id.String(),
				"cause", cause,
				"error", err,
			)
			return rc, errors.Join(cause, err)
		}
		l.logger.Warn("session aborted",
			"session_id", s.id.String(),
			"caller", s.caller,
			"reverted_effects", len(effects),
			"error", cause,
		)
		return rc, cause
	}

	if sc, ok := l.adapter.(adapter.Scoped); ok {
		if err := sc.EndScope(ctx, true); err != nil {
			l.logger.Warn("adapter scope close failed",
				"session_id", s.id.String(),
				"error", err,
			)
		}
	}
	l.consume(ctx, spends)

	l.logger.Info("session committed",
		"session_id", s.id.String(),
		"caller", s.caller,
		"touched", len(rc.Touched),
		"claim_changes", len(rc.Changes),
		"payouts", len(rc.Payouts),
		"receipts", len(rc.Receipts),
		"duration", rc.Duration,
	)
	return rc, nil
}

// rollback reverses adapter effects in reverse call order, then returns
// deposits made during the session to their senders. It keeps going after a
// failure so as much as possible is undone.
func (l *Ledger) rollback(ctx context.Context, effects []effect) error {
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for i := len(effects) - 1; i >= 0; i-- {
		if err := l.undo(ctx, effects[i]); err != nil {
			errs = append(errs, err)
		}
	}
	if sc, ok := l.adapter.(adapter.Scoped); ok {
		if err := sc.EndScope(ctx, false); err != nil {
			errs = append(errs, fmt.Errorf("refund session deposits: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrRollbackFailed, errors.Join(errs...))
	}
	return nil
}

func (l *Ledger) undo(ctx context.Context, e effect) error {
	switch e.kind {
	case effectPayout:
		if err := l.adapter.ReversePayOut(ctx, e.transfer); err != nil {
			return fmt.Errorf("reverse payout %s: %w", e.transfer.ID, err)
		}
	case effectReceipt, effectSync:
		if err := l.adapter.ReverseReceipt(ctx, e.receipt.Asset, e.receipt.Amount); err != nil {
			return fmt.Errorf("reverse receipt %d %s: %w", e.receipt.Amount, e.receipt.Asset, err)
		}
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
