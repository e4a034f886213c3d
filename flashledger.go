package flashledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/flashledger/adapter"
	"github.com/xraph/flashledger/auth"
	"github.com/xraph/flashledger/claim"
	"github.com/xraph/flashledger/id"
	"github.com/xraph/flashledger/plugin"
	"github.com/xraph/flashledger/store"
	"github.com/xraph/flashledger/types"
)

// tracerName identifies flashledger spans.
const tracerName = "github.com/xraph/flashledger"

// Callback is the unit of work run by Open. It receives the open session
// handle and the opener's payload; its result is returned to the opener
// only if the session settles.
type Callback func(ctx context.Context, s *Session, payload any) (any, error)

// Ledger is the flash accounting engine. It owns at most one open session
// at a time and the persistent claim ledger behind it.
type Ledger struct {
	store      store.Store
	adapter    adapter.Adapter
	authorizer auth.Authorizer
	plugins    *plugin.Registry
	logger     *slog.Logger
	tracer     trace.Tracer

	maxTouchedAssets int

	open    atomic.Bool
	stopped atomic.Bool
}

// New creates a new Ledger backed by s.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:      s,
		authorizer: auth.OwnerOnly(),
		plugins:    plugin.NewRegistry(),
		logger:     slog.Default(),
		tracer:     otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithTracer sets the tracer used for session spans. The default is the
// global provider's tracer.
func WithTracer(t trace.Tracer) Option {
	return func(l *Ledger) {
		if t != nil {
			l.tracer = t
		}
	}
}

// WithAdapter sets the external-transfer adapter used by Take, Settle and
// Sync.
func WithAdapter(a adapter.Adapter) Option {
	return func(l *Ledger) {
		l.adapter = a
	}
}

// WithAuthorizer sets the policy consulted when a caller spends another
// owner's claim balance. The default is auth.OwnerOnly.
func WithAuthorizer(a auth.Authorizer) Option {
	return func(l *Ledger) {
		if a != nil {
			l.authorizer = a
		}
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPluginTimeout bounds each plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		l.plugins.WithTimeout(d)
	}
}

// WithMaxTouchedAssets limits how many distinct assets one session may
// touch. Zero means unlimited.
func WithMaxTouchedAssets(n int) Option {
	return func(l *Ledger) {
		l.maxTouchedAssets = n
	}
}

// Start migrates the store and initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.store.Migrate(ctx); err != nil {
		return fmt.Errorf("flashledger: migrate: %w", err)
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("flashledger started",
		"plugins", l.plugins.Count(),
		"max_touched_assets", l.maxTouchedAssets,
		"adapter", l.adapter != nil,
	)

	return nil
}

// Stop refuses new sessions, shuts plugins down and closes the store.
func (l *Ledger) Stop() error {
	l.stopped.Store(true)

	ctx := context.Background()
	l.plugins.EmitShutdown(ctx)

	l.logger.Info("flashledger stopped")

	return l.store.Close()
}

// Store returns the claim store.
func (l *Ledger) Store() store.Store { return l.store }

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

// IsOpen reports whether a session is currently open.
func (l *Ledger) IsOpen() bool { return l.open.Load() }

// ──────────────────────────────────────────────────
// Session management
// ──────────────────────────────────────────────────

// Open runs fn inside a new session opened by caller. When fn returns, every
// delta touched in the session must be zero; the staged claim changes are
// then committed and fn's result is returned. Any failure rolls the whole
// session back: staged claims are discarded and adapter payouts and
// receipts are reversed.
//
// Open fails with ErrAlreadyOpen while another session is open, including
// when called from inside fn.
func (l *Ledger) Open(ctx context.Context, caller types.Owner, payload any, fn Callback) (any, error) {
	if err := validateOwner("caller", caller); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, ErrNilCallback
	}
	if l.stopped.Load() {
		return nil, ErrLedgerStopped
	}
	if !l.open.CompareAndSwap(false, true) {
		return nil, ErrAlreadyOpen
	}

	s := newSession(l, caller)
	ctx, span := l.tracer.Start(ctx, "flashledger.session", trace.WithAttributes(
		attribute.String("flashledger.session_id", s.id.String()),
		attribute.String("flashledger.caller", string(caller)),
	))
	defer span.End()

	l.logger.Debug("session opened",
		"session_id", s.id.String(),
		"caller", caller,
	)
	l.plugins.EmitSessionOpened(ctx, s.id, caller)

	result, rc, err := l.execute(ctx, s, fn, payload)

	span.SetAttributes(
		attribute.Int("flashledger.touched_assets", len(rc.Touched)),
		attribute.Int("flashledger.claim_changes", len(rc.Changes)),
		attribute.Int("flashledger.payouts", len(rc.Payouts)),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.plugins.EmitSessionAborted(ctx, rc, err)
		return nil, err
	}
	span.SetStatus(codes.Ok, "")

	l.plugins.EmitSessionCommitted(ctx, rc)
	for _, c := range rc.Changes {
		l.plugins.EmitClaimChange(ctx, c)
	}
	for _, t := range rc.Payouts {
		l.plugins.EmitPayout(ctx, t)
	}
	for _, r := range rc.Receipts {
		l.plugins.EmitSettled(ctx, r)
	}

	return result, nil
}

// execute runs the callback and closes s. The open flag is released before
// plugins observe the outcome, and also when the store panics mid-commit.
func (l *Ledger) execute(ctx context.Context, s *Session, fn Callback, payload any) (any, *plugin.SessionReceipt, error) {
	defer l.open.Store(false)

	if sc, ok := l.adapter.(adapter.Scoped); ok {
		sc.BeginScope(ctx)
	}
	result, cbErr := s.run(ctx, fn, payload)
	rc, err := s.close(ctx, cbErr)
	return result, rc, err
}

// ──────────────────────────────────────────────────
// Claim ledger
// ──────────────────────────────────────────────────

// ClaimBalance returns owner's committed claim balance for asset.
func (l *Ledger) ClaimBalance(ctx context.Context, owner types.Owner, asset types.Asset) (int64, error) {
	return l.store.GetClaim(ctx, owner, asset)
}

// ListClaims returns owner's nonzero committed claim balances.
func (l *Ledger) ListClaims(ctx context.Context, owner types.Owner, opts claim.ListOpts) ([]*claim.Balance, error) {
	return l.store.ListClaims(ctx, owner, opts)
}

// TotalSupply returns the sum of all committed claim balances of asset.
func (l *Ledger) TotalSupply(ctx context.Context, asset types.Asset) (int64, error) {
	return l.store.TotalSupply(ctx, asset)
}

// TransferClaim moves amount of asset between claim balances and commits
// immediately. It needs no session and never touches a delta. Inside a
// session callback use Session.TransferClaim so the move rolls back with
// the session.
func (l *Ledger) TransferClaim(ctx context.Context, caller, from, to types.Owner, asset types.Asset, amount int64) error {
	if err := validateTransfer(caller, from, to, asset, amount); err != nil {
		return err
	}

	req := auth.Request{Caller: caller, Owner: from, Asset: asset, Amount: amount, Action: auth.ActionTransfer}
	if err := l.authorize(ctx, req); err != nil {
		return err
	}

	have, err := l.store.GetClaim(ctx, from, asset)
	if err != nil {
		return fmt.Errorf("flashledger: transfer claim: %w", err)
	}
	if have < amount {
		return fmt.Errorf("%w: %s holds %d %s, transfer %d", ErrInsufficientClaimBalance, from, have, asset, amount)
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
	if err := l.store.ApplyClaims(ctx, c.Adjustments()); err != nil {
		return fmt.Errorf("flashledger: transfer claim: %w", err)
	}
	l.consume(ctx, []auth.Request{req})

	l.logger.Info("claim transferred",
		"from", from,
		"to", to,
		"asset", asset,
		"amount", amount,
	)
	l.plugins.EmitClaimChange(ctx, c)

	return nil
}

func (l *Ledger) authorize(ctx context.Context, req auth.Request) error {
	if req.Caller == req.Owner {
		return nil
	}
	if err := l.authorizer.Authorize(ctx, req); err != nil {
		return fmt.Errorf("%w: %s %d %s of %s by %s: %w",
			ErrAuthorizationDenied, req.Action, req.Amount, req.Asset, req.Owner, req.Caller, err)
	}
	return nil
}

// consume reports committed spends to a finite-grant authorizer. The spends
// are already committed, so failures are logged rather than returned.
func (l *Ledger) consume(ctx context.Context, spends []auth.Request) {
	c, ok := l.authorizer.(auth.Consumer)
	if !ok {
		return
	}
	for _, req := range spends {
		if req.Caller == req.Owner {
			continue
		}
		if err := c.Consume(ctx, req); err != nil {
			l.logger.Warn("authorizer consume failed",
				"caller", req.Caller,
				"owner", req.Owner,
				"asset", req.Asset,
				"amount", req.Amount,
				"error", err,
			)
		}
	}
}

// ──────────────────────────────────────────────────
// Validation
// ──────────────────────────────────────────────────

func validateAsset(asset types.Asset) error {
	if asset.IsZero() {
		return ValidationError{Field: "asset", Message: "must not be empty", Err: ErrInvalidAsset}
	}
	return nil
}

func validateOwner(field string, owner types.Owner) error {
	if owner.IsZero() {
		return ValidationError{Field: field, Message: "must not be empty", Err: ErrInvalidOwner}
	}
	return nil
}

func validateAmount(amount int64) error {
	if amount <= 0 {
		return ValidationError{Field: "amount", Message: fmt.Sprintf("%d is not positive", amount), Err: ErrInvalidAmount}
	}
	return nil
}

func validateTransfer(caller, from, to types.Owner, asset types.Asset, amount int64) error {
	var errs MultiError
	errs.Add(validateOwner("caller", caller))
	errs.Add(validateOwner("from", from))
	errs.Add(validateOwner("to", to))
	errs.Add(validateAsset(asset))
	errs.Add(validateAmount(amount))
	return errs.ErrorOrNil()
}
