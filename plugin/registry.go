package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/flashledger/adapter"
	"github.com/xraph/flashledger/claim"
	"github.com/xraph/flashledger/id"
	"github.com/xraph/flashledger/types"
)

// DefaultTimeout bounds each plugin call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit             []OnInit
	onShutdown         []OnShutdown
	onSessionOpened    []OnSessionOpened
	onSessionCommitted []OnSessionCommitted
	onSessionAborted   []OnSessionAborted
	onClaimMinted      []OnClaimMinted
	onClaimBurned      []OnClaimBurned
	onClaimTransferred []OnClaimTransferred
	onPayout           []OnPayout
	onSettled          []OnSettled
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call plugin timeout. Non-positive values keep
// the current timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnSessionOpened); ok {
		r.onSessionOpened = append(r.onSessionOpened, v)
	}
	if v, ok := p.(OnSessionCommitted); ok {
		r.onSessionCommitted = append(r.onSessionCommitted, v)
	}
	if v, ok := p.(OnSessionAborted); ok {
		r.onSessionAborted = append(r.onSessionAborted, v)
	}
	if v, ok := p.(OnClaimMinted); ok {
		r.onClaimMinted = append(r.onClaimMinted, v)
	}
	if v, ok := p.(OnClaimBurned); ok {
		r.onClaimBurned = append(r.onClaimBurned, v)
	}
	if v, ok := p.(OnClaimTransferred); ok {
		r.onClaimTransferred = append(r.onClaimTransferred, v)
	}
	if v, ok := p.(OnPayout); ok {
		r.onPayout = append(r.onPayout, v)
	}
	if v, ok := p.(OnSettled); ok {
		r.onSettled = append(r.onSettled, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	iface reflect.Type
	name  string
}{
	{reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit"},
	{reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown"},
	{reflect.TypeOf((*OnSessionOpened)(nil)).Elem(), "OnSessionOpened"},
	{reflect.TypeOf((*OnSessionCommitted)(nil)).Elem(), "OnSessionCommitted"},
	{reflect.TypeOf((*OnSessionAborted)(nil)).Elem(), "OnSessionAborted"},
	{reflect.TypeOf((*OnClaimMinted)(nil)).Elem(), "OnClaimMinted"},
	{reflect.TypeOf((*OnClaimBurned)(nil)).Elem(), "OnClaimBurned"},
	{reflect.TypeOf((*OnClaimTransferred)(nil)).Elem(), "OnClaimTransferred"},
	{reflect.TypeOf((*OnPayout)(nil)).Elem(), "OnPayout"},
	{reflect.TypeOf((*OnSettled)(nil)).Elem(), "OnSettled"},
}

// implementedInterfaces returns the hook interfaces implemented by p.
func implementedInterfaces(p Plugin) []string {
	var out []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.iface) {
			out = append(out, h.name)
		}
	}
	return out
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit calls fn for every plugin in list, logging failures. Plugin errors
// never propagate to the ledger.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, list func(*Registry) []T, fn func(T) error) {
	r.mu.RLock()
	plugins := list(r)
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, l any) {
	emit(ctx, r, "OnInit", func(r *Registry) []OnInit { return r.onInit }, func(p OnInit) error {
		return p.OnInit(ctx, l)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", func(r *Registry) []OnShutdown { return r.onShutdown }, func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitSessionOpened emits a session opened event.
func (r *Registry) EmitSessionOpened(ctx context.Context, sessionID id.SessionID, caller types.Owner) {
	emit(ctx, r, "OnSessionOpened", func(r *Registry) []OnSessionOpened { return r.onSessionOpened }, func(p OnSessionOpened) error {
		return p.OnSessionOpened(ctx, sessionID, caller)
	})
}

// EmitSessionCommitted emits a session committed event.
func (r *Registry) EmitSessionCommitted(ctx context.Context, rc *SessionReceipt) {
	emit(ctx, r, "OnSessionCommitted", func(r *Registry) []OnSessionCommitted { return r.onSessionCommitted }, func(p OnSessionCommitted) error {
		return p.OnSessionCommitted(ctx, rc)
	})
}

// EmitSessionAborted emits a session aborted event.
func (r *Registry) EmitSessionAborted(ctx context.Context, rc *SessionReceipt, cause error) {
	emit(ctx, r, "OnSessionAborted", func(r *Registry) []OnSessionAborted { return r.onSessionAborted }, func(p OnSessionAborted) error {
		return p.OnSessionAborted(ctx, rc, cause)
	})
}

// EmitClaimChange dispatches c to the hook matching its kind.
func (r *Registry) EmitClaimChange(ctx context.Context, c claim.Change) {
	switch c.Kind {
	case claim.KindMint:
		emit(ctx, r, "OnClaimMinted", func(r *Registry) []OnClaimMinted { return r.onClaimMinted }, func(p OnClaimMinted) error {
			return p.OnClaimMinted(ctx, c)
		})
	case claim.KindBurn:
		emit(ctx, r, "OnClaimBurned", func(r *Registry) []OnClaimBurned { return r.onClaimBurned }, func(p OnClaimBurned) error {
			return p.OnClaimBurned(ctx, c)
		})
	case claim.KindTransfer:
		emit(ctx, r, "OnClaimTransferred", func(r *Registry) []OnClaimTransferred { return r.onClaimTransferred }, func(p OnClaimTransferred) error {
			return p.OnClaimTransferred(ctx, c)
		})
	}
}

// EmitPayout emits a payout event.
func (r *Registry) EmitPayout(ctx context.Context, t adapter.Transfer) {
	emit(ctx, r, "OnPayout", func(r *Registry) []OnPayout { return r.onPayout }, func(p OnPayout) error {
		return p.OnPayout(ctx, t)
	})
}

// EmitSettled emits a settlement event.
func (r *Registry) EmitSettled(ctx context.Context, rc adapter.Receipt) {
	emit(ctx, r, "OnSettled", func(r *Registry) []OnSettled { return r.onSettled }, func(p OnSettled) error {
		return p.OnSettled(ctx, rc)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block session settlement.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
