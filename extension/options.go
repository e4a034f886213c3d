package extension

import (
	"time"

	"github.com/xraph/flashledger"
	"github.com/xraph/flashledger/adapter"
	"github.com/xraph/flashledger/plugin"
	"github.com/xraph/flashledger/store"
)

// Option configures the flashledger Forge extension.
type Option func(*Extension)

// WithStore sets the claim store for the ledger engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithAdapter sets the external-transfer adapter. Without one the
// extension runs an in-memory adapter.Vault.
func WithAdapter(a adapter.Adapter) Option {
	return func(e *Extension) {
		e.adapter = a
	}
}

// WithLedgerOption passes a flashledger.Option through to the underlying engine.
func WithLedgerOption(opt flashledger.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a ledger plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, flashledger.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithMaxTouchedAssets caps the distinct assets one session may touch.
func WithMaxTouchedAssets(n int) Option {
	return func(e *Extension) { e.config.MaxTouchedAssets = n }
}

// WithPluginTimeout sets the per-hook plugin timeout.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.PluginTimeout = d }
}
