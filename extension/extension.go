// Package extension provides the Forge extension adapter for flashledger.
//
// It implements the forge.Extension interface to integrate the ledger
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.flashledger" or
// "flashledger" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/flashledger"
	"github.com/xraph/flashledger/adapter"
	"github.com/xraph/flashledger/store"
	"github.com/xraph/flashledger/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "flashledger"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Flash accounting ledger with deferred settlement"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts flashledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *flashledger.Ledger
	store      store.Store
	adapter    adapter.Adapter
	ledgerOpts []flashledger.Option
}

// New creates a new flashledger Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Ledger instance.
// This is nil until Register is called.
func (e *Extension) Engine() *flashledger.Ledger { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the ledger, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	e.engine = e.buildEngine()

	return vessel.Provide(fapp.Container(), func() (*flashledger.Ledger, error) {
		return e.engine, nil
	})
}

// buildEngine fills in default backends and constructs the ledger.
func (e *Extension) buildEngine() *flashledger.Ledger {
	if e.store == nil {
		e.store = memory.New()
	}
	if e.adapter == nil {
		e.adapter = adapter.NewVault()
	}
	return flashledger.New(e.store, e.buildLedgerOpts()...)
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("flashledger: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("flashledger: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildLedgerOpts constructs flashledger.Option values from the resolved config.
func (e *Extension) buildLedgerOpts() []flashledger.Option {
	opts := make([]flashledger.Option, 0, len(e.ledgerOpts)+3)

	opts = append(opts, flashledger.WithAdapter(e.adapter))
	if e.config.MaxTouchedAssets > 0 {
		opts = append(opts, flashledger.WithMaxTouchedAssets(e.config.MaxTouchedAssets))
	}
	if e.config.PluginTimeout > 0 {
		opts = append(opts, flashledger.WithPluginTimeout(e.config.PluginTimeout))
	}

	// Pass-through options go last so they win.
	opts = append(opts, e.ledgerOpts...)

	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("flashledger: configuration is required but not found in config files; " +
				"ensure 'extensions.flashledger' or 'flashledger' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("flashledger: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("max_touched_assets", e.config.MaxTouchedAssets),
		forge.F("plugin_timeout", e.config.PluginTimeout),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.flashledger", "flashledger"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("flashledger: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("flashledger: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.MaxTouchedAssets == 0 {
		cfg.MaxTouchedAssets = defaults.MaxTouchedAssets
	}
	if cfg.PluginTimeout == 0 {
		cfg.PluginTimeout = defaults.PluginTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if yamlConfig.MaxTouchedAssets == 0 && programmaticConfig.MaxTouchedAssets != 0 {
		yamlConfig.MaxTouchedAssets = programmaticConfig.MaxTouchedAssets
	}
	if yamlConfig.PluginTimeout == 0 && programmaticConfig.PluginTimeout != 0 {
		yamlConfig.PluginTimeout = programmaticConfig.PluginTimeout
	}
	return mergeWithDefaults(yamlConfig)
}
