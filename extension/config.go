package extension

import "time"

// Config holds the flashledger extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.flashledger" or "flashledger" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// MaxTouchedAssets caps how many distinct assets one session may touch
	// (default: 64, 0 in a config file means default).
	MaxTouchedAssets int `json:"max_touched_assets" mapstructure:"max_touched_assets" yaml:"max_touched_assets"`

	// PluginTimeout bounds each plugin hook call (default: 5s).
	PluginTimeout time.Duration `json:"plugin_timeout" mapstructure:"plugin_timeout" yaml:"plugin_timeout"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxTouchedAssets: 64,
		PluginTimeout:    5 * time.Second,
	}
}
