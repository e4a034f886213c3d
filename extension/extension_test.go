package extension

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/flashledger"
	"github.com/xraph/flashledger/store/memory"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{})
	assert.Equal(t, DefaultConfig().MaxTouchedAssets, cfg.MaxTouchedAssets)
	assert.Equal(t, DefaultConfig().PluginTimeout, cfg.PluginTimeout)

	cfg = mergeWithDefaults(Config{MaxTouchedAssets: 3})
	assert.Equal(t, 3, cfg.MaxTouchedAssets)
}

func TestMergeConfigurations(t *testing.T) {
	yaml := Config{MaxTouchedAssets: 8}
	prog := Config{MaxTouchedAssets: 2, PluginTimeout: time.Second, DisableMigrate: true}

	cfg := mergeConfigurations(yaml, prog)
	assert.Equal(t, 8, cfg.MaxTouchedAssets, "file config wins")
	assert.Equal(t, time.Second, cfg.PluginTimeout, "programmatic fills gaps")
	assert.True(t, cfg.DisableMigrate)
}

func TestBuildEngineAppliesConfig(t *testing.T) {
	e := New(WithStore(memory.New()), WithMaxTouchedAssets(1))
	e.config = mergeWithDefaults(e.config)

	eng := e.buildEngine()
	require.NotNil(t, eng)
	require.NotNil(t, e.adapter, "a default adapter is installed")

	_, err := eng.Open(context.Background(), "alice", nil, func(_ context.Context, s *flashledger.Session, _ any) (any, error) {
		if err := s.AdjustDelta("usdc", 0); err != nil {
			return nil, err
		}
		return nil, s.AdjustDelta("eth", 0)
	})
	require.ErrorIs(t, err, flashledger.ErrTooManyAssets)
}
