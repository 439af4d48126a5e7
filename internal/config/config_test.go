package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: 9090
game:
  min_bet_amount: 0.5
  max_bet_amount: 500
  win_multiplier: 1.95
ledger:
  base_url: http://ledger.local
`

func TestLoadFromFile(t *testing.T) {
	t.Run("yaml with defaults", func(t *testing.T) {
		dir := t.TempDir()
		p := filepath.Join(dir, "dev.yaml")
		require.NoError(t, os.WriteFile(p, []byte(sampleYAML), 0o644))

		cfg, err := Load(context.Background(), Bootstrap{ConfigFile: p})
		require.NoError(t, err)
		cfg.ApplyDefaults()

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, 0.5, cfg.Game.MinBetAmount)
		assert.Equal(t, 500.0, cfg.Game.MaxBetAmount)
		assert.Equal(t, 1.95, cfg.Game.WinMultiplier)
		assert.Equal(t, 2000, cfg.Game.CreditNotifyDelayMS)
		assert.Equal(t, 3600, cfg.Game.SessionTTLSec)
		assert.Equal(t, "http://ledger.local", cfg.Ledger.BaseURL)
		assert.Equal(t, "settlement_retry", cfg.RocketMQ.TopicRetry)
	})

	t.Run("json", func(t *testing.T) {
		dir := t.TempDir()
		p := filepath.Join(dir, "dev.json")
		require.NoError(t, os.WriteFile(p, []byte(`{"game":{"win_multiplier":2}}`), 0o644))

		cfg, err := Load(context.Background(), Bootstrap{ConfigFile: p})
		require.NoError(t, err)
		assert.Equal(t, 2.0, cfg.Game.WinMultiplier)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(context.Background(), Bootstrap{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml")})
		assert.Error(t, err)
	})

	t.Run("unsupported content", func(t *testing.T) {
		_, err := parse(".conf", []byte("[unclosed"))
		assert.Error(t, err)
	})
}

func TestCurrent(t *testing.T) {
	cfg := &Config{}
	cfg.Game.WinMultiplier = 1.98
	SetCurrent(cfg)
	assert.Same(t, cfg, GetCurrent())
}

func TestParseBootstrapDefaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "info")
	b, err := ParseBootstrap()
	require.NoError(t, err)
	assert.Equal(t, "public", b.NacosNamespace)
	assert.Equal(t, "DEFAULT_GROUP", b.NacosGroup)
	assert.Equal(t, "info", b.Log.Level)
}
