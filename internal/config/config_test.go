package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.InDelta(t, 5.0, cfg.Consensus.PositiveThreshold, 0)
	assert.InDelta(t, 3.0, cfg.Consensus.NegativeThreshold, 0)
	assert.Equal(t, 10, cfg.Consensus.ConfirmationThreshold)
	assert.Equal(t, 20, cfg.Reports.DailyQuota)
	assert.InDelta(t, 10.0, cfg.Reports.ReopenRadiusMeters, 0)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[consensus]
positive_threshold = 7.5
confirmation_threshold = 4

[reports]
daily_quota = 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file::memory:")
	t.Setenv("PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.InDelta(t, 7.5, cfg.Consensus.PositiveThreshold, 0)
	assert.Equal(t, 4, cfg.Consensus.ConfirmationThreshold)
	// 未在文件中设置的字段保留默认值
	assert.InDelta(t, 3.0, cfg.Consensus.NegativeThreshold, 0)
	assert.Equal(t, 3, cfg.Reports.DailyQuota)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file::memory:", cfg.Database.DSN)
	assert.Equal(t, "9090", cfg.Server.Port)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Reports.DailyQuota)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"zero positive threshold", func(c *Config) { c.Consensus.PositiveThreshold = 0 }},
		{"zero confirmation threshold", func(c *Config) { c.Consensus.ConfirmationThreshold = 0 }},
		{"negative retries", func(c *Config) { c.Consensus.MaxRetries = -1 }},
		{"zero quota", func(c *Config) { c.Reports.DailyQuota = 0 }},
		{"zero queue", func(c *Config) { c.Notifications.QueueSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
