package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	// An explicitly named but missing file is an error.
	_, err := Load()
	require.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("ADMIN_TOKEN", "secret")
	t.Setenv("SWEEP_INTERVAL", "5s")
	t.Setenv("TAX_RATE", "0.05")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "secret", cfg.AdminToken)
	assert.Equal(t, 5*time.Second, cfg.SweepInterval)
	assert.Equal(t, 0.05, cfg.TaxRate)
	assert.Contains(t, cfg.Database.DSN(), "db.internal:5433")
}

func TestLoadYAMLFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sweep:
  interval: 10s
  verification_interval: 1m
  batch_size: 25
  tax_rate: 0.1
`), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SWEEP_INTERVAL", "3s") // env wins over the file

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.SweepInterval)
	assert.Equal(t, time.Minute, cfg.VerificationInterval)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, 0.1, cfg.TaxRate)
}

func TestInvalidTaxRateRejected(t *testing.T) {
	t.Setenv("TAX_RATE", "1.5")
	_, err := Load()
	assert.Error(t, err)
}
