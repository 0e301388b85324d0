package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, StoragePostgres, cfg.Storage.Driver)
	assert.Equal(t, 10*time.Second, cfg.Ledger.PayoutTimeout)
	assert.Equal(t, "dispatch.audit", cfg.Kafka.AuditTopic)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, time.UTC, cfg.Dispatch.Location)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("PAYOUT_TIMEOUT", "3s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("DISPATCH_TIMEZONE", "America/Sao_Paulo")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, 3*time.Second, cfg.Ledger.PayoutTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "America/Sao_Paulo", cfg.Dispatch.Location.String())
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SERVER_PORT=9999\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("SERVER_PORT") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Server.Port)
}

func TestLoad_RejectsUnknownTimezone(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DISPATCH_TIMEZONE", "Mars/Olympus")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_RejectsUnknownStorageDriver(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("STORAGE_DRIVER", "sqlite")

	_, err := Load()
	require.Error(t, err)
}

func TestSeedRateConfig_Overrides(t *testing.T) {
	t.Setenv("RATE_BASE_DELIVERY_FEE", "3.5")
	t.Setenv("RATE_WITHDRAWAL_MAX", "not-a-number")

	cfg := SeedRateConfig()
	assert.Equal(t, 3.5, cfg.BaseDeliveryFee)
	assert.Equal(t, 500.0, cfg.Withdrawals.MaximumAmount, "invalid values fall back to defaults")
	assert.Equal(t, 1.0, cfg.MinimumDeliveryFee)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (stand-in for testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
