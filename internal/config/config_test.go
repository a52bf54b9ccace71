package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9401", cfg.Server.WebSocket.Address)
	assert.Equal(t, "/battle", cfg.Server.WebSocket.Path)
	assert.Equal(t, 30*time.Second, cfg.Server.WebSocket.PingInterval)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 64, cfg.Server.MaxBattles)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  websocket:
    address: ":8080"
    ping_interval: 5s
logging:
  level: debug
  format: json
database:
  driver: postgres
  dsn: postgres://localhost/ep3
battle:
  disable_time_limits: true
  trap_card_ids:
    - [0x00AC, 0x0101]
    - []
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.WebSocket.Address)
	assert.Equal(t, 5*time.Second, cfg.Server.WebSocket.PingInterval)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.True(t, cfg.Battle.DisableTimeLimits)
	require.Len(t, cfg.Battle.TrapCardIDs, 2)
	assert.Equal(t, []uint16{0x00AC, 0x0101}, cfg.Battle.TrapCardIDs[0])
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: debug\n")
	t.Setenv("EP3_LOG_LEVEL", "warn")
	t.Setenv("EP3_DB_DRIVER", "none")
	t.Setenv("EP3_SKIP_DECK_VERIFY", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "none", cfg.Database.Driver)
	assert.True(t, cfg.Battle.SkipDeckVerify)
}

func TestValidate(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: mysql\n")
	_, err := Load(path)
	assert.Error(t, err)

	path = writeConfig(t, "database:\n  driver: postgres\n  dsn: \"\"\n")
	_, err = Load(path)
	assert.Error(t, err)

	path = writeConfig(t, "logging:\n  format: xml\n")
	_, err = Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed\n")
	_, err := Load(path)
	assert.Error(t, err)
}
