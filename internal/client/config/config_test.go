package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/giftvault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const giftCard = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8545", c.RPCURL)
	assert.Equal(t, 2*time.Minute, c.ConfirmationWait)
	assert.Equal(t, 2*time.Second, c.PollInterval)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "journal.db", filepath.Base(c.JournalPath))
	assert.False(t, c.Contracts())
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"rpc_url":           "http://json:8545",
		"gift_card_address": giftCard,
		"confirmation_wait": "30s",
		"poll_interval":     1_000_000_000,
		"log_level":         "debug",
	})
	t.Setenv("GIFTVAULT_RPC_URL", "http://env:8545")
	t.Setenv("GIFTVAULT_LOG_FORMAT", "json")

	cfg, err := LoadConfig([]string{"-c", path, "-rpc", "http://flag:8545", "-unrelated", "x"})
	require.NoError(t, err)

	assert.Equal(t, "http://flag:8545", cfg.RPCURL, "flags win")
	assert.Equal(t, "json", cfg.LogFormat, "env overrides defaults")
	assert.Equal(t, "debug", cfg.LogLevel, "json overrides defaults")
	assert.Equal(t, giftCard, cfg.GiftCardAddress)
	assert.Equal(t, 30*time.Second, cfg.ConfirmationWait)
	assert.Equal(t, time.Second, cfg.PollInterval)
}

func TestLoadConfig_EnvOverridesJSON(t *testing.T) {
	path := writeTempJSON(t, map[string]any{"confirmation_wait": "30s"})
	t.Setenv("GIFTVAULT_CONFIRMATION_WAIT", "45s")

	cfg, err := LoadConfig([]string{"-config", path})
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.ConfirmationWait)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig([]string{"-c", filepath.Join(t.TempDir(), "missing.json")})
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"poll_interval": "soon"}`), 0o600))
	_, err = LoadConfig([]string{"-c", bad})
	require.Error(t, err)

	_, err = LoadConfig([]string{"-account", "0x123"})
	require.ErrorIs(t, err, common.ErrValidation)

	t.Setenv("GIFTVAULT_READS_PER_SECOND", "fast")
	_, err = LoadConfig(nil)
	require.Error(t, err)
}
