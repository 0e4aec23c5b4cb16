package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("DEBUG", false))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("warning", false))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("", false))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("", true))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("loud", false))
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("LEDGER_TEST_SET", "value")
	t.Setenv("LEDGER_TEST_EMPTY", "")

	assert.Equal(t, "value", GetEnvWithDefault("LEDGER_TEST_SET", "fallback"))
	assert.Equal(t, "fallback", GetEnvWithDefault("LEDGER_TEST_EMPTY", "fallback"))

	_, err := GetRequiredEnv("LEDGER_TEST_EMPTY")
	assert.ErrorContains(t, err, "LEDGER_TEST_EMPTY environment variable is required")
}

func TestLoadLedgerConfigAppliesSpreadsheetIDs(t *testing.T) {
	t.Setenv("LEDGER_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("MAIN_SPREADSHEET_ID", "main-id")
	t.Setenv("OFFICER_SPREADSHEET_ID", "officer-id")
	t.Setenv("LEADERBOARD_SPREADSHEET_ID", "")

	cfg, err := LoadLedgerConfig()
	require.NoError(t, err)
	assert.Equal(t, "main-id", cfg.Sections["Main"].SpreadsheetID)
	assert.Equal(t, "Main", cfg.Sections["Main"].Worksheet)
	assert.Equal(t, "officer-id", cfg.Sections["Officer"].SpreadsheetID)
	assert.Empty(t, cfg.Sections["Leaderboard"].SpreadsheetID)
}

func TestLoadLedgerConfigRejectsBadLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte("header_rows: [40, 20]\n"), 0o600))
	t.Setenv("LEDGER_CONFIG", path)

	_, err := LoadLedgerConfig()
	assert.ErrorContains(t, err, "ascending")
}

func TestInitializeDiscordClientWithoutToken(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "")
	assert.Nil(t, InitializeDiscordClient())

	t.Setenv("DISCORD_BOT_TOKEN", "token")
	assert.NotNil(t, InitializeDiscordClient())
}

func TestCloseJoinsErrors(t *testing.T) {
	a := &App{closers: []func() error{
		func() error { return nil },
		func() error { return os.ErrClosed },
	}}
	assert.ErrorIs(t, a.Close(), os.ErrClosed)
}
