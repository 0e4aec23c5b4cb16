package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"guild_ledger/internal/audit"
	"guild_ledger/internal/config"
	"guild_ledger/internal/discord"
	"guild_ledger/internal/identity"
	"guild_ledger/internal/ledger"
	"guild_ledger/internal/metrics"
	"guild_ledger/internal/notifications"
	"guild_ledger/internal/processing"
	"guild_ledger/internal/sheets"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupEnvironment loads .env file and configures zerolog output and log level.
func SetupEnvironment() {
	// Load .env file if it exists
	err := godotenv.Load()

	if os.Getenv("ENV") == "production" {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(os.Stderr)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	zerolog.SetGlobalLevel(parseLevel(os.Getenv("LOGLEVEL"), os.Getenv("ENV") == "production"))

	// wait until now to report on the .env file so we have the chance to set up logging first
	if err == nil {
		log.Debug().Msg("Loaded environment variables from .env file.")
	} else {
		log.Debug().Msg("No .env file found or error loading .env file; proceeding with existing environment variables.")
	}
}

func parseLevel(raw string, production bool) zerolog.Level {
	levelStr := strings.ToLower(strings.TrimSpace(raw))
	switch levelStr {
	case "warning":
		return zerolog.WarnLevel
	case "":
		if production {
			return zerolog.WarnLevel
		}
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		log.Warn().Msgf("Unknown LOGLEVEL '%s', defaulting to info.", levelStr)
		return zerolog.InfoLevel
	}
	return level
}

// GetRequiredEnv fetches a required environment variable.
func GetRequiredEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s environment variable is required", key)
	}
	return value, nil
}

// GetEnvWithDefault fetches an environment variable with a default fallback.
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// App is everything a command needs once the environment is wired.
type App struct {
	Ledger  *ledger.Ledger
	Service *processing.Service
	Metrics *metrics.Metrics
	History *audit.SQLiteSink
	Sheets  *sheets.Client

	closers []func() error
}

// Close releases the audit database, if one was opened.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// LoadLedgerConfig reads LEDGER_CONFIG and applies the spreadsheet ids from the
// environment on top of it.
func LoadLedgerConfig() (config.LedgerConfig, error) {
	cfg, err := config.LoadLedgerConfig(GetEnvWithDefault("LEDGER_CONFIG", "ledger.yaml"))
	if err != nil {
		return cfg, err
	}
	cfg.SetSpreadsheetID(string(ledger.SectionMain), os.Getenv("MAIN_SPREADSHEET_ID"))
	cfg.SetSpreadsheetID(string(ledger.SectionOfficer), os.Getenv("OFFICER_SPREADSHEET_ID"))
	cfg.SetSpreadsheetID(string(ledger.SectionLeaderboard), os.Getenv("LEADERBOARD_SPREADSHEET_ID"))
	return cfg, cfg.Validate()
}

// InitializeDiscordClient returns nil when no bot token is configured; mentions
// then stay unresolved.
func InitializeDiscordClient() *discord.Client {
	token := os.Getenv("DISCORD_BOT_TOKEN")
	if token == "" {
		log.Warn().Msg("DISCORD_BOT_TOKEN not set, mentions will not resolve")
		return nil
	}
	return discord.NewClient(token, os.Getenv("DISCORD_GUILD_ID")).
		WithBaseURL(GetEnvWithDefault("DISCORD_API_URL", discord.DefaultBaseURL))
}

// InitializeNotificationClient creates and returns the notification client
func InitializeNotificationClient() *notifications.Client {
	enabled := GetEnvWithDefault("NTFY_ENABLED", "false") == "true"
	baseURL := GetEnvWithDefault("NTFY_URL", "https://ntfy.sh")
	topic := GetEnvWithDefault("NTFY_TOPIC", "guild-ledger")
	priority := GetEnvWithDefault("NTFY_PRIORITY", "default")

	log.Debug().
		Bool("enabled", enabled).
		Str("base_url", baseURL).
		Str("topic", topic).
		Msg("Initializing notification client")

	client := notifications.NewClient(baseURL, topic, enabled, priority, config.DefaultResilienceConfig.Notify)

	if enabled {
		log.Info().Str("topic", topic).Msg("Notifications enabled")
	} else {
		log.Debug().Msg("Notifications disabled")
	}

	return client
}

// Build wires the sheets client, ledger, identity resolver and audit sinks.
func Build(ctx context.Context) (*App, error) {
	log.Debug().Msg("Initializing clients")

	cfg, err := LoadLedgerConfig()
	if err != nil {
		return nil, err
	}

	credsFile := GetEnvWithDefault("GOOGLE_CREDENTIALS_FILE", "credentials.json")
	sheetsClient, err := sheets.NewClient(ctx, credsFile)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	l, err := ledger.New(ledger.NewSheetBook(sheetsClient, cfg.Sections), cfg, ledger.WithMetrics(m))
	if err != nil {
		return nil, err
	}

	var members identity.MemberDirectory
	if dc := InitializeDiscordClient(); dc != nil {
		members = dc
	}

	a := &App{Ledger: l, Metrics: m, Sheets: sheetsClient}
	sinks := []audit.Sink{audit.LogSink{}}
	if path := os.Getenv("AUDIT_DB"); path != "" {
		history, err := audit.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		a.History = history
		a.closers = append(a.closers, history.Close)
		sinks = append(sinks, history)
	}
	if ntfy := InitializeNotificationClient(); ntfy.Enabled() {
		sinks = append(sinks, audit.NewNotifySink(ntfy))
	}

	a.Service = processing.NewService(l, identity.NewResolver(members), audit.NewMulti(m, sinks...), os.Getenv("DISCORD_GUILD_ID"))

	log.Debug().Int("audit_sinks", len(sinks)).Msg("Clients initialized successfully")
	return a, nil
}
