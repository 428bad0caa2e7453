package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DBDriver string
	DBDSN    string
	HTTPAddr string
	LogLevel string
	// LogFormat is console for humans or json for log shipping.
	LogFormat string
	// JobsToken guards the operator /jobs endpoints; empty disables them.
	JobsToken string

	RecurringScanInterval time.Duration
	BudgetScanInterval    time.Duration
	RecurringRateBurst    int
	RecurringRatePerHour  int

	RedisAddr string

	DiscordBotToken  string
	DiscordChannelId string
	// DiscordOwnerId is the ledger user the Discord channel acts for.
	DiscordOwnerId string
}

// DiscordEnabled reports whether the bot should be started.
func (c *Config) DiscordEnabled() bool {
	return c.DiscordBotToken != ""
}

func Load() (*Config, error) {
	cfg := &Config{
		DBDriver:         getEnv("DB_DRIVER", "sqlite"),
		DBDSN:            getEnv("DB_DSN", "fintrack.db"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "console"),
		JobsToken:        os.Getenv("JOBS_TOKEN"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		DiscordBotToken:  os.Getenv("DISCORD_BOT_TOKEN"),
		DiscordChannelId: os.Getenv("DISCORD_CHANNEL_ID"),
		DiscordOwnerId:   os.Getenv("DISCORD_OWNER_ID"),
	}

	if cfg.DBDriver != "sqlite" && cfg.DBDriver != "postgres" {
		return nil, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", cfg.DBDriver)
	}
	if cfg.LogFormat != "console" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be console or json, got %q", cfg.LogFormat)
	}

	var err error
	if cfg.RecurringScanInterval, err = getDuration("RECURRING_SCAN_INTERVAL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.BudgetScanInterval, err = getDuration("BUDGET_SCAN_INTERVAL", 6*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RecurringRateBurst, err = getInt("RECURRING_RATE_BURST", 10); err != nil {
		return nil, err
	}
	if cfg.RecurringRatePerHour, err = getInt("RECURRING_RATE_PER_HOUR", 5); err != nil {
		return nil, err
	}

	if cfg.DiscordEnabled() {
		if cfg.DiscordChannelId == "" {
			return nil, fmt.Errorf("Channel ID is not set")
		}
		if cfg.DiscordOwnerId == "" {
			return nil, fmt.Errorf("Discord owner ID is not set")
		}
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, v)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}
