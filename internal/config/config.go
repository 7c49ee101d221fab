package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charleschow/fpl-pipeline/internal/season"
	"github.com/joho/godotenv"
)

type Config struct {
	// Storage
	DataDir string
	Season  string

	// Upstreams
	FPLBaseURL     string
	FBRefBaseURL   string
	ArchiveBaseURL string
	UserAgent      string
	Competition    string

	// Fetching
	CallRate    int
	MaxRetries  int
	RetryDelay  time.Duration
	HTTPTimeout time.Duration
	MaxWait     time.Duration

	// Reconciliation
	FuzzyThreshold  int
	Interactive     bool
	ManualFallback  bool
	ClubsConfigPath string

	// Outputs
	S3Bucket     string
	S3Prefix     string
	WarehouseDSN string

	// Notifications
	DiscordWebhookURL string

	// Telemetry
	LogLevel string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DataDir: envStr("DATA_DIR", "data/results"),
		Season:  envStr("SEASON", season.Current(time.Now())),

		FPLBaseURL:     envStr("FPL_BASE_URL", "https://fantasy.premierleague.com/api"),
		FBRefBaseURL:   envStr("FBREF_BASE_URL", "https://fbref.com"),
		ArchiveBaseURL: envStr("ARCHIVE_BASE_URL", "https://raw.githubusercontent.com/vaastav/Fantasy-Premier-League/master/data"),
		UserAgent:      envStr("USER_AGENT", ""),
		Competition:    envStr("COMPETITION", "Premier League"),

		// FBRef bans clients that exceed ~10 requests a minute.
		CallRate:    envInt("CALL_RATE", 5),
		MaxRetries:  envInt("MAX_RETRIES", 3),
		RetryDelay:  envDuration("RETRY_DELAY_SEC", 10*time.Second),
		HTTPTimeout: envDuration("HTTP_TIMEOUT_SEC", 30*time.Second),
		MaxWait:     envDuration("MAX_RETRY_WAIT_SEC", 5*time.Minute),

		FuzzyThreshold:  envInt("FUZZY_THRESHOLD", 95),
		Interactive:     envBool("INTERACTIVE", false),
		ManualFallback:  envBool("MANUAL_FALLBACK", false),
		ClubsConfigPath: envStr("CLUBS_CONFIG_PATH", "config/clubs.yaml"),

		S3Bucket:     envStr("S3_BUCKET", ""),
		S3Prefix:     envStr("S3_PREFIX", "data"),
		WarehouseDSN: envStr("WAREHOUSE_DSN", ""),

		DiscordWebhookURL: envStr("DISCORD_WEBHOOK_URL", ""),

		LogLevel: envStr("LOG_LEVEL", "info"),
	}
}

// Error is one setting that failed validation.
type Error struct {
	Key   string
	Value any
	Rule  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s=%v: %s", e.Key, e.Value, e.Rule)
}

// Validate rejects settings that would otherwise fail mid-run. Every
// problem is reported, each as an *Error.
func (c *Config) Validate() error {
	var errs []error
	if err := season.Validate(c.Season); err != nil {
		errs = append(errs, &Error{Key: "SEASON", Value: c.Season, Rule: err.Error()})
	}
	if c.DataDir == "" {
		errs = append(errs, &Error{Key: "DATA_DIR", Value: c.DataDir, Rule: "must be set"})
	}
	if c.CallRate <= 0 || c.CallRate > 10 {
		errs = append(errs, &Error{Key: "CALL_RATE", Value: c.CallRate, Rule: "must be between 1 and 10 calls per minute"})
	}
	if c.MaxRetries < 1 {
		errs = append(errs, &Error{Key: "MAX_RETRIES", Value: c.MaxRetries, Rule: "must be at least 1"})
	}
	if c.RetryDelay < 0 {
		errs = append(errs, &Error{Key: "RETRY_DELAY_SEC", Value: c.RetryDelay, Rule: "must not be negative"})
	}
	if c.FuzzyThreshold < 0 || c.FuzzyThreshold > 100 {
		errs = append(errs, &Error{Key: "FUZZY_THRESHOLD", Value: c.FuzzyThreshold, Rule: "must be between 0 and 100"})
	}
	return errors.Join(errs...)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

// envDuration reads a whole number of seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}
