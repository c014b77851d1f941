package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the calendar assistant service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool

	GoogleServiceAccountFile string
	CalendarID               string

	ReasonerMode    string
	GeminiAPIKey    string
	GeminiModel     string
	ReasonerTimeout time.Duration

	CalendarTimeout time.Duration
	TurnTimeout     time.Duration

	MaxConversationHistory int
	RecentMessagesLimit    int
	MaxActionsPerTurn      int

	// The assistant works in a single fixed offset; no timezone database.
	TimezoneLabel         string
	TimezoneName          string
	TimezoneOffsetMinutes int

	DatabaseURL string

	KeepAliveURL      string
	KeepAliveInterval time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                 envOrDefault("APP_BIND_ADDR", ":8001"),
		MetricsNamespace:         envOrDefault("APP_METRICS_NAMESPACE", "calendent"),
		AllowAnyOrigin:           false,
		GoogleServiceAccountFile: trimmedEnv("GOOGLE_SERVICE_ACCOUNT_FILE"),
		CalendarID:               envOrDefault("CALENDAR_ID", "primary"),
		ReasonerMode:             envOrDefault("REASONER_MODE", "auto"),
		GeminiAPIKey:             trimmedEnv("GEMINI_API_KEY"),
		GeminiModel:              envOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		ReasonerTimeout:          30 * time.Second,
		CalendarTimeout:          5 * time.Second,
		TurnTimeout:              2 * time.Minute,
		MaxConversationHistory:   20,
		RecentMessagesLimit:      6,
		MaxActionsPerTurn:        4,
		TimezoneLabel:            envOrDefault("TIMEZONE_LABEL", "IST"),
		TimezoneName:             envOrDefault("TIMEZONE_NAME", "Asia/Kolkata"),
		TimezoneOffsetMinutes:    330,
		DatabaseURL:              trimmedEnv("DATABASE_URL"),
		KeepAliveURL:             trimmedEnv("KEEPALIVE_URL"),
		KeepAliveInterval:        5 * time.Minute,
		ShutdownTimeout:          15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ReasonerTimeout, err = durationFromEnv("REASONER_TIMEOUT", cfg.ReasonerTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.CalendarTimeout, err = durationFromEnv("CALENDAR_TIMEOUT", cfg.CalendarTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.TurnTimeout, err = durationFromEnv("TURN_TIMEOUT", cfg.TurnTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.KeepAliveInterval, err = durationFromEnv("KEEPALIVE_INTERVAL", cfg.KeepAliveInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxConversationHistory, err = intFromEnv("MAX_CONVERSATION_HISTORY", cfg.MaxConversationHistory)
	if err != nil {
		return Config{}, err
	}
	cfg.RecentMessagesLimit, err = intFromEnv("RECENT_MESSAGES_LIMIT", cfg.RecentMessagesLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxActionsPerTurn, err = intFromEnv("MAX_ACTIONS_PER_TURN", cfg.MaxActionsPerTurn)
	if err != nil {
		return Config{}, err
	}
	cfg.TimezoneOffsetMinutes, err = intFromEnv("TIMEZONE_OFFSET_MINUTES", cfg.TimezoneOffsetMinutes)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.MaxConversationHistory <= 0 {
		return Config{}, fmt.Errorf("MAX_CONVERSATION_HISTORY must be positive")
	}
	if cfg.RecentMessagesLimit <= 0 || cfg.RecentMessagesLimit > cfg.MaxConversationHistory {
		return Config{}, fmt.Errorf("RECENT_MESSAGES_LIMIT must be in 1..MAX_CONVERSATION_HISTORY")
	}
	if cfg.MaxActionsPerTurn <= 0 {
		return Config{}, fmt.Errorf("MAX_ACTIONS_PER_TURN must be positive")
	}
	if cfg.TimezoneOffsetMinutes < -14*60 || cfg.TimezoneOffsetMinutes > 14*60 {
		return Config{}, fmt.Errorf("TIMEZONE_OFFSET_MINUTES out of range")
	}
	if cfg.CalendarTimeout <= 0 || cfg.ReasonerTimeout <= 0 || cfg.TurnTimeout <= 0 {
		return Config{}, fmt.Errorf("timeouts must be positive")
	}

	return cfg, nil
}

// Location builds the assistant's fixed local offset.
func (c Config) Location() *time.Location {
	return time.FixedZone(c.TimezoneLabel, c.TimezoneOffsetMinutes*60)
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
