package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ChartModeImage = "image"
	ChartModeURL   = "url"
)

type Config struct {
	BotToken            string
	TelegramAPIEndpoint string
	GroupLink           string
	LogLevel            string
	LogFormat           string

	YahooSearchBaseURL string
	YahooChartBaseURL  string
	QuickChartBaseURL  string
	SearchTimeout      time.Duration
	ChartDataTimeout   time.Duration
	RenderTimeout      time.Duration

	ChartMode           string
	ChartImageMaxPoints int
	ChartURLMaxPoints   int
	ChartURLMaxLength   int

	SessionBackend         string
	RedisURL               string
	SessionTTL             time.Duration
	SessionCleanupInterval time.Duration
	SessionMaxEntries      int

	CircuitFailLimit int
	CircuitCooldown  time.Duration

	PollTimeout     time.Duration
	PollRetryDelay  time.Duration
	PollMaxFailures int
	Workers         int

	OpsAddr string
}

func Load() Config {
	return Config{
		BotToken:            getEnv("BOT_TOKEN", ""),
		TelegramAPIEndpoint: getEnv("TELEGRAM_API_ENDPOINT", "https://api.telegram.org/bot%s/%s"),
		GroupLink:           getEnv("GROUP_LINK", "https://t.me/traders_chat_group"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "json"),

		YahooSearchBaseURL: getEnv("YAHOO_SEARCH_BASE_URL", "https://query2.finance.yahoo.com"),
		YahooChartBaseURL:  getEnv("YAHOO_CHART_BASE_URL", "https://query1.finance.yahoo.com"),
		QuickChartBaseURL:  getEnv("QUICKCHART_BASE_URL", "https://quickchart.io"),
		SearchTimeout:      getEnvDuration("SEARCH_TIMEOUT", 5*time.Second),
		ChartDataTimeout:   getEnvDuration("CHART_DATA_TIMEOUT", 4*time.Second),
		RenderTimeout:      getEnvDuration("RENDER_TIMEOUT", 5*time.Second),

		ChartMode:           strings.ToLower(getEnv("CHART_MODE", ChartModeImage)),
		ChartImageMaxPoints: getEnvInt("CHART_IMAGE_MAX_POINTS", 100),
		ChartURLMaxPoints:   getEnvInt("CHART_URL_MAX_POINTS", 50),
		ChartURLMaxLength:   getEnvInt("CHART_URL_MAX_LENGTH", 2048),

		SessionBackend:         strings.ToLower(getEnv("SESSION_BACKEND", "auto")),
		RedisURL:               getEnv("REDIS_URL", ""),
		SessionTTL:             getEnvDuration("SESSION_TTL", 30*time.Minute),
		SessionCleanupInterval: getEnvDuration("SESSION_CLEANUP_INTERVAL", 5*time.Minute),
		SessionMaxEntries:      getEnvInt("SESSION_MAX_ENTRIES", 10000),

		CircuitFailLimit: getEnvInt("CIRCUIT_FAIL_LIMIT", 5),
		CircuitCooldown:  getEnvDuration("CIRCUIT_COOLDOWN", 30*time.Second),

		PollTimeout:     getEnvDuration("POLL_TIMEOUT", 10*time.Second),
		PollRetryDelay:  getEnvDuration("POLL_RETRY_DELAY", 5*time.Second),
		PollMaxFailures: getEnvInt("POLL_MAX_FAILURES", 60),
		Workers:         getEnvInt("BOT_WORKERS", 1),

		OpsAddr: getEnv("OPS_ADDR", ":9090"),
	}
}

// Validate reports the settings the bot cannot run without.
func (c Config) Validate() error {
	var errs []error
	if c.BotToken == "" {
		errs = append(errs, errors.New("BOT_TOKEN is required"))
	}
	if c.ChartMode != ChartModeImage && c.ChartMode != ChartModeURL {
		errs = append(errs, fmt.Errorf("CHART_MODE must be %q or %q, got %q", ChartModeImage, ChartModeURL, c.ChartMode))
	}
	if c.ChartImageMaxPoints <= 0 || c.ChartURLMaxPoints <= 0 {
		errs = append(errs, errors.New("chart point caps must be positive"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.Workers <= 0 {
		errs = append(errs, errors.New("BOT_WORKERS must be positive"))
	}
	return errors.Join(errs...)
}

// ChartMaxPoints is the downsampling cap for the configured chart mode.
func (c Config) ChartMaxPoints() int {
	if c.ChartMode == ChartModeURL {
		return c.ChartURLMaxPoints
	}
	return c.ChartImageMaxPoints
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// getEnvDuration accepts "5s"/"30m" as well as bare seconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(i) * time.Second
}
