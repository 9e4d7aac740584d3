package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries everything the guardian process reads from the
// environment. Defaults mirror a conservative production setup; every
// numeric knob can be overridden per deployment.
type Config struct {
	Environment string
	LogLevel    string
	Debug       bool

	Account struct {
		Equity           float64
		Leverage         int
		MaxPositionRatio float64
	}

	Sizing struct {
		HighMultiplier   float64
		MediumMultiplier float64
		LowMultiplier    float64
	}

	Planner struct {
		BufferPct   float64
		HighTPPct   float64
		MediumTPPct float64
		LowTPPct    float64
	}

	Trailing struct {
		ActivationPct   float64
		Distance        float64
		UpdateThreshold float64
	}

	Grading struct {
		APlusRR               float64
		ARR                   float64
		BRR                   float64
		StopSlippageTolerance float64
		ExecutionQualityCap   float64
	}

	Journal struct {
		Backend     string // "file" or "postgres"
		FilePath    string
		DatabaseURL string
	}

	Exchange struct {
		APIKey    string
		APISecret string
		Category  string
		Testnet   bool
		Demo      bool
		Symbols   []string
	}

	Monitoring struct {
		PrometheusPort int
		HealthPort     int
	}

	Notifications struct {
		TelegramToken  string
		TelegramChatID string
	}
}

// Load reads the configuration from the environment
func Load() *Config {
	cfg := &Config{
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Debug:       getEnvBool("GUARDIAN_DEBUG", false),
	}

	cfg.Account.Equity = getEnvFloat("ACCOUNT_EQUITY", 10000)
	cfg.Account.Leverage = getEnvInt("ACCOUNT_LEVERAGE", 1)
	cfg.Account.MaxPositionRatio = getEnvFloat("ACCOUNT_MAX_POSITION_RATIO", 0.5)

	cfg.Sizing.HighMultiplier = getEnvFloat("SIZING_HIGH_MULTIPLIER", 0.8)
	cfg.Sizing.MediumMultiplier = getEnvFloat("SIZING_MEDIUM_MULTIPLIER", 0.5)
	cfg.Sizing.LowMultiplier = getEnvFloat("SIZING_LOW_MULTIPLIER", 0.3)

	cfg.Planner.BufferPct = getEnvFloat("PLANNER_BUFFER_PCT", 0.02)
	cfg.Planner.HighTPPct = getEnvFloat("PLANNER_HIGH_TP_PCT", 0.03)
	cfg.Planner.MediumTPPct = getEnvFloat("PLANNER_MEDIUM_TP_PCT", 0.02)
	cfg.Planner.LowTPPct = getEnvFloat("PLANNER_LOW_TP_PCT", 0.01)

	cfg.Trailing.ActivationPct = getEnvFloat("TRAILING_ACTIVATION_PCT", 0.01)
	cfg.Trailing.Distance = getEnvFloat("TRAILING_DISTANCE", 0.005)
	cfg.Trailing.UpdateThreshold = getEnvFloat("TRAILING_UPDATE_THRESHOLD", 0.002)

	cfg.Grading.APlusRR = getEnvFloat("GRADING_A_PLUS_RR", 2.5)
	cfg.Grading.ARR = getEnvFloat("GRADING_A_RR", 1.5)
	cfg.Grading.BRR = getEnvFloat("GRADING_B_RR", 1.0)
	cfg.Grading.StopSlippageTolerance = getEnvFloat("GRADING_STOP_SLIPPAGE_TOLERANCE", 0.2)
	cfg.Grading.ExecutionQualityCap = getEnvFloat("GRADING_EXECUTION_QUALITY_CAP", 2.0)

	cfg.Journal.Backend = getEnv("JOURNAL_BACKEND", "file")
	cfg.Journal.FilePath = getEnv("JOURNAL_FILE_PATH", "data/journal/trades.jsonl")
	cfg.Journal.DatabaseURL = getEnv("JOURNAL_DATABASE_URL", "")

	cfg.Exchange.APIKey = getEnv("EXCHANGE_API_KEY", "")
	cfg.Exchange.APISecret = getEnv("EXCHANGE_API_SECRET", "")
	cfg.Exchange.Category = getEnv("EXCHANGE_CATEGORY", "linear")
	cfg.Exchange.Testnet = getEnvBool("EXCHANGE_TESTNET", true)
	cfg.Exchange.Demo = getEnvBool("EXCHANGE_DEMO", false)
	cfg.Exchange.Symbols = getEnvStrings("EXCHANGE_SYMBOLS", []string{"BTCUSDT"})

	cfg.Monitoring.PrometheusPort = getEnvInt("PROMETHEUS_PORT", 8080)
	cfg.Monitoring.HealthPort = getEnvInt("HEALTH_PORT", 8081)

	cfg.Notifications.TelegramToken = getEnv("TELEGRAM_TOKEN", "")
	cfg.Notifications.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", "")

	return cfg
}

// Validate checks the cross-field constraints the component constructors
// cannot see
func (c *Config) Validate() error {
	if c.Account.Equity <= 0 {
		return fmt.Errorf("ACCOUNT_EQUITY must be positive, got %f", c.Account.Equity)
	}
	if c.Account.Leverage < 1 {
		return fmt.Errorf("ACCOUNT_LEVERAGE must be at least 1, got %d", c.Account.Leverage)
	}
	if c.Account.MaxPositionRatio <= 0 || c.Account.MaxPositionRatio > 1 {
		return fmt.Errorf("ACCOUNT_MAX_POSITION_RATIO must be in (0, 1], got %f", c.Account.MaxPositionRatio)
	}

	switch c.Journal.Backend {
	case "file":
		if c.Journal.FilePath == "" {
			return fmt.Errorf("JOURNAL_FILE_PATH is required for the file backend")
		}
	case "postgres":
		if c.Journal.DatabaseURL == "" {
			return fmt.Errorf("JOURNAL_DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("JOURNAL_BACKEND must be \"file\" or \"postgres\", got %q", c.Journal.Backend)
	}

	if len(c.Exchange.Symbols) == 0 {
		return fmt.Errorf("EXCHANGE_SYMBOLS must name at least one symbol")
	}
	for _, symbol := range c.Exchange.Symbols {
		if symbol == "" {
			return fmt.Errorf("EXCHANGE_SYMBOLS contains an empty symbol")
		}
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvStrings(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}

	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
