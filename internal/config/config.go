package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

type Config struct {
	TelegramBotToken      string  `env:"TELEGRAM_BOT_TOKEN,required"`
	TelegramMode          string  `env:"TELEGRAM_MODE" envDefault:"webhook"`
	TelegramWebhookSecret string  `env:"TELEGRAM_WEBHOOK_SECRET"`
	OwnerChatID           int64   `env:"TELEGRAM_CHAT_ID"`
	AllowedUsers          []int64 `env:"ALLOWED_USERS" envSeparator:":"`
	AllowlistFilePath     string  `env:"ALLOWLIST_FILE_PATH"`

	// HTTP
	HTTPAddr   string `env:"HTTP_ADDR" envDefault:":8080"`
	GinMode    string `env:"GIN_MODE" envDefault:"release"`
	CronSecret string `env:"CRON_SECRET"`

	// Database
	DBDriver string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"DB_DSN" envDefault:"data/ledger.db"`

	// Redis (optional: lock + chart cache)
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	LockTTL       time.Duration `env:"LOCK_TTL" envDefault:"10s"`

	// Kafka (optional: entry events)
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"ledger.entries"`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"ledger-chart-refresh"`

	// MinIO (optional: weekly report archive)
	MinIOEndpoint  string `env:"MINIO_ENDPOINT"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinIOSecretKey string `env:"MINIO_SECRET_KEY"`
	MinIOBucket    string `env:"MINIO_BUCKET" envDefault:"ledger-reports"`
	MinIOUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`

	// LLM settings
	LLMProvider      LLMProvider `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey     string      `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string      `env:"OPENAI_BASE_URL"`
	OpenAIModel      string      `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	YandexOAuthToken string      `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string      `env:"YANDEX_FOLDER_ID"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Timeouts
	NarrativeTimeout time.Duration `env:"NARRATIVE_TIMEOUT" envDefault:"20s"`
	ReportTimeout    time.Duration `env:"REPORT_TIMEOUT" envDefault:"2m"`
	EntryCommentary  bool          `env:"ENTRY_COMMENTARY" envDefault:"false"`

	// Schedules, UTC cron specs
	WeeklyReviewSpec string `env:"WEEKLY_REVIEW_SPEC" envDefault:"0 18 * * 0"`
	PatternSpec      string `env:"PATTERN_SPEC" envDefault:"0 9 * * *"`
	ChartSpec        string `env:"CHART_SPEC" envDefault:"0 */6 * * *"`

	// Charts
	ChartCacheTTL           time.Duration `env:"CHART_CACHE_TTL" envDefault:"24h"`
	ChartDelay              time.Duration `env:"CHART_DELAY" envDefault:"1s"`
	ChartRefreshMinInterval time.Duration `env:"CHART_REFRESH_MIN_INTERVAL" envDefault:"15m"`

	// Logging
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT" envDefault:"console"`
	LogOutputPath string `env:"LOG_OUTPUT_PATH"`

	TranscriptPath string `env:"TRANSCRIPT_PATH" envDefault:"logs/transcript.jsonl"`
}

// Load parses the environment and checks cross-field constraints.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is empty")
	}
	switch c.TelegramMode {
	case "webhook", "polling":
	default:
		return fmt.Errorf("TELEGRAM_MODE must be webhook or polling, got %q", c.TelegramMode)
	}
	switch c.DBDriver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or mysql, got %q", c.DBDriver)
	}
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderYandex:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	if c.NarrativeTimeout <= 0 {
		return fmt.Errorf("NARRATIVE_TIMEOUT must be positive")
	}
	return nil
}

// New is Load for main: any error is fatal.
func New() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}
