package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию бота.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Telegram struct {
		Token      string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL string `envconfig:"TG_WEBHOOK_URL"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	AdminTGIDs []int64 `envconfig:"ADMIN_TG_IDS"`

	SMTP struct {
		Host     string `envconfig:"SMTP_HOST"`
		Port     int    `envconfig:"SMTP_PORT" default:"587"`
		Username string `envconfig:"SMTP_USERNAME"`
		Password string `envconfig:"SMTP_PASSWORD"`
		From     string `envconfig:"SMTP_FROM"`
	} `envconfig:""`

	OpenAI struct {
		APIKey  string        `envconfig:"OPENAI_API_KEY"`
		BaseURL string        `envconfig:"OPENAI_BASE_URL"`
		Model   string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
		Timeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"30s"`
	} `envconfig:""`

	Feed struct {
		URL        string        `envconfig:"FEED_URL" default:"https://www.deeplearning.ai/the-batch/feed/"`
		ChannelRef string        `envconfig:"FEED_CHANNEL_REF"`
		Interval   time.Duration `envconfig:"FEED_INTERVAL" default:"24h"`
	} `envconfig:""`

	PDF struct {
		Dir      string `envconfig:"PDF_DIR" default:"pdfs"`
		MaxBytes int64  `envconfig:"PDF_MAX_BYTES" default:"8388608"`
	} `envconfig:""`

	Roast struct {
		File     string        `envconfig:"ROAST_FILE" default:"roasts.txt"`
		Cooldown time.Duration `envconfig:"ROAST_COOLDOWN" default:"10s"`
	} `envconfig:""`

	Limits struct {
		PageSize    int           `envconfig:"LIST_PAGE_SIZE" default:"25"`
		QuestionTTL time.Duration `envconfig:"QUESTION_TTL" default:"2h"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
