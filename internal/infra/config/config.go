package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsPort int    `envconfig:"METRICS_PORT" default:"9090"`

	PGDSN      string `envconfig:"PG_DSN"`
	PGMaxConns int32  `envconfig:"PG_MAX_CONNS" default:"5"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Session struct {
		TTL time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	} `envconfig:""`

	Mail struct {
		APIURL  string        `envconfig:"MAIL_API_URL"`
		Token   string        `envconfig:"MAIL_API_TOKEN"`
		From    string        `envconfig:"MAIL_FROM" default:"no-reply@newsroom.local"`
		Timeout time.Duration `envconfig:"MAIL_TIMEOUT" default:"5s"`
	} `envconfig:""`

	X struct {
		APIURL  string        `envconfig:"X_API_URL" default:"https://api.x.com/2/tweets"`
		Token   string        `envconfig:"X_API_TOKEN"`
		Timeout time.Duration `envconfig:"X_TIMEOUT" default:"5s"`
	} `envconfig:""`

	Telegram struct {
		Token          string `envconfig:"TG_BOT_TOKEN"`
		AnnounceChatID int64  `envconfig:"TG_ANNOUNCE_CHAT_ID"`
	} `envconfig:""`

	Notify struct {
		// Mode выбирает способ рассылки: direct — синхронно в процессе,
		// queued — через очередь и воркер cmd/notifier.
		Mode          string        `envconfig:"NOTIFY_MODE" default:"direct"`
		QueueBackend  string        `envconfig:"NOTIFY_QUEUE_BACKEND" default:"redis"`
		QueueKey      string        `envconfig:"NOTIFY_QUEUE_KEY" default:"notify_jobs"`
		AMQPURL       string        `envconfig:"NOTIFY_AMQP_URL"`
		ManagementURL string        `envconfig:"NOTIFY_AMQP_MANAGEMENT_URL"`
		Timeout       time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"10s"`
		MaxAttempts   int           `envconfig:"NOTIFY_MAX_ATTEMPTS" default:"5"`
	} `envconfig:""`

	Feed struct {
		CacheTTL time.Duration `envconfig:"FEED_CACHE_TTL" default:"30s"`
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
