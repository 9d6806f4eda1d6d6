package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"newsroom/internal/adapters/mailer"
	"newsroom/internal/adapters/repo"
	"newsroom/internal/adapters/social"
	"newsroom/internal/domain"
	"newsroom/internal/infra/cache"
	"newsroom/internal/infra/config"
	"newsroom/internal/infra/db"
	"newsroom/internal/infra/log"
	"newsroom/internal/infra/metrics"
	"newsroom/internal/infra/queue"
	"newsroom/internal/usecase/notify"
)

// Воркер читает задачи рассылки из очереди и выполняет фактическую доставку.
func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv, "notifier")
	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN, 2)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к postgres")
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	store := cache.NewRedis(redisClient)
	repos := repo.NewPostgres(pool)

	mailClient, err := mailer.New(cfg.Mail.APIURL, cfg.Mail.Token, cfg.Mail.From, mailer.WithTimeout(cfg.Mail.Timeout))
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать почтовый клиент")
	}

	var posters social.Fanout
	if cfg.X.Token != "" {
		x, err := social.NewXClient(cfg.X.APIURL, cfg.X.Token, social.WithXTimeout(cfg.X.Timeout))
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось создать клиент X")
		}
		posters = append(posters, x)
	}
	if cfg.Telegram.Token != "" {
		tg, err := social.NewTelegramAnnouncer(cfg.Telegram.Token, cfg.Telegram.AnnounceChatID)
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось создать telegram-клиент")
		}
		posters = append(posters, tg)
	}

	notifyQueue, err := buildNotifyQueue(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключить очередь уведомлений")
	}

	metrics.StartServer(ctx, logger, fmt.Sprintf(":%d", cfg.MetricsPort))

	dispatcher := notify.NewDispatcher(repos.Subscriptions, mailClient, posters, store, logger, cfg.Notify.Timeout)
	worker := notify.NewWorker(notifyQueue, repos.Jobs, repos.Contents, dispatcher, logger, cfg.Notify.MaxAttempts)

	logger.Info().Msg("воркер рассылки запущен")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("воркер завершился с ошибкой")
	}
	logger.Info().Msg("воркер рассылки остановлен")
}

func buildNotifyQueue(cfg config.AppConfig, redisClient *redis.Client) (domain.NotifyQueue, error) {
	switch cfg.Notify.QueueBackend {
	case "redis":
		return queue.NewRedisNotifyQueue(redisClient, cfg.Notify.QueueKey), nil
	case "rabbitmq":
		return queue.NewRabbitNotifyQueue(cfg.Notify.AMQPURL, cfg.Notify.ManagementURL, cfg.Notify.QueueKey)
	default:
		return nil, fmt.Errorf("неизвестный бэкенд очереди: %s", cfg.Notify.QueueBackend)
	}
}
