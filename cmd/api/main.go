package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"newsroom/internal/adapters/mailer"
	"newsroom/internal/adapters/repo"
	"newsroom/internal/adapters/rest"
	"newsroom/internal/adapters/social"
	"newsroom/internal/domain"
	"newsroom/internal/infra/cache"
	"newsroom/internal/infra/config"
	"newsroom/internal/infra/db"
	httpinfra "newsroom/internal/infra/http"
	"newsroom/internal/infra/log"
	"newsroom/internal/infra/metrics"
	"newsroom/internal/infra/queue"
	"newsroom/internal/usecase/content"
	"newsroom/internal/usecase/identity"
	"newsroom/internal/usecase/notify"
	"newsroom/internal/usecase/publishers"
	"newsroom/internal/usecase/subscriptions"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv, "api")
	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к postgres")
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	store := cache.NewRedis(redisClient)
	sessions := httpinfra.NewSessionStore(store, cfg.Session.TTL)
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

	dispatcher := notify.NewDispatcher(repos.Subscriptions, mailClient, posters, store, logger, cfg.Notify.Timeout)

	var hook domain.ApprovalHook = dispatcher
	if cfg.Notify.Mode == "queued" {
		notifyQueue, err := buildNotifyQueue(cfg, redisClient)
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось подключить очередь уведомлений")
		}
		hook = notify.NewQueuedDispatcher(notifyQueue, logger)
	}

	identitySvc := identity.NewService(repos.Users)
	publishersSvc := publishers.NewService(repos.Publishers, repos.Users, repos.Contents)
	subsSvc := subscriptions.NewService(repos.Subscriptions, repos.Publishers, repos.Users)
	contentSvc := content.NewService(repos.Contents, repos.Publishers, hook)

	handler := rest.NewHandler(identitySvc, publishersSvc, subsSvc, contentSvc, sessions, repos.Users, store, cfg.Feed.CacheTTL, logger)

	srv := httpinfra.NewServer(logger)
	srv.Router.Mount("/", handler.Routes())

	metrics.StartServer(ctx, logger, fmt.Sprintf(":%d", cfg.MetricsPort))

	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP сервер остановился с ошибкой")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("останавливаемся")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("ошибка при остановке HTTP сервера")
	}
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
