package main

import (
	"context"
	"database/sql"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"newsroom/internal/infra/config"
	"newsroom/internal/infra/log"
	"newsroom/migrations"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv, "migrate")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := sql.Open("pgx", cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось открыть соединение с postgres")
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("postgres недоступен")
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать goose provider")
	}

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "up":
		results, err := provider.Up(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("миграция не применилась")
		}
		for _, res := range results {
			logger.Info().Str("migration", res.Source.Path).Msg("миграция применена")
		}
	case "down":
		res, err := provider.Down(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("откат не выполнился")
		}
		logger.Info().Str("migration", res.Source.Path).Msg("миграция откатана")
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось получить статус миграций")
		}
		for _, st := range statuses {
			logger.Info().
				Str("migration", st.Source.Path).
				Str("state", string(st.State)).
				Msg("статус миграции")
		}
	default:
		logger.Fatal().Str("command", command).Msg("неизвестная команда, ожидается up|down|status")
	}
}
