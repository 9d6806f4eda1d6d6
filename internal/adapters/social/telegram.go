package social

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"newsroom/internal/domain"
	"newsroom/internal/infra/metrics"
)

// TelegramAnnouncer дублирует анонсы в телеграм-канал редакции.
type TelegramAnnouncer struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramAnnouncer(token string, chatID int64) (*TelegramAnnouncer, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &TelegramAnnouncer{bot: bot, chatID: chatID}, nil
}

// Post реализует domain.SocialPoster.
func (a *TelegramAnnouncer) Post(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(a.chatID, text)
	msg.DisableWebPagePreview = true

	start := time.Now()
	_, err := a.bot.Send(msg)
	metrics.ObserveNetworkRequest("social", "post", "telegram", start, err)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// Fanout рассылает анонс во все подключённые сети и возвращает первую ошибку.
type Fanout []domain.SocialPoster

// Post реализует domain.SocialPoster поверх набора сетей. Ошибка одной сети
// не прерывает публикацию в остальных.
func (f Fanout) Post(ctx context.Context, text string) error {
	var firstErr error
	for _, poster := range f {
		if err := poster.Post(ctx, text); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var (
	_ domain.SocialPoster = (*TelegramAnnouncer)(nil)
	_ domain.SocialPoster = (Fanout)(nil)
)
