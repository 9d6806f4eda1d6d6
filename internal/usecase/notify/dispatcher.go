package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"newsroom/internal/domain"
	"newsroom/internal/infra/metrics"
)

// Пределы длины исходящих текстов.
const (
	maxAnnounceRunes = 280
	maxBodyRunes     = 500
)

// fanoutOnceTTL держит ключ дедупликации дольше любого повторного прогона
// задачи из очереди.
const fanoutOnceTTL = 24 * time.Hour

// Dispatcher выполняет рассылку по факту одобрения контента: анонс в
// социальную сеть и письма подписчикам. Все ошибки внешних вызовов
// проглатываются и логируются — сбой рассылки никогда не отменяет одобрение.
type Dispatcher struct {
	subs    domain.SubscriptionRepo
	mailer  domain.Mailer
	poster  domain.SocialPoster
	cache   domain.Cache
	logger  zerolog.Logger
	timeout time.Duration
}

func NewDispatcher(subs domain.SubscriptionRepo, mailer domain.Mailer, poster domain.SocialPoster, cache domain.Cache, logger zerolog.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{subs: subs, mailer: mailer, poster: poster, cache: cache, logger: logger, timeout: timeout}
}

// ContentApproved реализует domain.ApprovalHook.
func (d *Dispatcher) ContentApproved(ctx context.Context, item domain.Content) {
	d.Dispatch(ctx, item)
}

// Dispatch выполняет один цикл рассылки по контенту. SetNX-ключ в кэше
// страхует от повторной рассылки при наложении доставок из очереди; при
// недоступном кэше рассылка всё равно выполняется.
func (d *Dispatcher) Dispatch(ctx context.Context, item domain.Content) {
	if d.cache == nil {
		d.dispatch(ctx, item)
		return
	}
	key := fmt.Sprintf("fanout:%s:%d", item.Kind, item.ID)
	err := d.cache.Once(key, fanoutOnceTTL, func() error {
		d.dispatch(ctx, item)
		return nil
	})
	if err != nil {
		metrics.IncFanoutError("cache")
		d.logger.Warn().Err(err).Int64("content_id", item.ID).Msg("notify: дедупликация через кэш недоступна")
		d.dispatch(ctx, item)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, item domain.Content) {
	metrics.FanoutsTotal.Inc()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	announcement := truncateRunes(fmt.Sprintf("New %s published: %s", kindLabel(item.Kind), item.Title), maxAnnounceRunes)
	if d.poster != nil {
		if err := d.poster.Post(ctx, announcement); err != nil {
			metrics.IncFanoutError("social")
			d.logger.Warn().Err(err).Int64("content_id", item.ID).Msg("notify: публикация анонса не удалась")
		}
	}

	recipients, err := d.subs.Recipients(ctx, item.PublisherID, item.AuthorID)
	if err != nil {
		metrics.IncFanoutError("store")
		d.logger.Error().Err(err).Int64("content_id", item.ID).Msg("notify: не удалось собрать получателей")
		return
	}

	// Лента каждого подписчика изменилась — кэшированные копии устарели.
	d.invalidateFeeds(recipients)

	emails := make([]string, 0, len(recipients))
	for _, user := range recipients {
		if user.Email != "" {
			emails = append(emails, user.Email)
		}
	}
	if len(emails) == 0 {
		return
	}

	subject := fmt.Sprintf("New %s published: %s", kindLabel(item.Kind), item.Title)
	if err := d.mailer.Send(ctx, emails, subject, truncateRunes(item.Body, maxBodyRunes)); err != nil {
		metrics.IncFanoutError("email")
		d.logger.Warn().Err(err).Int64("content_id", item.ID).Int("recipients", len(emails)).Msg("notify: отправка писем не удалась")
	}
}

func (d *Dispatcher) invalidateFeeds(recipients []domain.User) {
	if d.cache == nil {
		return
	}
	for _, user := range recipients {
		for _, format := range []string{domain.FeedFormatJSON, domain.FeedFormatXML} {
			if err := d.cache.Del(domain.FeedCacheKey(user.ID, format)); err != nil {
				metrics.IncFanoutError("cache")
				d.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("notify: не удалось сбросить кэш ленты")
			}
		}
	}
}

func kindLabel(kind domain.ContentKind) string {
	if kind == domain.KindNewsletter {
		return "newsletter"
	}
	return "article"
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

var _ domain.ApprovalHook = (*Dispatcher)(nil)
