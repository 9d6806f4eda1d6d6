package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"newsroom/internal/domain"
	"newsroom/internal/infra/metrics"
)

// QueuedDispatcher откладывает рассылку в очередь вместо выполнения в
// запросе. Сбой постановки в очередь проглатывается так же, как сбой
// прямой рассылки.
type QueuedDispatcher struct {
	queue  domain.NotifyQueue
	logger zerolog.Logger
}

func NewQueuedDispatcher(queue domain.NotifyQueue, logger zerolog.Logger) *QueuedDispatcher {
	return &QueuedDispatcher{queue: queue, logger: logger}
}

// ContentApproved реализует domain.ApprovalHook.
func (q *QueuedDispatcher) ContentApproved(ctx context.Context, item domain.Content) {
	job := domain.NotificationJob{
		ID:         uuid.NewString(),
		Kind:       item.Kind,
		ContentID:  item.ID,
		EnqueuedAt: time.Now(),
	}
	if err := q.queue.Enqueue(ctx, job); err != nil {
		metrics.IncFanoutError("queue")
		q.logger.Error().Err(err).Int64("content_id", item.ID).Msg("notify: постановка задачи в очередь не удалась")
	}
}

var _ domain.ApprovalHook = (*QueuedDispatcher)(nil)

// Worker обрабатывает очередь задач рассылки. Таблица статусов гарантирует
// не более одной рассылки на задачу даже при повторной доставке из очереди.
type Worker struct {
	queue       domain.NotifyQueue
	jobs        domain.NotificationJobStatusRepo
	contents    domain.ContentRepo
	dispatcher  *Dispatcher
	logger      zerolog.Logger
	maxAttempts int
}

func NewWorker(queue domain.NotifyQueue, jobs domain.NotificationJobStatusRepo, contents domain.ContentRepo, dispatcher *Dispatcher, logger zerolog.Logger, maxAttempts int) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Worker{
		queue:       queue,
		jobs:        jobs,
		contents:    contents,
		dispatcher:  dispatcher,
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

// Run крутит цикл обработки до отмены контекста.
func (w *Worker) Run(ctx context.Context) error {
	for {
		job, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error().Err(err).Msg("notify: приём задачи из очереди не удался")
			continue
		}
		w.handle(ctx, job, ack)
	}
}

func (w *Worker) handle(ctx context.Context, job domain.NotificationJob, ack domain.NotifyAckFunc) {
	logger := w.logger.With().Str("job_id", job.ID).Int64("content_id", job.ContentID).Logger()

	delivered, attempt, err := w.jobs.EnsureNotificationJob(ctx, job.ID)
	if err != nil {
		logger.Error().Err(err).Msg("notify: регистрация попытки не удалась")
		w.finish(ack, false, logger)
		return
	}
	if delivered {
		w.finish(ack, true, logger)
		return
	}
	if attempt > w.maxAttempts {
		logger.Error().Int("attempt", attempt).Msg("notify: задача исчерпала попытки и отброшена")
		w.finish(ack, true, logger)
		return
	}

	item, err := w.contents.GetByID(ctx, job.Kind, job.ContentID)
	if errors.Is(err, domain.ErrNotFound) {
		// Контент удалили до рассылки, задача больше не нужна.
		logger.Info().Msg("notify: контент удалён, задача снята")
		w.finish(ack, true, logger)
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("notify: чтение контента не удалось")
		w.finish(ack, false, logger)
		return
	}

	w.dispatcher.Dispatch(ctx, item)
	if err := w.jobs.MarkNotificationJobDelivered(ctx, job.ID); err != nil {
		logger.Error().Err(err).Msg("notify: фиксация доставки не удалась")
	}
	w.finish(ack, true, logger)
}

func (w *Worker) finish(ack domain.NotifyAckFunc, success bool, logger zerolog.Logger) {
	if err := ack(success); err != nil {
		logger.Error().Err(err).Msg("notify: подтверждение задачи не удалось")
	}
}
