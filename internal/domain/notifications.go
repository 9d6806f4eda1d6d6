package domain

import (
	"context"
	"time"
)

// NotificationJob содержит задачу рассылки уведомлений об одобренном контенте.
type NotificationJob struct {
	ID         string      `json:"job_id,omitempty"`
	Kind       ContentKind `json:"kind"`
	ContentID  int64       `json:"content_id"`
	EnqueuedAt time.Time   `json:"enqueued_at"`
}

// NotifyAckFunc подтверждает обработку задачи или возвращает её в очередь.
type NotifyAckFunc func(success bool) error

// NotifyQueue описывает очередь задач рассылки для асинхронного режима.
type NotifyQueue interface {
	Enqueue(ctx context.Context, job NotificationJob) error
	Receive(ctx context.Context) (NotificationJob, NotifyAckFunc, error)
}

// NotificationJobStatusRepo отслеживает доставку задач рассылки между
// повторами, гарантируя не более одной рассылки на задачу.
type NotificationJobStatusRepo interface {
	// EnsureNotificationJob регистрирует попытку обработки и возвращает
	// признак уже состоявшейся доставки и номер текущей попытки.
	EnsureNotificationJob(ctx context.Context, jobID string) (delivered bool, attempt int, err error)
	// MarkNotificationJobDelivered помечает задачу как доставленную.
	MarkNotificationJobDelivered(ctx context.Context, jobID string) error
}
