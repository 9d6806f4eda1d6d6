package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"newsroom/internal/domain"
)

// RedisNotifyQueue реализует очередь задач рассылки на базе Redis lists.
type RedisNotifyQueue struct {
	client *redis.Client
	key    string
}

// NewRedisNotifyQueue создаёт очередь по указанному ключу.
func NewRedisNotifyQueue(client *redis.Client, key string) *RedisNotifyQueue {
	return &RedisNotifyQueue{client: client, key: key}
}

// Enqueue публикует задачу в очередь.
func (q *RedisNotifyQueue) Enqueue(ctx context.Context, job domain.NotificationJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Receive блокирующе читает задачу из очереди. Подтверждение с success=false
// возвращает задачу в очередь.
func (q *RedisNotifyQueue) Receive(ctx context.Context) (domain.NotificationJob, domain.NotifyAckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.NotificationJob{}, nil, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.NotificationJob{}, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.NotificationJob{}, nil, err
		}
		if len(res) != 2 {
			return domain.NotificationJob{}, nil, errors.New("redis queue: unexpected response")
		}
		payload := []byte(res[1])
		var job domain.NotificationJob
		if err := json.Unmarshal(payload, &job); err != nil {
			return domain.NotificationJob{}, nil, fmt.Errorf("decode job: %w", err)
		}
		ack := func(success bool) error {
			if success {
				return nil
			}
			return q.client.LPush(context.Background(), q.key, payload).Err()
		}
		return job, ack, nil
	}
}
