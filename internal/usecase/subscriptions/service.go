package subscriptions

import (
	"context"
	"errors"
	"fmt"

	"newsroom/internal/domain"
)

// Service управляет подписками читателей.
type Service struct {
	subs       domain.SubscriptionRepo
	publishers domain.PublisherRepo
	users      domain.UserRepo
}

func NewService(subs domain.SubscriptionRepo, publishers domain.PublisherRepo, users domain.UserRepo) *Service {
	return &Service{subs: subs, publishers: publishers, users: users}
}

// Subscribe создаёт подписку читателя на издательство либо журналиста.
// Повторная подписка на ту же цель возвращает существующую запись.
func (s *Service) Subscribe(ctx context.Context, acting domain.User, target domain.SubscriptionTarget) (domain.Subscription, bool, error) {
	if !domain.RoleAllows(acting.ActiveRole, domain.PermManageSubscribes) {
		return domain.Subscription{}, false, domain.ErrPermission
	}

	sub := domain.Subscription{
		ReaderID:     acting.ID,
		PublisherID:  target.PublisherID,
		JournalistID: target.JournalistID,
	}
	if err := sub.Validate(); err != nil {
		return domain.Subscription{}, false, err
	}

	switch {
	case target.PublisherID != nil:
		if _, err := s.publishers.GetByID(ctx, *target.PublisherID); err != nil {
			return domain.Subscription{}, false, err
		}
	case target.JournalistID != nil:
		journalist, err := s.users.GetByID(ctx, *target.JournalistID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Subscription{}, false, fmt.Errorf("%w: журналист не найден", domain.ErrInvalidTarget)
		}
		if err != nil {
			return domain.Subscription{}, false, fmt.Errorf("поиск журналиста: %w", err)
		}
		if !journalist.HasRole(domain.RoleJournalist) {
			return domain.Subscription{}, false, fmt.Errorf("%w: пользователь не журналист", domain.ErrInvalidTarget)
		}
	}

	return s.subs.GetOrCreate(ctx, sub)
}

// Unsubscribe удаляет подписку. Чужую подписку удалить нельзя.
func (s *Service) Unsubscribe(ctx context.Context, acting domain.User, subscriptionID int64) error {
	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if sub.ReaderID != acting.ID {
		return domain.ErrPermission
	}
	return s.subs.Delete(ctx, subscriptionID)
}

// ListForReader возвращает подписки действующего читателя. Параметр target
// ("publisher", "journalist" или пустая строка) сужает выборку.
func (s *Service) ListForReader(ctx context.Context, acting domain.User, target string) ([]domain.Subscription, error) {
	if !domain.RoleAllows(acting.ActiveRole, domain.PermManageSubscribes) {
		return nil, domain.ErrPermission
	}
	return s.subs.ListForReader(ctx, acting.ID, target)
}

// RecipientsFor возвращает набор читателей для рассылки по контенту:
// подписчики издательства и подписчики автора, без дубликатов.
func (s *Service) RecipientsFor(ctx context.Context, item domain.Content) ([]domain.User, error) {
	return s.subs.Recipients(ctx, item.PublisherID, item.AuthorID)
}
