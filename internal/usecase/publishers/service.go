package publishers

import (
	"context"
	"fmt"
	"strings"

	"newsroom/internal/domain"
)

// Service управляет издательствами и их составом.
type Service struct {
	publishers domain.PublisherRepo
	users      domain.UserRepo
	contents   domain.ContentRepo
}

func NewService(publishers domain.PublisherRepo, users domain.UserRepo, contents domain.ContentRepo) *Service {
	return &Service{publishers: publishers, users: users, contents: contents}
}

// Create создаёт издательство и зачисляет создателя в набор редакторов.
func (s *Service) Create(ctx context.Context, acting domain.User, name string) (domain.Publisher, error) {
	if !domain.RoleAllows(acting.ActiveRole, domain.PermManagePublisher) {
		return domain.Publisher{}, domain.ErrPermission
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Publisher{}, fmt.Errorf("%w: имя издательства обязательно", domain.ErrValidation)
	}

	pub, err := s.publishers.Create(ctx, name)
	if err != nil {
		return domain.Publisher{}, err
	}
	if err := s.publishers.AddEditor(ctx, pub.ID, acting.ID); err != nil {
		return domain.Publisher{}, fmt.Errorf("зачисление создателя в редакторы: %w", err)
	}
	return pub, nil
}

// AddEditor добавляет зарегистрированного редактора в состав издательства.
// Действующий пользователь обязан сам быть редактором этого издательства.
func (s *Service) AddEditor(ctx context.Context, acting domain.User, publisherID int64, targetUsername string) error {
	if !domain.RoleAllows(acting.ActiveRole, domain.PermManagePublisher) {
		return domain.ErrPermission
	}
	member, err := s.publishers.IsEditor(ctx, publisherID, acting.ID)
	if err != nil {
		return fmt.Errorf("проверка членства: %w", err)
	}
	if !member {
		return domain.ErrPermission
	}

	target, err := s.users.GetByUsername(ctx, targetUsername)
	if err != nil {
		return err
	}
	if !target.HasRole(domain.RoleEditor) {
		return fmt.Errorf("%w: пользователь %s не зарегистрирован как редактор", domain.ErrNotFound, targetUsername)
	}
	return s.publishers.AddEditor(ctx, publisherID, target.ID)
}

// JoinAsJournalist зачисляет действующего журналиста в состав издательства.
// Повторное зачисление — no-op.
func (s *Service) JoinAsJournalist(ctx context.Context, acting domain.User, publisherID int64) error {
	if !domain.RoleAllows(acting.ActiveRole, domain.PermJoinPublisher) {
		return domain.ErrPermission
	}
	if _, err := s.publishers.GetByID(ctx, publisherID); err != nil {
		return err
	}
	return s.publishers.AddJournalist(ctx, publisherID, acting.ID)
}

// List возвращает все издательства.
func (s *Service) List(ctx context.Context) ([]domain.Publisher, error) {
	return s.publishers.List(ctx)
}

// Detail собирает карточку издательства: состав и одобренные публикации.
func (s *Service) Detail(ctx context.Context, publisherID int64) (domain.PublisherDetail, error) {
	pub, err := s.publishers.GetByID(ctx, publisherID)
	if err != nil {
		return domain.PublisherDetail{}, err
	}

	detail := domain.PublisherDetail{Publisher: pub}
	if detail.Editors, err = s.publishers.ListEditors(ctx, publisherID); err != nil {
		return domain.PublisherDetail{}, fmt.Errorf("состав редакторов: %w", err)
	}
	if detail.Journalists, err = s.publishers.ListJournalists(ctx, publisherID); err != nil {
		return domain.PublisherDetail{}, fmt.Errorf("состав журналистов: %w", err)
	}
	if detail.Articles, err = s.contents.ListApprovedByPublisher(ctx, domain.KindArticle, publisherID); err != nil {
		return domain.PublisherDetail{}, fmt.Errorf("статьи издательства: %w", err)
	}
	if detail.Newsletters, err = s.contents.ListApprovedByPublisher(ctx, domain.KindNewsletter, publisherID); err != nil {
		return domain.PublisherDetail{}, fmt.Errorf("рассылки издательства: %w", err)
	}
	return detail, nil
}
