package content

import (
	"context"
	"fmt"
	"strings"
	"time"

	"newsroom/internal/domain"
	"newsroom/internal/infra/metrics"
)

// Service реализует рабочий процесс контента: создание, одобрение,
// правку и выборку видимого набора. Состояния контента: черновик на
// рассмотрении, независимая публикация (терминальное) и одобрено
// (терминальное). Состояния «отклонено» нет — отказ выражается бездействием.
type Service struct {
	contents   domain.ContentRepo
	publishers domain.PublisherRepo
	hook       domain.ApprovalHook
}

func NewService(contents domain.ContentRepo, publishers domain.PublisherRepo, hook domain.ApprovalHook) *Service {
	return &Service{contents: contents, publishers: publishers, hook: hook}
}

// Create создаёт статью или рассылку от имени действующего журналиста.
// Независимая публикация одобрена сразу и никогда не привязана к
// издательству, какой бы publisherID ни пришёл в запросе.
func (s *Service) Create(ctx context.Context, acting domain.User, kind domain.ContentKind, title, body string, publishType domain.PublishType, publisherID *int64) (domain.Content, error) {
	if !domain.RoleAllows(acting.ActiveRole, domain.PermCreateContent) {
		return domain.Content{}, domain.ErrPermission
	}
	if !kind.Valid() {
		return domain.Content{}, fmt.Errorf("%w: неизвестный вид контента %q", domain.ErrValidation, kind)
	}
	title = strings.TrimSpace(title)
	if title == "" || strings.TrimSpace(body) == "" {
		return domain.Content{}, fmt.Errorf("%w: заголовок и текст обязательны", domain.ErrValidation)
	}

	item := domain.Content{
		Kind:     kind,
		Title:    title,
		Body:     body,
		AuthorID: acting.ID,
	}
	switch publishType {
	case domain.PublishIndependent:
		now := time.Now()
		item.IsIndependent = true
		item.Approved = true
		item.PublishedAt = &now
		item.PublisherID = nil
	case domain.PublishSubmitted:
		item.PublisherID = publisherID
	default:
		return domain.Content{}, fmt.Errorf("%w: неизвестный способ публикации %q", domain.ErrValidation, publishType)
	}

	return s.contents.Create(ctx, item)
}

// Approve одобряет черновик. Действующий пользователь обязан быть активным
// редактором и членом набора редакторов издательства контента; черновик без
// издательства одобрить нельзя. Хук рассылки вызывается синхронно и только
// если переход approved=false -> true состоялся в этом запросе.
func (s *Service) Approve(ctx context.Context, acting domain.User, kind domain.ContentKind, id int64) (domain.Content, error) {
	if !domain.RoleAllows(acting.ActiveRole, domain.PermApproveContent) {
		return domain.Content{}, domain.ErrPermission
	}

	item, err := s.contents.GetByID(ctx, kind, id)
	if err != nil {
		return domain.Content{}, err
	}
	if item.PublisherID == nil {
		return domain.Content{}, domain.ErrPermission
	}
	member, err := s.publishers.IsEditor(ctx, *item.PublisherID, acting.ID)
	if err != nil {
		return domain.Content{}, fmt.Errorf("проверка членства: %w", err)
	}
	if !member {
		return domain.Content{}, domain.ErrPermission
	}

	approved, changed, err := s.contents.Approve(ctx, kind, id, acting.ID)
	if err != nil {
		return domain.Content{}, err
	}
	if changed {
		metrics.IncApproval(string(kind))
		if s.hook != nil {
			s.hook.ContentApproved(ctx, approved)
		}
	}
	return approved, nil
}

func (s *Service) canModify(ctx context.Context, acting domain.User, item domain.Content) (bool, error) {
	if acting.ID == item.AuthorID {
		return true, nil
	}
	if item.PublisherID == nil {
		return false, nil
	}
	return s.publishers.IsEditor(ctx, *item.PublisherID, acting.ID)
}

// Edit меняет заголовок и текст. Право правки у автора и у редакторов
// издательства контента. Статус одобрения правка не сбрасывает.
func (s *Service) Edit(ctx context.Context, acting domain.User, kind domain.ContentKind, id int64, title, body string) (domain.Content, error) {
	title = strings.TrimSpace(title)
	if title == "" || strings.TrimSpace(body) == "" {
		return domain.Content{}, fmt.Errorf("%w: заголовок и текст обязательны", domain.ErrValidation)
	}

	item, err := s.contents.GetByID(ctx, kind, id)
	if err != nil {
		return domain.Content{}, err
	}
	allowed, err := s.canModify(ctx, acting, item)
	if err != nil {
		return domain.Content{}, fmt.Errorf("проверка членства: %w", err)
	}
	if !allowed {
		return domain.Content{}, domain.ErrPermission
	}

	return s.contents.Update(ctx, kind, id, title, body)
}

// Delete удаляет контент. Права те же, что у Edit.
func (s *Service) Delete(ctx context.Context, acting domain.User, kind domain.ContentKind, id int64) error {
	item, err := s.contents.GetByID(ctx, kind, id)
	if err != nil {
		return err
	}
	allowed, err := s.canModify(ctx, acting, item)
	if err != nil {
		return fmt.Errorf("проверка членства: %w", err)
	}
	if !allowed {
		return domain.ErrPermission
	}

	return s.contents.Delete(ctx, kind, id)
}

// List возвращает видимый контент: одобренный либо независимый. Журналист с
// фильтром «моё» видит и собственные черновики; фильтр по автору показывает
// черновики только самому автору.
func (s *Service) List(ctx context.Context, viewer *domain.User, kind domain.ContentKind, mine bool, authorID *int64) ([]domain.Content, error) {
	filter := domain.ContentFilter{AuthorID: authorID}
	if mine && viewer != nil && viewer.HasRole(domain.RoleJournalist) {
		filter.AuthorID = &viewer.ID
	}
	if filter.AuthorID != nil && viewer != nil && *filter.AuthorID == viewer.ID && viewer.HasRole(domain.RoleJournalist) {
		filter.IncludeHidden = true
	}
	return s.contents.ListVisible(ctx, kind, filter)
}

// Get возвращает контент с учётом видимости: невидимый черновик доступен
// только автору и редакторам его издательства.
func (s *Service) Get(ctx context.Context, viewer *domain.User, kind domain.ContentKind, id int64) (domain.Content, error) {
	item, err := s.contents.GetByID(ctx, kind, id)
	if err != nil {
		return domain.Content{}, err
	}
	if item.Visible() {
		return item, nil
	}
	if viewer == nil {
		return domain.Content{}, domain.ErrNotFound
	}
	allowed, err := s.canModify(ctx, *viewer, item)
	if err != nil {
		return domain.Content{}, fmt.Errorf("проверка членства: %w", err)
	}
	if !allowed {
		// Черновик не раскрывается посторонним даже фактом существования.
		return domain.Content{}, domain.ErrNotFound
	}
	return item, nil
}

// PendingFor возвращает черновики издательств действующего редактора.
// Для остальных ролей операция запрещена.
func (s *Service) PendingFor(ctx context.Context, acting domain.User, kind domain.ContentKind) ([]domain.Content, error) {
	if !domain.RoleAllows(acting.ActiveRole, domain.PermApproveContent) {
		return nil, domain.ErrPermission
	}
	publisherIDs, err := s.publishers.ListEditorPublisherIDs(ctx, acting.ID)
	if err != nil {
		return nil, fmt.Errorf("издательства редактора: %w", err)
	}
	return s.contents.ListPending(ctx, kind, publisherIDs)
}

// Feed возвращает ленту одобренных статей из подписок читателя.
func (s *Service) Feed(ctx context.Context, acting domain.User) ([]domain.FeedItem, error) {
	return s.contents.ListFeed(ctx, acting.ID)
}
