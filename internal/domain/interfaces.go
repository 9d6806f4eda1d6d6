package domain

import (
	"context"
	"fmt"
	"time"
)

// UserRepo управляет учётными записями.
type UserRepo interface {
	Create(ctx context.Context, user User) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	AddRole(ctx context.Context, userID int64, role Role) (User, error)
	SetActiveRole(ctx context.Context, userID int64, role Role) error
	ListJournalists(ctx context.Context) ([]User, error)
}

// PublisherRepo управляет издательствами и их составом.
type PublisherRepo interface {
	Create(ctx context.Context, name string) (Publisher, error)
	GetByID(ctx context.Context, id int64) (Publisher, error)
	List(ctx context.Context) ([]Publisher, error)
	AddEditor(ctx context.Context, publisherID, userID int64) error
	AddJournalist(ctx context.Context, publisherID, userID int64) error
	IsEditor(ctx context.Context, publisherID, userID int64) (bool, error)
	ListEditors(ctx context.Context, publisherID int64) ([]User, error)
	ListJournalists(ctx context.Context, publisherID int64) ([]User, error)
	ListEditorPublisherIDs(ctx context.Context, userID int64) ([]int64, error)
	ListJournalistPublisherIDs(ctx context.Context, userID int64) ([]int64, error)
}

// SubscriptionRepo управляет подписками читателей.
type SubscriptionRepo interface {
	// GetOrCreate возвращает существующую подписку с той же парой
	// (читатель, цель) либо создаёт новую. Второй результат — признак создания.
	GetOrCreate(ctx context.Context, sub Subscription) (Subscription, bool, error)
	GetByID(ctx context.Context, id int64) (Subscription, error)
	Delete(ctx context.Context, id int64) error
	ListForReader(ctx context.Context, readerID int64, target string) ([]Subscription, error)
	// Recipients возвращает читателей, подписанных на издательство
	// контента или на его автора, без дубликатов.
	Recipients(ctx context.Context, publisherID *int64, authorID int64) ([]User, error)
}

// ContentFilter задаёт параметры выборки видимого контента.
type ContentFilter struct {
	// AuthorID ограничивает выборку одним автором.
	AuthorID *int64
	// IncludeHidden добавляет неодобренный контент автора (фильтр «моё»).
	IncludeHidden bool
}

// ContentRepo управляет статьями и рассылками.
type ContentRepo interface {
	Create(ctx context.Context, item Content) (Content, error)
	GetByID(ctx context.Context, kind ContentKind, id int64) (Content, error)
	// Approve выполняет условный переход approved=false -> true одним
	// запросом. Второй результат false означает, что контент уже был
	// одобрен и переход не состоялся.
	Approve(ctx context.Context, kind ContentKind, id, editorID int64) (Content, bool, error)
	Update(ctx context.Context, kind ContentKind, id int64, title, body string) (Content, error)
	Delete(ctx context.Context, kind ContentKind, id int64) error
	ListVisible(ctx context.Context, kind ContentKind, filter ContentFilter) ([]Content, error)
	ListPending(ctx context.Context, kind ContentKind, publisherIDs []int64) ([]Content, error)
	ListApprovedByPublisher(ctx context.Context, kind ContentKind, publisherID int64) ([]Content, error)
	// ListFeed возвращает одобренные статьи из подписок читателя,
	// отсортированные по дате публикации по убыванию.
	ListFeed(ctx context.Context, readerID int64) ([]FeedItem, error)
}

// Mailer отправляет письма подписчикам. Поставляется внешним транспортом.
type Mailer interface {
	Send(ctx context.Context, recipients []string, subject, body string) error
}

// SocialPoster публикует анонс в социальной сети.
type SocialPoster interface {
	Post(ctx context.Context, text string) error
}

// ApprovalHook вызывается движком рабочего процесса синхронно и ровно один
// раз на переход approved=false -> true. Ошибки обработчика не влияют на
// результат одобрения.
type ApprovalHook interface {
	ContentApproved(ctx context.Context, item Content)
}

// Cache используется для простых TTL-хранилищ: сессии, кэш ленты,
// дедупликация рассылки.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
	Del(key string) error
}

// Форматы выдачи ленты подписок.
const (
	FeedFormatJSON = "json"
	FeedFormatXML  = "xml"
)

// FeedCacheKey — ключ кэша ленты читателя. Сброс этих ключей при одобрении
// контента держит ленту свежей в пределах TTL.
func FeedCacheKey(userID int64, format string) string {
	return fmt.Sprintf("feed:%d:%s", userID, format)
}
