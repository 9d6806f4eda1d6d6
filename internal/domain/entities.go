package domain

import "time"

// User описывает учётную запись в системе.
// Один пользователь может быть зарегистрирован сразу в нескольких ролях,
// активная роль выбирается при входе.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	IsReader     bool
	IsJournalist bool
	IsEditor     bool
	ActiveRole   Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRole сообщает, зарегистрирован ли пользователь в указанной роли.
func (u User) HasRole(role Role) bool {
	switch role {
	case RoleReader:
		return u.IsReader
	case RoleJournalist:
		return u.IsJournalist
	case RoleEditor:
		return u.IsEditor
	}
	return false
}

// RegisteredRoles возвращает список зарегистрированных ролей пользователя.
func (u User) RegisteredRoles() []Role {
	var roles []Role
	if u.IsReader {
		roles = append(roles, RoleReader)
	}
	if u.IsJournalist {
		roles = append(roles, RoleJournalist)
	}
	if u.IsEditor {
		roles = append(roles, RoleEditor)
	}
	return roles
}

// Publisher описывает издательство, объединяющее журналистов и редакторов.
type Publisher struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// PublisherDetail содержит издательство вместе с составом и одобренным контентом.
type PublisherDetail struct {
	Publisher   Publisher
	Editors     []User
	Journalists []User
	Articles    []Content
	Newsletters []Content
}

// ContentKind различает статьи и рассылки. Структурно они идентичны,
// но хранятся и адресуются раздельно.
type ContentKind string

const (
	KindArticle    ContentKind = "article"
	KindNewsletter ContentKind = "newsletter"
)

// Valid сообщает, известен ли вид контента.
func (k ContentKind) Valid() bool {
	return k == KindArticle || k == KindNewsletter
}

// PublishType определяет путь публикации при создании контента.
type PublishType string

const (
	// PublishIndependent — самостоятельная публикация, контент виден сразу.
	PublishIndependent PublishType = "independent"
	// PublishSubmitted — отправка в издательство на одобрение редактором.
	PublishSubmitted PublishType = "submitted"
)

// Content описывает статью или рассылку.
// Инварианты: is_independent=true влечёт approved=true и заполненный published_at;
// approved_by заполняется только при одобрении редактором, у независимых публикаций
// он всегда пуст.
type Content struct {
	ID            int64
	Kind          ContentKind
	Title         string
	Body          string
	AuthorID      int64
	PublisherID   *int64
	IsIndependent bool
	Approved      bool
	ApprovedBy    *int64
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

// Visible сообщает, доступен ли контент читателям.
func (c Content) Visible() bool {
	return c.Approved || c.IsIndependent
}

// FeedItem — элемент ленты подписок с разыменованными именами.
type FeedItem struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Author      string     `json:"author"`
	Publisher   string     `json:"publisher"`
	PublishedAt *time.Time `json:"published_at"`
}

// Subscription описывает подписку читателя на издательство или журналиста.
// Ровно одно из полей PublisherID/JournalistID должно быть заполнено.
type Subscription struct {
	ID           int64
	ReaderID     int64
	PublisherID  *int64
	JournalistID *int64
	CreatedAt    time.Time
}

// Validate проверяет инвариант «издательство либо журналист, но не оба и не никто».
func (s Subscription) Validate() error {
	if (s.PublisherID == nil) == (s.JournalistID == nil) {
		return ErrInvalidTarget
	}
	return nil
}

// SubscriptionTarget задаёт цель подписки.
type SubscriptionTarget struct {
	PublisherID  *int64
	JournalistID *int64
}
