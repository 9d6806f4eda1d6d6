package rest

import (
	"time"

	"newsroom/internal/domain"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type verifyRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type rolesResponse struct {
	Roles []domain.Role `json:"roles"`
}

type userResponse struct {
	ID         int64         `json:"id"`
	Username   string        `json:"username"`
	Email      string        `json:"email,omitempty"`
	Roles      []domain.Role `json:"roles"`
	ActiveRole domain.Role   `json:"active_role,omitempty"`
}

func toUserResponse(user domain.User) userResponse {
	roles := user.RegisteredRoles()
	if roles == nil {
		roles = []domain.Role{}
	}
	return userResponse{
		ID:         user.ID,
		Username:   user.Username,
		Email:      user.Email,
		Roles:      roles,
		ActiveRole: user.ActiveRole,
	}
}

func toUserList(users []domain.User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for _, user := range users {
		out = append(out, toUserResponse(user))
	}
	return out
}

type createContentRequest struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	PublishType string `json:"publish_type"`
	PublisherID *int64 `json:"publisher_id"`
}

type updateContentRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type contentResponse struct {
	ID            int64      `json:"id"`
	Kind          string     `json:"kind"`
	Title         string     `json:"title"`
	Body          string     `json:"body"`
	AuthorID      int64      `json:"author_id"`
	PublisherID   *int64     `json:"publisher_id"`
	IsIndependent bool       `json:"is_independent"`
	Approved      bool       `json:"approved"`
	ApprovedBy    *int64     `json:"approved_by"`
	CreatedAt     time.Time  `json:"created_at"`
	PublishedAt   *time.Time `json:"published_at"`
}

func toContentResponse(item domain.Content) contentResponse {
	return contentResponse{
		ID:            item.ID,
		Kind:          string(item.Kind),
		Title:         item.Title,
		Body:          item.Body,
		AuthorID:      item.AuthorID,
		PublisherID:   item.PublisherID,
		IsIndependent: item.IsIndependent,
		Approved:      item.Approved,
		ApprovedBy:    item.ApprovedBy,
		CreatedAt:     item.CreatedAt,
		PublishedAt:   item.PublishedAt,
	}
}

func toContentList(items []domain.Content) []contentResponse {
	out := make([]contentResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toContentResponse(item))
	}
	return out
}

type createPublisherRequest struct {
	Name string `json:"name"`
}

type addEditorRequest struct {
	Username string `json:"username"`
}

type publisherResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func toPublisherResponse(pub domain.Publisher) publisherResponse {
	return publisherResponse{ID: pub.ID, Name: pub.Name, CreatedAt: pub.CreatedAt}
}

type publisherDetailResponse struct {
	publisherResponse
	Editors     []userResponse    `json:"editors"`
	Journalists []userResponse    `json:"journalists"`
	Articles    []contentResponse `json:"articles"`
	Newsletters []contentResponse `json:"newsletters"`
	// Subscription заполняется для аутентифицированного читателя,
	// подписанного на это издательство.
	Subscription *subscriptionResponse `json:"subscription,omitempty"`
}

func toPublisherDetailResponse(detail domain.PublisherDetail) publisherDetailResponse {
	return publisherDetailResponse{
		publisherResponse: toPublisherResponse(detail.Publisher),
		Editors:           toUserList(detail.Editors),
		Journalists:       toUserList(detail.Journalists),
		Articles:          toContentList(detail.Articles),
		Newsletters:       toContentList(detail.Newsletters),
	}
}

type subscribeRequest struct {
	PublisherID  *int64 `json:"publisher_id"`
	JournalistID *int64 `json:"journalist_id"`
}

type subscriptionResponse struct {
	ID           int64     `json:"id"`
	ReaderID     int64     `json:"reader_id"`
	PublisherID  *int64    `json:"publisher_id"`
	JournalistID *int64    `json:"journalist_id"`
	CreatedAt    time.Time `json:"created_at"`
}

func toSubscriptionResponse(sub domain.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:           sub.ID,
		ReaderID:     sub.ReaderID,
		PublisherID:  sub.PublisherID,
		JournalistID: sub.JournalistID,
		CreatedAt:    sub.CreatedAt,
	}
}

func toSubscriptionList(subs []domain.Subscription) []subscriptionResponse {
	out := make([]subscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, toSubscriptionResponse(sub))
	}
	return out
}
