package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"newsroom/internal/domain"
)

type contextKey string

const userContextKey contextKey = "newsroom.user"

// Session хранит привязку токена к пользователю и активной роли.
type Session struct {
	UserID int64       `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// SessionStore выдаёт и проверяет сессионные токены поверх TTL-кэша.
type SessionStore struct {
	cache domain.Cache
	ttl   time.Duration
}

// NewSessionStore создаёт хранилище сессий.
func NewSessionStore(cache domain.Cache, ttl time.Duration) *SessionStore {
	return &SessionStore{cache: cache, ttl: ttl}
}

func sessionKey(token string) string {
	return "session:" + token
}

// Issue создаёт токен для пользователя с его активной ролью.
func (s *SessionStore) Issue(user domain.User) (string, error) {
	token := uuid.NewString()
	payload, err := json.Marshal(Session{UserID: user.ID, Role: user.ActiveRole})
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}
	if err := s.cache.Set(sessionKey(token), payload, s.ttl); err != nil {
		return "", fmt.Errorf("сохранение сессии: %w", err)
	}
	return token, nil
}

// Resolve возвращает сессию по токену.
func (s *SessionStore) Resolve(token string) (Session, error) {
	raw, err := s.cache.Get(sessionKey(token))
	if err != nil {
		return Session{}, domain.ErrAuthentication
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return Session{}, domain.ErrAuthentication
	}
	return sess, nil
}

// Revoke удаляет сессию.
func (s *SessionStore) Revoke(token string) error {
	return s.cache.Del(sessionKey(token))
}

// AuthMiddleware проверяет bearer-токен и кладёт пользователя в контекст запроса.
func AuthMiddleware(store *SessionStore, users domain.UserRepo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				WriteError(w, http.StatusForbidden, fmt.Errorf("требуется аутентификация"))
				return
			}
			sess, err := store.Resolve(token)
			if err != nil {
				WriteError(w, http.StatusForbidden, fmt.Errorf("сессия недействительна"))
				return
			}
			user, err := users.GetByID(r.Context(), sess.UserID)
			if err != nil {
				WriteError(w, http.StatusForbidden, fmt.Errorf("сессия недействительна"))
				return
			}
			user.ActiveRole = sess.Role
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

// WithUser кладёт пользователя в контекст.
func WithUser(ctx context.Context, user domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFrom возвращает пользователя из контекста запроса.
func UserFrom(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(userContextKey).(domain.User)
	return user, ok
}

// TokenFrom возвращает bearer-токен запроса.
func TokenFrom(r *http.Request) string {
	return bearerToken(r)
}

// ErrorResponse описывает ошибку.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteError отправляет JSON с ошибкой.
func WriteError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error()})
}

// WriteJSON отправляет JSON-ответ.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
