package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"newsroom/internal/domain"
	httpinfra "newsroom/internal/infra/http"
	"newsroom/internal/infra/metrics"
	"newsroom/internal/usecase/content"
	"newsroom/internal/usecase/identity"
	"newsroom/internal/usecase/publishers"
	"newsroom/internal/usecase/subscriptions"
)

// Handler собирает REST-обработчики поверх сервисов рабочего процесса.
type Handler struct {
	identity   *identity.Service
	publishers *publishers.Service
	subs       *subscriptions.Service
	content    *content.Service
	sessions   *httpinfra.SessionStore
	users      domain.UserRepo
	cache      domain.Cache
	feedTTL    time.Duration
	logger     zerolog.Logger
}

func NewHandler(
	identitySvc *identity.Service,
	publishersSvc *publishers.Service,
	subsSvc *subscriptions.Service,
	contentSvc *content.Service,
	sessions *httpinfra.SessionStore,
	users domain.UserRepo,
	cache domain.Cache,
	feedTTL time.Duration,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		identity:   identitySvc,
		publishers: publishersSvc,
		subs:       subsSvc,
		content:    contentSvc,
		sessions:   sessions,
		users:      users,
		cache:      cache,
		feedTTL:    feedTTL,
		logger:     logger,
	}
}

// Routes строит маршруты API.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)
		r.Post("/auth/verify", h.verify)
		r.Get("/auth/roles", h.roles)

		r.Get("/publishers", h.listPublishers)
		r.Get("/journalists", h.listJournalists)

		// Публичные выборки: токен не обязателен, но учитывается,
		// чтобы автор видел собственные черновики и свою подписку.
		r.Group(func(r chi.Router) {
			r.Use(h.optionalAuth)
			r.Get("/publishers/{id}", h.publisherDetail)
			r.Get("/articles", h.listContent(domain.KindArticle))
			r.Get("/articles/{id}", h.getContent(domain.KindArticle))
			r.Get("/newsletters", h.listContent(domain.KindNewsletter))
			r.Get("/newsletters/{id}", h.getContent(domain.KindNewsletter))
		})

		r.Group(func(r chi.Router) {
			r.Use(httpinfra.AuthMiddleware(h.sessions, h.users))

			r.Post("/auth/logout", h.logout)
			r.Get("/feed", h.feed)

			r.Post("/articles", h.createContent(domain.KindArticle))
			r.Put("/articles/{id}", h.updateContent(domain.KindArticle))
			r.Delete("/articles/{id}", h.deleteContent(domain.KindArticle))
			r.Post("/articles/{id}/approve", h.approveContent(domain.KindArticle))
			r.Get("/articles/pending", h.pendingContent(domain.KindArticle))

			r.Post("/newsletters", h.createContent(domain.KindNewsletter))
			r.Put("/newsletters/{id}", h.updateContent(domain.KindNewsletter))
			r.Delete("/newsletters/{id}", h.deleteContent(domain.KindNewsletter))
			r.Post("/newsletters/{id}/approve", h.approveContent(domain.KindNewsletter))
			r.Get("/newsletters/pending", h.pendingContent(domain.KindNewsletter))

			r.Post("/publishers", h.createPublisher)
			r.Post("/publishers/{id}/editors", h.addEditor)
			r.Post("/publishers/{id}/journalists", h.joinPublisher)

			r.Get("/subscriptions", h.listSubscriptions)
			r.Post("/subscriptions", h.subscribe)
			r.Delete("/subscriptions/{id}", h.unsubscribe)
		})
	})
	return r
}

// optionalAuth кладёт пользователя в контекст, если токен валиден, и молча
// пропускает анонимные запросы.
func (h *Handler) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := httpinfra.TokenFrom(r); token != "" {
			if sess, err := h.sessions.Resolve(token); err == nil {
				if user, err := h.users.GetByID(r.Context(), sess.UserID); err == nil {
					user.ActiveRole = sess.Role
					r = r.WithContext(httpinfra.WithUser(r.Context(), user))
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrAuthentication):
		httpinfra.WriteError(w, http.StatusUnauthorized, err)
	case errors.Is(err, domain.ErrPermission), errors.Is(err, domain.ErrRoleNotRegistered):
		httpinfra.WriteError(w, http.StatusForbidden, err)
	case errors.Is(err, domain.ErrNotFound):
		httpinfra.WriteError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidTarget):
		httpinfra.WriteError(w, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrDuplicateName):
		httpinfra.WriteError(w, http.StatusConflict, err)
	default:
		h.logger.Error().Err(err).Msg("rest: внутренняя ошибка")
		httpinfra.WriteError(w, http.StatusInternalServerError, errors.New("внутренняя ошибка"))
	}
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: некорректное тело запроса", domain.ErrValidation)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: некорректный идентификатор", domain.ErrValidation)
	}
	return id, nil
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	role, ok := domain.ParseRole(req.Role)
	if !ok {
		h.respondErr(w, fmt.Errorf("%w: неизвестная роль %q", domain.ErrValidation, req.Role))
		return
	}

	user, err := h.identity.RegisterRole(r.Context(), req.Username, req.Email, req.Password, role)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	token, err := h.sessions.Issue(user)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, authResponse{Token: token, User: toUserResponse(user)})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	role, ok := domain.ParseRole(req.Role)
	if !ok {
		h.respondErr(w, fmt.Errorf("%w: неизвестная роль %q", domain.ErrValidation, req.Role))
		return
	}

	user, err := h.identity.Authenticate(r.Context(), req.Username, req.Password, role)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	token, err := h.sessions.Issue(user)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, authResponse{Token: token, User: toUserResponse(user)})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decode(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	user, err := h.identity.VerifyCredentials(r.Context(), req.Username, req.Password)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	roles := user.RegisteredRoles()
	if roles == nil {
		roles = []domain.Role{}
	}
	httpinfra.WriteJSON(w, http.StatusOK, rolesResponse{Roles: roles})
}

func (h *Handler) roles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.identity.RolesFor(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	if roles == nil {
		roles = []domain.Role{}
	}
	httpinfra.WriteJSON(w, http.StatusOK, rolesResponse{Roles: roles})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Revoke(httpinfra.TokenFrom(r)); err != nil {
		h.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func feedFormat(r *http.Request) string {
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/xml") || strings.Contains(accept, "text/xml") {
		return formatXML
	}
	return formatJSON
}

func (h *Handler) feed(w http.ResponseWriter, r *http.Request) {
	user, _ := httpinfra.UserFrom(r.Context())
	format := feedFormat(r)
	metrics.IncFeedRequest(format)

	cacheKey := domain.FeedCacheKey(user.ID, format)
	contentType := "application/json"
	if format == formatXML {
		contentType = "application/xml"
	}
	if raw, err := h.cache.Get(cacheKey); err == nil && len(raw) > 0 {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(raw)
		return
	}

	items, err := h.content.Feed(r.Context(), user)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	raw, contentType, err := renderFeed(items, format)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	if err := h.cache.Set(cacheKey, raw, h.feedTTL); err != nil {
		h.logger.Warn().Err(err).Msg("rest: кэширование ленты не удалось")
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (h *Handler) createContent(kind domain.ContentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := httpinfra.UserFrom(r.Context())
		var req createContentRequest
		if err := decode(r, &req); err != nil {
			h.respondErr(w, err)
			return
		}

		item, err := h.content.Create(r.Context(), user, kind, req.Title, req.Body, domain.PublishType(req.PublishType), req.PublisherID)
		if err != nil {
			h.respondErr(w, err)
			return
		}
		httpinfra.WriteJSON(w, http.StatusCreated, toContentResponse(item))
	}
}

func (h *Handler) listContent(kind domain.ContentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var viewer *domain.User
		if user, ok := httpinfra.UserFrom(r.Context()); ok {
			viewer = &user
		}
		mine := r.URL.Query().Get("mine") == "true"
		var authorID *int64
		if raw := r.URL.Query().Get("author"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				h.respondErr(w, fmt.Errorf("%w: некорректный фильтр автора", domain.ErrValidation))
				return
			}
			authorID = &id
		}

		items, err := h.content.List(r.Context(), viewer, kind, mine, authorID)
		if err != nil {
			h.respondErr(w, err)
			return
		}
		httpinfra.WriteJSON(w, http.StatusOK, toContentList(items))
	}
}

func (h *Handler) getContent(kind domain.ContentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			h.respondErr(w, err)
			return
		}
		var viewer *domain.User
		if user, ok := httpinfra.UserFrom(r.Context()); ok {
			viewer = &user
		}

		item, err := h.content.Get(r.Context(), viewer, kind, id)
		if err != nil {
			h.respondErr(w, err)
			return
		}
		httpinfra.WriteJSON(w, http.StatusOK, toContentResponse(item))
	}
}

func (h *Handler) updateContent(kind domain.ContentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			h.respondErr(w, err)
			return
		}
		user, _ := httpinfra.UserFrom(r.Context())
		var req updateContentRequest
		if err := decode(r, &req); err != nil {
			h.respondErr(w, err)
			return
		}

		item, err := h.content.Edit(r.Context(), user, kind, id, req.Title, req.Body)
		if err != nil {
			h.respondErr(w, err)
			return
		}
		httpinfra.WriteJSON(w, http.StatusOK, toContentResponse(item))
	}
}

func (h *Handler) deleteContent(kind domain.ContentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			h.respondErr(w, err)
			return
		}
		user, _ := httpinfra.UserFrom(r.Context())

		if err := h.content.Delete(r.Context(), user, kind, id); err != nil {
			h.respondErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) approveContent(kind domain.ContentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			h.respondErr(w, err)
			return
		}
		user, _ := httpinfra.UserFrom(r.Context())

		item, err := h.content.Approve(r.Context(), user, kind, id)
		if err != nil {
			h.respondErr(w, err)
			return
		}
		httpinfra.WriteJSON(w, http.StatusOK, toContentResponse(item))
	}
}

func (h *Handler) pendingContent(kind domain.ContentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := httpinfra.UserFrom(r.Context())

		items, err := h.content.PendingFor(r.Context(), user, kind)
		if err != nil {
			h.respondErr(w, err)
			return
		}
		httpinfra.WriteJSON(w, http.StatusOK, toContentList(items))
	}
}

func (h *Handler) createPublisher(w http.ResponseWriter, r *http.Request) {
	user, _ := httpinfra.UserFrom(r.Context())
	var req createPublisherRequest
	if err := decode(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}

	pub, err := h.publishers.Create(r.Context(), user, req.Name)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, toPublisherResponse(pub))
}

func (h *Handler) addEditor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	user, _ := httpinfra.UserFrom(r.Context())
	var req addEditorRequest
	if err := decode(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}

	if err := h.publishers.AddEditor(r.Context(), user, id, req.Username); err != nil {
		h.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) joinPublisher(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	user, _ := httpinfra.UserFrom(r.Context())

	if err := h.publishers.JoinAsJournalist(r.Context(), user, id); err != nil {
		h.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPublishers(w http.ResponseWriter, r *http.Request) {
	pubs, err := h.publishers.List(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	out := make([]publisherResponse, 0, len(pubs))
	for _, pub := range pubs {
		out = append(out, toPublisherResponse(pub))
	}
	httpinfra.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) publisherDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	detail, err := h.publishers.Detail(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	resp := toPublisherDetailResponse(detail)
	if user, ok := httpinfra.UserFrom(r.Context()); ok && user.ActiveRole == domain.RoleReader {
		subs, err := h.subs.ListForReader(r.Context(), user, "publisher")
		if err == nil {
			for _, sub := range subs {
				if sub.PublisherID != nil && *sub.PublisherID == id {
					matched := toSubscriptionResponse(sub)
					resp.Subscription = &matched
					break
				}
			}
		}
	}
	httpinfra.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) listJournalists(w http.ResponseWriter, r *http.Request) {
	journalists, err := h.users.ListJournalists(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, toUserList(journalists))
}

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	user, _ := httpinfra.UserFrom(r.Context())
	var req subscribeRequest
	if err := decode(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}

	sub, created, err := h.subs.Subscribe(r.Context(), user, domain.SubscriptionTarget{
		PublisherID:  req.PublisherID,
		JournalistID: req.JournalistID,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpinfra.WriteJSON(w, status, toSubscriptionResponse(sub))
}

func (h *Handler) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	user, _ := httpinfra.UserFrom(r.Context())

	subs, err := h.subs.ListForReader(r.Context(), user, r.URL.Query().Get("target"))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, toSubscriptionList(subs))
}

func (h *Handler) unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	user, _ := httpinfra.UserFrom(r.Context())

	if err := h.subs.Unsubscribe(r.Context(), user, id); err != nil {
		h.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
