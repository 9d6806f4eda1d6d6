package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"newsroom/internal/domain"
	httpinfra "newsroom/internal/infra/http"
	"newsroom/internal/usecase/content"
	"newsroom/internal/usecase/identity"
	"newsroom/internal/usecase/notify"
	"newsroom/internal/usecase/publishers"
	"newsroom/internal/usecase/subscriptions"
)

// memDB — общее хранилище для всех репозиториев теста.
type memDB struct {
	users       map[int64]domain.User
	pubs        map[int64]domain.Publisher
	editors     map[int64]map[int64]bool
	journalists map[int64]map[int64]bool
	subs        map[int64]domain.Subscription
	content     map[domain.ContentKind]map[int64]domain.Content
	seq         int64
}

func newMemDB() *memDB {
	return &memDB{
		users:       map[int64]domain.User{},
		pubs:        map[int64]domain.Publisher{},
		editors:     map[int64]map[int64]bool{},
		journalists: map[int64]map[int64]bool{},
		subs:        map[int64]domain.Subscription{},
		content: map[domain.ContentKind]map[int64]domain.Content{
			domain.KindArticle:    {},
			domain.KindNewsletter: {},
		},
	}
}

func (db *memDB) nextID() int64 {
	db.seq++
	return db.seq
}

type memUsers struct{ db *memDB }

func (m *memUsers) Create(_ context.Context, user domain.User) (domain.User, error) {
	for _, existing := range m.db.users {
		if existing.Username == user.Username {
			return domain.User{}, domain.ErrValidation
		}
	}
	user.ID = m.db.nextID()
	m.db.users[user.ID] = user
	return user, nil
}

func (m *memUsers) GetByID(_ context.Context, id int64) (domain.User, error) {
	user, ok := m.db.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (domain.User, error) {
	for _, user := range m.db.users {
		if user.Username == username {
			return user, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *memUsers) AddRole(_ context.Context, userID int64, role domain.Role) (domain.User, error) {
	user, ok := m.db.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	switch role {
	case domain.RoleReader:
		user.IsReader = true
	case domain.RoleJournalist:
		user.IsJournalist = true
	case domain.RoleEditor:
		user.IsEditor = true
	}
	user.ActiveRole = role
	m.db.users[userID] = user
	return user, nil
}

func (m *memUsers) SetActiveRole(_ context.Context, userID int64, role domain.Role) error {
	user, ok := m.db.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	user.ActiveRole = role
	m.db.users[userID] = user
	return nil
}

func (m *memUsers) ListJournalists(_ context.Context) ([]domain.User, error) {
	var out []domain.User
	for _, user := range m.db.users {
		if user.IsJournalist {
			out = append(out, user)
		}
	}
	return out, nil
}

type memPublishers struct{ db *memDB }

func (m *memPublishers) Create(_ context.Context, name string) (domain.Publisher, error) {
	for _, pub := range m.db.pubs {
		if pub.Name == name {
			return domain.Publisher{}, domain.ErrDuplicateName
		}
	}
	pub := domain.Publisher{ID: m.db.nextID(), Name: name, CreatedAt: time.Now()}
	m.db.pubs[pub.ID] = pub
	return pub, nil
}

func (m *memPublishers) GetByID(_ context.Context, id int64) (domain.Publisher, error) {
	pub, ok := m.db.pubs[id]
	if !ok {
		return domain.Publisher{}, domain.ErrNotFound
	}
	return pub, nil
}

func (m *memPublishers) List(_ context.Context) ([]domain.Publisher, error) {
	var out []domain.Publisher
	for _, pub := range m.db.pubs {
		out = append(out, pub)
	}
	return out, nil
}

func (m *memPublishers) AddEditor(_ context.Context, publisherID, userID int64) error {
	if m.db.editors[publisherID] == nil {
		m.db.editors[publisherID] = map[int64]bool{}
	}
	m.db.editors[publisherID][userID] = true
	return nil
}

func (m *memPublishers) AddJournalist(_ context.Context, publisherID, userID int64) error {
	if m.db.journalists[publisherID] == nil {
		m.db.journalists[publisherID] = map[int64]bool{}
	}
	m.db.journalists[publisherID][userID] = true
	return nil
}

func (m *memPublishers) IsEditor(_ context.Context, publisherID, userID int64) (bool, error) {
	return m.db.editors[publisherID][userID], nil
}

func (m *memPublishers) ListEditors(_ context.Context, publisherID int64) ([]domain.User, error) {
	var out []domain.User
	for id := range m.db.editors[publisherID] {
		out = append(out, m.db.users[id])
	}
	return out, nil
}

func (m *memPublishers) ListJournalists(_ context.Context, publisherID int64) ([]domain.User, error) {
	var out []domain.User
	for id := range m.db.journalists[publisherID] {
		out = append(out, m.db.users[id])
	}
	return out, nil
}

func (m *memPublishers) ListEditorPublisherIDs(_ context.Context, userID int64) ([]int64, error) {
	var out []int64
	for pubID, members := range m.db.editors {
		if members[userID] {
			out = append(out, pubID)
		}
	}
	return out, nil
}

func (m *memPublishers) ListJournalistPublisherIDs(_ context.Context, userID int64) ([]int64, error) {
	var out []int64
	for pubID, members := range m.db.journalists {
		if members[userID] {
			out = append(out, pubID)
		}
	}
	return out, nil
}

type memSubs struct{ db *memDB }

func (m *memSubs) GetOrCreate(_ context.Context, sub domain.Subscription) (domain.Subscription, bool, error) {
	if err := sub.Validate(); err != nil {
		return domain.Subscription{}, false, err
	}
	for _, existing := range m.db.subs {
		if existing.ReaderID != sub.ReaderID {
			continue
		}
		if existing.PublisherID != nil && sub.PublisherID != nil && *existing.PublisherID == *sub.PublisherID {
			return existing, false, nil
		}
		if existing.JournalistID != nil && sub.JournalistID != nil && *existing.JournalistID == *sub.JournalistID {
			return existing, false, nil
		}
	}
	sub.ID = m.db.nextID()
	sub.CreatedAt = time.Now()
	m.db.subs[sub.ID] = sub
	return sub, true, nil
}

func (m *memSubs) GetByID(_ context.Context, id int64) (domain.Subscription, error) {
	sub, ok := m.db.subs[id]
	if !ok {
		return domain.Subscription{}, domain.ErrNotFound
	}
	return sub, nil
}

func (m *memSubs) Delete(_ context.Context, id int64) error {
	if _, ok := m.db.subs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.db.subs, id)
	return nil
}

func (m *memSubs) ListForReader(_ context.Context, readerID int64, target string) ([]domain.Subscription, error) {
	var out []domain.Subscription
	for _, sub := range m.db.subs {
		if sub.ReaderID != readerID {
			continue
		}
		if target == "publisher" && sub.PublisherID == nil {
			continue
		}
		if target == "journalist" && sub.JournalistID == nil {
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}

func (m *memSubs) Recipients(_ context.Context, publisherID *int64, authorID int64) ([]domain.User, error) {
	seen := map[int64]bool{}
	var out []domain.User
	for _, sub := range m.db.subs {
		match := sub.JournalistID != nil && *sub.JournalistID == authorID
		if publisherID != nil && sub.PublisherID != nil && *sub.PublisherID == *publisherID {
			match = true
		}
		if match && !seen[sub.ReaderID] {
			seen[sub.ReaderID] = true
			out = append(out, m.db.users[sub.ReaderID])
		}
	}
	return out, nil
}

type memContents struct{ db *memDB }

func (m *memContents) Create(_ context.Context, item domain.Content) (domain.Content, error) {
	item.ID = m.db.nextID()
	item.CreatedAt = time.Now()
	m.db.content[item.Kind][item.ID] = item
	return item, nil
}

func (m *memContents) GetByID(_ context.Context, kind domain.ContentKind, id int64) (domain.Content, error) {
	item, ok := m.db.content[kind][id]
	if !ok {
		return domain.Content{}, domain.ErrNotFound
	}
	return item, nil
}

func (m *memContents) Approve(_ context.Context, kind domain.ContentKind, id, editorID int64) (domain.Content, bool, error) {
	item, ok := m.db.content[kind][id]
	if !ok {
		return domain.Content{}, false, domain.ErrNotFound
	}
	if item.Approved {
		return item, false, nil
	}
	now := time.Now()
	item.Approved = true
	item.ApprovedBy = &editorID
	item.PublishedAt = &now
	m.db.content[kind][id] = item
	return item, true, nil
}

func (m *memContents) Update(_ context.Context, kind domain.ContentKind, id int64, title, body string) (domain.Content, error) {
	item, ok := m.db.content[kind][id]
	if !ok {
		return domain.Content{}, domain.ErrNotFound
	}
	item.Title = title
	item.Body = body
	m.db.content[kind][id] = item
	return item, nil
}

func (m *memContents) Delete(_ context.Context, kind domain.ContentKind, id int64) error {
	if _, ok := m.db.content[kind][id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.db.content[kind], id)
	return nil
}

func (m *memContents) ListVisible(_ context.Context, kind domain.ContentKind, filter domain.ContentFilter) ([]domain.Content, error) {
	var out []domain.Content
	for _, item := range m.db.content[kind] {
		if filter.AuthorID != nil && item.AuthorID != *filter.AuthorID {
			continue
		}
		if !filter.IncludeHidden && !item.Visible() {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (m *memContents) ListPending(_ context.Context, kind domain.ContentKind, publisherIDs []int64) ([]domain.Content, error) {
	allowed := map[int64]bool{}
	for _, id := range publisherIDs {
		allowed[id] = true
	}
	var out []domain.Content
	for _, item := range m.db.content[kind] {
		if item.Approved || item.IsIndependent || item.PublisherID == nil {
			continue
		}
		if allowed[*item.PublisherID] {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *memContents) ListApprovedByPublisher(_ context.Context, kind domain.ContentKind, publisherID int64) ([]domain.Content, error) {
	var out []domain.Content
	for _, item := range m.db.content[kind] {
		if item.Approved && item.PublisherID != nil && *item.PublisherID == publisherID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *memContents) ListFeed(_ context.Context, readerID int64) ([]domain.FeedItem, error) {
	var items []domain.FeedItem
	for _, item := range m.db.content[domain.KindArticle] {
		if !item.Approved {
			continue
		}
		match := false
		for _, sub := range m.db.subs {
			if sub.ReaderID != readerID {
				continue
			}
			if sub.PublisherID != nil && item.PublisherID != nil && *sub.PublisherID == *item.PublisherID {
				match = true
			}
			if sub.JournalistID != nil && *sub.JournalistID == item.AuthorID {
				match = true
			}
		}
		if !match {
			continue
		}
		publisher := ""
		if item.PublisherID != nil {
			publisher = m.db.pubs[*item.PublisherID].Name
		}
		items = append(items, domain.FeedItem{
			ID:          item.ID,
			Title:       item.Title,
			Body:        item.Body,
			Author:      m.db.users[item.AuthorID].Username,
			Publisher:   publisher,
			PublishedAt: item.PublishedAt,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].PublishedAt.After(*items[j].PublishedAt)
	})
	return items, nil
}

// memCache — TTL игнорируется, кроме нулевого: тогда запись не сохраняется,
// что выключает кэш ленты в тестах сквозных сценариев.
type memCache struct {
	data map[string][]byte
	sets int
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}}
}

func (c *memCache) Once(key string, _ time.Duration, fn func() error) error {
	if _, ok := c.data[key]; ok {
		return nil
	}
	c.data[key] = []byte("1")
	if err := fn(); err != nil {
		delete(c.data, key)
		return err
	}
	return nil
}

func (c *memCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if strings.HasPrefix(key, "feed:") {
		c.sets++
	}
	c.data[key] = append([]byte(nil), value...)
	return nil
}

func (c *memCache) Get(key string) ([]byte, error) {
	value, ok := c.data[key]
	if !ok {
		return nil, fmt.Errorf("ключ %s не найден", key)
	}
	return value, nil
}

func (c *memCache) Del(key string) error {
	delete(c.data, key)
	return nil
}

type recordingMailer struct {
	calls   int
	lastTo  []string
	subject string
}

func (m *recordingMailer) Send(_ context.Context, recipients []string, subject, _ string) error {
	m.calls++
	m.lastTo = recipients
	m.subject = subject
	return nil
}

type recordingPoster struct {
	calls int
}

func (p *recordingPoster) Post(_ context.Context, _ string) error {
	p.calls++
	return nil
}

type fixture struct {
	server *httptest.Server
	db     *memDB
	cache  *memCache
	mailer *recordingMailer
	poster *recordingPoster
}

func newFixture(t *testing.T, feedTTL time.Duration) *fixture {
	t.Helper()

	db := newMemDB()
	users := &memUsers{db: db}
	pubs := &memPublishers{db: db}
	subs := &memSubs{db: db}
	contents := &memContents{db: db}
	cache := newMemCache()
	mailer := &recordingMailer{}
	poster := &recordingPoster{}

	dispatcher := notify.NewDispatcher(subs, mailer, poster, cache, zerolog.Nop(), time.Second)
	identitySvc := identity.NewService(users)
	publishersSvc := publishers.NewService(pubs, users, contents)
	subsSvc := subscriptions.NewService(subs, pubs, users)
	contentSvc := content.NewService(contents, pubs, dispatcher)
	sessions := httpinfra.NewSessionStore(cache, time.Hour)

	h := NewHandler(identitySvc, publishersSvc, subsSvc, contentSvc, sessions, users, cache, feedTTL, zerolog.Nop())
	server := httptest.NewServer(h.Routes())
	t.Cleanup(server.Close)

	return &fixture{server: server, db: db, cache: cache, mailer: mailer, poster: poster}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any, headers map[string]string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("сериализация запроса: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	if err != nil {
		t.Fatalf("создание запроса: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("выполнение запроса: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("чтение ответа: %v", err)
	}
	return resp.StatusCode, raw
}

func (f *fixture) register(t *testing.T, username, email, role string) string {
	t.Helper()

	status, raw := f.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": "secret",
		"role":     role,
	}, nil)
	if status != http.StatusCreated {
		t.Fatalf("регистрация %s/%s: статус %d, тело %s", username, role, status, raw)
	}
	var resp authResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("разбор ответа регистрации: %v", err)
	}
	return resp.Token
}

func TestAuthEndpoints(t *testing.T) {
	f := newFixture(t, 0)

	token := f.register(t, "alice", "alice@example.com", "reader")

	// Вторая роль для того же пользователя.
	status, _ := f.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "alice", "password": "secret", "role": "journalist",
	}, nil)
	if status != http.StatusCreated {
		t.Fatalf("дорегистрация роли: статус %d", status)
	}

	status, raw := f.do(t, http.MethodGet, "/api/v1/auth/roles?username=alice", "", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("roles: статус %d", status)
	}
	var roles rolesResponse
	if err := json.Unmarshal(raw, &roles); err != nil {
		t.Fatalf("разбор ролей: %v", err)
	}
	if len(roles.Roles) != 2 {
		t.Fatalf("ожидали 2 роли, получили %v", roles.Roles)
	}

	// Для незнакомого имени набор пустой, статус тот же.
	status, raw = f.do(t, http.MethodGet, "/api/v1/auth/roles?username=ghost", "", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("roles для незнакомого имени: статус %d", status)
	}
	if err := json.Unmarshal(raw, &roles); err != nil || len(roles.Roles) != 0 {
		t.Fatalf("ожидали пустой набор ролей, получили %s", raw)
	}

	status, _ = f.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "alice", "password": "wrong", "role": "reader",
	}, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("неверный пароль: ожидали 401, получили %d", status)
	}

	status, _ = f.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "alice", "password": "secret", "role": "editor",
	}, nil)
	if status != http.StatusForbidden {
		t.Fatalf("незарегистрированная роль: ожидали 403, получили %d", status)
	}

	status, _ = f.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil, nil)
	if status != http.StatusNoContent {
		t.Fatalf("logout: статус %d", status)
	}
	status, _ = f.do(t, http.MethodGet, "/api/v1/feed", token, nil, nil)
	if status != http.StatusForbidden {
		t.Fatalf("отозванный токен: ожидали 403, получили %d", status)
	}
}

func TestApprovalScenario(t *testing.T) {
	f := newFixture(t, 0)

	editorToken := f.register(t, "editor", "", "editor")
	outsiderToken := f.register(t, "outsider", "", "editor")
	journalistToken := f.register(t, "journalist", "", "journalist")
	readerToken := f.register(t, "reader", "reader@example.com", "reader")

	status, raw := f.do(t, http.MethodPost, "/api/v1/publishers", editorToken, map[string]string{"name": "Дайджест"}, nil)
	if status != http.StatusCreated {
		t.Fatalf("создание издательства: статус %d, тело %s", status, raw)
	}
	var pub publisherResponse
	if err := json.Unmarshal(raw, &pub); err != nil {
		t.Fatalf("разбор издательства: %v", err)
	}

	status, _ = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/publishers/%d/journalists", pub.ID), journalistToken, nil, nil)
	if status != http.StatusNoContent {
		t.Fatalf("вступление журналиста: статус %d", status)
	}

	status, _ = f.do(t, http.MethodPost, "/api/v1/subscriptions", readerToken, map[string]int64{"publisher_id": pub.ID}, nil)
	if status != http.StatusCreated {
		t.Fatalf("подписка: статус %d", status)
	}

	status, raw = f.do(t, http.MethodPost, "/api/v1/articles", journalistToken, map[string]any{
		"title": "Новость", "body": "Текст", "publish_type": "submitted", "publisher_id": pub.ID,
	}, nil)
	if status != http.StatusCreated {
		t.Fatalf("создание статьи: статус %d, тело %s", status, raw)
	}
	var article contentResponse
	if err := json.Unmarshal(raw, &article); err != nil {
		t.Fatalf("разбор статьи: %v", err)
	}
	if article.Approved {
		t.Fatal("статья не должна быть одобрена при создании")
	}

	// До одобрения лента пуста.
	status, raw = f.do(t, http.MethodGet, "/api/v1/feed", readerToken, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("лента: статус %d", status)
	}
	var feed []domain.FeedItem
	if err := json.Unmarshal(raw, &feed); err != nil {
		t.Fatalf("разбор ленты: %v", err)
	}
	if len(feed) != 0 {
		t.Fatalf("до одобрения лента должна быть пустой, элементов %d", len(feed))
	}

	// Редактор чужого издательства получает отказ.
	status, _ = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/articles/%d/approve", article.ID), outsiderToken, nil, nil)
	if status != http.StatusForbidden {
		t.Fatalf("чужой редактор: ожидали 403, получили %d", status)
	}
	if f.mailer.calls != 0 {
		t.Fatal("отказ в одобрении не должен вызывать рассылку")
	}

	// Свой редактор видит статью в очереди и одобряет.
	status, raw = f.do(t, http.MethodGet, "/api/v1/articles/pending", editorToken, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("очередь на одобрение: статус %d", status)
	}
	var pending []contentResponse
	if err := json.Unmarshal(raw, &pending); err != nil || len(pending) != 1 {
		t.Fatalf("в очереди должна быть одна статья: %s", raw)
	}

	status, raw = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/articles/%d/approve", article.ID), editorToken, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("одобрение: статус %d, тело %s", status, raw)
	}

	if f.poster.calls != 1 {
		t.Fatalf("анонс должен публиковаться один раз, вызовов %d", f.poster.calls)
	}
	if f.mailer.calls != 1 {
		t.Fatalf("рассылка должна состояться один раз, вызовов %d", f.mailer.calls)
	}
	if len(f.mailer.lastTo) != 1 || f.mailer.lastTo[0] != "reader@example.com" {
		t.Fatalf("письмо должно уйти подписчику: %v", f.mailer.lastTo)
	}

	// Повторное одобрение — no-op без второй рассылки.
	status, _ = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/articles/%d/approve", article.ID), editorToken, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("повторное одобрение: статус %d", status)
	}
	if f.mailer.calls != 1 {
		t.Fatalf("повтор не должен вызывать рассылку, вызовов %d", f.mailer.calls)
	}

	status, raw = f.do(t, http.MethodGet, "/api/v1/feed", readerToken, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("лента после одобрения: статус %d", status)
	}
	if err := json.Unmarshal(raw, &feed); err != nil {
		t.Fatalf("разбор ленты: %v", err)
	}
	if len(feed) != 1 || feed[0].Title != "Новость" {
		t.Fatalf("лента после одобрения: %s", raw)
	}
}

func TestFeedFormatsAndAuth(t *testing.T) {
	f := newFixture(t, 0)

	status, _ := f.do(t, http.MethodGet, "/api/v1/feed", "", nil, nil)
	if status != http.StatusForbidden {
		t.Fatalf("анонимная лента: ожидали 403, получили %d", status)
	}

	journalistToken := f.register(t, "journalist", "", "journalist")
	readerToken := f.register(t, "reader", "", "reader")

	var journalistID int64
	for _, user := range f.db.users {
		if user.Username == "journalist" {
			journalistID = user.ID
		}
	}
	status, _ = f.do(t, http.MethodPost, "/api/v1/subscriptions", readerToken, map[string]int64{"journalist_id": journalistID}, nil)
	if status != http.StatusCreated {
		t.Fatalf("подписка на журналиста: статус %d", status)
	}
	status, _ = f.do(t, http.MethodPost, "/api/v1/articles", journalistToken, map[string]any{
		"title": "Сам себе издатель", "body": "Текст", "publish_type": "independent",
	}, nil)
	if status != http.StatusCreated {
		t.Fatalf("независимая публикация: статус %d", status)
	}

	status, raw := f.do(t, http.MethodGet, "/api/v1/feed", readerToken, nil, map[string]string{"Accept": "application/xml"})
	if status != http.StatusOK {
		t.Fatalf("XML-лента: статус %d", status)
	}
	body := string(raw)
	if !strings.HasPrefix(body, "<root>") || !strings.Contains(body, "<article>") {
		t.Fatalf("неожиданная XML-форма: %s", body)
	}
	if !strings.Contains(body, "<publisher></publisher>") {
		t.Fatalf("пустое издательство должно отдаваться пустым элементом: %s", body)
	}
}

func TestFeedFreshAfterApproval(t *testing.T) {
	f := newFixture(t, time.Minute)

	editorToken := f.register(t, "editor", "", "editor")
	journalistToken := f.register(t, "journalist", "", "journalist")
	readerToken := f.register(t, "reader", "reader@example.com", "reader")

	status, raw := f.do(t, http.MethodPost, "/api/v1/publishers", editorToken, map[string]string{"name": "Вечер"}, nil)
	if status != http.StatusCreated {
		t.Fatalf("создание издательства: статус %d", status)
	}
	var pub publisherResponse
	if err := json.Unmarshal(raw, &pub); err != nil {
		t.Fatalf("разбор издательства: %v", err)
	}
	status, _ = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/publishers/%d/journalists", pub.ID), journalistToken, nil, nil)
	if status != http.StatusNoContent {
		t.Fatalf("вступление журналиста: статус %d", status)
	}
	status, _ = f.do(t, http.MethodPost, "/api/v1/subscriptions", readerToken, map[string]int64{"publisher_id": pub.ID}, nil)
	if status != http.StatusCreated {
		t.Fatalf("подписка: статус %d", status)
	}
	status, raw = f.do(t, http.MethodPost, "/api/v1/articles", journalistToken, map[string]any{
		"title": "Новость", "body": "Текст", "publish_type": "submitted", "publisher_id": pub.ID,
	}, nil)
	if status != http.StatusCreated {
		t.Fatalf("создание статьи: статус %d", status)
	}
	var article contentResponse
	if err := json.Unmarshal(raw, &article); err != nil {
		t.Fatalf("разбор статьи: %v", err)
	}

	// Читатель смотрит ленту до одобрения: пустой ответ попадает в кэш.
	status, raw = f.do(t, http.MethodGet, "/api/v1/feed", readerToken, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("лента до одобрения: статус %d", status)
	}
	var feed []domain.FeedItem
	if err := json.Unmarshal(raw, &feed); err != nil || len(feed) != 0 {
		t.Fatalf("до одобрения лента должна быть пустой: %s", raw)
	}
	if f.cache.sets != 1 {
		t.Fatalf("пустая лента должна закэшироваться, записей %d", f.cache.sets)
	}

	status, _ = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/articles/%d/approve", article.ID), editorToken, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("одобрение: статус %d", status)
	}

	// Одобрение сбрасывает кэш подписчика: лента свежая в пределах TTL.
	status, raw = f.do(t, http.MethodGet, "/api/v1/feed", readerToken, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("лента после одобрения: статус %d", status)
	}
	if err := json.Unmarshal(raw, &feed); err != nil {
		t.Fatalf("разбор ленты: %v", err)
	}
	if len(feed) != 1 || feed[0].Title != "Новость" {
		t.Fatalf("после одобрения лента должна показывать 1 элемент: %s", raw)
	}
}

func TestFeedCaching(t *testing.T) {
	f := newFixture(t, time.Minute)

	readerToken := f.register(t, "reader", "", "reader")

	status, first := f.do(t, http.MethodGet, "/api/v1/feed", readerToken, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("лента: статус %d", status)
	}
	if f.cache.sets != 1 {
		t.Fatalf("первый запрос должен наполнить кэш, записей %d", f.cache.sets)
	}

	status, second := f.do(t, http.MethodGet, "/api/v1/feed", readerToken, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("повторная лента: статус %d", status)
	}
	if f.cache.sets != 1 {
		t.Fatalf("повторный запрос должен идти из кэша, записей %d", f.cache.sets)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("кэшированный ответ отличается: %s vs %s", first, second)
	}
}

func TestContentVisibilityOverHTTP(t *testing.T) {
	f := newFixture(t, 0)

	editorToken := f.register(t, "editor", "", "editor")
	journalistToken := f.register(t, "journalist", "", "journalist")

	status, raw := f.do(t, http.MethodPost, "/api/v1/publishers", editorToken, map[string]string{"name": "Утро"}, nil)
	if status != http.StatusCreated {
		t.Fatalf("создание издательства: статус %d", status)
	}
	var pub publisherResponse
	if err := json.Unmarshal(raw, &pub); err != nil {
		t.Fatalf("разбор издательства: %v", err)
	}

	status, raw = f.do(t, http.MethodPost, "/api/v1/articles", journalistToken, map[string]any{
		"title": "Черновик", "body": "Текст", "publish_type": "submitted", "publisher_id": pub.ID,
	}, nil)
	if status != http.StatusCreated {
		t.Fatalf("создание черновика: статус %d", status)
	}
	var draft contentResponse
	if err := json.Unmarshal(raw, &draft); err != nil {
		t.Fatalf("разбор черновика: %v", err)
	}

	// Анонимный список не содержит черновик.
	status, raw = f.do(t, http.MethodGet, "/api/v1/articles", "", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("анонимный список: статус %d", status)
	}
	var list []contentResponse
	if err := json.Unmarshal(raw, &list); err != nil || len(list) != 0 {
		t.Fatalf("черновик не должен быть виден анониму: %s", raw)
	}

	// Автор с фильтром «моё» видит черновик.
	status, raw = f.do(t, http.MethodGet, "/api/v1/articles?mine=true", journalistToken, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("список «моё»: статус %d", status)
	}
	if err := json.Unmarshal(raw, &list); err != nil || len(list) != 1 {
		t.Fatalf("автор должен видеть свой черновик: %s", raw)
	}

	// Независимая публикация видна всем сразу, подписки не требуются.
	status, _ = f.do(t, http.MethodPost, "/api/v1/articles", journalistToken, map[string]any{
		"title": "Сразу в эфир", "body": "Текст", "publish_type": "independent",
	}, nil)
	if status != http.StatusCreated {
		t.Fatalf("независимая публикация: статус %d", status)
	}
	status, raw = f.do(t, http.MethodGet, "/api/v1/articles", "", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("анонимный список: статус %d", status)
	}
	if err := json.Unmarshal(raw, &list); err != nil || len(list) != 1 || list[0].Title != "Сразу в эфир" {
		t.Fatalf("независимая публикация должна быть видна анониму: %s", raw)
	}

	// Прямое чтение черновика посторонним — 404, автором — 200.
	status, _ = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/articles/%d", draft.ID), "", nil, nil)
	if status != http.StatusNotFound {
		t.Fatalf("аноним: ожидали 404, получили %d", status)
	}
	status, _ = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/articles/%d", draft.ID), journalistToken, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("автор: ожидали 200, получили %d", status)
	}
}

func TestSubscriptionEndpoints(t *testing.T) {
	f := newFixture(t, 0)

	readerToken := f.register(t, "reader", "", "reader")
	otherToken := f.register(t, "other", "", "reader")
	editorToken := f.register(t, "editor", "", "editor")

	status, raw := f.do(t, http.MethodPost, "/api/v1/publishers", editorToken, map[string]string{"name": "Утро"}, nil)
	if status != http.StatusCreated {
		t.Fatalf("создание издательства: статус %d", status)
	}
	var pub publisherResponse
	if err := json.Unmarshal(raw, &pub); err != nil {
		t.Fatalf("разбор издательства: %v", err)
	}

	// Пустая цель отклоняется.
	status, _ = f.do(t, http.MethodPost, "/api/v1/subscriptions", readerToken, map[string]any{}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("пустая цель: ожидали 400, получили %d", status)
	}

	status, raw = f.do(t, http.MethodPost, "/api/v1/subscriptions", readerToken, map[string]int64{"publisher_id": pub.ID}, nil)
	if status != http.StatusCreated {
		t.Fatalf("подписка: статус %d", status)
	}
	var sub subscriptionResponse
	if err := json.Unmarshal(raw, &sub); err != nil {
		t.Fatalf("разбор подписки: %v", err)
	}

	// Повторная подписка возвращает ту же запись.
	status, raw = f.do(t, http.MethodPost, "/api/v1/subscriptions", readerToken, map[string]int64{"publisher_id": pub.ID}, nil)
	if status != http.StatusOK {
		t.Fatalf("повторная подписка: ожидали 200, получили %d", status)
	}
	var repeat subscriptionResponse
	if err := json.Unmarshal(raw, &repeat); err != nil || repeat.ID != sub.ID {
		t.Fatalf("повторная подписка должна вернуть существующую запись: %s", raw)
	}

	// Карточка издательства показывает подписку её владельцу и только ему.
	status, raw = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/publishers/%d", pub.ID), readerToken, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("карточка издательства: статус %d", status)
	}
	var detail publisherDetailResponse
	if err := json.Unmarshal(raw, &detail); err != nil {
		t.Fatalf("разбор карточки: %v", err)
	}
	if detail.Subscription == nil || detail.Subscription.ID != sub.ID {
		t.Fatalf("подписка читателя должна быть в карточке: %s", raw)
	}
	status, raw = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/publishers/%d", pub.ID), "", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("анонимная карточка: статус %d", status)
	}
	var anonDetail publisherDetailResponse
	if err := json.Unmarshal(raw, &anonDetail); err != nil || anonDetail.Subscription != nil {
		t.Fatalf("аноним не должен видеть подписку: %s", raw)
	}

	// Чужую подписку удалить нельзя.
	status, _ = f.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/subscriptions/%d", sub.ID), otherToken, nil, nil)
	if status != http.StatusForbidden {
		t.Fatalf("чужая подписка: ожидали 403, получили %d", status)
	}
	status, _ = f.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/subscriptions/%d", sub.ID), readerToken, nil, nil)
	if status != http.StatusNoContent {
		t.Fatalf("удаление подписки: статус %d", status)
	}
}
