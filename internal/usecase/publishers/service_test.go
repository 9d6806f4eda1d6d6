package publishers

import (
	"context"
	"errors"
	"testing"

	"newsroom/internal/domain"
)

type stubPublishers struct {
	byID        map[int64]domain.Publisher
	editors     map[int64]map[int64]bool
	journalists map[int64]map[int64]bool
	nextID      int64
}

func newStubPublishers() *stubPublishers {
	return &stubPublishers{
		byID:        map[int64]domain.Publisher{},
		editors:     map[int64]map[int64]bool{},
		journalists: map[int64]map[int64]bool{},
	}
}

func (s *stubPublishers) Create(_ context.Context, name string) (domain.Publisher, error) {
	for _, pub := range s.byID {
		if pub.Name == name {
			return domain.Publisher{}, domain.ErrDuplicateName
		}
	}
	s.nextID++
	pub := domain.Publisher{ID: s.nextID, Name: name}
	s.byID[pub.ID] = pub
	return pub, nil
}

func (s *stubPublishers) GetByID(_ context.Context, id int64) (domain.Publisher, error) {
	pub, ok := s.byID[id]
	if !ok {
		return domain.Publisher{}, domain.ErrNotFound
	}
	return pub, nil
}

func (s *stubPublishers) List(_ context.Context) ([]domain.Publisher, error) {
	var out []domain.Publisher
	for _, pub := range s.byID {
		out = append(out, pub)
	}
	return out, nil
}

func (s *stubPublishers) AddEditor(_ context.Context, publisherID, userID int64) error {
	if s.editors[publisherID] == nil {
		s.editors[publisherID] = map[int64]bool{}
	}
	s.editors[publisherID][userID] = true
	return nil
}

func (s *stubPublishers) AddJournalist(_ context.Context, publisherID, userID int64) error {
	if s.journalists[publisherID] == nil {
		s.journalists[publisherID] = map[int64]bool{}
	}
	s.journalists[publisherID][userID] = true
	return nil
}

func (s *stubPublishers) IsEditor(_ context.Context, publisherID, userID int64) (bool, error) {
	return s.editors[publisherID][userID], nil
}

func (s *stubPublishers) ListEditors(_ context.Context, publisherID int64) ([]domain.User, error) {
	var out []domain.User
	for id := range s.editors[publisherID] {
		out = append(out, domain.User{ID: id})
	}
	return out, nil
}

func (s *stubPublishers) ListJournalists(_ context.Context, publisherID int64) ([]domain.User, error) {
	var out []domain.User
	for id := range s.journalists[publisherID] {
		out = append(out, domain.User{ID: id})
	}
	return out, nil
}

func (s *stubPublishers) ListEditorPublisherIDs(_ context.Context, userID int64) ([]int64, error) {
	var out []int64
	for pubID, members := range s.editors {
		if members[userID] {
			out = append(out, pubID)
		}
	}
	return out, nil
}

func (s *stubPublishers) ListJournalistPublisherIDs(_ context.Context, userID int64) ([]int64, error) {
	var out []int64
	for pubID, members := range s.journalists {
		if members[userID] {
			out = append(out, pubID)
		}
	}
	return out, nil
}

type stubUsers struct {
	byUsername map[string]domain.User
}

func (s *stubUsers) Create(_ context.Context, user domain.User) (domain.User, error) {
	return user, nil
}

func (s *stubUsers) GetByID(_ context.Context, id int64) (domain.User, error) {
	for _, user := range s.byUsername {
		if user.ID == id {
			return user, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (s *stubUsers) GetByUsername(_ context.Context, username string) (domain.User, error) {
	user, ok := s.byUsername[username]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

func (s *stubUsers) AddRole(_ context.Context, userID int64, _ domain.Role) (domain.User, error) {
	return domain.User{ID: userID}, nil
}

func (s *stubUsers) SetActiveRole(_ context.Context, _ int64, _ domain.Role) error { return nil }

func (s *stubUsers) ListJournalists(_ context.Context) ([]domain.User, error) { return nil, nil }

type stubContents struct {
	approvedByPublisher map[domain.ContentKind]map[int64][]domain.Content
}

func (s *stubContents) Create(_ context.Context, item domain.Content) (domain.Content, error) {
	return item, nil
}

func (s *stubContents) GetByID(_ context.Context, _ domain.ContentKind, _ int64) (domain.Content, error) {
	return domain.Content{}, domain.ErrNotFound
}

func (s *stubContents) Approve(_ context.Context, _ domain.ContentKind, _, _ int64) (domain.Content, bool, error) {
	return domain.Content{}, false, domain.ErrNotFound
}

func (s *stubContents) Update(_ context.Context, _ domain.ContentKind, _ int64, _, _ string) (domain.Content, error) {
	return domain.Content{}, domain.ErrNotFound
}

func (s *stubContents) Delete(_ context.Context, _ domain.ContentKind, _ int64) error {
	return domain.ErrNotFound
}

func (s *stubContents) ListVisible(_ context.Context, _ domain.ContentKind, _ domain.ContentFilter) ([]domain.Content, error) {
	return nil, nil
}

func (s *stubContents) ListPending(_ context.Context, _ domain.ContentKind, _ []int64) ([]domain.Content, error) {
	return nil, nil
}

func (s *stubContents) ListApprovedByPublisher(_ context.Context, kind domain.ContentKind, publisherID int64) ([]domain.Content, error) {
	return s.approvedByPublisher[kind][publisherID], nil
}

func (s *stubContents) ListFeed(_ context.Context, _ int64) ([]domain.FeedItem, error) {
	return nil, nil
}

func TestCreatePublisher(t *testing.T) {
	pubs := newStubPublishers()
	svc := NewService(pubs, &stubUsers{}, &stubContents{})
	editor := domain.User{ID: 10, ActiveRole: domain.RoleEditor}

	pub, err := svc.Create(context.Background(), editor, "Вечерние новости")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !pubs.editors[pub.ID][editor.ID] {
		t.Fatal("создатель не зачислен в редакторы")
	}

	if _, err := svc.Create(context.Background(), editor, "Вечерние новости"); !errors.Is(err, domain.ErrDuplicateName) {
		t.Fatalf("ожидали ErrDuplicateName, получили %v", err)
	}
}

func TestCreatePublisherRequiresEditorRole(t *testing.T) {
	svc := NewService(newStubPublishers(), &stubUsers{}, &stubContents{})
	reader := domain.User{ID: 1, ActiveRole: domain.RoleReader}

	if _, err := svc.Create(context.Background(), reader, "Утро"); !errors.Is(err, domain.ErrPermission) {
		t.Fatalf("ожидали ErrPermission, получили %v", err)
	}
}

func TestAddEditor(t *testing.T) {
	pubs := newStubPublishers()
	pubs.byID[1] = domain.Publisher{ID: 1, Name: "Утро"}
	pubs.editors[1] = map[int64]bool{10: true}
	users := &stubUsers{byUsername: map[string]domain.User{
		"dave":  {ID: 20, Username: "dave", IsEditor: true},
		"erin":  {ID: 21, Username: "erin", IsReader: true},
		"frank": {ID: 22, Username: "frank", IsEditor: true},
	}}
	svc := NewService(pubs, users, &stubContents{})
	member := domain.User{ID: 10, ActiveRole: domain.RoleEditor}
	outsider := domain.User{ID: 99, ActiveRole: domain.RoleEditor}

	if err := svc.AddEditor(context.Background(), member, 1, "dave"); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !pubs.editors[1][20] {
		t.Fatal("редактор не добавлен в состав")
	}

	// Повторное добавление — no-op.
	if err := svc.AddEditor(context.Background(), member, 1, "dave"); err != nil {
		t.Fatalf("повторное добавление должно быть no-op: %v", err)
	}

	if err := svc.AddEditor(context.Background(), outsider, 1, "frank"); !errors.Is(err, domain.ErrPermission) {
		t.Fatalf("чужой редактор: ожидали ErrPermission, получили %v", err)
	}
	if err := svc.AddEditor(context.Background(), member, 1, "erin"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("не-редактор: ожидали ErrNotFound, получили %v", err)
	}
	if err := svc.AddEditor(context.Background(), member, 1, "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("незнакомое имя: ожидали ErrNotFound, получили %v", err)
	}
}

func TestJoinAsJournalist(t *testing.T) {
	pubs := newStubPublishers()
	pubs.byID[1] = domain.Publisher{ID: 1, Name: "Утро"}
	svc := NewService(pubs, &stubUsers{}, &stubContents{})
	journalist := domain.User{ID: 30, ActiveRole: domain.RoleJournalist}
	reader := domain.User{ID: 31, ActiveRole: domain.RoleReader}

	if err := svc.JoinAsJournalist(context.Background(), journalist, 1); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !pubs.journalists[1][30] {
		t.Fatal("журналист не зачислен")
	}

	if err := svc.JoinAsJournalist(context.Background(), reader, 1); !errors.Is(err, domain.ErrPermission) {
		t.Fatalf("ожидали ErrPermission, получили %v", err)
	}
	if err := svc.JoinAsJournalist(context.Background(), journalist, 404); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ожидали ErrNotFound, получили %v", err)
	}
}

func TestPublisherDetail(t *testing.T) {
	pubs := newStubPublishers()
	pubs.byID[1] = domain.Publisher{ID: 1, Name: "Утро"}
	pubs.editors[1] = map[int64]bool{10: true}
	pubs.journalists[1] = map[int64]bool{30: true}
	contents := &stubContents{approvedByPublisher: map[domain.ContentKind]map[int64][]domain.Content{
		domain.KindArticle: {1: {{ID: 100, Kind: domain.KindArticle, Approved: true}}},
	}}
	svc := NewService(pubs, &stubUsers{}, contents)

	detail, err := svc.Detail(context.Background(), 1)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(detail.Editors) != 1 || len(detail.Journalists) != 1 {
		t.Fatalf("состав собран неверно: %d редакторов, %d журналистов", len(detail.Editors), len(detail.Journalists))
	}
	if len(detail.Articles) != 1 || len(detail.Newsletters) != 0 {
		t.Fatalf("публикации собраны неверно: %d статей, %d рассылок", len(detail.Articles), len(detail.Newsletters))
	}
}
