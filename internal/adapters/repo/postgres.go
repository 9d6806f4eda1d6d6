package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"newsroom/internal/domain"
	"newsroom/internal/infra/metrics"
)

// Postgres объединяет репозитории на основе pgxpool.
type Postgres struct {
	Users         *Users
	Publishers    *Publishers
	Subscriptions *Subscriptions
	Contents      *Contents
	Jobs          *NotificationJobs
}

var (
	_ domain.UserRepo                  = (*Users)(nil)
	_ domain.PublisherRepo             = (*Publishers)(nil)
	_ domain.SubscriptionRepo          = (*Subscriptions)(nil)
	_ domain.ContentRepo               = (*Contents)(nil)
	_ domain.NotificationJobStatusRepo = (*NotificationJobs)(nil)
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{
		Users:         &Users{pool: pool},
		Publishers:    &Publishers{pool: pool},
		Subscriptions: &Subscriptions{pool: pool},
		Contents:      &Contents{pool: pool},
		Jobs:          &NotificationJobs{pool: pool},
	}
}

func reqCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// Users хранит учётные записи.
type Users struct {
	pool *pgxpool.Pool
}

const userColumns = `id, username, email, password_hash, is_reader, is_journalist, is_editor, active_role, created_at, updated_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsReader, &u.IsJournalist, &u.IsEditor, &u.ActiveRole, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func collectUsers(rows pgx.Rows) ([]domain.User, error) {
	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Create сохраняет нового пользователя.
func (r *Users) Create(ctx context.Context, user domain.User) (domain.User, error) {
	ctx, cancel := reqCtx(ctx)
	defer cancel()

	start := time.Now()
	created, err := scanUser(r.pool.QueryRow(ctx, `
INSERT INTO users (username, email, password_hash, is_reader, is_journalist, is_editor, active_role)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+userColumns+`
`, user.Username, user.Email, user.PasswordHash, user.IsReader, user.IsJournalist, user.IsEditor, user.ActiveRole))
	metrics.ObserveNetworkRequest("postgres", "users_insert", "users", start, err)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, domain.ErrValidation
		}
		return domain.User{}, err
	}
	return created, nil
}

// GetByID возвращает пользователя по идентификатору.
func (r *Users) GetByID(ctx context.Context, id int64) (domain.User, error) {
	ctx, cancel := reqCtx(ctx)
	defer cancel()

	start := time.Now()
	user, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	metrics.ObserveNetworkRequest("postgres", "users_get_by_id", "users", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	return user, err
}

// GetByUsername возвращает пользователя по имени.
func (r *Users) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	ctx, cancel := reqCtx(ctx)
	defer cancel()

	start := time.Now()
	user, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1`, username))
	metrics.ObserveNetworkRequest("postgres", "users_get_by_username", "users", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	return user, err
}

func roleColumn(role domain.Role) (string, error) {
	switch role {
	case domain.RoleReader:
		return "is_reader", nil
	case domain.RoleJournalist:
		return "is_journalist", nil
	case domain.RoleEditor:
		return "is_editor", nil
	}
	return "", fmt.Errorf("неизвестная роль %q", role)
}

// AddRole регистрирует роль за пользователем и делает её активной.
func (r *Users) AddRole(ctx context.Context, userID int64, role domain.Role) (domain.User, error) {
	column, err := roleColumn(role)
	if err != nil {
		return domain.User{}, err
	}

	ctx, cancel := reqCtx(ctx)
	defer cancel()

	start := time.Now()
	user, err := scanUser(r.pool.QueryRow(ctx, `
UPDATE users SET `+column+`=true, active_role=$2, updated_at=now()
WHERE id=$1
RETURNING `+userColumns+`
`, userID, role))
	metrics.ObserveNetworkRequest("postgres", "users_add_role", "users", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	return user, err
}

// SetActiveRole обновляет активную роль пользователя.
func (r *Users) SetActiveRole(ctx context.Context, userID int64, role domain.Role) error {
	ctx, cancel := reqCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := r.pool.Exec(ctx, `UPDATE users SET active_role=$2, updated_at=now() WHERE id=$1`, userID, role)
	metrics.ObserveNetworkRequest("postgres", "users_set_active_role", "users", start, err)
	return err
}

// ListJournalists возвращает всех пользователей с ролью журналиста.
func (r *Users) ListJournalists(ctx context.Context) ([]domain.User, error) {
	ctx, cancel := reqCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE is_journalist=true ORDER BY username`)
	metrics.ObserveNetworkRequest("postgres", "users_list_journalists", "users", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// Publishers хранит издательства и их состав.
type Publishers struct {
	pool *pgxpool.Pool
}

// Create сохраняет издательство, имя уникально.
func (r *Publishers) Create(ctx context.Context, name string) (domain.Publisher, error) {
	ctx, cancel := reqCtx(ctx)
	defer cancel()

	var pub domain.Publisher
	start := time.Now()
	err := r.pool.QueryRow(ctx, `
INSERT INTO publishers (name)
VALUES ($1)
RETURNING id, name, created_at
`, name).Scan(&pub.ID, &pub.Name, &pub.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "publishers_insert", "publishers", start, err)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Publisher{}, domain.ErrDuplicateName
		}
		return domain.Publisher{}, err
	}
	return pub, nil
}

// GetByID возвращает издательство.
func (r *Publishers) GetByID(ctx context.Context, id int64) (domain.Publisher, error) {
	ctx, cancel := reqCtx(ctx)
	defer cancel()

	var pub domain.Publisher
	start := time.Now()
	err := r.pool.QueryRow(ctx, `SELECT id, name, created_at FROM publishers WHERE id=$1`, id).Scan(&pub.ID, &pub.Name, &pub.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "publishers_get_by_id", "publishers", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Publisher{}, domain.ErrNotFound
	}
	return pub, err
}

// List возвращает все издательства.
func (r *Publishers) List(ctx context.Context) ([]domain.Publisher, error) {
	ctx, cancel := reqCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at FROM publishers ORDER BY name`)
	metrics.ObserveNetworkRequest("postgres", "publishers_list", "publishers", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pubs []domain.Publisher
	for rows.Next() {
		var pub domain.Publisher
		if err := rows.Scan(&pub.ID, &pub.Name, &pub.CreatedAt); err != nil {
			return nil, err
		}
		pubs = append(pubs, pub)
	}
	return pubs, rows.Err()
}

// AddEditor добавляет редактора в издательство, повторы игнорируются.
func (r *Publishers) AddEditor(ctx context.Context, publisherID, userID int64) error {
	return r.addMember(ctx, "publisher_editors", publisherID, userID)
}

// AddJournalist добавляет журналиста в издательство, повторы игнорируются.
func (r *Publishers) AddJournalist(ctx context.Context, publisherID, userID int64) error {
	return r.addMember(ctx, "publisher_journalists", publisherID, userID)
}

func (r *Publishers) addMember(ctx context.Context, table string, publisherID, userID int64) error {
	ctx, cancel := reqCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := r.pool.Exec(ctx, `
INSERT INTO `+table+` (publisher_id, user_id)
VALUES ($1, $2)
ON CONFLICT (publisher_id, user_id) DO NOTHING
`, publisherID, userID)
	metrics.ObserveNetworkRequest("postgres", table+"_insert", table, start, err)
	if isForeignKeyViolation(err) {
		return domain.ErrNotFound
	}
	return err
}

// IsEditor проверяет членство редактора в издательстве.
func (r *Publishers) IsEditor(ctx context.Context, publisherID, userID int64) (bool, error) {
	ctx, cancel := reqCtx(ctx)
	defer cancel()

	var exists bool
	start := time.Now()
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM publisher_editors WHERE publisher_id=$1 AND user_id=$2)
`, publisherID, userID).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "publisher_editors_exists", "publisher_editors", start, err)
	return exists, err
}

// ListEditors возвращает редакторов издательства.
func (r *Publishers) ListEditors(ctx context.Context, publisherID int64) ([]domain.User, error) {
	return r.listMembers(ctx, "publisher_editors", publisherID)
}

// ListJournalists возвращает журналистов издательства.
func (r *Publishers) ListJournalists(ctx context.Context, publisherID int64) ([]domain.User, error) {
	return r.listMembers(ctx, "publisher_journalists", publisherID)
}

func (r *Publishers) listMembers(ctx context.Context, table string, publisherID int64) ([]domain.User, error) {
	ctx, cancel := reqCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := r.pool.Query(ctx, `
SELECT u.id, u.username, u.email, u.password_hash, u.is_reader, u.is_journalist, u.is_editor, u.active_role, u.created_at, u.updated_at
FROM users u JOIN `+table+` m ON m.user_id = u.id
WHERE m.publisher_id = $1
ORDER BY u.username
`, publisherID)
	metrics.ObserveNetworkRequest("postgres", table+"_list", table, start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// ListEditorPublisherIDs возвращает издательства, где пользователь редактор.
func (r *Publishers) ListEditorPublisherIDs(ctx context.Context, userID int64) ([]int64, error) {
	return r.listMemberPublisherIDs(ctx, "publisher_editors", userID)
}

// ListJournalistPublisherIDs возвращает издательства, где пользователь журналист.
func (r *Publishers) ListJournalistPublisherIDs(ctx context.Context, userID int64) ([]int64, error) {
	return r.listMemberPublisherIDs(ctx, "publisher_journalists", userID)
}

func (r *Publishers) listMemberPublisherIDs(ctx context.Context, table string, userID int64) ([]int64, error) {
	ctx, cancel := reqCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := r.pool.Query(ctx, `SELECT publisher_id FROM `+table+` WHERE user_id=$1`, userID)
	metrics.ObserveNetworkRequest("postgres", table+"_list_for_user", table, start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Subscriptions хранит подписки читателей.
type Subscriptions struct {
	pool *pgxpool.Pool
}

const subscriptionColumns = `id, reader_id, publisher_id, journalist_id, created_at`

func scanSubscription(row pgx.Row) (domain.Subscription, error) {
	var s domain.Subscription
	var publisherID, journalistID sql.NullInt64
	if err := row.Scan(&s.ID, &s.ReaderID, &publisherID, &journalistID, &s.CreatedAt); err != nil {
		return domain.Subscription{}, err
	}
	if publisherID.Valid {
		id := publisherID.Int64
		s.PublisherID = &id
	}
	if journalistID.Valid {
		id := journalistID.Int64
		s.JournalistID = &id
	}
	return s, nil
}

// GetOrCreate возвращает существующую подписку на ту же цель либо создаёт
// новую. Частичные уникальные индексы закрывают гонку двух одновременных
// подписок: вставка пройдёт ровно у одного запроса.
func (r *Subscriptions) GetOrCreate(ctx context.Context, sub domain.Subscription) (domain.Subscription, bool, error) {
	if err := sub.Validate(); err != nil {
		return domain.Subscription{}, false, err
	}

	ctx, cancel := reqCtx(ctx)
	defer cancel()

	start := time.Now()
	created, err := scanSubscription(r.pool.QueryRow(ctx, `
INSERT INTO subscriptions (reader_id, publisher_id, journalist_id)
VALUES ($1, $2, $3)
ON CONFLICT DO NOTHING
RETURNING `+subscriptionColumns+`
`, sub.ReaderID, nullableID(sub.PublisherID), nullableID(sub.JournalistID)))
	metrics.ObserveNetworkRequest("postgres", "subscriptions_insert", "subscriptions", start, err)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		if isForeignKeyViolation(err) {
			return domain.Subscription{}, false, domain.ErrNotFound
		}
		return domain.Subscription{}, false, err
	}

	start = time.Now()
	existing, err := scanSubscription(r.pool.QueryRow(ctx, `
SELECT `+subscriptionColumns+` FROM subscriptions
WHERE reader_id=$1 AND publisher_id IS NOT DISTINCT FROM $2 AND journalist_id IS NOT DISTINCT FROM $3
`, sub.ReaderID, nullableID(sub.PublisherID), nullableID(sub.JournalistID)))
	metrics.ObserveNetworkRequest("postgres", "subscriptions_get_existing", "subscriptions", start, err)
	if err != nil {
		return domain.Subscription{}, false, err
	}
	return existing, false, nil
}

// GetByID возвращает подписку по идентификатору.
func (r *Subscriptions) GetByID(ctx context.Context, id int64) (domain.Subscription, error) {
	ctx, cancel := reqCtx(ctx)
	defer cancel()

	start := time.Now()
	sub, err := scanSubscription(r.pool.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id=$1`, id))
	metrics.ObserveNetworkRequest("postgres", "subscriptions_get_by_id", "subscriptions", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Subscription{}, domain.ErrNotFound
	}
	return sub, err
}

// Delete удаляет подписку.
func (r *Subscriptions) Delete(ctx context.Context, id int64) error {
	ctx, cancel := reqCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := r.pool.Exec(ctx, `DELETE FROM subscriptions WHERE id=$1`, id)
	metrics.ObserveNetworkRequest("postgres", "subscriptions_delete", "subscriptions", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListForReader возвращает подписки читателя. Параметр target сужает выборку
// до издательств или журналистов, пустая строка означает все подписки.
func (r *Subscriptions) ListForReader(ctx context.Context, readerID int64, target string) ([]domain.Subscription, error) {
	ctx, cancel := reqCtx(ctx)
	defer cancel()

	builder := qb.Select("id", "reader_id", "publisher_id", "journalist_id", "created_at").
		From("subscriptions").
		Where(sq.Eq{"reader_id": readerID}).
		OrderBy("created_at DESC")
	switch target {
	case "publisher":
		builder = builder.Where("publisher_id IS NOT NULL")
	case "journalist":
		builder = builder.Where("journalist_id IS NOT NULL")
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := r.pool.Query(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", "subscriptions_list_for_reader", "subscriptions", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// Recipients возвращает читателей, подписанных на издательство или на автора,
// без дубликатов.
func (r *Subscriptions) Recipients(ctx context.Context, publisherID *int64, authorID int64) ([]domain.User, error) {
	ctx, cancel := reqCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := r.pool.Query(ctx, `
SELECT DISTINCT u.id, u.username, u.email, u.password_hash, u.is_reader, u.is_journalist, u.is_editor, u.active_role, u.created_at, u.updated_at
FROM users u JOIN subscriptions s ON s.reader_id = u.id
WHERE s.publisher_id = $1 OR s.journalist_id = $2
`, nullableID(publisherID), authorID)
	metrics.ObserveNetworkRequest("postgres", "subscriptions_recipients", "subscriptions", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// Contents хранит статьи и рассылки. Оба вида живут в одинаковых по схеме
// таблицах, вид выбирает таблицу через белый список.
type Contents struct {
	pool *pgxpool.Pool
}

const contentColumns = `id, title, body, author_id, publisher_id, is_independent, approved, approved_by, created_at, published_at`

var contentSelectColumns = []string{"id", "title", "body", "author_id", "publisher_id", "is_independent", "approved", "approved_by", "created_at", "published_at"}

func contentTable(kind domain.ContentKind) (string, error) {
	switch kind {
	case domain.KindArticle:
		return "articles", nil
	case domain.KindNewsletter:
		return "newsletters", nil
	}
	return "", fmt.Errorf("неизвестный вид контента %q", kind)
}

func scanContent(row pgx.Row, kind domain.ContentKind) (domain.Content, error) {
	var c domain.Content
	var publisherID, approvedBy sql.NullInt64
	var publishedAt sql.NullTime
	err := row.Scan(&c.ID, &c.Title, &c.Body, &c.AuthorID, &publisherID, &c.IsIndependent, &c.Approved, &approvedBy, &c.CreatedAt, &publishedAt)
	if err != nil {
		return domain.Content{}, err
	}
	c.Kind = kind
	if publisherID.Valid {
		id := publisherID.Int64
		c.PublisherID = &id
	}
	if approvedBy.Valid {
		id := approvedBy.Int64
		c.ApprovedBy = &id
	}
	if publishedAt.Valid {
		ts := publishedAt.Time
		c.PublishedAt = &ts
	}
	return c, nil
}

func collectContent(rows pgx.Rows, kind domain.ContentKind) ([]domain.Content, error) {
	var items []domain.Content
	for rows.Next() {
		item, err := scanContent(rows, kind)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Create сохраняет статью или рассылку.
func (r *Contents) Create(ctx context.Context, item domain.Content) (domain.Content, error) {
	table, err := contentTable(item.Kind)
	if err != nil {
		return domain.Content{}, err
	}

	ctx, cancel := reqCtx(ctx)
	defer cancel()

	var publishedAt sql.NullTime
	if item.PublishedAt != nil {
		publishedAt = sql.NullTime{Time: *item.PublishedAt, Valid: true}
	}

	start := time.Now()
	created, err := scanContent(r.pool.QueryRow(ctx, `
INSERT INTO `+table+` (title, body, author_id, publisher_id, is_independent, approved, published_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+contentColumns+`
`, item.Title, item.Body, item.AuthorID, nullableID(item.PublisherID), item.IsIndependent, item.Approved, publishedAt), item.Kind)
	metrics.ObserveNetworkRequest("postgres", table+"_insert", table, start, err)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.Content{}, domain.ErrNotFound
		}
		return domain.Content{}, err
	}
	return created, nil
}

// GetByID возвращает контент по виду и идентификатору.
func (r *Contents) GetByID(ctx context.Context, kind domain.ContentKind, id int64) (domain.Content, error) {
	table, err := contentTable(kind)
	if err != nil {
		return domain.Content{}, err
	}

	ctx, cancel := reqCtx(ctx)
	defer cancel()

	start := time.Now()
	item, err := scanContent(r.pool.QueryRow(ctx, `SELECT `+contentColumns+` FROM `+table+` WHERE id=$1`, id), kind)
	metrics.ObserveNetworkRequest("postgres", table+"_get_by_id", table, start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Content{}, domain.ErrNotFound
	}
	return item, err
}

// Approve выполняет условный переход approved=false -> true. Условие в WHERE
// закрывает гонку двух одновременных одобрений: переход состоится ровно у
// одного запроса, второй получит false.
func (r *Contents) Approve(ctx context.Context, kind domain.ContentKind, id, editorID int64) (domain.Content, bool, error) {
	table, err := contentTable(kind)
	if err != nil {
		return domain.Content{}, false, err
	}

	ctx, cancel := reqCtx(ctx)
	defer cancel()

	start := time.Now()
	item, err := scanContent(r.pool.QueryRow(ctx, `
UPDATE `+table+` SET approved=true, approved_by=$2, published_at=now()
WHERE id=$1 AND approved=false
RETURNING `+contentColumns+`
`, id, editorID), kind)
	metrics.ObserveNetworkRequest("postgres", table+"_approve", table, start, err)
	if err == nil {
		return item, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Content{}, false, err
	}

	// Перехода не было: либо контент уже одобрен, либо его нет.
	existing, err := r.GetByID(ctx, kind, id)
	if err != nil {
		return domain.Content{}, false, err
	}
	return existing, false, nil
}

// Update обновляет заголовок и текст, не трогая статус одобрения.
func (r *Contents) Update(ctx context.Context, kind domain.ContentKind, id int64, title, body string) (domain.Content, error) {
	table, err := contentTable(kind)
	if err != nil {
		return domain.Content{}, err
	}

	ctx, cancel := reqCtx(ctx)
	defer cancel()

	start := time.Now()
	item, err := scanContent(r.pool.QueryRow(ctx, `
UPDATE `+table+` SET title=$2, body=$3
WHERE id=$1
RETURNING `+contentColumns+`
`, id, title, body), kind)
	metrics.ObserveNetworkRequest("postgres", table+"_update", table, start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Content{}, domain.ErrNotFound
	}
	return item, err
}

// Delete удаляет контент.
func (r *Contents) Delete(ctx context.Context, kind domain.ContentKind, id int64) error {
	table, err := contentTable(kind)
	if err != nil {
		return err
	}

	ctx, cancel := reqCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := r.pool.Exec(ctx, `DELETE FROM `+table+` WHERE id=$1`, id)
	metrics.ObserveNetworkRequest("postgres", table+"_delete", table, start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListVisible возвращает видимый контент (одобренный или независимый).
// Фильтр IncludeHidden снимает ограничение видимости для собственных
// черновиков автора.
func (r *Contents) ListVisible(ctx context.Context, kind domain.ContentKind, filter domain.ContentFilter) ([]domain.Content, error) {
	table, err := contentTable(kind)
	if err != nil {
		return nil, err
	}

	ctx, cancel := reqCtx(ctx)
	defer cancel()

	builder := qb.Select(contentSelectColumns...).
		From(table).
		OrderBy("created_at DESC")
	if !filter.IncludeHidden {
		builder = builder.Where(sq.Or{sq.Eq{"approved": true}, sq.Eq{"is_independent": true}})
	}
	if filter.AuthorID != nil {
		builder = builder.Where(sq.Eq{"author_id": *filter.AuthorID})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := r.pool.Query(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", table+"_list_visible", table, start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectContent(rows, kind)
}

// ListPending возвращает неодобренный контент указанных издательств в порядке
// поступления.
func (r *Contents) ListPending(ctx context.Context, kind domain.ContentKind, publisherIDs []int64) ([]domain.Content, error) {
	if len(publisherIDs) == 0 {
		return nil, nil
	}
	table, err := contentTable(kind)
	if err != nil {
		return nil, err
	}

	ctx, cancel := reqCtx(ctx)
	defer cancel()

	query, args, err := qb.Select(contentSelectColumns...).
		From(table).
		Where(sq.Eq{"approved": false, "is_independent": false}).
		Where(sq.Eq{"publisher_id": publisherIDs}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := r.pool.Query(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", table+"_list_pending", table, start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectContent(rows, kind)
}

// ListApprovedByPublisher возвращает одобренный контент издательства.
func (r *Contents) ListApprovedByPublisher(ctx context.Context, kind domain.ContentKind, publisherID int64) ([]domain.Content, error) {
	table, err := contentTable(kind)
	if err != nil {
		return nil, err
	}

	ctx, cancel := reqCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := r.pool.Query(ctx, `
SELECT `+contentColumns+` FROM `+table+`
WHERE publisher_id=$1 AND approved=true
ORDER BY published_at DESC
`, publisherID)
	metrics.ObserveNetworkRequest("postgres", table+"_list_by_publisher", table, start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectContent(rows, kind)
}

// ListFeed возвращает одобренные статьи из подписок читателя, свежие первыми.
func (r *Contents) ListFeed(ctx context.Context, readerID int64) ([]domain.FeedItem, error) {
	ctx, cancel := reqCtx(ctx)
	defer cancel()

	query, args, err := qb.Select("a.id", "a.title", "a.body", "u.username", "COALESCE(p.name, '')", "a.published_at").
		From("articles a").
		Join("users u ON u.id = a.author_id").
		LeftJoin("publishers p ON p.id = a.publisher_id").
		Where(sq.Eq{"a.approved": true}).
		Where(sq.Or{
			sq.Expr("a.publisher_id IN (SELECT publisher_id FROM subscriptions WHERE reader_id = ? AND publisher_id IS NOT NULL)", readerID),
			sq.Expr("a.author_id IN (SELECT journalist_id FROM subscriptions WHERE reader_id = ? AND journalist_id IS NOT NULL)", readerID),
		}).
		OrderBy("a.published_at DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := r.pool.Query(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", "feed_list", "articles", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.FeedItem
	for rows.Next() {
		var item domain.FeedItem
		var publishedAt sql.NullTime
		if err := rows.Scan(&item.ID, &item.Title, &item.Body, &item.Author, &item.Publisher, &publishedAt); err != nil {
			return nil, err
		}
		if publishedAt.Valid {
			ts := publishedAt.Time
			item.PublishedAt = &ts
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// NotificationJobs хранит статусы задач рассылки для дедупликации повторов.
type NotificationJobs struct {
	pool *pgxpool.Pool
}

// EnsureNotificationJob регистрирует попытку обработки задачи и возвращает
// признак доставки вместе с номером попытки.
func (r *NotificationJobs) EnsureNotificationJob(ctx context.Context, jobID string) (bool, int, error) {
	ctx, cancel := reqCtx(ctx)
	defer cancel()

	var (
		delivered sql.NullTime
		attempts  int
	)

	start := time.Now()
	err := r.pool.QueryRow(ctx, `
INSERT INTO notification_jobs (job_id, attempts, updated_at)
VALUES ($1, 1, now())
ON CONFLICT (job_id) DO UPDATE
    SET attempts = notification_jobs.attempts + 1,
        updated_at = now()
RETURNING delivered_at, attempts
`, jobID).Scan(&delivered, &attempts)
	metrics.ObserveNetworkRequest("postgres", "notification_jobs_upsert", "notification_jobs", start, err)
	if err != nil {
		return false, 0, err
	}
	return delivered.Valid, attempts, nil
}

// MarkNotificationJobDelivered помечает задачу рассылки как доставленную.
func (r *NotificationJobs) MarkNotificationJobDelivered(ctx context.Context, jobID string) error {
	ctx, cancel := reqCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := r.pool.Exec(ctx, `
UPDATE notification_jobs
SET delivered_at = COALESCE(delivered_at, now()),
    updated_at = now()
WHERE job_id = $1
`, jobID)
	metrics.ObserveNetworkRequest("postgres", "notification_jobs_mark_delivered", "notification_jobs", start, err)
	return err
}
