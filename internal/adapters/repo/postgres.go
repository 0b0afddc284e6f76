package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"aiclub-bot/internal/domain"
	"aiclub-bot/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.UserRepo       = (*Postgres)(nil)
	_ domain.NewsletterRepo = (*Postgres)(nil)
	_ domain.PostedFeedRepo = (*Postgres)(nil)
	_ domain.ScoreRepo      = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// EnsureSchema создаёт таблицы, если их ещё нет.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			tg_user_id BIGINT NOT NULL UNIQUE,
			username TEXT,
			role TEXT NOT NULL DEFAULT 'member',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS newsletters (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			scheduled_at TIMESTAMPTZ NOT NULL,
			channel_ref TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS posted_feed_items (
			link TEXT PRIMARY KEY,
			posted_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS user_scores (
			tg_user_id BIGINT PRIMARY KEY,
			total_score INT NOT NULL DEFAULT 0,
			reply_count INT NOT NULL DEFAULT 0
		)`,
	}
	for _, stmt := range statements {
		start := time.Now()
		_, err := p.pool.Exec(ctx, stmt)
		metrics.ObserveNetworkRequest("postgres", "ensure_schema", "schema", start, err)
		if err != nil {
			return err
		}
	}
	return nil
}

// UpsertByTGID реализует domain.UserRepo.
func (p *Postgres) UpsertByTGID(tgUserID int64, username string) (domain.User, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var user domain.User
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO users (tg_user_id, username)
VALUES ($1, NULLIF($2, ''))
ON CONFLICT (tg_user_id) DO UPDATE SET username = COALESCE(EXCLUDED.username, users.username), updated_at = now()
RETURNING id, tg_user_id, COALESCE(username, ''), role, created_at, updated_at
`, tgUserID, username).Scan(&user.ID, &user.TGUserID, &user.Username, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "users_upsert", "users", start, err)
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// GetByTGID реализует domain.UserRepo.
func (p *Postgres) GetByTGID(tgUserID int64) (domain.User, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var user domain.User
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, tg_user_id, COALESCE(username, ''), role, created_at, updated_at
FROM users WHERE tg_user_id = $1
`, tgUserID).Scan(&user.ID, &user.TGUserID, &user.Username, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "users_get", "users", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// UpdateRole реализует domain.UserRepo.
func (p *Postgres) UpdateRole(tgUserID int64, role domain.UserRole) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `UPDATE users SET role = $2, updated_at = now() WHERE tg_user_id = $1`, tgUserID, string(role))
	metrics.ObserveNetworkRequest("postgres", "users_update_role", "users", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CreateNewsletter реализует domain.NewsletterRepo.
func (p *Postgres) CreateNewsletter(n domain.Newsletter) (int64, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var id int64
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO newsletters (title, body, scheduled_at, channel_ref)
VALUES ($1, $2, $3, $4)
RETURNING id
`, n.Title, n.Body, n.ScheduledAt, n.ChannelRef).Scan(&id)
	metrics.ObserveNetworkRequest("postgres", "newsletters_insert", "newsletters", start, err)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetNewsletter реализует domain.NewsletterRepo.
func (p *Postgres) GetNewsletter(id int64) (domain.Newsletter, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var n domain.Newsletter
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, title, body, scheduled_at, channel_ref, created_at
FROM newsletters WHERE id = $1
`, id).Scan(&n.ID, &n.Title, &n.Body, &n.ScheduledAt, &n.ChannelRef, &n.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "newsletters_get", "newsletters", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Newsletter{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Newsletter{}, err
	}
	return n, nil
}

// UpdateNewsletter реализует domain.NewsletterRepo.
func (p *Postgres) UpdateNewsletter(n domain.Newsletter) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE newsletters SET title = $2, body = $3, scheduled_at = $4, channel_ref = $5
WHERE id = $1
`, n.ID, n.Title, n.Body, n.ScheduledAt, n.ChannelRef)
	metrics.ObserveNetworkRequest("postgres", "newsletters_update", "newsletters", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteNewsletter реализует domain.NewsletterRepo.
func (p *Postgres) DeleteNewsletter(id int64) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `DELETE FROM newsletters WHERE id = $1`, id)
	metrics.ObserveNetworkRequest("postgres", "newsletters_delete", "newsletters", start, err)
	return err
}

// ListNewsletters реализует domain.NewsletterRepo. Порядок — по id,
// то есть по порядку создания.
func (p *Postgres) ListNewsletters(limit, offset int) ([]domain.Newsletter, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, title, body, scheduled_at, channel_ref, created_at
FROM newsletters ORDER BY id LIMIT $1 OFFSET $2
`, limit, offset)
	metrics.ObserveNetworkRequest("postgres", "newsletters_list", "newsletters", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Newsletter
	for rows.Next() {
		var n domain.Newsletter
		if err := rows.Scan(&n.ID, &n.Title, &n.Body, &n.ScheduledAt, &n.ChannelRef, &n.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

// DeleteAllNewsletters реализует domain.NewsletterRepo.
func (p *Postgres) DeleteAllNewsletters() error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `DELETE FROM newsletters`)
	metrics.ObserveNetworkRequest("postgres", "newsletters_clear", "newsletters", start, err)
	return err
}

// WasPosted реализует domain.PostedFeedRepo.
func (p *Postgres) WasPosted(link string) (bool, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var exists bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM posted_feed_items WHERE link = $1)`, link).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "feed_items_check", "posted_feed_items", start, err)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// MarkPosted реализует domain.PostedFeedRepo.
func (p *Postgres) MarkPosted(link string) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `INSERT INTO posted_feed_items (link) VALUES ($1) ON CONFLICT (link) DO NOTHING`, link)
	metrics.ObserveNetworkRequest("postgres", "feed_items_mark", "posted_feed_items", start, err)
	return err
}

// AddScore реализует domain.ScoreRepo: рейтинг только накапливается.
func (p *Postgres) AddScore(tgUserID int64, score int) (domain.UserScore, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var s domain.UserScore
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO user_scores (tg_user_id, total_score, reply_count)
VALUES ($1, $2, 1)
ON CONFLICT (tg_user_id) DO UPDATE SET
	total_score = user_scores.total_score + EXCLUDED.total_score,
	reply_count = user_scores.reply_count + 1
RETURNING tg_user_id, total_score, reply_count
`, tgUserID, score).Scan(&s.TGUserID, &s.TotalScore, &s.ReplyCount)
	metrics.ObserveNetworkRequest("postgres", "scores_add", "user_scores", start, err)
	if err != nil {
		return domain.UserScore{}, err
	}
	return s, nil
}

// GetScore реализует domain.ScoreRepo. Отсутствие записи — нулевой рейтинг.
func (p *Postgres) GetScore(tgUserID int64) (domain.UserScore, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	s := domain.UserScore{TGUserID: tgUserID}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT tg_user_id, total_score, reply_count FROM user_scores WHERE tg_user_id = $1
`, tgUserID).Scan(&s.TGUserID, &s.TotalScore, &s.ReplyCount)
	metrics.ObserveNetworkRequest("postgres", "scores_get", "user_scores", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return s, nil
	}
	if err != nil {
		return domain.UserScore{}, err
	}
	return s, nil
}

// TopScores реализует domain.ScoreRepo.
func (p *Postgres) TopScores(limit int) ([]domain.UserScore, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT tg_user_id, total_score, reply_count
FROM user_scores ORDER BY total_score DESC LIMIT $1
`, limit)
	metrics.ObserveNetworkRequest("postgres", "scores_top", "user_scores", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.UserScore
	for rows.Next() {
		var s domain.UserScore
		if err := rows.Scan(&s.TGUserID, &s.TotalScore, &s.ReplyCount); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
