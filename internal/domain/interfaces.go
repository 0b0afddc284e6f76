package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound возвращается репозиториями, если запись отсутствует.
var ErrNotFound = errors.New("запись не найдена")

// ErrChatNotFound возвращается Messenger, если чат или канал недоступен.
var ErrChatNotFound = errors.New("чат не найден")

// UserRepo управляет пользователями.
type UserRepo interface {
	UpsertByTGID(tgUserID int64, username string) (User, error)
	GetByTGID(tgUserID int64) (User, error)
	UpdateRole(tgUserID int64, role UserRole) error
}

// NewsletterRepo управляет запланированными рассылками.
type NewsletterRepo interface {
	CreateNewsletter(n Newsletter) (int64, error)
	GetNewsletter(id int64) (Newsletter, error)
	UpdateNewsletter(n Newsletter) error
	DeleteNewsletter(id int64) error
	ListNewsletters(limit, offset int) ([]Newsletter, error)
	DeleteAllNewsletters() error
}

// PostedFeedRepo хранит идентификаторы уже объявленных записей ленты.
type PostedFeedRepo interface {
	WasPosted(link string) (bool, error)
	MarkPosted(link string) error
}

// ScoreRepo управляет рейтингами полезности.
type ScoreRepo interface {
	AddScore(tgUserID int64, score int) (UserScore, error)
	GetScore(tgUserID int64) (UserScore, error)
	TopScores(limit int) ([]UserScore, error)
}

// DeliveryScheduler планирует разовые задачи доставки по ключу.
// Schedule заменяет существующую задачу с тем же ключом; Cancel
// молча игнорирует отсутствующий ключ. Просроченное время означает
// немедленный запуск.
type DeliveryScheduler interface {
	Schedule(key string, at time.Time, d Delivery) error
	Cancel(key string)
}

// Messenger отправляет текст в чат или канал платформы.
type Messenger interface {
	SendText(ctx context.Context, chatRef, text string) error
}

// FeedFetcher возвращает самую свежую запись внешней ленты.
type FeedFetcher interface {
	Latest(ctx context.Context) (FeedItem, error)
}

// Mailer отправляет одно письмо с вложениями.
type Mailer interface {
	SendFiles(ctx context.Context, to, subject, body string, paths []string) error
}

// ReplyScorer оценивает полезность ответа на вопрос по шкале 1-10.
type ReplyScorer interface {
	ScoreReply(ctx context.Context, question, reply string) (int, error)
}

// QuestionClassifier решает, является ли сообщение вопросом.
type QuestionClassifier interface {
	IsQuestion(text string) bool
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Acquire(key string, ttl time.Duration) (bool, time.Duration, error)
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
	Delete(key string) error
}
