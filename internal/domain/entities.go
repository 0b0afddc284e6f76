package domain

import "time"

// User описывает пользователя Telegram в системе.
type User struct {
	ID        int64
	TGUserID  int64
	Username  string
	Role      UserRole
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Newsletter представляет запланированную рассылку. Запись существует
// ровно до успешной доставки: доставка удаляет её из хранилища.
type Newsletter struct {
	ID          int64
	Title       string
	Body        string
	ScheduledAt time.Time
	ChannelRef  string
	CreatedAt   time.Time
}

// Delivery содержит полезную нагрузку отложенной задачи доставки.
type Delivery struct {
	NewsletterID int64
	Title        string
	Body         string
	ChannelRef   string
}

// FeedItem описывает запись внешней ленты.
type FeedItem struct {
	Title   string
	Link    string
	Summary string
}

// UserScore хранит накопленный рейтинг полезности пользователя.
type UserScore struct {
	TGUserID   int64
	TotalScore int
	ReplyCount int
}
