package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var (
	// ErrDialogTimeout возвращается, если пользователь не ответил вовремя.
	ErrDialogTimeout = errors.New("время ожидания ответа истекло")
	// ErrDialogBusy возвращается при попытке начать второй диалог
	// с тем же пользователем в том же чате.
	ErrDialogBusy = errors.New("предыдущая команда ещё не завершена")
)

type dialogKey struct {
	chatID int64
	userID int64
}

// Dialogs маршрутизирует обычные сообщения пользователя в активный
// пошаговый диалог команды. На пару чат+пользователь допускается один
// диалог; его горутина получает сообщения через буферизованный канал.
type Dialogs struct {
	mu     sync.Mutex
	active map[dialogKey]chan *tgbotapi.Message
}

// NewDialogs создаёт реестр диалогов.
func NewDialogs() *Dialogs {
	return &Dialogs{active: map[dialogKey]chan *tgbotapi.Message{}}
}

// Claim регистрирует диалог. Возвращает false, если диалог с этим
// пользователем в этом чате уже идёт.
func (d *Dialogs) Claim(chatID, userID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := dialogKey{chatID: chatID, userID: userID}
	if _, ok := d.active[key]; ok {
		return false
	}
	d.active[key] = make(chan *tgbotapi.Message, 1)
	return true
}

// Release завершает диалог и освобождает пару чат+пользователь.
func (d *Dialogs) Release(chatID, userID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.active, dialogKey{chatID: chatID, userID: userID})
}

// Deliver передаёт сообщение активному диалогу. Возвращает false, если
// диалога нет или его канал занят необработанным сообщением.
func (d *Dialogs) Deliver(msg *tgbotapi.Message) bool {
	if msg == nil || msg.From == nil {
		return false
	}
	d.mu.Lock()
	ch, ok := d.active[dialogKey{chatID: msg.Chat.ID, userID: msg.From.ID}]
	d.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- msg:
		return true
	default:
		return false
	}
}

// Await блокируется до следующего сообщения пользователя в диалоге.
func (d *Dialogs) Await(ctx context.Context, chatID, userID int64, timeout time.Duration) (*tgbotapi.Message, error) {
	d.mu.Lock()
	ch, ok := d.active[dialogKey{chatID: chatID, userID: userID}]
	d.mu.Unlock()
	if !ok {
		return nil, ErrDialogBusy
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg := <-ch:
		return msg, nil
	case <-timer.C:
		return nil, ErrDialogTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
