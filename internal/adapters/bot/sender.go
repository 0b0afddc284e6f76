package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"aiclub-bot/internal/adapters/telegram"
	"aiclub-bot/internal/domain"
	"aiclub-bot/internal/infra/metrics"
)

// messageSender — срез Bot API, нужный отправителю.
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Sender реализует domain.Messenger поверх Telegram Bot API.
// Длинные тексты режутся на части под лимит платформы.
type Sender struct {
	api messageSender
}

var _ domain.Messenger = (*Sender)(nil)

// NewSender создаёт отправителя.
func NewSender(api messageSender) *Sender {
	return &Sender{api: api}
}

// SendText отправляет текст в чат. Ссылка на чат — либо @username
// канала, либо числовой идентификатор.
func (s *Sender) SendText(ctx context.Context, chatRef, text string) error {
	for _, part := range telegram.SplitMessage(text) {
		msg, err := buildMessage(chatRef, part)
		if err != nil {
			return err
		}
		start := time.Now()
		_, err = s.api.Send(msg)
		metrics.ObserveNetworkRequest("telegram", "sendMessage", "chat", start, err)
		if err != nil {
			metrics.BotSendErrors.Inc()
			if isChatNotFound(err) {
				return fmt.Errorf("%w: %s", domain.ErrChatNotFound, chatRef)
			}
			return fmt.Errorf("отправка сообщения: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func buildMessage(chatRef, text string) (tgbotapi.Chattable, error) {
	ref := strings.TrimSpace(chatRef)
	if strings.HasPrefix(ref, "@") {
		return tgbotapi.NewMessageToChannel(ref, text), nil
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrChatNotFound, chatRef)
	}
	return tgbotapi.NewMessage(id, text), nil
}

// isChatNotFound распознаёт ответы Bot API о недоступном чате:
// несуществующий канал, кик бота, закрытый диалог.
func isChatNotFound(err error) bool {
	text := strings.ToLower(err.Error())
	return strings.Contains(text, "chat not found") ||
		strings.Contains(text, "bot was kicked") ||
		strings.Contains(text, "forbidden")
}
