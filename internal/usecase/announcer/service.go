package announcer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"aiclub-bot/internal/domain"
	"aiclub-bot/internal/infra/metrics"
)

const summaryLimit = 400

// Service публикует свежие выпуски внешней ленты в канал клуба.
// Дедупликация идёт по ссылке выпуска: ссылка помечается только
// после подтверждённой отправки, поэтому сбой отправки приводит к
// повтору на следующем цикле, а не к потере выпуска.
type Service struct {
	fetcher    domain.FeedFetcher
	posted     domain.PostedFeedRepo
	sender     domain.Messenger
	channelRef string
	log        zerolog.Logger
}

// NewService создаёт анонсер ленты.
func NewService(fetcher domain.FeedFetcher, posted domain.PostedFeedRepo, sender domain.Messenger, channelRef string, logger zerolog.Logger) *Service {
	return &Service{fetcher: fetcher, posted: posted, sender: sender, channelRef: channelRef, log: logger}
}

// Run выполняет один цикл опроса. Ошибки не возвращаются наружу:
// цикл периодический, следующий запуск повторит попытку.
func (s *Service) Run(ctx context.Context) {
	item, err := s.fetcher.Latest(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("не удалось получить ленту")
		return
	}

	posted, err := s.posted.WasPosted(item.Link)
	if err != nil {
		s.log.Error().Err(err).Str("link", item.Link).Msg("не удалось проверить историю публикаций")
		return
	}
	if posted {
		s.log.Debug().Str("link", item.Link).Msg("выпуск уже публиковался")
		return
	}

	if err := s.sender.SendText(ctx, s.channelRef, FormatAnnouncement(item)); err != nil {
		s.log.Error().Err(err).Str("link", item.Link).Msg("не удалось опубликовать анонс")
		return
	}
	if err := s.posted.MarkPosted(item.Link); err != nil {
		// анонс ушёл, но ссылка не помечена: следующий цикл продублирует
		s.log.Error().Err(err).Str("link", item.Link).Msg("не удалось пометить выпуск опубликованным")
		return
	}
	metrics.FeedAnnouncements.Inc()
	s.log.Info().Str("link", item.Link).Msg("анонс опубликован")
}

// FormatAnnouncement собирает текст анонса выпуска.
func FormatAnnouncement(item domain.FeedItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📰 %s\n", item.Title)
	if summary := truncate(item.Summary, summaryLimit); summary != "" {
		fmt.Fprintf(&b, "\n%s\n", summary)
	}
	fmt.Fprintf(&b, "\n%s", item.Link)
	return b.String()
}

func truncate(s string, limit int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= limit {
		return string(runes)
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}
