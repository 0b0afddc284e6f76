package helpfulness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"aiclub-bot/internal/domain"
	"aiclub-bot/internal/infra/metrics"
)

// Message — сообщение чата в объёме, нужном трекеру.
type Message struct {
	ID         int
	ChatID     int64
	AuthorID   int64
	AuthorName string
	Text       string
	ReplyToID  int
}

type trackedQuestion struct {
	authorID  int64
	text      string
	expiresAt time.Time
}

// Service отслеживает вопросы в чате и начисляет авторам ответов баллы
// полезности. Вопрос живёт ограниченное время: ответы на старые вопросы
// не оцениваются. Состояние держится в памяти, перезапуск начинает
// отслеживание заново; накопленные баллы лежат в базе.
type Service struct {
	mu        sync.Mutex
	questions map[int]trackedQuestion

	classifier domain.QuestionClassifier
	scorer     domain.ReplyScorer
	scores     domain.ScoreRepo
	cache      domain.Cache
	ttl        time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

// NewService создаёт трекер полезности.
func NewService(classifier domain.QuestionClassifier, scorer domain.ReplyScorer, scores domain.ScoreRepo, cache domain.Cache, ttl time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		questions:  map[int]trackedQuestion{},
		classifier: classifier,
		scorer:     scorer,
		scores:     scores,
		cache:      cache,
		ttl:        ttl,
		log:        logger,
		now:        time.Now,
	}
}

// HandleMessage обрабатывает обычное сообщение чата. Возвращает текст
// обратной связи для чата либо пустую строку, если отвечать нечего.
// Ошибки оценки не мешают дальнейшему отслеживанию: сообщение с
// неудавшейся оценкой просто остаётся без баллов.
func (s *Service) HandleMessage(ctx context.Context, m Message) string {
	feedback := s.maybeScoreReply(ctx, m)
	s.maybeTrackQuestion(m)
	return feedback
}

func (s *Service) maybeScoreReply(ctx context.Context, m Message) string {
	if m.ReplyToID == 0 {
		return ""
	}

	s.mu.Lock()
	q, ok := s.questions[m.ReplyToID]
	if ok && s.now().After(q.expiresAt) {
		delete(s.questions, m.ReplyToID)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return ""
	}
	// ответ автора на собственный вопрос баллов не приносит
	if q.authorID == m.AuthorID {
		return ""
	}

	var feedback string
	key := fmt.Sprintf("scored:%d:%d", m.ChatID, m.ID)
	err := s.cache.Once(key, s.ttl, func() error {
		score, err := s.scorer.ScoreReply(ctx, q.text, m.Text)
		if err != nil {
			return fmt.Errorf("оценка ответа: %w", err)
		}
		total, err := s.scores.AddScore(m.AuthorID, score)
		if err != nil {
			return fmt.Errorf("начисление баллов: %w", err)
		}
		feedback = FormatFeedback(m.AuthorName, score, total.TotalScore)
		return nil
	})
	metrics.ObserveScoring(err)
	if err != nil {
		s.log.Error().Err(err).Int("msg_id", m.ID).Msg("не удалось оценить ответ")
		return ""
	}
	return feedback
}

func (s *Service) maybeTrackQuestion(m Message) {
	if !s.classifier.IsQuestion(m.Text) {
		return
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, q := range s.questions {
		if now.After(q.expiresAt) {
			delete(s.questions, id)
		}
	}
	s.questions[m.ID] = trackedQuestion{
		authorID:  m.AuthorID,
		text:      m.Text,
		expiresAt: now.Add(s.ttl),
	}
}

// Total возвращает накопленный рейтинг пользователя.
func (s *Service) Total(tgUserID int64) (domain.UserScore, error) {
	score, err := s.scores.GetScore(tgUserID)
	if err != nil {
		return domain.UserScore{}, fmt.Errorf("получение рейтинга: %w", err)
	}
	return score, nil
}

// Top возвращает лидеров рейтинга.
func (s *Service) Top(limit int) ([]domain.UserScore, error) {
	top, err := s.scores.TopScores(limit)
	if err != nil {
		return nil, fmt.Errorf("таблица лидеров: %w", err)
	}
	return top, nil
}

// FormatFeedback собирает сообщение о начисленных баллах.
func FormatFeedback(name string, score, total int) string {
	return fmt.Sprintf("💡 Ответ %s оценён на %d/10. Суммарный рейтинг полезности: %d.", name, score, total)
}
