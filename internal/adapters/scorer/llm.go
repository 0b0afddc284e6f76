package scorer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"aiclub-bot/internal/domain"
	openai "aiclub-bot/internal/infra/openai"
)

// ErrBadScore возвращается, если модель не вернула число от 1 до 10.
var ErrBadScore = errors.New("некорректная оценка модели")

type chatCompletionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// LLM оценивает полезность ответов через Chat Completions.
type LLM struct {
	client  chatCompletionClient
	model   string
	timeout time.Duration
}

var _ domain.ReplyScorer = (*LLM)(nil)

// NewLLM создаёт оценщика.
func NewLLM(client chatCompletionClient, model string, timeout time.Duration) *LLM {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LLM{client: client, model: model, timeout: timeout}
}

// ScoreReply запрашивает у модели оценку полезности ответа на вопрос.
// Оценка — одно целое число от 1 до 10; всё остальное считается ошибкой.
func (s *LLM) ScoreReply(ctx context.Context, question, reply string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	userPrompt := fmt.Sprintf(`Вопрос: %q

Ответ: %q

По шкале от 1 до 10, где 1 — совсем бесполезно, а 10 — максимально полезно, насколько полезен этот ответ? Верни только число.`, question, reply)

	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatMessage{
			{
				Role:    openai.RoleSystem,
				Content: "Ты ассистент, который оценивает полезность ответа на вопрос.",
			},
			{
				Role:    openai.RoleUser,
				Content: userPrompt,
			},
		},
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("запрос оценки: %w", err)
	}
	if len(resp.Choices) == 0 {
		return 0, fmt.Errorf("%w: пустой ответ", ErrBadScore)
	}
	return ParseScore(resp.Choices[0].Message.Content)
}

// ParseScore разбирает ответ модели как целое число от 1 до 10.
func ParseScore(raw string) (int, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimSuffix(cleaned, ".")
	score, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadScore, raw)
	}
	if score < 1 || score > 10 {
		return 0, fmt.Errorf("%w: %d вне диапазона", ErrBadScore, score)
	}
	return score, nil
}
