package helpfulness

import (
	"strings"

	"aiclub-bot/internal/domain"
)

// interrogatives — слова, с которых обычно начинается вопрос.
// Английский набор дополнен русскими вопросительными словами,
// потому что в чате клуба пишут на обоих языках.
var interrogatives = map[string]struct{}{
	"how": {}, "what": {}, "why": {}, "help": {}, "can": {},
	"do": {}, "does": {}, "is": {}, "are": {}, "could": {},
	"would": {}, "should": {}, "where": {}, "when": {}, "who": {},
	"как": {}, "что": {}, "почему": {}, "зачем": {}, "где": {},
	"когда": {}, "кто": {}, "можно": {}, "помогите": {}, "подскажите": {},
}

// HeuristicClassifier распознаёт вопросы без обращения к модели:
// вопросительный знак в конце либо вопросительное слово в начале.
type HeuristicClassifier struct{}

var _ domain.QuestionClassifier = HeuristicClassifier{}

// IsQuestion сообщает, похоже ли сообщение на вопрос.
func (HeuristicClassifier) IsQuestion(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if strings.HasSuffix(trimmed, "?") {
		return true
	}
	first, _, _ := strings.Cut(strings.ToLower(trimmed), " ")
	first = strings.Trim(first, ",.!:;")
	_, ok := interrogatives[first]
	return ok
}
