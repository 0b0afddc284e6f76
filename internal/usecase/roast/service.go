package roast

import (
	"bufio"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"aiclub-bot/internal/domain"
	"aiclub-bot/internal/infra/metrics"
)

// ErrCooldown возвращается, если вызывающий ещё не остыл после
// предыдущей прожарки.
var ErrCooldown = errors.New("прожарка на перезарядке")

// defaults используется, если файл с фразами не задан или не читается.
var defaults = []string{
	"%s, твой код ревьюят только из жалости.",
	"%s, твой нейросетевой пет-проект — это print('hello world') с амбициями.",
	"%s, у твоих коммитов описание длиннее, чем польза.",
	"%s, даже автодополнение отказывается дописывать твои функции.",
	"%s, твой прод падает чаще, чем ты отвечаешь в чате.",
	"%s, такие промпты, как у тебя, модель забывает ещё до ответа.",
}

// LoadPhrases читает фразы из файла, по одной на строку. Пустые строки
// и строки без %s пропускаются.
func LoadPhrases(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("открытие файла фраз: %w", err)
	}
	defer f.Close()

	var phrases []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.Contains(line, "%s") {
			continue
		}
		phrases = append(phrases, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("чтение файла фраз: %w", err)
	}
	if len(phrases) == 0 {
		return nil, errors.New("файл фраз пуст")
	}
	return phrases, nil
}

// Service выдаёт случайную прожарку с перезарядкой на вызывающего.
type Service struct {
	cache    domain.Cache
	phrases  []string
	cooldown time.Duration
}

// NewService создаёт сервис прожарки. При пустом списке фраз
// используется встроенный набор.
func NewService(cache domain.Cache, phrases []string, cooldown time.Duration) *Service {
	if len(phrases) == 0 {
		phrases = defaults
	}
	return &Service{cache: cache, phrases: phrases, cooldown: cooldown}
}

// Roast возвращает фразу с подставленным именем цели. Перезарядка
// считается по вызывающему, а не по цели: один человек не может
// жарить чат очередями. При ErrCooldown remaining показывает, сколько
// осталось ждать.
func (s *Service) Roast(invokerTGID int64, targetName string) (string, time.Duration, error) {
	key := fmt.Sprintf("roast:%d", invokerTGID)
	ok, remaining, err := s.cache.Acquire(key, s.cooldown)
	if err != nil {
		return "", 0, fmt.Errorf("проверка перезарядки: %w", err)
	}
	if !ok {
		return "", remaining, ErrCooldown
	}
	metrics.RoastsTotal.Inc()
	phrase := s.phrases[rand.IntN(len(s.phrases))]
	return fmt.Sprintf(phrase, targetName), 0, nil
}
