package newsletter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"aiclub-bot/internal/domain"
	"aiclub-bot/internal/infra/metrics"
)

var (
	// ErrInvalidTimeFormat возвращается, если время публикации не разобрано.
	ErrInvalidTimeFormat = errors.New("некорректный формат времени")
	// ErrNotFound возвращается, если рассылка с таким id отсутствует.
	ErrNotFound = errors.New("рассылка не найдена")
	// ErrNoChannel возвращается, если канал публикации не указан.
	ErrNoChannel = errors.New("канал не указан")
)

// KeepCurrent — сентинел "оставить текущее значение" при редактировании.
const KeepCurrent = "skip"

var timeLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseScheduleTime разбирает время публикации в локальной зоне процесса.
func ParseScheduleTime(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if ts, err := time.ParseInLocation(layout, trimmed, time.Local); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, ErrInvalidTimeFormat
}

// JobKey возвращает детерминированный ключ задачи доставки.
func JobKey(id int64) string {
	return fmt.Sprintf("newsletter_%d", id)
}

// EditFields описывает изменяемые поля; nil означает "оставить как есть".
type EditFields struct {
	Title      *string
	Body       *string
	TimeRaw    *string
	ChannelRef *string
}

// Service поддерживает согласованность хранилища рассылок и множества
// запланированных задач доставки.
type Service struct {
	repo   domain.NewsletterRepo
	jobs   domain.DeliveryScheduler
	sender domain.Messenger
	log    zerolog.Logger
}

// NewService создаёт сервис рассылок.
func NewService(repo domain.NewsletterRepo, jobs domain.DeliveryScheduler, sender domain.Messenger, logger zerolog.Logger) *Service {
	return &Service{repo: repo, jobs: jobs, sender: sender, log: logger}
}

// Create сохраняет рассылку и ставит задачу доставки на разобранное время.
func (s *Service) Create(ctx context.Context, title, body, rawTime, channelRef string) (domain.Newsletter, error) {
	at, err := ParseScheduleTime(rawTime)
	if err != nil {
		return domain.Newsletter{}, err
	}
	channelRef = strings.TrimSpace(channelRef)
	if channelRef == "" {
		return domain.Newsletter{}, ErrNoChannel
	}

	n := domain.Newsletter{
		Title:       title,
		Body:        body,
		ScheduledAt: at,
		ChannelRef:  channelRef,
	}
	id, err := s.repo.CreateNewsletter(n)
	if err != nil {
		return domain.Newsletter{}, fmt.Errorf("сохранение рассылки: %w", err)
	}
	n.ID = id

	if err := s.jobs.Schedule(JobKey(id), at, s.payload(n)); err != nil {
		// без задачи запись не имеет смысла, откатываем
		if delErr := s.repo.DeleteNewsletter(id); delErr != nil {
			s.log.Error().Err(delErr).Int64("id", id).Msg("не удалось удалить рассылку после ошибки планирования")
		}
		return domain.Newsletter{}, fmt.Errorf("планирование доставки: %w", err)
	}
	metrics.NewslettersScheduled.Inc()
	return n, nil
}

// Edit изменяет указанные поля и перепланирует задачу доставки единым
// шагом: замена по ключу не оставляет рассылку без живой задачи.
func (s *Service) Edit(ctx context.Context, id int64, fields EditFields) (domain.Newsletter, error) {
	n, err := s.repo.GetNewsletter(id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Newsletter{}, ErrNotFound
	}
	if err != nil {
		return domain.Newsletter{}, fmt.Errorf("получение рассылки: %w", err)
	}

	if fields.Title != nil {
		n.Title = *fields.Title
	}
	if fields.Body != nil {
		n.Body = *fields.Body
	}
	if fields.TimeRaw != nil {
		at, err := ParseScheduleTime(*fields.TimeRaw)
		if err != nil {
			return domain.Newsletter{}, err
		}
		n.ScheduledAt = at
	}
	if fields.ChannelRef != nil {
		ref := strings.TrimSpace(*fields.ChannelRef)
		if ref == "" {
			return domain.Newsletter{}, ErrNoChannel
		}
		n.ChannelRef = ref
	}

	if err := s.repo.UpdateNewsletter(n); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Newsletter{}, ErrNotFound
		}
		return domain.Newsletter{}, fmt.Errorf("обновление рассылки: %w", err)
	}
	if err := s.jobs.Schedule(JobKey(id), n.ScheduledAt, s.payload(n)); err != nil {
		return domain.Newsletter{}, fmt.Errorf("перепланирование доставки: %w", err)
	}
	return n, nil
}

// List возвращает страницу ожидающих рассылок в порядке создания.
func (s *Service) List(ctx context.Context, limit, offset int) ([]domain.Newsletter, error) {
	list, err := s.repo.ListNewsletters(limit, offset)
	if err != nil {
		return nil, fmt.Errorf("список рассылок: %w", err)
	}
	return list, nil
}

// Deliver вызывается планировщиком в назначенное время. Запись удаляется
// только после подтверждённой отправки; недоступный канал оставляет
// запись для ручного разбора.
func (s *Service) Deliver(d domain.Delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	text := FormatNewsletter(d.Title, d.Body)
	if err := s.sender.SendText(ctx, d.ChannelRef, text); err != nil {
		metrics.NewsletterDeliveryErrors.Inc()
		if errors.Is(err, domain.ErrChatNotFound) {
			s.log.Error().Int64("id", d.NewsletterID).Str("channel", d.ChannelRef).Msg("канал рассылки не найден, запись сохранена")
			return
		}
		s.log.Error().Err(err).Int64("id", d.NewsletterID).Msg("не удалось доставить рассылку, запись сохранена")
		return
	}

	if err := s.repo.DeleteNewsletter(d.NewsletterID); err != nil {
		s.log.Error().Err(err).Int64("id", d.NewsletterID).Msg("рассылка доставлена, но запись не удалена")
		return
	}
	metrics.NewslettersDelivered.Inc()
	s.log.Info().Int64("id", d.NewsletterID).Str("channel", d.ChannelRef).Msg("рассылка доставлена")
}

// ClearAll снимает все задачи и удаляет все записи. Первая же ошибка
// прерывает операцию, чтобы частичный сбой не выглядел успехом.
func (s *Service) ClearAll(ctx context.Context) (int, error) {
	removed := 0
	for {
		page, err := s.repo.ListNewsletters(100, removed)
		if err != nil {
			return removed, fmt.Errorf("список рассылок: %w", err)
		}
		if len(page) == 0 {
			break
		}
		for _, n := range page {
			s.jobs.Cancel(JobKey(n.ID))
		}
		removed += len(page)
	}
	if err := s.repo.DeleteAllNewsletters(); err != nil {
		return 0, fmt.Errorf("очистка хранилища: %w", err)
	}
	return removed, nil
}

// Reconcile при старте переустанавливает задачу для каждой сохранённой
// рассылки. Просроченное время срабатывает сразу после запуска
// планировщика, поэтому перезапуск процесса не теряет рассылки.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	restored := 0
	for {
		page, err := s.repo.ListNewsletters(100, restored)
		if err != nil {
			return restored, fmt.Errorf("список рассылок: %w", err)
		}
		if len(page) == 0 {
			break
		}
		for _, n := range page {
			if err := s.jobs.Schedule(JobKey(n.ID), n.ScheduledAt, s.payload(n)); err != nil {
				return restored, fmt.Errorf("восстановление задачи %d: %w", n.ID, err)
			}
			restored++
		}
	}
	return restored, nil
}

func (s *Service) payload(n domain.Newsletter) domain.Delivery {
	return domain.Delivery{
		NewsletterID: n.ID,
		Title:        n.Title,
		Body:         n.Body,
		ChannelRef:   n.ChannelRef,
	}
}

// FormatNewsletter собирает текст публикации.
func FormatNewsletter(title, body string) string {
	return fmt.Sprintf("📬 %s\n\n%s", title, body)
}
