package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"aiclub-bot/internal/domain"
)

// DeliverFunc вызывается при срабатывании задачи доставки.
type DeliverFunc func(d domain.Delivery)

// Gocron реализует domain.DeliveryScheduler поверх gocron.
// Одному ключу соответствует не более одной живой задачи; просроченное
// время срабатывает сразу после запуска планировщика.
type Gocron struct {
	mu      sync.Mutex
	sched   gocron.Scheduler
	jobs    map[string]uuid.UUID
	deliver DeliverFunc
	log     zerolog.Logger
}

var _ domain.DeliveryScheduler = (*Gocron)(nil)

// New создаёт планировщик.
func New(deliver DeliverFunc, logger zerolog.Logger) (*Gocron, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("создание планировщика: %w", err)
	}
	return &Gocron{
		sched:   sched,
		jobs:    make(map[string]uuid.UUID),
		deliver: deliver,
		log:     logger,
	}, nil
}

// Start запускает обработку задач.
func (g *Gocron) Start() {
	g.sched.Start()
}

// Shutdown останавливает планировщик и ждёт завершения задач.
func (g *Gocron) Shutdown() error {
	return g.sched.Shutdown()
}

// Schedule ставит задачу доставки, заменяя существующую с тем же ключом.
// Старая задача снимается только после успешной установки новой, поэтому
// рассылка не остаётся без задачи при ошибке.
func (g *Gocron) Schedule(key string, at time.Time, d domain.Delivery) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	definition := gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(at))
	if !at.After(time.Now()) {
		definition = gocron.OneTimeJob(gocron.OneTimeJobStartImmediately())
	}

	var jobID uuid.UUID
	job, err := g.sched.NewJob(definition, gocron.NewTask(func() {
		g.deliver(d)
		g.forget(key, &jobID)
	}), gocron.WithTags(key))
	if err != nil {
		return fmt.Errorf("установка задачи %s: %w", key, err)
	}
	jobID = job.ID()

	if old, ok := g.jobs[key]; ok {
		if err := g.sched.RemoveJob(old); err != nil {
			g.log.Warn().Err(err).Str("key", key).Msg("не удалось снять предыдущую задачу")
		}
	}
	g.jobs[key] = jobID
	return nil
}

// Cancel снимает задачу по ключу. Отсутствие ключа не является ошибкой.
func (g *Gocron) Cancel(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.jobs[key]
	if !ok {
		return
	}
	delete(g.jobs, key)
	if err := g.sched.RemoveJob(id); err != nil {
		g.log.Warn().Err(err).Str("key", key).Msg("не удалось снять задачу")
	}
}

// Every регистрирует периодическую задачу с немедленным первым запуском.
func (g *Gocron) Every(interval time.Duration, fn func()) error {
	_, err := g.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(fn),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("установка периодической задачи: %w", err)
	}
	return nil
}

func (g *Gocron) forget(key string, jobID *uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if current, ok := g.jobs[key]; ok && current == *jobID {
		delete(g.jobs, key)
	}
}
