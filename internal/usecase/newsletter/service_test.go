package newsletter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"aiclub-bot/internal/domain"
)

type fakeRepo struct {
	items  map[int64]domain.Newsletter
	nextID int64

	createErr error
	deleteErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{items: map[int64]domain.Newsletter{}, nextID: 1}
}

func (r *fakeRepo) CreateNewsletter(n domain.Newsletter) (int64, error) {
	if r.createErr != nil {
		return 0, r.createErr
	}
	id := r.nextID
	r.nextID++
	n.ID = id
	r.items[id] = n
	return id, nil
}

func (r *fakeRepo) GetNewsletter(id int64) (domain.Newsletter, error) {
	n, ok := r.items[id]
	if !ok {
		return domain.Newsletter{}, domain.ErrNotFound
	}
	return n, nil
}

func (r *fakeRepo) UpdateNewsletter(n domain.Newsletter) error {
	if _, ok := r.items[n.ID]; !ok {
		return domain.ErrNotFound
	}
	r.items[n.ID] = n
	return nil
}

func (r *fakeRepo) DeleteNewsletter(id int64) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	delete(r.items, id)
	return nil
}

func (r *fakeRepo) ListNewsletters(limit, offset int) ([]domain.Newsletter, error) {
	var all []domain.Newsletter
	for id := int64(1); id < r.nextID; id++ {
		if n, ok := r.items[id]; ok {
			all = append(all, n)
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *fakeRepo) DeleteAllNewsletters() error {
	r.items = map[int64]domain.Newsletter{}
	return nil
}

type fakeScheduler struct {
	scheduled map[string]time.Time
	cancelled []string

	scheduleErr error
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{scheduled: map[string]time.Time{}}
}

func (s *fakeScheduler) Schedule(key string, at time.Time, _ domain.Delivery) error {
	if s.scheduleErr != nil {
		return s.scheduleErr
	}
	s.scheduled[key] = at
	return nil
}

func (s *fakeScheduler) Cancel(key string) {
	s.cancelled = append(s.cancelled, key)
	delete(s.scheduled, key)
}

type fakeMessenger struct {
	sent    []string
	sendErr error
}

func (m *fakeMessenger) SendText(_ context.Context, _ string, text string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, text)
	return nil
}

func newTestService(repo *fakeRepo, sched *fakeScheduler, sender *fakeMessenger) *Service {
	return NewService(repo, sched, sender, zerolog.Nop())
}

func TestParseScheduleTime(t *testing.T) {
	cases := []struct {
		raw string
		ok  bool
	}{
		{"2026-09-01 18:30", true},
		{"2026-09-01T18:30", true},
		{"2026-09-01 18:30:15", true},
		{"  2026-09-01 18:30  ", true},
		{"01.09.2026 18:30", false},
		{"завтра", false},
		{"", false},
	}
	for _, tc := range cases {
		_, err := ParseScheduleTime(tc.raw)
		if tc.ok && err != nil {
			t.Errorf("ParseScheduleTime(%q): неожиданная ошибка %v", tc.raw, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidTimeFormat) {
			t.Errorf("ParseScheduleTime(%q): ожидали ErrInvalidTimeFormat, получили %v", tc.raw, err)
		}
	}
}

func TestCreateSchedulesJob(t *testing.T) {
	repo := newFakeRepo()
	sched := newFakeScheduler()
	svc := newTestService(repo, sched, &fakeMessenger{})

	n, err := svc.Create(context.Background(), "Дайджест", "Текст", "2026-09-01 18:30", "@club")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if n.ID != 1 {
		t.Fatalf("ожидали id=1, получили %d", n.ID)
	}
	if _, ok := sched.scheduled[JobKey(n.ID)]; !ok {
		t.Fatalf("задача доставки не поставлена")
	}
}

func TestCreateBadTime(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeScheduler(), &fakeMessenger{})

	_, err := svc.Create(context.Background(), "Т", "Б", "послезавтра", "@club")
	if !errors.Is(err, ErrInvalidTimeFormat) {
		t.Fatalf("ожидали ErrInvalidTimeFormat, получили %v", err)
	}
	if len(repo.items) != 0 {
		t.Fatalf("запись не должна создаваться при ошибке разбора времени")
	}
}

func TestCreateScheduleFailureRollsBack(t *testing.T) {
	repo := newFakeRepo()
	sched := newFakeScheduler()
	sched.scheduleErr = errors.New("планировщик остановлен")
	svc := newTestService(repo, sched, &fakeMessenger{})

	_, err := svc.Create(context.Background(), "Т", "Б", "2026-09-01 18:30", "@club")
	if err == nil {
		t.Fatalf("ожидали ошибку планирования")
	}
	if len(repo.items) != 0 {
		t.Fatalf("запись должна быть удалена после ошибки планирования")
	}
}

func TestEditReschedules(t *testing.T) {
	repo := newFakeRepo()
	sched := newFakeScheduler()
	svc := newTestService(repo, sched, &fakeMessenger{})

	n, err := svc.Create(context.Background(), "Старое", "Тело", "2026-09-01 18:30", "@club")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	newTitle := "Новое"
	newTime := "2026-09-02 10:00"
	got, err := svc.Edit(context.Background(), n.ID, EditFields{Title: &newTitle, TimeRaw: &newTime})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if got.Title != "Новое" || got.Body != "Тело" {
		t.Fatalf("поля смержены неверно: %+v", got)
	}
	want, _ := ParseScheduleTime(newTime)
	if !sched.scheduled[JobKey(n.ID)].Equal(want) {
		t.Fatalf("задача не перепланирована на новое время")
	}
}

func TestEditUnknownID(t *testing.T) {
	svc := newTestService(newFakeRepo(), newFakeScheduler(), &fakeMessenger{})

	_, err := svc.Edit(context.Background(), 42, EditFields{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидали ErrNotFound, получили %v", err)
	}
}

func TestDeliverRemovesRecord(t *testing.T) {
	repo := newFakeRepo()
	sched := newFakeScheduler()
	sender := &fakeMessenger{}
	svc := newTestService(repo, sched, sender)

	n, _ := svc.Create(context.Background(), "Т", "Б", "2026-09-01 18:30", "@club")

	svc.Deliver(domain.Delivery{NewsletterID: n.ID, Title: n.Title, Body: n.Body, ChannelRef: n.ChannelRef})
	if len(sender.sent) != 1 {
		t.Fatalf("ожидали одну отправку, получили %d", len(sender.sent))
	}
	if _, ok := repo.items[n.ID]; ok {
		t.Fatalf("запись должна быть удалена после доставки")
	}
}

func TestDeliverChatNotFoundKeepsRecord(t *testing.T) {
	repo := newFakeRepo()
	sender := &fakeMessenger{sendErr: domain.ErrChatNotFound}
	svc := newTestService(repo, newFakeScheduler(), sender)

	n, _ := svc.Create(context.Background(), "Т", "Б", "2026-09-01 18:30", "@club")

	svc.Deliver(domain.Delivery{NewsletterID: n.ID, Title: n.Title, Body: n.Body, ChannelRef: n.ChannelRef})
	if _, ok := repo.items[n.ID]; !ok {
		t.Fatalf("запись должна сохраниться, если канал не найден")
	}
}

func TestClearAllCancelsJobs(t *testing.T) {
	repo := newFakeRepo()
	sched := newFakeScheduler()
	svc := newTestService(repo, sched, &fakeMessenger{})

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(context.Background(), "Т", "Б", "2026-09-01 18:30", "@club"); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	removed, err := svc.ClearAll(context.Background())
	if err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if removed != 3 {
		t.Fatalf("ожидали 3 удалённых, получили %d", removed)
	}
	if len(sched.cancelled) != 3 {
		t.Fatalf("ожидали 3 снятых задачи, получили %d", len(sched.cancelled))
	}
	if len(repo.items) != 0 {
		t.Fatalf("хранилище должно быть пустым")
	}
}

func TestReconcileReschedulesStored(t *testing.T) {
	repo := newFakeRepo()
	at, _ := ParseScheduleTime("2026-09-01 18:30")
	for i := 0; i < 2; i++ {
		if _, err := repo.CreateNewsletter(domain.Newsletter{Title: "Т", Body: "Б", ScheduledAt: at, ChannelRef: "@club"}); err != nil {
			t.Fatalf("CreateNewsletter: %v", err)
		}
	}
	sched := newFakeScheduler()
	svc := newTestService(repo, sched, &fakeMessenger{})

	restored, err := svc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if restored != 2 {
		t.Fatalf("ожидали 2 восстановленных, получили %d", restored)
	}
	if len(sched.scheduled) != 2 {
		t.Fatalf("ожидали 2 задачи, получили %d", len(sched.scheduled))
	}
}
