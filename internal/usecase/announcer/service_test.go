package announcer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"aiclub-bot/internal/domain"
)

type fakeFetcher struct {
	item domain.FeedItem
	err  error
}

func (f *fakeFetcher) Latest(context.Context) (domain.FeedItem, error) {
	return f.item, f.err
}

type fakePosted struct {
	links map[string]bool

	wasErr  error
	markErr error
}

func newFakePosted() *fakePosted {
	return &fakePosted{links: map[string]bool{}}
}

func (p *fakePosted) WasPosted(link string) (bool, error) {
	if p.wasErr != nil {
		return false, p.wasErr
	}
	return p.links[link], nil
}

func (p *fakePosted) MarkPosted(link string) error {
	if p.markErr != nil {
		return p.markErr
	}
	p.links[link] = true
	return nil
}

type fakeSender struct {
	sent    []string
	sendErr error
}

func (s *fakeSender) SendText(_ context.Context, _ string, text string) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, text)
	return nil
}

var testItem = domain.FeedItem{
	Title:   "The Batch: выпуск 312",
	Link:    "https://example.com/the-batch/312",
	Summary: "Главные новости недели.",
}

func TestRunAnnouncesAndMarks(t *testing.T) {
	posted := newFakePosted()
	sender := &fakeSender{}
	svc := NewService(&fakeFetcher{item: testItem}, posted, sender, "@club", zerolog.Nop())

	svc.Run(context.Background())

	if len(sender.sent) != 1 {
		t.Fatalf("ожидали одну публикацию, получили %d", len(sender.sent))
	}
	if !strings.Contains(sender.sent[0], testItem.Link) {
		t.Fatalf("анонс не содержит ссылку: %q", sender.sent[0])
	}
	if !posted.links[testItem.Link] {
		t.Fatalf("ссылка не помечена опубликованной")
	}
}

func TestRunSkipsAlreadyPosted(t *testing.T) {
	posted := newFakePosted()
	posted.links[testItem.Link] = true
	sender := &fakeSender{}
	svc := NewService(&fakeFetcher{item: testItem}, posted, sender, "@club", zerolog.Nop())

	svc.Run(context.Background())
	svc.Run(context.Background())

	if len(sender.sent) != 0 {
		t.Fatalf("повторный выпуск не должен публиковаться, отправок: %d", len(sender.sent))
	}
}

func TestRunFetchErrorNoSend(t *testing.T) {
	sender := &fakeSender{}
	svc := NewService(&fakeFetcher{err: errors.New("лента недоступна")}, newFakePosted(), sender, "@club", zerolog.Nop())

	svc.Run(context.Background())

	if len(sender.sent) != 0 {
		t.Fatalf("при ошибке ленты отправок быть не должно")
	}
}

func TestRunSendErrorKeepsUnmarked(t *testing.T) {
	posted := newFakePosted()
	sender := &fakeSender{sendErr: errors.New("канал недоступен")}
	svc := NewService(&fakeFetcher{item: testItem}, posted, sender, "@club", zerolog.Nop())

	svc.Run(context.Background())

	if posted.links[testItem.Link] {
		t.Fatalf("ссылка не должна помечаться после неудачной отправки")
	}
}

func TestFormatAnnouncementTruncatesSummary(t *testing.T) {
	item := domain.FeedItem{
		Title:   "Т",
		Link:    "https://example.com/x",
		Summary: strings.Repeat("а", 1000),
	}
	got := FormatAnnouncement(item)
	if !strings.Contains(got, "…") {
		t.Fatalf("длинная аннотация должна обрезаться: %q", got)
	}
	if !strings.HasSuffix(got, item.Link) {
		t.Fatalf("анонс должен заканчиваться ссылкой")
	}
}
