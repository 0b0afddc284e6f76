package feed

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"aiclub-bot/internal/domain"
	"aiclub-bot/internal/infra/metrics"
)

// ErrEmptyFeed возвращается, если в ленте нет ни одной записи.
var ErrEmptyFeed = errors.New("лента пуста")

var stripPolicy = bluemonday.StrictPolicy()

// Fetcher читает внешнюю RSS/Atom ленту.
type Fetcher struct {
	parser *gofeed.Parser
	url    string
}

var _ domain.FeedFetcher = (*Fetcher)(nil)

// NewFetcher создаёт читателя ленты.
func NewFetcher(url string) *Fetcher {
	return &Fetcher{parser: gofeed.NewParser(), url: url}
}

// Latest возвращает самую свежую запись ленты с очищенным от HTML описанием.
func (f *Fetcher) Latest(ctx context.Context) (domain.FeedItem, error) {
	start := time.Now()
	parsed, err := f.parser.ParseURLWithContext(f.url, ctx)
	metrics.ObserveNetworkRequest("feed", "fetch", f.url, start, err)
	if err != nil {
		return domain.FeedItem{}, fmt.Errorf("чтение ленты: %w", err)
	}
	if len(parsed.Items) == 0 {
		return domain.FeedItem{}, ErrEmptyFeed
	}
	item := parsed.Items[0]
	summary := item.Description
	if summary == "" {
		summary = item.Content
	}
	return domain.FeedItem{
		Title:   strings.TrimSpace(item.Title),
		Link:    strings.TrimSpace(item.Link),
		Summary: StripHTML(summary),
	}, nil
}

// StripHTML удаляет разметку из описания записи.
func StripHTML(s string) string {
	return strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(s)))
}
