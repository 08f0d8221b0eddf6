package usecase

import (
	"ainews/internal/adapter/parser"
	"ainews/internal/domain"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 10, 19, 9, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	bodies map[string]string
	errs   map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (io.ReadCloser, error) {
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	body, ok := f.bodies[url]
	if !ok {
		return nil, fmt.Errorf("unexpected status code: 404 for url %s", url)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

type fakePreviewer struct {
	mu    sync.Mutex
	calls []string
}

func (p *fakePreviewer) Preview(_ context.Context, url string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, url)
	return "preview of " + url + "..."
}

type rssEntry struct {
	title   string
	link    string
	pubDate string
}

func rssXML(title string, entries ...rssEntry) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel>`)
	if title != "" {
		fmt.Fprintf(&b, "<title>%s</title>", title)
	}
	for _, e := range entries {
		b.WriteString("<item>")
		if e.title != "" {
			fmt.Fprintf(&b, "<title>%s</title>", e.title)
		}
		if e.link != "" {
			fmt.Fprintf(&b, "<link>%s</link>", e.link)
		}
		fmt.Fprintf(&b, "<description>About %s</description>", e.title)
		if e.pubDate != "" {
			fmt.Fprintf(&b, "<pubDate>%s</pubDate>", e.pubDate)
		}
		b.WriteString("</item>")
	}
	b.WriteString("</channel></rss>")
	return b.String()
}

func numberedEntries(host string, n int) []rssEntry {
	entries := make([]rssEntry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, rssEntry{
			title:   fmt.Sprintf("%s story %d", host, i),
			link:    fmt.Sprintf("https://%s/story/%d", host, i),
			pubDate: testNow.Add(-time.Duration(i) * time.Hour).Format(time.RFC1123Z),
		})
	}
	return entries
}

func newTestProcessor(fetcher FeedFetcher, previewer ContentPreviewer) *FeedProcessingUseCase {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewFeedProcessingUseCase(
		fetcher,
		parser.NewRSSParser(logger),
		previewer,
		logger,
		map[string]string{"https://a.test/feed": "Feed A"},
		DefaultMaxEntriesPerFeed,
		time.Second,
		clockwork.NewFakeClockAt(testNow),
	)
}

func TestProcessFeed_LimitsToMaxEntries(t *testing.T) {
	fetcher := &fakeFetcher{bodies: map[string]string{
		"https://a.test/feed": rssXML("Feed A Title", numberedEntries("a.test", 15)...),
	}}
	uc := newTestProcessor(fetcher, &fakePreviewer{})

	articles, err := uc.ProcessFeed(context.Background(), "https://a.test/feed", nil, NewPreviewBudget(50))

	require.NoError(t, err)
	require.Len(t, articles, 10)
	for i, a := range articles {
		assert.Equal(t, fmt.Sprintf("https://a.test/story/%d", i), a.Link)
		assert.Equal(t, domain.ArticleID(a.Link), a.ID)
		assert.Equal(t, "Feed A Title", a.Source)
		assert.Equal(t, fmt.Sprintf("About a.test story %d", i), a.Summary)
	}
	assert.True(t, articles[0].PublishedAt.Equal(testNow))
	assert.Equal(t, testNow.Format(time.RFC1123Z), articles[0].Published)
}

func TestProcessFeed_SkipsKnownLinks(t *testing.T) {
	fetcher := &fakeFetcher{bodies: map[string]string{
		"https://a.test/feed": rssXML("Feed A", numberedEntries("a.test", 5)...),
	}}
	previewer := &fakePreviewer{}
	uc := newTestProcessor(fetcher, previewer)
	known := map[string]struct{}{
		"https://a.test/story/1": {},
		"https://a.test/story/3": {},
	}

	articles, err := uc.ProcessFeed(context.Background(), "https://a.test/feed", known, NewPreviewBudget(50))

	require.NoError(t, err)
	require.Len(t, articles, 3)
	assert.Equal(t, "https://a.test/story/0", articles[0].Link)
	assert.Equal(t, "https://a.test/story/2", articles[1].Link)
	assert.Equal(t, "https://a.test/story/4", articles[2].Link)
	assert.Len(t, previewer.calls, 3)
}

func TestProcessFeed_PreviewBudgetSharedAcrossFeeds(t *testing.T) {
	fetcher := &fakeFetcher{bodies: map[string]string{
		"https://a.test/feed": rssXML("Feed A", numberedEntries("a.test", 4)...),
		"https://b.test/feed": rssXML("Feed B", numberedEntries("b.test", 4)...),
	}}
	previewer := &fakePreviewer{}
	uc := newTestProcessor(fetcher, previewer)
	budget := NewPreviewBudget(6)

	first, err := uc.ProcessFeed(context.Background(), "https://a.test/feed", nil, budget)
	require.NoError(t, err)
	second, err := uc.ProcessFeed(context.Background(), "https://b.test/feed", nil, budget)
	require.NoError(t, err)

	for _, a := range first {
		assert.NotEmpty(t, a.Content)
	}
	assert.NotEmpty(t, second[0].Content)
	assert.NotEmpty(t, second[1].Content)
	assert.Empty(t, second[2].Content)
	assert.Empty(t, second[3].Content)
	assert.Len(t, previewer.calls, 6)
	assert.Equal(t, 6, budget.Used())
}

func TestProcessFeed_MissingDateAndTitle(t *testing.T) {
	fetcher := &fakeFetcher{bodies: map[string]string{
		"https://a.test/feed": rssXML("", []rssEntry{
			{title: "No date", link: "https://a.test/no-date"},
			{link: "https://a.test/no-title"},
			{title: "No link"},
		}...),
	}}
	uc := newTestProcessor(fetcher, &fakePreviewer{})

	articles, err := uc.ProcessFeed(context.Background(), "https://a.test/feed", nil, NewPreviewBudget(0))

	require.NoError(t, err)
	require.Len(t, articles, 1)
	a := articles[0]
	assert.Equal(t, "No date", a.Title)
	assert.Equal(t, testNow.Format(domain.TimeLayout), a.Published)
	assert.True(t, a.PublishedAt.Equal(testNow))
	assert.Equal(t, domain.UnknownSource, a.Source)
	assert.Empty(t, a.Content)
}

func TestProcessFeed_FetchError(t *testing.T) {
	fetcher := &fakeFetcher{errs: map[string]error{
		"https://a.test/feed": errors.New("dial tcp: connection refused"),
	}}
	uc := newTestProcessor(fetcher, &fakePreviewer{})

	articles, err := uc.ProcessFeed(context.Background(), "https://a.test/feed", nil, NewPreviewBudget(50))

	require.Error(t, err)
	assert.Nil(t, articles)
	assert.Contains(t, err.Error(), "fetch failed for Feed A")
}

func TestProcessFeed_ParseError(t *testing.T) {
	fetcher := &fakeFetcher{bodies: map[string]string{
		"https://www.broken.test/feed": "<<< not xml at all",
	}}
	uc := newTestProcessor(fetcher, &fakePreviewer{})

	articles, err := uc.ProcessFeed(context.Background(), "https://www.broken.test/feed", nil, NewPreviewBudget(50))

	require.Error(t, err)
	assert.Nil(t, articles)
	assert.Contains(t, err.Error(), "parse failed for broken.test")
}

func TestPreviewBudget(t *testing.T) {
	budget := NewPreviewBudget(2)

	assert.True(t, budget.Take())
	assert.True(t, budget.Take())
	assert.False(t, budget.Take())
	assert.Equal(t, 2, budget.Used())

	var nilBudget *PreviewBudget
	assert.False(t, nilBudget.Take())
	assert.Equal(t, 0, nilBudget.Used())
}

func TestPreviewBudget_Concurrent(t *testing.T) {
	budget := NewPreviewBudget(50)
	var granted sync.WaitGroup
	var mu sync.Mutex
	count := 0
	for i := 0; i < 8; i++ {
		granted.Add(1)
		go func() {
			defer granted.Done()
			for j := 0; j < 20; j++ {
				if budget.Take() {
					mu.Lock()
					count++
					mu.Unlock()
				}
			}
		}()
	}
	granted.Wait()

	assert.Equal(t, 50, count)
}
