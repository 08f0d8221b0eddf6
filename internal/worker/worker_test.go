package worker

import (
	"ainews/internal/domain"
	"ainews/internal/usecase"
	"ainews/storage"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 10, 19, 9, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func feedArticles(feed string, n int) []domain.Article {
	out := make([]domain.Article, 0, n)
	for i := 0; i < n; i++ {
		link := fmt.Sprintf("https://%s/%d", feed, i)
		out = append(out, domain.Article{
			ID:          domain.ArticleID(link),
			Title:       fmt.Sprintf("%s %d", feed, i),
			Link:        link,
			PublishedAt: testNow.Add(-time.Duration(i) * time.Minute),
			Source:      feed,
		})
	}
	return out
}

type stubProcessor struct {
	mu       sync.Mutex
	articles map[string][]domain.Article
	errs     map[string]error
	known    []map[string]struct{}
}

func (p *stubProcessor) ProcessFeed(_ context.Context, url string, known map[string]struct{}, _ *usecase.PreviewBudget) ([]domain.Article, error) {
	p.mu.Lock()
	p.known = append(p.known, known)
	p.mu.Unlock()
	if err, ok := p.errs[url]; ok {
		return nil, err
	}
	var out []domain.Article
	for _, a := range p.articles[url] {
		if _, ok := known[a.Link]; !ok {
			out = append(out, a)
		}
	}
	return out, nil
}

type recordingSink struct {
	name  string
	err   error
	mu    sync.Mutex
	calls [][]domain.Article
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Publish(_ context.Context, articles []domain.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, articles)
	return s.err
}

func TestWorker_RunPass_MergesInFeedOrder(t *testing.T) {
	shared := feedArticles("shared", 3)
	proc := &stubProcessor{
		articles: map[string][]domain.Article{
			"feed-a": append(feedArticles("a", 7), shared...),
			"feed-b": append(feedArticles("b", 7), shared...),
		},
		errs: map[string]error{"feed-broken": errors.New("fetch failed for broken: timeout")},
	}
	store := storage.NewMemoryStore(100)
	sink := &recordingSink{name: "test"}
	failing := &recordingSink{name: "failing", err: errors.New("broker unavailable")}
	clock := clockwork.NewFakeClockAt(testNow)
	w := New(proc, store, []string{"feed-a", "feed-broken", "feed-b"}, Options{
		FetchConcurrency: 3,
		Clock:            clock,
		Sinks:            []Sink{failing, sink},
	}, discardLogger())

	report := w.RunPass(context.Background())

	assert.Equal(t, 3, report.FeedsTotal)
	assert.Equal(t, 2, report.FeedsOK)
	assert.Equal(t, 1, report.FeedsFailed)
	assert.Equal(t, 20, report.Candidates)
	assert.Equal(t, 17, report.Added)
	assert.Equal(t, 17, report.Total)
	assert.Equal(t, 17, store.Len())

	snapshot := store.Snapshot()
	// Равные PublishedAt сохраняют порядок лент из конфигурации.
	assert.Equal(t, "https://a/0", snapshot[0].Link)
	assert.Equal(t, "https://shared/0", snapshot[1].Link)
	assert.Equal(t, "https://b/0", snapshot[2].Link)
	for _, a := range snapshot {
		assert.Equal(t, testNow.Format(domain.TimeLayout), a.ScrapedAt)
	}

	require.Len(t, sink.calls, 1)
	assert.Len(t, sink.calls[0], 17)
	require.Len(t, failing.calls, 1)

	last, ok := w.LastPass()
	require.True(t, ok)
	assert.Equal(t, report, last)
}

func TestWorker_RunPass_PassesKnownLinks(t *testing.T) {
	proc := &stubProcessor{articles: map[string][]domain.Article{"feed-a": feedArticles("a", 5)}}
	store := storage.NewMemoryStore(100)
	sink := &recordingSink{name: "test"}
	w := New(proc, store, []string{"feed-a"}, Options{Clock: clockwork.NewFakeClockAt(testNow), Sinks: []Sink{sink}}, discardLogger())

	first := w.RunPass(context.Background())
	second := w.RunPass(context.Background())

	assert.Equal(t, 5, first.Added)
	assert.Equal(t, 0, second.Candidates)
	assert.Equal(t, 0, second.Added)
	require.Len(t, proc.known, 2)
	assert.Empty(t, proc.known[0])
	assert.Len(t, proc.known[1], 5)
	assert.Len(t, sink.calls, 1, "sinks are skipped when nothing new was stored")
}

type budgetProcessor struct {
	granted atomic.Int64
}

func (p *budgetProcessor) ProcessFeed(_ context.Context, url string, _ map[string]struct{}, budget *usecase.PreviewBudget) ([]domain.Article, error) {
	articles := feedArticles(url, 10)
	for i := range articles {
		if budget.Take() {
			p.granted.Add(1)
			articles[i].Content = "preview..."
		}
	}
	return articles, nil
}

func TestWorker_RunPass_PreviewBudgetAcrossParallelFeeds(t *testing.T) {
	urls := []string{"f1", "f2", "f3", "f4", "f5", "f6", "f7"}
	proc := &budgetProcessor{}
	w := New(proc, storage.NewMemoryStore(100), urls, Options{
		PreviewBudget:    50,
		FetchConcurrency: 4,
		Clock:            clockwork.NewFakeClockAt(testNow),
	}, discardLogger())

	report := w.RunPass(context.Background())

	assert.Equal(t, int64(50), proc.granted.Load())
	assert.Equal(t, 50, report.Previews)
	assert.Equal(t, 70, report.Candidates)

	// Бюджет выдаётся заново на каждый проход.
	proc.granted.Store(0)
	w.RunPass(context.Background())
	assert.Equal(t, int64(50), proc.granted.Load())
}

type signalProcessor struct {
	calls   chan struct{}
	release chan struct{}
}

func (p *signalProcessor) ProcessFeed(ctx context.Context, _ string, _ map[string]struct{}, _ *usecase.PreviewBudget) ([]domain.Article, error) {
	p.calls <- struct{}{}
	if p.release != nil {
		<-p.release
	}
	return nil, nil
}

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for pass")
	}
}

func assertNoSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal("unexpected pass")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWorker_Start_RunsImmediatelyThenEveryInterval(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testNow)
	proc := &signalProcessor{calls: make(chan struct{}, 4)}
	w := New(proc, storage.NewMemoryStore(100), []string{"feed"}, Options{Interval: time.Hour, Clock: clock}, discardLogger())

	w.Start()
	defer w.Stop()
	waitSignal(t, proc.calls)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(59 * time.Minute)
	assertNoSignal(t, proc.calls)

	clock.Advance(time.Minute)
	waitSignal(t, proc.calls)
	assert.Equal(t, []string{"feed"}, w.GetURLs())
	assert.Equal(t, time.Hour, w.GetInterval())
}

func TestWorker_Stop_WaitsForInFlightPass(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testNow)
	proc := &signalProcessor{calls: make(chan struct{}, 1), release: make(chan struct{})}
	w := New(proc, storage.NewMemoryStore(100), []string{"feed"}, Options{Clock: clock}, discardLogger())

	w.Start()
	waitSignal(t, proc.calls)
	assert.Equal(t, StateRunning, w.State())

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	assertNoSignal(t, stopped)

	close(proc.release)
	waitSignal(t, stopped)

	assert.Equal(t, StateIdle, w.State())
	last, ok := w.LastPass()
	require.True(t, ok)
	assert.Equal(t, 1, last.FeedsOK)

	w.Stop()
}

func TestWorker_StopWithoutStart(t *testing.T) {
	w := New(&stubProcessor{}, storage.NewMemoryStore(100), nil, Options{}, discardLogger())

	w.Stop()
	w.Stop()

	assert.Equal(t, StateIdle, w.State())
	_, ok := w.LastPass()
	assert.False(t, ok)
}
