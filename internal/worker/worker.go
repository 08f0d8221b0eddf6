package worker

import (
	"ainews/internal/domain"
	"ainews/internal/usecase"
	"ainews/storage"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultInterval         = time.Hour
	DefaultPreviewBudget    = 50
	DefaultFetchConcurrency = 4

	sinkTimeout = 30 * time.Second
)

// State - состояние планировщика.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running-pass"
)

// FeedProcessor определяет интерфейс для обработки отдельных RSS-лент.
// Используется для внедрения зависимости в воркер.
type FeedProcessor interface {
	ProcessFeed(ctx context.Context, url string, known map[string]struct{}, budget *usecase.PreviewBudget) ([]domain.Article, error)
}

// Store - часть хранилища, которая нужна проходу.
type Store interface {
	Links() map[string]struct{}
	Merge(articles []domain.Article) storage.MergeResult
}

// Sink получает статьи, впервые попавшие в хранилище за проход (архив, события).
type Sink interface {
	Name() string
	Publish(ctx context.Context, articles []domain.Article) error
}

// PassReport - итог одного прохода по всем лентам.
type PassReport struct {
	StartedAt   time.Time `json:"started_at"`
	DurationMS  int64     `json:"duration_ms"`
	FeedsTotal  int       `json:"feeds_total"`
	FeedsOK     int       `json:"feeds_ok"`
	FeedsFailed int       `json:"feeds_failed"`
	Candidates  int       `json:"candidates"`
	Previews    int       `json:"previews"`
	Added       int       `json:"added"`
	Updated     int       `json:"updated"`
	Evicted     int       `json:"evicted"`
	Total       int       `json:"total"`
}

// Options - параметры воркера. Нулевые Interval и FetchConcurrency заменяются значениями по умолчанию,
// PreviewBudget = 0 отключает превью.
type Options struct {
	Interval         time.Duration
	PreviewBudget    int
	FetchConcurrency int
	Clock            clockwork.Clock
	Sinks            []Sink
}

// Worker реализует фонового воркера для периодической обработки RSS-лент.
// Проходы никогда не пересекаются: следующий начинается через interval после начала предыдущего.
type Worker struct {
	processor     FeedProcessor
	store         Store
	urls          []string
	interval      time.Duration
	previewBudget int
	concurrency   int
	clock         clockwork.Clock
	sinks         []Sink
	log           *slog.Logger

	running atomic.Bool
	passMu  sync.Mutex

	mu       sync.Mutex
	lastPass *PassReport
	started  bool
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New создает нового воркера для обработки RSS-лент.
func New(processor FeedProcessor, store Store, urls []string, opts Options, log *slog.Logger) *Worker {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.PreviewBudget < 0 {
		opts.PreviewBudget = DefaultPreviewBudget
	}
	if opts.FetchConcurrency <= 0 {
		opts.FetchConcurrency = DefaultFetchConcurrency
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Worker{
		processor:     processor,
		store:         store,
		urls:          urls,
		interval:      opts.Interval,
		previewBudget: opts.PreviewBudget,
		concurrency:   opts.FetchConcurrency,
		clock:         opts.Clock,
		sinks:         opts.Sinks,
		log:           log.With(slog.String("component", "worker")),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start запускает воркер в отдельной горутине. Первый проход начинается сразу.
// Повторный вызов ничего не делает.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	go w.run()
}

// Stop просит воркер остановиться и ждёт выхода из цикла.
// Текущий проход не прерывается и доводится до конца. Вызов идемпотентен.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if started {
		<-w.done
	}
}

// State сообщает, идёт ли сейчас проход.
func (w *Worker) State() State {
	if w.running.Load() {
		return StateRunning
	}
	return StateIdle
}

// LastPass возвращает отчёт о последнем завершённом проходе.
func (w *Worker) LastPass() (PassReport, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastPass == nil {
		return PassReport{}, false
	}
	return *w.lastPass, true
}

// GetURLs возвращает список URL, которые обрабатывает воркер.
func (w *Worker) GetURLs() []string { return w.urls }

// GetInterval возвращает интервал обработки RSS-лент.
func (w *Worker) GetInterval() time.Duration { return w.interval }

func (w *Worker) run() {
	defer close(w.done)
	w.log.Info("Feed processing worker started",
		slog.String("interval", w.interval.String()),
		slog.Int("feed_count", len(w.urls)),
		slog.Int("concurrency", w.concurrency),
	)
	for {
		start := w.clock.Now()
		// Проход не привязан к stop: остановка дожидается его завершения.
		w.RunPass(context.Background())

		select {
		case <-w.stop:
			w.log.Info("Worker stopping")
			return
		default:
		}

		wait := max(w.interval-w.clock.Since(start), 0)
		if wait == 0 {
			w.log.Warn("Pass overran the interval, starting next pass immediately")
		}
		select {
		case <-w.stop:
			w.log.Info("Worker stopping")
			return
		case <-w.clock.After(wait):
		}
	}
}

// RunPass выполняет один проход: параллельно обрабатывает ленты,
// объединяет результаты в порядке конфигурации одним Merge и передаёт новые статьи в sinks.
// Ошибка отдельной ленты логируется и не прерывает проход.
func (w *Worker) RunPass(ctx context.Context) PassReport {
	w.passMu.Lock()
	defer w.passMu.Unlock()
	w.running.Store(true)
	defer w.running.Store(false)

	start := w.clock.Now()
	w.log.Info("Feed processing cycle started", slog.Int("feed_to_process", len(w.urls)))

	known := w.store.Links()
	budget := usecase.NewPreviewBudget(w.previewBudget)
	results := make([][]domain.Article, len(w.urls))
	var failed atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(w.concurrency)
	for i, url := range w.urls {
		g.Go(func() error {
			if ctx.Err() != nil {
				failed.Add(1)
				return nil
			}
			articles, err := w.processor.ProcessFeed(ctx, url, known, budget)
			if err != nil {
				failed.Add(1)
				w.log.Error("Feed processing failed",
					slog.String("url", url),
					slog.Any("error", err),
				)
				return nil
			}
			results[i] = articles
			return nil
		})
	}
	_ = g.Wait()

	scrapedAt := w.clock.Now().Format(domain.TimeLayout)
	var batch []domain.Article
	for _, articles := range results {
		for _, a := range articles {
			a.ScrapedAt = scrapedAt
			batch = append(batch, a)
		}
	}
	res := w.store.Merge(batch)
	w.publish(ctx, res.Added)

	report := PassReport{
		StartedAt:   start,
		DurationMS:  w.clock.Since(start).Milliseconds(),
		FeedsTotal:  len(w.urls),
		FeedsOK:     len(w.urls) - int(failed.Load()),
		FeedsFailed: int(failed.Load()),
		Candidates:  len(batch),
		Previews:    budget.Used(),
		Added:       len(res.Added),
		Updated:     res.Updated,
		Evicted:     res.Evicted,
		Total:       res.Total,
	}
	w.mu.Lock()
	w.lastPass = &report
	w.mu.Unlock()

	w.log.Info("Feed processing cycle completed",
		slog.Int("successful", report.FeedsOK),
		slog.Int("errors", report.FeedsFailed),
		slog.Int("candidates", report.Candidates),
		slog.Int("added", report.Added),
		slog.Int("evicted", report.Evicted),
		slog.Int("stored", report.Total),
		slog.Duration("duration", w.clock.Since(start)),
	)
	return report
}

func (w *Worker) publish(ctx context.Context, articles []domain.Article) {
	if len(articles) == 0 {
		return
	}
	for _, sink := range w.sinks {
		sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
		err := sink.Publish(sinkCtx, articles)
		cancel()
		if err != nil {
			w.log.Error("Sink publish failed",
				slog.String("sink", sink.Name()),
				slog.Int("articles", len(articles)),
				slog.Any("error", err),
			)
			continue
		}
		w.log.Debug("Articles published", slog.String("sink", sink.Name()), slog.Int("articles", len(articles)))
	}
}
