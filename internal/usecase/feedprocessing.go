package usecase

import (
	"ainews/internal/domain"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultMaxEntriesPerFeed - сколько записей ленты рассматривается за проход.
const DefaultMaxEntriesPerFeed = 10

// FeedProcessingUseCase превращает одну ленту в набор статей-кандидатов.
// Координирует загрузку, парсинг, отбор новых записей и загрузку превью.
type FeedProcessingUseCase struct {
	fetcher     FeedFetcher
	parser      FeedParser
	previewer   ContentPreviewer
	log         *slog.Logger
	feedNames   map[string]string
	maxEntries  int
	feedTimeout time.Duration
	clock       clockwork.Clock
}

// NewFeedProcessingUseCase создает новый экземпляр UseCase для обработки лент.
// feedTimeout ограничивает загрузку и парсинг самой ленты, но не загрузку превью.
func NewFeedProcessingUseCase(
	fetcher FeedFetcher,
	parser FeedParser,
	previewer ContentPreviewer,
	log *slog.Logger,
	feedNames map[string]string,
	maxEntries int,
	feedTimeout time.Duration,
	clock clockwork.Clock,
) *FeedProcessingUseCase {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntriesPerFeed
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &FeedProcessingUseCase{
		fetcher:     fetcher,
		parser:      parser,
		previewer:   previewer,
		log:         log,
		feedNames:   feedNames,
		maxEntries:  maxEntries,
		feedTimeout: feedTimeout,
		clock:       clock,
	}
}

// ProcessFeed загружает ленту и возвращает не более maxEntries статей-кандидатов в порядке документа.
// Записи, чья ссылка есть в known (снимок хранилища на начало прохода), пропускаются.
// Превью загружается, только пока в budget остаются единицы.
// Ошибка загрузки или парсинга возвращается вызывающему: лента в этом проходе не даёт статей.
func (uc *FeedProcessingUseCase) ProcessFeed(
	ctx context.Context,
	url string,
	known map[string]struct{},
	budget *PreviewBudget,
) ([]domain.Article, error) {
	start := uc.clock.Now()
	feedName := uc.extractFeedName(url)
	log := uc.log.With(
		slog.String("component", "feed-processor"),
		slog.String("feed", feedName),
		slog.String("url", url),
	)
	log.Debug("Processing feed started")

	feed, err := uc.fetchFeed(ctx, url, feedName, log)
	if err != nil {
		return nil, err
	}

	source := feed.Title
	if source == "" {
		source = domain.UnknownSource
	}
	items := feed.Items
	if len(items) > uc.maxEntries {
		items = items[:uc.maxEntries]
	}

	articles := make([]domain.Article, 0, len(items))
	var stored, invalid, previews int
	for _, item := range items {
		if item.Title == "" || item.Link == "" {
			invalid++
			log.Warn("Skipping entry without title or link",
				slog.String("item_title", item.Title),
				slog.String("item_link", item.Link),
			)
			continue
		}
		if _, ok := known[item.Link]; ok {
			stored++
			continue
		}
		now := uc.clock.Now()
		article := domain.Article{
			ID:          domain.ArticleID(item.Link),
			Title:       item.Title,
			Summary:     item.Description,
			Link:        item.Link,
			Published:   item.Published,
			PublishedAt: now,
			Source:      source,
		}
		if article.Published == "" {
			article.Published = now.Format(domain.TimeLayout)
		}
		if item.PublishedAt != nil {
			article.PublishedAt = *item.PublishedAt
		}
		if budget.Take() {
			article.Content = uc.previewer.Preview(ctx, item.Link)
			previews++
		}
		articles = append(articles, article)
	}

	log.Info("Feed processed",
		slog.Int("items_found", len(feed.Items)),
		slog.Int("candidates", len(articles)),
		slog.Int("already_stored", stored),
		slog.Int("invalid", invalid),
		slog.Int("previews", previews),
		slog.Duration("duration", uc.clock.Since(start)),
	)
	return articles, nil
}

func (uc *FeedProcessingUseCase) fetchFeed(ctx context.Context, url, feedName string, log *slog.Logger) (*domain.Feed, error) {
	if uc.feedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.feedTimeout)
		defer cancel()
	}
	reader, err := uc.fetcher.Fetch(ctx, url)
	if err != nil {
		log.Debug("Feed fetch failed", slog.String("stage", "fetch"), slog.Any("error", err))
		return nil, fmt.Errorf("fetch failed for %s: %w", feedName, err)
	}
	defer reader.Close()

	feed, err := uc.parser.Parse(ctx, reader)
	if err != nil {
		log.Debug("Feed parsing failed", slog.String("stage", "parse"), slog.Any("error", err))
		return nil, fmt.Errorf("parse failed for %s: %w", feedName, err)
	}
	return feed, nil
}

// extractFeedName извлекает читаемое имя фида из URL.
// Использует предопределенный маппинг или извлекает домен из URL как fallback.
func (uc *FeedProcessingUseCase) extractFeedName(url string) string {
	if name, ok := uc.feedNames[url]; ok {
		return name
	}
	parts := strings.Split(url, "/")
	if len(parts) >= 3 {
		return strings.TrimPrefix(parts[2], "www.")
	}
	return "Unknown"
}
