package parser

import (
	"ainews/internal/domain"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mmcdole/gofeed"
)

// RSSParser разбирает RSS, Atom и JSON Feed в доменную модель.
type RSSParser struct {
	parser *gofeed.Parser
	log    *slog.Logger
}

func NewRSSParser(log *slog.Logger) *RSSParser {
	return &RSSParser{
		parser: gofeed.NewParser(),
		log:    log,
	}
}

// Parse реализует метод интерфейса FeedParser.
// Записи сохраняют порядок документа; исходная строка даты публикации
// сохраняется как есть, разобранная дата - если её удалось распознать.
func (p *RSSParser) Parse(ctx context.Context, reader io.Reader) (*domain.Feed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parsed, err := p.parser.Parse(reader)
	if err != nil {
		p.log.Debug("Error parsing feed", slog.Any("error", err))
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	feed := domain.Feed{
		Title:       strings.TrimSpace(parsed.Title),
		Link:        parsed.Link,
		Description: parsed.Description,
		Items:       make([]domain.Item, 0, len(parsed.Items)),
	}
	for _, entry := range parsed.Items {
		if entry == nil {
			continue
		}
		item := domain.Item{
			Title:       strings.TrimSpace(entry.Title),
			Link:        strings.TrimSpace(entry.Link),
			Description: entry.Description,
			Published:   strings.TrimSpace(entry.Published),
		}
		switch {
		case entry.PublishedParsed != nil:
			item.PublishedAt = entry.PublishedParsed
		case entry.UpdatedParsed != nil:
			item.PublishedAt = entry.UpdatedParsed
		}
		feed.Items = append(feed.Items, item)
	}
	return &feed, nil
}
