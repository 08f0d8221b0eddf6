package usecase

import (
	"ainews/internal/domain"
	"context"
	"io"
	"sync/atomic"
)

// FeedFetcher определяет интерфейс для загрузки данных RSS-лент из внешних источников.
// Возвращает io.ReadCloser, который должен быть закрыт после использования.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// FeedParser определяет интерфейс для парсинга ленты в доменную модель.
type FeedParser interface {
	Parse(ctx context.Context, reader io.Reader) (*domain.Feed, error)
}

// ContentPreviewer возвращает короткое превью страницы статьи.
// Ошибки не возвращаются: недоступное превью - пустая строка.
type ContentPreviewer interface {
	Preview(ctx context.Context, url string) string
}

// PreviewBudget ограничивает число статей, для которых за один проход загружается превью.
// Бюджет общий для всех лент прохода и безопасен для конкурентного использования.
type PreviewBudget struct {
	limit int64
	taken atomic.Int64
}

func NewPreviewBudget(limit int) *PreviewBudget {
	return &PreviewBudget{limit: int64(limit)}
}

// Take учитывает очередную статью прохода и сообщает, укладывается ли она в бюджет.
func (b *PreviewBudget) Take() bool {
	if b == nil {
		return false
	}
	return b.taken.Add(1) <= b.limit
}

// Used возвращает число выданных превью.
func (b *PreviewBudget) Used() int {
	if b == nil {
		return 0
	}
	return int(min(b.taken.Load(), b.limit))
}
