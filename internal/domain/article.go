package domain

import (
	"hash/fnv"
	"strconv"
	"time"
)

// UnknownSource подставляется в Article.Source, если у ленты нет заголовка.
const UnknownSource = "Unknown Source"

// TimeLayout - формат строковых временных меток (published по умолчанию, scraped_at).
const TimeLayout = time.RFC3339

// Article - агрегированная новость, хранящаяся в ArticleStore.
// Published остаётся исходной строкой из ленты и используется только для отображения,
// упорядочивание по дате всегда идёт по PublishedAt.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Content     string    `json:"content"`
	Link        string    `json:"link"`
	Published   string    `json:"published"`
	PublishedAt time.Time `json:"published_at"`
	Source      string    `json:"source"`
	ScrapedAt   string    `json:"scraped_at"`
}

// ArticleID возвращает стабильный идентификатор статьи: FNV-1a (64 бита) от ссылки в hex.
// Один и тот же link даёт один и тот же id в любом процессе.
func ArticleID(link string) string {
	h := fnv.New64a()
	h.Write([]byte(link))
	return strconv.FormatUint(h.Sum64(), 16)
}
