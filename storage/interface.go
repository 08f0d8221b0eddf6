package storage

import (
	"ainews/internal/domain"
	"context"
)

// ArticleStore определяет контракт хранилища агрегированных статей.
// Все методы безопасны для конкурентного использования.
type ArticleStore interface {
	Merge(articles []domain.Article) MergeResult
	Snapshot() []domain.Article
	Links() map[string]struct{}
	Len() int
}

// Archive - необязательный приёмник статей, попавших в хранилище.
// Архив только пополняется и никогда не используется для восстановления состояния при старте.
type Archive interface {
	Name() string
	Publish(ctx context.Context, articles []domain.Article) error
	Close() error
}

var (
	_ ArticleStore = (*MemoryStore)(nil)
	_ Archive      = (*PostgresArchive)(nil)
)
