package storage

import (
	"ainews/internal/domain"
	"slices"
	"sync"
)

// DefaultRetentionLimit - максимальное число статей в хранилище после слияния.
const DefaultRetentionLimit = 100

// MergeResult описывает итог одного слияния.
// Added содержит статьи, которых не было в хранилище и которые пережили усечение.
type MergeResult struct {
	Added    []domain.Article
	Updated  int
	Evicted  int
	Total    int
	Incoming int
}

// MemoryStore - ограниченная дедуплицированная коллекция статей в памяти.
// Слияние собирает новую коллекцию отдельно и подменяет её под блокировкой записи,
// поэтому читатели никогда не видят частично слитое или частично отсортированное состояние.
type MemoryStore struct {
	mu       sync.RWMutex
	articles []domain.Article
	limit    int
}

// NewMemoryStore создает пустое хранилище. limit <= 0 заменяется на DefaultRetentionLimit.
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = DefaultRetentionLimit
	}
	return &MemoryStore{limit: limit}
}

// Merge выполняет upsert по ID: существующая статья заменяется на месте, новая добавляется в конец.
// Затем коллекция стабильно сортируется по убыванию PublishedAt и усекается до лимита.
func (s *MemoryStore) Merge(incoming []domain.Article) MergeResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make([]domain.Article, len(s.articles), len(s.articles)+len(incoming))
	copy(merged, s.articles)
	index := make(map[string]int, len(merged)+len(incoming))
	for i, a := range merged {
		index[a.ID] = i
	}
	existed := make(map[string]bool, len(merged))
	for id := range index {
		existed[id] = true
	}

	result := MergeResult{Incoming: len(incoming)}
	updated := make(map[string]bool)
	for _, a := range incoming {
		if i, ok := index[a.ID]; ok {
			merged[i] = a
			if existed[a.ID] {
				updated[a.ID] = true
			}
			continue
		}
		index[a.ID] = len(merged)
		merged = append(merged, a)
	}
	result.Updated = len(updated)

	slices.SortStableFunc(merged, func(a, b domain.Article) int {
		return b.PublishedAt.Compare(a.PublishedAt)
	})
	if len(merged) > s.limit {
		for _, a := range merged[s.limit:] {
			if existed[a.ID] {
				result.Evicted++
			}
		}
		merged = slices.Clip(merged[:s.limit])
	}
	for _, a := range merged {
		if !existed[a.ID] {
			result.Added = append(result.Added, a)
		}
	}

	s.articles = merged
	result.Total = len(merged)
	return result
}

// Snapshot возвращает согласованную копию текущей коллекции.
func (s *MemoryStore) Snapshot() []domain.Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.articles)
}

// Links возвращает множество ссылок статей, находящихся в хранилище.
func (s *MemoryStore) Links() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	links := make(map[string]struct{}, len(s.articles))
	for _, a := range s.articles {
		links[a.Link] = struct{}{}
	}
	return links
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.articles)
}

// Limit возвращает лимит хранения.
func (s *MemoryStore) Limit() int { return s.limit }
