package usecase

import (
	"ainews/internal/domain"
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidQueryParameter возвращается для неизвестного поля сортировки,
// неизвестного порядка или некорректных page/per_page.
var ErrInvalidQueryParameter = errors.New("invalid query parameter")

const (
	DefaultSortKey = "published"
	DefaultOrder   = "desc"
	DefaultPage    = 1
	DefaultPerPage = 20
	MaxPerPage     = 100
)

var sortKeys = map[string]func(a, b domain.Article) int{
	"published": func(a, b domain.Article) int { return a.PublishedAt.Compare(b.PublishedAt) },
	"title":     func(a, b domain.Article) int { return cmp.Compare(a.Title, b.Title) },
	"source":    func(a, b domain.Article) int { return cmp.Compare(a.Source, b.Source) },
	"scraped_at": func(a, b domain.Article) int {
		return cmp.Compare(a.ScrapedAt, b.ScrapedAt)
	},
	"summary": func(a, b domain.Article) int { return cmp.Compare(a.Summary, b.Summary) },
	"link":    func(a, b domain.Article) int { return cmp.Compare(a.Link, b.Link) },
	"id":      func(a, b domain.Article) int { return cmp.Compare(a.ID, b.ID) },
}

// SortKeys возвращает допустимые поля сортировки.
func SortKeys() []string {
	keys := make([]string, 0, len(sortKeys))
	for k := range sortKeys {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// NewsSnapshotter отдаёт согласованный снимок статей.
type NewsSnapshotter interface {
	Snapshot() []domain.Article
}

// ListParams - параметры постраничного списка. Нулевые значения заменяются значениями по умолчанию.
type ListParams struct {
	Sort    string
	Order   string
	Page    int
	PerPage int
}

type ListResult struct {
	Articles   []domain.Article `json:"articles"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PerPage    int              `json:"per_page"`
	TotalPages int              `json:"total_pages"`
}

type SearchResult struct {
	Articles []domain.Article `json:"articles"`
	Total    int              `json:"total"`
}

type Stats struct {
	TotalArticles int      `json:"total_articles"`
	TotalSources  int      `json:"total_sources"`
	Sources       []string `json:"sources"`
}

// NewsQueryUseCase реализует чтение агрегированных новостей для API.
// Каждая операция работает ровно с одним снимком хранилища.
type NewsQueryUseCase struct {
	store NewsSnapshotter
}

func NewNewsQueryUseCase(store NewsSnapshotter) *NewsQueryUseCase {
	return &NewsQueryUseCase{store: store}
}

// List сортирует снимок по выбранному полю и возвращает страницу [(page-1)*perPage, page*perPage).
// Страница за пределами коллекции пуста. Неизвестные поле или порядок дают ErrInvalidQueryParameter.
func (uc *NewsQueryUseCase) List(params ListParams) (ListResult, error) {
	params, err := normalize(params)
	if err != nil {
		return ListResult{}, err
	}
	articles := uc.store.Snapshot()
	compare := sortKeys[params.Sort]
	if params.Order == "desc" {
		asc := compare
		compare = func(a, b domain.Article) int { return asc(b, a) }
	}
	slices.SortStableFunc(articles, compare)

	total := len(articles)
	start := total
	if params.Page-1 <= total/params.PerPage {
		start = min((params.Page-1)*params.PerPage, total)
	}
	end := min(start+params.PerPage, total)
	page := make([]domain.Article, end-start)
	copy(page, articles[start:end])

	return ListResult{
		Articles:   page,
		Total:      total,
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalPages: (total + params.PerPage - 1) / params.PerPage,
	}, nil
}

func normalize(p ListParams) (ListParams, error) {
	if p.Sort == "" {
		p.Sort = DefaultSortKey
	}
	if p.Order == "" {
		p.Order = DefaultOrder
	}
	if p.Page == 0 {
		p.Page = DefaultPage
	}
	if p.PerPage == 0 {
		p.PerPage = DefaultPerPage
	}
	if _, ok := sortKeys[p.Sort]; !ok {
		return p, fmt.Errorf("%w: unknown sort field %q", ErrInvalidQueryParameter, p.Sort)
	}
	if p.Order != "asc" && p.Order != "desc" {
		return p, fmt.Errorf("%w: order must be asc or desc, got %q", ErrInvalidQueryParameter, p.Order)
	}
	if p.Page < 1 {
		return p, fmt.Errorf("%w: page must be >= 1", ErrInvalidQueryParameter)
	}
	if p.PerPage < 1 || p.PerPage > MaxPerPage {
		return p, fmt.Errorf("%w: per_page must be between 1 and %d", ErrInvalidQueryParameter, MaxPerPage)
	}
	return p, nil
}

// Search возвращает статьи, у которых title или summary содержит query без учёта регистра.
// Пустой запрос даёт пустой результат, а не все статьи.
func (uc *NewsQueryUseCase) Search(query string) SearchResult {
	result := SearchResult{Articles: []domain.Article{}}
	if query == "" {
		return result
	}
	needle := strings.ToLower(query)
	for _, a := range uc.store.Snapshot() {
		if strings.Contains(strings.ToLower(a.Title), needle) || strings.Contains(strings.ToLower(a.Summary), needle) {
			result.Articles = append(result.Articles, a)
		}
	}
	result.Total = len(result.Articles)
	return result
}

// Sources возвращает различные источники снимка (отсортированы для стабильного вывода).
func (uc *NewsQueryUseCase) Sources() []string {
	return distinctSources(uc.store.Snapshot())
}

func (uc *NewsQueryUseCase) Stats() Stats {
	articles := uc.store.Snapshot()
	sources := distinctSources(articles)
	return Stats{
		TotalArticles: len(articles),
		TotalSources:  len(sources),
		Sources:       sources,
	}
}

func distinctSources(articles []domain.Article) []string {
	seen := make(map[string]struct{})
	sources := make([]string, 0)
	for _, a := range articles {
		if _, ok := seen[a.Source]; ok {
			continue
		}
		seen[a.Source] = struct{}{}
		sources = append(sources, a.Source)
	}
	slices.Sort(sources)
	return sources
}
