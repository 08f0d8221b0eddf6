package preview

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

// Marker добавляется после каждого непустого превью.
const Marker = "..."

// Fetcher - источник сырого содержимого страницы.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// Previewer возвращает короткое сырое превью страницы статьи.
type Previewer struct {
	fetcher Fetcher
	chars   int
	timeout time.Duration
	log     *slog.Logger
}

// New создает Previewer, возвращающий первые chars символов ответа.
func New(fetcher Fetcher, chars int, timeout time.Duration, log *slog.Logger) *Previewer {
	return &Previewer{
		fetcher: fetcher,
		chars:   chars,
		timeout: timeout,
		log:     log.With(slog.String("component", "previewer")),
	}
}

// Preview загружает страницу и возвращает первые p.chars символов тела с маркером обрезки.
// Любая ошибка (таймаут, DNS, статус не 200, ошибка чтения) даёт пустую строку.
func (p *Previewer) Preview(ctx context.Context, url string) string {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	body, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		p.log.Debug("Preview unavailable", slog.String("url", url), slog.Any("error", err))
		return ""
	}
	defer body.Close()

	// Символ в UTF-8 занимает не больше utf8.UTFMax байт.
	data, err := io.ReadAll(io.LimitReader(body, int64(p.chars*utf8.UTFMax)))
	if err != nil {
		p.log.Debug("Preview body read failed", slog.String("url", url), slog.Any("error", err))
		return ""
	}
	return truncateRunes(strings.ToValidUTF8(string(data), string(utf8.RuneError)), p.chars) + Marker
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
