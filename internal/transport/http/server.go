package http

import (
	"log/slog"
	"net/http"
	"strings"
)

// ServerOptions - настройки роутера.
type ServerOptions struct {
	APIPrefix string
	// RateLimitRPS <= 0 отключает ограничение частоты запросов.
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewServer создает и настраивает HTTP-обработчик с роутингом и middleware.
// Регистрирует эндпоинты API под префиксом opts.APIPrefix.
// Добавляет middleware для request id, логирования, CORS и ограничения частоты.
func NewServer(log *slog.Logger, h *Handler, opts ServerOptions) http.Handler {
	prefix := "/" + strings.Trim(opts.APIPrefix, "/")
	if prefix == "/" {
		prefix = ""
	}
	mux := http.NewServeMux()
	mux.HandleFunc(prefix+"/news", h.getNews)
	mux.HandleFunc(prefix+"/news/search", h.searchNews)
	mux.HandleFunc(prefix+"/sources", h.getSources)
	mux.HandleFunc(prefix+"/stats", h.getStats)
	mux.HandleFunc(prefix+"/health", h.healthCheck)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusNotFound, "Not Found")
	})

	var handler http.Handler = mux
	if opts.RateLimitRPS > 0 {
		burst := max(opts.RateLimitBurst, 1)
		handler = newRateLimiter(opts.RateLimitRPS, burst, log).middleware(handler)
	}
	handler = loggingMiddleware(log)(handler)
	handler = requestIDMiddleware()(handler)
	handler = corsMiddleware()(handler)
	return handler
}
