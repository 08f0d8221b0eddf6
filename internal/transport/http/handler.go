package http

import (
	"ainews/internal/usecase"
	"ainews/internal/worker"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
)

type newsQuerier interface {
	List(params usecase.ListParams) (usecase.ListResult, error)
	Search(query string) usecase.SearchResult
	Sources() []string
	Stats() usecase.Stats
}

type schedulerStatus interface {
	State() worker.State
	LastPass() (worker.PassReport, bool)
}

type articleCounter interface {
	Len() int
}

type Handler struct {
	log       *slog.Logger
	news      newsQuerier
	scheduler schedulerStatus
	store     articleCounter
}

func NewHandler(log *slog.Logger, news newsQuerier, scheduler schedulerStatus, store articleCounter) *Handler {
	return &Handler{
		log:       log.With(slog.String("component", "http")),
		news:      news,
		scheduler: scheduler,
		store:     store,
	}
}

type sourcesResponse struct {
	Sources []string `json:"sources"`
}

type healthResponse struct {
	Status         string             `json:"status"`
	Articles       int                `json:"articles"`
	SchedulerState worker.State       `json:"scheduler_state"`
	LastPass       *worker.PassReport `json:"last_pass"`
}

// getNews - хендлер для эндпоинта GET /api/news?sort=&order=&page=&per_page=
func (h *Handler) getNews(w http.ResponseWriter, r *http.Request) {
	const op = "transport.http/getNews"
	log := h.requestLogger(r, op)
	if !allowGet(w, r, log) {
		return
	}
	query := r.URL.Query()
	page, err := parsePositiveInt(query.Get("page"), "page")
	if err != nil {
		log.Warn("invalid query parameter", slog.Any("error", err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	perPage, err := parsePositiveInt(query.Get("per_page"), "per_page")
	if err != nil {
		log.Warn("invalid query parameter", slog.Any("error", err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.news.List(usecase.ListParams{
		Sort:    query.Get("sort"),
		Order:   query.Get("order"),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidQueryParameter) {
			log.Warn("invalid query parameter", slog.Any("error", err))
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error("Failed to list news", slog.Any("error", err))
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// searchNews - хендлер для эндпоинта GET /api/news/search?q=
func (h *Handler) searchNews(w http.ResponseWriter, r *http.Request) {
	log := h.requestLogger(r, "transport.http/searchNews")
	if !allowGet(w, r, log) {
		return
	}
	respondWithJSON(w, http.StatusOK, h.news.Search(r.URL.Query().Get("q")))
}

func (h *Handler) getSources(w http.ResponseWriter, r *http.Request) {
	log := h.requestLogger(r, "transport.http/getSources")
	if !allowGet(w, r, log) {
		return
	}
	respondWithJSON(w, http.StatusOK, sourcesResponse{Sources: h.news.Sources()})
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	log := h.requestLogger(r, "transport.http/getStats")
	if !allowGet(w, r, log) {
		return
	}
	respondWithJSON(w, http.StatusOK, h.news.Stats())
}

// healthCheck - хендлер для проверки состояния сервиса и планировщика
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	log := h.requestLogger(r, "transport.http/healthCheck")
	if !allowGet(w, r, log) {
		return
	}
	resp := healthResponse{
		Status:         "ok",
		Articles:       h.store.Len(),
		SchedulerState: h.scheduler.State(),
	}
	if last, ok := h.scheduler.LastPass(); ok {
		resp.LastPass = &last
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) requestLogger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", getRequestID(r.Context())),
	)
}

func allowGet(w http.ResponseWriter, r *http.Request, log *slog.Logger) bool {
	if r.Method == http.MethodGet {
		return true
	}
	log.Warn("method not allowed", slog.String("method", r.Method))
	w.Header().Set("Allow", http.MethodGet)
	respondWithError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	return false
}

// parsePositiveInt разбирает необязательный числовой параметр. Пустое значение даёт 0 (значение по умолчанию).
func parsePositiveInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("invalid '%s' parameter: %q", name, raw)
	}
	return v, nil
}

// Вспомогательные функции для ответов
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
