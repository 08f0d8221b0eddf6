package http

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	clientTTL       = 5 * time.Minute
	cleanupInterval = time.Minute
)

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter ограничивает частоту запросов отдельно для каждого IP клиента.
// Неактивные клиенты удаляются во время обработки запросов, без фоновой горутины.
type rateLimiter struct {
	rps   rate.Limit
	burst int
	now   func() time.Time
	log   *slog.Logger

	mu          sync.Mutex
	clients     map[string]*client
	lastCleanup time.Time
}

func newRateLimiter(rps float64, burst int, log *slog.Logger) *rateLimiter {
	return &rateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
		log:     log,
		clients: make(map[string]*client),
	}
}

func (l *rateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastCleanup) > cleanupInterval {
		for key, c := range l.clients {
			if now.Sub(c.lastSeen) > clientTTL {
				delete(l.clients, key)
			}
		}
		l.lastCleanup = now
	}
	c, ok := l.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !l.allow(ip) {
			l.log.Warn("Rate limit exceeded",
				slog.String("component", "http"),
				slog.String("request_id", getRequestID(r.Context())),
				slog.String("ip", ip),
			)
			respondWithError(w, http.StatusTooManyRequests, "Too Many Requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP берёт первый адрес из X-Forwarded-For, иначе хост из RemoteAddr.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
