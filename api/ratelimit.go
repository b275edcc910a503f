// Package api holds HTTP middleware shared by the local API surface.
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

// clientEntry holds a rate limiter and last-seen timestamp for cleanup.
type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MutationLimiter rate-limits mutation requests (POST/PUT/PATCH/DELETE) per
// client IP. Reads pass through untouched: list refreshes are cheap and
// cache-served, while runaway mutation loops hammer the backend.
type MutationLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientEntry
	rate    rate.Limit
	burst   int
}

// NewMutationLimiter allows perMinute mutations per client, with a burst of
// the same size. A non-positive perMinute disables throttling.
func NewMutationLimiter(perMinute int) *MutationLimiter {
	limit := rate.Inf
	burst := 1
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
		burst = perMinute
	}
	ml := &MutationLimiter{
		clients: make(map[string]*clientEntry),
		rate:    limit,
		burst:   burst,
	}
	go ml.cleanup()
	return ml
}

// Middleware returns the mux middleware applying the limit.
func (ml *MutationLimiter) Middleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			default:
				next.ServeHTTP(w, r)
				return
			}
			if !ml.limiterFor(clientIP(r)).Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{"error": "too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (ml *MutationLimiter) limiterFor(ip string) *rate.Limiter {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	entry, ok := ml.clients[ip]
	if !ok {
		entry = &clientEntry{limiter: rate.NewLimiter(ml.rate, ml.burst)}
		ml.clients[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// cleanup evicts clients not seen in the last 10 minutes.
func (ml *MutationLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		ml.mu.Lock()
		for ip, entry := range ml.clients {
			if time.Since(entry.lastSeen) > 10*time.Minute {
				delete(ml.clients, ip)
			}
		}
		ml.mu.Unlock()
	}
}

// clientIP extracts the client address, preferring proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
