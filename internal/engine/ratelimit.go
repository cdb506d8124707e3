package engine

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimit is a fixed-window budget, written as "count/unit" (e.g. "10/s").
// The zero value disables limiting.
type RateLimit struct {
	Limit  int
	Window time.Duration
}

func ParseRateLimit(value string) (RateLimit, error) {
	if value == "" {
		return RateLimit{}, nil
	}
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return RateLimit{}, fmt.Errorf("invalid rate limit format: %s", value)
	}

	limit, err := strconv.Atoi(parts[0])
	if err != nil || limit <= 0 {
		return RateLimit{}, fmt.Errorf("invalid rate limit count: %s", parts[0])
	}

	var window time.Duration
	switch strings.ToLower(parts[1]) {
	case "s":
		window = time.Second
	case "m":
		window = time.Minute
	case "h":
		window = time.Hour
	default:
		return RateLimit{}, fmt.Errorf("invalid rate limit duration unit: %s", parts[1])
	}
	return RateLimit{Limit: limit, Window: window}, nil
}

type rateWindow struct {
	requests int
	timer    *time.Timer
}

// RateLimiter counts inbound frames per key, usually a connection id.
type RateLimiter struct {
	logger  *slog.Logger
	limit   RateLimit
	mu      sync.Mutex
	windows map[string]*rateWindow
}

func NewRateLimiter(logger *slog.Logger, limit RateLimit) *RateLimiter {
	return &RateLimiter{
		logger:  logger.With(slog.String("component", "rate_limiter")),
		limit:   limit,
		windows: make(map[string]*rateWindow),
	}
}

func (l *RateLimiter) Allow(key string) bool {
	if l == nil || l.limit.Limit <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	w, found := l.windows[key]
	if !found {
		// First request in the window.
		w = &rateWindow{requests: 1}
		w.timer = time.AfterFunc(l.limit.Window, func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.windows[key] == w {
				delete(l.windows, key)
			}
		})
		l.windows[key] = w
		return true
	}

	if w.requests < l.limit.Limit {
		w.requests++
		return true
	}
	l.logger.Debug("Rate limit exceeded", slog.String("key", key), slog.Int("limit", l.limit.Limit))
	return false
}

// Forget drops the window of key, stopping its cleanup timer.
func (l *RateLimiter) Forget(key string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok := l.windows[key]; ok {
		w.timer.Stop()
		delete(l.windows, key)
	}
}

// Tracked reports how many keys currently hold an open window.
func (l *RateLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
