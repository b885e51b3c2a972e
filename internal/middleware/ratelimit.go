package middleware

import (
	"net/http"
	"sync"
	"time"
)

const (
	rateWindow     = time.Minute
	rateMaxPerIP   = 200
	rateMaxPerUser = 100
	// При таком числе ключей очередной запрос запускает чистку устаревших окон.
	rateCleanupThreshold = 4096
)

// limiter — счётчик с фиксированным окном: счётчик на ключ сбрасывается,
// когда окно истекает. Дешевле скользящего окна и достаточно для защиты API.
type limiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	buckets map[string]*bucket
}

type bucket struct {
	windowStart time.Time
	count       int
}

func newLimiter(max int, window time.Duration) *limiter {
	return &limiter{max: max, window: window, buckets: make(map[string]*bucket)}
}

func (l *limiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	b, ok := l.buckets[key]
	if !ok || now.Sub(b.windowStart) >= l.window {
		if len(l.buckets) >= rateCleanupThreshold {
			l.cleanup(now)
		}
		l.buckets[key] = &bucket{windowStart: now, count: 1}
		return true
	}
	if b.count >= l.max {
		return false
	}
	b.count++
	return true
}

func (l *limiter) cleanup(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.windowStart) >= l.window {
			delete(l.buckets, k)
		}
	}
}

var (
	limitByIP   = newLimiter(rateMaxPerIP, rateWindow)
	limitByUser = newLimiter(rateMaxPerUser, rateWindow)
)

// RateLimitAPI режет запросы по IP и, для аутентифицированных, по user_id.
// Превышение любого из лимитов — 429.
func RateLimitAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// RemoteAddr уже нормализован цепочкой RealIP.
		if !limitByIP.allow(r.RemoteAddr) {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		if userID := GetUserID(r.Context()); userID != "" {
			if !limitByUser.allow(userID) {
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
