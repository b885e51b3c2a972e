package middleware

import (
	"net/http"
	"time"

	"github.com/ValeZask/EduDiaryGit/internal/logger"
)

// RequestLog пишет method, path, код ответа и длительность каждого запроса.
// Медленные запросы (и все на уровне debug) дополнительно попадают в замеры
// длительности через LogDuration.
func RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		logger.Debugf("http %s %s -> %d in %dms", r.Method, r.URL.Path, status, time.Since(start).Milliseconds())
		logger.LogDuration("http "+r.Method+" "+r.URL.Path, start)
	})
}
