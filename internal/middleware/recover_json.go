package middleware

import (
	"bufio"
	"net"
	"net/http"
	"runtime/debug"

	"github.com/ValeZask/EduDiaryGit/internal/logger"
)

// statusWriter запоминает код ответа и факт записи.
// Реализует http.Hijacker, иначе WebSocket upgrade через цепочку не пройдёт.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status != 0 {
		return
	}
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	// После hijack код ответа пишет сам handler, помечаем как записанный.
	if w.status == 0 {
		w.status = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}

// RecoverJSON перехватывает панику обработчика: пишет её со стеком в лог и,
// если ответ ещё не начат, отдаёт клиенту JSON 500.
func RecoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			logger.Errorf("panic on %s %s: %v\n%s", r.Method, r.URL.Path, p, debug.Stack())
			if sw.status == 0 {
				sw.Header().Set("Content-Type", "application/json; charset=utf-8")
				sw.WriteHeader(http.StatusInternalServerError)
				sw.Write([]byte(`{"error":"internal server error"}`))
			}
		}()
		next.ServeHTTP(sw, r)
	})
}
