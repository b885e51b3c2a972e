// Package logger — асинхронное логирование с префиксом сервиса.
// Запись идёт через буферизованный канал, чтобы обработчики не ждали диск;
// при переполнении буфера сообщения отбрасываются. Дополнительно умеет
// замерять длительность функций (DeferLogDuration).
package logger

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

type level int

const (
	levelDebug level = iota
	levelInfo
)

const (
	queueSize = 8192
	// Порог, ниже которого замеры длительности не пишутся на уровне info.
	slowThreshold = 100 * time.Millisecond
)

var (
	mu      sync.RWMutex
	prefix  string
	current = levelInfo

	startOnce sync.Once
	queue     chan string
	drained   chan struct{}
)

func start() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		SetLevel(v)
	}
	queue = make(chan string, queueSize)
	drained = make(chan struct{})
	go func() {
		defer close(drained)
		for msg := range queue {
			log.Print(msg)
		}
	}()
}

func emit(msg string) {
	startOnce.Do(start)
	select {
	case queue <- msg:
	default:
		// Буфер полон: не блокируемся, сообщение теряется.
	}
}

// SetPrefix задаёт тег сервиса для всех последующих записей ("api", "seed").
func SetPrefix(p string) {
	mu.Lock()
	prefix = p
	mu.Unlock()
}

// SetLevel переключает уровень: "debug"/"trace" включают отладочные записи
// и все замеры длительности, остальное трактуется как info.
func SetLevel(s string) {
	mu.Lock()
	switch s {
	case "debug", "trace":
		current = levelDebug
	default:
		current = levelInfo
	}
	mu.Unlock()
}

// Flush закрывает очередь и дожидается записи накопленных сообщений.
// Вызывается один раз при остановке сервиса.
func Flush() {
	startOnce.Do(start)
	close(queue)
	<-drained
}

func tag() string {
	mu.RLock()
	defer mu.RUnlock()
	if prefix == "" {
		return ""
	}
	return "[" + prefix + "] "
}

func debugEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return current == levelDebug
}

func Info(v ...any) {
	emit(tag() + fmt.Sprint(v...))
}

func Infof(format string, v ...any) {
	emit(tag() + fmt.Sprintf(format, v...))
}

func Debugf(format string, v ...any) {
	if debugEnabled() {
		emit(tag() + "DEBUG: " + fmt.Sprintf(format, v...))
	}
}

func Error(v ...any) {
	emit(tag() + "ERROR: " + fmt.Sprint(v...))
}

func Errorf(format string, v ...any) {
	emit(tag() + "ERROR: " + fmt.Sprintf(format, v...))
}

// LogDuration пишет имя функции и её длительность в миллисекундах.
// На уровне info попадают только вызовы дольше slowThreshold, на debug — все.
func LogDuration(fn string, start time.Time) {
	elapsed := time.Since(start)
	if debugEnabled() || elapsed >= slowThreshold {
		emit(fmt.Sprintf("%sfn=%s duration_ms=%d", tag(), fn, elapsed.Milliseconds()))
	}
}

// DeferLogDuration — для вызова в defer:
// defer logger.DeferLogDuration("ChatStore.Messages", time.Now())().
func DeferLogDuration(fn string, start time.Time) func() {
	return func() { LogDuration(fn, start) }
}
