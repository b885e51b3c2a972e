// Package startup — подключение к внешним зависимостям при старте сервиса.
// БД или Redis часто поднимаются позже приложения (docker compose), поэтому
// подключение ретраится с растущим интервалом, и только по истечении maxWait
// процесс завершается.
package startup

import (
	"os"
	"time"

	"github.com/ValeZask/EduDiaryGit/internal/logger"
)

const (
	initialBackoff = 2 * time.Second
	maxBackoff     = 30 * time.Second
)

// dialWithRetry крутит dial до успеха или истечения maxWait.
// what попадает в сообщения лога ("db", "redis").
func dialWithRetry(what string, maxWait time.Duration, dial func() error) {
	deadline := time.Now().Add(maxWait)
	backoff := initialBackoff
	for {
		err := dial()
		if err == nil {
			return
		}
		if time.Now().After(deadline) {
			logger.Errorf("%s connect (gave up after %v): %v", what, maxWait, err)
			os.Exit(1)
		}
		logger.Errorf("%s connect failed, retry in %v: %v", what, backoff, err)
		time.Sleep(backoff)
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}
