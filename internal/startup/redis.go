package startup

import (
	"context"
	"time"

	redisstorage "github.com/ValeZask/EduDiaryGit/internal/storage/redis"
)

// ConnectRedisWithRetry подключается к Redis по URL вида redis://host:port/db.
func ConnectRedisWithRetry(redisURL string, maxWait time.Duration) *redisstorage.Client {
	var client *redisstorage.Client
	dialWithRetry("redis", maxWait, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c, err := redisstorage.New(ctx, redisURL)
		if err != nil {
			return err
		}
		client = c
		return nil
	})
	return client
}
