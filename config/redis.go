package config

import (
	"sync"
	"time"
)

var (
	redisOnce   sync.Once
	redisConfig *RedisConfig
)

type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	MaxRetries     int
	RetryDelay     time.Duration
	ProcessTimeout time.Duration
	Concurrency    int
}

func GetRedisConfig() *RedisConfig {
	redisOnce.Do(func() {
		loadEnv()

		redisConfig = &RedisConfig{
			Addr:           getEnv("REDIS_ADDR", "localhost:6379"),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             getEnvInt("REDIS_DB", 0),
			MaxRetries:     getEnvInt("QUEUE_MAX_RETRIES", 3),
			RetryDelay:     getEnvDuration("QUEUE_RETRY_DELAY", time.Minute),
			ProcessTimeout: getEnvDuration("QUEUE_PROCESS_TIMEOUT", 30*time.Minute),
			Concurrency:    getEnvInt("DOC_WORKERS", 5),
		}
	})
	return redisConfig
}
