package config

import (
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
}

type Config struct {
	PostgresURI     string
	RedisURI        string
	ListenAddr      string
	FrontendURL     string
	R2              R2
	MaxActiveJobs   int
	MaxQueuedJobs   int
	RateWindow      time.Duration
	RetryBatchSize  int
	PublishWorkers  int
	OrphanGraceSecs int
}

func LoadConfig() *Config {
	return &Config{
		PostgresURI: getEnv("POSTGRES_URI", ""),
		RedisURI:    getEnv("REDIS_URI", "127.0.0.1:6379"),
		ListenAddr:  getEnv("LISTEN_ADDR", ":3000"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
		},
		MaxActiveJobs:   getEnvInt("MAX_ACTIVE_JOBS", 10),
		MaxQueuedJobs:   getEnvInt("MAX_QUEUED_JOBS", 100),
		RateWindow:      time.Duration(getEnvInt("RATE_WINDOW_MINUTES", 60)) * time.Minute,
		RetryBatchSize:  getEnvInt("RETRY_BATCH_SIZE", 50),
		PublishWorkers:  getEnvInt("PUBLISH_WORKERS", 10),
		OrphanGraceSecs: getEnvInt("ORPHAN_GRACE_SECONDS", 300),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
