package app

import (
	"time"

	"github.com/mindfold/mindfold-backend/internal/platform/envutil"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
)

type Config struct {
	Port              string
	JWTSecretKey      string
	SemanticCacheTTL  time.Duration
	ContextCacheTTL   time.Duration
	ProposedThreshold float64
	RequestTimeout    time.Duration
	IngestConcurrency int
	IngestQueueSize   int
	ChatDailyLimit    int
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Port:              envutil.GetEnv("PORT", "8080", log),
		JWTSecretKey:      envutil.GetEnv("JWT_SECRET_KEY", "defaultsecret", log),
		SemanticCacheTTL:  time.Duration(envutil.GetEnvAsInt("SEMANTIC_CACHE_TTL_SECONDS", 300, log)) * time.Second,
		ContextCacheTTL:   time.Duration(envutil.GetEnvAsInt("CONTEXT_CACHE_TTL_SECONDS", 300, log)) * time.Second,
		ProposedThreshold: envutil.GetEnvAsFloat("PROPOSED_EDGE_CONFIDENCE_THRESHOLD", 0.6, log),
		RequestTimeout:    time.Duration(envutil.GetEnvAsInt("REQUEST_TIMEOUT_SECONDS", 30, log)) * time.Second,
		IngestConcurrency: envutil.GetEnvAsInt("INGEST_WORKER_CONCURRENCY", 5, log),
		IngestQueueSize:   envutil.GetEnvAsInt("INGEST_QUEUE_SIZE", 32, log),
		ChatDailyLimit:    envutil.GetEnvAsInt("CHAT_DAILY_LIMIT", 200, log),
	}
}
