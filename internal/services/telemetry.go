package services

import (
	"context"
	"encoding/json"

	"github.com/mindfold/mindfold-backend/internal/domain"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
	"github.com/mindfold/mindfold-backend/internal/platform/redisdb"
)

const retrievalChannel = "telemetry.retrieval"

// TelemetryService publishes retrieval telemetry over Redis pub/sub.
// When Redis is not configured the service degrades to a no-op; retrieval
// never fails because telemetry could not be delivered.
type TelemetryService interface {
	PublishRetrieval(ctx context.Context, event domain.TelemetryEvent)
}

type telemetryService struct {
	redis *redisdb.Client
	log   *logger.Logger
}

func NewTelemetryService(redis *redisdb.Client, log *logger.Logger) TelemetryService {
	return &telemetryService{
		redis: redis,
		log:   log.With("service", "TelemetryService"),
	}
}

func (s *telemetryService) PublishRetrieval(ctx context.Context, event domain.TelemetryEvent) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(event)
	if err != nil {
		s.log.Warn("telemetry marshal failed", "error", err)
		return
	}
	if err := s.redis.Publish(ctx, retrievalChannel, raw); err != nil {
		s.log.Warn("telemetry publish failed", "error", err)
	}
}
