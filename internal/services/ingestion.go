package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mindfold/mindfold-backend/internal/data/graph"
	"github.com/mindfold/mindfold-backend/internal/domain"
	"github.com/mindfold/mindfold-backend/internal/modules/ingestion"
	apperrors "github.com/mindfold/mindfold-backend/internal/pkg/errors"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
)

// IngestRequest is one lecture submission.
type IngestRequest struct {
	SourceID    string `json:"source_id"`
	SourceLabel string `json:"source_label"`
	Domain      string `json:"domain"`
	Text        string `json:"text"`
	Segmented   bool   `json:"segmented"`
	Async       bool   `json:"async"`
}

// IngestionService owns run lifecycle: submit, inspect, undo.
type IngestionService interface {
	Ingest(ctx context.Context, scope domain.Scope, req IngestRequest) (*ingestion.Result, error)
	GetRun(ctx context.Context, scope domain.Scope, runID string) (*domain.IngestionRun, error)
	UndoRun(ctx context.Context, scope domain.Scope, runID string) error
}

type ingestionService struct {
	pipeline *ingestion.Pipeline
	queue    *ingestion.Queue
	graph    *graph.Store
	log      *logger.Logger
}

func NewIngestionService(pipeline *ingestion.Pipeline, queue *ingestion.Queue, store *graph.Store, log *logger.Logger) IngestionService {
	return &ingestionService{
		pipeline: pipeline,
		queue:    queue,
		graph:    store,
		log:      log.With("service", "IngestionService"),
	}
}

// Ingest runs the pipeline inline, or enqueues it when the caller asked for
// async processing. The async path returns a RUNNING result immediately; the
// queue rejects with ErrQueueFull rather than blocking the request.
func (s *ingestionService) Ingest(ctx context.Context, scope domain.Scope, req IngestRequest) (*ingestion.Result, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("ingest: %w", apperrors.ErrUnauthorized)
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("ingest: empty text: %w", apperrors.ErrInvalidArgument)
	}
	if strings.TrimSpace(req.SourceID) == "" {
		req.SourceID = uuid.NewString()
	}
	in := ingestion.Input{
		SourceID:    req.SourceID,
		SourceLabel: req.SourceLabel,
		Domain:      req.Domain,
		Text:        req.Text,
		RunID:       "RUN_" + uuid.NewString(),
		Segmented:   req.Segmented,
	}

	if req.Async && s.queue != nil {
		if err := s.queue.Enqueue(ingestion.Job{Scope: scope, Input: in}); err != nil {
			return nil, fmt.Errorf("ingest: %w", err)
		}
		s.log.Info("ingestion queued", "run_id", in.RunID, "graph_id", scope.GraphID)
		return &ingestion.Result{RunID: in.RunID, Status: domain.RunRunning}, nil
	}
	return s.pipeline.Run(ctx, scope, in)
}

func (s *ingestionService) GetRun(ctx context.Context, scope domain.Scope, runID string) (*domain.IngestionRun, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("get run: %w", apperrors.ErrUnauthorized)
	}
	return s.graph.GetRun(ctx, scope, runID)
}

// UndoRun archives everything the run created and rejects its proposed
// edges. Safe to call twice; the second call is a no-op.
func (s *ingestionService) UndoRun(ctx context.Context, scope domain.Scope, runID string) error {
	if !scope.Valid() {
		return fmt.Errorf("undo run: %w", apperrors.ErrUnauthorized)
	}
	if _, err := s.graph.GetRun(ctx, scope, runID); err != nil {
		return err
	}
	if err := s.graph.UndoRun(ctx, scope, runID); err != nil {
		return err
	}
	s.log.Info("run undone", "run_id", runID, "graph_id", scope.GraphID)
	return nil
}
