package ingestion

import (
	"context"
	"fmt"
	"sync"

	"github.com/mindfold/mindfold-backend/internal/domain"
	apperrors "github.com/mindfold/mindfold-backend/internal/pkg/errors"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
)

// Job is one queued ingestion task.
type Job struct {
	Scope domain.Scope
	Input Input
}

// Queue is the bounded background ingestion queue. Enqueue fails fast with a
// typed error when the buffer is full; there is no blocking producer path.
type Queue struct {
	pipeline *Pipeline
	log      *logger.Logger
	jobs     chan Job
	wg       sync.WaitGroup
	cancel   context.CancelFunc
	once     sync.Once
}

func NewQueue(pipeline *Pipeline, log *logger.Logger, depth, workers int) *Queue {
	if depth <= 0 {
		depth = 32
	}
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		pipeline: pipeline,
		log:      log.With("service", "IngestionQueue"),
		jobs:     make(chan Job, depth),
		cancel:   cancel,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	return q
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-q.jobs:
			if !ok {
				return
			}
			res, err := q.pipeline.Run(ctx, job.Scope, job.Input)
			if err != nil {
				q.log.Error("ingestion job failed", "run_id", job.Input.RunID, "error", err)
				continue
			}
			q.log.Info("ingestion job done",
				"run_id", res.RunID,
				"status", string(res.Status),
				"nodes_created", len(res.NodesCreated),
				"claims", res.ClaimsCount)
		}
	}
}

// Enqueue submits a job without blocking.
func (q *Queue) Enqueue(job Job) error {
	select {
	case q.jobs <- job:
		return nil
	default:
		return fmt.Errorf("ingestion queue at capacity: %w", apperrors.ErrQueueFull)
	}
}

// Close stops intake and waits for in-flight jobs.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.jobs)
		q.wg.Wait()
		q.cancel()
	})
}
