package services

import (
	"context"
	"fmt"

	"github.com/mindfold/mindfold-backend/internal/data/graph"
	"github.com/mindfold/mindfold-backend/internal/domain"
	apperrors "github.com/mindfold/mindfold-backend/internal/pkg/errors"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
)

// ReviewService is the human curation surface over proposed relationships.
type ReviewService interface {
	ListProposed(ctx context.Context, scope domain.Scope, limit int) ([]domain.Relationship, error)
	Accept(ctx context.Context, scope domain.Scope, triples []domain.RelTriple, reviewedBy string) (int, error)
	Reject(ctx context.Context, scope domain.Scope, triples []domain.RelTriple, reviewedBy string) (int, error)
	Edit(ctx context.Context, scope domain.Scope, old domain.RelTriple, newPredicate, reviewedBy string) error
}

type reviewService struct {
	graph *graph.Store
	log   *logger.Logger
}

func NewReviewService(store *graph.Store, log *logger.Logger) ReviewService {
	return &reviewService{
		graph: store,
		log:   log.With("service", "ReviewService"),
	}
}

func (s *reviewService) ListProposed(ctx context.Context, scope domain.Scope, limit int) ([]domain.Relationship, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("list proposed: %w", apperrors.ErrUnauthorized)
	}
	return s.graph.ListProposedRelationships(ctx, scope, limit)
}

func (s *reviewService) Accept(ctx context.Context, scope domain.Scope, triples []domain.RelTriple, reviewedBy string) (int, error) {
	if !scope.Valid() {
		return 0, fmt.Errorf("accept relationships: %w", apperrors.ErrUnauthorized)
	}
	if len(triples) == 0 {
		return 0, fmt.Errorf("accept relationships: no triples: %w", apperrors.ErrInvalidArgument)
	}
	n, err := s.graph.AcceptRelationships(ctx, scope, triples, reviewedBy)
	if err == nil {
		s.log.Info("relationships accepted", "count", n, "reviewed_by", reviewedBy)
	}
	return n, err
}

func (s *reviewService) Reject(ctx context.Context, scope domain.Scope, triples []domain.RelTriple, reviewedBy string) (int, error) {
	if !scope.Valid() {
		return 0, fmt.Errorf("reject relationships: %w", apperrors.ErrUnauthorized)
	}
	if len(triples) == 0 {
		return 0, fmt.Errorf("reject relationships: no triples: %w", apperrors.ErrInvalidArgument)
	}
	n, err := s.graph.RejectRelationships(ctx, scope, triples, reviewedBy)
	if err == nil {
		s.log.Info("relationships rejected", "count", n, "reviewed_by", reviewedBy)
	}
	return n, err
}

// Edit retires the old predicate and records the replacement as accepted.
func (s *reviewService) Edit(ctx context.Context, scope domain.Scope, old domain.RelTriple, newPredicate, reviewedBy string) error {
	if !scope.Valid() {
		return fmt.Errorf("edit relationship: %w", apperrors.ErrUnauthorized)
	}
	if newPredicate == "" {
		return fmt.Errorf("edit relationship: empty predicate: %w", apperrors.ErrInvalidArgument)
	}
	return s.graph.EditRelationship(ctx, scope, old, newPredicate, reviewedBy)
}
