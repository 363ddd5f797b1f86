package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/mindfold/mindfold-backend/internal/data/graph"
	"github.com/mindfold/mindfold-backend/internal/domain"
	apperrors "github.com/mindfold/mindfold-backend/internal/pkg/errors"
	"github.com/mindfold/mindfold-backend/internal/platform/ctxutil"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
)

// GraphSpaceService resolves request scope and exposes graph-level admin
// operations: overview, branch forks, concept archive and merge.
type GraphSpaceService interface {
	ResolveScope(ctx context.Context, branchOverride string) (domain.Scope, error)
	Overview(ctx context.Context, scope domain.Scope, limitNodes, limitEdges int, policy domain.ProposedPolicy) (*graph.Overview, error)
	ForkBranch(ctx context.Context, scope domain.Scope, newBranchID string) error
	ArchiveConcept(ctx context.Context, scope domain.Scope, nodeID string) error
	MergeConcepts(ctx context.Context, scope domain.Scope, winnerID, loserID string) error
}

type graphSpaceService struct {
	graph *graph.Store
	log   *logger.Logger
}

func NewGraphSpaceService(store *graph.Store, log *logger.Logger) GraphSpaceService {
	return &graphSpaceService{
		graph: store,
		log:   log.With("service", "GraphSpaceService"),
	}
}

// ResolveScope maps the authenticated identity to its graph space. An
// explicit branch override from the request wins over the default branch;
// the override is logged so unexpected branch reads are traceable.
func (s *graphSpaceService) ResolveScope(ctx context.Context, branchOverride string) (domain.Scope, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || strings.TrimSpace(rd.TenantID) == "" {
		return domain.Scope{}, fmt.Errorf("resolve scope: %w", apperrors.ErrUnauthorized)
	}
	scope, err := s.graph.ResolveActiveContext(ctx, rd.TenantID, rd.UserID)
	if err != nil {
		return domain.Scope{}, err
	}
	if b := strings.TrimSpace(branchOverride); b != "" && b != scope.BranchID {
		s.log.Warn("branch override in effect", "graph_id", scope.GraphID, "branch_id", b)
		scope.BranchID = b
	}
	return scope, nil
}

func (s *graphSpaceService) Overview(ctx context.Context, scope domain.Scope, limitNodes, limitEdges int, policy domain.ProposedPolicy) (*graph.Overview, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("graph overview: %w", apperrors.ErrUnauthorized)
	}
	return s.graph.GraphOverview(ctx, scope, limitNodes, limitEdges, policy)
}

func (s *graphSpaceService) ForkBranch(ctx context.Context, scope domain.Scope, newBranchID string) error {
	if !scope.Valid() {
		return fmt.Errorf("fork branch: %w", apperrors.ErrUnauthorized)
	}
	newBranchID = strings.TrimSpace(newBranchID)
	if newBranchID == "" || newBranchID == scope.BranchID {
		return fmt.Errorf("fork branch: bad branch id: %w", apperrors.ErrInvalidArgument)
	}
	if err := s.graph.ForkBranch(ctx, scope, newBranchID, 0); err != nil {
		return err
	}
	s.log.Info("branch forked", "graph_id", scope.GraphID, "from", scope.BranchID, "to", newBranchID)
	return nil
}

func (s *graphSpaceService) ArchiveConcept(ctx context.Context, scope domain.Scope, nodeID string) error {
	if !scope.Valid() {
		return fmt.Errorf("archive concept: %w", apperrors.ErrUnauthorized)
	}
	if strings.TrimSpace(nodeID) == "" {
		return fmt.Errorf("archive concept: empty node id: %w", apperrors.ErrInvalidArgument)
	}
	return s.graph.ArchiveConcept(ctx, scope, nodeID)
}

func (s *graphSpaceService) MergeConcepts(ctx context.Context, scope domain.Scope, winnerID, loserID string) error {
	if !scope.Valid() {
		return fmt.Errorf("merge concepts: %w", apperrors.ErrUnauthorized)
	}
	if winnerID == "" || loserID == "" || winnerID == loserID {
		return fmt.Errorf("merge concepts: bad node ids: %w", apperrors.ErrInvalidArgument)
	}
	if err := s.graph.MergeConcepts(ctx, scope, winnerID, loserID); err != nil {
		return err
	}
	s.log.Info("concepts merged", "graph_id", scope.GraphID, "winner", winnerID, "loser", loserID)
	return nil
}
