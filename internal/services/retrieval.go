package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mindfold/mindfold-backend/internal/domain"
	"github.com/mindfold/mindfold-backend/internal/modules/retrieval"
	"github.com/mindfold/mindfold-backend/internal/pkg/cache"
	apperrors "github.com/mindfold/mindfold-backend/internal/pkg/errors"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
)

// GraphRAGContext is the prompt-ready context block handed to chat callers.
type GraphRAGContext struct {
	ContextText string                `json:"context_text"`
	Debug       domain.RetrievalDebug `json:"debug"`
	Citations   []Citation            `json:"citations"`
	HasEvidence bool                  `json:"has_evidence"`
	ClaimIDs    []string              `json:"claim_ids"`
	Cached      bool                  `json:"cached"`
}

// Citation points one context claim back at its source and chunk.
type Citation struct {
	ClaimID  string `json:"claim_id"`
	SourceID string `json:"source_id,omitempty"`
	ChunkID  string `json:"chunk_id,omitempty"`
}

// ContextOptions tune one context build. A nil IncludeProposed keeps the
// confidence-gated default for proposed edges; true admits them all, false
// drops them.
type ContextOptions struct {
	Strictness      domain.Strictness
	RecencyDays     int
	IncludeProposed *bool
}

// RetrievalService fronts the plan dispatcher and the evidence subgraph.
type RetrievalService interface {
	Retrieve(ctx context.Context, scope domain.Scope, req retrieval.PlanRequest) (*domain.PlanResult, error)
	EvidenceSubgraph(ctx context.Context, scope domain.Scope, claimIDs []string, limitNodes, limitEdges int, policy domain.ProposedPolicy) (*domain.Subgraph, error)
	ContextForMessage(ctx context.Context, scope domain.Scope, message string, opts ContextOptions) (*GraphRAGContext, error)
}

type retrievalService struct {
	planner  *retrieval.Planner
	engine   *retrieval.Engine
	log      *logger.Logger
	ctxCache *cache.TTL[GraphRAGContext]
}

func NewRetrievalService(planner *retrieval.Planner, engine *retrieval.Engine, ctxCache *cache.TTL[GraphRAGContext], log *logger.Logger) RetrievalService {
	return &retrievalService{
		planner:  planner,
		engine:   engine,
		log:      log.With("service", "RetrievalService"),
		ctxCache: ctxCache,
	}
}

func (s *retrievalService) Retrieve(ctx context.Context, scope domain.Scope, req retrieval.PlanRequest) (*domain.PlanResult, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("retrieve: %w", apperrors.ErrUnauthorized)
	}
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("retrieve: empty question: %w", apperrors.ErrInvalidArgument)
	}
	return s.planner.Run(ctx, scope, req)
}

func (s *retrievalService) EvidenceSubgraph(ctx context.Context, scope domain.Scope, claimIDs []string, limitNodes, limitEdges int, policy domain.ProposedPolicy) (*domain.Subgraph, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("evidence subgraph: %w", apperrors.ErrUnauthorized)
	}
	if len(claimIDs) == 0 {
		return nil, fmt.Errorf("evidence subgraph: no claim ids: %w", apperrors.ErrInvalidArgument)
	}
	return s.engine.EvidenceSubgraph(ctx, scope, claimIDs, limitNodes, limitEdges, policy)
}

// ContextForMessage runs full retrieval for a chat message and renders a
// prompt-ready context block. Results are cached per (graph, branch, message,
// strictness) so repeated turns over the same question skip the graph.
func (s *retrievalService) ContextForMessage(ctx context.Context, scope domain.Scope, message string, opts ContextOptions) (*GraphRAGContext, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("graphrag context: %w", apperrors.ErrUnauthorized)
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("graphrag context: empty message: %w", apperrors.ErrInvalidArgument)
	}

	key := contextCacheKey(scope, message, opts.Strictness)
	if s.ctxCache != nil {
		if hit, ok := s.ctxCache.Get(key); ok {
			hit.Cached = true
			return &hit, nil
		}
	}

	engineOpts := retrieval.Options{
		Strictness:  opts.Strictness,
		RecencyDays: opts.RecencyDays,
	}
	if opts.IncludeProposed != nil {
		if *opts.IncludeProposed {
			engineOpts.Policy = domain.ProposedAll
		} else {
			engineOpts.Policy = domain.ProposedNone
		}
	}
	bundle, _, _, err := s.engine.Retrieve(ctx, scope, message, engineOpts)
	if err != nil {
		return nil, err
	}
	out := GraphRAGContext{
		ContextText: renderContextText(bundle),
		Debug:       bundle.Debug,
		Citations:   citations(bundle),
		HasEvidence: bundle.HasEvidence,
		ClaimIDs:    bundle.Debug.SelectedClaimIDs,
	}
	if s.ctxCache != nil {
		s.ctxCache.Set(key, out)
	}
	return &out, nil
}

// citations maps the bundle's claims to their backing sources and chunks.
func citations(bundle *domain.ContextBundle) []Citation {
	out := make([]Citation, 0, len(bundle.Claims))
	for _, cl := range bundle.Claims {
		out = append(out, Citation{
			ClaimID:  cl.ClaimID,
			SourceID: cl.SourceID,
			ChunkID:  cl.ChunkID,
		})
	}
	return out
}

func contextCacheKey(scope domain.Scope, message string, strictness domain.Strictness) string {
	sum := md5.Sum([]byte(message))
	return strings.Join([]string{
		scope.GraphID,
		scope.BranchID,
		hex.EncodeToString(sum[:])[:8],
		string(strictness),
	}, ":")
}

// renderContextText flattens a bundle into the sectioned plain-text block the
// chat prompt consumes. Sections appear only when non-empty.
func renderContextText(bundle *domain.ContextBundle) string {
	var b strings.Builder
	if len(bundle.Communities) > 0 {
		b.WriteString("## Topic summaries\n")
		for _, c := range bundle.Communities {
			b.WriteString("- " + c.Name)
			if c.Summary != "" {
				b.WriteString(": " + c.Summary)
			}
			b.WriteString("\n")
		}
	}
	if len(bundle.Claims) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## Evidence\n")
		for _, cl := range bundle.Claims {
			fmt.Fprintf(&b, "- [%s %.2f] %s\n", cl.Status, cl.Confidence, cl.Text)
		}
	}
	if len(bundle.Edges) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## Relationships\n")
		names := make(map[string]string, len(bundle.Concepts))
		for _, c := range bundle.Concepts {
			names[c.NodeID] = c.Name
		}
		for _, e := range bundle.Edges {
			src, dst := e.SourceID, e.TargetID
			if n := names[src]; n != "" {
				src = n
			}
			if n := names[dst]; n != "" {
				dst = n
			}
			fmt.Fprintf(&b, "- %s %s %s\n", src, e.Predicate, dst)
		}
	}
	if b.Len() == 0 {
		return "No graph evidence found for this question."
	}
	return b.String()
}
