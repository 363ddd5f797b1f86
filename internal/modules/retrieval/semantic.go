package retrieval

import (
	"context"
	"sort"
	"strings"

	"github.com/mindfold/mindfold-backend/internal/domain"
	"github.com/mindfold/mindfold-backend/internal/pkg/cache"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
)

// Embedder is the slice of the model client the retrieval path needs.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// semanticIndex runs in-process cosine search over stored community and
// concept embeddings. Query vectors are cached by normalized query string so
// repeated questions skip the embedding call.
type semanticIndex struct {
	graph    GraphReader
	embedder Embedder
	log      *logger.Logger
	qvecs    *cache.TTL[[]float32]
}

func newSemanticIndex(graph GraphReader, embedder Embedder, log *logger.Logger, qvecs *cache.TTL[[]float32]) *semanticIndex {
	return &semanticIndex{
		graph:    graph,
		embedder: embedder,
		log:      log.With("component", "semanticIndex"),
		qvecs:    qvecs,
	}
}

// queryVector embeds the query, returning nil on provider failure. The
// retrieval path degrades to confidence-only scoring without a vector.
func (s *semanticIndex) queryVector(ctx context.Context, query string) []float32 {
	key := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	if key == "" {
		return nil
	}
	if vec, ok := s.qvecs.Get(key); ok {
		return vec
	}
	if s.embedder == nil {
		return nil
	}
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil || len(vecs) == 0 {
		s.log.Warn("embed query failed", "error", err)
		return nil
	}
	s.qvecs.Set(key, vecs[0])
	return vecs[0]
}

// SearchCommunities returns the top-k communities by summary-embedding
// similarity, score desc, community_id asc on ties.
func (s *semanticIndex) SearchCommunities(ctx context.Context, scope domain.Scope, query string, k int) ([]domain.CommunityHit, []float32, error) {
	if k <= 0 {
		k = 5
	}
	qVec := s.queryVector(ctx, query)
	communities, err := s.graph.ListCommunityEmbeddings(ctx, scope, 0)
	if err != nil {
		return nil, qVec, err
	}
	hits := make([]domain.CommunityHit, 0, len(communities))
	for _, co := range communities {
		hits = append(hits, domain.CommunityHit{
			CommunityID: co.CommunityID,
			Name:        co.Name,
			Summary:     co.Summary,
			Score:       cosine(qVec, co.SummaryEmbedding),
		})
	}
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].CommunityID < hits[b].CommunityID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, qVec, nil
}

// SearchConcepts returns the top concepts by embedding similarity, score
// desc, node_id asc on ties.
func (s *semanticIndex) SearchConcepts(ctx context.Context, scope domain.Scope, query string, limit int) ([]domain.ConceptHit, []float32, error) {
	if limit <= 0 {
		limit = 10
	}
	qVec := s.queryVector(ctx, query)
	concepts, err := s.graph.ListConceptEmbeddings(ctx, scope, 0)
	if err != nil {
		return nil, qVec, err
	}
	hits := make([]domain.ConceptHit, 0, len(concepts))
	for _, c := range concepts {
		hits = append(hits, domain.ConceptHit{
			NodeID: c.NodeID,
			Name:   c.Name,
			Score:  cosine(qVec, c.Embedding),
		})
	}
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].NodeID < hits[b].NodeID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, qVec, nil
}
