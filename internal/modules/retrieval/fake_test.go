package retrieval

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/mindfold/mindfold-backend/internal/domain"
	"github.com/mindfold/mindfold-backend/internal/pkg/cache"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
)

// fakeGraph is an in-memory GraphReader for engine and plan tests.
type fakeGraph struct {
	communities []domain.Community
	concepts    []domain.ConceptLite
	details     map[string]domain.ConceptDetail
	claims      []domain.ClaimCandidate
	edges       []domain.Edge
	chunks      map[string]domain.SourceChunk
	quotes      map[string]domain.Quote
	sourceURLs  map[string]string
	pathEdges   map[string][]domain.Edge
}

func (f *fakeGraph) ListCommunityEmbeddings(_ context.Context, _ domain.Scope, _ int) ([]domain.Community, error) {
	return f.communities, nil
}

func (f *fakeGraph) ListConceptEmbeddings(_ context.Context, _ domain.Scope, _ int) ([]domain.ConceptLite, error) {
	return f.concepts, nil
}

func passesStrictness(cl domain.ClaimCandidate, strictness domain.Strictness) bool {
	switch strictness {
	case domain.StrictnessHigh:
		return cl.Status == domain.ClaimVerified
	case domain.StrictnessLow:
		return true
	default:
		return cl.Status == domain.ClaimVerified || (cl.Status == domain.ClaimProposed && cl.Confidence >= 0.7)
	}
}

func (f *fakeGraph) ClaimsByCommunities(_ context.Context, _ domain.Scope, communityIDs []string, strictness domain.Strictness, perCommunity int) ([]domain.ClaimCandidate, error) {
	wanted := map[string]bool{}
	for _, id := range communityIDs {
		wanted[id] = true
	}
	perCount := map[string]int{}
	var out []domain.ClaimCandidate
	for _, cl := range f.claims {
		if !wanted[cl.CommunityID] || !passesStrictness(cl, strictness) {
			continue
		}
		if perCount[cl.CommunityID] >= perCommunity {
			continue
		}
		perCount[cl.CommunityID]++
		out = append(out, cl)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CommunityID != out[b].CommunityID {
			return out[a].CommunityID < out[b].CommunityID
		}
		return out[a].ClaimID < out[b].ClaimID
	})
	return out, nil
}

func (f *fakeGraph) ClaimsByIDs(_ context.Context, _ domain.Scope, claimIDs []string) ([]domain.ClaimCandidate, error) {
	wanted := map[string]bool{}
	for _, id := range claimIDs {
		wanted[id] = true
	}
	var out []domain.ClaimCandidate
	for _, cl := range f.claims {
		if wanted[cl.ClaimID] {
			out = append(out, cl)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ClaimID < out[b].ClaimID })
	return out, nil
}

func (f *fakeGraph) RecentClaims(_ context.Context, _ domain.Scope, since time.Time, strictness domain.Strictness, limit int) ([]domain.ClaimCandidate, error) {
	var out []domain.ClaimCandidate
	for _, cl := range f.claims {
		if cl.UpdatedAt.Before(since) || !passesStrictness(cl, strictness) {
			continue
		}
		out = append(out, cl)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeGraph) ConceptDetails(_ context.Context, _ domain.Scope, nodeIDs []string, _ domain.ProposedPolicy) ([]domain.ConceptDetail, error) {
	var out []domain.ConceptDetail
	for _, id := range nodeIDs {
		if d, ok := f.details[id]; ok {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].NodeID < out[b].NodeID })
	return out, nil
}

func (f *fakeGraph) EdgesAmong(_ context.Context, _ domain.Scope, nodeIDs []string, _ domain.ProposedPolicy, limit int) ([]domain.Edge, error) {
	inSet := map[string]bool{}
	for _, id := range nodeIDs {
		inSet[id] = true
	}
	var out []domain.Edge
	for _, e := range f.edges {
		if inSet[e.SourceID] && inSet[e.TargetID] {
			out = append(out, e)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeGraph) ConceptNeighbors(_ context.Context, _ domain.Scope, nodeID string, _ domain.ProposedPolicy, limit int) ([]domain.Edge, error) {
	var out []domain.Edge
	for _, e := range f.edges {
		if e.SourceID == nodeID || e.TargetID == nodeID {
			out = append(out, e)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeGraph) ShortestPathEdges(_ context.Context, _ domain.Scope, srcID, dstID string, _ int, _ domain.ProposedPolicy) ([]domain.Edge, error) {
	if edges, ok := f.pathEdges[srcID+"->"+dstID]; ok {
		return edges, nil
	}
	return nil, nil
}

func (f *fakeGraph) ChunksByIDs(_ context.Context, _ domain.Scope, chunkIDs []string) ([]domain.SourceChunk, error) {
	var out []domain.SourceChunk
	for _, id := range chunkIDs {
		if ch, ok := f.chunks[id]; ok {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (f *fakeGraph) QuotesByIDs(_ context.Context, _ domain.Scope, quoteIDs []string) ([]domain.Quote, error) {
	var out []domain.Quote
	for _, id := range quoteIDs {
		if q, ok := f.quotes[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeGraph) SourceIDForURL(_ context.Context, _ domain.Scope, url string) (string, error) {
	return f.sourceURLs[url], nil
}

// fakeEmbedder hashes each input into a small deterministic vector.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		vec := make([]float32, 4)
		for j, r := range in {
			vec[j%4] += float32(r%13) / 13
		}
		out[i] = vec
	}
	return out, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger.New: err=%v", err)
	}
	return log
}

func newTestEngine(t *testing.T, graph *fakeGraph) *Engine {
	t.Helper()
	return NewEngine(graph, fakeEmbedder{}, testLogger(t), nil, cache.NewTTL[[]float32](time.Minute, 100))
}

func testScope() domain.Scope {
	return domain.Scope{TenantID: "t1", GraphID: "g1", BranchID: domain.MainBranch}
}
