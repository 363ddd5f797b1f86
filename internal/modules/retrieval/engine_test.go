package retrieval

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/mindfold/mindfold-backend/internal/domain"
)

func populatedGraph() *fakeGraph {
	g := &fakeGraph{
		details:   map[string]domain.ConceptDetail{},
		chunks:    map[string]domain.SourceChunk{},
		pathEdges: map[string][]domain.Edge{},
	}
	for i := 0; i < 10; i++ {
		g.communities = append(g.communities, domain.Community{
			CommunityID:      fmt.Sprintf("COMM_%02d", i),
			Name:             fmt.Sprintf("community %d", i),
			Summary:          fmt.Sprintf("summary of cluster %d", i),
			SummaryEmbedding: []float32{float32(i) / 10, 1 - float32(i)/10, 0.5, 0.2},
		})
	}
	for i := 0; i < 15; i++ {
		id := fmt.Sprintf("CONCEPT_%02d", i)
		g.concepts = append(g.concepts, domain.ConceptLite{
			NodeID:    id,
			Name:      fmt.Sprintf("concept %d", i),
			Embedding: []float32{1 - float32(i)/15, float32(i) / 15, 0.3, 0.1},
		})
		g.details[id] = domain.ConceptDetail{NodeID: id, Name: fmt.Sprintf("concept %d", i), Degree: i % 4}
	}
	for i := 0; i < 20; i++ {
		status := domain.ClaimProposed
		if i%2 == 0 {
			status = domain.ClaimVerified
		}
		g.claims = append(g.claims, domain.ClaimCandidate{
			ClaimID:        fmt.Sprintf("CLAIM_%02d", i),
			Text:           fmt.Sprintf("claim number %d about concept %d", i, i%15),
			Confidence:     0.5 + float64(i%5)/10,
			Status:         status,
			SourceID:       fmt.Sprintf("src_%d", i%3),
			ChunkID:        fmt.Sprintf("CHUNK_%02d", i),
			Embedding:      []float32{float32(i) / 20, 1 - float32(i)/20, 0.4, 0.3},
			MentionNodeIDs: []string{fmt.Sprintf("CONCEPT_%02d", i%15)},
			CommunityID:    fmt.Sprintf("COMM_%02d", i%10),
		})
		g.chunks[fmt.Sprintf("CHUNK_%02d", i)] = domain.SourceChunk{
			ChunkID: fmt.Sprintf("CHUNK_%02d", i), SourceID: fmt.Sprintf("src_%d", i%3),
			ChunkIndex: i, Text: fmt.Sprintf("chunk text %d", i),
		}
	}
	for i := 0; i < 14; i++ {
		g.edges = append(g.edges, domain.Edge{
			SourceID:   fmt.Sprintf("CONCEPT_%02d", i),
			TargetID:   fmt.Sprintf("CONCEPT_%02d", i+1),
			Predicate:  "RELATED_TO",
			Status:     "ACCEPTED",
			Confidence: 0.9,
		})
	}
	return g
}

func TestRetrieveEmptyStoreReturnsNoEvidenceBundle(t *testing.T) {
	eng := newTestEngine(t, &fakeGraph{
		details: map[string]domain.ConceptDetail{},
		chunks:  map[string]domain.SourceChunk{},
	})
	bundle, _, selected, err := eng.Retrieve(context.Background(), testScope(), "What is machine learning?", Options{})
	if err != nil {
		t.Fatalf("Retrieve: err=%v", err)
	}
	if bundle.HasEvidence {
		t.Fatalf("Retrieve: HasEvidence=true on empty store")
	}
	if bundle.Debug.Reason != "no_claims_found" {
		t.Fatalf("Retrieve: reason=%q want=no_claims_found", bundle.Debug.Reason)
	}
	if len(selected) != 0 {
		t.Fatalf("Retrieve: selected=%d want=0", len(selected))
	}
}

func TestRetrieveStrictnessFiltersClaims(t *testing.T) {
	g := populatedGraph()
	eng := newTestEngine(t, g)

	high, _, _, err := eng.Retrieve(context.Background(), testScope(), "claims", Options{Strictness: domain.StrictnessHigh})
	if err != nil {
		t.Fatalf("Retrieve high: err=%v", err)
	}
	for _, cl := range high.Claims {
		if cl.Status != string(domain.ClaimVerified) {
			t.Fatalf("high strictness leaked status=%s", cl.Status)
		}
	}

	low, _, _, err := eng.Retrieve(context.Background(), testScope(), "claims", Options{Strictness: domain.StrictnessLow})
	if err != nil {
		t.Fatalf("Retrieve low: err=%v", err)
	}
	if len(low.Claims) <= len(high.Claims) {
		t.Fatalf("low strictness should widen: low=%d high=%d", len(low.Claims), len(high.Claims))
	}
}

func TestRetrieveDeterministicOrdering(t *testing.T) {
	g := populatedGraph()
	eng := newTestEngine(t, g)

	claimIDs := func() []string {
		bundle, _, _, err := eng.Retrieve(context.Background(), testScope(), "what links these concepts", Options{})
		if err != nil {
			t.Fatalf("Retrieve: err=%v", err)
		}
		ids := make([]string, 0, len(bundle.Claims))
		for _, cl := range bundle.Claims {
			ids = append(ids, cl.ClaimID)
		}
		return ids
	}
	first := claimIDs()
	if len(first) == 0 {
		t.Fatalf("Retrieve: no claims selected")
	}
	for i := 0; i < 5; i++ {
		if got := claimIDs(); !reflect.DeepEqual(got, first) {
			t.Fatalf("Retrieve: run %d diverged: got=%v want=%v", i, got, first)
		}
	}
}

func TestRetrieveCapsSelectedClaims(t *testing.T) {
	g := populatedGraph()
	eng := newTestEngine(t, g)
	bundle, _, _, err := eng.Retrieve(context.Background(), testScope(), "everything", Options{
		CommunityK:         10,
		ClaimsPerCommunity: 50,
		Strictness:         domain.StrictnessLow,
	})
	if err != nil {
		t.Fatalf("Retrieve: err=%v", err)
	}
	if len(bundle.Claims) > 40 {
		t.Fatalf("Retrieve: selected=%d exceeds 40", len(bundle.Claims))
	}
}

func TestEvidenceSubgraphRespectsCustomLimits(t *testing.T) {
	g := populatedGraph()
	eng := newTestEngine(t, g)
	sub, err := eng.EvidenceSubgraph(context.Background(), testScope(),
		[]string{"CLAIM_00", "CLAIM_01", "CLAIM_02"}, 3, 4, domain.ProposedAuto)
	if err != nil {
		t.Fatalf("EvidenceSubgraph: err=%v", err)
	}
	if len(sub.Concepts) > 3 {
		t.Fatalf("EvidenceSubgraph: concepts=%d want<=3", len(sub.Concepts))
	}
	if len(sub.Edges) > 4 {
		t.Fatalf("EvidenceSubgraph: edges=%d want<=4", len(sub.Edges))
	}

	// Repeated call keeps node order.
	again, err := eng.EvidenceSubgraph(context.Background(), testScope(),
		[]string{"CLAIM_00", "CLAIM_01", "CLAIM_02"}, 3, 4, domain.ProposedAuto)
	if err != nil {
		t.Fatalf("EvidenceSubgraph repeat: err=%v", err)
	}
	if !reflect.DeepEqual(sub.Concepts, again.Concepts) {
		t.Fatalf("EvidenceSubgraph: node order diverged")
	}
}

func TestEvidenceSubgraphClampsToHardMax(t *testing.T) {
	g := populatedGraph()
	eng := newTestEngine(t, g)
	sub, err := eng.EvidenceSubgraph(context.Background(), testScope(),
		[]string{"CLAIM_00"}, 500, 500, domain.ProposedAuto)
	if err != nil {
		t.Fatalf("EvidenceSubgraph: err=%v", err)
	}
	if len(sub.Concepts) > hardMaxConcepts || len(sub.Edges) > hardMaxEdges {
		t.Fatalf("EvidenceSubgraph: caps not clamped: concepts=%d edges=%d", len(sub.Concepts), len(sub.Edges))
	}
}
