package retrieval

import (
	"math"
	"testing"

	"github.com/mindfold/mindfold-backend/internal/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScoreClaimBlendsSimilarityAndConfidence(t *testing.T) {
	qVec := []float32{1, 0}
	claim := domain.ClaimCandidate{
		Confidence: 0.8,
		Embedding:  []float32{1, 0},
	}
	got := scoreClaim(qVec, claim, nil, false)
	want := 0.75*1.0 + 0.25*0.8
	if !almostEqual(got, want) {
		t.Fatalf("scoreClaim: got=%v want=%v", got, want)
	}
}

func TestScoreClaimWithoutVectorUsesConfidenceOnly(t *testing.T) {
	claim := domain.ClaimCandidate{Confidence: 0.6}
	got := scoreClaim(nil, claim, nil, false)
	if !almostEqual(got, 0.25*0.6) {
		t.Fatalf("scoreClaim: got=%v want=%v", got, 0.25*0.6)
	}
}

func TestScoreClaimAnchorBoostCapped(t *testing.T) {
	claim := domain.ClaimCandidate{
		Confidence:     0.4,
		MentionNodeIDs: []string{"a", "b", "c"},
	}
	anchors := []string{"a", "b", "c"}
	base := 0.25 * 0.4
	got := scoreClaim(nil, claim, anchors, true)
	// Three hits would give 0.30 uncapped; cap holds it at 0.20.
	if !almostEqual(got, base+0.20) {
		t.Fatalf("scoreClaim boost: got=%v want=%v", got, base+0.20)
	}
}

func TestScoreClaimNoBoostWhenNotTwoEntity(t *testing.T) {
	claim := domain.ClaimCandidate{
		Confidence:     0.4,
		MentionNodeIDs: []string{"a"},
	}
	got := scoreClaim(nil, claim, []string{"a"}, false)
	if !almostEqual(got, 0.25*0.4) {
		t.Fatalf("scoreClaim: got=%v want=%v", got, 0.25*0.4)
	}
}

func TestCosineEdgeCases(t *testing.T) {
	if got := cosine(nil, []float32{1}); got != 0 {
		t.Fatalf("cosine(nil, x): got=%v", got)
	}
	if got := cosine([]float32{1, 0}, []float32{1}); got != 0 {
		t.Fatalf("cosine mismatched lengths: got=%v", got)
	}
	if got := cosine([]float32{1, 0}, []float32{1, 0}); !almostEqual(got, 1) {
		t.Fatalf("cosine identical: got=%v", got)
	}
	if got := cosine([]float32{1, 0}, []float32{0, 1}); !almostEqual(got, 0) {
		t.Fatalf("cosine orthogonal: got=%v", got)
	}
}
