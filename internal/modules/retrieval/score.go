package retrieval

import "github.com/mindfold/mindfold-backend/internal/domain"

const (
	simWeight        = 0.75
	confidenceWeight = 0.25
	anchorBoostStep  = 0.10
	anchorBoostCap   = 0.20
)

// scoreClaim computes the relevance of one candidate claim against the
// question. The anchor boost applies only in two-entity questions, rewarding
// claims that mention the detected anchors.
func scoreClaim(qVec []float32, claim domain.ClaimCandidate, anchorIDs []string, isTwoEntity bool) float64 {
	simQ := 0.0
	if len(qVec) > 0 && len(claim.Embedding) > 0 {
		simQ = cosine(qVec, claim.Embedding)
	}
	score := simWeight*simQ + confidenceWeight*claim.Confidence
	if isTwoEntity && len(anchorIDs) > 0 {
		hits := 0
		for _, a := range anchorIDs {
			for _, m := range claim.MentionNodeIDs {
				if a == m {
					hits++
					break
				}
			}
		}
		boost := anchorBoostStep * float64(hits)
		if boost > anchorBoostCap {
			boost = anchorBoostCap
		}
		score += boost
	}
	return score
}
