package retrieval

import (
	"context"
	"strings"

	"github.com/mindfold/mindfold-backend/internal/domain"
)

const twoEntityScoreFloor = 0.35

// anchorResult is the outcome of anchor detection over a question.
type anchorResult struct {
	AnchorIDs   []string
	IsTwoEntity bool
	Hits        []domain.ConceptHit
}

// extractQuoted returns the quoted substrings of a question in order of
// appearance. Both straight and curly double quotes count.
func extractQuoted(s string) []string {
	replacer := strings.NewReplacer("“", `"`, "”", `"`)
	s = replacer.Replace(s)
	var out []string
	for {
		start := strings.Index(s, `"`)
		if start < 0 {
			break
		}
		rest := s[start+1:]
		end := strings.Index(rest, `"`)
		if end < 0 {
			break
		}
		if q := strings.TrimSpace(rest[:end]); q != "" {
			out = append(out, q)
		}
		s = rest[end+1:]
	}
	return out
}

// detectAnchors resolves the question's anchor concepts. Quoted substrings
// are matched against the top semantic hits by containment, preserving quote
// order; otherwise the top hits themselves anchor. Two high-scoring distinct
// hits flag a two-entity question, which narrows the anchor count.
func (e *Engine) detectAnchors(ctx context.Context, scope domain.Scope, question string) (anchorResult, error) {
	hits, _, err := e.index.SearchConcepts(ctx, scope, question, 10)
	if err != nil {
		return anchorResult{}, err
	}
	strong := 0
	for _, h := range hits {
		if h.Score > twoEntityScoreFloor {
			strong++
		}
	}
	res := anchorResult{IsTwoEntity: strong >= 2, Hits: hits}
	wanted := 3
	if res.IsTwoEntity {
		wanted = 2
	}

	if quoted := extractQuoted(question); len(quoted) > 0 {
		seen := map[string]bool{}
		for _, q := range quoted {
			lower := strings.ToLower(q)
			for _, h := range hits {
				if seen[h.NodeID] {
					continue
				}
				if strings.Contains(strings.ToLower(h.Name), lower) || strings.Contains(lower, strings.ToLower(h.Name)) {
					res.AnchorIDs = append(res.AnchorIDs, h.NodeID)
					seen[h.NodeID] = true
					break
				}
			}
		}
	}
	if len(res.AnchorIDs) == 0 {
		for _, h := range hits {
			if len(res.AnchorIDs) >= wanted {
				break
			}
			if h.Score > 0 {
				res.AnchorIDs = append(res.AnchorIDs, h.NodeID)
			}
		}
	} else if len(res.AnchorIDs) > wanted {
		res.AnchorIDs = res.AnchorIDs[:wanted]
	}
	return res, nil
}
