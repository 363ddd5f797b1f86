package retrieval

import (
	"context"
	"sort"

	"github.com/mindfold/mindfold-backend/internal/domain"
)

const (
	defaultSubgraphConcepts = 10
	defaultSubgraphEdges    = 15
	hardMaxConcepts         = 50
	hardMaxEdges            = 80
)

// EvidenceSubgraph builds the standalone claim-evidence slice: concepts the
// claims mention, their 1-hop neighbors subject to visibility, and the edges
// among the collected set. Callers may lower the caps but never raise them
// past the hard maximums.
func (e *Engine) EvidenceSubgraph(ctx context.Context, scope domain.Scope, claimIDs []string, limitNodes, limitEdges int, policy domain.ProposedPolicy) (*domain.Subgraph, error) {
	if limitNodes <= 0 {
		limitNodes = defaultSubgraphConcepts
	}
	if limitNodes > hardMaxConcepts {
		limitNodes = hardMaxConcepts
	}
	if limitEdges <= 0 {
		limitEdges = defaultSubgraphEdges
	}
	if limitEdges > hardMaxEdges {
		limitEdges = hardMaxEdges
	}
	if policy == "" {
		policy = domain.ProposedAuto
	}

	claims, err := e.graph.ClaimsByIDs(ctx, scope, claimIDs)
	if err != nil {
		return nil, err
	}
	mentionCount := map[string]int{}
	for _, cl := range claims {
		for _, id := range cl.MentionNodeIDs {
			mentionCount[id]++
		}
	}
	seeds := rankByCount(mentionCount, limitNodes)

	nodeSet := map[string]bool{}
	for _, id := range seeds {
		nodeSet[id] = true
	}
	for _, seed := range seeds {
		if len(nodeSet) >= limitNodes {
			break
		}
		neighbors, err := e.graph.ConceptNeighbors(ctx, scope, seed, policy, limitEdges)
		if err != nil {
			return nil, err
		}
		for _, edge := range neighbors {
			if len(nodeSet) >= limitNodes {
				break
			}
			nodeSet[edge.SourceID] = true
			nodeSet[edge.TargetID] = true
		}
	}

	nodeIDs := make([]string, 0, len(nodeSet))
	for id := range nodeSet {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Strings(nodeIDs)
	if len(nodeIDs) > limitNodes {
		nodeIDs = nodeIDs[:limitNodes]
	}

	details, err := e.graph.ConceptDetails(ctx, scope, nodeIDs, policy)
	if err != nil {
		return nil, err
	}
	edges, err := e.graph.EdgesAmong(ctx, scope, nodeIDs, policy, limitEdges)
	if err != nil {
		return nil, err
	}
	if len(edges) > limitEdges {
		edges = edges[:limitEdges]
	}
	return &domain.Subgraph{Concepts: details, Edges: edges}, nil
}
