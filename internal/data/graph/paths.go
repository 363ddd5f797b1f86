package graph

import (
	"context"
	"fmt"

	"github.com/mindfold/mindfold-backend/internal/domain"
	apperrors "github.com/mindfold/mindfold-backend/internal/pkg/errors"
)

// ShortestPathEdges returns the unique directed edges on a shortest path
// between two concepts within the hop budget, skipping merged nodes and
// edges the visibility policy hides. Empty when the endpoints coincide or no
// path exists.
func (s *Store) ShortestPathEdges(ctx context.Context, scope domain.Scope, srcID, dstID string, maxHops int, policy domain.ProposedPolicy) ([]domain.Edge, error) {
	if !s.Available() {
		return nil, fmt.Errorf("shortest path: %w", apperrors.ErrProviderUnavailable)
	}
	if srcID == "" || dstID == "" || srcID == dstID {
		return nil, nil
	}
	if maxHops <= 0 || maxHops > 6 {
		maxHops = 4
	}
	visibility, extra := s.edgeVisibility("rel", policy)
	params := mergeParams(scopeParams(scope), map[string]any{
		"src_id": srcID,
		"dst_id": dstID,
	})
	params = mergeParams(params, extra)
	records, err := s.client.ExecuteRead(ctx, fmt.Sprintf(`
MATCH (src:Concept {node_id: $src_id, graph_id: $graph_id})
MATCH (dst:Concept {node_id: $dst_id, graph_id: $graph_id})
WHERE $branch_id IN src.on_branches AND $branch_id IN dst.on_branches
MATCH p = shortestPath((src)-[:CONCEPT_EDGE*1..%d]-(dst))
WHERE all(n IN nodes(p) WHERE $branch_id IN n.on_branches AND COALESCE(n.is_merged, false) = false)
  AND all(rel IN relationships(p) WHERE %s)
UNWIND relationships(p) AS rel
WITH DISTINCT startNode(rel) AS a, endNode(rel) AS b, rel
RETURN a.node_id AS source_id, b.node_id AS target_id, rel.predicate AS predicate,
       rel.status AS status, rel.confidence AS confidence
ORDER BY source_id ASC, target_id ASC, predicate ASC
`, maxHops, visibility), params)
	if err != nil {
		return nil, fmt.Errorf("shortest path: %w", err)
	}
	return edgesFromRecords(records), nil
}
