package graph

import (
	"context"
	"fmt"

	"github.com/mindfold/mindfold-backend/internal/domain"
	apperrors "github.com/mindfold/mindfold-backend/internal/pkg/errors"
)

// Overview is the graph-at-a-glance projection: the best-connected concepts
// plus every isolated one.
type Overview struct {
	Concepts []domain.ConceptDetail `json:"concepts"`
	Isolated []domain.ConceptDetail `json:"isolated"`
	Edges    []domain.Edge          `json:"edges"`
}

// GraphOverview returns top-degree connected concepts (degree desc, node_id
// asc tiebreak) and, separately, all isolated concepts on the active branch.
// Isolated nodes are never dropped, however sparse the graph.
func (s *Store) GraphOverview(ctx context.Context, scope domain.Scope, limitNodes, limitEdges int, policy domain.ProposedPolicy) (*Overview, error) {
	if !s.Available() {
		return nil, fmt.Errorf("graph overview: %w", apperrors.ErrProviderUnavailable)
	}
	if limitNodes <= 0 || limitNodes > 200 {
		limitNodes = 50
	}
	if limitEdges <= 0 || limitEdges > 500 {
		limitEdges = 100
	}
	visibility, extra := s.edgeVisibility("e", policy)
	params := mergeParams(scopeParams(scope), map[string]any{"limit_nodes": limitNodes})
	params = mergeParams(params, extra)

	connected, err := s.client.ExecuteRead(ctx, fmt.Sprintf(`
MATCH (gs:GraphSpace {graph_id: $graph_id, tenant_id: $tenant_id})-[:CONTAINS]->(c:Concept)
WHERE $branch_id IN c.on_branches
  AND COALESCE(c.is_merged, false) = false
  AND COALESCE(c.archived, false) = false
OPTIONAL MATCH (c)-[e:CONCEPT_EDGE]-(other:Concept)
WHERE $branch_id IN other.on_branches
  AND COALESCE(other.is_merged, false) = false
  AND %s
WITH c, count(e) AS degree
WHERE degree > 0
RETURN c.node_id AS node_id, c.name AS name, c.description AS description,
       c.tags AS tags, c.domain AS domain, degree
ORDER BY degree DESC, node_id ASC
LIMIT $limit_nodes
`, visibility), params)
	if err != nil {
		return nil, fmt.Errorf("graph overview: %w", err)
	}

	isolated, err := s.client.ExecuteRead(ctx, fmt.Sprintf(`
MATCH (gs:GraphSpace {graph_id: $graph_id, tenant_id: $tenant_id})-[:CONTAINS]->(c:Concept)
WHERE $branch_id IN c.on_branches
  AND COALESCE(c.is_merged, false) = false
  AND COALESCE(c.archived, false) = false
OPTIONAL MATCH (c)-[e:CONCEPT_EDGE]-(other:Concept)
WHERE $branch_id IN other.on_branches
  AND COALESCE(other.is_merged, false) = false
  AND %s
WITH c, count(e) AS degree
WHERE degree = 0
RETURN c.node_id AS node_id, c.name AS name, c.description AS description,
       c.tags AS tags, c.domain AS domain, degree
ORDER BY node_id ASC
`, visibility), params)
	if err != nil {
		return nil, fmt.Errorf("graph overview isolated: %w", err)
	}

	out := &Overview{
		Concepts: detailsFromRecords(connected),
		Isolated: detailsFromRecords(isolated),
	}
	nodeIDs := make([]string, 0, len(out.Concepts))
	for _, c := range out.Concepts {
		nodeIDs = append(nodeIDs, c.NodeID)
	}
	if len(nodeIDs) >= 2 {
		edges, err := s.EdgesAmong(ctx, scope, nodeIDs, policy, limitEdges)
		if err != nil {
			return nil, fmt.Errorf("graph overview edges: %w", err)
		}
		out.Edges = edges
	}
	return out, nil
}

func detailsFromRecords(records []map[string]any) []domain.ConceptDetail {
	out := make([]domain.ConceptDetail, 0, len(records))
	for _, rec := range records {
		out = append(out, domain.ConceptDetail{
			NodeID:      asString(rec["node_id"]),
			Name:        asString(rec["name"]),
			Description: asString(rec["description"]),
			Tags:        asStringList(rec["tags"]),
			Domain:      asString(rec["domain"]),
			Degree:      asInt(rec["degree"]),
		})
	}
	return out
}
