package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mindfold/mindfold-backend/internal/domain"
	apperrors "github.com/mindfold/mindfold-backend/internal/pkg/errors"
)

// MergeRelationships writes a batch of proposed or accepted edges in one
// transaction. Edges below the proposal confidence floor are dropped before
// the write; auto-acceptance is decided per row from predicate and confidence.
func (s *Store) MergeRelationships(ctx context.Context, scope domain.Scope, runID string, rels []domain.Relationship) (int, error) {
	if !s.Available() {
		return 0, fmt.Errorf("merge relationships: %w", apperrors.ErrProviderUnavailable)
	}
	rows := make([]map[string]any, 0, len(rels))
	for _, rel := range rels {
		predicate := strings.ToUpper(strings.TrimSpace(rel.Predicate))
		if predicate == "" || rel.SourceID == "" || rel.TargetID == "" || rel.SourceID == rel.TargetID {
			continue
		}
		status := rel.Status
		if status == "" {
			status = domain.RelProposed
			if rel.Confidence >= domain.AutoAcceptConfidence && domain.AutoAcceptPredicates[predicate] {
				status = domain.RelAccepted
			}
		}
		if status == domain.RelProposed && rel.Confidence < domain.MinProposedConfidence {
			continue
		}
		rows = append(rows, map[string]any{
			"source_id":  rel.SourceID,
			"target_id":  rel.TargetID,
			"predicate":  predicate,
			"status":     string(status),
			"confidence": rel.Confidence,
			"method":     rel.Method,
			"source_ref": rel.SourceRef,
			"chunk_id":   rel.ChunkID,
			"claim_id":   rel.ClaimID,
			"rationale":  rel.Rationale,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	params := mergeParams(scopeParams(scope), map[string]any{
		"rows":   rows,
		"run_id": runID,
		"now":    now,
	})
	records, err := s.client.ExecuteWriteReturning(ctx, `
UNWIND $rows AS row
MATCH (src:Concept {node_id: row.source_id, graph_id: $graph_id})
MATCH (dst:Concept {node_id: row.target_id, graph_id: $graph_id})
MERGE (src)-[e:CONCEPT_EDGE {predicate: row.predicate}]->(dst)
ON CREATE SET e.status = row.status,
              e.confidence = row.confidence,
              e.method = row.method,
              e.source_ref = row.source_ref,
              e.chunk_id = row.chunk_id,
              e.claim_id = row.claim_id,
              e.rationale = row.rationale,
              e.ingestion_run_id = $run_id,
              e.on_branches = [$branch_id],
              e.created_at = $now,
              e.updated_at = $now
ON MATCH SET  e.confidence = CASE WHEN row.confidence > e.confidence THEN row.confidence ELSE e.confidence END,
              e.status = CASE WHEN e.status = 'REJECTED' THEN e.status
                              WHEN row.status = 'ACCEPTED' THEN 'ACCEPTED'
                              ELSE e.status END,
              e.on_branches = CASE WHEN $branch_id IN coalesce(e.on_branches, [])
                                   THEN e.on_branches ELSE coalesce(e.on_branches, []) + $branch_id END,
              e.updated_at = $now
RETURN count(e) AS written
`, params)
	if err != nil {
		return 0, fmt.Errorf("merge relationships: %w", err)
	}
	written := 0
	if len(records) > 0 {
		written = asInt(records[0]["written"])
	}
	return written, nil
}

// reviewRelationships flips the status of each addressed edge. Idempotent:
// re-reviewing an edge only refreshes the timestamp and reviewer.
func (s *Store) reviewRelationships(ctx context.Context, scope domain.Scope, triples []domain.RelTriple, status domain.RelStatus, reviewedBy string) (int, error) {
	if !s.Available() {
		return 0, fmt.Errorf("review relationships: %w", apperrors.ErrProviderUnavailable)
	}
	rows := make([]map[string]any, 0, len(triples))
	for _, tr := range triples {
		if tr.SourceID == "" || tr.TargetID == "" || tr.Predicate == "" {
			continue
		}
		rows = append(rows, map[string]any{
			"source_id": tr.SourceID,
			"target_id": tr.TargetID,
			"predicate": strings.ToUpper(strings.TrimSpace(tr.Predicate)),
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	params := mergeParams(scopeParams(scope), map[string]any{
		"rows":        rows,
		"status":      string(status),
		"reviewed_by": reviewedBy,
		"now":         now,
	})
	records, err := s.client.ExecuteWriteReturning(ctx, `
UNWIND $rows AS row
MATCH (src:Concept {node_id: row.source_id, graph_id: $graph_id})-[e:CONCEPT_EDGE {predicate: row.predicate}]->(dst:Concept {node_id: row.target_id, graph_id: $graph_id})
WHERE $branch_id IN e.on_branches
SET e.status = $status,
    e.reviewed_by = $reviewed_by,
    e.reviewed_at = $now,
    e.updated_at = $now
RETURN count(e) AS updated
`, params)
	if err != nil {
		return 0, fmt.Errorf("review relationships: %w", err)
	}
	updated := 0
	if len(records) > 0 {
		updated = asInt(records[0]["updated"])
	}
	return updated, nil
}

func (s *Store) AcceptRelationships(ctx context.Context, scope domain.Scope, triples []domain.RelTriple, reviewedBy string) (int, error) {
	return s.reviewRelationships(ctx, scope, triples, domain.RelAccepted, reviewedBy)
}

func (s *Store) RejectRelationships(ctx context.Context, scope domain.Scope, triples []domain.RelTriple, reviewedBy string) (int, error) {
	return s.reviewRelationships(ctx, scope, triples, domain.RelRejected, reviewedBy)
}

// EditRelationship rejects the old edge and creates an accepted replacement
// with a different predicate, recording what it supersedes.
func (s *Store) EditRelationship(ctx context.Context, scope domain.Scope, old domain.RelTriple, newPredicate, reviewedBy string) error {
	if !s.Available() {
		return fmt.Errorf("edit relationship: %w", apperrors.ErrProviderUnavailable)
	}
	newPredicate = strings.ToUpper(strings.TrimSpace(newPredicate))
	oldPredicate := strings.ToUpper(strings.TrimSpace(old.Predicate))
	if newPredicate == "" || newPredicate == oldPredicate {
		return fmt.Errorf("edit relationship: %w", apperrors.ErrInvalidArgument)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	params := mergeParams(scopeParams(scope), map[string]any{
		"source_id":     old.SourceID,
		"target_id":     old.TargetID,
		"old_predicate": oldPredicate,
		"new_predicate": newPredicate,
		"reviewed_by":   reviewedBy,
		"now":           now,
	})
	rows, err := s.client.ExecuteWriteReturning(ctx, `
MATCH (src:Concept {node_id: $source_id, graph_id: $graph_id})-[e:CONCEPT_EDGE {predicate: $old_predicate}]->(dst:Concept {node_id: $target_id, graph_id: $graph_id})
WHERE $branch_id IN e.on_branches
SET e.status = 'REJECTED', e.reviewed_by = $reviewed_by, e.reviewed_at = $now, e.updated_at = $now
WITH src, dst, e
MERGE (src)-[n:CONCEPT_EDGE {predicate: $new_predicate}]->(dst)
ON CREATE SET n.confidence = e.confidence,
              n.method = 'human_edit',
              n.on_branches = e.on_branches,
              n.created_at = $now
SET n.status = 'ACCEPTED',
    n.supersedes_rel_type = $old_predicate,
    n.reviewed_by = $reviewed_by,
    n.reviewed_at = $now,
    n.updated_at = $now
RETURN n.predicate AS predicate
`, params)
	if err != nil {
		return fmt.Errorf("edit relationship: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("edit relationship: %w", apperrors.ErrNotFound)
	}
	return nil
}

// ListProposedRelationships returns the review queue, lowest confidence last.
func (s *Store) ListProposedRelationships(ctx context.Context, scope domain.Scope, limit int) ([]domain.Relationship, error) {
	if !s.Available() {
		return nil, fmt.Errorf("list proposed relationships: %w", apperrors.ErrProviderUnavailable)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	params := mergeParams(scopeParams(scope), map[string]any{"limit": limit})
	records, err := s.client.ExecuteRead(ctx, `
MATCH (src:Concept {graph_id: $graph_id})-[e:CONCEPT_EDGE {status: 'PROPOSED'}]->(dst:Concept {graph_id: $graph_id})
WHERE $branch_id IN src.on_branches AND $branch_id IN dst.on_branches
  AND $branch_id IN e.on_branches
  AND COALESCE(src.is_merged, false) = false
  AND COALESCE(dst.is_merged, false) = false
RETURN src.node_id AS source_id, dst.node_id AS target_id, e.predicate AS predicate,
       e.confidence AS confidence, e.method AS method, e.rationale AS rationale,
       e.chunk_id AS chunk_id, e.claim_id AS claim_id
ORDER BY e.confidence DESC, source_id ASC, target_id ASC, predicate ASC
LIMIT $limit
`, params)
	if err != nil {
		return nil, fmt.Errorf("list proposed relationships: %w", err)
	}
	out := make([]domain.Relationship, 0, len(records))
	for _, rec := range records {
		out = append(out, domain.Relationship{
			SourceID:   asString(rec["source_id"]),
			TargetID:   asString(rec["target_id"]),
			Predicate:  asString(rec["predicate"]),
			Status:     domain.RelProposed,
			Confidence: asFloat(rec["confidence"]),
			Method:     asString(rec["method"]),
			Rationale:  asString(rec["rationale"]),
			ChunkID:    asString(rec["chunk_id"]),
			ClaimID:    asString(rec["claim_id"]),
		})
	}
	return out, nil
}

// EdgesAmong returns visible edges whose endpoints are both in the node set,
// ordered deterministically.
func (s *Store) EdgesAmong(ctx context.Context, scope domain.Scope, nodeIDs []string, policy domain.ProposedPolicy, limit int) ([]domain.Edge, error) {
	if !s.Available() {
		return nil, fmt.Errorf("edges among: %w", apperrors.ErrProviderUnavailable)
	}
	if len(nodeIDs) < 2 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	visibility, extra := s.edgeVisibility("e", policy)
	params := mergeParams(scopeParams(scope), map[string]any{"node_ids": nodeIDs, "limit": limit})
	params = mergeParams(params, extra)
	records, err := s.client.ExecuteRead(ctx, fmt.Sprintf(`
MATCH (src:Concept {graph_id: $graph_id})-[e:CONCEPT_EDGE]->(dst:Concept {graph_id: $graph_id})
WHERE src.node_id IN $node_ids AND dst.node_id IN $node_ids
  AND $branch_id IN src.on_branches AND $branch_id IN dst.on_branches
  AND COALESCE(src.is_merged, false) = false
  AND COALESCE(dst.is_merged, false) = false
  AND %s
RETURN src.node_id AS source_id, dst.node_id AS target_id, e.predicate AS predicate,
       e.status AS status, e.confidence AS confidence
ORDER BY source_id ASC, target_id ASC, predicate ASC
LIMIT $limit
`, visibility), params)
	if err != nil {
		return nil, fmt.Errorf("edges among: %w", err)
	}
	return edgesFromRecords(records), nil
}

// ConceptNeighbors returns one-hop neighbors of a node over visible edges.
func (s *Store) ConceptNeighbors(ctx context.Context, scope domain.Scope, nodeID string, policy domain.ProposedPolicy, limit int) ([]domain.Edge, error) {
	if !s.Available() {
		return nil, fmt.Errorf("concept neighbors: %w", apperrors.ErrProviderUnavailable)
	}
	if limit <= 0 {
		limit = 50
	}
	visibility, extra := s.edgeVisibility("e", policy)
	params := mergeParams(scopeParams(scope), map[string]any{"node_id": nodeID, "limit": limit})
	params = mergeParams(params, extra)
	records, err := s.client.ExecuteRead(ctx, fmt.Sprintf(`
MATCH (c:Concept {node_id: $node_id, graph_id: $graph_id})-[e:CONCEPT_EDGE]-(other:Concept {graph_id: $graph_id})
WHERE $branch_id IN c.on_branches AND $branch_id IN other.on_branches
  AND COALESCE(c.is_merged, false) = false
  AND COALESCE(other.is_merged, false) = false
  AND %s
WITH startNode(e) AS src, endNode(e) AS dst, e
RETURN src.node_id AS source_id, dst.node_id AS target_id, e.predicate AS predicate,
       e.status AS status, e.confidence AS confidence
ORDER BY source_id ASC, target_id ASC, predicate ASC
LIMIT $limit
`, visibility), params)
	if err != nil {
		return nil, fmt.Errorf("concept neighbors: %w", err)
	}
	return edgesFromRecords(records), nil
}

func edgesFromRecords(records []map[string]any) []domain.Edge {
	out := make([]domain.Edge, 0, len(records))
	for _, rec := range records {
		out = append(out, domain.Edge{
			SourceID:   asString(rec["source_id"]),
			TargetID:   asString(rec["target_id"]),
			Predicate:  asString(rec["predicate"]),
			Status:     asString(rec["status"]),
			Confidence: asFloat(rec["confidence"]),
		})
	}
	return out
}
