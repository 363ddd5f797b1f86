package graph

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/mindfold/mindfold-backend/internal/domain"
	apperrors "github.com/mindfold/mindfold-backend/internal/pkg/errors"
	"github.com/mindfold/mindfold-backend/internal/platform/neo4jdb"
)

// conceptNodeID derives the stable node id for (graph, name). Upserts for the
// same concept always land on the same node.
func conceptNodeID(graphID, name string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(name)), " ")
	h := sha256.Sum256([]byte(graphID + "\x00" + norm))
	return "CONCEPT_" + hex.EncodeToString(h[:])[:16]
}

// UpsertConcepts writes a batch of concepts in one transaction. New nodes get
// the full attribute set; existing nodes are extended, never clobbered: the
// description is replaced only by a longer one, tags and aliases are
// set-unioned, lecture sources are appended, and created_by_run_id survives.
func (s *Store) UpsertConcepts(ctx context.Context, scope domain.Scope, runID string, items []domain.ConceptUpsert) ([]domain.UpsertOutcome, error) {
	if !s.Available() {
		return nil, fmt.Errorf("upsert concepts: %w", apperrors.ErrProviderUnavailable)
	}
	if len(items) == 0 {
		return nil, nil
	}

	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		rows = append(rows, map[string]any{
			"node_id":     conceptNodeID(scope.GraphID, name),
			"name":        name,
			"domain":      item.Domain,
			"type":        item.Type,
			"description": item.Description,
			"tags":        item.Tags,
			"aliases":     item.Aliases,
			"source":      item.Source,
			"embedding":   vectorParam(item.Embedding),
		})
	}
	if len(rows) == 0 {
		return nil, nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	params := mergeParams(scopeParams(scope), map[string]any{
		"rows":   rows,
		"run_id": runID,
		"now":    now,
	})
	records, err := s.client.ExecuteWriteReturning(ctx, `
MATCH (gs:GraphSpace {graph_id: $graph_id, tenant_id: $tenant_id})
UNWIND $rows AS row
MERGE (c:Concept {node_id: row.node_id})
ON CREATE SET c.graph_id = $graph_id,
              c.name = row.name,
              c.domain = row.domain,
              c.type = row.type,
              c.description = row.description,
              c.tags = coalesce(row.tags, []),
              c.aliases = coalesce(row.aliases, []),
              c.lecture_sources = CASE WHEN row.source <> '' THEN [row.source] ELSE [] END,
              c.created_by_run_id = $run_id,
              c.last_updated_by_run_id = $run_id,
              c.mastery_level = 0,
              c.is_merged = false,
              c.archived = false,
              c.on_branches = [$branch_id],
              c.embedding = row.embedding,
              c.created_at = $now,
              c.updated_at = $now,
              c.was_created = true
ON MATCH SET  c.description = CASE
                  WHEN size(coalesce(row.description, '')) > size(coalesce(c.description, ''))
                  THEN row.description ELSE c.description END,
              c.tags = [t IN coalesce(c.tags, []) WHERE NOT t IN coalesce(row.tags, [])] + coalesce(row.tags, []),
              c.aliases = [a IN coalesce(c.aliases, []) WHERE NOT a IN coalesce(row.aliases, [])] + coalesce(row.aliases, []),
              c.lecture_sources = CASE
                  WHEN row.source <> '' AND NOT row.source IN coalesce(c.lecture_sources, [])
                  THEN coalesce(c.lecture_sources, []) + row.source
                  ELSE coalesce(c.lecture_sources, []) END,
              c.embedding = coalesce(row.embedding, c.embedding),
              c.on_branches = CASE
                  WHEN $branch_id IN coalesce(c.on_branches, [])
                  THEN c.on_branches ELSE coalesce(c.on_branches, []) + $branch_id END,
              c.last_updated_by_run_id = $run_id,
              c.updated_at = $now,
              c.was_created = false
MERGE (gs)-[:CONTAINS]->(c)
RETURN c.node_id AS node_id, c.name AS name, c.was_created AS created
`, params)
	if err != nil {
		return nil, fmt.Errorf("upsert concepts: %w", err)
	}

	outcomes := make([]domain.UpsertOutcome, 0, len(records))
	for _, rec := range records {
		outcomes = append(outcomes, domain.UpsertOutcome{
			NodeID:  asString(rec["node_id"]),
			Name:    asString(rec["name"]),
			Created: asBool(rec["created"]),
		})
	}
	return outcomes, nil
}

// ConceptDetails fetches reader-facing slices for the given node ids, with
// degree counted over visible edges only. Missing ids are silently skipped.
func (s *Store) ConceptDetails(ctx context.Context, scope domain.Scope, nodeIDs []string, policy domain.ProposedPolicy) ([]domain.ConceptDetail, error) {
	if !s.Available() {
		return nil, fmt.Errorf("concept details: %w", apperrors.ErrProviderUnavailable)
	}
	if len(nodeIDs) == 0 {
		return nil, nil
	}
	visibility, extra := s.edgeVisibility("e", policy)
	params := mergeParams(scopeParams(scope), map[string]any{"node_ids": nodeIDs})
	params = mergeParams(params, extra)
	records, err := s.client.ExecuteRead(ctx, fmt.Sprintf(`
MATCH (gs:GraphSpace {graph_id: $graph_id, tenant_id: $tenant_id})-[:CONTAINS]->(c:Concept)
WHERE c.node_id IN $node_ids
  AND $branch_id IN c.on_branches
  AND COALESCE(c.is_merged, false) = false
  AND COALESCE(c.archived, false) = false
OPTIONAL MATCH (c)-[e:CONCEPT_EDGE]-(other:Concept)
WHERE $branch_id IN other.on_branches
  AND COALESCE(other.is_merged, false) = false
  AND %s
WITH c, count(e) AS degree
RETURN c.node_id AS node_id, c.name AS name, c.description AS description,
       c.tags AS tags, c.domain AS domain, c.lecture_sources AS resources,
       degree
ORDER BY c.node_id ASC
`, visibility), params)
	if err != nil {
		return nil, fmt.Errorf("concept details: %w", err)
	}
	out := make([]domain.ConceptDetail, 0, len(records))
	for _, rec := range records {
		out = append(out, domain.ConceptDetail{
			NodeID:      asString(rec["node_id"]),
			Name:        asString(rec["name"]),
			Description: asString(rec["description"]),
			Tags:        asStringList(rec["tags"]),
			Domain:      asString(rec["domain"]),
			Degree:      asInt(rec["degree"]),
			Resources:   asStringList(rec["resources"]),
		})
	}
	return out, nil
}

// ListConceptEmbeddings streams (node_id, name, embedding) for semantic
// search. Nodes without an embedding are excluded.
func (s *Store) ListConceptEmbeddings(ctx context.Context, scope domain.Scope, limit int) ([]domain.ConceptLite, error) {
	if !s.Available() {
		return nil, fmt.Errorf("list concept embeddings: %w", apperrors.ErrProviderUnavailable)
	}
	if limit <= 0 {
		limit = 2000
	}
	params := mergeParams(scopeParams(scope), map[string]any{"limit": limit})
	records, err := s.client.ExecuteRead(ctx, `
MATCH (gs:GraphSpace {graph_id: $graph_id, tenant_id: $tenant_id})-[:CONTAINS]->(c:Concept)
WHERE $branch_id IN c.on_branches
  AND COALESCE(c.is_merged, false) = false
  AND COALESCE(c.archived, false) = false
  AND c.embedding IS NOT NULL
RETURN c.node_id AS node_id, c.name AS name, c.embedding AS embedding
ORDER BY c.node_id ASC
LIMIT $limit
`, params)
	if err != nil {
		return nil, fmt.Errorf("list concept embeddings: %w", err)
	}
	out := make([]domain.ConceptLite, 0, len(records))
	for _, rec := range records {
		out = append(out, domain.ConceptLite{
			NodeID:    asString(rec["node_id"]),
			Name:      asString(rec["name"]),
			Embedding: asVector(rec["embedding"]),
		})
	}
	return out, nil
}

// ArchiveConcept hides a node from readers without deleting provenance.
func (s *Store) ArchiveConcept(ctx context.Context, scope domain.Scope, nodeID string) error {
	if !s.Available() {
		return fmt.Errorf("archive concept: %w", apperrors.ErrProviderUnavailable)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	params := mergeParams(scopeParams(scope), map[string]any{"node_id": nodeID, "now": now})
	rows, err := s.client.ExecuteWriteReturning(ctx, `
MATCH (gs:GraphSpace {graph_id: $graph_id, tenant_id: $tenant_id})-[:CONTAINS]->(c:Concept {node_id: $node_id})
SET c.archived = true, c.updated_at = $now
RETURN c.node_id AS node_id
`, params)
	if err != nil {
		return fmt.Errorf("archive concept: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("archive concept %s: %w", nodeID, apperrors.ErrNotFound)
	}
	return nil
}

// MergeConcepts marks loser as merged into winner and repoints its visible
// edges. The loser keeps its history but disappears from every reader path.
func (s *Store) MergeConcepts(ctx context.Context, scope domain.Scope, winnerID, loserID string) error {
	if !s.Available() {
		return fmt.Errorf("merge concepts: %w", apperrors.ErrProviderUnavailable)
	}
	if winnerID == loserID {
		return fmt.Errorf("merge concepts: %w", apperrors.ErrInvalidArgument)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	params := mergeParams(scopeParams(scope), map[string]any{
		"winner_id": winnerID,
		"loser_id":  loserID,
		"now":       now,
	})
	return s.client.ExecuteWrite(ctx, []neo4jdb.Statement{
		{
			Cypher: `
MATCH (gs:GraphSpace {graph_id: $graph_id, tenant_id: $tenant_id})
MATCH (gs)-[:CONTAINS]->(w:Concept {node_id: $winner_id})
MATCH (gs)-[:CONTAINS]->(l:Concept {node_id: $loser_id})
SET l.is_merged = true, l.merged_into = $winner_id, l.updated_at = $now,
    w.aliases = [a IN coalesce(w.aliases, []) WHERE a <> l.name] + l.name,
    w.updated_at = $now
`,
			Params: params,
		},
		{
			Cypher: `
MATCH (l:Concept {node_id: $loser_id, graph_id: $graph_id})-[e:CONCEPT_EDGE]->(t:Concept)
MATCH (w:Concept {node_id: $winner_id, graph_id: $graph_id})
WHERE t.node_id <> $winner_id
MERGE (w)-[m:CONCEPT_EDGE {predicate: e.predicate}]->(t)
ON CREATE SET m = properties(e)
`,
			Params: params,
		},
		{
			Cypher: `
MATCH (src:Concept)-[e:CONCEPT_EDGE]->(l:Concept {node_id: $loser_id, graph_id: $graph_id})
MATCH (w:Concept {node_id: $winner_id, graph_id: $graph_id})
WHERE src.node_id <> $winner_id
MERGE (src)-[m:CONCEPT_EDGE {predicate: e.predicate}]->(w)
ON CREATE SET m = properties(e)
`,
			Params: params,
		},
	})
}
