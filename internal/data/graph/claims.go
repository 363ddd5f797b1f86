package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mindfold/mindfold-backend/internal/domain"
	apperrors "github.com/mindfold/mindfold-backend/internal/pkg/errors"
)

// strictnessPredicate renders the claim filter for an evidence strictness
// level against a claim variable.
func strictnessPredicate(claimVar string, strictness domain.Strictness) string {
	switch strictness {
	case domain.StrictnessHigh:
		return fmt.Sprintf("%s.status = 'VERIFIED'", claimVar)
	case domain.StrictnessLow:
		return "true"
	default:
		return fmt.Sprintf("(%s.status = 'VERIFIED' OR (%s.status = 'PROPOSED' AND %s.confidence >= 0.7))", claimVar, claimVar, claimVar)
	}
}

// claimEvidence returns the claim's evidence list with the supporting chunk
// id always present, deduped, input order preserved.
func claimEvidence(cl domain.Claim) []string {
	out := make([]string, 0, len(cl.EvidenceIDs)+1)
	seen := map[string]bool{}
	for _, id := range cl.EvidenceIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if cl.ChunkID != "" && !seen[cl.ChunkID] {
		out = append(out, cl.ChunkID)
	}
	return out
}

// UpsertClaims writes a claim batch with SUPPORTED_BY links to source chunks
// and MENTIONS links to concepts, all in one transaction. Claim ids are
// content-derived, so re-ingesting the same text is a no-op update.
func (s *Store) UpsertClaims(ctx context.Context, scope domain.Scope, runID string, claims []domain.Claim) (int, error) {
	if !s.Available() {
		return 0, fmt.Errorf("upsert claims: %w", apperrors.ErrProviderUnavailable)
	}
	rows := make([]map[string]any, 0, len(claims))
	for _, cl := range claims {
		text := strings.TrimSpace(cl.Text)
		if text == "" {
			continue
		}
		id := cl.ClaimID
		if id == "" {
			id = domain.ClaimID(scope.GraphID, cl.SourceID, text)
		}
		status := cl.Status
		if status == "" {
			status = domain.ClaimProposed
		}
		rows = append(rows, map[string]any{
			"claim_id":     id,
			"text":         text,
			"confidence":   cl.Confidence,
			"method":       cl.Method,
			"source_id":    cl.SourceID,
			"source_span":  cl.SourceSpan,
			"chunk_id":     cl.ChunkID,
			"status":       string(status),
			"evidence_ids": claimEvidence(cl),
			"embedding":    vectorParam(cl.Embedding),
			"mention_ids":  cl.MentionNodeIDs,
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
MERGE (cl:Claim {claim_id: row.claim_id})
ON CREATE SET cl.graph_id = $graph_id,
              cl.text = row.text,
              cl.confidence = row.confidence,
              cl.method = row.method,
              cl.source_id = row.source_id,
              cl.source_span = row.source_span,
              cl.chunk_id = row.chunk_id,
              cl.status = row.status,
              cl.evidence_ids = coalesce(row.evidence_ids, []),
              cl.embedding = row.embedding,
              cl.ingestion_run_id = $run_id,
              cl.on_branches = [$branch_id],
              cl.archived = false,
              cl.created_at = $now,
              cl.updated_at = $now
ON MATCH SET  cl.confidence = CASE WHEN row.confidence > cl.confidence THEN row.confidence ELSE cl.confidence END,
              cl.evidence_ids = [ev IN coalesce(cl.evidence_ids, []) WHERE NOT ev IN coalesce(row.evidence_ids, [])] + coalesce(row.evidence_ids, []),
              cl.embedding = coalesce(row.embedding, cl.embedding),
              cl.on_branches = CASE WHEN $branch_id IN coalesce(cl.on_branches, [])
                                    THEN cl.on_branches ELSE coalesce(cl.on_branches, []) + $branch_id END,
              cl.last_updated_by_run_id = $run_id,
              cl.updated_at = $now
WITH cl, row
FOREACH (_ IN CASE WHEN row.chunk_id <> '' THEN [1] ELSE [] END |
    MERGE (ch:SourceChunk {chunk_id: row.chunk_id})
    MERGE (cl)-[:SUPPORTED_BY]->(ch))
WITH cl, row
UNWIND coalesce(row.mention_ids, []) AS mention_id
MATCH (c:Concept {node_id: mention_id, graph_id: $graph_id})
MERGE (cl)-[:MENTIONS]->(c)
RETURN count(DISTINCT cl) AS written
`, params)
	if err != nil {
		return 0, fmt.Errorf("upsert claims: %w", err)
	}
	written := 0
	if len(records) > 0 {
		written = asInt(records[0]["written"])
	}
	return written, nil
}

// ClaimsByCommunities loads candidate claims for a set of communities in one
// batched query. A claim qualifies when it mentions a concept belonging to
// one of the communities and passes the strictness filter.
func (s *Store) ClaimsByCommunities(ctx context.Context, scope domain.Scope, communityIDs []string, strictness domain.Strictness, perCommunity int) ([]domain.ClaimCandidate, error) {
	if !s.Available() {
		return nil, fmt.Errorf("claims by communities: %w", apperrors.ErrProviderUnavailable)
	}
	if len(communityIDs) == 0 {
		return nil, nil
	}
	if perCommunity <= 0 {
		perCommunity = 12
	}
	params := mergeParams(scopeParams(scope), map[string]any{
		"community_ids": communityIDs,
		"per_community": perCommunity,
	})
	records, err := s.client.ExecuteRead(ctx, fmt.Sprintf(`
UNWIND $community_ids AS community_id
MATCH (co:Community {community_id: community_id, graph_id: $graph_id})
MATCH (c:Concept {graph_id: $graph_id})-[:IN_COMMUNITY]->(co)
WHERE $branch_id IN c.on_branches AND COALESCE(c.is_merged, false) = false
MATCH (cl:Claim {graph_id: $graph_id})-[:MENTIONS]->(c)
WHERE $branch_id IN cl.on_branches
  AND COALESCE(cl.archived, false) = false
  AND %s
WITH co, cl ORDER BY cl.confidence DESC, cl.claim_id ASC
WITH co, collect(DISTINCT cl)[0..$per_community] AS claims
UNWIND claims AS cl
OPTIONAL MATCH (cl)-[:MENTIONS]->(m:Concept {graph_id: $graph_id})
WHERE $branch_id IN m.on_branches AND COALESCE(m.is_merged, false) = false
WITH co, cl, collect(DISTINCT m.node_id) AS mention_ids
RETURN cl.claim_id AS claim_id, cl.text AS text, cl.confidence AS confidence,
       cl.status AS status, cl.source_id AS source_id, cl.chunk_id AS chunk_id,
       cl.embedding AS embedding, cl.evidence_ids AS evidence_ids,
       cl.updated_at AS updated_at, mention_ids,
       co.community_id AS community_id
ORDER BY community_id ASC, claim_id ASC
`, strictnessPredicate("cl", strictness)), params)
	if err != nil {
		return nil, fmt.Errorf("claims by communities: %w", err)
	}
	return claimCandidatesFromRecords(records), nil
}

// ClaimsByIDs fetches claims by id with mention concept ids attached.
func (s *Store) ClaimsByIDs(ctx context.Context, scope domain.Scope, claimIDs []string) ([]domain.ClaimCandidate, error) {
	if !s.Available() {
		return nil, fmt.Errorf("claims by ids: %w", apperrors.ErrProviderUnavailable)
	}
	if len(claimIDs) == 0 {
		return nil, nil
	}
	params := mergeParams(scopeParams(scope), map[string]any{"claim_ids": claimIDs})
	records, err := s.client.ExecuteRead(ctx, `
MATCH (cl:Claim {graph_id: $graph_id})
WHERE cl.claim_id IN $claim_ids
  AND $branch_id IN cl.on_branches
  AND COALESCE(cl.archived, false) = false
OPTIONAL MATCH (cl)-[:MENTIONS]->(m:Concept {graph_id: $graph_id})
WHERE $branch_id IN m.on_branches AND COALESCE(m.is_merged, false) = false
WITH cl, collect(DISTINCT m.node_id) AS mention_ids
RETURN cl.claim_id AS claim_id, cl.text AS text, cl.confidence AS confidence,
       cl.status AS status, cl.source_id AS source_id, cl.chunk_id AS chunk_id,
       cl.embedding AS embedding, cl.evidence_ids AS evidence_ids,
       cl.updated_at AS updated_at, mention_ids, '' AS community_id
ORDER BY claim_id ASC
`, params)
	if err != nil {
		return nil, fmt.Errorf("claims by ids: %w", err)
	}
	return claimCandidatesFromRecords(records), nil
}

// RecentClaims returns claims updated within the window, newest first.
func (s *Store) RecentClaims(ctx context.Context, scope domain.Scope, since time.Time, strictness domain.Strictness, limit int) ([]domain.ClaimCandidate, error) {
	if !s.Available() {
		return nil, fmt.Errorf("recent claims: %w", apperrors.ErrProviderUnavailable)
	}
	if limit <= 0 {
		limit = 50
	}
	params := mergeParams(scopeParams(scope), map[string]any{
		"since": since.UTC().Format(time.RFC3339Nano),
		"limit": limit,
	})
	records, err := s.client.ExecuteRead(ctx, fmt.Sprintf(`
MATCH (cl:Claim {graph_id: $graph_id})
WHERE $branch_id IN cl.on_branches
  AND COALESCE(cl.archived, false) = false
  AND cl.updated_at >= $since
  AND %s
OPTIONAL MATCH (cl)-[:MENTIONS]->(m:Concept {graph_id: $graph_id})
WHERE $branch_id IN m.on_branches AND COALESCE(m.is_merged, false) = false
WITH cl, collect(DISTINCT m.node_id) AS mention_ids
RETURN cl.claim_id AS claim_id, cl.text AS text, cl.confidence AS confidence,
       cl.status AS status, cl.source_id AS source_id, cl.chunk_id AS chunk_id,
       cl.embedding AS embedding, cl.evidence_ids AS evidence_ids,
       cl.created_at AS created_at, cl.updated_at AS updated_at,
       mention_ids, '' AS community_id
ORDER BY cl.updated_at DESC, claim_id ASC
LIMIT $limit
`, strictnessPredicate("cl", strictness)), params)
	if err != nil {
		return nil, fmt.Errorf("recent claims: %w", err)
	}
	return claimCandidatesFromRecords(records), nil
}

func claimCandidatesFromRecords(records []map[string]any) []domain.ClaimCandidate {
	out := make([]domain.ClaimCandidate, 0, len(records))
	for _, rec := range records {
		out = append(out, domain.ClaimCandidate{
			ClaimID:        asString(rec["claim_id"]),
			Text:           asString(rec["text"]),
			Confidence:     asFloat(rec["confidence"]),
			Status:         domain.ClaimStatus(asString(rec["status"])),
			SourceID:       asString(rec["source_id"]),
			ChunkID:        asString(rec["chunk_id"]),
			Embedding:      asVector(rec["embedding"]),
			MentionNodeIDs: asStringList(rec["mention_ids"]),
			CommunityID:    asString(rec["community_id"]),
			EvidenceIDs:    asStringList(rec["evidence_ids"]),
			CreatedAt:      asTime(rec["created_at"]),
			UpdatedAt:      asTime(rec["updated_at"]),
		})
	}
	return out
}
