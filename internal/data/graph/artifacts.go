package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/mindfold/mindfold-backend/internal/domain"
	apperrors "github.com/mindfold/mindfold-backend/internal/pkg/errors"
)

// UpsertArtifact registers an ingested document. Identity is
// (graph, source, content hash); re-ingesting identical content returns the
// existing artifact with existed=true so callers can skip re-extraction.
func (s *Store) UpsertArtifact(ctx context.Context, scope domain.Scope, art domain.Artifact) (string, bool, error) {
	if !s.Available() {
		return "", false, fmt.Errorf("upsert artifact: %w", apperrors.ErrProviderUnavailable)
	}
	if art.ArtifactID == "" || art.ContentHash == "" {
		return "", false, fmt.Errorf("upsert artifact: %w", apperrors.ErrInvalidArgument)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	params := mergeParams(scopeParams(scope), map[string]any{
		"artifact_id":  art.ArtifactID,
		"source_id":    art.SourceID,
		"url":          art.URL,
		"title":        art.Title,
		"content_hash": art.ContentHash,
		"now":          now,
	})
	rows, err := s.client.ExecuteWriteReturning(ctx, `
MATCH (gs:GraphSpace {graph_id: $graph_id, tenant_id: $tenant_id})
OPTIONAL MATCH (gs)-[:HAS_ARTIFACT]->(existing:Artifact {source_id: $source_id, content_hash: $content_hash})
WITH gs, existing
FOREACH (_ IN CASE WHEN existing IS NULL THEN [1] ELSE [] END |
    MERGE (a:Artifact {artifact_id: $artifact_id})
    SET a.graph_id = $graph_id,
        a.source_id = $source_id,
        a.url = $url,
        a.title = $title,
        a.content_hash = $content_hash,
        a.created_at = $now
    MERGE (gs)-[:HAS_ARTIFACT]->(a))
RETURN coalesce(existing.artifact_id, $artifact_id) AS artifact_id,
       existing IS NOT NULL AS existed
`, params)
	if err != nil {
		return "", false, fmt.Errorf("upsert artifact: %w", err)
	}
	if len(rows) == 0 {
		return art.ArtifactID, false, nil
	}
	return asString(rows[0]["artifact_id"]), asBool(rows[0]["existed"]), nil
}

// UpsertQuotes writes user-anchored quotes, the strongest evidence unit, and
// links each listed claim to its quote with EVIDENCED_BY.
func (s *Store) UpsertQuotes(ctx context.Context, scope domain.Scope, runID string, quotes []domain.Quote) (int, error) {
	if !s.Available() {
		return 0, fmt.Errorf("upsert quotes: %w", apperrors.ErrProviderUnavailable)
	}
	rows := make([]map[string]any, 0, len(quotes))
	for _, q := range quotes {
		if q.QuoteID == "" || q.Text == "" {
			continue
		}
		rows = append(rows, map[string]any{
			"quote_id":    q.QuoteID,
			"text":        q.Text,
			"anchor":      q.Anchor,
			"captured_at": q.CapturedAt,
			"user_note":   q.UserNote,
			"tags":        q.Tags,
			"source_id":   q.SourceID,
			"claim_ids":   q.ClaimIDs,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	params := mergeParams(scopeParams(scope), map[string]any{"rows": rows, "run_id": runID})
	records, err := s.client.ExecuteWriteReturning(ctx, `
UNWIND $rows AS row
MERGE (q:Quote {quote_id: row.quote_id})
SET q.graph_id = $graph_id,
    q.text = row.text,
    q.anchor = row.anchor,
    q.captured_at = row.captured_at,
    q.user_note = row.user_note,
    q.tags = coalesce(row.tags, []),
    q.source_id = row.source_id,
    q.ingestion_run_id = $run_id,
    q.on_branches = CASE WHEN $branch_id IN coalesce(q.on_branches, [])
                         THEN q.on_branches ELSE coalesce(q.on_branches, []) + $branch_id END
WITH q, row
UNWIND coalesce(row.claim_ids, []) AS claim_id
MATCH (cl:Claim {claim_id: claim_id, graph_id: $graph_id})
MERGE (cl)-[:EVIDENCED_BY]->(q)
RETURN count(DISTINCT q) AS written
`, params)
	if err != nil {
		return 0, fmt.Errorf("upsert quotes: %w", err)
	}
	written := 0
	if len(records) > 0 {
		written = asInt(records[0]["written"])
	}
	return written, nil
}

// QuotesByIDs fetches quotes on the active branch with the ids of the claims
// they evidence.
func (s *Store) QuotesByIDs(ctx context.Context, scope domain.Scope, quoteIDs []string) ([]domain.Quote, error) {
	if !s.Available() {
		return nil, fmt.Errorf("quotes by ids: %w", apperrors.ErrProviderUnavailable)
	}
	if len(quoteIDs) == 0 {
		return nil, nil
	}
	params := mergeParams(scopeParams(scope), map[string]any{"quote_ids": quoteIDs})
	records, err := s.client.ExecuteRead(ctx, `
MATCH (q:Quote {graph_id: $graph_id})
WHERE q.quote_id IN $quote_ids
  AND $branch_id IN q.on_branches
OPTIONAL MATCH (cl:Claim {graph_id: $graph_id})-[:EVIDENCED_BY]->(q)
WHERE $branch_id IN cl.on_branches
WITH q, collect(DISTINCT cl.claim_id) AS claim_ids
RETURN q.quote_id AS quote_id, q.text AS text, q.anchor AS anchor,
       q.captured_at AS captured_at, q.user_note AS user_note,
       q.tags AS tags, q.source_id AS source_id, claim_ids
ORDER BY quote_id ASC
`, params)
	if err != nil {
		return nil, fmt.Errorf("quotes by ids: %w", err)
	}
	out := make([]domain.Quote, 0, len(records))
	for _, rec := range records {
		out = append(out, domain.Quote{
			QuoteID:    asString(rec["quote_id"]),
			GraphID:    scope.GraphID,
			Text:       asString(rec["text"]),
			Anchor:     asString(rec["anchor"]),
			CapturedAt: asString(rec["captured_at"]),
			UserNote:   asString(rec["user_note"]),
			Tags:       asStringList(rec["tags"]),
			SourceID:   asString(rec["source_id"]),
			ClaimIDs:   asStringList(rec["claim_ids"]),
		})
	}
	return out, nil
}

// SourceIDForURL resolves a captured page URL to the source id of the
// artifact ingested from it. Empty when no artifact matches.
func (s *Store) SourceIDForURL(ctx context.Context, scope domain.Scope, url string) (string, error) {
	if !s.Available() {
		return "", fmt.Errorf("source for url: %w", apperrors.ErrProviderUnavailable)
	}
	if url == "" {
		return "", nil
	}
	params := mergeParams(scopeParams(scope), map[string]any{"url": url})
	records, err := s.client.ExecuteRead(ctx, `
MATCH (gs:GraphSpace {graph_id: $graph_id, tenant_id: $tenant_id})-[:HAS_ARTIFACT]->(a:Artifact {url: $url})
RETURN a.source_id AS source_id
ORDER BY a.created_at DESC
LIMIT 1
`, params)
	if err != nil {
		return "", fmt.Errorf("source for url: %w", err)
	}
	if len(records) == 0 {
		return "", nil
	}
	return asString(records[0]["source_id"]), nil
}
