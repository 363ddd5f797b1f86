package graph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mindfold/mindfold-backend/internal/domain"
	apperrors "github.com/mindfold/mindfold-backend/internal/pkg/errors"
)

// UpsertChunks writes source chunks and links them to their artifact. Chunk
// metadata (page refs, dates, titles) is stored as a JSON property since
// node properties cannot hold maps.
func (s *Store) UpsertChunks(ctx context.Context, scope domain.Scope, runID, artifactID string, chunks []domain.SourceChunk) (int, error) {
	if !s.Available() {
		return 0, fmt.Errorf("upsert chunks: %w", apperrors.ErrProviderUnavailable)
	}
	rows := make([]map[string]any, 0, len(chunks))
	for _, ch := range chunks {
		if ch.ChunkID == "" || ch.Text == "" {
			continue
		}
		metadata := ""
		if len(ch.Metadata) > 0 {
			if raw, err := json.Marshal(ch.Metadata); err == nil {
				metadata = string(raw)
			} else {
				s.log.Warn("chunk metadata marshal failed", "chunk_id", ch.ChunkID, "error", err)
			}
		}
		rows = append(rows, map[string]any{
			"chunk_id":    ch.ChunkID,
			"source_id":   ch.SourceID,
			"chunk_index": ch.ChunkIndex,
			"text":        ch.Text,
			"metadata":    metadata,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	params := mergeParams(scopeParams(scope), map[string]any{
		"rows":        rows,
		"run_id":      runID,
		"artifact_id": artifactID,
	})
	records, err := s.client.ExecuteWriteReturning(ctx, `
UNWIND $rows AS row
MERGE (ch:SourceChunk {chunk_id: row.chunk_id})
SET ch.graph_id = $graph_id,
    ch.source_id = row.source_id,
    ch.chunk_index = row.chunk_index,
    ch.text = row.text,
    ch.metadata = row.metadata,
    ch.ingestion_run_id = $run_id,
    ch.on_branches = CASE WHEN $branch_id IN coalesce(ch.on_branches, [])
                          THEN ch.on_branches ELSE coalesce(ch.on_branches, []) + $branch_id END
WITH ch
MATCH (a:Artifact {artifact_id: $artifact_id, graph_id: $graph_id})
MERGE (a)-[:HAS_CHUNK]->(ch)
RETURN count(ch) AS written
`, params)
	if err != nil {
		return 0, fmt.Errorf("upsert chunks: %w", err)
	}
	written := 0
	if len(records) > 0 {
		written = asInt(records[0]["written"])
	}
	return written, nil
}

// ChunksByIDs fetches chunk text for bundle assembly, id ascending.
func (s *Store) ChunksByIDs(ctx context.Context, scope domain.Scope, chunkIDs []string) ([]domain.SourceChunk, error) {
	if !s.Available() {
		return nil, fmt.Errorf("chunks by ids: %w", apperrors.ErrProviderUnavailable)
	}
	if len(chunkIDs) == 0 {
		return nil, nil
	}
	params := mergeParams(scopeParams(scope), map[string]any{"chunk_ids": chunkIDs})
	records, err := s.client.ExecuteRead(ctx, `
MATCH (ch:SourceChunk {graph_id: $graph_id})
WHERE ch.chunk_id IN $chunk_ids
  AND $branch_id IN ch.on_branches
RETURN ch.chunk_id AS chunk_id, ch.source_id AS source_id,
       ch.chunk_index AS chunk_index, ch.text AS text, ch.metadata AS metadata
ORDER BY chunk_id ASC
`, params)
	if err != nil {
		return nil, fmt.Errorf("chunks by ids: %w", err)
	}
	out := make([]domain.SourceChunk, 0, len(records))
	for _, rec := range records {
		ch := domain.SourceChunk{
			ChunkID:    asString(rec["chunk_id"]),
			GraphID:    scope.GraphID,
			SourceID:   asString(rec["source_id"]),
			ChunkIndex: asInt(rec["chunk_index"]),
			Text:       asString(rec["text"]),
		}
		if raw := asString(rec["metadata"]); raw != "" {
			var meta map[string]any
			if err := json.Unmarshal([]byte(raw), &meta); err == nil {
				ch.Metadata = meta
			}
		}
		out = append(out, ch)
	}
	return out, nil
}
