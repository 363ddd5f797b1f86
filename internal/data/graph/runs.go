package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/mindfold/mindfold-backend/internal/domain"
	apperrors "github.com/mindfold/mindfold-backend/internal/pkg/errors"
	"github.com/mindfold/mindfold-backend/internal/platform/neo4jdb"
)

// CreateRun opens an ingestion run in RUNNING state.
func (s *Store) CreateRun(ctx context.Context, scope domain.Scope, run domain.IngestionRun) error {
	if !s.Available() {
		return fmt.Errorf("create run: %w", apperrors.ErrProviderUnavailable)
	}
	if run.RunID == "" {
		return fmt.Errorf("create run: %w", apperrors.ErrInvalidArgument)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	params := mergeParams(scopeParams(scope), map[string]any{
		"run_id":       run.RunID,
		"source_type":  run.SourceType,
		"source_label": run.SourceLabel,
		"now":          now,
	})
	return s.client.ExecuteWrite(ctx, []neo4jdb.Statement{{
		Cypher: `
MATCH (gs:GraphSpace {graph_id: $graph_id, tenant_id: $tenant_id})
MERGE (r:IngestionRun {run_id: $run_id})
ON CREATE SET r.graph_id = $graph_id,
              r.source_type = $source_type,
              r.source_label = $source_label,
              r.status = 'RUNNING',
              r.started_at = $now,
              r.errors = []
MERGE (gs)-[:HAS_RUN]->(r)
`,
		Params: params,
	}})
}

// FinishRun closes a run with its final status, per-kind counts and any
// accumulated error strings.
func (s *Store) FinishRun(ctx context.Context, scope domain.Scope, runID string, status domain.RunStatus, counts map[string]int, errs []string) error {
	if !s.Available() {
		return fmt.Errorf("finish run: %w", apperrors.ErrProviderUnavailable)
	}
	countRows := make([]map[string]any, 0, len(counts))
	for kind, n := range counts {
		countRows = append(countRows, map[string]any{"kind": kind, "n": n})
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	params := mergeParams(scopeParams(scope), map[string]any{
		"run_id": runID,
		"status": string(status),
		"counts": countRows,
		"errors": errs,
		"now":    now,
	})
	return s.client.ExecuteWrite(ctx, []neo4jdb.Statement{{
		Cypher: `
MATCH (r:IngestionRun {run_id: $run_id, graph_id: $graph_id})
SET r.status = $status,
    r.completed_at = $now,
    r.count_kinds = [row IN $counts | row.kind],
    r.count_values = [row IN $counts | row.n],
    r.errors = coalesce($errors, [])
`,
		Params: params,
	}})
}

// GetRun fetches run metadata for status reporting.
func (s *Store) GetRun(ctx context.Context, scope domain.Scope, runID string) (*domain.IngestionRun, error) {
	if !s.Available() {
		return nil, fmt.Errorf("get run: %w", apperrors.ErrProviderUnavailable)
	}
	params := mergeParams(scopeParams(scope), map[string]any{"run_id": runID})
	records, err := s.client.ExecuteRead(ctx, `
MATCH (r:IngestionRun {run_id: $run_id, graph_id: $graph_id})
RETURN r.run_id AS run_id, r.source_type AS source_type, r.source_label AS source_label,
       r.status AS status, r.started_at AS started_at, r.completed_at AS completed_at,
       r.count_kinds AS count_kinds, r.count_values AS count_values,
       r.undone_at AS undone_at, r.errors AS errors
`, params)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("get run %s: %w", runID, apperrors.ErrNotFound)
	}
	rec := records[0]
	run := &domain.IngestionRun{
		RunID:       asString(rec["run_id"]),
		GraphID:     scope.GraphID,
		SourceType:  asString(rec["source_type"]),
		SourceLabel: asString(rec["source_label"]),
		Status:      domain.RunStatus(asString(rec["status"])),
		StartedAt:   asTime(rec["started_at"]),
		Errors:      asStringList(rec["errors"]),
	}
	if t := asTime(rec["completed_at"]); !t.IsZero() {
		run.CompletedAt = &t
	}
	if t := asTime(rec["undone_at"]); !t.IsZero() {
		run.UndoneAt = &t
	}
	kinds := asStringList(rec["count_kinds"])
	values, _ := rec["count_values"].([]any)
	if len(kinds) > 0 && len(kinds) == len(values) {
		run.SummaryCounts = make(map[string]int, len(kinds))
		for i, kind := range kinds {
			run.SummaryCounts[kind] = asInt(values[i])
		}
	}
	return run, nil
}

// UndoRun archives everything a run created. Nothing is deleted: concepts and
// claims created by the run are hidden, edges it proposed are rejected, and
// the run records when it was undone. Idempotent.
func (s *Store) UndoRun(ctx context.Context, scope domain.Scope, runID string) error {
	if !s.Available() {
		return fmt.Errorf("undo run: %w", apperrors.ErrProviderUnavailable)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	params := mergeParams(scopeParams(scope), map[string]any{"run_id": runID, "now": now})
	return s.client.ExecuteWrite(ctx, []neo4jdb.Statement{
		{
			Cypher: `
MATCH (c:Concept {graph_id: $graph_id, created_by_run_id: $run_id})
SET c.archived = true, c.updated_at = $now
`,
			Params: params,
		},
		{
			Cypher: `
MATCH (cl:Claim {graph_id: $graph_id, ingestion_run_id: $run_id})
SET cl.archived = true, cl.updated_at = $now
`,
			Params: params,
		},
		{
			Cypher: `
MATCH (:Concept {graph_id: $graph_id})-[e:CONCEPT_EDGE {ingestion_run_id: $run_id}]->(:Concept)
SET e.status = 'REJECTED', e.reviewed_by = 'undo', e.reviewed_at = $now, e.updated_at = $now
`,
			Params: params,
		},
		{
			Cypher: `
MATCH (r:IngestionRun {run_id: $run_id, graph_id: $graph_id})
SET r.undone_at = coalesce(r.undone_at, $now)
`,
			Params: params,
		},
	})
}
