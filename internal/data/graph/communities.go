package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mindfold/mindfold-backend/internal/domain"
	apperrors "github.com/mindfold/mindfold-backend/internal/pkg/errors"
)

// CommunityUpsert is the write shape for one community and its membership.
type CommunityUpsert struct {
	CommunityID      string
	Name             string
	Summary          string
	SummaryEmbedding []float32
	MemberNodeIDs    []string
	BuildVersion     int
}

// UpsertCommunities replaces community definitions and membership in one
// transaction. Membership links carry the build version so stale links from a
// previous build can be cleared.
func (s *Store) UpsertCommunities(ctx context.Context, scope domain.Scope, items []CommunityUpsert) (int, error) {
	if !s.Available() {
		return 0, fmt.Errorf("upsert communities: %w", apperrors.ErrProviderUnavailable)
	}
	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.CommunityID) == "" {
			continue
		}
		rows = append(rows, map[string]any{
			"community_id":  item.CommunityID,
			"name":          item.Name,
			"summary":       item.Summary,
			"embedding":     vectorParam(item.SummaryEmbedding),
			"member_ids":    item.MemberNodeIDs,
			"build_version": item.BuildVersion,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	params := mergeParams(scopeParams(scope), map[string]any{"rows": rows, "now": now})
	records, err := s.client.ExecuteWriteReturning(ctx, `
UNWIND $rows AS row
MERGE (co:Community {community_id: row.community_id})
SET co.graph_id = $graph_id,
    co.name = row.name,
    co.summary = row.summary,
    co.summary_embedding = row.embedding,
    co.build_version = row.build_version,
    co.updated_at = $now
WITH co, row
OPTIONAL MATCH (stale:Concept)-[old:IN_COMMUNITY]->(co)
WHERE NOT stale.node_id IN coalesce(row.member_ids, [])
DELETE old
WITH co, row
UNWIND coalesce(row.member_ids, []) AS member_id
MATCH (c:Concept {node_id: member_id, graph_id: $graph_id})
MERGE (c)-[m:IN_COMMUNITY]->(co)
SET m.build_version = row.build_version
RETURN count(DISTINCT co) AS written
`, params)
	if err != nil {
		return 0, fmt.Errorf("upsert communities: %w", err)
	}
	written := 0
	if len(records) > 0 {
		written = asInt(records[0]["written"])
	}
	return written, nil
}

// ListCommunityEmbeddings returns all communities with a stored summary
// embedding, for in-process semantic search.
func (s *Store) ListCommunityEmbeddings(ctx context.Context, scope domain.Scope, limit int) ([]domain.Community, error) {
	if !s.Available() {
		return nil, fmt.Errorf("list community embeddings: %w", apperrors.ErrProviderUnavailable)
	}
	if limit <= 0 {
		limit = 500
	}
	params := mergeParams(scopeParams(scope), map[string]any{"limit": limit})
	records, err := s.client.ExecuteRead(ctx, `
MATCH (co:Community {graph_id: $graph_id})
WHERE co.summary_embedding IS NOT NULL
RETURN co.community_id AS community_id, co.name AS name, co.summary AS summary,
       co.summary_embedding AS embedding, co.build_version AS build_version
ORDER BY co.community_id ASC
LIMIT $limit
`, params)
	if err != nil {
		return nil, fmt.Errorf("list community embeddings: %w", err)
	}
	out := make([]domain.Community, 0, len(records))
	for _, rec := range records {
		out = append(out, domain.Community{
			CommunityID:      asString(rec["community_id"]),
			GraphID:          scope.GraphID,
			Name:             asString(rec["name"]),
			Summary:          asString(rec["summary"]),
			SummaryEmbedding: asVector(rec["embedding"]),
			BuildVersion:     asInt(rec["build_version"]),
		})
	}
	return out, nil
}

// CommunityMembers returns the visible member concept ids of a community.
func (s *Store) CommunityMembers(ctx context.Context, scope domain.Scope, communityID string, limit int) ([]string, error) {
	if !s.Available() {
		return nil, fmt.Errorf("community members: %w", apperrors.ErrProviderUnavailable)
	}
	if limit <= 0 {
		limit = 100
	}
	params := mergeParams(scopeParams(scope), map[string]any{"community_id": communityID, "limit": limit})
	records, err := s.client.ExecuteRead(ctx, `
MATCH (c:Concept {graph_id: $graph_id})-[:IN_COMMUNITY]->(co:Community {community_id: $community_id, graph_id: $graph_id})
WHERE $branch_id IN c.on_branches AND COALESCE(c.is_merged, false) = false
RETURN c.node_id AS node_id
ORDER BY node_id ASC
LIMIT $limit
`, params)
	if err != nil {
		return nil, fmt.Errorf("community members: %w", err)
	}
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, asString(rec["node_id"]))
	}
	return out, nil
}
