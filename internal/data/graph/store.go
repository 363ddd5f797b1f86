package graph

import (
	"context"
	"fmt"

	"github.com/mindfold/mindfold-backend/internal/domain"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
	"github.com/mindfold/mindfold-backend/internal/platform/neo4jdb"
)

// Store is the single entry point to the knowledge graph. Every read query
// joins through the GraphSpace for tenant isolation and filters by the active
// branch; merged and archived nodes never reach readers.
type Store struct {
	client            *neo4jdb.Client
	log               *logger.Logger
	proposedThreshold float64
}

func NewStore(client *neo4jdb.Client, log *logger.Logger, proposedThreshold float64) *Store {
	if proposedThreshold <= 0 || proposedThreshold > 1 {
		proposedThreshold = 0.6
	}
	return &Store{
		client:            client,
		log:               log.With("store", "GraphStore"),
		proposedThreshold: proposedThreshold,
	}
}

func (s *Store) Available() bool {
	return s != nil && s.client != nil && s.client.Driver != nil
}

// EnsureSchema creates uniqueness constraints and lookup indexes.
// Best-effort: failures are logged and ignored.
func (s *Store) EnsureSchema(ctx context.Context) {
	if !s.Available() {
		return
	}
	s.client.EnsureSchema(ctx, []string{
		`CREATE CONSTRAINT graphspace_id_unique IF NOT EXISTS FOR (g:GraphSpace) REQUIRE g.graph_id IS UNIQUE`,
		`CREATE CONSTRAINT concept_node_id_unique IF NOT EXISTS FOR (c:Concept) REQUIRE c.node_id IS UNIQUE`,
		`CREATE CONSTRAINT claim_id_unique IF NOT EXISTS FOR (cl:Claim) REQUIRE cl.claim_id IS UNIQUE`,
		`CREATE CONSTRAINT chunk_id_unique IF NOT EXISTS FOR (ch:SourceChunk) REQUIRE ch.chunk_id IS UNIQUE`,
		`CREATE CONSTRAINT community_id_unique IF NOT EXISTS FOR (co:Community) REQUIRE co.community_id IS UNIQUE`,
		`CREATE CONSTRAINT quote_id_unique IF NOT EXISTS FOR (q:Quote) REQUIRE q.quote_id IS UNIQUE`,
		`CREATE CONSTRAINT run_id_unique IF NOT EXISTS FOR (r:IngestionRun) REQUIRE r.run_id IS UNIQUE`,
		`CREATE INDEX concept_graph_name_idx IF NOT EXISTS FOR (c:Concept) ON (c.graph_id, c.name)`,
		`CREATE INDEX claim_graph_idx IF NOT EXISTS FOR (cl:Claim) ON (cl.graph_id)`,
		`CREATE INDEX artifact_identity_idx IF NOT EXISTS FOR (a:Artifact) ON (a.graph_id, a.source_id, a.content_hash)`,
	})
}

// scopeParams are the three parameters every scoped query carries.
func scopeParams(scope domain.Scope) map[string]any {
	return map[string]any{
		"tenant_id": scope.TenantID,
		"graph_id":  scope.GraphID,
		"branch_id": scope.BranchID,
	}
}

// edgeVisibility renders the relationship visibility predicate for an edge
// variable. Edges carry their own branch membership; an edge created on a
// fork never leaks into other branches even when both endpoints are shared.
// REJECTED edges are never visible to readers.
func (s *Store) edgeVisibility(edgeVar string, policy domain.ProposedPolicy) (string, map[string]any) {
	branch := fmt.Sprintf("$branch_id IN %s.on_branches", edgeVar)
	switch policy {
	case domain.ProposedAll:
		return fmt.Sprintf("(%s AND %s.status IN ['ACCEPTED','PROPOSED'])", branch, edgeVar), nil
	case domain.ProposedNone:
		return fmt.Sprintf("(%s AND %s.status = 'ACCEPTED')", branch, edgeVar), nil
	default:
		return fmt.Sprintf("(%s AND (%s.status = 'ACCEPTED' OR (%s.status = 'PROPOSED' AND %s.confidence >= $proposed_threshold)))", branch, edgeVar, edgeVar, edgeVar),
			map[string]any{"proposed_threshold": s.proposedThreshold}
	}
}

func mergeParams(dst map[string]any, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
