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

// graphIDFor derives a stable workspace id from (tenant, user), so repeated
// resolution never creates a second GraphSpace for the same owner.
func graphIDFor(tenantID, userID string) string {
	h := sha256.Sum256([]byte(tenantID + "\x00" + userID))
	return "G_" + hex.EncodeToString(h[:])[:20]
}

// ResolveActiveContext lazily creates the GraphSpace and its main branch on
// first use and returns the active (graph_id, branch_id).
func (s *Store) ResolveActiveContext(ctx context.Context, tenantID, userID string) (domain.Scope, error) {
	if strings.TrimSpace(tenantID) == "" {
		return domain.Scope{}, fmt.Errorf("resolve active context: %w", apperrors.ErrUnauthorized)
	}
	scope := domain.Scope{
		TenantID: tenantID,
		GraphID:  graphIDFor(tenantID, userID),
		BranchID: domain.MainBranch,
	}
	if !s.Available() {
		return scope, fmt.Errorf("resolve active context: %w", apperrors.ErrProviderUnavailable)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	rows, err := s.client.ExecuteWriteReturning(ctx, `
MERGE (gs:GraphSpace {graph_id: $graph_id})
ON CREATE SET gs.tenant_id = $tenant_id,
              gs.owner_user_id = $user_id,
              gs.name = 'workspace',
              gs.created_at = $now
WITH gs
MERGE (b:Branch {graph_id: $graph_id, branch_id: $branch_id})
ON CREATE SET b.created_at = $now
MERGE (gs)-[:HAS_BRANCH]->(b)
RETURN gs.tenant_id AS tenant_id
`, map[string]any{
		"graph_id":  scope.GraphID,
		"tenant_id": tenantID,
		"user_id":   userID,
		"branch_id": domain.MainBranch,
		"now":       now,
	})
	if err != nil {
		return domain.Scope{}, fmt.Errorf("resolve active context: %w", err)
	}
	// Identity is immutable: a graph created under another tenant must never
	// be handed out, even if the derived id somehow collides.
	if len(rows) > 0 && asString(rows[0]["tenant_id"]) != tenantID {
		return domain.Scope{}, fmt.Errorf("resolve active context: tenant mismatch: %w", apperrors.ErrUnauthorized)
	}
	return scope, nil
}

// ForkBranch copies node and edge membership from the source branch into a
// new branch by appending the branch id to on_branches, bounded by maxNodes.
func (s *Store) ForkBranch(ctx context.Context, scope domain.Scope, newBranchID string, maxNodes int) error {
	if strings.TrimSpace(newBranchID) == "" || newBranchID == scope.BranchID {
		return fmt.Errorf("fork branch: %w", apperrors.ErrInvalidArgument)
	}
	if maxNodes <= 0 {
		maxNodes = 5000
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	params := mergeParams(scopeParams(scope), map[string]any{
		"new_branch": newBranchID,
		"max_nodes":  maxNodes,
		"now":        now,
	})
	return s.client.ExecuteWrite(ctx, []neo4jdb.Statement{
		{
			Cypher: `
MATCH (gs:GraphSpace {graph_id: $graph_id, tenant_id: $tenant_id})
MERGE (b:Branch {graph_id: $graph_id, branch_id: $new_branch})
ON CREATE SET b.created_at = $now, b.forked_from = $branch_id
MERGE (gs)-[:HAS_BRANCH]->(b)
`,
			Params: params,
		},
		{
			Cypher: `
MATCH (gs:GraphSpace {graph_id: $graph_id, tenant_id: $tenant_id})
MATCH (n {graph_id: $graph_id})
WHERE $branch_id IN n.on_branches AND NOT $new_branch IN n.on_branches
WITH n LIMIT $max_nodes
SET n.on_branches = n.on_branches + $new_branch
`,
			Params: params,
		},
		{
			Cypher: `
MATCH (:Concept {graph_id: $graph_id})-[e:CONCEPT_EDGE]->(:Concept {graph_id: $graph_id})
WHERE $branch_id IN e.on_branches AND NOT $new_branch IN e.on_branches
WITH e LIMIT $max_nodes
SET e.on_branches = e.on_branches + $new_branch
`,
			Params: params,
		},
	})
}
