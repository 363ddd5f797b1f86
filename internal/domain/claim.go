package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

type ClaimStatus string

const (
	ClaimProposed ClaimStatus = "PROPOSED"
	ClaimVerified ClaimStatus = "VERIFIED"
	ClaimRejected ClaimStatus = "REJECTED"
)

// Claim is an atomic, source-cited assertion extracted from a chunk.
type Claim struct {
	ClaimID        string      `json:"claim_id"`
	GraphID        string      `json:"graph_id"`
	Text           string      `json:"text"`
	Confidence     float64     `json:"confidence"`
	Method         string      `json:"method,omitempty"`
	SourceID       string      `json:"source_id,omitempty"`
	SourceSpan     string      `json:"source_span,omitempty"`
	ChunkID        string      `json:"chunk_id,omitempty"`
	Status         ClaimStatus `json:"status"`
	EvidenceIDs    []string    `json:"evidence_ids,omitempty"`
	IngestionRunID string      `json:"ingestion_run_id,omitempty"`
	Embedding      []float32   `json:"-"`
	MentionNodeIDs []string    `json:"mention_node_ids,omitempty"`
	UpdatedAt      time.Time   `json:"updated_at,omitempty"`
}

// ClaimCandidate is the retrieval-side shape returned by the batched
// community claim fetch.
type ClaimCandidate struct {
	ClaimID        string
	Text           string
	Confidence     float64
	Status         ClaimStatus
	SourceID       string
	ChunkID        string
	Embedding      []float32
	MentionNodeIDs []string
	CommunityID    string
	EvidenceIDs    []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NormalizeClaimText collapses whitespace and lowercases, so identical
// assertions hash to the same claim id.
func NormalizeClaimText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(text))), " ")
}

// ClaimID derives the deterministic id for a claim within (graph, source).
func ClaimID(graphID, sourceID, text string) string {
	h := sha256.Sum256([]byte(graphID + sourceID + NormalizeClaimText(text)))
	return "CLAIM_" + hex.EncodeToString(h[:])[:16]
}
