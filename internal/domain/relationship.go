package domain

import "time"

type RelStatus string

const (
	RelProposed RelStatus = "PROPOSED"
	RelAccepted RelStatus = "ACCEPTED"
	RelRejected RelStatus = "REJECTED"
)

// Relationship is a directed, predicate-typed edge between two concepts.
type Relationship struct {
	SourceID          string    `json:"source_id"`
	TargetID          string    `json:"target_id"`
	Predicate         string    `json:"predicate"`
	Status            RelStatus `json:"status"`
	Confidence        float64   `json:"confidence"`
	Method            string    `json:"method,omitempty"`
	SourceRef         string    `json:"source_ref,omitempty"`
	ChunkID           string    `json:"chunk_id,omitempty"`
	ClaimID           string    `json:"claim_id,omitempty"`
	Rationale         string    `json:"rationale,omitempty"`
	IngestionRunID    string    `json:"ingestion_run_id,omitempty"`
	SupersedesRelType string    `json:"supersedes_rel_type,omitempty"`
	ReviewedBy        string    `json:"reviewed_by,omitempty"`
	ReviewedAt        time.Time `json:"reviewed_at,omitempty"`
}

// RelTriple identifies a relationship for batch review operations.
type RelTriple struct {
	SourceID  string `json:"source_id"`
	TargetID  string `json:"target_id"`
	Predicate string `json:"predicate"`
}

// Edge is the reader-facing projection used in subgraphs and bundles.
type Edge struct {
	SourceID   string  `json:"source_id"`
	TargetID   string  `json:"target_id"`
	Predicate  string  `json:"predicate"`
	Status     string  `json:"status,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Predicates that auto-accept at ingestion when confidence >= 0.9.
var AutoAcceptPredicates = map[string]bool{
	"DEPENDS_ON":       true,
	"PREREQUISITE_FOR": true,
	"RELATED_TO":       true,
}

const AutoAcceptConfidence = 0.9

// MinProposedConfidence is the floor under which LLM-proposed links are dropped.
const MinProposedConfidence = 0.5
