package domain

import "time"

// Concept is a node in the knowledge graph, unique by (graph_id, name).
type Concept struct {
	NodeID             string    `json:"node_id"`
	GraphID            string    `json:"graph_id"`
	Name               string    `json:"name"`
	Domain             string    `json:"domain,omitempty"`
	Type               string    `json:"type,omitempty"`
	Description        string    `json:"description,omitempty"`
	Tags               []string  `json:"tags,omitempty"`
	Aliases            []string  `json:"aliases,omitempty"`
	URLSlug            string    `json:"url_slug,omitempty"`
	LectureSources     []string  `json:"lecture_sources,omitempty"`
	CreatedBy          string    `json:"created_by,omitempty"`
	LastUpdatedBy      string    `json:"last_updated_by,omitempty"`
	CreatedByRunID     string    `json:"created_by_run_id,omitempty"`
	LastUpdatedByRunID string    `json:"last_updated_by_run_id,omitempty"`
	MasteryLevel       int       `json:"mastery_level"`
	IsMerged           bool      `json:"is_merged"`
	Archived           bool      `json:"archived"`
	OnBranches         []string  `json:"on_branches,omitempty"`
	Embedding          []float32 `json:"-"`
	CreatedAt          time.Time `json:"created_at,omitempty"`
	UpdatedAt          time.Time `json:"updated_at,omitempty"`
}

// ConceptLite is the shape used by semantic concept search.
type ConceptLite struct {
	NodeID    string
	Name      string
	Embedding []float32
}

// ConceptDetail is the reader-facing slice assembled into context bundles.
type ConceptDetail struct {
	NodeID      string   `json:"node_id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Domain      string   `json:"domain,omitempty"`
	Degree      int      `json:"degree"`
	Resources   []string `json:"resources,omitempty"`
}

// ConceptHit is a scored semantic-search result.
type ConceptHit struct {
	NodeID string  `json:"node_id"`
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
}

// ConceptUpsert is the write shape produced by ingestion.
type ConceptUpsert struct {
	Name        string
	Domain      string
	Type        string
	Description string
	Tags        []string
	Aliases     []string
	Source      string
	Embedding   []float32
}

// UpsertOutcome reports whether an upsert created or extended a node.
type UpsertOutcome struct {
	NodeID  string
	Name    string
	Created bool
}
