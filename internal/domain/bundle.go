package domain

// TraceStep is one recorded plan step with parameter and count snapshots.
type TraceStep struct {
	Step   string         `json:"step"`
	Params map[string]any `json:"params,omitempty"`
	Counts map[string]int `json:"counts,omitempty"`
}

// CommunityRef is the community slice included in a context bundle.
type CommunityRef struct {
	CommunityID string `json:"community_id"`
	Name        string `json:"name"`
	Summary     string `json:"summary,omitempty"`
}

// ClaimRef is the claim slice included in a context bundle.
type ClaimRef struct {
	ClaimID      string   `json:"claim_id"`
	Text         string   `json:"text"`
	Confidence   float64  `json:"confidence"`
	Status       string   `json:"status,omitempty"`
	SourceID     string   `json:"source_id,omitempty"`
	ChunkID      string   `json:"chunk_id,omitempty"`
	ConceptNames []string `json:"concept_names,omitempty"`
	EvidenceIDs  []string `json:"evidence_ids,omitempty"`
}

// ChunkRef is the chunk slice included in full-detail responses.
type ChunkRef struct {
	ChunkID  string `json:"chunk_id"`
	SourceID string `json:"source_id,omitempty"`
	Index    int    `json:"index"`
	Text     string `json:"text"`
}

// Subgraph is the concept-plus-edge slice of a context bundle.
type Subgraph struct {
	Concepts []ConceptDetail `json:"concepts"`
	Edges    []Edge          `json:"edges"`
}

// RetrievalDebug carries diagnostic info alongside a bundle.
type RetrievalDebug struct {
	AnchorIDs        []string `json:"anchor_ids,omitempty"`
	SelectedClaimIDs []string `json:"selected_claim_ids,omitempty"`
	PathQueries      int      `json:"path_queries"`
	CandidateCount   int      `json:"candidate_count"`
	Strictness       string   `json:"strictness,omitempty"`
	CommunityCount   int      `json:"community_count"`
	Reason           string   `json:"reason,omitempty"`
}

// ContextBundle is the grounded context the GraphRAG engine hands to the LLM.
type ContextBundle struct {
	Communities []CommunityRef `json:"communities"`
	Claims      []ClaimRef     `json:"claims"`
	Concepts    []ConceptDetail `json:"concepts"`
	Edges       []Edge         `json:"edges"`
	HasEvidence bool           `json:"has_evidence"`
	Debug       RetrievalDebug `json:"debug"`
}

// Suggestion is a follow-up query emitted by plans.
type Suggestion struct {
	Label  string `json:"label"`
	Query  string `json:"query"`
	Intent string `json:"intent"`
}

// RetrievalMeta carries full-length id lists even in summary mode.
type RetrievalMeta struct {
	Communities  int      `json:"communities"`
	Claims       int      `json:"claims"`
	Concepts     int      `json:"concepts"`
	Edges        int      `json:"edges"`
	ClaimIDs     []string `json:"claimIds"`
	CommunityIDs []string `json:"communityIds"`
	TopClaims    []string `json:"topClaims"`
}

// PlanContext is the shaped context section of a plan response.
type PlanContext struct {
	FocusEntities    []ConceptDetail `json:"focus_entities"`
	FocusCommunities []CommunityRef  `json:"focus_communities"`
	Claims           []ClaimRef      `json:"claims"`
	Chunks           []ChunkRef      `json:"chunks,omitempty"`
	Subgraph         *Subgraph       `json:"subgraph,omitempty"`
	SubgraphPreview  *Subgraph       `json:"subgraph_preview,omitempty"`
	RetrievalMeta    RetrievalMeta   `json:"retrieval_meta"`
	Extra            map[string]any  `json:"extra,omitempty"`
}

// PlanResult is the full result of one intent-dispatched retrieval.
type PlanResult struct {
	Intent      Intent       `json:"intent"`
	Trace       []TraceStep  `json:"trace"`
	Context     PlanContext  `json:"context"`
	Suggestions []Suggestion `json:"suggestions"`
	Warnings    []string     `json:"warnings"`
}
