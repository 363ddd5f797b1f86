package domain

// SourceChunk is a contiguous text slice from an ingested document.
type SourceChunk struct {
	ChunkID    string         `json:"chunk_id"`
	GraphID    string         `json:"graph_id"`
	SourceID   string         `json:"source_id"`
	ChunkIndex int            `json:"chunk_index"`
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Quote is a user-anchored text span, the strongest evidence unit. ClaimIDs
// names the claims this quote evidences.
type Quote struct {
	QuoteID    string   `json:"quote_id"`
	GraphID    string   `json:"graph_id"`
	Text       string   `json:"text"`
	Anchor     string   `json:"anchor,omitempty"`
	CapturedAt string   `json:"captured_at,omitempty"`
	UserNote   string   `json:"user_note,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	SourceID   string   `json:"source_id,omitempty"`
	ClaimIDs   []string `json:"claim_ids,omitempty"`
}
