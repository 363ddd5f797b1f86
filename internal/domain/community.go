package domain

// Community is a named cluster of concepts with a stored summary embedding.
type Community struct {
	CommunityID      string    `json:"community_id"`
	GraphID          string    `json:"graph_id"`
	Name             string    `json:"name"`
	Summary          string    `json:"summary,omitempty"`
	SummaryEmbedding []float32 `json:"-"`
	BuildVersion     int       `json:"build_version,omitempty"`
}

// CommunityHit is a scored semantic-search result over community summaries.
type CommunityHit struct {
	CommunityID string  `json:"community_id"`
	Name        string  `json:"name"`
	Summary     string  `json:"summary,omitempty"`
	Score       float64 `json:"score"`
}
