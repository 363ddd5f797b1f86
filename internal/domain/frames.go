package domain

// StreamFrame is one typed frame of the streaming answer protocol.
type StreamFrame struct {
	Type       string         `json:"type"` // chunk | tool_status | actions | done | error
	Delta      string         `json:"delta,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	ToolStatus string         `json:"tool_status,omitempty"`
	Actions    []Suggestion   `json:"actions,omitempty"`
	Error      string         `json:"error,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// TelemetryEvent is emitted after every retrieval.
type TelemetryEvent struct {
	GraphID      string         `json:"graph_id"`
	BranchID     string         `json:"branch_id"`
	Question     string         `json:"question"`
	CommunityIDs []string       `json:"community_ids"`
	ClaimIDs     []string       `json:"claim_ids"`
	Sizes        map[string]int `json:"sizes"`
}
