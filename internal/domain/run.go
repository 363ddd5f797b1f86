package domain

import "time"

type RunStatus string

const (
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunPartial   RunStatus = "PARTIAL"
	RunFailed    RunStatus = "FAILED"
)

// IngestionRun tags every node and edge created during one ingestion pass,
// which is what makes undo-by-run possible.
type IngestionRun struct {
	RunID         string         `json:"run_id"`
	GraphID       string         `json:"graph_id"`
	SourceType    string         `json:"source_type"`
	SourceLabel   string         `json:"source_label"`
	Status        RunStatus      `json:"status"`
	StartedAt     time.Time      `json:"started_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	SummaryCounts map[string]int `json:"summary_counts,omitempty"`
	UndoneAt      *time.Time     `json:"undone_at,omitempty"`
	Errors        []string       `json:"errors,omitempty"`
}
