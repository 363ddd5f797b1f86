package domain

import "time"

// AiBackgroundTask is a queued ingestion or extraction job handed to the
// bounded background queue. Distinct from ScheduledTask, which is a timer.
type AiBackgroundTask struct {
	TaskID     string    `json:"task_id"`
	Kind       string    `json:"kind"`
	GraphID    string    `json:"graph_id"`
	BranchID   string    `json:"branch_id"`
	RunID      string    `json:"run_id,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// ScheduledTask is a recurring maintenance timer (cache sweeps, refresh
// checks). MaxAge is normalized to whole seconds at the boundary.
type ScheduledTask struct {
	Name     string        `json:"name"`
	Interval time.Duration `json:"interval"`
	MaxAge   time.Duration `json:"max_age"`
}
