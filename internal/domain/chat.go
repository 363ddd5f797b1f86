package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ChatSession is relational chat-history state (the graph holds no chat data).
type ChatSession struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID  string         `gorm:"index;not null" json:"tenant_id"`
	UserID    string         `gorm:"index;not null" json:"user_id"`
	GraphID   string         `gorm:"index" json:"graph_id"`
	BranchID  string         `json:"branch_id"`
	Title     string         `json:"title"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (ChatSession) TableName() string { return "chat_session" }

type ChatMessage struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID uuid.UUID      `gorm:"type:uuid;index;not null" json:"session_id"`
	Role      string         `gorm:"not null" json:"role"`
	Content   string         `gorm:"type:text" json:"content"`
	Intent    string         `json:"intent,omitempty"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

func (ChatMessage) TableName() string { return "chat_message" }

// UsageCounter tracks per-tenant call volume for rate accounting.
type UsageCounter struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID  string    `gorm:"uniqueIndex:uq_usage_tenant_kind_day" json:"tenant_id"`
	Kind      string    `gorm:"uniqueIndex:uq_usage_tenant_kind_day" json:"kind"`
	Day       string    `gorm:"uniqueIndex:uq_usage_tenant_kind_day" json:"day"`
	Count     int64     `json:"count"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UsageCounter) TableName() string { return "usage_counter" }

// VoiceSession records voice-surface sessions that layer on the core.
type VoiceSession struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string         `gorm:"index;not null" json:"user_id"`
	TenantID  string         `gorm:"index;not null" json:"tenant_id"`
	GraphID   string         `json:"graph_id"`
	BranchID  string         `json:"branch_id"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   *time.Time     `json:"ended_at,omitempty"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`
}

func (VoiceSession) TableName() string { return "voice_session" }
