package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// NotesDigest and its sections/entries persist digest side-products that
// layer on the core; they reference graph nodes by id only.
type NotesDigest struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID  string         `gorm:"index;not null" json:"tenant_id"`
	UserID    string         `gorm:"index;not null" json:"user_id"`
	GraphID   string         `json:"graph_id"`
	Title     string         `json:"title"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func (NotesDigest) TableName() string { return "notes_digest" }

type NotesSection struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DigestID  uuid.UUID `gorm:"type:uuid;index;not null" json:"digest_id"`
	SortIndex int       `json:"sort_index"`
	Heading   string    `json:"heading"`
}

func (NotesSection) TableName() string { return "notes_section" }

type NotesEntry struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SectionID      uuid.UUID      `gorm:"type:uuid;index;not null" json:"section_id"`
	Body           string         `gorm:"type:text" json:"body"`
	RelatedNodeIDs datatypes.JSON `json:"related_node_ids,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (NotesEntry) TableName() string { return "notes_entry" }
