package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mindfold/mindfold-backend/internal/domain"
	"github.com/mindfold/mindfold-backend/internal/pkg/dbctx"
	apperrors "github.com/mindfold/mindfold-backend/internal/pkg/errors"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
)

// NotesEntryInput is the write shape for one entry inside a section.
type NotesEntryInput struct {
	Body           string
	RelatedNodeIDs []string
}

// NotesSectionInput carries a section heading and its entries in order.
type NotesSectionInput struct {
	Heading string
	Entries []NotesEntryInput
}

type NotesRepo interface {
	CreateDigest(dbc dbctx.Context, digest *domain.NotesDigest, sections []NotesSectionInput) error
	GetDigest(dbc dbctx.Context, tenantID string, id uuid.UUID) (*domain.NotesDigest, []*domain.NotesSection, []*domain.NotesEntry, error)
	ListDigests(dbc dbctx.Context, tenantID, userID string, limit int) ([]*domain.NotesDigest, error)
}

type notesRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNotesRepo(db *gorm.DB, log *logger.Logger) NotesRepo {
	return &notesRepo{
		db:  db,
		log: log.With("repo", "NotesRepo"),
	}
}

func (r *notesRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *notesRepo) CreateDigest(dbc dbctx.Context, digest *domain.NotesDigest, sections []NotesSectionInput) error {
	if digest == nil || digest.TenantID == "" || digest.UserID == "" {
		return fmt.Errorf("create digest: %w", apperrors.ErrInvalidArgument)
	}
	if digest.ID == uuid.Nil {
		digest.ID = uuid.New()
	}
	digest.CreatedAt = time.Now().UTC()
	return r.tx(dbc).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(digest).Error; err != nil {
			return err
		}
		for i, sec := range sections {
			section := domain.NotesSection{
				ID:        uuid.New(),
				DigestID:  digest.ID,
				SortIndex: i,
				Heading:   sec.Heading,
			}
			if err := tx.Create(&section).Error; err != nil {
				return err
			}
			for _, entry := range sec.Entries {
				related, err := json.Marshal(entry.RelatedNodeIDs)
				if err != nil {
					return err
				}
				row := domain.NotesEntry{
					ID:             uuid.New(),
					SectionID:      section.ID,
					Body:           entry.Body,
					RelatedNodeIDs: datatypes.JSON(related),
					CreatedAt:      digest.CreatedAt,
				}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (r *notesRepo) GetDigest(dbc dbctx.Context, tenantID string, id uuid.UUID) (*domain.NotesDigest, []*domain.NotesSection, []*domain.NotesEntry, error) {
	if tenantID == "" || id == uuid.Nil {
		return nil, nil, nil, fmt.Errorf("get digest: %w", apperrors.ErrInvalidArgument)
	}
	var digest domain.NotesDigest
	err := r.tx(dbc).Where("tenant_id = ? AND id = ?", tenantID, id).First(&digest).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil, nil, fmt.Errorf("get digest %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, nil, nil, err
	}
	var sections []*domain.NotesSection
	if err := r.tx(dbc).Where("digest_id = ?", id).Order("sort_index ASC").Find(&sections).Error; err != nil {
		return nil, nil, nil, err
	}
	sectionIDs := make([]uuid.UUID, 0, len(sections))
	for _, sec := range sections {
		sectionIDs = append(sectionIDs, sec.ID)
	}
	var entries []*domain.NotesEntry
	if len(sectionIDs) > 0 {
		if err := r.tx(dbc).Where("section_id IN ?", sectionIDs).Order("created_at ASC, id ASC").Find(&entries).Error; err != nil {
			return nil, nil, nil, err
		}
	}
	return &digest, sections, entries, nil
}

func (r *notesRepo) ListDigests(dbc dbctx.Context, tenantID, userID string, limit int) ([]*domain.NotesDigest, error) {
	if tenantID == "" || userID == "" {
		return nil, fmt.Errorf("list digests: %w", apperrors.ErrInvalidArgument)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []*domain.NotesDigest
	err := r.tx(dbc).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
