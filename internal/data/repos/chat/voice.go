package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mindfold/mindfold-backend/internal/domain"
	"github.com/mindfold/mindfold-backend/internal/pkg/dbctx"
	apperrors "github.com/mindfold/mindfold-backend/internal/pkg/errors"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
)

type VoiceRepo interface {
	Start(dbc dbctx.Context, row *domain.VoiceSession) error
	End(dbc dbctx.Context, tenantID string, id uuid.UUID) error
	ListByUser(dbc dbctx.Context, tenantID, userID string, limit int) ([]*domain.VoiceSession, error)
}

type voiceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVoiceRepo(db *gorm.DB, log *logger.Logger) VoiceRepo {
	return &voiceRepo{
		db:  db,
		log: log.With("repo", "VoiceRepo"),
	}
}

func (r *voiceRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *voiceRepo) Start(dbc dbctx.Context, row *domain.VoiceSession) error {
	if row == nil || row.TenantID == "" || row.UserID == "" {
		return fmt.Errorf("start voice session: %w", apperrors.ErrInvalidArgument)
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.StartedAt.IsZero() {
		row.StartedAt = time.Now().UTC()
	}
	return r.tx(dbc).Create(row).Error
}

func (r *voiceRepo) End(dbc dbctx.Context, tenantID string, id uuid.UUID) error {
	if tenantID == "" || id == uuid.Nil {
		return fmt.Errorf("end voice session: %w", apperrors.ErrInvalidArgument)
	}
	now := time.Now().UTC()
	res := r.tx(dbc).
		Model(&domain.VoiceSession{}).
		Where("tenant_id = ? AND id = ? AND ended_at IS NULL", tenantID, id).
		Update("ended_at", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("end voice session %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func (r *voiceRepo) ListByUser(dbc dbctx.Context, tenantID, userID string, limit int) ([]*domain.VoiceSession, error) {
	if tenantID == "" || userID == "" {
		return nil, fmt.Errorf("list voice sessions: %w", apperrors.ErrInvalidArgument)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []*domain.VoiceSession
	err := r.tx(dbc).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("started_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
