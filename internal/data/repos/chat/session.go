package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mindfold/mindfold-backend/internal/domain"
	"github.com/mindfold/mindfold-backend/internal/pkg/dbctx"
	apperrors "github.com/mindfold/mindfold-backend/internal/pkg/errors"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
)

type SessionRepo interface {
	Create(dbc dbctx.Context, row *domain.ChatSession) error
	GetByID(dbc dbctx.Context, tenantID string, id uuid.UUID) (*domain.ChatSession, error)
	ListByUser(dbc dbctx.Context, tenantID, userID string, limit int) ([]*domain.ChatSession, error)
	Rename(dbc dbctx.Context, tenantID string, id uuid.UUID, title string) error
	Delete(dbc dbctx.Context, tenantID string, id uuid.UUID) error
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, log *logger.Logger) SessionRepo {
	return &sessionRepo{
		db:  db,
		log: log.With("repo", "SessionRepo"),
	}
}

func (r *sessionRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *sessionRepo) Create(dbc dbctx.Context, row *domain.ChatSession) error {
	if row == nil || row.TenantID == "" || row.UserID == "" {
		return fmt.Errorf("create session: %w", apperrors.ErrInvalidArgument)
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	now := time.Now().UTC()
	row.CreatedAt = now
	row.UpdatedAt = now
	return r.tx(dbc).Create(row).Error
}

func (r *sessionRepo) GetByID(dbc dbctx.Context, tenantID string, id uuid.UUID) (*domain.ChatSession, error) {
	if tenantID == "" || id == uuid.Nil {
		return nil, fmt.Errorf("get session: %w", apperrors.ErrInvalidArgument)
	}
	var out domain.ChatSession
	err := r.tx(dbc).Where("tenant_id = ? AND id = ?", tenantID, id).First(&out).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("get session %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *sessionRepo) ListByUser(dbc dbctx.Context, tenantID, userID string, limit int) ([]*domain.ChatSession, error) {
	if tenantID == "" || userID == "" {
		return nil, fmt.Errorf("list sessions: %w", apperrors.ErrInvalidArgument)
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var out []*domain.ChatSession
	err := r.tx(dbc).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *sessionRepo) Rename(dbc dbctx.Context, tenantID string, id uuid.UUID, title string) error {
	title = strings.TrimSpace(title)
	if tenantID == "" || id == uuid.Nil || title == "" {
		return fmt.Errorf("rename session: %w", apperrors.ErrInvalidArgument)
	}
	res := r.tx(dbc).
		Model(&domain.ChatSession{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(map[string]any{"title": title, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("rename session %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func (r *sessionRepo) Delete(dbc dbctx.Context, tenantID string, id uuid.UUID) error {
	if tenantID == "" || id == uuid.Nil {
		return fmt.Errorf("delete session: %w", apperrors.ErrInvalidArgument)
	}
	return r.tx(dbc).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&domain.ChatMessage{}).Error; err != nil {
			return err
		}
		return tx.Where("tenant_id = ? AND id = ?", tenantID, id).Delete(&domain.ChatSession{}).Error
	})
}
