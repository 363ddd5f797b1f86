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

type MessageRepo interface {
	Append(dbc dbctx.Context, rows []*domain.ChatMessage) error
	ListBySession(dbc dbctx.Context, sessionID uuid.UUID, limit int) ([]*domain.ChatMessage, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return &messageRepo{
		db:  db,
		log: log.With("repo", "MessageRepo"),
	}
}

func (r *messageRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *messageRepo) Append(dbc dbctx.Context, rows []*domain.ChatMessage) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row == nil || row.SessionID == uuid.Nil {
			return fmt.Errorf("append messages: %w", apperrors.ErrInvalidArgument)
		}
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
	}
	return r.tx(dbc).Create(&rows).Error
}

func (r *messageRepo) ListBySession(dbc dbctx.Context, sessionID uuid.UUID, limit int) ([]*domain.ChatMessage, error) {
	if sessionID == uuid.Nil {
		return nil, fmt.Errorf("list messages: %w", apperrors.ErrInvalidArgument)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []*domain.ChatMessage
	err := r.tx(dbc).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
