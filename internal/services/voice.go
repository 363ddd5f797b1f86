package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	chatrepo "github.com/mindfold/mindfold-backend/internal/data/repos/chat"
	"github.com/mindfold/mindfold-backend/internal/domain"
	"github.com/mindfold/mindfold-backend/internal/pkg/dbctx"
	apperrors "github.com/mindfold/mindfold-backend/internal/pkg/errors"
	"github.com/mindfold/mindfold-backend/internal/platform/ctxutil"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
)

// VoiceService records voice-surface sessions layered on the chat core.
type VoiceService interface {
	Start(ctx context.Context, scope domain.Scope) (*domain.VoiceSession, error)
	End(ctx context.Context, sessionID uuid.UUID) error
	List(ctx context.Context, limit int) ([]*domain.VoiceSession, error)
}

type voiceService struct {
	voice chatrepo.VoiceRepo
	log   *logger.Logger
}

func NewVoiceService(voice chatrepo.VoiceRepo, log *logger.Logger) VoiceService {
	return &voiceService{
		voice: voice,
		log:   log.With("service", "VoiceService"),
	}
}

func (s *voiceService) Start(ctx context.Context, scope domain.Scope) (*domain.VoiceSession, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.TenantID == "" {
		return nil, fmt.Errorf("start voice: %w", apperrors.ErrUnauthorized)
	}
	row := &domain.VoiceSession{
		ID:        uuid.New(),
		UserID:    rd.UserID,
		TenantID:  rd.TenantID,
		GraphID:   scope.GraphID,
		BranchID:  scope.BranchID,
		StartedAt: time.Now().UTC(),
	}
	if err := s.voice.Start(dbctx.Context{Ctx: ctx}, row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *voiceService) End(ctx context.Context, sessionID uuid.UUID) error {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.TenantID == "" {
		return fmt.Errorf("end voice: %w", apperrors.ErrUnauthorized)
	}
	return s.voice.End(dbctx.Context{Ctx: ctx}, rd.TenantID, sessionID)
}

func (s *voiceService) List(ctx context.Context, limit int) ([]*domain.VoiceSession, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.TenantID == "" {
		return nil, fmt.Errorf("list voice: %w", apperrors.ErrUnauthorized)
	}
	return s.voice.ListByUser(dbctx.Context{Ctx: ctx}, rd.TenantID, rd.UserID, limit)
}
