package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mindfold/mindfold-backend/internal/domain"
	"github.com/mindfold/mindfold-backend/internal/pkg/dbctx"
	apperrors "github.com/mindfold/mindfold-backend/internal/pkg/errors"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
)

type UsageRepo interface {
	Increment(dbc dbctx.Context, tenantID, kind string, delta int64) error
	CountForDay(dbc dbctx.Context, tenantID, kind string, day string) (int64, error)
}

type usageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUsageRepo(db *gorm.DB, log *logger.Logger) UsageRepo {
	return &usageRepo{
		db:  db,
		log: log.With("repo", "UsageRepo"),
	}
}

func (r *usageRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

// Increment bumps the per-tenant counter for today, creating the row on first
// use. Concurrent increments resolve through the unique key.
func (r *usageRepo) Increment(dbc dbctx.Context, tenantID, kind string, delta int64) error {
	if tenantID == "" || kind == "" {
		return fmt.Errorf("increment usage: %w", apperrors.ErrInvalidArgument)
	}
	if delta <= 0 {
		delta = 1
	}
	now := time.Now().UTC()
	row := domain.UsageCounter{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Kind:      kind,
		Day:       now.Format("2006-01-02"),
		Count:     delta,
		UpdatedAt: now,
	}
	return r.tx(dbc).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "kind"}, {Name: "day"}},
		DoUpdates: clause.Assignments(map[string]any{
			"count":      gorm.Expr("usage_counter.count + ?", delta),
			"updated_at": now,
		}),
	}).Create(&row).Error
}

func (r *usageRepo) CountForDay(dbc dbctx.Context, tenantID, kind string, day string) (int64, error) {
	if tenantID == "" || kind == "" {
		return 0, fmt.Errorf("count usage: %w", apperrors.ErrInvalidArgument)
	}
	if day == "" {
		day = time.Now().UTC().Format("2006-01-02")
	}
	var row domain.UsageCounter
	err := r.tx(dbc).
		Where("tenant_id = ? AND kind = ? AND day = ?", tenantID, kind, day).
		First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.Count, nil
}
