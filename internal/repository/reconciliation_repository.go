package repository

import (
	"context"

	"github.com/shinyyama/escrow-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReconciliationRepository interface {
	// Record is a no-op when an entry with the same kind and reference already exists.
	Record(ctx context.Context, rec *model.Reconciliation) error
	// Find returns the entry for kind and reference whether or not it has been resolved.
	Find(ctx context.Context, kind model.ReconciliationKind, reference string) (*model.Reconciliation, error)
	ListUnresolved(ctx context.Context, limit int) ([]model.Reconciliation, error)
	MarkResolved(ctx context.Context, ids []uint64) (int64, error)
	SetDB(db *gorm.DB)
}

type reconciliationRepository struct {
	db *gorm.DB
}

func NewReconciliationRepository(db *gorm.DB) ReconciliationRepository {
	return &reconciliationRepository{db: db}
}

func (r *reconciliationRepository) Record(ctx context.Context, rec *model.Reconciliation) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec).Error
}

func (r *reconciliationRepository) Find(ctx context.Context, kind model.ReconciliationKind, reference string) (*model.Reconciliation, error) {
	var rec model.Reconciliation
	if err := r.db.WithContext(ctx).Where("kind = ? AND reference = ?", kind, reference).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *reconciliationRepository) ListUnresolved(ctx context.Context, limit int) ([]model.Reconciliation, error) {
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	var list []model.Reconciliation
	if err := r.db.WithContext(ctx).
		Where("resolved_at IS NULL").
		Order("id ASC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *reconciliationRepository) MarkResolved(ctx context.Context, ids []uint64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&model.Reconciliation{}).
		Where("id IN ? AND resolved_at IS NULL", ids).
		Update("resolved_at", r.db.NowFunc())
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *reconciliationRepository) SetDB(db *gorm.DB) {
	r.db = db
}
