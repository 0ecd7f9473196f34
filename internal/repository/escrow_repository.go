package repository

import (
	"context"

	"github.com/shinyyama/escrow-backend/internal/model"
	"gorm.io/gorm"
)

type EscrowRepository interface {
	Create(ctx context.Context, e *model.EscrowTransaction) error
	FindByOrderID(ctx context.Context, orderID uint64) (*model.EscrowTransaction, error)
	// Settle moves a held escrow to released or refunded. Non-held rows are left untouched.
	Settle(ctx context.Context, orderID uint64, to model.EscrowStatus, extra map[string]interface{}) error
	SetDB(db *gorm.DB)
}

type escrowRepository struct {
	db *gorm.DB
}

func NewEscrowRepository(db *gorm.DB) EscrowRepository {
	return &escrowRepository{db: db}
}

func (r *escrowRepository) Create(ctx context.Context, e *model.EscrowTransaction) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *escrowRepository) FindByOrderID(ctx context.Context, orderID uint64) (*model.EscrowTransaction, error) {
	var e model.EscrowTransaction
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *escrowRepository) Settle(ctx context.Context, orderID uint64, to model.EscrowStatus, extra map[string]interface{}) error {
	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&model.EscrowTransaction{}).
		Where("order_id = ? AND status = ?", orderID, model.EscrowStatusHeld).
		Updates(updates)
	return affected(res)
}

func (r *escrowRepository) SetDB(db *gorm.DB) {
	r.db = db
}
