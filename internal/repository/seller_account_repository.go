package repository

import (
	"context"

	"github.com/shinyyama/escrow-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SellerAccountRepository interface {
	Get(ctx context.Context, sellerUID string) (*model.SellerAccount, error)
	Upsert(ctx context.Context, a *model.SellerAccount) error
	UpdateOnboardingStatus(ctx context.Context, sellerUID string, status model.OnboardingStatus) error
	SetDB(db *gorm.DB)
}

type sellerAccountRepository struct {
	db *gorm.DB
}

func NewSellerAccountRepository(db *gorm.DB) SellerAccountRepository {
	return &sellerAccountRepository{db: db}
}

func (r *sellerAccountRepository) Get(ctx context.Context, sellerUID string) (*model.SellerAccount, error) {
	var a model.SellerAccount
	if err := r.db.WithContext(ctx).Where("seller_uid = ?", sellerUID).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *sellerAccountRepository) Upsert(ctx context.Context, a *model.SellerAccount) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "seller_uid"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "connect_account_id", "onboarding_status", "updated_at"}),
	}).Create(a).Error
}

func (r *sellerAccountRepository) UpdateOnboardingStatus(ctx context.Context, sellerUID string, status model.OnboardingStatus) error {
	return r.db.WithContext(ctx).
		Model(&model.SellerAccount{}).
		Where("seller_uid = ?", sellerUID).
		Update("onboarding_status", status).Error
}

func (r *sellerAccountRepository) SetDB(db *gorm.DB) {
	r.db = db
}
