package repository

import (
	"context"

	"github.com/shinyyama/escrow-backend/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WalletRepository interface {
	Get(ctx context.Context, sellerUID string) (*model.Wallet, error)
	// AddPending creates the wallet on first use.
	AddPending(ctx context.Context, sellerUID, currency string, amount decimal.Decimal) error
	// Release moves amount from pending to available.
	Release(ctx context.Context, sellerUID string, amount decimal.Decimal) error
	RemovePending(ctx context.Context, sellerUID string, amount decimal.Decimal) error
	// Withdraw records a payout of amount. seq must equal the wallet's current withdrawal sequence.
	Withdraw(ctx context.Context, sellerUID string, seq int64, amount decimal.Decimal) error
	SetDB(db *gorm.DB)
}

type walletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) Get(ctx context.Context, sellerUID string) (*model.Wallet, error) {
	var w model.Wallet
	if err := r.db.WithContext(ctx).Where("seller_uid = ?", sellerUID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *walletRepository) AddPending(ctx context.Context, sellerUID, currency string, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "seller_uid"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"pending_balance": gorm.Expr("pending_balance + ?", amount)}),
	}).Create(&model.Wallet{
		SellerUID:        sellerUID,
		PendingBalance:   amount,
		AvailableBalance: decimal.Zero,
		TotalEarned:      decimal.Zero,
		Currency:         currency,
	}).Error
}

func (r *walletRepository) Release(ctx context.Context, sellerUID string, amount decimal.Decimal) error {
	res := r.db.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("seller_uid = ? AND pending_balance >= ?", sellerUID, amount).
		Updates(map[string]interface{}{
			"pending_balance":   gorm.Expr("pending_balance - ?", amount),
			"available_balance": gorm.Expr("available_balance + ?", amount),
		})
	return affected(res)
}

func (r *walletRepository) RemovePending(ctx context.Context, sellerUID string, amount decimal.Decimal) error {
	res := r.db.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("seller_uid = ? AND pending_balance >= ?", sellerUID, amount).
		Update("pending_balance", gorm.Expr("pending_balance - ?", amount))
	return affected(res)
}

func (r *walletRepository) Withdraw(ctx context.Context, sellerUID string, seq int64, amount decimal.Decimal) error {
	res := r.db.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("seller_uid = ? AND withdrawal_seq = ? AND available_balance >= ?", sellerUID, seq, amount).
		Updates(map[string]interface{}{
			"available_balance": gorm.Expr("available_balance - ?", amount),
			"total_earned":      gorm.Expr("total_earned + ?", amount),
			"withdrawal_seq":    gorm.Expr("withdrawal_seq + 1"),
		})
	return affected(res)
}

func (r *walletRepository) SetDB(db *gorm.DB) {
	r.db = db
}
