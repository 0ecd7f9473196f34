package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is the per-seller ledger of pending (escrowed) and available (withdrawable) funds.
type Wallet struct {
	ID               uint64          `gorm:"primaryKey;autoIncrement"`
	SellerUID        string          `gorm:"column:seller_uid;size:128;uniqueIndex;not null"`
	PendingBalance   decimal.Decimal `gorm:"column:pending_balance;type:decimal(20,2);not null;default:0"`
	AvailableBalance decimal.Decimal `gorm:"column:available_balance;type:decimal(20,2);not null;default:0"`
	TotalEarned      decimal.Decimal `gorm:"column:total_earned;type:decimal(20,2);not null;default:0"`
	Currency         string          `gorm:"column:currency;size:8;not null"`
	WithdrawalSeq    int64           `gorm:"column:withdrawal_seq;not null;default:0"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime"`
	CreatedAt        time.Time       `gorm:"autoCreateTime"`
}

func (Wallet) TableName() string {
	return "wallets"
}
