package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type EscrowStatus string

const (
	EscrowStatusHeld     EscrowStatus = "held"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusRefunded EscrowStatus = "refunded"
)

// EscrowTransaction tracks buyer funds withheld from the seller until the order is completed or refunded.
type EscrowTransaction struct {
	ID              uint64          `gorm:"primaryKey;autoIncrement"`
	OrderID         uint64          `gorm:"column:order_id;uniqueIndex;not null"`
	SellerUID       string          `gorm:"column:seller_uid;size:128;index;not null"`
	BuyerUID        string          `gorm:"column:buyer_uid;size:128;index;not null"`
	TotalAmount     decimal.Decimal `gorm:"column:total_amount;type:decimal(20,2);not null"`
	PlatformFee     decimal.Decimal `gorm:"column:platform_fee;type:decimal(20,2);not null"`
	NetAmount       decimal.Decimal `gorm:"column:net_amount;type:decimal(20,2);not null"`
	Currency        string          `gorm:"column:currency;size:8;not null"`
	Status          EscrowStatus    `gorm:"column:status;size:16;index;not null"`
	PaymentIntentID string          `gorm:"column:payment_intent_id;size:255"`
	RefundID        string          `gorm:"column:refund_id;size:255"`
	RefundReason    string          `gorm:"column:refund_reason;type:text"`
	HeldAt          time.Time       `gorm:"column:held_at;not null"`
	ReleasedAt      *time.Time      `gorm:"column:released_at"`
	RefundedAt      *time.Time      `gorm:"column:refunded_at"`
	CreatedAt       time.Time       `gorm:"autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime"`
}

func (EscrowTransaction) TableName() string {
	return "escrow_transactions"
}
