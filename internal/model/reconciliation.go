package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReconciliationKind string

const (
	ReconcileConfirmPayment ReconciliationKind = "confirm_payment"
	ReconcileRefund         ReconciliationKind = "refund"
	ReconcileWithdrawal     ReconciliationKind = "withdrawal"
)

// Reconciliation records money that moved at the gateway without a matching local commit.
type Reconciliation struct {
	ID              uint64             `gorm:"primaryKey;autoIncrement" json:"id"`
	Kind            ReconciliationKind `gorm:"column:kind;size:32;not null;uniqueIndex:idx_reconcile_ref" json:"kind"`
	Reference       string             `gorm:"column:reference;size:255;not null;uniqueIndex:idx_reconcile_ref" json:"reference"`
	PaymentIntentID string             `gorm:"column:payment_intent_id;size:255" json:"paymentIntentId,omitempty"`
	Amount          decimal.Decimal    `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	Currency        string             `gorm:"column:currency;size:8" json:"currency"`
	Detail          string             `gorm:"column:detail;type:text" json:"detail"`
	ResolvedAt      *time.Time         `gorm:"column:resolved_at" json:"resolvedAt,omitempty"`
	CreatedAt       time.Time          `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time          `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Reconciliation) TableName() string {
	return "reconciliations"
}
