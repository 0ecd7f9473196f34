package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderSource string

const (
	// OrderSourceCheckout orders are created when a gateway checkout is confirmed as paid.
	OrderSourceCheckout OrderSource = "checkout"
	// OrderSourceManual orders start as pending without payment (legacy/manual flow).
	OrderSourceManual OrderSource = "manual"
)

type Order struct {
	ID                uint64          `gorm:"primaryKey;autoIncrement"`
	BuyerUID          string          `gorm:"column:buyer_uid;size:128;index;not null"`
	SellerUID         string          `gorm:"column:seller_uid;size:128;index;not null"`
	TotalAmount       decimal.Decimal `gorm:"column:total_amount;type:decimal(20,2);not null"`
	Currency          string          `gorm:"column:currency;size:8;not null"`
	ShippingAddress   string          `gorm:"column:shipping_address;type:text;not null"`
	Status            OrderStatus     `gorm:"column:status;size:32;index;not null"`
	Source            OrderSource     `gorm:"column:source;size:16;not null"`
	CheckoutSessionID *string         `gorm:"column:checkout_session_id;size:255;uniqueIndex"`
	PaymentIntentID   string          `gorm:"column:payment_intent_id;size:255"`
	CancelReason      string          `gorm:"column:cancel_reason;type:text"`
	Items             []OrderItem     `gorm:"foreignKey:OrderID"`
	PaidAt            *time.Time      `gorm:"column:paid_at"`
	ShippedAt         *time.Time      `gorm:"column:shipped_at"`
	DeliveredAt       *time.Time      `gorm:"column:delivered_at"`
	CompletedAt       *time.Time      `gorm:"column:completed_at"`
	CancelledAt       *time.Time      `gorm:"column:cancelled_at"`
	CreatedAt         time.Time       `gorm:"autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime"`
}

func (Order) TableName() string {
	return "orders"
}

// ItemsTotal sums quantity * priceAtPurchase over the order's items.
func (o *Order) ItemsTotal() decimal.Decimal {
	return SumItems(o.Items)
}

type OrderItem struct {
	ID              uint64          `gorm:"primaryKey;autoIncrement"`
	OrderID         uint64          `gorm:"column:order_id;index;not null"`
	Position        int             `gorm:"column:position;not null"`
	ProductID       uint64          `gorm:"column:product_id;index;not null"`
	Name            string          `gorm:"column:name;size:255"`
	Quantity        int64           `gorm:"column:quantity;not null"`
	PriceAtPurchase decimal.Decimal `gorm:"column:price_at_purchase;type:decimal(20,2);not null"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.PriceAtPurchase.Mul(decimal.NewFromInt(i.Quantity))
}

func SumItems(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total
}
