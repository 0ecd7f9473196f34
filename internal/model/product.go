package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement"`
	SellerUID string          `gorm:"column:seller_uid;size:128;index;not null"`
	Title     string          `gorm:"size:120;not null"`
	ImageURL  *string         `gorm:"size:512"`
	Price     decimal.Decimal `gorm:"column:price;type:decimal(20,2);not null"`
	StockQty  int64           `gorm:"column:stock_qty;not null;default:0"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime"`
}

func (Product) TableName() string {
	return "products"
}
