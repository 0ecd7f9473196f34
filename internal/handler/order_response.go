package handler

import (
	"time"

	"github.com/shinyyama/escrow-backend/internal/model"
)

type OrderItemResponse struct {
	ProductID       uint64 `json:"productId"`
	Name            string `json:"name"`
	Quantity        int64  `json:"quantity"`
	PriceAtPurchase string `json:"priceAtPurchase"`
}

type OrderResponse struct {
	ID                uint64              `json:"id"`
	BuyerUID          string              `json:"buyerUid"`
	SellerUID         string              `json:"sellerUid"`
	TotalAmount       string              `json:"totalAmount"`
	Currency          string              `json:"currency"`
	ShippingAddress   string              `json:"shippingAddress"`
	Status            string              `json:"status"`
	Source            string              `json:"source"`
	CheckoutSessionID *string             `json:"checkoutSessionId,omitempty"`
	CancelReason      string              `json:"cancelReason,omitempty"`
	Items             []OrderItemResponse `json:"items"`
	PaidAt            *string             `json:"paidAt,omitempty"`
	ShippedAt         *string             `json:"shippedAt,omitempty"`
	DeliveredAt       *string             `json:"deliveredAt,omitempty"`
	CompletedAt       *string             `json:"completedAt,omitempty"`
	CancelledAt       *string             `json:"cancelledAt,omitempty"`
	CreatedAt         string              `json:"createdAt"`
	UpdatedAt         string              `json:"updatedAt"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	val := t.Format(time.RFC3339)
	return &val
}

func toOrderResponse(o *model.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemResponse{
			ProductID:       it.ProductID,
			Name:            it.Name,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.PriceAtPurchase.StringFixed(2),
		})
	}
	return OrderResponse{
		ID:                o.ID,
		BuyerUID:          o.BuyerUID,
		SellerUID:         o.SellerUID,
		TotalAmount:       o.TotalAmount.StringFixed(2),
		Currency:          o.Currency,
		ShippingAddress:   o.ShippingAddress,
		Status:            string(o.Status),
		Source:            string(o.Source),
		CheckoutSessionID: o.CheckoutSessionID,
		CancelReason:      o.CancelReason,
		Items:             items,
		PaidAt:            formatTime(o.PaidAt),
		ShippedAt:         formatTime(o.ShippedAt),
		DeliveredAt:       formatTime(o.DeliveredAt),
		CompletedAt:       formatTime(o.CompletedAt),
		CancelledAt:       formatTime(o.CancelledAt),
		CreatedAt:         o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         o.UpdatedAt.Format(time.RFC3339),
	}
}

func toOrderList(list []model.Order) []OrderResponse {
	resp := make([]OrderResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toOrderResponse(&list[i]))
	}
	return resp
}

type EscrowResponse struct {
	OrderID      uint64  `json:"orderId"`
	SellerUID    string  `json:"sellerUid"`
	BuyerUID     string  `json:"buyerUid"`
	TotalAmount  string  `json:"totalAmount"`
	PlatformFee  string  `json:"platformFee"`
	NetAmount    string  `json:"netAmount"`
	Currency     string  `json:"currency"`
	Status       string  `json:"status"`
	RefundReason string  `json:"refundReason,omitempty"`
	HeldAt       string  `json:"heldAt"`
	ReleasedAt   *string `json:"releasedAt,omitempty"`
	RefundedAt   *string `json:"refundedAt,omitempty"`
}

func toEscrowResponse(e *model.EscrowTransaction) EscrowResponse {
	return EscrowResponse{
		OrderID:      e.OrderID,
		SellerUID:    e.SellerUID,
		BuyerUID:     e.BuyerUID,
		TotalAmount:  e.TotalAmount.StringFixed(2),
		PlatformFee:  e.PlatformFee.StringFixed(2),
		NetAmount:    e.NetAmount.StringFixed(2),
		Currency:     e.Currency,
		Status:       string(e.Status),
		RefundReason: e.RefundReason,
		HeldAt:       e.HeldAt.Format(time.RFC3339),
		ReleasedAt:   formatTime(e.ReleasedAt),
		RefundedAt:   formatTime(e.RefundedAt),
	}
}

type WalletResponse struct {
	SellerUID        string `json:"sellerUid"`
	PendingBalance   string `json:"pendingBalance"`
	AvailableBalance string `json:"availableBalance"`
	TotalEarned      string `json:"totalEarned"`
	Currency         string `json:"currency"`
}

func toWalletResponse(w *model.Wallet) WalletResponse {
	return WalletResponse{
		SellerUID:        w.SellerUID,
		PendingBalance:   w.PendingBalance.StringFixed(2),
		AvailableBalance: w.AvailableBalance.StringFixed(2),
		TotalEarned:      w.TotalEarned.StringFixed(2),
		Currency:         w.Currency,
	}
}
