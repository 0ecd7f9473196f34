package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shinyyama/escrow-backend/internal/model"
	"github.com/shinyyama/escrow-backend/internal/payment"
	"github.com/shinyyama/escrow-backend/internal/repository"
	"github.com/shinyyama/escrow-backend/internal/reqctx"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"
)

// SettlementService is the only writer of order status, escrow status and wallet balances.
type SettlementService interface {
	InitiateCheckout(ctx context.Context, buyerUID string, req CartRequest) (*CheckoutResult, error)
	ConfirmPayment(ctx context.Context, sessionID string) (*model.Order, error)
	CreatePendingOrder(ctx context.Context, buyerUID string, req CartRequest) (*model.Order, error)
	InitiatePendingOrderCheckout(ctx context.Context, orderID uint64, buyerUID string) (*CheckoutResult, error)
	CompleteOrder(ctx context.Context, orderID uint64, requesterUID string) (*model.Order, error)
	CancelOrRefund(ctx context.Context, orderID uint64, requesterUID, reason string) (*model.Order, error)
	UpdateStatusBySeller(ctx context.Context, orderID uint64, sellerUID string, target model.OrderStatus) (*model.Order, error)
}

type CartItem struct {
	ProductID uint64 `json:"productId"`
	Quantity  int64  `json:"quantity"`
}

type CartRequest struct {
	Items           []CartItem       `json:"items"`
	ShippingAddress string           `json:"shippingAddress"`
	TotalAmount     *decimal.Decimal `json:"totalAmount,omitempty"`
}

type CheckoutResult struct {
	CheckoutURL string          `json:"checkoutUrl"`
	SessionID   string          `json:"sessionId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	OrderID     uint64          `json:"orderId,omitempty"`
}

type SettlementOptions struct {
	FeeRate  decimal.Decimal
	Currency string
}

type settlementService struct {
	store      *repository.Store
	gateway    payment.Gateway
	notifier   NotificationService
	reconciler reconciler
	feeRate    decimal.Decimal
	currency   string
	now        func() time.Time
}

func NewSettlementService(store *repository.Store, gateway payment.Gateway, notifier NotificationService, opts SettlementOptions) SettlementService {
	currency := strings.ToLower(opts.Currency)
	if currency == "" {
		currency = "usd"
	}
	return &settlementService{
		store:      store,
		gateway:    gateway,
		notifier:   notifier,
		reconciler: reconciler{repo: store.Reconciliations, currency: currency},
		feeRate:    opts.FeeRate,
		currency:   currency,
		now:        time.Now,
	}
}

func (s *settlementService) loadOrder(ctx context.Context, orderID uint64) (*model.Order, error) {
	o, err := s.store.Orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		return nil, err
	}
	return o, nil
}

func (s *settlementService) loadHeldEscrow(ctx context.Context, orderID uint64) (*model.EscrowTransaction, error) {
	e, err := s.store.Escrows.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d has no escrow", ErrEscrowNotHeld, orderID)
		}
		return nil, err
	}
	if e.Status != model.EscrowStatusHeld {
		return nil, fmt.Errorf("%w: escrow for order %d is %s", ErrEscrowNotHeld, orderID, e.Status)
	}
	return e, nil
}

func (s *settlementService) notify(ctx context.Context, userUID, typ, title, body string, orderID uint64) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, userUID, typ, title, body, uint64Ptr(orderID))
}

// reconciler records gateway money movements whose local commit failed.
type reconciler struct {
	repo     repository.ReconciliationRepository
	currency string
}

func (r reconciler) record(ctx context.Context, kind model.ReconciliationKind, reference, paymentIntentID string, amount decimal.Decimal, cause error) {
	logs.Errorf("RECONCILE kind=%s ref=%s pi=%s amount=%s rid=%s, err: %+v",
		kind, reference, paymentIntentID, amount.StringFixed(2), reqctx.RID(ctx), cause)
	rec := &model.Reconciliation{
		Kind:            kind,
		Reference:       reference,
		PaymentIntentID: paymentIntentID,
		Amount:          amount,
		Currency:        r.currency,
		Detail:          cause.Error(),
	}
	if err := r.repo.Record(context.WithoutCancel(ctx), rec); err != nil {
		logs.Errorf("RECONCILE unable to persist entry kind=%s ref=%s, err: %+v", kind, reference, err)
	}
}

func settlementFailure(cause error) error {
	return fmt.Errorf("%w: %w", ErrSettlementFailed, cause)
}
