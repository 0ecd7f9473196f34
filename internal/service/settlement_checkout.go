package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shinyyama/escrow-backend/internal/model"
	"github.com/shinyyama/escrow-backend/internal/payment"
	"github.com/shinyyama/escrow-backend/internal/repository"
	"github.com/shinyyama/escrow-backend/internal/reqctx"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"
)

const (
	metaBuyerUID        = "buyer_uid"
	metaSellerUID       = "seller_uid"
	metaShippingAddress = "shipping_address"
	metaItems           = "items"
	metaOrderID         = "order_id"

	// maxMetadataValue is the processor's limit on a single metadata value.
	maxMetadataValue = 500
)

// sessionItem is the compact per-line record carried in checkout session metadata.
type sessionItem struct {
	ProductID uint64          `json:"pid"`
	Quantity  int64           `json:"qty"`
	Price     decimal.Decimal `json:"price"`
}

func validateCart(buyerUID string, req CartRequest) error {
	if buyerUID == "" {
		return fmt.Errorf("%w: buyer is required", ErrValidation)
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: cart is empty", ErrValidation)
	}
	address := strings.TrimSpace(req.ShippingAddress)
	if address == "" {
		return fmt.Errorf("%w: shipping address is required", ErrValidation)
	}
	if utf8.RuneCountInString(address) > maxMetadataValue {
		return fmt.Errorf("%w: shipping address is longer than %d characters", ErrValidation, maxMetadataValue)
	}
	seen := make(map[uint64]struct{}, len(req.Items))
	for _, it := range req.Items {
		if it.ProductID == 0 {
			return fmt.Errorf("%w: product id is required", ErrValidation)
		}
		if it.Quantity < 1 {
			return fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
		}
		if _, dup := seen[it.ProductID]; dup {
			return fmt.Errorf("%w: product %d listed twice", ErrValidation, it.ProductID)
		}
		seen[it.ProductID] = struct{}{}
	}
	return nil
}

// priceCart checks availability against current stock and snapshots prices into order items.
// Stock is checked here, not reserved.
func (s *settlementService) priceCart(ctx context.Context, buyerUID string, req CartRequest) ([]model.OrderItem, string, decimal.Decimal, error) {
	if err := validateCart(buyerUID, req); err != nil {
		return nil, "", decimal.Zero, err
	}
	ids := make([]uint64, 0, len(req.Items))
	for _, it := range req.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.store.Products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, "", decimal.Zero, err
	}

	var sellerUID string
	items := make([]model.OrderItem, 0, len(req.Items))
	for i, it := range req.Items {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, "", decimal.Zero, fmt.Errorf("%w: product %d", ErrNotFound, it.ProductID)
		}
		if it.Quantity > p.StockQty {
			return nil, "", decimal.Zero, fmt.Errorf("%w: product %d has %d left", ErrOutOfStock, p.ID, p.StockQty)
		}
		if sellerUID == "" {
			sellerUID = p.SellerUID
		} else if p.SellerUID != sellerUID {
			return nil, "", decimal.Zero, fmt.Errorf("%w: all items must come from one seller", ErrValidation)
		}
		items = append(items, model.OrderItem{
			Position:        i,
			ProductID:       p.ID,
			Name:            p.Title,
			Quantity:        it.Quantity,
			PriceAtPurchase: p.Price,
		})
	}
	if sellerUID == buyerUID {
		return nil, "", decimal.Zero, fmt.Errorf("%w: cannot buy your own product", ErrValidation)
	}

	total := model.SumItems(items)
	if !total.IsPositive() {
		return nil, "", decimal.Zero, fmt.Errorf("%w: total must be positive", ErrInvalidAmount)
	}
	if req.TotalAmount != nil && !req.TotalAmount.Equal(total) {
		return nil, "", decimal.Zero, fmt.Errorf("%w: expected %s, got %s", ErrInvalidAmount, total.StringFixed(2), req.TotalAmount.StringFixed(2))
	}
	return items, sellerUID, total, nil
}

func lineItems(items []model.OrderItem) []payment.LineItem {
	out := make([]payment.LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, payment.LineItem{
			ProductID:  it.ProductID,
			Name:       it.Name,
			UnitAmount: payment.ToMinorUnits(it.PriceAtPurchase),
			Quantity:   it.Quantity,
		})
	}
	return out
}

func (s *settlementService) InitiateCheckout(ctx context.Context, buyerUID string, req CartRequest) (*CheckoutResult, error) {
	items, sellerUID, total, err := s.priceCart(ctx, buyerUID, req)
	if err != nil {
		return nil, err
	}

	meta := make([]sessionItem, 0, len(items))
	for _, it := range items {
		meta = append(meta, sessionItem{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.PriceAtPurchase})
	}
	encoded, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	if len(encoded) > maxMetadataValue {
		return nil, fmt.Errorf("%w: cart has too many lines for one checkout", ErrValidation)
	}

	cs, err := s.gateway.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		LineItems: lineItems(items),
		Currency:  s.currency,
		Metadata: map[string]string{
			metaBuyerUID:        buyerUID,
			metaSellerUID:       sellerUID,
			metaShippingAddress: strings.TrimSpace(req.ShippingAddress),
			metaItems:           string(encoded),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open checkout for %s: %w", buyerUID, err)
	}
	logs.Infof("checkout opened session=%s buyer=%s seller=%s total=%s rid=%s", cs.ID, buyerUID, sellerUID, total.StringFixed(2), reqctx.RID(ctx))
	return &CheckoutResult{CheckoutURL: cs.URL, SessionID: cs.ID, TotalAmount: total}, nil
}

// ConfirmPayment turns a paid checkout session into a paid order with held escrow.
// Confirming the same session again returns the order created the first time. A session
// that failed to settle stays failed with ErrReconciliationPending.
func (s *settlementService) ConfirmPayment(ctx context.Context, sessionID string) (*model.Order, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrValidation)
	}
	sess, err := s.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("retrieve session %s: %w", sessionID, err)
	}
	if !sess.Paid() {
		return nil, fmt.Errorf("%w: session %s is %s", ErrPaymentNotCompleted, sessionID, sess.PaymentStatus)
	}
	if o, ok, err := s.findConfirmed(ctx, sessionID); err != nil || ok {
		return o, err
	}
	// A session queued for reconciliation belongs to the operator, even once resolved.
	rec, err := s.store.Reconciliations.Find(ctx, model.ReconcileConfirmPayment, sessionID)
	if err == nil {
		return nil, fmt.Errorf("%w: %w: session %s was queued at %s", ErrSettlementFailed, ErrReconciliationPending, sessionID, rec.CreatedAt.UTC().Format(time.RFC3339))
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if raw := sess.Metadata[metaOrderID]; raw != "" {
		return s.confirmPendingOrder(ctx, sess, raw)
	}
	return s.confirmCheckout(ctx, sess)
}

func (s *settlementService) findConfirmed(ctx context.Context, sessionID string) (*model.Order, bool, error) {
	o, err := s.store.Orders.FindBySessionID(ctx, sessionID)
	if err == nil {
		return o, true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	return nil, false, err
}

func (s *settlementService) confirmCheckout(ctx context.Context, sess *payment.Session) (*model.Order, error) {
	paid := payment.FromMinorUnits(sess.AmountTotal)
	fail := func(cause error) (*model.Order, error) {
		if o, ok, _ := s.findConfirmed(ctx, sess.ID); ok {
			return o, nil
		}
		s.reconciler.record(ctx, model.ReconcileConfirmPayment, sess.ID, sess.PaymentIntentID, paid, cause)
		return nil, settlementFailure(cause)
	}

	buyerUID, sellerUID := sess.Metadata[metaBuyerUID], sess.Metadata[metaSellerUID]
	address := sess.Metadata[metaShippingAddress]
	var lines []sessionItem
	if err := json.Unmarshal([]byte(sess.Metadata[metaItems]), &lines); err != nil || len(lines) == 0 || buyerUID == "" || sellerUID == "" {
		return fail(fmt.Errorf("%w: session %s carries malformed metadata", ErrValidation, sess.ID))
	}

	ids := make([]uint64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := s.store.Products.FindByIDs(ctx, ids)
	if err != nil {
		return fail(err)
	}
	items := make([]model.OrderItem, 0, len(lines))
	for i, l := range lines {
		items = append(items, model.OrderItem{
			Position:        i,
			ProductID:       l.ProductID,
			Name:            products[l.ProductID].Title,
			Quantity:        l.Quantity,
			PriceAtPurchase: l.Price,
		})
	}
	total := model.SumItems(items)
	if payment.ToMinorUnits(total) != sess.AmountTotal {
		return fail(fmt.Errorf("%w: items total %s does not match captured %s", ErrInvalidAmount, total.StringFixed(2), paid.StringFixed(2)))
	}

	fee, net := SplitFee(total, s.feeRate)
	now := s.now()
	sid := sess.ID
	order := &model.Order{
		BuyerUID:          buyerUID,
		SellerUID:         sellerUID,
		TotalAmount:       total,
		Currency:          s.currency,
		ShippingAddress:   address,
		Status:            model.OrderStatusPaid,
		Source:            model.OrderSourceCheckout,
		CheckoutSessionID: &sid,
		PaymentIntentID:   sess.PaymentIntentID,
		Items:             items,
		PaidAt:            &now,
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := takeStock(ctx, tx, items); err != nil {
			return err
		}
		if err := tx.Orders.Create(ctx, order); err != nil {
			return err
		}
		return holdFunds(ctx, tx, order, sess.PaymentIntentID, fee, net, now)
	})
	if err != nil {
		return fail(err)
	}

	logs.Infof("payment confirmed session=%s order=%d total=%s fee=%s net=%s rid=%s",
		sid, order.ID, total.StringFixed(2), fee.StringFixed(2), net.StringFixed(2), reqctx.RID(ctx))
	s.notify(ctx, buyerUID, NotifyOrderPaid, "Payment received", fmt.Sprintf("Order #%d is paid and held in escrow.", order.ID), order.ID)
	s.notify(ctx, sellerUID, NotifyOrderPaid, "New order", fmt.Sprintf("Order #%d is paid. Please prepare it for shipment.", order.ID), order.ID)
	return order, nil
}

func (s *settlementService) confirmPendingOrder(ctx context.Context, sess *payment.Session, rawOrderID string) (*model.Order, error) {
	paid := payment.FromMinorUnits(sess.AmountTotal)
	fail := func(cause error) (*model.Order, error) {
		if o, ok, _ := s.findConfirmed(ctx, sess.ID); ok {
			return o, nil
		}
		s.reconciler.record(ctx, model.ReconcileConfirmPayment, sess.ID, sess.PaymentIntentID, paid, cause)
		return nil, settlementFailure(cause)
	}

	orderID, err := strconv.ParseUint(rawOrderID, 10, 64)
	if err != nil {
		return fail(fmt.Errorf("%w: bad order id %q in session %s", ErrValidation, rawOrderID, sess.ID))
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return fail(err)
	}
	if order.Status != model.OrderStatusPending {
		return fail(fmt.Errorf("%w: order %d is %s", ErrInvalidState, order.ID, order.Status))
	}
	if payment.ToMinorUnits(order.TotalAmount) != sess.AmountTotal {
		return fail(fmt.Errorf("%w: order total %s does not match captured %s", ErrInvalidAmount, order.TotalAmount.StringFixed(2), paid.StringFixed(2)))
	}

	fee, net := SplitFee(order.TotalAmount, s.feeRate)
	now := s.now()
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		err := tx.Orders.UpdateStatus(ctx, order.ID, model.OrderStatusPending, model.OrderStatusPaid, map[string]interface{}{
			"checkout_session_id": sess.ID,
			"payment_intent_id":   sess.PaymentIntentID,
			"paid_at":             now,
		})
		if errors.Is(err, repository.ErrNoRowsAffected) {
			return fmt.Errorf("%w: order %d is no longer pending", ErrInvalidState, order.ID)
		}
		if err != nil {
			return err
		}
		return holdFunds(ctx, tx, order, sess.PaymentIntentID, fee, net, now)
	})
	if err != nil {
		return fail(err)
	}

	updated, err := s.loadOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	logs.Infof("pending order paid session=%s order=%d fee=%s net=%s rid=%s", sess.ID, order.ID, fee.StringFixed(2), net.StringFixed(2), reqctx.RID(ctx))
	s.notify(ctx, order.SellerUID, NotifyOrderPaid, "New order", fmt.Sprintf("Order #%d is paid. Please prepare it for shipment.", order.ID), order.ID)
	return updated, nil
}

func takeStock(ctx context.Context, tx *repository.Store, items []model.OrderItem) error {
	for _, it := range items {
		err := tx.Products.DecrementStock(ctx, it.ProductID, it.Quantity)
		if errors.Is(err, repository.ErrNoRowsAffected) {
			return fmt.Errorf("%w: product %d", ErrInsufficientStock, it.ProductID)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func holdFunds(ctx context.Context, tx *repository.Store, order *model.Order, paymentIntentID string, fee, net decimal.Decimal, now time.Time) error {
	escrow := &model.EscrowTransaction{
		OrderID:         order.ID,
		SellerUID:       order.SellerUID,
		BuyerUID:        order.BuyerUID,
		TotalAmount:     order.TotalAmount,
		PlatformFee:     fee,
		NetAmount:       net,
		Currency:        order.Currency,
		Status:          model.EscrowStatusHeld,
		PaymentIntentID: paymentIntentID,
		HeldAt:          now,
	}
	if err := tx.Escrows.Create(ctx, escrow); err != nil {
		return err
	}
	return tx.Wallets.AddPending(ctx, order.SellerUID, order.Currency, net)
}

// CreatePendingOrder reserves stock and records an unpaid manual order.
// Payment happens later through InitiatePendingOrderCheckout.
func (s *settlementService) CreatePendingOrder(ctx context.Context, buyerUID string, req CartRequest) (*model.Order, error) {
	items, sellerUID, total, err := s.priceCart(ctx, buyerUID, req)
	if err != nil {
		return nil, err
	}
	order := &model.Order{
		BuyerUID:        buyerUID,
		SellerUID:       sellerUID,
		TotalAmount:     total,
		Currency:        s.currency,
		ShippingAddress: strings.TrimSpace(req.ShippingAddress),
		Status:          model.OrderStatusPending,
		Source:          model.OrderSourceManual,
		Items:           items,
	}
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := takeStock(ctx, tx, items); err != nil {
			return err
		}
		return tx.Orders.Create(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	logs.Infof("pending order created order=%d buyer=%s total=%s rid=%s", order.ID, buyerUID, total.StringFixed(2), reqctx.RID(ctx))
	return order, nil
}

func (s *settlementService) InitiatePendingOrderCheckout(ctx context.Context, orderID uint64, buyerUID string) (*CheckoutResult, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerUID != buyerUID {
		return nil, ErrForbidden
	}
	if order.Status != model.OrderStatusPending {
		return nil, fmt.Errorf("%w: order %d is %s", ErrInvalidState, order.ID, order.Status)
	}
	cs, err := s.gateway.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		LineItems: lineItems(order.Items),
		Currency:  order.Currency,
		Metadata: map[string]string{
			metaOrderID:   strconv.FormatUint(order.ID, 10),
			metaBuyerUID:  order.BuyerUID,
			metaSellerUID: order.SellerUID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open checkout for order %d: %w", order.ID, err)
	}
	return &CheckoutResult{CheckoutURL: cs.URL, SessionID: cs.ID, TotalAmount: order.TotalAmount, OrderID: order.ID}, nil
}
