package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shinyyama/escrow-backend/internal/model"
	"github.com/shinyyama/escrow-backend/internal/payment"
	"github.com/shinyyama/escrow-backend/internal/repository"
	"github.com/shinyyama/escrow-backend/internal/reqctx"
	"github.com/yanun0323/logs"
)

// CompleteOrder is the buyer's confirmation of receipt. It releases escrow and makes the
// seller's net amount withdrawable.
func (s *settlementService) CompleteOrder(ctx context.Context, orderID uint64, requesterUID string) (*model.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerUID != requesterUID {
		return nil, ErrForbidden
	}
	if !order.Status.Completable() {
		return nil, fmt.Errorf("%w: order %d is %s", ErrInvalidState, order.ID, order.Status)
	}
	escrow, err := s.loadHeldEscrow(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		err := tx.Orders.UpdateStatus(ctx, order.ID, order.Status, model.OrderStatusCompleted, map[string]interface{}{
			"completed_at": now,
		})
		if errors.Is(err, repository.ErrNoRowsAffected) {
			return fmt.Errorf("%w: order %d changed concurrently", ErrInvalidState, order.ID)
		}
		if err != nil {
			return err
		}
		err = tx.Escrows.Settle(ctx, order.ID, model.EscrowStatusReleased, map[string]interface{}{
			"released_at": now,
		})
		if errors.Is(err, repository.ErrNoRowsAffected) {
			return fmt.Errorf("%w: escrow for order %d already settled", ErrEscrowNotHeld, order.ID)
		}
		if err != nil {
			return err
		}
		if err := tx.Wallets.Release(ctx, order.SellerUID, escrow.NetAmount); err != nil {
			return fmt.Errorf("release %s to wallet %s: %w", escrow.NetAmount.StringFixed(2), order.SellerUID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logs.Infof("order completed order=%d released=%s seller=%s rid=%s", order.ID, escrow.NetAmount.StringFixed(2), order.SellerUID, reqctx.RID(ctx))
	s.notify(ctx, order.SellerUID, NotifyOrderCompleted, "Funds released",
		fmt.Sprintf("Order #%d was completed. %s %s is now available.", order.ID, escrow.NetAmount.StringFixed(2), strings.ToUpper(order.Currency)), order.ID)
	return s.loadOrder(ctx, order.ID)
}

// CancelOrRefund cancels an order. Paid orders are refunded in full through the gateway
// before anything changes locally; unpaid manual orders just release their stock.
func (s *settlementService) CancelOrRefund(ctx context.Context, orderID uint64, requesterUID, reason string) (*model.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerUID != requesterUID {
		return nil, ErrForbidden
	}
	reason = strings.TrimSpace(reason)
	if order.Status == model.OrderStatusPending {
		return s.cancelPending(ctx, order, reason)
	}
	if !order.Status.Cancellable() {
		return nil, fmt.Errorf("%w: order %d is %s", ErrInvalidState, order.ID, order.Status)
	}
	escrow, err := s.loadHeldEscrow(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	refund, err := s.gateway.Refund(ctx, payment.RefundRequest{
		PaymentIntentID: escrow.PaymentIntentID,
		Amount:          payment.ToMinorUnits(escrow.TotalAmount),
		Metadata:        map[string]string{metaOrderID: fmt.Sprint(order.ID)},
		IdempotencyKey:  fmt.Sprintf("refund-order-%d", order.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("refund order %d: %w", order.ID, err)
	}

	now := s.now()
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		err := tx.Orders.UpdateStatus(ctx, order.ID, order.Status, model.OrderStatusCancelled, map[string]interface{}{
			"cancelled_at":  now,
			"cancel_reason": reason,
		})
		if errors.Is(err, repository.ErrNoRowsAffected) {
			return fmt.Errorf("%w: order %d changed concurrently", ErrInvalidState, order.ID)
		}
		if err != nil {
			return err
		}
		err = tx.Escrows.Settle(ctx, order.ID, model.EscrowStatusRefunded, map[string]interface{}{
			"refund_id":     refund.ID,
			"refund_reason": reason,
			"refunded_at":   now,
		})
		if errors.Is(err, repository.ErrNoRowsAffected) {
			return fmt.Errorf("%w: escrow for order %d already settled", ErrEscrowNotHeld, order.ID)
		}
		if err != nil {
			return err
		}
		if err := tx.Wallets.RemovePending(ctx, order.SellerUID, escrow.NetAmount); err != nil {
			return fmt.Errorf("remove %s from wallet %s: %w", escrow.NetAmount.StringFixed(2), order.SellerUID, err)
		}
		return restoreStock(ctx, tx, order.Items)
	})
	if err != nil {
		if done, ok := s.alreadyRefunded(ctx, order.ID, refund.ID, err); ok {
			return done, nil
		}
		s.reconciler.record(ctx, model.ReconcileRefund, fmt.Sprintf("order-%d", order.ID), escrow.PaymentIntentID, escrow.TotalAmount, err)
		return nil, settlementFailure(err)
	}

	logs.Infof("order refunded order=%d refund=%s amount=%s rid=%s", order.ID, refund.ID, escrow.TotalAmount.StringFixed(2), reqctx.RID(ctx))
	s.notify(ctx, order.BuyerUID, NotifyOrderCancelled, "Order refunded", fmt.Sprintf("Order #%d was cancelled and refunded.", order.ID), order.ID)
	s.notify(ctx, order.SellerUID, NotifyOrderCancelled, "Order cancelled", fmt.Sprintf("Order #%d was cancelled by the buyer.", order.ID), order.ID)
	return s.loadOrder(ctx, order.ID)
}

// alreadyRefunded reports whether a concurrent cancel committed the same refund first.
// The refund idempotency key is per order, so both requests got the same refund back.
func (s *settlementService) alreadyRefunded(ctx context.Context, orderID uint64, refundID string, cause error) (*model.Order, bool) {
	if !errors.Is(cause, ErrInvalidState) && !errors.Is(cause, ErrEscrowNotHeld) {
		return nil, false
	}
	e, err := s.store.Escrows.FindByOrderID(ctx, orderID)
	if err != nil || e.Status != model.EscrowStatusRefunded || e.RefundID != refundID {
		return nil, false
	}
	o, err := s.loadOrder(ctx, orderID)
	if err != nil || o.Status != model.OrderStatusCancelled {
		return nil, false
	}
	logs.Infof("refund already committed order=%d refund=%s rid=%s", orderID, refundID, reqctx.RID(ctx))
	return o, true
}

func (s *settlementService) cancelPending(ctx context.Context, order *model.Order, reason string) (*model.Order, error) {
	now := s.now()
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		err := tx.Orders.UpdateStatus(ctx, order.ID, model.OrderStatusPending, model.OrderStatusCancelled, map[string]interface{}{
			"cancelled_at":  now,
			"cancel_reason": reason,
		})
		if errors.Is(err, repository.ErrNoRowsAffected) {
			return fmt.Errorf("%w: order %d is no longer pending", ErrInvalidState, order.ID)
		}
		if err != nil {
			return err
		}
		return restoreStock(ctx, tx, order.Items)
	})
	if err != nil {
		return nil, err
	}
	logs.Infof("pending order cancelled order=%d rid=%s", order.ID, reqctx.RID(ctx))
	return s.loadOrder(ctx, order.ID)
}

func restoreStock(ctx context.Context, tx *repository.Store, items []model.OrderItem) error {
	for _, it := range items {
		err := tx.Products.IncrementStock(ctx, it.ProductID, it.Quantity)
		if errors.Is(err, repository.ErrNoRowsAffected) {
			// product removed from the catalog since purchase
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// UpdateStatusBySeller advances fulfillment one step at a time.
func (s *settlementService) UpdateStatusBySeller(ctx context.Context, orderID uint64, sellerUID string, target model.OrderStatus) (*model.Order, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, target)
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.SellerUID != sellerUID {
		return nil, ErrForbidden
	}
	if !model.SellerSettable(target) {
		return nil, fmt.Errorf("%w: sellers cannot set %s", ErrForbiddenTransition, target)
	}
	if !model.CanTransition(model.ActorSeller, order.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, target)
	}

	extra := map[string]interface{}{}
	switch target {
	case model.OrderStatusShipped:
		extra["shipped_at"] = s.now()
	case model.OrderStatusDelivered:
		extra["delivered_at"] = s.now()
	}
	err = s.store.Orders.UpdateStatus(ctx, order.ID, order.Status, target, extra)
	if errors.Is(err, repository.ErrNoRowsAffected) {
		return nil, fmt.Errorf("%w: order %d changed concurrently", ErrInvalidTransition, order.ID)
	}
	if err != nil {
		return nil, err
	}

	s.notify(ctx, order.BuyerUID, NotifyOrderStatus, "Order update", fmt.Sprintf("Order #%d is now %s.", order.ID, target), order.ID)
	return s.loadOrder(ctx, order.ID)
}
