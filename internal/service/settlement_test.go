package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/shinyyama/escrow-backend/internal/model"
	"github.com/shinyyama/escrow-backend/internal/payment"
	"github.com/shinyyama/escrow-backend/internal/payment/paymenttest"
	"github.com/shinyyama/escrow-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestInitiateCheckoutValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, seller, "10", 2)
	other := f.product(t, "seller-2", "10", 2)
	own := f.product(t, buyer, "10", 2)
	wrong := dec("99")
	many := make([]CartItem, 0, 20)
	for i := 0; i < 20; i++ {
		many = append(many, CartItem{ProductID: f.product(t, seller, "10", 2).ID, Quantity: 1})
	}

	tests := []struct {
		name string
		req  CartRequest
		want error
	}{
		{"empty cart", cart(), ErrValidation},
		{"zero quantity", cart(CartItem{ProductID: p.ID, Quantity: 0}), ErrValidation},
		{"duplicate product", cart(CartItem{ProductID: p.ID, Quantity: 1}, CartItem{ProductID: p.ID, Quantity: 1}), ErrValidation},
		{"missing address", CartRequest{Items: []CartItem{{ProductID: p.ID, Quantity: 1}}}, ErrValidation},
		{"unknown product", cart(CartItem{ProductID: 999, Quantity: 1}), ErrNotFound},
		{"over stock", cart(CartItem{ProductID: p.ID, Quantity: 3}), ErrOutOfStock},
		{"two sellers", cart(CartItem{ProductID: p.ID, Quantity: 1}, CartItem{ProductID: other.ID, Quantity: 1}), ErrValidation},
		{"own product", cart(CartItem{ProductID: own.ID, Quantity: 1}), ErrValidation},
		{"total mismatch", CartRequest{Items: []CartItem{{ProductID: p.ID, Quantity: 1}}, ShippingAddress: "x", TotalAmount: &wrong}, ErrInvalidAmount},
		{"address too long", CartRequest{Items: []CartItem{{ProductID: p.ID, Quantity: 1}}, ShippingAddress: strings.Repeat("a", maxMetadataValue+1)}, ErrValidation},
		{"too many lines", CartRequest{Items: many, ShippingAddress: "x"}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.settle.InitiateCheckout(ctx, buyer, tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 0, f.gw.Calls(paymenttest.OpCheckout))
}

func TestInitiateCheckoutPersistsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, seller, "12.50", 5)
	b := f.product(t, seller, "25", 5)
	total := dec("100")

	res, err := f.settle.InitiateCheckout(ctx, buyer, CartRequest{
		Items:           []CartItem{{ProductID: a.ID, Quantity: 2}, {ProductID: b.ID, Quantity: 3}},
		ShippingAddress: "1 Market St",
		TotalAmount:     &total,
	})
	require.NoError(t, err)
	assert.True(t, res.TotalAmount.Equal(total))
	assert.NotEmpty(t, res.CheckoutURL)

	sess, err := f.gw.RetrieveSession(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), sess.AmountTotal)
	assert.Equal(t, buyer, sess.Metadata[metaBuyerUID])
	assert.Equal(t, seller, sess.Metadata[metaSellerUID])

	assert.Equal(t, int64(5), f.stock(t, a.ID))
	orders, err := f.orders.ListByBuyer(ctx, buyer)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestInitiateCheckoutGatewayFailure(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, seller, "10", 1)
	f.gw.Fail(paymenttest.OpCheckout, errors.New("api down"))

	_, err := f.settle.InitiateCheckout(context.Background(), buyer, cart(CartItem{ProductID: p.ID, Quantity: 1}))
	require.ErrorIs(t, err, ErrGateway)
}

func TestConfirmPaymentHoldsFunds(t *testing.T) {
	f := newFixture(t)
	o, p := f.paidOrder(t)

	assert.Equal(t, model.OrderStatusPaid, o.Status)
	assert.Equal(t, model.OrderSourceCheckout, o.Source)
	assert.True(t, o.TotalAmount.Equal(dec("100")))
	assert.True(t, o.ItemsTotal().Equal(o.TotalAmount))
	require.Len(t, o.Items, 1)
	assert.NotNil(t, o.PaidAt)
	assert.Equal(t, int64(6), f.stock(t, p.ID))

	e := f.escrow(t, o.ID)
	assert.Equal(t, model.EscrowStatusHeld, e.Status)
	assert.True(t, e.PlatformFee.Equal(dec("10")))
	assert.True(t, e.NetAmount.Equal(dec("90")))
	assert.True(t, e.PlatformFee.Add(e.NetAmount).Equal(e.TotalAmount))
	assert.NotEmpty(t, e.PaymentIntentID)

	w := f.wallet(t, seller)
	assert.True(t, w.PendingBalance.Equal(dec("90")), "pending %s", w.PendingBalance)
	assert.True(t, w.AvailableBalance.IsZero())

	page, err := f.notes.List(context.Background(), repository.NotificationQuery{UserUID: seller, UnreadOnly: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.UnreadCount)
	assert.Equal(t, NotifyOrderPaid, page.Items[0].Type)
}

func TestConfirmPaymentIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, seller, "25", 10)
	sid := f.paidSession(t, cart(CartItem{ProductID: p.ID, Quantity: 4}))

	first, err := f.settle.ConfirmPayment(ctx, sid)
	require.NoError(t, err)
	second, err := f.settle.ConfirmPayment(ctx, sid)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(6), f.stock(t, p.ID))
	assert.True(t, f.wallet(t, seller).PendingBalance.Equal(dec("90")))
	orders, err := f.orders.ListByBuyer(ctx, buyer)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestConfirmPaymentRejectsUnpaidSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, seller, "25", 10)
	res, err := f.settle.InitiateCheckout(ctx, buyer, cart(CartItem{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)

	_, err = f.settle.ConfirmPayment(ctx, res.SessionID)
	require.ErrorIs(t, err, ErrPaymentNotCompleted)

	_, err = f.settle.ConfirmPayment(ctx, "cs_missing")
	require.ErrorIs(t, err, ErrGateway)

	_, err = f.settle.ConfirmPayment(ctx, " ")
	require.ErrorIs(t, err, ErrValidation)
}

func TestConfirmPaymentAmountMismatchIsReconciled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, seller, "25", 10)
	sid := f.paidSession(t, cart(CartItem{ProductID: p.ID, Quantity: 1}))
	f.gw.SetSessionAmount(sid, 100)

	_, err := f.settle.ConfirmPayment(ctx, sid)
	require.ErrorIs(t, err, ErrSettlementFailed)
	require.ErrorIs(t, err, ErrInvalidAmount)

	recs, err := f.store.Reconciliations.ListUnresolved(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.ReconcileConfirmPayment, recs[0].Kind)
	assert.Equal(t, sid, recs[0].Reference)
	assert.Equal(t, int64(10), f.stock(t, p.ID))
}

func TestConcurrentConfirmsNeverOversell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, seller, "10", 5)
	s1 := f.paidSession(t, cart(CartItem{ProductID: p.ID, Quantity: 3}))
	s2 := f.paidSession(t, cart(CartItem{ProductID: p.ID, Quantity: 3}))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, sid := range []string{s1, s2} {
		wg.Add(1)
		go func(i int, sid string) {
			defer wg.Done()
			_, errs[i] = f.settle.ConfirmPayment(ctx, sid)
		}(i, sid)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientStock):
			require.ErrorIs(t, err, ErrSettlementFailed)
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	assert.Equal(t, int64(2), f.stock(t, p.ID))
	assert.True(t, f.wallet(t, seller).PendingBalance.Equal(dec("27")))

	recs, err := f.store.Reconciliations.ListUnresolved(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestConcurrentDuplicateConfirmsCreateOneOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, seller, "25", 10)
	sid := f.paidSession(t, cart(CartItem{ProductID: p.ID, Quantity: 4}))

	var wg sync.WaitGroup
	orders := make([]*model.Order, 4)
	errs := make([]error, 4)
	for i := range orders {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			orders[i], errs[i] = f.settle.ConfirmPayment(ctx, sid)
		}(i)
	}
	wg.Wait()

	for i := range orders {
		require.NoError(t, errs[i])
		assert.Equal(t, orders[0].ID, orders[i].ID)
	}
	assert.Equal(t, int64(6), f.stock(t, p.ID))
	assert.True(t, f.wallet(t, seller).PendingBalance.Equal(dec("90")))

	mine, err := f.orders.ListByBuyer(ctx, buyer)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	recs, err := f.store.Reconciliations.ListUnresolved(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestFailedConfirmStaysWithReconciliation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, seller, "25", 4)
	sid := f.paidSession(t, cart(CartItem{ProductID: p.ID, Quantity: 4}))
	require.NoError(t, f.store.Products.DecrementStock(ctx, p.ID, 4))

	_, err := f.settle.ConfirmPayment(ctx, sid)
	require.ErrorIs(t, err, ErrSettlementFailed)
	require.ErrorIs(t, err, ErrInsufficientStock)

	require.NoError(t, f.store.Products.IncrementStock(ctx, p.ID, 4))
	_, err = f.settle.ConfirmPayment(ctx, sid)
	require.ErrorIs(t, err, ErrSettlementFailed)
	require.ErrorIs(t, err, ErrReconciliationPending)

	_, err = f.store.Orders.FindBySessionID(ctx, sid)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Equal(t, int64(4), f.stock(t, p.ID))
	assert.True(t, f.wallet(t, seller).PendingBalance.IsZero())

	recs, err := f.store.Reconciliations.ListUnresolved(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, sid, recs[0].Reference)

	_, err = f.store.Reconciliations.MarkResolved(ctx, []uint64{recs[0].ID})
	require.NoError(t, err)
	_, err = f.settle.ConfirmPayment(ctx, sid)
	require.ErrorIs(t, err, ErrReconciliationPending, "a resolved entry still belongs to the operator")
}

func TestFailedPendingConfirmStaysWithReconciliation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, seller, "50", 3)
	o, err := f.settle.CreatePendingOrder(ctx, buyer, cart(CartItem{ProductID: p.ID, Quantity: 2}))
	require.NoError(t, err)
	res, err := f.settle.InitiatePendingOrderCheckout(ctx, o.ID, buyer)
	require.NoError(t, err)
	f.gw.MarkPaid(res.SessionID)

	f.gw.SetSessionAmount(res.SessionID, 500)
	_, err = f.settle.ConfirmPayment(ctx, res.SessionID)
	require.ErrorIs(t, err, ErrInvalidAmount)

	f.gw.SetSessionAmount(res.SessionID, 10000)
	_, err = f.settle.ConfirmPayment(ctx, res.SessionID)
	require.ErrorIs(t, err, ErrReconciliationPending)

	got, err := f.orders.Get(ctx, o.ID, buyer)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, got.Status)
	assert.True(t, f.wallet(t, seller).PendingBalance.IsZero())
}

func TestConcurrentCompletionsForOneSeller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := make([]uint64, 3)
	for i := range ids {
		o, _ := f.paidOrder(t)
		ids[i] = o.ID
	}
	assert.True(t, f.wallet(t, seller).PendingBalance.Equal(dec("270")))

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id uint64) {
			defer wg.Done()
			_, errs[i] = f.settle.CompleteOrder(ctx, id, buyer)
		}(i, id)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	w := f.wallet(t, seller)
	assert.True(t, w.PendingBalance.IsZero(), "pending %s", w.PendingBalance)
	assert.True(t, w.AvailableBalance.Equal(dec("270")), "available %s", w.AvailableBalance)
}

func TestCompleteOrderReleasesEscrow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, _ := f.paidOrder(t)

	_, err := f.settle.CompleteOrder(ctx, o.ID, seller)
	require.ErrorIs(t, err, ErrForbidden)

	done, err := f.settle.CompleteOrder(ctx, o.ID, buyer)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)

	e := f.escrow(t, o.ID)
	assert.Equal(t, model.EscrowStatusReleased, e.Status)
	assert.NotNil(t, e.ReleasedAt)

	w := f.wallet(t, seller)
	assert.True(t, w.PendingBalance.IsZero(), "pending %s", w.PendingBalance)
	assert.True(t, w.AvailableBalance.Equal(dec("90")), "available %s", w.AvailableBalance)

	_, err = f.settle.CompleteOrder(ctx, o.ID, buyer)
	require.ErrorIs(t, err, ErrInvalidState)
	w = f.wallet(t, seller)
	assert.True(t, w.AvailableBalance.Equal(dec("90")))
}

func TestCompleteOrderRequiresEscrow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, seller, "10", 5)
	o, err := f.settle.CreatePendingOrder(ctx, buyer, cart(CartItem{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)

	_, err = f.settle.CompleteOrder(ctx, o.ID, buyer)
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = f.settle.CompleteOrder(ctx, 12345, buyer)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCancelOrRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, p := f.paidOrder(t)

	_, err := f.settle.CancelOrRefund(ctx, o.ID, seller, "nope")
	require.ErrorIs(t, err, ErrForbidden)

	cancelled, err := f.settle.CancelOrRefund(ctx, o.ID, buyer, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, "changed my mind", cancelled.CancelReason)

	require.Len(t, f.gw.RefundLog, 1)
	assert.Equal(t, int64(10000), f.gw.RefundLog[0].Amount)
	assert.Equal(t, fmt.Sprintf("refund-order-%d", o.ID), f.gw.RefundLog[0].IdempotencyKey)

	e := f.escrow(t, o.ID)
	assert.Equal(t, model.EscrowStatusRefunded, e.Status)
	assert.NotEmpty(t, e.RefundID)
	assert.Equal(t, "changed my mind", e.RefundReason)

	w := f.wallet(t, seller)
	assert.True(t, w.PendingBalance.IsZero())
	assert.True(t, w.AvailableBalance.IsZero())
	assert.Equal(t, int64(10), f.stock(t, p.ID))

	_, err = f.settle.CancelOrRefund(ctx, o.ID, buyer, "again")
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 1, f.gw.Calls(paymenttest.OpRefund))
}

func TestConcurrentCancelsShareOneRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, p := f.paidOrder(t)
	f.useGateway(gate(f.gw, 2))

	var wg sync.WaitGroup
	res := make([]*model.Order, 2)
	errs := make([]error, 2)
	for i := range res {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res[i], errs[i] = f.settle.CancelOrRefund(ctx, o.ID, buyer, "duplicate click")
		}(i)
	}
	wg.Wait()

	for i := range res {
		require.NoError(t, errs[i])
		assert.Equal(t, model.OrderStatusCancelled, res[i].Status)
	}
	assert.Equal(t, 2, f.gw.Calls(paymenttest.OpRefund))
	require.Len(t, f.gw.Refunds(), 1)
	assert.Equal(t, f.gw.Refunds()[0].ID, f.escrow(t, o.ID).RefundID)

	w := f.wallet(t, seller)
	assert.True(t, w.PendingBalance.IsZero())
	assert.Equal(t, int64(10), f.stock(t, p.ID))

	recs, err := f.store.Reconciliations.ListUnresolved(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestCancelAfterReleaseIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, _ := f.paidOrder(t)
	_, err := f.settle.CompleteOrder(ctx, o.ID, buyer)
	require.NoError(t, err)

	_, err = f.settle.CancelOrRefund(ctx, o.ID, buyer, "too late")
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 0, f.gw.Calls(paymenttest.OpRefund))

	assert.Equal(t, model.EscrowStatusReleased, f.escrow(t, o.ID).Status)
	assert.True(t, f.wallet(t, seller).AvailableBalance.Equal(dec("90")))
}

func TestCancelRefundFailureChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, p := f.paidOrder(t)
	f.gw.Fail(paymenttest.OpRefund, errors.New("charge_already_refunded"))

	_, err := f.settle.CancelOrRefund(ctx, o.ID, buyer, "")
	require.ErrorIs(t, err, payment.ErrGateway)

	got, err := f.orders.Get(ctx, o.ID, buyer)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, got.Status)
	assert.Equal(t, model.EscrowStatusHeld, f.escrow(t, o.ID).Status)
	assert.True(t, f.wallet(t, seller).PendingBalance.Equal(dec("90")))
	assert.Equal(t, int64(6), f.stock(t, p.ID))
}

func TestSellerStatusLattice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, _ := f.paidOrder(t)

	_, err := f.settle.UpdateStatusBySeller(ctx, o.ID, buyer, model.OrderStatusProcessing)
	require.ErrorIs(t, err, ErrForbidden)

	for _, target := range []model.OrderStatus{model.OrderStatusCompleted, model.OrderStatusCancelled} {
		_, err = f.settle.UpdateStatusBySeller(ctx, o.ID, seller, target)
		require.ErrorIs(t, err, ErrForbiddenTransition, target)
	}
	_, err = f.settle.UpdateStatusBySeller(ctx, o.ID, seller, model.OrderStatusShipped)
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.settle.UpdateStatusBySeller(ctx, o.ID, seller, model.OrderStatus("lost"))
	require.ErrorIs(t, err, ErrValidation)

	got, err := f.orders.Get(ctx, o.ID, seller)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, got.Status)

	for _, target := range []model.OrderStatus{model.OrderStatusProcessing, model.OrderStatusShipped, model.OrderStatusDelivered} {
		got, err = f.settle.UpdateStatusBySeller(ctx, o.ID, seller, target)
		require.NoError(t, err)
		assert.Equal(t, target, got.Status)
	}
	assert.NotNil(t, got.ShippedAt)
	assert.NotNil(t, got.DeliveredAt)

	_, err = f.settle.UpdateStatusBySeller(ctx, o.ID, seller, model.OrderStatusProcessing)
	require.ErrorIs(t, err, ErrInvalidTransition)

	done, err := f.settle.CompleteOrder(ctx, o.ID, buyer)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCompleted, done.Status)
}

func TestPendingFirstFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, seller, "50", 3)

	o, err := f.settle.CreatePendingOrder(ctx, buyer, cart(CartItem{ProductID: p.ID, Quantity: 2}))
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, o.Status)
	assert.Equal(t, model.OrderSourceManual, o.Source)
	assert.Equal(t, int64(1), f.stock(t, p.ID))

	_, err = f.settle.InitiatePendingOrderCheckout(ctx, o.ID, "someone-else")
	require.ErrorIs(t, err, ErrForbidden)

	res, err := f.settle.InitiatePendingOrderCheckout(ctx, o.ID, buyer)
	require.NoError(t, err)
	assert.Equal(t, o.ID, res.OrderID)
	assert.True(t, res.TotalAmount.Equal(dec("100")))

	_, err = f.settle.ConfirmPayment(ctx, res.SessionID)
	require.ErrorIs(t, err, ErrPaymentNotCompleted)

	f.gw.MarkPaid(res.SessionID)
	paid, err := f.settle.ConfirmPayment(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, paid.ID)
	assert.Equal(t, model.OrderStatusPaid, paid.Status)
	require.NotNil(t, paid.CheckoutSessionID)
	assert.Equal(t, res.SessionID, *paid.CheckoutSessionID)
	assert.Equal(t, int64(1), f.stock(t, p.ID))

	again, err := f.settle.ConfirmPayment(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, paid.ID, again.ID)

	assert.Equal(t, model.EscrowStatusHeld, f.escrow(t, o.ID).Status)
	assert.True(t, f.wallet(t, seller).PendingBalance.Equal(dec("90")))

	_, err = f.settle.InitiatePendingOrderCheckout(ctx, o.ID, buyer)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCancelPendingOrderRestoresStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, seller, "50", 3)
	o, err := f.settle.CreatePendingOrder(ctx, buyer, cart(CartItem{ProductID: p.ID, Quantity: 3}))
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.stock(t, p.ID))

	cancelled, err := f.settle.CancelOrRefund(ctx, o.ID, buyer, "ordered by mistake")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, int64(3), f.stock(t, p.ID))
	assert.Equal(t, 0, f.gw.Calls(paymenttest.OpRefund))
}

func TestOrderReads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, _ := f.paidOrder(t)

	_, err := f.orders.Get(ctx, o.ID, "stranger")
	require.ErrorIs(t, err, ErrForbidden)
	_, err = f.orders.GetEscrow(ctx, o.ID, "stranger")
	require.ErrorIs(t, err, ErrForbidden)

	e, err := f.orders.GetEscrow(ctx, o.ID, seller)
	require.NoError(t, err)
	assert.Equal(t, o.ID, e.OrderID)

	sales, err := f.orders.ListBySeller(ctx, seller)
	require.NoError(t, err)
	assert.Len(t, sales, 1)
}
