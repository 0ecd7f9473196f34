package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shinyyama/escrow-backend/internal/db/dbtest"
	"github.com/shinyyama/escrow-backend/internal/model"
	"github.com/shinyyama/escrow-backend/internal/payment"
	"github.com/shinyyama/escrow-backend/internal/payment/paymenttest"
	"github.com/shinyyama/escrow-backend/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	buyer  = "buyer-1"
	seller = "seller-1"
)

type fixture struct {
	store   *repository.Store
	gw      *paymenttest.Gateway
	settle  SettlementService
	wallets WalletService
	orders  OrderService
	notes   NotificationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewStore(dbtest.Open(t))
	f := &fixture{
		store:  store,
		gw:     paymenttest.New(),
		orders: NewOrderService(store.Orders, store.Escrows),
		notes:  NewNotificationService(store.Notifications),
	}
	f.useGateway(f.gw)
	return f
}

// useGateway rebuilds the money-moving services on gw. Recorded calls still land in f.gw
// when gw wraps it.
func (f *fixture) useGateway(gw payment.Gateway) {
	f.settle = NewSettlementService(f.store, gw, f.notes, SettlementOptions{
		FeeRate:  decimal.RequireFromString("0.1"),
		Currency: "usd",
	})
	f.wallets = NewWalletService(f.store, gw, f.notes, "usd")
}

// gatedGateway holds transfers and refunds until n calls have arrived, so n concurrent
// requests all read state before any of them commits.
type gatedGateway struct {
	*paymenttest.Gateway
	arrived sync.WaitGroup
}

func gate(gw *paymenttest.Gateway, n int) *gatedGateway {
	g := &gatedGateway{Gateway: gw}
	g.arrived.Add(n)
	return g
}

func (g *gatedGateway) Transfer(ctx context.Context, req payment.TransferRequest) (*payment.Transfer, error) {
	g.arrived.Done()
	g.arrived.Wait()
	return g.Gateway.Transfer(ctx, req)
}

func (g *gatedGateway) Refund(ctx context.Context, req payment.RefundRequest) (*payment.Refund, error) {
	g.arrived.Done()
	g.arrived.Wait()
	return g.Gateway.Refund(ctx, req)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) product(t *testing.T, sellerUID, price string, stock int64) *model.Product {
	t.Helper()
	p := &model.Product{SellerUID: sellerUID, Title: "Product " + price, Price: dec(price), StockQty: stock}
	require.NoError(t, f.store.Products.Create(context.Background(), p))
	return p
}

func (f *fixture) stock(t *testing.T, productID uint64) int64 {
	t.Helper()
	p, err := f.store.Products.FindByID(context.Background(), productID)
	require.NoError(t, err)
	return p.StockQty
}

func (f *fixture) wallet(t *testing.T, sellerUID string) *model.Wallet {
	t.Helper()
	w, err := f.wallets.GetWallet(context.Background(), sellerUID)
	require.NoError(t, err)
	return w
}

func (f *fixture) escrow(t *testing.T, orderID uint64) *model.EscrowTransaction {
	t.Helper()
	e, err := f.store.Escrows.FindByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	return e
}

func cart(items ...CartItem) CartRequest {
	return CartRequest{Items: items, ShippingAddress: "1 Market St"}
}

// paidSession opens a checkout for the cart and marks it paid at the gateway.
func (f *fixture) paidSession(t *testing.T, req CartRequest) string {
	t.Helper()
	res, err := f.settle.InitiateCheckout(context.Background(), buyer, req)
	require.NoError(t, err)
	f.gw.MarkPaid(res.SessionID)
	return res.SessionID
}

// paidOrder returns a confirmed 100.00 order (4 x 25.00) from seller to buyer.
func (f *fixture) paidOrder(t *testing.T) (*model.Order, *model.Product) {
	t.Helper()
	p := f.product(t, seller, "25", 10)
	sid := f.paidSession(t, cart(CartItem{ProductID: p.ID, Quantity: 4}))
	o, err := f.settle.ConfirmPayment(context.Background(), sid)
	require.NoError(t, err)
	return o, p
}
