// Package paymenttest provides an in-memory payment.Gateway for tests.
package paymenttest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shinyyama/escrow-backend/internal/payment"
)

type Op string

const (
	OpCheckout   Op = "checkout"
	OpRetrieve   Op = "retrieve"
	OpTransfer   Op = "transfer"
	OpRefund     Op = "refund"
	OpAccount    Op = "account"
	OpOnboarding Op = "onboarding"
	OpStatus     Op = "status"
)

// WebhookSignature is the only signature ParseCheckoutCompleted accepts.
const WebhookSignature = "test-signature"

// Gateway is safe for concurrent use. Transfers and refunds honour idempotency keys
// the way the real processor does: a repeated key returns the original result.
type Gateway struct {
	mu        sync.Mutex
	sessions  map[string]*payment.Session
	transfers map[string]*payment.Transfer
	refunds   map[string]*payment.Refund
	accounts  map[string]payment.AccountStatus
	failures  map[Op]error
	calls     map[Op]int

	TransferLog []payment.TransferRequest
	RefundLog   []payment.RefundRequest
}

var _ payment.Gateway = (*Gateway)(nil)

func New() *Gateway {
	return &Gateway{
		sessions:  map[string]*payment.Session{},
		transfers: map[string]*payment.Transfer{},
		refunds:   map[string]*payment.Refund{},
		accounts:  map[string]payment.AccountStatus{},
		failures:  map[Op]error{},
		calls:     map[Op]int{},
	}
}

// Fail makes every subsequent call of op return err wrapped in payment.ErrGateway.
// A nil err clears the failure.
func (g *Gateway) Fail(op Op, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.failures, op)
		return
	}
	g.failures[op] = err
}

func (g *Gateway) Calls(op Op) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

// MarkPaid flips a session to paid as if the buyer completed the hosted page.
func (g *Gateway) MarkPaid(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[sessionID]
	if !ok {
		return
	}
	s.PaymentStatus = payment.PaymentStatusPaid
	if s.PaymentIntentID == "" {
		s.PaymentIntentID = "pi_" + uuid.NewString()
	}
}

// SetSessionAmount overrides the amount the processor reports for a session.
func (g *Gateway) SetSessionAmount(sessionID string, cents int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.sessions[sessionID]; ok {
		s.AmountTotal = cents
	}
}

func (g *Gateway) SetAccountStatus(accountID string, st payment.AccountStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.accounts[accountID] = st
}

// Transfers returns the distinct transfers executed so far.
func (g *Gateway) Transfers() []payment.Transfer {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]payment.Transfer, 0, len(g.transfers))
	for _, t := range g.transfers {
		out = append(out, *t)
	}
	return out
}

// Refunds returns the distinct refunds executed so far.
func (g *Gateway) Refunds() []payment.Refund {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]payment.Refund, 0, len(g.refunds))
	for _, r := range g.refunds {
		out = append(out, *r)
	}
	return out
}

// WebhookPayload builds a body accepted by ParseCheckoutCompleted.
func WebhookPayload(eventType, sessionID string) []byte {
	b, _ := json.Marshal(map[string]string{"type": eventType, "session_id": sessionID})
	return b
}

func (g *Gateway) begin(op Op) error {
	g.calls[op]++
	if err, ok := g.failures[op]; ok {
		return fmt.Errorf("%w: %s: %v", payment.ErrGateway, op, err)
	}
	return nil
}

func (g *Gateway) CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin(OpCheckout); err != nil {
		return nil, err
	}
	var total int64
	for _, li := range req.LineItems {
		total += li.UnitAmount * li.Quantity
	}
	meta := make(map[string]string, len(req.Metadata))
	for k, v := range req.Metadata {
		meta[k] = v
	}
	id := "cs_test_" + uuid.NewString()
	g.sessions[id] = &payment.Session{
		ID:            id,
		PaymentStatus: payment.PaymentStatusUnpaid,
		AmountTotal:   total,
		Currency:      req.Currency,
		Metadata:      meta,
	}
	return &payment.CheckoutSession{ID: id, URL: "https://checkout.test/pay/" + id}, nil
}

func (g *Gateway) RetrieveSession(ctx context.Context, sessionID string) (*payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin(OpRetrieve); err != nil {
		return nil, err
	}
	s, ok := g.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: no such checkout session %s", payment.ErrGateway, sessionID)
	}
	cp := *s
	cp.Metadata = make(map[string]string, len(s.Metadata))
	for k, v := range s.Metadata {
		cp.Metadata[k] = v
	}
	return &cp, nil
}

func (g *Gateway) Transfer(ctx context.Context, req payment.TransferRequest) (*payment.Transfer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin(OpTransfer); err != nil {
		return nil, err
	}
	g.TransferLog = append(g.TransferLog, req)
	if t, ok := g.transfers[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return t, nil
	}
	t := &payment.Transfer{ID: "tr_" + uuid.NewString(), Amount: req.Amount}
	key := req.IdempotencyKey
	if key == "" {
		key = t.ID
	}
	g.transfers[key] = t
	return t, nil
}

func (g *Gateway) Refund(ctx context.Context, req payment.RefundRequest) (*payment.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin(OpRefund); err != nil {
		return nil, err
	}
	g.RefundLog = append(g.RefundLog, req)
	if r, ok := g.refunds[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return r, nil
	}
	r := &payment.Refund{ID: "re_" + uuid.NewString(), Status: "succeeded", Amount: req.Amount}
	key := req.IdempotencyKey
	if key == "" {
		key = r.ID
	}
	g.refunds[key] = r
	return r, nil
}

func (g *Gateway) CreateConnectedAccount(ctx context.Context, sellerUID, email string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin(OpAccount); err != nil {
		return "", err
	}
	id := "acct_" + sellerUID
	if _, ok := g.accounts[id]; !ok {
		g.accounts[id] = payment.AccountStatus{}
	}
	return id, nil
}

func (g *Gateway) OnboardingLink(ctx context.Context, accountID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin(OpOnboarding); err != nil {
		return "", err
	}
	return "https://connect.test/onboard/" + accountID, nil
}

func (g *Gateway) AccountStatus(ctx context.Context, accountID string) (*payment.AccountStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin(OpStatus); err != nil {
		return nil, err
	}
	st, ok := g.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: no such account %s", payment.ErrGateway, accountID)
	}
	return &st, nil
}

func (g *Gateway) ParseCheckoutCompleted(payload []byte, signature string) (string, bool, error) {
	if signature != WebhookSignature {
		return "", false, fmt.Errorf("%w: bad signature", payment.ErrInvalidWebhook)
	}
	var ev struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(payload, &ev); err != nil {
		return "", false, fmt.Errorf("%w: %v", payment.ErrInvalidWebhook, err)
	}
	if ev.Type != "checkout.session.completed" {
		return "", false, nil
	}
	return ev.SessionID, true, nil
}
