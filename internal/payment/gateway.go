// Package payment wraps the hosted-checkout payment processor used to collect buyer funds,
// refund them, and pay sellers out through connected accounts.
//
// Amounts crossing this boundary are in minor units (cents). Callers keep major-unit decimals
// and convert with ToMinorUnits / FromMinorUnits.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrGateway is wrapped by every failure reported by, or on the way to, the processor.
	ErrGateway = errors.New("gateway_error")
	// ErrInvalidWebhook means a webhook payload failed signature or shape checks.
	ErrInvalidWebhook = errors.New("invalid_webhook")
)

type PaymentStatus string

const (
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusUnpaid            PaymentStatus = "unpaid"
	PaymentStatusNoPaymentRequired PaymentStatus = "no_payment_required"
)

// Gateway is the capability contract the settlement coordinator relies on.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (*Session, error)
	Transfer(ctx context.Context, req TransferRequest) (*Transfer, error)
	Refund(ctx context.Context, req RefundRequest) (*Refund, error)

	CreateConnectedAccount(ctx context.Context, sellerUID, email string) (string, error)
	OnboardingLink(ctx context.Context, accountID string) (string, error)
	AccountStatus(ctx context.Context, accountID string) (*AccountStatus, error)

	// ParseCheckoutCompleted verifies a webhook delivery and returns the paid session id.
	// ok is false for well-formed events of other types.
	ParseCheckoutCompleted(payload []byte, signature string) (sessionID string, ok bool, err error)
}

type LineItem struct {
	ProductID  uint64
	Name       string
	UnitAmount int64
	Quantity   int64
}

type CheckoutRequest struct {
	LineItems []LineItem
	Currency  string
	// Metadata is returned verbatim by RetrieveSession.
	Metadata map[string]string
}

type CheckoutSession struct {
	ID  string
	URL string
}

type Session struct {
	ID              string
	PaymentStatus   PaymentStatus
	AmountTotal     int64
	Currency        string
	Metadata        map[string]string
	PaymentIntentID string
}

func (s *Session) Paid() bool {
	return s != nil && s.PaymentStatus == PaymentStatusPaid
}

type TransferRequest struct {
	Destination    string
	Amount         int64
	Currency       string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

type Transfer struct {
	ID     string
	Amount int64
}

type RefundRequest struct {
	PaymentIntentID string
	Amount          int64
	Metadata        map[string]string
	IdempotencyKey  string
}

type Refund struct {
	ID     string
	Status string
	Amount int64
}

type AccountStatus struct {
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
}

// Ready reports whether the connected account finished onboarding.
func (s AccountStatus) Ready() bool {
	return s.DetailsSubmitted && s.ChargesEnabled
}

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a major-unit amount (dollars) to cents, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits converts cents to a major-unit amount.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
