package service

import (
	"errors"

	"github.com/shinyyama/escrow-backend/internal/payment"
)

var (
	ErrValidation          = errors.New("validation_error")
	ErrNotFound            = errors.New("not_found")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidState        = errors.New("invalid_state")
	ErrForbiddenTransition = errors.New("forbidden_transition")
	ErrInvalidTransition   = errors.New("invalid_transition")
	ErrOutOfStock          = errors.New("out_of_stock")
	ErrInsufficientStock   = errors.New("insufficient_stock")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrPaymentNotCompleted = errors.New("payment_not_completed")
	ErrEscrowNotHeld       = errors.New("escrow_not_held")
	// ErrPayoutAccountNotReady means the seller must finish payout onboarding before withdrawing.
	ErrPayoutAccountNotReady = errors.New("payout_account_not_ready")
	// ErrGateway is the payment package's sentinel so errors.Is works across both layers.
	ErrGateway = payment.ErrGateway
	// ErrSettlementFailed means money moved at the gateway but the local commit did not.
	// A reconciliation entry has been recorded.
	ErrSettlementFailed = errors.New("settlement_failed")
	// ErrReconciliationPending means a paid session already has a reconciliation entry and
	// will not be confirmed automatically. It is always wrapped in ErrSettlementFailed.
	ErrReconciliationPending = errors.New("reconciliation_pending")
)
