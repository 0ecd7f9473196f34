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
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"
)

type WalletService interface {
	GetWallet(ctx context.Context, sellerUID string) (*model.Wallet, error)
	WithdrawFunds(ctx context.Context, sellerUID string) (*Withdrawal, error)
	StartPayoutOnboarding(ctx context.Context, sellerUID, email string) (string, error)
	PayoutAccountStatus(ctx context.Context, sellerUID string) (*model.SellerAccount, error)
}

type Withdrawal struct {
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	TransferID string          `json:"transferId"`
	Wallet     *model.Wallet   `json:"wallet"`
}

type walletService struct {
	store      *repository.Store
	gateway    payment.Gateway
	notifier   NotificationService
	reconciler reconciler
	currency   string
}

func NewWalletService(store *repository.Store, gateway payment.Gateway, notifier NotificationService, currency string) WalletService {
	currency = strings.ToLower(currency)
	if currency == "" {
		currency = "usd"
	}
	return &walletService{
		store:      store,
		gateway:    gateway,
		notifier:   notifier,
		reconciler: reconciler{repo: store.Reconciliations, currency: currency},
		currency:   currency,
	}
}

// GetWallet returns a zero wallet for sellers who have not sold anything yet.
func (s *walletService) GetWallet(ctx context.Context, sellerUID string) (*model.Wallet, error) {
	if sellerUID == "" {
		return nil, fmt.Errorf("%w: seller is required", ErrValidation)
	}
	w, err := s.store.Wallets.Get(ctx, sellerUID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.Wallet{SellerUID: sellerUID, Currency: s.currency}, nil
	}
	return w, err
}

// WithdrawFunds pays the whole available balance out to the seller's connected account.
// The transfer idempotency key is derived from the wallet's withdrawal sequence, so a retried
// request after a lost response cannot pay twice.
func (s *walletService) WithdrawFunds(ctx context.Context, sellerUID string) (*Withdrawal, error) {
	w, err := s.store.Wallets.Get(ctx, sellerUID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no wallet for %s", ErrInsufficientBalance, sellerUID)
	}
	if err != nil {
		return nil, err
	}
	amount := w.AvailableBalance
	cents := payment.ToMinorUnits(amount)
	if cents <= 0 {
		return nil, fmt.Errorf("%w: nothing available to withdraw", ErrInsufficientBalance)
	}

	acct, err := s.store.SellerAccounts.Get(ctx, sellerUID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if !acct.PayoutReady() {
		return nil, ErrPayoutAccountNotReady
	}

	key := fmt.Sprintf("withdraw-%s-%d", sellerUID, w.WithdrawalSeq)
	tr, err := s.gateway.Transfer(ctx, payment.TransferRequest{
		Destination:    acct.ConnectAccountID,
		Amount:         cents,
		Currency:       w.Currency,
		Description:    "Marketplace payout",
		Metadata:       map[string]string{metaSellerUID: sellerUID, "withdrawal_seq": fmt.Sprint(w.WithdrawalSeq)},
		IdempotencyKey: key,
	})
	if err != nil {
		return nil, fmt.Errorf("withdraw for %s: %w", sellerUID, err)
	}

	if err := s.store.Wallets.Withdraw(ctx, sellerUID, w.WithdrawalSeq, amount); err != nil {
		if done, ok := s.alreadyWithdrawn(ctx, w, amount, tr.ID, err); ok {
			return done, nil
		}
		s.reconciler.record(ctx, model.ReconcileWithdrawal, key, tr.ID, amount, err)
		return nil, settlementFailure(err)
	}

	logs.Infof("withdrawal seller=%s amount=%s transfer=%s rid=%s", sellerUID, amount.StringFixed(2), tr.ID, reqctx.RID(ctx))
	if s.notifier != nil {
		s.notifier.Notify(ctx, sellerUID, NotifyPayout, "Payout sent",
			fmt.Sprintf("%s %s is on its way to your account.", amount.StringFixed(2), strings.ToUpper(w.Currency)), nil)
	}
	updated, err := s.store.Wallets.Get(ctx, sellerUID)
	if err != nil {
		return nil, err
	}
	return &Withdrawal{Amount: amount, Currency: w.Currency, TransferID: tr.ID, Wallet: updated}, nil
}

// alreadyWithdrawn reports whether a concurrent request with the same withdrawal sequence
// committed first. Both sent the same idempotency key, so they share one transfer.
func (s *walletService) alreadyWithdrawn(ctx context.Context, before *model.Wallet, amount decimal.Decimal, transferID string, cause error) (*Withdrawal, bool) {
	if !errors.Is(cause, repository.ErrNoRowsAffected) {
		return nil, false
	}
	cur, err := s.store.Wallets.Get(ctx, before.SellerUID)
	if err != nil || cur.WithdrawalSeq <= before.WithdrawalSeq {
		return nil, false
	}
	logs.Infof("withdrawal already committed seller=%s seq=%d transfer=%s rid=%s", before.SellerUID, before.WithdrawalSeq, transferID, reqctx.RID(ctx))
	return &Withdrawal{Amount: amount, Currency: before.Currency, TransferID: transferID, Wallet: cur}, true
}

// StartPayoutOnboarding creates the seller's connected account on first use and
// returns a fresh onboarding link.
func (s *walletService) StartPayoutOnboarding(ctx context.Context, sellerUID, email string) (string, error) {
	if sellerUID == "" {
		return "", fmt.Errorf("%w: seller is required", ErrValidation)
	}
	acct, err := s.store.SellerAccounts.Get(ctx, sellerUID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		acct = &model.SellerAccount{SellerUID: sellerUID, OnboardingStatus: model.OnboardingNotStarted}
	} else if err != nil {
		return "", err
	}

	if acct.ConnectAccountID == "" {
		id, err := s.gateway.CreateConnectedAccount(ctx, sellerUID, email)
		if err != nil {
			return "", fmt.Errorf("create payout account for %s: %w", sellerUID, err)
		}
		acct.ConnectAccountID = id
		acct.OnboardingStatus = model.OnboardingInProgress
		if email != "" {
			acct.Email = email
		}
		if err := s.store.SellerAccounts.Upsert(ctx, acct); err != nil {
			return "", err
		}
		logs.Infof("payout account created seller=%s account=%s rid=%s", sellerUID, id, reqctx.RID(ctx))
	}

	link, err := s.gateway.OnboardingLink(ctx, acct.ConnectAccountID)
	if err != nil {
		return "", fmt.Errorf("onboarding link for %s: %w", sellerUID, err)
	}
	return link, nil
}

// PayoutAccountStatus refreshes the onboarding status from the gateway.
func (s *walletService) PayoutAccountStatus(ctx context.Context, sellerUID string) (*model.SellerAccount, error) {
	acct, err := s.store.SellerAccounts.Get(ctx, sellerUID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.SellerAccount{SellerUID: sellerUID, OnboardingStatus: model.OnboardingNotStarted}, nil
	}
	if err != nil {
		return nil, err
	}
	if acct.ConnectAccountID == "" {
		return acct, nil
	}

	st, err := s.gateway.AccountStatus(ctx, acct.ConnectAccountID)
	if err != nil {
		return nil, fmt.Errorf("payout account status for %s: %w", sellerUID, err)
	}
	status := model.OnboardingInProgress
	if st.Ready() {
		status = model.OnboardingCompleted
	}
	if status != acct.OnboardingStatus {
		if err := s.store.SellerAccounts.UpdateOnboardingStatus(ctx, sellerUID, status); err != nil {
			return nil, err
		}
		acct.OnboardingStatus = status
	}
	return acct, nil
}
