package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/escrow-backend/internal/service"
)

type WalletHandler struct {
	svc service.WalletService
}

func NewWalletHandler(svc service.WalletService) *WalletHandler {
	return &WalletHandler{svc: svc}
}

func (h *WalletHandler) Get(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	w, err := h.svc.GetWallet(c.Request().Context(), uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toWalletResponse(w))
}

// Withdraw pays out the available balance. Sellers without a payout account get an
// onboarding link instead of an error.
func (h *WalletHandler) Withdraw(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	ctx := c.Request().Context()
	res, err := h.svc.WithdrawFunds(ctx, uid)
	if errors.Is(err, service.ErrPayoutAccountNotReady) {
		email, _ := c.Get("email").(string)
		link, err := h.svc.StartPayoutOnboarding(ctx, uid, email)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"onboardingRequired": true,
			"onboardingUrl":      link,
		})
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"amount":     res.Amount.StringFixed(2),
		"currency":   res.Currency,
		"transferId": res.TransferID,
		"wallet":     toWalletResponse(res.Wallet),
	})
}

func (h *WalletHandler) StartOnboarding(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	email, _ := c.Get("email").(string)
	link, err := h.svc.StartPayoutOnboarding(c.Request().Context(), uid, email)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"onboardingUrl": link})
}

func (h *WalletHandler) PayoutStatus(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	acct, err := h.svc.PayoutAccountStatus(c.Request().Context(), uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"connected":        acct.ConnectAccountID != "",
		"onboardingStatus": acct.OnboardingStatus,
		"payoutReady":      acct.PayoutReady(),
	})
}
