package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/escrow-backend/internal/payment"
	"github.com/shinyyama/escrow-backend/internal/reqctx"
	"github.com/shinyyama/escrow-backend/internal/service"
	"github.com/yanun0323/logs"
)

const maxWebhookBody = 64 << 10

type CheckoutHandler struct {
	svc     service.SettlementService
	gateway payment.Gateway
}

func NewCheckoutHandler(svc service.SettlementService, gateway payment.Gateway) *CheckoutHandler {
	return &CheckoutHandler{svc: svc, gateway: gateway}
}

func (h *CheckoutHandler) Checkout(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	var req service.CartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid body"))
	}
	res, err := h.svc.InitiateCheckout(c.Request().Context(), uid, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"checkoutUrl": res.CheckoutURL,
		"sessionId":   res.SessionID,
		"totalAmount": res.TotalAmount.StringFixed(2),
	})
}

// Confirm handles the buyer's redirect back from the hosted checkout page. Anyone holding
// the session id may trigger confirmation, but only the buyer sees the order.
func (h *CheckoutHandler) Confirm(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "session_id is required"))
	}
	o, err := h.svc.ConfirmPayment(c.Request().Context(), sessionID)
	if err != nil {
		return respondError(c, err)
	}
	if o.BuyerUID != uid {
		return c.JSON(http.StatusOK, map[string]interface{}{"confirmed": true, "orderId": o.ID})
	}
	return c.JSON(http.StatusOK, toOrderResponse(o))
}

// Webhook confirms orders from signed gateway events. Non-2xx responses make the gateway retry.
func (h *CheckoutHandler) Webhook(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "unreadable body"))
	}
	sessionID, ok, err := h.gateway.ParseCheckoutCompleted(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		logs.Errorf("webhook rejected rid=%s, err: %+v", reqctx.RID(c.Request().Context()), err)
		return c.JSON(http.StatusBadRequest, NewErrorResponse("invalid_webhook", "signature verification failed"))
	}
	if !ok {
		return c.JSON(http.StatusOK, map[string]bool{"received": true})
	}
	o, err := h.svc.ConfirmPayment(c.Request().Context(), sessionID)
	if errors.Is(err, service.ErrPaymentNotCompleted) {
		return c.JSON(http.StatusOK, map[string]bool{"received": true})
	}
	if errors.Is(err, service.ErrReconciliationPending) {
		logs.Errorf("webhook for reconciled session=%s rid=%s, err: %+v", sessionID, reqctx.RID(c.Request().Context()), err)
		return c.JSON(http.StatusOK, map[string]bool{"received": true})
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"received": true, "orderId": o.ID})
}
