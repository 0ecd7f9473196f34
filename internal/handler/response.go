package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/escrow-backend/internal/reqctx"
	"github.com/shinyyama/escrow-backend/internal/service"
	"github.com/yanun0323/logs"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error errorPayload `json:"error"`
}

func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: errorPayload{
			Code:    code,
			Message: message,
		},
	}
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// errorMappings is checked in order. Insufficient stock is listed before settlement
// failure because a lost stock race after payment wraps both.
var errorMappings = []errorMapping{
	{service.ErrInsufficientStock, http.StatusBadRequest, "insufficient_stock"},
	{service.ErrSettlementFailed, http.StatusInternalServerError, "settlement_failed"},
	{service.ErrGateway, http.StatusBadGateway, "gateway_error"},
	{service.ErrValidation, http.StatusBadRequest, "validation_error"},
	{service.ErrNotFound, http.StatusNotFound, "not_found"},
	{service.ErrForbidden, http.StatusForbidden, "forbidden"},
	{service.ErrForbiddenTransition, http.StatusForbidden, "forbidden_transition"},
	{service.ErrInvalidTransition, http.StatusBadRequest, "invalid_transition"},
	{service.ErrInvalidState, http.StatusBadRequest, "invalid_state"},
	{service.ErrOutOfStock, http.StatusBadRequest, "out_of_stock"},
	{service.ErrInsufficientBalance, http.StatusBadRequest, "insufficient_balance"},
	{service.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{service.ErrPaymentNotCompleted, http.StatusBadRequest, "payment_not_completed"},
	{service.ErrEscrowNotHeld, http.StatusBadRequest, "escrow_not_held"},
}

var serverMessages = map[string]string{
	"settlement_failed": "payment was received but could not be settled; it has been queued for reconciliation",
	"gateway_error":     "payment provider request failed",
	"internal_error":    "internal error",
}

func classify(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// respondError writes the error envelope. Server-side failures get a fixed message.
func respondError(c echo.Context, err error) error {
	status, code := classify(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logs.Errorf("%s %s failed status=%d rid=%s, err: %+v",
			c.Request().Method, c.Path(), status, reqctx.RID(c.Request().Context()), err)
		msg = serverMessages[code]
	}
	return c.JSON(status, NewErrorResponse(code, msg))
}

func currentUID(c echo.Context) (string, bool) {
	uid, _ := c.Get("uid").(string)
	return uid, uid != ""
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
}
