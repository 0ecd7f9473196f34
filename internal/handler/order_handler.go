package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/escrow-backend/internal/model"
	"github.com/shinyyama/escrow-backend/internal/reqctx"
	"github.com/shinyyama/escrow-backend/internal/service"
)

type OrderHandler struct {
	settle service.SettlementService
	orders service.OrderService
	notify service.NotificationService
}

func NewOrderHandler(settle service.SettlementService, orders service.OrderService, notify service.NotificationService) *OrderHandler {
	return &OrderHandler{settle: settle, orders: orders, notify: notify}
}

// orderRequest resolves the caller and the :id path parameter and tags the request context
// with the order. When ok is false the error response has already been written.
func orderRequest(c echo.Context) (uid string, id uint64, ok bool, err error) {
	uid, ok = currentUID(c)
	if !ok {
		return "", 0, false, unauthorized(c)
	}
	id, perr := strconv.ParseUint(c.Param("id"), 10, 64)
	if perr != nil {
		return "", 0, false, c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid order id"))
	}
	c.SetRequest(c.Request().WithContext(reqctx.WithOrderID(c.Request().Context(), id)))
	return uid, id, true, nil
}

func (h *OrderHandler) CreatePending(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	var req service.CartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid body"))
	}
	o, err := h.settle.CreatePendingOrder(c.Request().Context(), uid, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toOrderResponse(o))
}

func (h *OrderHandler) StartCheckout(c echo.Context) error {
	uid, id, ok, err := orderRequest(c)
	if !ok {
		return err
	}
	res, err := h.settle.InitiatePendingOrderCheckout(c.Request().Context(), id, uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"orderId":     res.OrderID,
		"checkoutUrl": res.CheckoutURL,
		"sessionId":   res.SessionID,
		"totalAmount": res.TotalAmount.StringFixed(2),
	})
}

func (h *OrderHandler) Get(c echo.Context) error {
	uid, id, ok, err := orderRequest(c)
	if !ok {
		return err
	}
	o, err := h.orders.Get(c.Request().Context(), id, uid)
	if err != nil {
		return respondError(c, err)
	}
	if h.notify != nil {
		_ = h.notify.MarkByOrder(c.Request().Context(), uid, o.ID)
	}
	return c.JSON(http.StatusOK, toOrderResponse(o))
}

func (h *OrderHandler) GetEscrow(c echo.Context) error {
	uid, id, ok, err := orderRequest(c)
	if !ok {
		return err
	}
	e, err := h.orders.GetEscrow(c.Request().Context(), id, uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toEscrowResponse(e))
}

func (h *OrderHandler) ListMine(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	list, err := h.orders.ListByBuyer(c.Request().Context(), uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"orders": toOrderList(list)})
}

func (h *OrderHandler) ListSales(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	list, err := h.orders.ListBySeller(c.Request().Context(), uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"orders": toOrderList(list)})
}

func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	uid, id, ok, err := orderRequest(c)
	if !ok {
		return err
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil || body.Status == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "status is required"))
	}
	o, err := h.settle.UpdateStatusBySeller(c.Request().Context(), id, uid, model.OrderStatus(body.Status))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResponse(o))
}

func (h *OrderHandler) Complete(c echo.Context) error {
	uid, id, ok, err := orderRequest(c)
	if !ok {
		return err
	}
	o, err := h.settle.CompleteOrder(c.Request().Context(), id, uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResponse(o))
}

func (h *OrderHandler) Cancel(c echo.Context) error {
	uid, id, ok, err := orderRequest(c)
	if !ok {
		return err
	}
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.Bind(&body)
	o, err := h.settle.CancelOrRefund(c.Request().Context(), id, uid, body.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResponse(o))
}
