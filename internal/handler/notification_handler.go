package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/escrow-backend/internal/model"
	"github.com/shinyyama/escrow-backend/internal/repository"
	"github.com/shinyyama/escrow-backend/internal/service"
)

type NotificationHandler struct {
	svc service.NotificationService
}

func NewNotificationHandler(svc service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

type NotificationResponse struct {
	ID        uint64  `json:"id"`
	Type      string  `json:"type"`
	Title     string  `json:"title"`
	Body      string  `json:"body"`
	OrderID   *uint64 `json:"orderId,omitempty"`
	Read      bool    `json:"read"`
	CreatedAt string  `json:"createdAt"`
}

func toNotificationResponse(n model.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Body:      n.Body,
		OrderID:   n.OrderID,
		Read:      n.ReadAt != nil,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
}

// List returns the caller's feed. Query: unread_only (default true), limit, order_id, before.
func (h *NotificationHandler) List(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	q := repository.NotificationQuery{
		UserUID:    uid,
		UnreadOnly: c.QueryParam("unread_only") != "false",
		Limit:      queryInt(c, "limit"),
		BeforeID:   uint64(queryInt(c, "before")),
	}
	if oid := queryInt(c, "order_id"); oid > 0 {
		id := uint64(oid)
		q.OrderID = &id
	}
	page, err := h.svc.List(c.Request().Context(), q)
	if err != nil {
		return respondError(c, err)
	}
	resp := make([]NotificationResponse, 0, len(page.Items))
	for _, n := range page.Items {
		resp = append(resp, toNotificationResponse(n))
	}
	out := map[string]interface{}{
		"notifications": resp,
		"unreadCount":   page.UnreadCount,
	}
	if page.NextBefore > 0 {
		out["nextBefore"] = page.NextBefore
	}
	return c.JSON(http.StatusOK, out)
}

func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	n, err := h.svc.MarkAllRead(c.Request().Context(), uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"marked": n})
}

// queryInt returns 0 for a missing or malformed parameter.
func queryInt(c echo.Context, name string) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || v < 0 {
		return 0
	}
	return v
}
