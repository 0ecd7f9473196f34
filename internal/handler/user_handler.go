package handler

import (
	"context"
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/escrow-backend/internal/model"
	"github.com/shinyyama/escrow-backend/internal/service"
)

type userDirectory interface {
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
}

type payoutStatusReader interface {
	PayoutAccountStatus(ctx context.Context, sellerUID string) (*model.SellerAccount, error)
}

// UserHandler serves the public seller card shown next to listings and orders.
type UserHandler struct {
	users   userDirectory
	payouts payoutStatusReader
}

func NewUserHandler(users userDirectory, wallets service.WalletService) *UserHandler {
	return &UserHandler{users: users, payouts: wallets}
}

type PublicUserResponse struct {
	UID            string  `json:"uid"`
	DisplayName    string  `json:"displayName"`
	PhotoURL       *string `json:"photoURL"`
	AcceptsPayment bool    `json:"acceptsPayment"`
}

func (h *UserHandler) GetPublic(c echo.Context) error {
	uid := c.Param("uid")
	if uid == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid uid"))
	}
	user, err := h.users.GetUser(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "user not found"))
	}
	resp := PublicUserResponse{
		UID:         user.UID,
		DisplayName: user.DisplayName,
		PhotoURL:    strPtrOrNil(user.PhotoURL),
	}
	if acct, err := h.payouts.PayoutAccountStatus(c.Request().Context(), uid); err == nil {
		resp.AcceptsPayment = acct.PayoutReady()
	}
	return c.JSON(http.StatusOK, resp)
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
