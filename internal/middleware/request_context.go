package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/escrow-backend/internal/reqctx"
)

// RequestContext copies the id assigned by echo's RequestID middleware into the request
// context so services can log it.
func RequestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		rid := c.Response().Header().Get(echo.HeaderXRequestID)
		if rid == "" {
			rid = c.Request().Header.Get(echo.HeaderXRequestID)
		}
		if rid != "" {
			c.SetRequest(c.Request().WithContext(reqctx.WithRID(c.Request().Context(), rid)))
		}
		return next(c)
	}
}
