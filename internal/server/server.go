package server

import (
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shinyyama/escrow-backend/internal/config"
	"github.com/shinyyama/escrow-backend/internal/handler"
	appmw "github.com/shinyyama/escrow-backend/internal/middleware"
	"github.com/shinyyama/escrow-backend/internal/payment"
	"github.com/shinyyama/escrow-backend/internal/repository"
	"github.com/shinyyama/escrow-backend/internal/service"
	"gorm.io/gorm"
)

type Server struct {
	e     *echo.Echo
	store *repository.Store
	ready atomic.Bool
	sha   string
	build string
}

// New wires every route. db may be nil; API routes answer 503 until SetDB is called.
func New(cfg *config.Config, db *gorm.DB, gateway payment.Gateway, authMw *appmw.AuthMiddleware, sha, buildTime string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(appmw.RequestContext)
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization", appmw.HeaderUserID},
		AllowCredentials: true,
		AllowOriginFunc:  allowOrigin(cfg.AllowedOriginSuffix),
	}))

	s := &Server{e: e, store: repository.NewStore(db), sha: sha, build: buildTime}
	if db != nil {
		s.ready.Store(true)
	}

	notifySvc := service.NewNotificationService(s.store.Notifications)
	settleSvc := service.NewSettlementService(s.store, gateway, notifySvc, service.SettlementOptions{
		FeeRate:  cfg.FeeRate(),
		Currency: cfg.Currency,
	})
	walletSvc := service.NewWalletService(s.store, gateway, notifySvc, cfg.Currency)
	orderSvc := service.NewOrderService(s.store.Orders, s.store.Escrows)

	checkoutHandler := handler.NewCheckoutHandler(settleSvc, gateway)
	orderHandler := handler.NewOrderHandler(settleSvc, orderSvc, notifySvc)
	walletHandler := handler.NewWalletHandler(walletSvc)
	notificationHandler := handler.NewNotificationHandler(notifySvc)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"ok":         "true",
			"db_ready":   boolString(s.ready.Load()),
			"git_sha":    sha,
			"build_time": buildTime,
		})
	})

	api := e.Group("/api", s.requireDB)
	api.POST("/webhooks/payment", checkoutHandler.Webhook)

	authed := api.Group("", authMw.RequireAuth)
	authed.POST("/checkout", checkoutHandler.Checkout)
	authed.GET("/checkout/confirm", checkoutHandler.Confirm)

	authed.POST("/orders", orderHandler.CreatePending)
	authed.POST("/orders/:id/checkout", orderHandler.StartCheckout)
	authed.GET("/orders/:id", orderHandler.Get)
	authed.GET("/orders/:id/escrow", orderHandler.GetEscrow)
	authed.PUT("/orders/:id/status", orderHandler.UpdateStatus)
	authed.POST("/orders/:id/complete", orderHandler.Complete)
	authed.POST("/orders/:id/cancel", orderHandler.Cancel)
	authed.GET("/me/orders", orderHandler.ListMine)
	authed.GET("/me/sales", orderHandler.ListSales)

	authed.GET("/me/wallet", walletHandler.Get)
	authed.POST("/me/wallet/withdraw", walletHandler.Withdraw)
	authed.POST("/me/payout-account", walletHandler.StartOnboarding)
	authed.GET("/me/payout-account", walletHandler.PayoutStatus)

	if users := authMw.Users(); users != nil {
		authed.GET("/users/:uid", handler.NewUserHandler(users, walletSvc).GetPublic)
	}

	authed.GET("/notifications", notificationHandler.List)
	authed.POST("/notifications/read", notificationHandler.MarkAllRead)

	return s
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) Handler() http.Handler {
	return s.e
}

// SetDB attaches the database once it is reachable.
func (s *Server) SetDB(db *gorm.DB) {
	s.store.SetDB(db)
	s.ready.Store(db != nil)
}

func (s *Server) requireDB(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.ready.Load() {
			return c.JSON(http.StatusServiceUnavailable, handler.NewErrorResponse("unavailable", "database is not ready"))
		}
		return next(c)
	}
}

func allowOrigin(suffix string) func(origin string) (bool, error) {
	return func(origin string) (bool, error) {
		low := strings.ToLower(origin)
		if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
			strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
			return true, nil
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false, nil
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return false, nil
		}
		if suffix != "" && strings.HasSuffix(u.Hostname(), suffix) {
			return true, nil
		}
		return false, nil
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
