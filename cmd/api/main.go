package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shinyyama/escrow-backend/internal/config"
	"github.com/shinyyama/escrow-backend/internal/db"
	appmw "github.com/shinyyama/escrow-backend/internal/middleware"
	"github.com/shinyyama/escrow-backend/internal/payment"
	"github.com/shinyyama/escrow-backend/internal/server"
	"github.com/yanun0323/logs"
)

var (
	gitSHA    = "dev"
	buildTime = ""
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logs.Errorf("config load error: %+v", err)
		os.Exit(1)
	}

	gateway, err := payment.NewStripeGateway(payment.StripeConfig{
		SecretKey:            cfg.StripeSecretKey,
		WebhookSecret:        cfg.StripeWebhookSecret,
		SuccessURL:           cfg.PublicURL() + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:            cfg.PublicURL() + "/checkout/cancel",
		OnboardingRefreshURL: cfg.PublicURL() + "/seller/payouts?refresh=1",
		OnboardingReturnURL:  cfg.PublicURL() + "/seller/payouts",
		Timeout:              cfg.GatewayTimeout(),
		MaxRetries:           cfg.GatewayMaxRetries,
	})
	if err != nil {
		logs.Errorf("payment gateway init error: %+v", err)
		os.Exit(1)
	}

	authMw := appmw.NewDevAuthMiddleware()
	if cfg.FirebaseProjectID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		authMw, err = appmw.NewAuthMiddleware(ctx, cfg.FirebaseProjectID, cfg.GoogleCredentialsFile)
		cancel()
		if err != nil {
			logs.Errorf("firebase auth init error: %+v", err)
			os.Exit(1)
		}
	} else {
		logs.Info("FIREBASE_PROJECT_ID not set; trusting X-User-ID header")
	}

	srv := server.New(cfg, nil, gateway, authMw, gitSHA, buildTime)
	addr := ":" + cfg.Port

	errCh := make(chan error, 1)

	go func() {
		logs.Infof("starting server on %s sha=%s", addr, gitSHA)
		errCh <- srv.Start(addr)
	}()

	go func() {
		conn, err := db.Connect(cfg)
		if err != nil {
			logs.Errorf("db connect error: %+v", err)
			return
		}
		if err := db.Migrate(conn); err != nil {
			logs.Errorf("auto migrate error: %+v", err)
			return
		}
		srv.SetDB(conn)
		logs.Info("database ready")
	}()

	if err := <-errCh; err != nil {
		logs.Errorf("server stopped: %+v", err)
		os.Exit(1)
	}
}
