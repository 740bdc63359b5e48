package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/bridge"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/notify"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/payment"
	paymentrepo "github.com/ovaphlow/pitchfork/service-payreq-go/internal/payment/repo"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/paymentrequest"
	requestrepo "github.com/ovaphlow/pitchfork/service-payreq-go/internal/paymentrequest/repo"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/profile"
	profilerepo "github.com/ovaphlow/pitchfork/service-payreq-go/internal/profile/repo"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/reward"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-payreq-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-payreq-go/pkg/keylock"
	"github.com/ovaphlow/pitchfork/service-payreq-go/pkg/secretbox"
	"github.com/ovaphlow/pitchfork/service-payreq-go/pkg/utilities"
)

func main() {
	// best-effort: real env wins when no .env exists
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting service-payreq-go")

	db, err := database.Open(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	box, err := secretbox.FromEnv()
	if err != nil {
		sugar.Fatalf("token sealing: %v", err)
	}
	if !box.Enabled() {
		sugar.Warn("TOKEN_SEALING_KEY not set; provider tokens are stored in plaintext")
	}

	bridgeCfg := bridge.ConfigFromEnv()
	if bridgeCfg.APIKey == "" || bridgeCfg.JWTSecret == "" {
		sugar.Warn("PROVIDER_API_KEY or PROVIDER_JWT_SECRET not set; provisioning will fail")
	}

	locks, closeLocks, err := keylock.NewFromEnv(ctx, bridgeCfg.LockLease())
	if err != nil {
		sugar.Fatalf("lock backend: %v", err)
	}
	defer closeLocks()

	webhook := notify.NewWebhook(notify.ConfigFromEnv(), sugar)

	profiles := profilerepo.NewProfileRepo(db, box)
	client := bridge.NewClient(bridgeCfg, sugar)
	provisioner := bridge.NewService(profiles, client, locks, sugar)

	requestSvc := paymentrequest.NewService(requestrepo.NewRequestRepo(db), locks, webhook, sugar, paymentrequest.ConfigFromEnv())
	rewardSvc := reward.NewService(profiles, provisioner, client, locks, sugar)
	profileSvc := profile.NewService(profiles, provisioner, sugar)
	paymentSvc := payment.NewService(paymentrepo.NewPaymentRepo(db), sugar)

	routerCfg := router.ConfigFromEnv()
	handler := router.RegisterRoutes(router.Deps{
		Requests: paymentrequest.NewHandler(requestSvc, sugar),
		Rewards:  reward.NewHandler(rewardSvc, sugar),
		Profiles: profile.NewHandler(profileSvc, sugar),
		Payments: payment.NewHandler(paymentSvc, sugar),
		Ping:     db.PingContext,
	}, routerCfg, sugar)

	srv := &http.Server{
		Addr:              routerCfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Infow("http server listening", "addr", routerCfg.Addr)

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	if err := webhook.Wait(doneCtx); err != nil {
		sugar.Warnf("webhook deliveries still in flight: %v", err)
	}

	sugar.Info("goodbye")
}
