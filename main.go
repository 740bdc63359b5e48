// Command service-payreq-go bootstraps the PostgreSQL schema used by the API
// server in cmd/api. It is safe to run repeatedly.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	paymentrepo "github.com/ovaphlow/pitchfork/service-payreq-go/internal/payment/repo"
	requestrepo "github.com/ovaphlow/pitchfork/service-payreq-go/internal/paymentrequest/repo"
	profilerepo "github.com/ovaphlow/pitchfork/service-payreq-go/internal/profile/repo"
	"github.com/ovaphlow/pitchfork/service-payreq-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-payreq-go/pkg/utilities"
)

type tableEnsurer interface {
	EnsureTable(ctx context.Context) error
}

func main() {
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()

	db, err := database.Open(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// profiles before payment_requests/payments; profile_rewards references profiles
	tables := []struct {
		name string
		repo tableEnsurer
	}{
		{"profiles", profilerepo.NewProfileRepo(db, nil)},
		{"payment_requests", requestrepo.NewRequestRepo(db)},
		{"payments", paymentrepo.NewPaymentRepo(db)},
	}
	for _, t := range tables {
		if err := t.repo.EnsureTable(ctx); err != nil {
			sugar.Fatalf("ensure %s: %v", t.name, err)
		}
		sugar.Infow("table ready", "table", t.name)
	}
	sugar.Info("schema ready")
}
