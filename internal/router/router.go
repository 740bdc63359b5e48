package router

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/httpx"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/payment"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/paymentrequest"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/profile"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/reward"
)

type Config struct {
	Addr string
	// RateLimitRPS of 0 disables rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// ConfigFromEnv reads HTTP_ADDR, RATE_LIMIT_RPS and RATE_LIMIT_BURST.
func ConfigFromEnv() Config {
	cfg := Config{Addr: ":8080", RateLimitRPS: 20, RateLimitBurst: 40}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64); err == nil && v >= 0 {
		cfg.RateLimitRPS = v
	}
	if v, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST")); err == nil && v > 0 {
		cfg.RateLimitBurst = v
	}
	return cfg
}

// Deps carries the handlers mounted by RegisterRoutes. Ping, when set,
// backs the health check.
type Deps struct {
	Requests *paymentrequest.Handler
	Rewards  *reward.Handler
	Profiles *profile.Handler
	Payments *payment.Handler
	Ping     func(ctx context.Context) error
}

// RegisterRoutes mounts HTTP handlers using the standard library's http.ServeMux.
func RegisterRoutes(deps Deps, cfg Config, logger *zap.SugaredLogger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Ping(ctx); err != nil {
				logger.Warnw("health check failed", "err", err)
				httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "status": "unavailable"})
				return
			}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ok"})
	})
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /api/requests", deps.Requests.Create)
	mux.HandleFunc("GET /api/requests", deps.Requests.List)
	mux.HandleFunc("GET /api/requests/{id}", deps.Requests.Get)
	mux.HandleFunc("POST /api/requests/{id}/accept", deps.Requests.Accept)
	mux.HandleFunc("POST /api/requests/{id}/cancel", deps.Requests.Cancel)

	mux.HandleFunc("POST /api/rewards", deps.Rewards.Record)
	mux.HandleFunc("GET /api/rewards", deps.Rewards.List)

	mux.HandleFunc("POST /api/users/register", deps.Profiles.Register)
	mux.HandleFunc("GET /api/users", deps.Profiles.List)
	mux.HandleFunc("GET /api/users/{wallet}", deps.Profiles.Get)
	mux.HandleFunc("POST /api/users/{wallet}/provision", deps.Profiles.Provision)

	mux.HandleFunc("POST /api/payments", deps.Payments.Record)
	mux.HandleFunc("GET /api/payments", deps.Payments.List)

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, logger, r, apperr.NotFound("route not found"))
	})

	var handler http.Handler = mux
	if cfg.RateLimitRPS > 0 {
		store := newLimiterStore(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, 10*time.Minute)
		handler = RateLimitMiddleware(store)(handler)
	}
	handler = SecurityHeadersMiddleware()(handler)
	handler = RecoverMiddleware(logger)(handler)
	return LoggingMiddleware(logger)(handler)
}
