// Package notify delivers payment-request state changes to an optional
// outbound webhook. Delivery is fire-and-forget: it never blocks or fails
// the operation that triggered it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/metrics"
)

// Event is the webhook body.
type Event struct {
	RequestID     string `json:"requestId"`
	Status        string `json:"status"`
	SettlementRef string `json:"settlementRef"`
}

type Config struct {
	URL     string
	Timeout time.Duration
}

// ConfigFromEnv reads REQUEST_NOTIFICATION_WEBHOOK and WEBHOOK_TIMEOUT.
func ConfigFromEnv() Config {
	timeout := 5 * time.Second
	if v := os.Getenv("WEBHOOK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			timeout = d
		}
	}
	return Config{URL: strings.TrimSpace(os.Getenv("REQUEST_NOTIFICATION_WEBHOOK")), Timeout: timeout}
}

// Webhook posts events to the configured URL in background goroutines.
type Webhook struct {
	cfg    Config
	client *http.Client
	logger *zap.SugaredLogger
	wg     sync.WaitGroup
}

func NewWebhook(cfg Config, logger *zap.SugaredLogger) *Webhook {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Webhook{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Enabled reports whether a webhook URL is configured.
func (w *Webhook) Enabled() bool { return w != nil && w.cfg.URL != "" }

// Notify schedules delivery and returns immediately. Without a configured
// URL it does nothing.
func (w *Webhook) Notify(ev Event) {
	if !w.Enabled() {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				w.logger.Errorw("webhook delivery panicked",
					"request_id", ev.RequestID,
					"panic", fmt.Sprintf("%v", r),
					"stack", string(debug.Stack()),
				)
			}
		}()
		if err := w.deliver(ev); err != nil {
			metrics.WebhookDeliveries.WithLabelValues(metrics.OutcomeFailure).Inc()
			w.logger.Warnw("webhook notify failed", "request_id", ev.RequestID, "status", ev.Status, "err", err)
			return
		}
		metrics.WebhookDeliveries.WithLabelValues(metrics.OutcomeSuccess).Inc()
		w.logger.Debugw("webhook delivered", "request_id", ev.RequestID, "status", ev.Status)
	}()
}

func (w *Webhook) deliver(ev Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}

// Wait blocks until in-flight deliveries finish or ctx ends.
func (w *Webhook) Wait(ctx context.Context) error {
	if w == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
