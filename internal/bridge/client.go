package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/httpx"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/profile/entity"
	"github.com/ovaphlow/pitchfork/service-payreq-go/pkg/utilities"
)

const maxResponseBody = 1 << 20

// ProviderError is a non-2xx answer from the provider.
type ProviderError struct {
	Operation string
	Status    int
	Body      string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: status %d: %s", e.Operation, e.Status, e.Body)
}

// CampaignEvent is a campaign attribution event as the provider expects it.
type CampaignEvent struct {
	EventID    string         `json:"event_id"`
	EventType  string         `json:"event_type"`
	UserID     string         `json:"user_id"`
	CampaignID string         `json:"campaign_id"`
	Metadata   map[string]any `json:"metadata"`
	Timestamp  string         `json:"timestamp"`
}

// Client talks to the identity/attribution provider.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.SugaredLogger
}

func NewClient(cfg Config, logger *zap.SugaredLogger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Transport: transport, Timeout: cfg.Timeout},
		logger: logger,
	}
}

// MintAssertion signs the HS256 token the provider uses to trust our wallet id.
func (c *Client) MintAssertion(wallet string, now time.Time) (string, error) {
	if c.cfg.JWTSecret == "" {
		return "", errors.New("provider JWT secret not configured")
	}
	claims := jwt.RegisteredClaims{
		Subject:   wallet,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(AssertionTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.cfg.JWTSecret))
}

type registerRequest struct {
	Provider string       `json:"provider"`
	Data     registerData `json:"data"`
}

type registerData struct {
	Token        string `json:"token"`
	ClientUserID string `json:"client_user_id"`
	Name         string `json:"name"`
}

type registerResponse struct {
	Data struct {
		User struct {
			User struct {
				ID httpx.FlexString `json:"id"`
			} `json:"user"`
		} `json:"user"`
		Tokens struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		} `json:"tokens"`
	} `json:"data"`
}

// Register creates the wallet's identity at the provider.
func (c *Client) Register(ctx context.Context, wallet, name string) (entity.ExternalIdentity, error) {
	token, err := c.MintAssertion(wallet, time.Now())
	if err != nil {
		return entity.ExternalIdentity{}, err
	}
	body := registerRequest{
		Provider: "jwt",
		Data:     registerData{Token: token, ClientUserID: wallet, Name: name},
	}
	var resp registerResponse
	if err := c.post(ctx, "register", "/identity/register", body, &resp); err != nil {
		return entity.ExternalIdentity{}, err
	}
	id := strings.TrimSpace(resp.Data.User.User.ID.String())
	if id == "" {
		return entity.ExternalIdentity{}, errors.New("provider register: identity id missing in response")
	}
	ident := entity.ExternalIdentity{
		ID:           id,
		AccessToken:  resp.Data.Tokens.AccessToken,
		RefreshToken: resp.Data.Tokens.RefreshToken,
	}
	c.logger.Debugw("provider identity registered",
		"wallet", wallet,
		"external_id", id,
		"access_token", utilities.MaskToken(ident.AccessToken),
	)
	return ident, nil
}

// SubmitEvent posts a campaign event and returns the provider's JSON object.
func (c *Client) SubmitEvent(ctx context.Context, ev CampaignEvent) (map[string]any, error) {
	if ev.Metadata == nil {
		ev.Metadata = map[string]any{}
	}
	var out map[string]any
	if err := c.post(ctx, "submit_event", "/attribution/events/campaign", ev, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("provider submit_event: empty response")
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, op, path string, in, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeFailure
		}
		metrics.ProviderCalls.WithLabelValues(op, outcome).Inc()
		metrics.ProviderLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("provider %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("provider %s: read body: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ProviderError{Operation: op, Status: resp.StatusCode, Body: truncate(string(raw), 512)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("provider %s: decode response: %w", op, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
