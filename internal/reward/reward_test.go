package reward

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/bridge"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/profile/entity"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/testutil"
	"github.com/ovaphlow/pitchfork/service-payreq-go/pkg/utilities"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]any
		want     int64
	}{
		{"decimal string", map[string]any{"amount": "2.5"}, 250},
		{"absent", map[string]any{}, 0},
		{"nil metadata", nil, 0},
		{"null amount", map[string]any{"amount": nil}, 0},
		{"non numeric", map[string]any{"amount": "lots"}, 0},
		{"negative", map[string]any{"amount": "-3"}, 0},
		{"zero", map[string]any{"amount": "0"}, 0},
		{"json number float", map[string]any{"amount": 2.5}, 250},
		{"fraction floors", map[string]any{"amount": "0.019"}, 1},
		{"json.Number", map[string]any{"amount": json.Number("3")}, 300},
		{"int", map[string]any{"amount": 7}, 700},
		{"bool", map[string]any{"amount": true}, 0},
		{"largest reward", map[string]any{"amount": "92233720368547758.07"}, 9223372036854775807},
		{"exact json.Number digits", map[string]any{"amount": json.Number("12345678901234567.89")}, 1234567890123456789},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(tt.metadata)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompute_OutOfRange(t *testing.T) {
	for name, amount := range map[string]any{
		"past int64":          "92233720368547759",
		"exponent string":     "1e17",
		"float past int64":    1e20,
		"huge exponent":       "1e999999999",
		"huge json.Number":    json.Number("1e5000000"),
		"negative huge":       "-1e999999999",
		"float beyond digits": 1e300,
	} {
		t.Run(name, func(t *testing.T) {
			got, err := Compute(map[string]any{"amount": amount})
			assert.ErrorIs(t, err, utilities.ErrDecimalRange)
			assert.Zero(t, got)
		})
	}
}

func TestApplyOverride(t *testing.T) {
	payload := map[string]any{"data": map[string]any{"token_amount": 0, "event_id": "x"}}
	applyOverride(payload, 250)
	assert.Equal(t, int64(250), payload["data"].(map[string]any)["token_amount"])
	assert.Equal(t, "x", payload["data"].(map[string]any)["event_id"])

	bare := map[string]any{"success": true}
	applyOverride(bare, 0)
	assert.Equal(t, int64(0), bare["data"].(map[string]any)["token_amount"])
}

type stubProvisioner struct {
	err error
}

func (s *stubProvisioner) EnsureProvisioned(_ context.Context, p *entity.Profile) (*entity.Profile, error) {
	if s.err != nil {
		return nil, s.err
	}
	if p.Provisioned() {
		return p, nil
	}
	id := "ext-" + p.WalletAddress
	cp := *p
	cp.ExternalIdentityID = &id
	return &cp, nil
}

type stubSubmitter struct {
	mu       sync.Mutex
	events   []bridge.CampaignEvent
	err      error
	response string
}

func (s *stubSubmitter) SubmitEvent(_ context.Context, ev bridge.CampaignEvent) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	if s.err != nil {
		return nil, s.err
	}
	resp := s.response
	if resp == "" {
		resp = `{"success":true,"data":{"token_amount":0}}`
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(resp), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func newTestService(t *testing.T) (*Service, *testutil.ProfileStore, *stubProvisioner, *stubSubmitter) {
	t.Helper()
	store := testutil.NewProfileStore()
	store.Put(entity.Profile{WalletAddress: "0xabc", DisplayName: "alice"})
	prov := &stubProvisioner{}
	sub := &stubSubmitter{}
	svc := NewService(store, prov, sub, nil, zap.NewNop().Sugar())
	return svc, store, prov, sub
}

func TestRecordEvent_OverridesReward(t *testing.T) {
	svc, store, _, sub := newTestService(t)
	ctx := context.Background()

	payload, err := svc.RecordEvent(ctx, EventInput{
		WalletAddress: "0xABC",
		EventType:     "payment",
		CampaignID:    "camp-1",
		Metadata:      map[string]any{"amount": "2.5"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(250), payload["data"].(map[string]any)["token_amount"])

	history, err := store.ListRewards(ctx, "0xabc")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "payment", history[0].EventType)
	assert.Equal(t, float64(250), history[0].Payload["data"].(map[string]any)["token_amount"])

	require.Len(t, sub.events, 1)
	ev := sub.events[0]
	assert.True(t, strings.HasPrefix(ev.EventID, "payment-"))
	assert.Equal(t, "ext-0xabc", ev.UserID)
	assert.Equal(t, "camp-1", ev.CampaignID)
	_, err = time.Parse(time.RFC3339Nano, ev.Timestamp)
	assert.NoError(t, err)
}

func TestRecordEvent_RejectsOutOfRangeAmount(t *testing.T) {
	svc, store, _, sub := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordEvent(ctx, EventInput{
		WalletAddress: "0xabc",
		EventType:     "payment",
		CampaignID:    "camp-1",
		Metadata:      map[string]any{"amount": "1e17"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput), "got %v", err)

	assert.Empty(t, sub.events)
	history, err := store.ListRewards(ctx, "0xabc")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRecordEvent_AbsentAmountAndMissingData(t *testing.T) {
	svc, store, _, sub := newTestService(t)
	sub.response = `{"success":true}`

	payload, err := svc.RecordEvent(context.Background(), EventInput{WalletAddress: "0xabc", EventType: "payment", CampaignID: "camp-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), payload["data"].(map[string]any)["token_amount"])
	assert.NotNil(t, sub.events[0].Metadata)

	history, err := store.ListRewards(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestRecordEvent_Validation(t *testing.T) {
	svc, _, _, sub := newTestService(t)

	for _, in := range []EventInput{
		{EventType: "payment", CampaignID: "c"},
		{WalletAddress: "0xabc", CampaignID: "c"},
		{WalletAddress: "0xabc", EventType: "payment"},
	} {
		_, err := svc.RecordEvent(context.Background(), in)
		assert.True(t, errors.Is(err, apperr.ErrInvalidInput), "%+v", in)
	}

	_, err := svc.RecordEvent(context.Background(), EventInput{WalletAddress: "0xnobody", EventType: "payment", CampaignID: "c"})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Empty(t, sub.events)
}

func TestRecordEvent_ProvisioningFailure(t *testing.T) {
	svc, store, prov, sub := newTestService(t)
	prov.err = apperr.ExternalProvisioning("identity provider registration failed", errors.New("status 503"))

	_, err := svc.RecordEvent(context.Background(), EventInput{WalletAddress: "0xabc", EventType: "payment", CampaignID: "c", Metadata: map[string]any{"amount": "1"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrAttributionFailed))
	assert.True(t, errors.Is(err, apperr.ErrExternalProvisioning))
	assert.Equal(t, apperr.KindAttributionFailed, apperr.KindOf(err))

	history, err := store.ListRewards(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Empty(t, sub.events)
}

func TestRecordEvent_ProviderRejection(t *testing.T) {
	svc, store, _, sub := newTestService(t)
	sub.err = &bridge.ProviderError{Operation: "submit_event", Status: http.StatusBadRequest, Body: "nope"}

	_, err := svc.RecordEvent(context.Background(), EventInput{WalletAddress: "0xabc", EventType: "payment", CampaignID: "c"})
	assert.True(t, errors.Is(err, apperr.ErrAttributionFailed))
	assert.False(t, errors.Is(err, apperr.ErrExternalProvisioning))

	history, err := store.ListRewards(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRecordEvent_DistinctEntriesAndIDs(t *testing.T) {
	svc, _, _, sub := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.RecordEvent(ctx, EventInput{WalletAddress: "0xabc", EventType: "payment", CampaignID: "c", Metadata: map[string]any{"amount": "1"}})
		require.NoError(t, err)
	}

	history, err := svc.ListRewards(ctx, "0XABC")
	require.NoError(t, err)
	assert.Len(t, history, 2)

	require.Len(t, sub.events, 2)
	assert.NotEqual(t, sub.events[0].EventID, sub.events[1].EventID)
}

func TestListRewards_Errors(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.ListRewards(context.Background(), "")
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))

	_, err = svc.ListRewards(context.Background(), "0xnobody")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	items, err := svc.ListRewards(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestHandler(t *testing.T) {
	svc, _, prov, _ := newTestService(t)
	h := NewHandler(svc, zap.NewNop().Sugar())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/rewards", h.Record)
	mux.HandleFunc("GET /api/rewards", h.List)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rewards",
		strings.NewReader(`{"walletAddress":"0xabc","eventType":"payment","campaignId":"c","metadata":{"amount":2.5}}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Data struct {
				TokenAmount int64 `json:"token_amount"`
			} `json:"data"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, int64(250), body.Data.Data.TokenAmount)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rewards",
		strings.NewReader(`{"walletAddress":"0xabc","eventType":"payment","campaignId":"c","metadata":{"amount":12345678901234567.89}}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(1234567890123456789), body.Data.Data.TokenAmount)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rewards",
		strings.NewReader(`{"walletAddress":"0xabc","eventType":"payment","campaignId":"c","metadata":{"amount":1e999999999}}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"invalid_input"`)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rewards?walletAddress=0xABC", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rewards":[`)

	prov.err = apperr.ExternalProvisioning("identity provider registration failed", nil)
	svc.store.(*testutil.ProfileStore).Put(entity.Profile{WalletAddress: "0xnew", DisplayName: "new"})
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rewards",
		strings.NewReader(`{"walletAddress":"0xnew","eventType":"payment","campaignId":"c"}`)))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"attribution_failed"`)
}
