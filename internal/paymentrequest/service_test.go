package paymentrequest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/notify"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/paymentrequest/entity"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/testutil"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Notify(ev notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) Events() []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Event(nil), n.events...)
}

func newTestService(t *testing.T, cfg Config) (*Service, *testutil.RequestStore, *recordingNotifier) {
	t.Helper()
	store := testutil.NewRequestStore()
	n := &recordingNotifier{}
	svc := NewService(store, nil, n, zap.NewNop().Sugar(), cfg)
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc, store, n
}

func mustCreate(t *testing.T, svc *Service, requester, payer, amount string) *entity.PaymentRequest {
	t.Helper()
	pr, err := svc.Create(context.Background(), CreateInput{
		RequesterAddress: requester,
		Payer:            entity.ByAddress(payer, ""),
		AmountBaseUnits:  amount,
	})
	require.NoError(t, err)
	return pr
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := newTestService(t, Config{})

	cases := []struct {
		name string
		in   CreateInput
	}{
		{"missing requester", CreateInput{Payer: entity.ByAddress("0xb", ""), Amount: "1"}},
		{"blank requester", CreateInput{RequesterAddress: "   ", Payer: entity.ByAddress("0xb", ""), Amount: "1"}},
		{"missing amount", CreateInput{RequesterAddress: "0xa", Payer: entity.ByAddress("0xb", "")}},
		{"no target", CreateInput{RequesterAddress: "0xa", Amount: "1"}},
		{"blank payer name", CreateInput{RequesterAddress: "0xa", Payer: entity.ByName("   "), AmountBaseUnits: "1"}},
		{"blank payer address and name", CreateInput{RequesterAddress: "0xa", Payer: entity.ByAddress("  ", " "), Amount: "1"}},
		{"negative amount", CreateInput{RequesterAddress: "0xa", Payer: entity.ByName("bob"), Amount: "-1"}},
		{"garbage amount", CreateInput{RequesterAddress: "0xa", Payer: entity.ByName("bob"), Amount: "ten"}},
		{"fractional base units", CreateInput{RequesterAddress: "0xa", Payer: entity.ByName("bob"), AmountBaseUnits: "1.5"}},
		{"signed base units", CreateInput{RequesterAddress: "0xa", Payer: entity.ByName("bob"), AmountBaseUnits: "-5"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrInvalidInput), "got %v", err)
		})
	}
}

func TestCreate_AmountConversionAndDefaults(t *testing.T) {
	svc, store, _ := newTestService(t, Config{})
	ctx := context.Background()

	pr, err := svc.Create(ctx, CreateInput{
		RequesterAddress: "  0xAbC ",
		RequesterName:    "alice",
		Payer:            entity.ByName("bob"),
		Amount:           "0.123456789",
		Memo:             "lunch",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, pr.RequestID)
	assert.Equal(t, "0xabc", pr.RequesterAddress)
	assert.Equal(t, entity.StatusPending, pr.Status)
	assert.Equal(t, "12345678", pr.Amount, "fractions of a base unit are floored")
	require.NotNil(t, pr.AmountDisplay)
	assert.Equal(t, "0.123456789", *pr.AmountDisplay)
	assert.Nil(t, pr.PayerAddress)
	require.NotNil(t, pr.PayerName)
	assert.Equal(t, "bob", *pr.PayerName)
	assert.Nil(t, pr.SettlementRef)

	stored, err := store.GetByID(ctx, pr.RequestID)
	require.NoError(t, err)
	assert.Equal(t, pr.Amount, stored.Amount)

	pr2, err := svc.Create(ctx, CreateInput{
		RequesterAddress: "0xa",
		Payer:            entity.ByAddress("0xB", ""),
		Amount:           "99",
		AmountBaseUnits:  "000123",
	})
	require.NoError(t, err)
	assert.Equal(t, "123", pr2.Amount, "base units win over the human amount")
	require.NotNil(t, pr2.PayerAddress)
	assert.Equal(t, "0xb", *pr2.PayerAddress)
	assert.NotEqual(t, pr.RequestID, pr2.RequestID)
}

func TestAccept(t *testing.T) {
	svc, _, n := newTestService(t, Config{})
	ctx := context.Background()
	pr := mustCreate(t, svc, "0xA", "0xB", "1000000")

	got, err := svc.Accept(ctx, pr.RequestID, "0xhash1", "0xC")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPaid, got.Status)
	require.NotNil(t, got.SettlementRef)
	assert.Equal(t, "0xhash1", *got.SettlementRef)
	require.NotNil(t, got.PayerAddress)
	assert.Equal(t, "0xc", *got.PayerAddress)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))

	assert.Equal(t, []notify.Event{{RequestID: pr.RequestID, Status: "paid", SettlementRef: "0xhash1"}}, n.Events())
}

func TestAccept_Errors(t *testing.T) {
	svc, _, n := newTestService(t, Config{})
	ctx := context.Background()
	pr := mustCreate(t, svc, "0xa", "0xb", "1")

	_, err := svc.Accept(ctx, pr.RequestID, "  ", "")
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))

	_, err = svc.Accept(ctx, "missing", "0xhash", "")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = svc.Cancel(ctx, "missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = svc.Get(ctx, "missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	got, err := svc.Get(ctx, pr.RequestID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, got.Status)

	assert.Empty(t, n.Events())
}

func TestAccept_StoreFailureIsInternal(t *testing.T) {
	svc, store, n := newTestService(t, Config{})
	pr := mustCreate(t, svc, "0xa", "0xb", "1")

	store.Err = errors.New("connection reset")
	_, err := svc.Accept(context.Background(), pr.RequestID, "0xhash", "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Empty(t, n.Events())
}

func TestTransitions_Lenient(t *testing.T) {
	svc, _, _ := newTestService(t, Config{})
	ctx := context.Background()
	pr := mustCreate(t, svc, "0xa", "0xb", "1")

	_, err := svc.Accept(ctx, pr.RequestID, "0xhash1", "")
	require.NoError(t, err)

	got, err := svc.Cancel(ctx, pr.RequestID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, got.Status)
}

func TestTransitions_Strict(t *testing.T) {
	svc, _, n := newTestService(t, Config{StrictTransitions: true})
	ctx := context.Background()
	pr := mustCreate(t, svc, "0xa", "0xb", "1")

	_, err := svc.Accept(ctx, pr.RequestID, "0xhash1", "")
	require.NoError(t, err)

	again, err := svc.Accept(ctx, pr.RequestID, "0xhash1", "")
	require.NoError(t, err, "same settlement reference is idempotent")
	assert.Equal(t, entity.StatusPaid, again.Status)

	_, err = svc.Accept(ctx, pr.RequestID, "0xhash2", "")
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	_, err = svc.Cancel(ctx, pr.RequestID)
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	assert.Len(t, n.Events(), 1)

	other := mustCreate(t, svc, "0xa", "0xb", "2")
	_, err = svc.Cancel(ctx, other.RequestID)
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, other.RequestID)
	require.NoError(t, err)
	_, err = svc.Accept(ctx, other.RequestID, "0xhash3", "")
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestAccept_ConcurrentStrictNotifiesOnce(t *testing.T) {
	svc, _, n := newTestService(t, Config{StrictTransitions: true})
	var clockMu sync.Mutex
	base := svc.now
	svc.now = func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return base()
	}
	pr := mustCreate(t, svc, "0xa", "0xb", "1")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Accept(context.Background(), pr.RequestID, "0xhash1", "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, n.Events(), 1)
}

func TestList_Roles(t *testing.T) {
	svc, _, _ := newTestService(t, Config{})
	ctx := context.Background()

	first := mustCreate(t, svc, "0xA", "0xB", "1")
	second := mustCreate(t, svc, "0xB", "0xC", "2")
	third := mustCreate(t, svc, "0xC", "0xB", "3")
	_, err := svc.Accept(ctx, third.RequestID, "0xhash", "")
	require.NoError(t, err)

	ids := func(items []*entity.PaymentRequest) []string {
		out := make([]string, 0, len(items))
		for _, it := range items {
			out = append(out, it.RequestID)
		}
		return out
	}

	all, err := svc.List(ctx, entity.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{third.RequestID, second.RequestID, first.RequestID}, ids(all))

	incoming, err := svc.List(ctx, entity.ListFilter{Address: "0xb", Role: entity.RoleIncoming})
	require.NoError(t, err)
	assert.Equal(t, []string{first.RequestID}, ids(incoming))

	outgoing, err := svc.List(ctx, entity.ListFilter{Address: " 0XB ", Role: entity.RoleOutgoing})
	require.NoError(t, err)
	assert.Equal(t, []string{second.RequestID}, ids(outgoing))

	either, err := svc.List(ctx, entity.ListFilter{Address: "0xB", Role: "bogus"})
	require.NoError(t, err)
	assert.Equal(t, []string{third.RequestID, second.RequestID, first.RequestID}, ids(either))

	none, err := svc.List(ctx, entity.ListFilter{Address: "0xdead"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("STRICT_TRANSITIONS", "true")
	assert.True(t, ConfigFromEnv().StrictTransitions)

	t.Setenv("STRICT_TRANSITIONS", "")
	assert.False(t, ConfigFromEnv().StrictTransitions)
}
