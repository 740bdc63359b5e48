package paymentrequest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/notify"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/paymentrequest/entity"
	"github.com/ovaphlow/pitchfork/service-payreq-go/pkg/keylock"
	"github.com/ovaphlow/pitchfork/service-payreq-go/pkg/utilities"
)

// Store persists payment requests. GetByID and Update return sql.ErrNoRows
// for unknown ids.
type Store interface {
	Create(ctx context.Context, pr *entity.PaymentRequest) error
	GetByID(ctx context.Context, id string) (*entity.PaymentRequest, error)
	Update(ctx context.Context, pr *entity.PaymentRequest) error
	List(ctx context.Context, f entity.ListFilter) ([]*entity.PaymentRequest, error)
}

// Notifier receives accepted requests. Implementations must not block.
type Notifier interface {
	Notify(ev notify.Event)
}

type Config struct {
	// StrictTransitions refuses to move a request out of paid or cancelled.
	StrictTransitions bool
}

func ConfigFromEnv() Config {
	strict, _ := strconv.ParseBool(strings.TrimSpace(os.Getenv("STRICT_TRANSITIONS")))
	return Config{StrictTransitions: strict}
}

// Service owns the pending -> paid|cancelled lifecycle.
type Service struct {
	store    Store
	locks    keylock.Locker
	notifier Notifier
	logger   *zap.SugaredLogger
	cfg      Config
	now      func() time.Time
}

func NewService(store Store, locks keylock.Locker, notifier Notifier, logger *zap.SugaredLogger, cfg Config) *Service {
	if locks == nil {
		locks = keylock.NewLocal()
	}
	return &Service{
		store:    store,
		locks:    locks,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// CreateInput carries a new request. AmountBaseUnits wins over Amount when
// both are set.
type CreateInput struct {
	RequesterAddress string
	RequesterName    string
	Payer            entity.Target
	Amount           string
	AmountBaseUnits  string
	AmountDisplay    string
	Memo             string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.PaymentRequest, error) {
	requester := utilities.CanonicalAddress(in.RequesterAddress)
	if requester == "" {
		return nil, apperr.InvalidInput("requesterAddress is required")
	}
	payer, ok := in.Payer.Normalize()
	if !ok {
		return nil, apperr.InvalidInput("payer address or name is required")
	}

	var (
		amount string
		err    error
	)
	human := strings.TrimSpace(in.Amount)
	switch {
	case strings.TrimSpace(in.AmountBaseUnits) != "":
		amount, err = ParseBaseUnits(in.AmountBaseUnits)
	case human != "":
		amount, err = ToBaseUnits(human)
	default:
		err = apperr.InvalidInput("amount is required")
	}
	if err != nil {
		return nil, err
	}

	display := strings.TrimSpace(in.AmountDisplay)
	if display == "" {
		display = human
	}

	now := s.now().UTC()
	pr := &entity.PaymentRequest{
		RequestID:        utilities.NewKSUID(),
		RequesterAddress: requester,
		RequesterName:    optional(in.RequesterName),
		PayerAddress:     optional(payer.Address),
		PayerName:        optional(payer.Name),
		Amount:           amount,
		AmountDisplay:    optional(display),
		Memo:             optional(in.Memo),
		Status:           entity.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.Create(ctx, pr); err != nil {
		return nil, fmt.Errorf("create payment request: %w", err)
	}
	metrics.RequestTransitions.WithLabelValues(pr.Status.String()).Inc()
	s.logger.Infow("payment request created", "request_id", pr.RequestID, "requester", requester, "amount", amount)
	return pr, nil
}

// Get returns a single request.
func (s *Service) Get(ctx context.Context, id string) (*entity.PaymentRequest, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperr.InvalidInput("requestId is required")
	}
	return s.get(ctx, id)
}

// Accept marks the request paid with settlementRef and, when given, the
// address that actually paid. Accepted requests are announced to the notifier.
func (s *Service) Accept(ctx context.Context, id, settlementRef, payerAddress string) (*entity.PaymentRequest, error) {
	id = strings.TrimSpace(id)
	settlementRef = strings.TrimSpace(settlementRef)
	if id == "" {
		return nil, apperr.InvalidInput("requestId is required")
	}
	if settlementRef == "" {
		return nil, apperr.InvalidInput("settlementRef is required")
	}

	release, err := s.locks.Lock(ctx, "request:"+id)
	if err != nil {
		return nil, err
	}
	defer release()

	pr, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	changed, err := pr.MarkPaid(settlementRef, utilities.CanonicalAddress(payerAddress), s.now().UTC(), s.cfg.StrictTransitions)
	if err != nil {
		return nil, s.transitionErr(pr, err)
	}
	if !changed {
		return pr, nil
	}
	if err := s.update(ctx, pr); err != nil {
		return nil, err
	}
	s.logger.Infow("payment request accepted", "request_id", id, "settlement_ref", settlementRef)
	if s.notifier != nil {
		s.notifier.Notify(notify.Event{RequestID: pr.RequestID, Status: pr.Status.String(), SettlementRef: settlementRef})
	}
	return pr, nil
}

// Cancel marks the request cancelled.
func (s *Service) Cancel(ctx context.Context, id string) (*entity.PaymentRequest, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperr.InvalidInput("requestId is required")
	}

	release, err := s.locks.Lock(ctx, "request:"+id)
	if err != nil {
		return nil, err
	}
	defer release()

	pr, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	changed, err := pr.MarkCancelled(s.now().UTC(), s.cfg.StrictTransitions)
	if err != nil {
		return nil, s.transitionErr(pr, err)
	}
	if !changed {
		return pr, nil
	}
	if err := s.update(ctx, pr); err != nil {
		return nil, err
	}
	s.logger.Infow("payment request cancelled", "request_id", id)
	return pr, nil
}

// List returns requests matching f, newest first.
func (s *Service) List(ctx context.Context, f entity.ListFilter) ([]*entity.PaymentRequest, error) {
	f.Address = utilities.CanonicalAddress(f.Address)
	switch f.Role {
	case entity.RoleIncoming, entity.RoleOutgoing:
	default:
		f.Role = entity.RoleAny
	}
	items, err := s.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list payment requests: %w", err)
	}
	if items == nil {
		items = []*entity.PaymentRequest{}
	}
	return items, nil
}

func (s *Service) get(ctx context.Context, id string) (*entity.PaymentRequest, error) {
	pr, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("payment request not found")
		}
		return nil, fmt.Errorf("get payment request: %w", err)
	}
	return pr, nil
}

func (s *Service) update(ctx context.Context, pr *entity.PaymentRequest) error {
	if err := s.store.Update(ctx, pr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("payment request not found")
		}
		return fmt.Errorf("update payment request: %w", err)
	}
	metrics.RequestTransitions.WithLabelValues(pr.Status.String()).Inc()
	return nil
}

func (s *Service) transitionErr(pr *entity.PaymentRequest, err error) error {
	if errors.Is(err, entity.ErrTerminalState) {
		return apperr.Conflict(fmt.Sprintf("payment request is already %s", pr.Status))
	}
	return err
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
