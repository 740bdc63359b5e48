// Package payment keeps the history of completed direct transfers.
package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/payment/entity"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/paymentrequest"
	"github.com/ovaphlow/pitchfork/service-payreq-go/pkg/utilities"
)

type Store interface {
	Create(ctx context.Context, p *entity.Payment) error
	List(ctx context.Context, address string) ([]*entity.Payment, error)
}

type Service struct {
	store  Store
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewService(store Store, logger *zap.SugaredLogger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

// RecordInput describes a transfer. Amount is in base units; when it is
// empty AmountDisplay is converted instead.
type RecordInput struct {
	SenderAddress   string
	SenderName      string
	ReceiverAddress string
	ReceiverName    string
	Amount          string
	AmountDisplay   string
	SettlementRef   string
	Status          string
}

func (s *Service) Record(ctx context.Context, in RecordInput) (*entity.Payment, error) {
	sender := utilities.CanonicalAddress(in.SenderAddress)
	receiver := utilities.CanonicalAddress(in.ReceiverAddress)
	ref := strings.TrimSpace(in.SettlementRef)
	if sender == "" || receiver == "" || ref == "" {
		return nil, apperr.InvalidInput("senderAddress, receiverAddress and settlementRef are required")
	}
	status := entity.Status(strings.TrimSpace(in.Status))
	if status == "" {
		status = entity.StatusSuccess
	}
	if !status.IsValid() {
		return nil, apperr.InvalidInput("status must be success or failed")
	}

	display := strings.TrimSpace(in.AmountDisplay)
	var (
		amount string
		err    error
	)
	switch {
	case strings.TrimSpace(in.Amount) != "":
		amount, err = paymentrequest.ParseBaseUnits(in.Amount)
	case display != "":
		amount, err = paymentrequest.ToBaseUnits(display)
	default:
		err = apperr.InvalidInput("amount is required")
	}
	if err != nil {
		return nil, err
	}

	p := &entity.Payment{
		PaymentID:       utilities.NewKSUID(),
		SenderAddress:   sender,
		SenderName:      optional(in.SenderName),
		ReceiverAddress: receiver,
		ReceiverName:    optional(in.ReceiverName),
		Amount:          amount,
		AmountDisplay:   optional(display),
		SettlementRef:   ref,
		Status:          status,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}
	s.logger.Infow("payment recorded", "payment_id", p.PaymentID, "sender", sender, "receiver", receiver, "settlement_ref", ref)
	return p, nil
}

// List returns transfers involving address (all when empty), newest first.
func (s *Service) List(ctx context.Context, address string) ([]*entity.Payment, error) {
	items, err := s.store.List(ctx, utilities.CanonicalAddress(address))
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	if items == nil {
		items = []*entity.Payment{}
	}
	return items, nil
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
