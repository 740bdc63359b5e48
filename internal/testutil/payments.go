package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/payment/entity"
)

// PaymentStore is an in-memory payment.Store.
type PaymentStore struct {
	mu    sync.Mutex
	items []entity.Payment
	Err   error
}

func NewPaymentStore() *PaymentStore { return &PaymentStore{} }

func (s *PaymentStore) Create(_ context.Context, p *entity.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.items = append(s.items, *p)
	return nil
}

func (s *PaymentStore) List(_ context.Context, address string) ([]*entity.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]*entity.Payment, 0, len(s.items))
	for _, v := range s.items {
		p := v
		if address == "" || p.SenderAddress == address || p.ReceiverAddress == address {
			out = append(out, &p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].PaymentID > out[j].PaymentID
	})
	return out, nil
}
