// Package testutil provides in-memory stores that honour the same contracts
// as the PostgreSQL repositories, for service and router tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/paymentrequest/entity"
)

// RequestStore is an in-memory paymentrequest.Store.
type RequestStore struct {
	mu    sync.Mutex
	items map[string]entity.PaymentRequest
	// Err, when set, is returned by every call.
	Err error
}

func NewRequestStore() *RequestStore {
	return &RequestStore{items: make(map[string]entity.PaymentRequest)}
}

func (s *RequestStore) Create(_ context.Context, pr *entity.PaymentRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.items[pr.RequestID]; ok {
		return fmt.Errorf("duplicate request_id %q", pr.RequestID)
	}
	s.items[pr.RequestID] = *pr
	return nil
}

func (s *RequestStore) GetByID(_ context.Context, id string) (*entity.PaymentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	pr, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &pr, nil
}

func (s *RequestStore) Update(_ context.Context, pr *entity.PaymentRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	cur, ok := s.items[pr.RequestID]
	if !ok {
		return sql.ErrNoRows
	}
	cur.PayerAddress = pr.PayerAddress
	cur.Status = pr.Status
	cur.SettlementRef = pr.SettlementRef
	cur.UpdatedAt = pr.UpdatedAt
	s.items[pr.RequestID] = cur
	return nil
}

func (s *RequestStore) List(_ context.Context, f entity.ListFilter) ([]*entity.PaymentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]*entity.PaymentRequest, 0, len(s.items))
	for _, v := range s.items {
		pr := v
		if f.Matches(&pr) {
			out = append(out, &pr)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].RequestID > out[j].RequestID
	})
	return out, nil
}
