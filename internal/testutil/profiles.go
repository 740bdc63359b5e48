package testutil

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/profile/entity"
)

// ProfileStore is an in-memory profile repository. Reward payloads go
// through a JSON round trip on append, as they would through JSONB.
type ProfileStore struct {
	mu       sync.Mutex
	profiles map[string]entity.Profile
	rewards  map[string][]entity.RewardEntry
	// Err, when set, is returned by every call.
	Err error
	// SaveCalls counts SaveExternalIdentity invocations.
	SaveCalls int
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles: make(map[string]entity.Profile),
		rewards:  make(map[string][]entity.RewardEntry),
	}
}

func (s *ProfileStore) Create(_ context.Context, p *entity.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.profiles[p.WalletAddress]; ok {
		return entity.ErrAlreadyRegistered
	}
	cp := *p
	cp.RewardHistory = nil
	s.profiles[p.WalletAddress] = cp
	return nil
}

func (s *ProfileStore) GetByWallet(_ context.Context, wallet string) (*entity.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	p, ok := s.profiles[wallet]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return clone(p), nil
}

func (s *ProfileStore) List(_ context.Context) ([]*entity.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]*entity.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, clone(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].WalletAddress < out[j].WalletAddress
	})
	return out, nil
}

func (s *ProfileStore) SaveExternalIdentity(_ context.Context, wallet string, ident entity.ExternalIdentity, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SaveCalls++
	if s.Err != nil {
		return s.Err
	}
	p, ok := s.profiles[wallet]
	if !ok {
		return sql.ErrNoRows
	}
	id, access, refresh := ident.ID, ident.AccessToken, ident.RefreshToken
	p.ExternalIdentityID = &id
	p.ExternalAccessToken = &access
	p.ExternalRefreshToken = &refresh
	p.UpdatedAt = now
	s.profiles[wallet] = p
	return nil
}

func (s *ProfileStore) AppendReward(_ context.Context, wallet string, e entity.RewardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	p, ok := s.profiles[wallet]
	if !ok {
		return sql.ErrNoRows
	}
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	e.Payload = payload
	s.rewards[wallet] = append(s.rewards[wallet], e)
	p.UpdatedAt = e.Timestamp
	s.profiles[wallet] = p
	return nil
}

func (s *ProfileStore) ListRewards(_ context.Context, wallet string) ([]entity.RewardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]entity.RewardEntry{}, s.rewards[wallet]...), nil
}

// Put stores p as is, bypassing duplicate checks.
func (s *ProfileStore) Put(p entity.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.WalletAddress] = p
}

func clone(p entity.Profile) *entity.Profile {
	cp := p
	for _, f := range []**string{&cp.ExternalIdentityID, &cp.ExternalAccessToken, &cp.ExternalRefreshToken} {
		if *f != nil {
			v := **f
			*f = &v
		}
	}
	return &cp
}
