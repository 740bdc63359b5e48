// Package profile is the identity directory: one profile per wallet, with
// an optional link to the external identity provider and an append-only
// reward history.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/profile/entity"
	"github.com/ovaphlow/pitchfork/service-payreq-go/pkg/utilities"
)

type Store interface {
	Create(ctx context.Context, p *entity.Profile) error
	GetByWallet(ctx context.Context, wallet string) (*entity.Profile, error)
	List(ctx context.Context) ([]*entity.Profile, error)
	ListRewards(ctx context.Context, wallet string) ([]entity.RewardEntry, error)
}

// Provisioner links a profile to the external identity provider.
type Provisioner interface {
	EnsureProvisioned(ctx context.Context, p *entity.Profile) (*entity.Profile, error)
}

type Service struct {
	store       Store
	provisioner Provisioner
	logger      *zap.SugaredLogger
	now         func() time.Time
}

func NewService(store Store, provisioner Provisioner, logger *zap.SugaredLogger) *Service {
	return &Service{store: store, provisioner: provisioner, logger: logger, now: time.Now}
}

// Register creates the profile, then tries to provision it. A provisioning
// failure is logged and the unprovisioned profile is returned; reward
// recording retries it later.
func (s *Service) Register(ctx context.Context, wallet, displayName string) (*entity.Profile, error) {
	wallet = utilities.CanonicalAddress(wallet)
	displayName = strings.TrimSpace(displayName)
	if wallet == "" || displayName == "" {
		return nil, apperr.InvalidInput("walletAddress and name are required")
	}

	now := s.now().UTC()
	p := &entity.Profile{WalletAddress: wallet, DisplayName: displayName, CreatedAt: now, UpdatedAt: now}
	if err := s.store.Create(ctx, p); err != nil {
		if errors.Is(err, entity.ErrAlreadyRegistered) {
			return nil, apperr.Conflict("user already registered")
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}
	s.logger.Infow("profile registered", "wallet", wallet)

	if s.provisioner == nil {
		return p, nil
	}
	provisioned, err := s.provisioner.EnsureProvisioned(ctx, p)
	if err != nil {
		s.logger.Warnw("provisioning deferred", "wallet", wallet, "err", err)
		return p, nil
	}
	return provisioned, nil
}

// Get returns the profile with its reward history.
func (s *Service) Get(ctx context.Context, wallet string) (*entity.Profile, error) {
	p, err := s.lookup(ctx, wallet)
	if err != nil {
		return nil, err
	}
	history, err := s.store.ListRewards(ctx, p.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	p.RewardHistory = history
	return p, nil
}

func (s *Service) List(ctx context.Context) ([]*entity.Profile, error) {
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	if items == nil {
		items = []*entity.Profile{}
	}
	return items, nil
}

// Provision runs provisioning for an existing profile on demand.
func (s *Service) Provision(ctx context.Context, wallet string) (*entity.Profile, error) {
	p, err := s.lookup(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if s.provisioner == nil {
		return nil, apperr.ExternalProvisioning("identity provider not configured", nil)
	}
	return s.provisioner.EnsureProvisioned(ctx, p)
}

func (s *Service) lookup(ctx context.Context, wallet string) (*entity.Profile, error) {
	wallet = utilities.CanonicalAddress(wallet)
	if wallet == "" {
		return nil, apperr.InvalidInput("walletAddress is required")
	}
	p, err := s.store.GetByWallet(ctx, wallet)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}
