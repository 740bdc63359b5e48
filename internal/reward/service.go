// Package reward records campaign events with the attribution provider and
// keeps the local reward ledger.
package reward

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/bridge"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/profile/entity"
	"github.com/ovaphlow/pitchfork/service-payreq-go/pkg/keylock"
	"github.com/ovaphlow/pitchfork/service-payreq-go/pkg/utilities"
)

type ProfileStore interface {
	GetByWallet(ctx context.Context, wallet string) (*entity.Profile, error)
	AppendReward(ctx context.Context, wallet string, e entity.RewardEntry) error
	ListRewards(ctx context.Context, wallet string) ([]entity.RewardEntry, error)
}

type Provisioner interface {
	EnsureProvisioned(ctx context.Context, p *entity.Profile) (*entity.Profile, error)
}

type EventSubmitter interface {
	SubmitEvent(ctx context.Context, ev bridge.CampaignEvent) (map[string]any, error)
}

type Service struct {
	store       ProfileStore
	provisioner Provisioner
	submitter   EventSubmitter
	locks       keylock.Locker
	logger      *zap.SugaredLogger
	now         func() time.Time
}

func NewService(store ProfileStore, provisioner Provisioner, submitter EventSubmitter, locks keylock.Locker, logger *zap.SugaredLogger) *Service {
	if locks == nil {
		locks = keylock.NewLocal()
	}
	return &Service{
		store:       store,
		provisioner: provisioner,
		submitter:   submitter,
		locks:       locks,
		logger:      logger,
		now:         time.Now,
	}
}

type EventInput struct {
	WalletAddress string
	EventType     string
	CampaignID    string
	Metadata      map[string]any
}

// RecordEvent provisions the wallet if needed, submits the event, replaces
// the provider's reward with the local figure and appends the result to the
// wallet's history. Nothing is stored when any step fails.
func (s *Service) RecordEvent(ctx context.Context, in EventInput) (map[string]any, error) {
	wallet := utilities.CanonicalAddress(in.WalletAddress)
	eventType := strings.TrimSpace(in.EventType)
	campaignID := strings.TrimSpace(in.CampaignID)
	if wallet == "" || eventType == "" || campaignID == "" {
		return nil, apperr.InvalidInput("walletAddress, eventType and campaignId are required")
	}
	metadata := in.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	points, err := Compute(metadata)
	if err != nil {
		return nil, apperr.InvalidInput("metadata.amount is out of range")
	}

	release, err := s.locks.Lock(ctx, "reward:"+wallet)
	if err != nil {
		return nil, err
	}
	defer release()

	p, err := s.lookup(ctx, wallet)
	if err != nil {
		return nil, err
	}
	p, err = s.provisioner.EnsureProvisioned(ctx, p)
	if err != nil {
		if errors.Is(err, apperr.ErrExternalProvisioning) {
			return nil, apperr.AttributionFailed("auto-registration with identity provider failed", err)
		}
		return nil, err
	}
	if !p.Provisioned() {
		return nil, apperr.AttributionFailed("profile has no external identity", nil)
	}

	now := s.now().UTC()
	ev := bridge.CampaignEvent{
		EventID:    eventType + "-" + utilities.NewSnowflakeID(),
		EventType:  eventType,
		UserID:     *p.ExternalIdentityID,
		CampaignID: campaignID,
		Metadata:   metadata,
		Timestamp:  now.Format(time.RFC3339Nano),
	}
	payload, err := s.submitter.SubmitEvent(ctx, ev)
	if err != nil {
		s.logger.Warnw("provider rejected event", "wallet", wallet, "event_id", ev.EventID, "err", err)
		return nil, apperr.AttributionFailed("attribution provider rejected the event", err)
	}

	applyOverride(payload, points)

	if err := s.store.AppendReward(ctx, wallet, entity.RewardEntry{EventType: eventType, Timestamp: now, Payload: payload}); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, fmt.Errorf("append reward: %w", err)
	}
	metrics.RewardPoints.Add(float64(points))
	s.logger.Infow("reward recorded", "wallet", wallet, "event_id", ev.EventID, "points", points)
	return payload, nil
}

// ListRewards returns the wallet's history in the order it was recorded.
func (s *Service) ListRewards(ctx context.Context, wallet string) ([]entity.RewardEntry, error) {
	wallet = utilities.CanonicalAddress(wallet)
	if wallet == "" {
		return nil, apperr.InvalidInput("walletAddress is required")
	}
	if _, err := s.lookup(ctx, wallet); err != nil {
		return nil, err
	}
	items, err := s.store.ListRewards(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	if items == nil {
		items = []entity.RewardEntry{}
	}
	return items, nil
}

func (s *Service) lookup(ctx context.Context, wallet string) (*entity.Profile, error) {
	p, err := s.store.GetByWallet(ctx, wallet)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}
