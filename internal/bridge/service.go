// Package bridge links local profiles to the external identity/attribution
// provider. A profile is provisioned at most once; later calls reuse the
// stored identity.
package bridge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/profile/entity"
	"github.com/ovaphlow/pitchfork/service-payreq-go/pkg/keylock"
)

// ProfileStore is the slice of the profile repository provisioning needs.
type ProfileStore interface {
	GetByWallet(ctx context.Context, wallet string) (*entity.Profile, error)
	SaveExternalIdentity(ctx context.Context, wallet string, ident entity.ExternalIdentity, now time.Time) error
}

// Registrar creates identities at the provider.
type Registrar interface {
	Register(ctx context.Context, wallet, name string) (entity.ExternalIdentity, error)
}

type Service struct {
	store     ProfileStore
	registrar Registrar
	locks     keylock.Locker
	logger    *zap.SugaredLogger
	now       func() time.Time
}

func NewService(store ProfileStore, registrar Registrar, locks keylock.Locker, logger *zap.SugaredLogger) *Service {
	if locks == nil {
		locks = keylock.NewLocal()
	}
	return &Service{store: store, registrar: registrar, locks: locks, logger: logger, now: time.Now}
}

// EnsureProvisioned returns p unchanged when it already has an external
// identity. Otherwise it registers the wallet at the provider and persists
// the identity. Concurrent calls for one wallet register once. On failure
// nothing is written and the error matches apperr.ErrExternalProvisioning.
func (s *Service) EnsureProvisioned(ctx context.Context, p *entity.Profile) (*entity.Profile, error) {
	if p.Provisioned() {
		return p, nil
	}
	wallet := p.WalletAddress

	release, err := s.locks.Lock(ctx, "provision:"+wallet)
	if err != nil {
		return nil, err
	}
	defer release()

	// another caller may have finished while we waited
	fresh, err := s.store.GetByWallet(ctx, wallet)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("profile not found")
		}
		return nil, fmt.Errorf("reload profile: %w", err)
	}
	if fresh.Provisioned() {
		return fresh, nil
	}

	ident, err := s.registrar.Register(ctx, wallet, fresh.DisplayName)
	if err != nil {
		s.logger.Warnw("provider registration failed", "wallet", wallet, "err", err)
		return nil, apperr.ExternalProvisioning("identity provider registration failed", err)
	}

	now := s.now().UTC()
	if err := s.store.SaveExternalIdentity(ctx, wallet, ident, now); err != nil {
		return nil, fmt.Errorf("save external identity: %w", err)
	}
	fresh.ExternalIdentityID = &ident.ID
	fresh.ExternalAccessToken = &ident.AccessToken
	fresh.ExternalRefreshToken = &ident.RefreshToken
	fresh.UpdatedAt = now
	s.logger.Infow("profile provisioned", "wallet", wallet, "external_id", ident.ID)
	return fresh, nil
}
