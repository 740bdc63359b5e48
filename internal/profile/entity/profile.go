package entity

import (
	"errors"
	"time"
)

// ErrAlreadyRegistered is returned by stores when the wallet already has a profile.
var ErrAlreadyRegistered = errors.New("wallet already registered")

// Profile represents a row in the `profiles` table. Provider tokens never
// leave the process through JSON.
type Profile struct {
	WalletAddress        string        `json:"walletAddress" db:"wallet_address"`
	DisplayName          string        `json:"displayName" db:"display_name"`
	ExternalIdentityID   *string       `json:"externalIdentityId,omitempty" db:"external_identity_id"`
	ExternalAccessToken  *string       `json:"-" db:"external_access_token"`
	ExternalRefreshToken *string       `json:"-" db:"external_refresh_token"`
	RewardHistory        []RewardEntry `json:"rewardHistory,omitempty" db:"-"`
	CreatedAt            time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt            time.Time     `json:"updatedAt" db:"updated_at"`
}

// Provisioned reports whether the profile already has an external identity.
func (p *Profile) Provisioned() bool {
	return p.ExternalIdentityID != nil && *p.ExternalIdentityID != ""
}

// ExternalIdentity is what the identity provider hands back on registration.
type ExternalIdentity struct {
	ID           string
	AccessToken  string
	RefreshToken string
}

// RewardEntry is one attributed event. Entries are append-only.
type RewardEntry struct {
	EventType string         `json:"eventType"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}
