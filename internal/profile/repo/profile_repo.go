package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/profile/entity"
	"github.com/ovaphlow/pitchfork/service-payreq-go/pkg/secretbox"
)

const columns = `wallet_address, display_name, external_identity_id,
	external_access_token, external_refresh_token, created_at, updated_at`

// ProfileRepo provides data access for the profiles and profile_rewards
// tables. Provider tokens are sealed with box before they are written.
type ProfileRepo struct {
	db  *sqlx.DB
	box *secretbox.Box
}

func NewProfileRepo(db *sqlx.DB, box *secretbox.Box) *ProfileRepo {
	return &ProfileRepo{db: db, box: box}
}

// EnsureTable creates both tables if not exists (idempotent).
func (r *ProfileRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS profiles (
  wallet_address TEXT PRIMARY KEY,
  display_name TEXT NOT NULL,
  external_identity_id TEXT,
  external_access_token TEXT,
  external_refresh_token TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS profile_rewards (
  id BIGSERIAL PRIMARY KEY,
  wallet_address TEXT NOT NULL REFERENCES profiles(wallet_address) ON DELETE CASCADE,
  event_type TEXT NOT NULL,
  payload JSONB NOT NULL DEFAULT '{}'::jsonb,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_profile_rewards_wallet ON profile_rewards(wallet_address, id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a new profile. A duplicate wallet yields entity.ErrAlreadyRegistered.
func (r *ProfileRepo) Create(ctx context.Context, p *entity.Profile) error {
	const q = `INSERT INTO profiles (wallet_address, display_name, created_at, updated_at)
		VALUES (:wallet_address, :display_name, :created_at, :updated_at)`
	_, err := r.db.NamedExecContext(ctx, q, p)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return entity.ErrAlreadyRegistered
	}
	return err
}

// GetByWallet returns the profile (without reward history) or sql.ErrNoRows.
func (r *ProfileRepo) GetByWallet(ctx context.Context, wallet string) (*entity.Profile, error) {
	q := `SELECT ` + columns + ` FROM profiles WHERE wallet_address=$1`
	var p entity.Profile
	if err := r.db.GetContext(ctx, &p, q, wallet); err != nil {
		return nil, err
	}
	if err := r.open(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns all profiles ordered by registration time.
func (r *ProfileRepo) List(ctx context.Context) ([]*entity.Profile, error) {
	q := `SELECT ` + columns + ` FROM profiles ORDER BY created_at, wallet_address`
	var items []*entity.Profile
	if err := r.db.SelectContext(ctx, &items, q); err != nil {
		return nil, err
	}
	for _, p := range items {
		if err := r.open(p); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// SaveExternalIdentity stores the provider identity and tokens in one
// statement. It returns sql.ErrNoRows if the wallet is unknown.
func (r *ProfileRepo) SaveExternalIdentity(ctx context.Context, wallet string, ident entity.ExternalIdentity, now time.Time) error {
	access, err := r.box.Seal(ident.AccessToken)
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	refresh, err := r.box.Seal(ident.RefreshToken)
	if err != nil {
		return fmt.Errorf("seal refresh token: %w", err)
	}
	const q = `UPDATE profiles SET external_identity_id=$2, external_access_token=$3,
		external_refresh_token=$4, updated_at=$5 WHERE wallet_address=$1`
	res, err := r.db.ExecContext(ctx, q, wallet, ident.ID, nullable(access), nullable(refresh), now)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AppendReward adds one entry to the wallet's history and bumps the
// profile's updated_at in a single transaction.
func (r *ProfileRepo) AppendReward(ctx context.Context, wallet string, e entity.RewardEntry) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("encode reward payload: %w", err)
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE profiles SET updated_at=$2 WHERE wallet_address=$1`, wallet, e.Timestamp)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO profile_rewards (wallet_address, event_type, payload, created_at) VALUES ($1,$2,$3,$4)`,
		wallet, e.EventType, payload, e.Timestamp); err != nil {
		return err
	}
	return tx.Commit()
}

type rewardRow struct {
	EventType string    `db:"event_type"`
	Payload   []byte    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
}

// ListRewards returns the wallet's history in insertion order.
func (r *ProfileRepo) ListRewards(ctx context.Context, wallet string) ([]entity.RewardEntry, error) {
	const q = `SELECT event_type, payload, created_at FROM profile_rewards WHERE wallet_address=$1 ORDER BY id`
	var rows []rewardRow
	if err := r.db.SelectContext(ctx, &rows, q, wallet); err != nil {
		return nil, err
	}
	out := make([]entity.RewardEntry, 0, len(rows))
	for _, row := range rows {
		var payload map[string]any
		if err := json.Unmarshal(row.Payload, &payload); err != nil {
			return nil, fmt.Errorf("decode reward payload: %w", err)
		}
		out = append(out, entity.RewardEntry{EventType: row.EventType, Timestamp: row.CreatedAt, Payload: payload})
	}
	return out, nil
}

func (r *ProfileRepo) open(p *entity.Profile) error {
	for _, tok := range []*string{p.ExternalAccessToken, p.ExternalRefreshToken} {
		if tok == nil {
			continue
		}
		plain, err := r.box.Open(*tok)
		if err != nil {
			return fmt.Errorf("profile %s: %w", p.WalletAddress, err)
		}
		*tok = plain
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
