package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/payment/entity"
)

const columns = `payment_id, sender_address, sender_name, receiver_address, receiver_name,
	amount, amount_display, settlement_ref, status, created_at`

// PaymentRepo provides data access for the payments table.
type PaymentRepo struct {
	db *sqlx.DB
}

func NewPaymentRepo(db *sqlx.DB) *PaymentRepo { return &PaymentRepo{db: db} }

func (r *PaymentRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS payments (
  payment_id TEXT PRIMARY KEY,
  sender_address TEXT NOT NULL,
  sender_name TEXT,
  receiver_address TEXT NOT NULL,
  receiver_name TEXT,
  amount NUMERIC(78,0) NOT NULL CHECK (amount >= 0),
  amount_display TEXT,
  settlement_ref TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'success' CHECK (status IN ('success','failed')),
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_payments_sender ON payments(sender_address, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_payments_receiver ON payments(receiver_address, created_at DESC);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

func (r *PaymentRepo) Create(ctx context.Context, p *entity.Payment) error {
	const q = `INSERT INTO payments (` + columns + `)
		VALUES (:payment_id,:sender_address,:sender_name,:receiver_address,:receiver_name,
		:amount,:amount_display,:settlement_ref,:status,:created_at)`
	_, err := r.db.NamedExecContext(ctx, q, p)
	return err
}

// List returns transfers newest first. A non-empty address matches either side.
func (r *PaymentRepo) List(ctx context.Context, address string) ([]*entity.Payment, error) {
	q := `SELECT ` + columns + ` FROM payments`
	var args []any
	if address != "" {
		q += ` WHERE sender_address=$1 OR receiver_address=$1`
		args = append(args, address)
	}
	q += ` ORDER BY created_at DESC, payment_id DESC`
	var items []*entity.Payment
	if err := r.db.SelectContext(ctx, &items, q, args...); err != nil {
		return nil, err
	}
	return items, nil
}
