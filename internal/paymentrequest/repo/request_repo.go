package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/paymentrequest/entity"
)

const columns = `request_id, requester_address, requester_name, payer_address, payer_name,
	amount, amount_display, memo, status, settlement_ref, created_at, updated_at`

// RequestRepo provides data access for the payment_requests table using sqlx.
type RequestRepo struct {
	db *sqlx.DB
}

func NewRequestRepo(db *sqlx.DB) *RequestRepo { return &RequestRepo{db: db} }

// EnsureTable creates the payment_requests table if not exists (idempotent).
func (r *RequestRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS payment_requests (
  request_id TEXT PRIMARY KEY,
  requester_address TEXT NOT NULL,
  requester_name TEXT,
  payer_address TEXT,
  payer_name TEXT,
  amount NUMERIC(78,0) NOT NULL CHECK (amount >= 0),
  amount_display TEXT,
  memo TEXT,
  status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','paid','cancelled')),
  settlement_ref TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_payment_requests_requester ON payment_requests(requester_address, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_payment_requests_payer ON payment_requests(payer_address, status, created_at DESC);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a new request row.
func (r *RequestRepo) Create(ctx context.Context, pr *entity.PaymentRequest) error {
	const q = `INSERT INTO payment_requests (` + columns + `)
		VALUES (:request_id,:requester_address,:requester_name,:payer_address,:payer_name,
		:amount,:amount_display,:memo,:status,:settlement_ref,:created_at,:updated_at)`
	_, err := r.db.NamedExecContext(ctx, q, pr)
	return err
}

// GetByID returns the request or sql.ErrNoRows.
func (r *RequestRepo) GetByID(ctx context.Context, id string) (*entity.PaymentRequest, error) {
	q := `SELECT ` + columns + ` FROM payment_requests WHERE request_id=$1`
	var row entity.PaymentRequest
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		return nil, err
	}
	return &row, nil
}

// Update writes the mutable columns. Returns sql.ErrNoRows if the row vanished.
func (r *RequestRepo) Update(ctx context.Context, pr *entity.PaymentRequest) error {
	const q = `UPDATE payment_requests
		SET payer_address=:payer_address, status=:status, settlement_ref=:settlement_ref, updated_at=:updated_at
		WHERE request_id=:request_id`
	res, err := r.db.NamedExecContext(ctx, q, pr)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns requests matching f, newest first.
func (r *RequestRepo) List(ctx context.Context, f entity.ListFilter) ([]*entity.PaymentRequest, error) {
	q, args := listQuery(f)
	rows := []*entity.PaymentRequest{}
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// listQuery renders entity.ListFilter.Matches as SQL.
func listQuery(f entity.ListFilter) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT ` + columns + ` FROM payment_requests`)
	var args []any
	if f.Address != "" {
		args = append(args, f.Address)
		switch f.Role {
		case entity.RoleIncoming:
			b.WriteString(` WHERE payer_address=$1 AND status='pending'`)
		case entity.RoleOutgoing:
			b.WriteString(` WHERE requester_address=$1`)
		default:
			b.WriteString(` WHERE (requester_address=$1 OR payer_address=$1)`)
		}
	}
	b.WriteString(` ORDER BY created_at DESC, request_id DESC`)
	return b.String(), args
}
