package entity

import (
	"errors"
	"strings"
	"time"

	"github.com/ovaphlow/pitchfork/service-payreq-go/pkg/utilities"
)

// Status is the lifecycle state of a payment request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusCancelled:
		return true
	default:
		return false
	}
}

func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

func (s Status) String() string { return string(s) }

// ErrTerminalState is returned by transitions out of paid/cancelled when
// strict transitions are enabled.
var ErrTerminalState = errors.New("payment request already in a terminal state")

// PaymentRequest is a row in the `payment_requests` table.
// Amount is an integer string in base units; AmountDisplay is never used for settlement.
type PaymentRequest struct {
	RequestID        string    `json:"requestId" db:"request_id"`
	RequesterAddress string    `json:"requesterAddress" db:"requester_address"`
	RequesterName    *string   `json:"requesterName,omitempty" db:"requester_name"`
	PayerAddress     *string   `json:"payerAddress,omitempty" db:"payer_address"`
	PayerName        *string   `json:"payerName,omitempty" db:"payer_name"`
	Amount           string    `json:"amount" db:"amount"`
	AmountDisplay    *string   `json:"amountDisplay,omitempty" db:"amount_display"`
	Memo             *string   `json:"memo,omitempty" db:"memo"`
	Status           Status    `json:"status" db:"status"`
	SettlementRef    *string   `json:"settlementRef,omitempty" db:"settlement_ref"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time `json:"updatedAt" db:"updated_at"`
}

// MarkPaid moves the request to paid. In lenient mode any state may be
// overwritten. In strict mode a paid request with the same reference is left
// as is and every other terminal state is refused.
// changed reports whether the request needs to be persisted.
func (r *PaymentRequest) MarkPaid(settlementRef, payerAddress string, now time.Time, strict bool) (changed bool, err error) {
	if strict && r.Status.IsTerminal() {
		if r.Status == StatusPaid && r.SettlementRef != nil && *r.SettlementRef == settlementRef {
			return false, nil
		}
		return false, ErrTerminalState
	}
	r.Status = StatusPaid
	r.SettlementRef = &settlementRef
	if payerAddress != "" {
		r.PayerAddress = &payerAddress
	}
	r.UpdatedAt = now
	return true, nil
}

// MarkCancelled moves the request to cancelled under the same policy as MarkPaid.
func (r *PaymentRequest) MarkCancelled(now time.Time, strict bool) (changed bool, err error) {
	if strict && r.Status.IsTerminal() {
		if r.Status == StatusCancelled {
			return false, nil
		}
		return false, ErrTerminalState
	}
	r.Status = StatusCancelled
	r.UpdatedAt = now
	return true, nil
}

// Target names who a request is addressed to: a wallet address, a display
// name, or both (an address with a cached name).
type Target struct {
	Address string
	Name    string
}

func ByAddress(address, name string) Target { return Target{Address: address, Name: name} }

func ByName(name string) Target { return Target{Name: name} }

// Normalize canonicalizes the address, trims the name and reports whether
// the target names anybody at all.
func (t Target) Normalize() (Target, bool) {
	t.Address = utilities.CanonicalAddress(t.Address)
	t.Name = strings.TrimSpace(t.Name)
	return t, t.Address != "" || t.Name != ""
}

// Role narrows a listing to one side of the request.
type Role string

const (
	RoleAny      Role = ""
	RoleIncoming Role = "incoming"
	RoleOutgoing Role = "outgoing"
)

// ListFilter selects requests for List. Address is canonical.
type ListFilter struct {
	Address string
	Role    Role
}

// Matches is the reference semantics of the filter; repositories implement
// the same predicate in their own query language.
//   - no address: everything
//   - incoming: requests addressed to Address that are still pending
//   - outgoing: requests created by Address, any status
//   - otherwise: Address on either side, any status
func (f ListFilter) Matches(r *PaymentRequest) bool {
	if f.Address == "" {
		return true
	}
	payerMatch := r.PayerAddress != nil && *r.PayerAddress == f.Address
	switch f.Role {
	case RoleIncoming:
		return payerMatch && r.Status == StatusPending
	case RoleOutgoing:
		return r.RequesterAddress == f.Address
	default:
		return r.RequesterAddress == f.Address || payerMatch
	}
}
