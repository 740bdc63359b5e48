package entity

import "time"

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

func (s Status) IsValid() bool { return s == StatusSuccess || s == StatusFailed }

// Payment is a completed direct transfer, stored in the `payments` table.
// Amount is in base units; SettlementRef is the ledger transaction hash.
type Payment struct {
	PaymentID       string    `json:"paymentId" db:"payment_id"`
	SenderAddress   string    `json:"senderAddress" db:"sender_address"`
	SenderName      *string   `json:"senderName,omitempty" db:"sender_name"`
	ReceiverAddress string    `json:"receiverAddress" db:"receiver_address"`
	ReceiverName    *string   `json:"receiverName,omitempty" db:"receiver_name"`
	Amount          string    `json:"amount" db:"amount"`
	AmountDisplay   *string   `json:"amountDisplay,omitempty" db:"amount_display"`
	SettlementRef   string    `json:"settlementRef" db:"settlement_ref"`
	Status          Status    `json:"status" db:"status"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
}
