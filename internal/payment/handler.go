package payment

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/httpx"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RecordRequest also accepts the wallet UI's legacy names amountInEth and
// transactionHash.
type RecordRequest struct {
	SenderAddress   string           `json:"senderAddress" validate:"max=128"`
	SenderName      string           `json:"senderName" validate:"max=128"`
	ReceiverAddress string           `json:"receiverAddress" validate:"max=128"`
	ReceiverName    string           `json:"receiverName" validate:"max=128"`
	Amount          httpx.FlexString `json:"amount" validate:"max=80"`
	AmountDisplay   httpx.FlexString `json:"amountDisplay" validate:"max=64"`
	AmountInEth     httpx.FlexString `json:"amountInEth" validate:"max=64"`
	SettlementRef   string           `json:"settlementRef" validate:"max=256"`
	TransactionHash string           `json:"transactionHash" validate:"max=256"`
	Status          string           `json:"status" validate:"omitempty,oneof=success failed"`
}

func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	var req RecordRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	display := req.AmountDisplay.String()
	if display == "" {
		display = req.AmountInEth.String()
	}
	ref := req.SettlementRef
	if ref == "" {
		ref = req.TransactionHash
	}
	p, err := h.svc.Record(r.Context(), RecordInput{
		SenderAddress:   req.SenderAddress,
		SenderName:      req.SenderName,
		ReceiverAddress: req.ReceiverAddress,
		ReceiverName:    req.ReceiverName,
		Amount:          req.Amount.String(),
		AmountDisplay:   display,
		SettlementRef:   ref,
		Status:          req.Status,
	})
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	httpx.OK(w, http.StatusCreated, "payment", p)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context(), r.URL.Query().Get("address"))
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "payments", items)
}
