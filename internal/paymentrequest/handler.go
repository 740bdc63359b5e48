package paymentrequest

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/httpx"
	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/paymentrequest/entity"
)

// Handler exposes the payment request lifecycle over HTTP.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// CreateRequest is the body of POST /api/requests. Amount is a human
// decimal; AmountOctas, when present, is used verbatim.
type CreateRequest struct {
	RequesterAddress string           `json:"requesterAddress" validate:"max=128"`
	RequesterName    string           `json:"requesterName" validate:"max=128"`
	PayerAddress     string           `json:"payerAddress" validate:"max=128"`
	PayerName        string           `json:"payerName" validate:"max=128"`
	Amount           httpx.FlexString `json:"amount" validate:"max=64"`
	AmountOctas      httpx.FlexString `json:"amountOctas" validate:"max=80"`
	AmountDisplay    string           `json:"amountDisplay" validate:"max=64"`
	Memo             string           `json:"memo" validate:"max=512"`
}

// AcceptRequest is the body of POST /api/requests/{id}/accept.
type AcceptRequest struct {
	SettlementRef string `json:"settlementRef" validate:"max=256"`
	PayerAddress  string `json:"payerAddress" validate:"max=128"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	payer := entity.ByName(req.PayerName)
	if req.PayerAddress != "" {
		payer = entity.ByAddress(req.PayerAddress, req.PayerName)
	}
	pr, err := h.svc.Create(r.Context(), CreateInput{
		RequesterAddress: req.RequesterAddress,
		RequesterName:    req.RequesterName,
		Payer:            payer,
		Amount:           req.Amount.String(),
		AmountBaseUnits:  req.AmountOctas.String(),
		AmountDisplay:    req.AmountDisplay,
		Memo:             req.Memo,
	})
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	httpx.OK(w, http.StatusCreated, "request", pr)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.svc.List(r.Context(), entity.ListFilter{
		Address: q.Get("address"),
		Role:    entity.Role(q.Get("role")),
	})
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "requests", items)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	pr, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "request", pr)
}

func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	var req AcceptRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	pr, err := h.svc.Accept(r.Context(), r.PathValue("id"), req.SettlementRef, req.PayerAddress)
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "request", pr)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	pr, err := h.svc.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "request", pr)
}
