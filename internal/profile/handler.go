package profile

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/httpx"
)

// Handler exposes profile registration and lookup.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterRequest accepts the display name as either `name` or `displayName`.
type RegisterRequest struct {
	WalletAddress string `json:"walletAddress" validate:"max=128"`
	Name          string `json:"name" validate:"max=128"`
	DisplayName   string `json:"displayName" validate:"max=128"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	name := req.Name
	if name == "" {
		name = req.DisplayName
	}
	p, err := h.svc.Register(r.Context(), req.WalletAddress, name)
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	httpx.OK(w, http.StatusCreated, "user", p)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "users", items)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), r.PathValue("wallet"))
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "user", p)
}

func (h *Handler) Provision(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Provision(r.Context(), r.PathValue("wallet"))
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "user", p)
}
