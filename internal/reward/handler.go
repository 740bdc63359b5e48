package reward

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

type RecordRequest struct {
	WalletAddress string         `json:"walletAddress" validate:"max=128"`
	EventType     string         `json:"eventType" validate:"max=64"`
	CampaignID    string         `json:"campaignId" validate:"max=128"`
	Metadata      map[string]any `json:"metadata"`
}

func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	var req RecordRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	payload, err := h.svc.RecordEvent(r.Context(), EventInput{
		WalletAddress: req.WalletAddress,
		EventType:     req.EventType,
		CampaignID:    req.CampaignID,
		Metadata:      req.Metadata,
	})
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "data", payload)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListRewards(r.Context(), r.URL.Query().Get("walletAddress"))
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "rewards", items)
}
