package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
	"github.com/alanyoungcy/mirrorarb/internal/service"
)

// SettlementService defines the methods that the settlement handler requires.
type SettlementService interface {
	Resolve(ctx context.Context, req service.SettlementRequest) (domain.Resolution, error)
}

// SettlementHandler serves the mirror-market settlement trigger.
type SettlementHandler struct {
	svc    SettlementService
	logger *slog.Logger
}

// NewSettlementHandler creates a SettlementHandler. svc may be nil when
// settlement is disabled.
func NewSettlementHandler(svc SettlementService, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{svc: svc, logger: logHandler(logger, "settlement")}
}

type resolveResponse struct {
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
	Attempts    int    `json:"attempts"`
}

// Resolve settles one mirror market on-chain.
// POST /api/settlement/resolve {"mirrorKey":"0x..","yesWon":true,"opportunityId":".."}
func (h *SettlementHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		writeError(w, http.StatusNotImplemented, "settlement is not enabled")
		return
	}

	var req service.SettlementRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeServiceError(w, r, h.logger, "invalid body", fmt.Errorf("%w: %v", domain.ErrValidation, err))
		return
	}

	res, err := h.svc.Resolve(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, "resolve failed", err)
		return
	}
	writeJSON(w, http.StatusOK, resolveResponse{
		TxHash:      res.TxHash,
		BlockNumber: res.BlockNumber,
		Attempts:    res.Attempts,
	})
}
