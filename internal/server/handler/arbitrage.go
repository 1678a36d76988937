package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/mirrorarb/internal/service"
)

// ArbService defines the methods that the arbitrage handler requires.
type ArbService interface {
	Opportunities(ctx context.Context, q service.OpportunityQuery) (service.OpportunityList, error)
	Matches(ctx context.Context, q service.MatchQuery) (service.MatchList, error)
}

// ArbHandler serves arbitrage-related HTTP endpoints.
type ArbHandler struct {
	arb    ArbService
	logger *slog.Logger
}

// NewArbHandler creates an ArbHandler with the given service and logger.
func NewArbHandler(arb ArbService, logger *slog.Logger) *ArbHandler {
	return &ArbHandler{arb: arb, logger: logHandler(logger, "arbitrage")}
}

// ListOpportunities returns selected opportunities, most profitable first.
// GET /api/arbitrage/opportunities?minSpread=2&limit=20&fresh=true
func (h *ArbHandler) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	var (
		q   service.OpportunityQuery
		err error
	)
	if q.MinSpread, err = queryFloat(r, "minSpread", 0); err != nil {
		writeServiceError(w, r, h.logger, "invalid query", err)
		return
	}
	if q.Limit, err = queryInt(r, "limit"); err != nil {
		writeServiceError(w, r, h.logger, "invalid query", err)
		return
	}
	if q.Fresh, err = queryBool(r, "fresh"); err != nil {
		writeServiceError(w, r, h.logger, "invalid query", err)
		return
	}

	list, err := h.arb.Opportunities(r.Context(), q)
	if err != nil {
		writeServiceError(w, r, h.logger, "list opportunities failed", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ListMatches returns matched market pairs and aggregate stats.
// GET /api/arbitrage/matches?minSimilarity=0.4&onlyArbitrage=true&limit=50
func (h *ArbHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	var (
		q   service.MatchQuery
		err error
	)
	if q.MinSimilarity, err = queryFloat(r, "minSimilarity", 0.4); err != nil {
		writeServiceError(w, r, h.logger, "invalid query", err)
		return
	}
	if q.OnlyArbitrage, err = queryBool(r, "onlyArbitrage"); err != nil {
		writeServiceError(w, r, h.logger, "invalid query", err)
		return
	}
	if q.Limit, err = queryInt(r, "limit"); err != nil {
		writeServiceError(w, r, h.logger, "invalid query", err)
		return
	}

	list, err := h.arb.Matches(r.Context(), q)
	if err != nil {
		writeServiceError(w, r, h.logger, "list matches failed", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
