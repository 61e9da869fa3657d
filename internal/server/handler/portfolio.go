package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/marginview/marginview/internal/domain"
	"github.com/marginview/marginview/internal/portfolio"
)

// PortfolioService defines what the portfolio handler needs from the
// valuation layer.
type PortfolioService interface {
	Rows(ctx context.Context) ([]portfolio.Row, error)
	Chart(ctx context.Context, positionID string) (portfolio.ChartView, error)
}

// PortfolioHandler serves the dashboard endpoints: the position table rows
// and the per-position chart payload.
type PortfolioHandler struct {
	svc    PortfolioService
	logger *slog.Logger
}

// NewPortfolioHandler creates a PortfolioHandler.
func NewPortfolioHandler(svc PortfolioService, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{svc: svc, logger: logger}
}

// rowsResponse wraps the portfolio table response.
type rowsResponse struct {
	Positions []portfolio.Row `json:"positions"`
}

// ListRows returns the rendered portfolio table rows.
// GET /api/portfolio
func (h *PortfolioHandler) ListRows(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Rows(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list portfolio rows failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to build portfolio")
		return
	}
	if rows == nil {
		rows = []portfolio.Row{}
	}
	writeJSON(w, http.StatusOK, rowsResponse{Positions: rows})
}

// GetChart returns the chart payload for one position.
// GET /api/portfolio/{id}/chart
func (h *PortfolioHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "position id required")
		return
	}

	view, err := h.svc.Chart(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "position not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get chart failed",
			slog.String("position_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to build chart")
		return
	}
	writeJSON(w, http.StatusOK, view)
}
