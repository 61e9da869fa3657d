package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/marginview/marginview/internal/domain"
)

// PositionHandler serves the raw position and transfer records behind the
// dashboard. The rendered rows live on the portfolio handler; these endpoints
// expose the underlying data.
type PositionHandler struct {
	positions domain.PositionStore
	transfers domain.TransferStore
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(positions domain.PositionStore, transfers domain.TransferStore, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		transfers: transfers,
		logger:    logger,
	}
}

type listPositionsResponse struct {
	Positions []domain.Position `json:"positions"`
}

// ListPositions returns stored positions, optionally filtered by state.
// GET /api/positions?state=ACTIVE
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	var positions []domain.Position
	var err error
	if state := r.URL.Query().Get("state"); state != "" {
		positions, err = h.positions.ListByState(r.Context(), domain.PositionState(state), opts)
	} else {
		positions, err = h.positions.List(r.Context(), opts)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list positions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}
	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}

// GetPosition returns one position by id.
// GET /api/positions/{id}
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	pos, err := h.positions.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "position not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get position failed",
			slog.String("position_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get position")
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

type listTransfersResponse struct {
	Transfers []domain.Transfer `json:"transfers"`
}

// ListTransfers returns the full transfer history for one position.
// GET /api/positions/{id}/transfers
func (h *PositionHandler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, err := h.positions.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "position not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get position failed",
			slog.String("position_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get position")
		return
	}

	transfers, err := h.transfers.ListByPosition(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list transfers failed",
			slog.String("position_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list transfers")
		return
	}
	if transfers == nil {
		transfers = []domain.Transfer{}
	}
	writeJSON(w, http.StatusOK, listTransfersResponse{Transfers: transfers})
}
