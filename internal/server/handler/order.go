package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/marginview/marginview/internal/domain"
	"github.com/marginview/marginview/internal/exchange"
)

// OrderHandler encodes exchange orders to calldata through the wrapper
// registry. The actual submission happens client-side in the user's wallet;
// this endpoint only produces the bytes.
type OrderHandler struct {
	registry *exchange.Registry
	logger   *slog.Logger
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(registry *exchange.Registry, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{registry: registry, logger: logger}
}

type wrapOrderRequest struct {
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	RawData json.RawMessage `json:"raw_data"`
}

type wrapOrderResponse struct {
	Kind     string `json:"kind"`
	Contract string `json:"contract"`
	Calldata string `json:"calldata"`
}

// WrapOrder encodes a venue order to the calldata bytes for its wrapper
// contract.
// POST /api/orders/wrap
func (h *OrderHandler) WrapOrder(w http.ResponseWriter, r *http.Request) {
	var req wrapOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Kind == "" || len(req.RawData) == 0 {
		writeError(w, http.StatusBadRequest, "kind and raw_data required")
		return
	}

	order := domain.Order{
		ID:      req.ID,
		Kind:    domain.OrderKind(req.Kind),
		RawData: req.RawData,
	}

	wrapper, err := h.registry.ForKind(order.Kind)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedOrderKind) {
			writeError(w, http.StatusBadRequest, "unsupported order kind: "+req.Kind)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to resolve wrapper")
		return
	}

	calldata, err := wrapper.OrderBytes(order)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: wrap order failed",
			slog.String("kind", req.Kind),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusUnprocessableEntity, "failed to encode order")
		return
	}

	writeJSON(w, http.StatusOK, wrapOrderResponse{
		Kind:     string(order.Kind),
		Contract: wrapper.Address().Hex(),
		Calldata: hexutil.Encode(calldata),
	})
}
