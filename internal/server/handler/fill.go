package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// FillHandler serves the raw fill ledger.
type FillHandler struct {
	fills  domain.FillStore
	logger *slog.Logger
}

// NewFillHandler creates a FillHandler.
func NewFillHandler(fills domain.FillStore, logger *slog.Logger) *FillHandler {
	return &FillHandler{fills: fills, logger: logger}
}

// fillsResponse wraps the ledger output.
type fillsResponse struct {
	Fills       []domain.Fill `json:"fills"`
	LatestBlock uint64        `json:"latest_block"`
}

// ListFills returns fills in replay order, optionally for one address.
// GET /api/fills?address=0x...
func (h *FillHandler) ListFills(w http.ResponseWriter, r *http.Request) {
	var (
		fills []domain.Fill
		err   error
	)

	if address := r.URL.Query().Get("address"); address != "" {
		if !addressPattern.MatchString(address) {
			writeError(w, http.StatusBadRequest, "invalid address")
			return
		}
		fills, err = h.fills.ListByAddress(r.Context(), address)
	} else {
		fills, err = h.fills.ListAll(r.Context())
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list fills failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load fills")
		return
	}

	latest, err := h.fills.LatestBlock(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: latest fill block failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load fills")
		return
	}

	writeJSON(w, http.StatusOK, fillsResponse{
		Fills:       fills,
		LatestBlock: latest,
	})
}
