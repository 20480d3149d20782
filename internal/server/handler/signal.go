package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// SignalHandler serves the signal feed.
type SignalHandler struct {
	signals domain.SignalStore
	logger  *slog.Logger
}

// NewSignalHandler creates a SignalHandler.
func NewSignalHandler(signals domain.SignalStore, logger *slog.Logger) *SignalHandler {
	return &SignalHandler{signals: signals, logger: logger}
}

// signalsResponse wraps the signal feed output.
type signalsResponse struct {
	Signals    []domain.Signal `json:"signals"`
	SinceBlock uint64          `json:"since_block"`
}

// ListSignals returns signals at or after since_block (all when omitted),
// filtered to one address when given, strongest first.
// GET /api/signals?since_block=75000000&address=0x...
func (h *SignalHandler) ListSignals(w http.ResponseWriter, r *http.Request) {
	if address := r.URL.Query().Get("address"); address != "" {
		if !addressPattern.MatchString(address) {
			writeError(w, http.StatusBadRequest, "invalid address")
			return
		}
		signals, err := h.signals.ListByAddress(r.Context(), address)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "handler: list signals by address failed",
				slog.String("address", address),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to load signals")
			return
		}
		writeJSON(w, http.StatusOK, signalsResponse{Signals: signals})
		return
	}

	var sinceBlock uint64
	if v := r.URL.Query().Get("since_block"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since_block")
			return
		}
		sinceBlock = n
	}

	signals, err := h.signals.ListSinceBlock(r.Context(), sinceBlock)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list signals failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load signals")
		return
	}

	writeJSON(w, http.StatusOK, signalsResponse{
		Signals:    signals,
		SinceBlock: sinceBlock,
	})
}
