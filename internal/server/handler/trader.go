package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// TraderHandler serves the leaderboard and per-trader endpoints.
type TraderHandler struct {
	stats     domain.TraderStatsStore
	positions domain.PositionStore
	deposits  domain.DepositStore
	origins   domain.OriginStore
	logger    *slog.Logger
}

// NewTraderHandler creates a TraderHandler.
func NewTraderHandler(
	stats domain.TraderStatsStore,
	positions domain.PositionStore,
	deposits domain.DepositStore,
	origins domain.OriginStore,
	logger *slog.Logger,
) *TraderHandler {
	return &TraderHandler{
		stats:     stats,
		positions: positions,
		deposits:  deposits,
		origins:   origins,
		logger:    logger,
	}
}

// leaderboardResponse wraps the leaderboard output.
type leaderboardResponse struct {
	Traders []domain.ScoredTrader `json:"traders"`
	SortBy  string                `json:"sort_by"`
	Limit   int                   `json:"limit"`
}

// Leaderboard returns the top scored traders.
// GET /api/leaderboard?sort=score&limit=50
func (h *TraderHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	sortBy := domain.LeaderboardSort(r.URL.Query().Get("sort"))
	if sortBy == "" {
		sortBy = domain.SortByScore
	}
	limit := queryInt(r, "limit", 50, 500)

	traders, err := h.stats.Leaderboard(r.Context(), sortBy, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: leaderboard failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}

	writeJSON(w, http.StatusOK, leaderboardResponse{
		Traders: traders,
		SortBy:  string(sortBy),
		Limit:   limit,
	})
}

// traderResponse joins everything known about one wallet.
type traderResponse struct {
	Trader    domain.ScoredTrader    `json:"trader"`
	Positions []domain.PositionState `json:"positions"`
	Deposits  domain.DepositSummary  `json:"deposits"`
	Origin    *domain.OriginMetadata `json:"origin,omitempty"`
}

// GetTrader returns one wallet's stats, positions, funding, and origin.
// GET /api/traders/{address}
func (h *TraderHandler) GetTrader(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")
	if !addressPattern.MatchString(address) {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}

	trader, err := h.stats.GetByAddress(r.Context(), address)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "trader not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get trader failed",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load trader")
		return
	}

	positions, err := h.positions.ListByAddress(r.Context(), address)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list positions failed",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load positions")
		return
	}

	summary, err := h.deposits.Summary(r.Context(), address)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: deposit summary failed",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load deposits")
		return
	}

	resp := traderResponse{
		Trader:    trader,
		Positions: positions,
		Deposits:  summary,
	}

	// Origin is best-effort: absence is normal for wallets not yet classified.
	if origin, err := h.origins.GetByAddress(r.Context(), address); err == nil {
		resp.Origin = &origin
	} else if !errors.Is(err, domain.ErrNotFound) {
		h.logger.WarnContext(r.Context(), "handler: origin lookup failed",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, http.StatusOK, resp)
}
