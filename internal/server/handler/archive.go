package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// ArchiveHandler lists cold-storage archive objects.
type ArchiveHandler struct {
	blobs  domain.BlobReader
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler. blobs may be nil when object
// storage is not configured; the endpoint then reports 404.
func NewArchiveHandler(blobs domain.BlobReader, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{blobs: blobs, logger: logger}
}

// archivesResponse wraps the archive listing.
type archivesResponse struct {
	Archives []domain.BlobInfo `json:"archives"`
}

// ListArchives enumerates archived ledger objects.
// GET /api/archives
func (h *ArchiveHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	if h.blobs == nil {
		writeError(w, http.StatusNotFound, "archival storage not configured")
		return
	}

	infos, err := h.blobs.List(r.Context(), "archive/")
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list archives failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list archives")
		return
	}

	writeJSON(w, http.StatusOK, archivesResponse{Archives: infos})
}
