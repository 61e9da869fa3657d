package handler

import (
	"log/slog"
	"net/http"

	"github.com/marginview/marginview/internal/domain"
)

// ArchiveHandler lists history snapshots in object storage.
type ArchiveHandler struct {
	reader domain.BlobReader
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler.
func NewArchiveHandler(reader domain.BlobReader, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{reader: reader, logger: logger}
}

type listArchivesResponse struct {
	Archives []domain.BlobInfo `json:"archives"`
}

// ListArchives returns metadata for stored archive files.
// GET /api/archives?kind=quotes
func (h *ArchiveHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	prefix := "archive/"
	if kind := r.URL.Query().Get("kind"); kind != "" {
		prefix += kind + "/"
	}

	archives, err := h.reader.List(r.Context(), prefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list archives failed",
			slog.String("prefix", prefix),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list archives")
		return
	}
	if archives == nil {
		archives = []domain.BlobInfo{}
	}
	writeJSON(w, http.StatusOK, listArchivesResponse{Archives: archives})
}
