package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/xela07ax/investorlens/internal/audit"
)

type JournalReader interface {
	Recent(ctx context.Context, n int) ([]audit.Event, error)
}

type AuditHandler struct {
	journal JournalReader
}

func NewAuditHandler(j JournalReader) *AuditHandler {
	return &AuditHandler{journal: j}
}

// GetLogs возвращает последние события журнала, новые первыми
// GET /api/v1/journal?limit=50
func (h *AuditHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	events, err := h.journal.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch journal")
		return
	}
	writeJSON(w, http.StatusOK, events)
}
