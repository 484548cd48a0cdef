package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/govquorum/anonpoll/internal/core/domain"
	"github.com/govquorum/anonpoll/internal/core/ports"
)

type AuditHandler struct {
	audit ports.AuditService
}

func NewAuditHandler(audit ports.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// QueryAudit streams audit entries matching the query filters. Entries
// never contain vote payloads, so the endpoint is safe to expose to any
// administrator for reconciliation.
func (h *AuditHandler) QueryAudit(w http.ResponseWriter, r *http.Request) {
	var filter domain.AuditFilter
	q := r.URL.Query()

	if v := q.Get("poll_id"); v != "" {
		pollID, err := uuid.Parse(v)
		if err != nil {
			http.Error(w, "invalid poll id", http.StatusBadRequest)
			return
		}
		filter.PollID = &pollID
	}
	if v := q.Get("action"); v != "" {
		action := domain.AuditAction(v)
		filter.Action = &action
	}
	if v := q.Get("from"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "invalid from timestamp", http.StatusBadRequest)
			return
		}
		filter.From = &from
	}
	if v := q.Get("to"); v != "" {
		to, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "invalid to timestamp", http.StatusBadRequest)
			return
		}
		filter.To = &to
	}

	entries, err := h.audit.Query(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*domain.AuditEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
