package server

import (
	"net/http"
	"strconv"

	"admin-backend/internal/audit"
)

// handleListAuditLogs serves GET /v1/audit-logs?resource_type=&resource_id=&limit=.
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := audit.Filter{
		ResourceType: q.Get("resource_type"),
		ResourceID:   q.Get("resource_id"),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeErrorCode(w, http.StatusBadRequest, "validation_error", "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}

	entries, err := s.audit.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"audit_logs": entries})
}
