// File path: internal/api/logs_handler.go
package api

import (
	"net/http"

	"github.com/smpleo/leochat/internal/common"
)

// handleLogs exposes the in-memory log buffer for the admin dashboard.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	entries := append([]common.LogEntry(nil), common.LogEntries()...)
	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": entries})
}
