// File path: internal/api/ingest_handler.go
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type ingestRequest struct {
	Dir   string   `json:"dir,omitempty"`
	Files []string `json:"files,omitempty"`
}

// handleIngest runs the document pipeline over a directory or an explicit
// file list. Per-document failures are reported, not fatal. Document
// management is an admin action.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Files) > 0 {
		report := s.pipeline.IngestFiles(r.Context(), req.Files)
		writeJSON(w, http.StatusOK, report)
		return
	}
	dir := strings.TrimSpace(req.Dir)
	if dir == "" {
		dir = s.docsDir
	}
	if dir == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("no document directory configured"))
		return
	}
	report, err := s.pipeline.IngestDir(r.Context(), dir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleDeleteVectors wipes the whole collection. Re-ingestion rebuilds it.
// Index administration is an admin action.
func (s *Server) handleDeleteVectors(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	if err := s.vectors.DeleteAll(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"collection": s.vectors.Collection(), "status": "deleted"})
}
