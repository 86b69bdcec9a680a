// File path: internal/api/conversations_handler.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"
)

// ownedConversation loads the session and checks it belongs to the caller.
// Foreign sessions look absent.
func (s *Server) ownedConversation(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return "", false
	}
	sessionID := chi.URLParam(r, "session")
	conv, err := s.store.GetBySession(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return "", false
	}
	if conv == nil || conv.UserID != userID {
		writeError(w, http.StatusNotFound, fmt.Errorf("conversation %s not found", sessionID))
		return "", false
	}
	return sessionID, true
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	conversations, err := s.store.ListByOwner(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"conversations": conversations})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.ownedConversation(w, r)
	if !ok {
		return
	}
	conv, err := s.store.GetBySession(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.ownedConversation(w, r)
	if !ok {
		return
	}
	history, err := s.orchestrator.History(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session_id": sessionID, "messages": history})
}

func (s *Server) handleUpdateTitle(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.ownedConversation(w, r)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("title required"))
		return
	}
	changed, err := s.store.UpdateTitle(r.Context(), sessionID, req.Title)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session_id": sessionID, "updated": changed})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.ownedConversation(w, r)
	if !ok {
		return
	}
	removed, err := s.store.DeleteConversation(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session_id": sessionID, "deleted": removed})
}
