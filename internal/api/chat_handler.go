// File path: internal/api/chat_handler.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/smpleo/leochat/internal/chat"
	"github.com/smpleo/leochat/internal/llm"
	"github.com/smpleo/leochat/internal/store"
)

const userHeader = "X-User-ID"

// currentUser resolves the authenticated principal from the request. Session
// transport is a collaborator concern, the backend only needs the id.
func currentUser(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get(userHeader))
	if raw == "" {
		return 0, fmt.Errorf("missing %s header", userHeader)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s header", userHeader)
	}
	return id, nil
}

type chatRequest struct {
	SessionID string           `json:"session_id,omitempty"`
	Question  string           `json:"question"`
	Model     *llm.ModelConfig `json:"model_config,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	model := llm.DefaultModelConfig()
	if req.Model != nil {
		model = model.Merge(*req.Model)
	}
	if err := model.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	answer, err := s.orchestrator.Ask(r.Context(), chat.AskRequest{
		UserID:    userID,
		SessionID: req.SessionID,
		Question:  req.Question,
		Model:     model,
	})
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyQuestion):
			writeError(w, http.StatusBadRequest, err)
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, answer)
}
