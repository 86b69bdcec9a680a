// File path: internal/api/users_handler.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	chi "github.com/go-chi/chi/v5"

	"github.com/smpleo/leochat/internal/auth"
)

// requireAdmin resolves the caller and checks the admin flag.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return false
	}
	caller, err := s.store.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return false
	}
	if caller == nil || !caller.IsAdmin {
		writeError(w, http.StatusForbidden, fmt.Errorf("admin access required"))
		return false
	}
	return true
}

func userParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}
	return id, nil
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	id, err := userParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user, err := s.store.GetUserByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("user %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type updateUserRequest struct {
	Email     *string `json:"email,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Role      *string `json:"role,omitempty"`
	IsAdmin   *bool   `json:"is_admin,omitempty"`
	IsActive  *bool   `json:"is_active,omitempty"`
	Password  *string `json:"password,omitempty"`
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	id, err := userParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	patch := make(map[string]interface{})
	if req.Email != nil {
		patch["email"] = *req.Email
	}
	if req.FirstName != nil {
		patch["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		patch["last_name"] = *req.LastName
	}
	if req.Role != nil {
		patch["role"] = *req.Role
	}
	if req.IsAdmin != nil {
		patch["is_admin"] = *req.IsAdmin
	}
	if req.IsActive != nil {
		patch["is_active"] = *req.IsActive
	}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		patch["password"] = hash
	}
	if len(patch) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("empty patch"))
		return
	}
	changed, err := s.store.UpdateUser(r.Context(), id, patch)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !changed {
		writeError(w, http.StatusNotFound, fmt.Errorf("user %d not found", id))
		return
	}
	user, err := s.store.GetUserByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	id, err := userParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	removed, err := s.store.DeleteUser(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, fmt.Errorf("user %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "deleted": true})
}
