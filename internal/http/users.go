package httpapi

import (
	"net/http"
	"strings"

	"riskscreen-backend/internal/models"
	"riskscreen-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

type UserUpdateRequest struct {
	Username   *string `json:"username"`
	Email      *string `json:"email"`
	FullName   *string `json:"fullName"`
	IsVerified *bool   `json:"isVerified"`
}

type RoleRequest struct {
	Role string `json:"role"`
}

type UsersResponse struct {
	Items []models.User `json:"items"`
}

func (s *Server) ListUsers(w http.ResponseWriter, r *http.Request) {
	var role models.Role
	if raw := strings.TrimSpace(r.URL.Query().Get("role")); raw != "" {
		parsed, ok := models.ParseRole(raw)
		if !ok {
			WriteError(w, http.StatusBadRequest, "Invalid role")
			return
		}
		role = parsed
	}
	users, err := s.Users.List(r.Context(), role)
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, UsersResponse{Items: users})
}

func (s *Server) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.Users.Get(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

func (s *Server) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UserUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.Users.AdminUpdate(r.Context(), CurrentIdentity(r), chi.URLParam(r, "userId"), services.AdminUserUpdate{
		Username:   req.Username,
		Email:      req.Email,
		FullName:   req.FullName,
		IsVerified: req.IsVerified,
	})
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

func (s *Server) ChangeUserRole(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.Users.ChangeRole(r.Context(), CurrentIdentity(r), chi.URLParam(r, "userId"), req.Role)
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

func (s *Server) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.Users.Delete(r.Context(), CurrentIdentity(r), chi.URLParam(r, "userId")); err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
