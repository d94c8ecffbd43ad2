package httpapi

import (
	"net/http"
	"strings"

	"riskscreen-backend/internal/models"
	"riskscreen-backend/internal/services"
)

type RegisterRequest struct {
	Username        string  `json:"username"`
	Email           string  `json:"email"`
	Password        string  `json:"password"`
	ConfirmPassword *string `json:"confirmPassword"`
	FullName        *string `json:"fullName"`
	Role            string  `json:"role"`
}

type LoginRequest struct {
	Login    string `json:"login"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	services.TokenPair
	User *models.User `json:"user"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ProfileRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	FullName *string `json:"fullName"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ConfirmPassword != nil && req.Password != *req.ConfirmPassword {
		WriteError(w, http.StatusBadRequest, "Password confirmation does not match")
		return
	}
	user, err := s.Users.Register(r.Context(), CurrentIdentity(r), services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Role:     req.Role,
	})
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, user)
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	login := req.Login
	for _, candidate := range []string{req.Email, req.Username} {
		if strings.TrimSpace(login) == "" {
			login = candidate
		}
	}
	pair, user, err := s.Users.Login(r.Context(), login, req.Password)
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, TokenResponse{TokenPair: pair, User: user})
}

func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pair, user, err := s.Users.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, TokenResponse{TokenPair: pair, User: user})
}

// Logout is stateless; clients drop their tokens.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := s.Users.Get(r.Context(), CurrentIdentity(r).UserID)
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

func (s *Server) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.Users.UpdateProfile(r.Context(), CurrentIdentity(r), services.ProfileUpdate{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
	})
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

func (s *Server) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.Users.ChangePassword(r.Context(), CurrentIdentity(r), req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
