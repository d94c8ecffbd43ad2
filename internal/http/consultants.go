package httpapi

import (
	"net/http"

	"riskscreen-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

type ConsultantProfileRequest struct {
	FullName       *string   `json:"fullName"`
	Bio            *string   `json:"bio"`
	Qualifications *[]string `json:"qualifications"`
	Specialties    *[]string `json:"specialties"`
	WorkSchedule   *[]string `json:"workSchedule"`
}

func (s *Server) ListConsultants(w http.ResponseWriter, r *http.Request) {
	consultants, err := s.Consultants.List(r.Context())
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, UsersResponse{Items: consultants})
}

func (s *Server) GetConsultant(w http.ResponseWriter, r *http.Request) {
	consultant, err := s.Consultants.Get(r.Context(), chi.URLParam(r, "consultantId"))
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, consultant)
}

func (s *Server) ConsultantMe(w http.ResponseWriter, r *http.Request) {
	consultant, err := s.Consultants.Me(r.Context(), CurrentIdentity(r))
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, consultant)
}

func (s *Server) UpdateConsultantMe(w http.ResponseWriter, r *http.Request) {
	var req ConsultantProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	consultant, err := s.Consultants.UpdateMe(r.Context(), CurrentIdentity(r), services.ConsultantProfileUpdate{
		FullName:       req.FullName,
		Bio:            req.Bio,
		Qualifications: req.Qualifications,
		Specialties:    req.Specialties,
		WorkSchedule:   req.WorkSchedule,
	})
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, consultant)
}
