package httpapi

import (
	"net/http"

	"riskscreen-backend/internal/models"

	"github.com/go-chi/chi/v5"
)

type AppointmentRequest struct {
	ConsultantID string `json:"consultantId"`
	ScheduledAt  string `json:"scheduledAt"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type AppointmentsResponse struct {
	Items []models.Appointment `json:"items"`
}

func (s *Server) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req AppointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	appointment, err := s.Appointments.Create(r.Context(), CurrentIdentity(r), req.ConsultantID, req.ScheduledAt)
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, appointment)
}

func (s *Server) MyAppointments(w http.ResponseWriter, r *http.Request) {
	items, err := s.Appointments.Mine(r.Context(), CurrentIdentity(r))
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, AppointmentsResponse{Items: items})
}

func (s *Server) ConsultantAppointments(w http.ResponseWriter, r *http.Request) {
	items, err := s.Appointments.ForConsultant(r.Context(), CurrentIdentity(r))
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, AppointmentsResponse{Items: items})
}

func (s *Server) ListAppointments(w http.ResponseWriter, r *http.Request) {
	items, err := s.Appointments.All(r.Context(), CurrentIdentity(r), r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, AppointmentsResponse{Items: items})
}

func (s *Server) UpdateAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	appointment, err := s.Appointments.UpdateStatus(r.Context(), CurrentIdentity(r), chi.URLParam(r, "appointmentId"), req.Status)
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, appointment)
}

func (s *Server) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	appointment, err := s.Appointments.Cancel(r.Context(), CurrentIdentity(r), chi.URLParam(r, "appointmentId"))
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, appointment)
}
