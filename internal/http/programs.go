package httpapi

import (
	"net/http"
	"strings"
	"time"

	"riskscreen-backend/internal/models"
	"riskscreen-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

type ProgramRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	StartDate   *string `json:"startDate"`
	EndDate     *string `json:"endDate"`
	Location    *string `json:"location"`
	PreSurvey   *string `json:"preSurvey"`
	PostSurvey  *string `json:"postSurvey"`
}

type ProgramsResponse struct {
	Items []models.Program `json:"items"`
}

// parseDate accepts RFC 3339 timestamps or bare dates.
func parseDate(raw *string) (*time.Time, bool) {
	if raw == nil {
		return nil, true
	}
	value := strings.TrimSpace(*raw)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return &parsed, true
		}
	}
	return nil, false
}

func (req ProgramRequest) dates() (*time.Time, *time.Time, bool) {
	start, ok := parseDate(req.StartDate)
	if !ok {
		return nil, nil, false
	}
	end, ok := parseDate(req.EndDate)
	if !ok {
		return nil, nil, false
	}
	return start, end, true
}

func (s *Server) ListPrograms(w http.ResponseWriter, r *http.Request) {
	programs, err := s.Programs.List(r.Context())
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, ProgramsResponse{Items: programs})
}

func (s *Server) GetProgram(w http.ResponseWriter, r *http.Request) {
	program, err := s.Programs.Get(r.Context(), chi.URLParam(r, "programId"))
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, program)
}

func (s *Server) CreateProgram(w http.ResponseWriter, r *http.Request) {
	var req ProgramRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	start, end, ok := req.dates()
	if !ok {
		WriteError(w, http.StatusBadRequest, "Invalid date")
		return
	}
	program, err := s.Programs.Create(r.Context(), CurrentIdentity(r), services.ProgramInput{
		Title:       valueOr(req.Title),
		Description: valueOr(req.Description),
		StartDate:   valueOr(start),
		EndDate:     valueOr(end),
		Location:    req.Location,
		PreSurvey:   req.PreSurvey,
		PostSurvey:  req.PostSurvey,
	})
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, program)
}

func (s *Server) UpdateProgram(w http.ResponseWriter, r *http.Request) {
	var req ProgramRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	start, end, ok := req.dates()
	if !ok {
		WriteError(w, http.StatusBadRequest, "Invalid date")
		return
	}
	program, err := s.Programs.Update(r.Context(), CurrentIdentity(r), chi.URLParam(r, "programId"), services.ProgramPatch{
		Title:       req.Title,
		Description: req.Description,
		StartDate:   start,
		EndDate:     end,
		Location:    req.Location,
		PreSurvey:   req.PreSurvey,
		PostSurvey:  req.PostSurvey,
	})
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, program)
}

func (s *Server) DeleteProgram(w http.ResponseWriter, r *http.Request) {
	if err := s.Programs.Delete(r.Context(), CurrentIdentity(r), chi.URLParam(r, "programId")); err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) RegisterProgram(w http.ResponseWriter, r *http.Request) {
	participant, err := s.Programs.Register(r.Context(), CurrentIdentity(r), chi.URLParam(r, "programId"))
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, participant)
}

func (s *Server) ProgramParticipants(w http.ResponseWriter, r *http.Request) {
	items, err := s.Programs.Participants(r.Context(), CurrentIdentity(r), chi.URLParam(r, "programId"))
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) SubmitProgramSurvey(w http.ResponseWriter, r *http.Request) {
	var req AnswersRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := s.Programs.SubmitSurvey(r.Context(), CurrentIdentity(r),
		chi.URLParam(r, "programId"), chi.URLParam(r, "phase"), req.Type, req.Answers)
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, result)
}

func (s *Server) ProgramSurveys(w http.ResponseWriter, r *http.Request) {
	surveys, err := s.Programs.SurveysByPhase(r.Context(), CurrentIdentity(r), chi.URLParam(r, "programId"))
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, surveys)
}

func (s *Server) ProgramStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Programs.Stats(r.Context(), CurrentIdentity(r), chi.URLParam(r, "programId"))
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}
