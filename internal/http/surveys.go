package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"

	"riskscreen-backend/internal/models"
	"riskscreen-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

type PublicSurveyRequest struct {
	Type    string    `json:"type"`
	Answers []float64 `json:"answers"`
	Email   *string   `json:"email"`
}

type QuestionsResponse struct {
	Type      string              `json:"type"`
	Questions []services.Question `json:"questions"`
}

type SurveysResponse struct {
	Items []models.Survey `json:"items"`
}

func surveyQuery(r *http.Request) services.SurveyQuery {
	q := r.URL.Query()
	return services.SurveyQuery{
		Type:      q.Get("type"),
		RiskLevel: q.Get("riskLevel"),
		Phase:     q.Get("phase"),
		CourseID:  q.Get("courseId"),
		ProgramID: q.Get("programId"),
		From:      q.Get("from"),
		To:        q.Get("to"),
		Page:      parseInt(q.Get("page"), 1),
		Limit:     parseInt(q.Get("limit"), 0),
	}
}

func (s *Server) SurveyQuestions(w http.ResponseWriter, r *http.Request) {
	rawType := r.URL.Query().Get("type")
	questions, err := s.Surveys.Questions(rawType)
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	surveyType, _ := models.ParseSurveyType(rawType)
	WriteJSON(w, http.StatusOK, QuestionsResponse{Type: string(surveyType), Questions: questions})
}

func (s *Server) SubmitPublicSurvey(w http.ResponseWriter, r *http.Request) {
	var req PublicSurveyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := s.Surveys.SubmitPublic(r.Context(), req.Type, req.Answers, req.Email)
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, result)
}

func (s *Server) SubmitSurvey(w http.ResponseWriter, r *http.Request) {
	var req AnswersRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := s.Surveys.Submit(r.Context(), CurrentIdentity(r), req.Type, req.Answers)
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, result)
}

func (s *Server) MySurveys(w http.ResponseWriter, r *http.Request) {
	surveys, err := s.Surveys.Mine(r.Context(), CurrentIdentity(r))
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, SurveysResponse{Items: surveys})
}

func (s *Server) ListSurveys(w http.ResponseWriter, r *http.Request) {
	page, err := s.Surveys.List(r.Context(), CurrentIdentity(r), surveyQuery(r))
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

func (s *Server) SurveyRiskStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Surveys.RiskStats(r.Context(), CurrentIdentity(r))
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

func (s *Server) ExportSurveys(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.Surveys.ExportCSV(r.Context(), CurrentIdentity(r), surveyQuery(r), &buf); err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="surveys.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) GetSurvey(w http.ResponseWriter, r *http.Request) {
	survey, err := s.Surveys.Get(r.Context(), CurrentIdentity(r), chi.URLParam(r, "surveyId"))
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, survey)
}

// UpdateSurvey keeps the raw key set so attempts to touch protected fields are rejected, not ignored.
func (s *Server) UpdateSurvey(w http.ResponseWriter, r *http.Request) {
	var body map[string]json.RawMessage
	if !decodeJSON(w, r, &body) {
		return
	}
	patch := services.SurveyPatch{}
	for key, raw := range body {
		patch.Fields = append(patch.Fields, key)
		var target **string
		switch key {
		case "phase":
			target = &patch.Phase
		case "email":
			target = &patch.Email
		default:
			continue
		}
		if err := json.Unmarshal(raw, target); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid payload")
			return
		}
	}
	survey, err := s.Surveys.Update(r.Context(), CurrentIdentity(r), chi.URLParam(r, "surveyId"), patch)
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, survey)
}

func (s *Server) DeleteSurvey(w http.ResponseWriter, r *http.Request) {
	if err := s.Surveys.Delete(r.Context(), CurrentIdentity(r), chi.URLParam(r, "surveyId")); err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
