package httpapi

import (
	"net/http"

	"riskscreen-backend/internal/models"
	"riskscreen-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

type CourseRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	AgeGroup    *string  `json:"ageGroup"`
	Content     *string  `json:"content"`
	Category    *string  `json:"category"`
	Price       *float64 `json:"price"`
	SurveyType  *string  `json:"surveyType"`
}

type AnswersRequest struct {
	Type    string    `json:"type"`
	Answers []float64 `json:"answers"`
}

type CoursesResponse struct {
	Items []models.Course `json:"items"`
}

func valueOr[T any](ptr *T) T {
	var zero T
	if ptr == nil {
		return zero
	}
	return *ptr
}

func (s *Server) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := s.Enrollment.ListCourses(r.Context())
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, CoursesResponse{Items: courses})
}

func (s *Server) GetCourse(w http.ResponseWriter, r *http.Request) {
	course, err := s.Enrollment.GetCourse(r.Context(), chi.URLParam(r, "courseId"))
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, course)
}

func (s *Server) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var req CourseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	course, err := s.Enrollment.CreateCourse(r.Context(), CurrentIdentity(r), services.CourseInput{
		Title:       valueOr(req.Title),
		Description: valueOr(req.Description),
		AgeGroup:    valueOr(req.AgeGroup),
		Content:     valueOr(req.Content),
		Category:    valueOr(req.Category),
		Price:       valueOr(req.Price),
		SurveyType:  valueOr(req.SurveyType),
	})
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, course)
}

func (s *Server) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	var req CourseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	course, err := s.Enrollment.UpdateCourse(r.Context(), CurrentIdentity(r), chi.URLParam(r, "courseId"), services.CoursePatch{
		Title:       req.Title,
		Description: req.Description,
		AgeGroup:    req.AgeGroup,
		Content:     req.Content,
		Category:    req.Category,
		Price:       req.Price,
		SurveyType:  req.SurveyType,
	})
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, course)
}

func (s *Server) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	if err := s.Enrollment.DeleteCourse(r.Context(), CurrentIdentity(r), chi.URLParam(r, "courseId")); err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) RegisterCourse(w http.ResponseWriter, r *http.Request) {
	result, err := s.Enrollment.Register(r.Context(), CurrentIdentity(r), chi.URLParam(r, "courseId"))
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, result)
}

func (s *Server) MyCourses(w http.ResponseWriter, r *http.Request) {
	items, err := s.Enrollment.MyCourses(r.Context(), CurrentIdentity(r))
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) CourseRegistrations(w http.ResponseWriter, r *http.Request) {
	items, err := s.Enrollment.Registrations(r.Context(), CurrentIdentity(r), chi.URLParam(r, "courseId"))
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) CompleteCourse(w http.ResponseWriter, r *http.Request) {
	result, err := s.Enrollment.Complete(r.Context(), CurrentIdentity(r), chi.URLParam(r, "courseId"))
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (s *Server) SubmitCoursePreSurvey(w http.ResponseWriter, r *http.Request) {
	var req AnswersRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := s.Enrollment.SubmitPreSurvey(r.Context(), CurrentIdentity(r), chi.URLParam(r, "courseId"), req.Answers)
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, result)
}

func (s *Server) SubmitCoursePostSurvey(w http.ResponseWriter, r *http.Request) {
	var req AnswersRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := s.Enrollment.SubmitPostSurvey(r.Context(), CurrentIdentity(r), chi.URLParam(r, "courseId"), req.Answers)
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, result)
}
