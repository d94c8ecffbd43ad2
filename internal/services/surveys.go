package services

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"riskscreen-backend/internal/models"
	"riskscreen-backend/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultSurveyPageSize = 10
	maxSurveyPageSize     = 100
)

// immutableSurveyFields can never be changed through a privileged edit.
var immutableSurveyFields = map[string]bool{
	"user":      true,
	"userId":    true,
	"score":     true,
	"riskLevel": true,
	"type":      true,
	"answers":   true,
}

type SurveyPatch struct {
	Phase *string
	Email *string
	// Fields lists every key present in the request body.
	Fields []string
}

type SurveyQuery struct {
	Type      string
	RiskLevel string
	Phase     string
	CourseID  string
	ProgramID string
	From      string
	To        string
	Page      int
	Limit     int
}

type SurveyPage struct {
	Total   int             `json:"total"`
	Page    int             `json:"page"`
	Limit   int             `json:"limit"`
	Surveys []models.Survey `json:"surveys"`
}

type RiskStats struct {
	Low      int `json:"low"`
	Moderate int `json:"moderate"`
	High     int `json:"high"`
	Total    int `json:"total"`
}

type SurveyService struct {
	Surveys  SurveyStore
	Users    UserReader
	Notifier Notifier
	Alerts   AlertPublisher
	Log      *zap.Logger
	Now      func() time.Time
}

func (s *SurveyService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *SurveyService) Questions(rawType string) ([]Question, error) {
	surveyType, ok := models.ParseSurveyType(rawType)
	if !ok {
		return nil, ErrValidation("Type must be ASSIST or CRAFFT")
	}
	return Questions(surveyType)
}

// SubmitPublic records an anonymous screening with no account or enrollment linkage.
func (s *SurveyService) SubmitPublic(ctx context.Context, rawType string, answers []float64, rawEmail *string) (*SurveyResult, error) {
	surveyType, ok := models.ParseSurveyType(rawType)
	if !ok {
		return nil, ErrValidation("Type must be ASSIST or CRAFFT")
	}
	var email *string
	if value := trimmedOrNil(rawEmail); value != nil {
		addr, err := mail.ParseAddress(*value)
		if err != nil {
			return nil, ErrValidation("Invalid email")
		}
		normalized := strings.ToLower(addr.Address)
		email = &normalized
	}
	eval, err := Evaluate(surveyType, answers)
	if err != nil {
		return nil, err
	}
	survey := s.newSurvey(nil, surveyType, models.PhasePublic, answers, eval)
	survey.Email = email
	if err := s.Surveys.InsertSurvey(ctx, &survey); err != nil {
		return nil, WrapError(err, "insert public survey")
	}
	publishIfHigh(s.Alerts, survey)
	rec := Recommend(eval.RiskLevel, PublicLinks())
	if email != nil {
		logNotifyFailure(loggerOrNop(s.Log), "risk_result", notifierOrNop(s.Notifier).RiskResult(ctx, *email, RiskNotice{
			Subject:        string(surveyType),
			RiskLevel:      eval.RiskLevel,
			Score:          eval.Score,
			Recommendation: rec,
		}))
	}
	return newSurveyResult(survey, rec), nil
}

// Submit records a standalone screening for the signed-in user.
func (s *SurveyService) Submit(ctx context.Context, actor *Identity, rawType string, answers []float64) (*SurveyResult, error) {
	if err := Authorize(OpSubmitSurvey, actor); err != nil {
		return nil, err
	}
	surveyType, ok := models.ParseSurveyType(rawType)
	if !ok {
		return nil, ErrValidation("Type must be ASSIST or CRAFFT")
	}
	if err := ValidateOptions(surveyType, answers); err != nil {
		return nil, err
	}
	eval, err := Evaluate(surveyType, answers)
	if err != nil {
		return nil, err
	}
	userID := actor.UserID
	survey := s.newSurvey(&userID, surveyType, models.PhasePre, answers, eval)
	if err := s.Surveys.InsertSurvey(ctx, &survey); err != nil {
		return nil, WrapError(err, "insert survey")
	}
	publishIfHigh(s.Alerts, survey)
	return newSurveyResult(survey, Recommend(eval.RiskLevel, PublicLinks())), nil
}

func (s *SurveyService) newSurvey(userID *string, surveyType models.SurveyType, phase models.Phase, answers []float64, eval Evaluation) models.Survey {
	now := s.now()
	return models.Survey{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      surveyType,
		Phase:     phase,
		Answers:   models.Answers(answers),
		Score:     eval.Score,
		RiskLevel: eval.RiskLevel,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *SurveyService) Mine(ctx context.Context, actor *Identity) ([]models.Survey, error) {
	if err := Authorize(OpViewSurvey, actor); err != nil {
		return nil, err
	}
	items, _, err := s.Surveys.ListSurveys(ctx, store.SurveyFilter{UserID: actor.UserID})
	if err != nil {
		return nil, WrapError(err, "list surveys")
	}
	return items, nil
}

func (s *SurveyService) load(ctx context.Context, id string) (*models.Survey, error) {
	survey, err := s.Surveys.GetSurvey(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound("Survey not found")
	}
	if err != nil {
		return nil, WrapError(err, "load survey")
	}
	return survey, nil
}

// Get returns a survey to its owner or to a manager.
func (s *SurveyService) Get(ctx context.Context, actor *Identity, id string) (*models.Survey, error) {
	if err := Authorize(OpViewSurvey, actor); err != nil {
		return nil, err
	}
	survey, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	owner := survey.UserID != nil && *survey.UserID == actor.UserID
	if !owner && !actor.IsAny(capabilities[OpManageSurveys]...) {
		return nil, ErrForbidden("You are not allowed to view this survey")
	}
	return survey, nil
}

func (s *SurveyService) Update(ctx context.Context, actor *Identity, id string, patch SurveyPatch) (*models.Survey, error) {
	if err := Authorize(OpManageSurveys, actor); err != nil {
		return nil, err
	}
	for _, field := range patch.Fields {
		if immutableSurveyFields[field] {
			return nil, ErrValidation("Field " + field + " cannot be modified")
		}
	}
	survey, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Phase != nil {
		phase, ok := models.ParsePhase(*patch.Phase)
		if !ok {
			return nil, ErrValidation("Invalid phase")
		}
		if phase != survey.Phase {
			if err := phaseEditable(survey, phase); err != nil {
				return nil, err
			}
			survey.Phase = phase
		}
	}
	if patch.Email != nil {
		value := trimmedOrNil(patch.Email)
		if value != nil {
			addr, err := mail.ParseAddress(*value)
			if err != nil {
				return nil, ErrValidation("Invalid email")
			}
			normalized := strings.ToLower(addr.Address)
			value = &normalized
		}
		survey.Email = value
	}
	survey.UpdatedAt = s.now()
	if err := s.Surveys.UpdateSurvey(ctx, survey); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			return nil, ErrConflict("A survey for this phase already exists")
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrNotFound("Survey not found")
		}
		return nil, WrapError(err, "update survey")
	}
	return survey, nil
}

// phaseEditable guards the link between a survey's phase and the enrollment flags derived from it.
func phaseEditable(survey *models.Survey, next models.Phase) error {
	if survey.CourseID != nil || survey.ProgramID != nil {
		return ErrValidation("Phase of a course or program survey cannot be modified")
	}
	if survey.Phase == models.PhasePublic || next == models.PhasePublic {
		return ErrValidation("Surveys cannot be moved into or out of the public phase")
	}
	return nil
}

func (s *SurveyService) Delete(ctx context.Context, actor *Identity, id string) error {
	if err := Authorize(OpManageSurveys, actor); err != nil {
		return err
	}
	survey, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if survey.CourseID != nil {
		return ErrConflict("Surveys recorded on a course registration cannot be deleted")
	}
	err = s.Surveys.DeleteSurvey(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound("Survey not found")
	}
	return WrapError(err, "delete survey")
}

func parseQueryTime(raw, field string) (*time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			parsed = parsed.UTC()
			return &parsed, nil
		}
	}
	return nil, ErrValidation("Invalid " + field + " date")
}

func (q SurveyQuery) filter() (store.SurveyFilter, error) {
	filter := store.SurveyFilter{CourseID: strings.TrimSpace(q.CourseID), ProgramID: strings.TrimSpace(q.ProgramID)}
	if strings.TrimSpace(q.Type) != "" {
		surveyType, ok := models.ParseSurveyType(q.Type)
		if !ok {
			return filter, ErrValidation("Invalid survey type")
		}
		filter.Type = surveyType
	}
	if strings.TrimSpace(q.RiskLevel) != "" {
		level, ok := models.ParseRiskLevel(q.RiskLevel)
		if !ok {
			return filter, ErrValidation("Invalid risk level")
		}
		filter.RiskLevel = level
	}
	if strings.TrimSpace(q.Phase) != "" {
		phase, ok := models.ParsePhase(q.Phase)
		if !ok {
			return filter, ErrValidation("Invalid phase")
		}
		filter.Phase = phase
	}
	var err error
	if filter.From, err = parseQueryTime(q.From, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = parseQueryTime(q.To, "to"); err != nil {
		return filter, err
	}
	return filter, nil
}

func (s *SurveyService) List(ctx context.Context, actor *Identity, q SurveyQuery) (*SurveyPage, error) {
	if err := Authorize(OpManageSurveys, actor); err != nil {
		return nil, err
	}
	filter, err := q.filter()
	if err != nil {
		return nil, err
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit < 1 {
		limit = defaultSurveyPageSize
	}
	if limit > maxSurveyPageSize {
		limit = maxSurveyPageSize
	}
	filter.Limit = limit
	filter.Offset = (page - 1) * limit
	items, total, err := s.Surveys.ListSurveys(ctx, filter)
	if err != nil {
		return nil, WrapError(err, "list surveys")
	}
	return &SurveyPage{Total: total, Page: page, Limit: limit, Surveys: items}, nil
}

func (s *SurveyService) RiskStats(ctx context.Context, actor *Identity) (*RiskStats, error) {
	if err := Authorize(OpManageSurveys, actor); err != nil {
		return nil, err
	}
	counts, err := s.Surveys.CountSurveysByRisk(ctx)
	if err != nil {
		return nil, WrapError(err, "count surveys")
	}
	stats := &RiskStats{
		Low:      counts[models.RiskLow],
		Moderate: counts[models.RiskModerate],
		High:     counts[models.RiskHigh],
	}
	stats.Total = stats.Low + stats.Moderate + stats.High
	return stats, nil
}

var exportHeader = []string{"id", "username", "fullName", "email", "type", "phase", "score", "riskLevel", "courseId", "programId", "createdAt"}

// ExportCSV writes every survey matching q as CSV rows to w.
func (s *SurveyService) ExportCSV(ctx context.Context, actor *Identity, q SurveyQuery, w io.Writer) error {
	if err := Authorize(OpManageSurveys, actor); err != nil {
		return err
	}
	filter, err := q.filter()
	if err != nil {
		return err
	}
	items, _, err := s.Surveys.ListSurveys(ctx, filter)
	if err != nil {
		return WrapError(err, "list surveys")
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return err
	}
	users := map[string]*models.User{}
	for _, survey := range items {
		username, fullName, email := "", "", deref(survey.Email)
		if survey.UserID != nil && s.Users != nil {
			user, seen := users[*survey.UserID]
			if !seen {
				user, _ = s.Users.GetUser(ctx, *survey.UserID)
				users[*survey.UserID] = user
			}
			if user != nil {
				username = user.Username
				fullName = deref(user.FullName)
				email = user.Email
			}
		}
		record := []string{
			survey.ID,
			username,
			fullName,
			email,
			string(survey.Type),
			string(survey.Phase),
			strconv.FormatFloat(survey.Score, 'f', -1, 64),
			string(survey.RiskLevel),
			deref(survey.CourseID),
			deref(survey.ProgramID),
			survey.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
