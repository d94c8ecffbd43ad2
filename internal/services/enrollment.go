package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"riskscreen-backend/internal/models"
	"riskscreen-backend/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CourseInput struct {
	Title       string
	Description string
	AgeGroup    string
	Content     string
	Category    string
	Price       float64
	SurveyType  string
}

type CoursePatch struct {
	Title       *string
	Description *string
	AgeGroup    *string
	Content     *string
	Category    *string
	Price       *float64
	SurveyType  *string
}

type RegistrationResult struct {
	Registration models.CourseRegistration `json:"registration"`
	SurveyLink   string                    `json:"surveyLink"`
}

type CompletionResult struct {
	Registration models.CourseRegistration `json:"registration"`
	SurveyLink   string                    `json:"surveyLink"`
}

// SurveyResult is the response to any survey submission.
type SurveyResult struct {
	Survey         models.Survey `json:"survey"`
	Recommendation string        `json:"recommendation"`
	NextActions    []NextAction  `json:"nextActions"`
}

func newSurveyResult(survey models.Survey, rec Recommendation) *SurveyResult {
	actions := rec.NextActions
	if actions == nil {
		actions = []NextAction{}
	}
	return &SurveyResult{Survey: survey, Recommendation: rec.Message, NextActions: actions}
}

type MyCourse struct {
	Course       models.Course             `json:"course"`
	Registration models.CourseRegistration `json:"registration"`
}

// EnrollmentService drives the per-(user, course) registration and survey gating.
type EnrollmentService struct {
	Courses    CourseStore
	Users      UserReader
	Notifier   Notifier
	Alerts     AlertPublisher
	Log        *zap.Logger
	Now        func() time.Time
	BackendURL string
	// RequireCompletionForPostSurvey rejects post surveys until the course is completed.
	RequireCompletionForPostSurvey bool
}

func (s *EnrollmentService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *EnrollmentService) log() *zap.Logger {
	return loggerOrNop(s.Log)
}

func PreSurveyPath(course models.Course) string {
	return "/api/courses/" + course.ID + "/survey/pre?type=" + string(course.SurveyType)
}

func PostSurveyPath(course models.Course) string {
	return "/api/courses/" + course.ID + "/survey/post?type=" + string(course.SurveyType)
}

func (s *EnrollmentService) absolute(path string) string {
	return strings.TrimRight(s.BackendURL, "/") + path
}

func (s *EnrollmentService) CreateCourse(ctx context.Context, actor *Identity, in CourseInput) (*models.Course, error) {
	if err := Authorize(OpCreateCourse, actor); err != nil {
		return nil, err
	}
	course := &models.Course{
		ID:          uuid.NewString(),
		Description: strings.TrimSpace(in.Description),
		Content:     in.Content,
		Category:    strings.TrimSpace(in.Category),
		CreatedBy:   actor.UserID,
	}
	title := strings.TrimSpace(in.Title)
	ageGroup := in.AgeGroup
	price := in.Price
	surveyType := in.SurveyType
	if err := applyCoursePatch(course, CoursePatch{
		Title:      &title,
		AgeGroup:   &ageGroup,
		Price:      &price,
		SurveyType: &surveyType,
	}); err != nil {
		return nil, err
	}
	now := s.now()
	course.CreatedAt = now
	course.UpdatedAt = now
	if err := s.Courses.InsertCourse(ctx, course); err != nil {
		return nil, WrapError(err, "insert course")
	}
	return course, nil
}

func applyCoursePatch(course *models.Course, patch CoursePatch) error {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return ErrValidation("Title is required")
		}
		course.Title = title
	}
	if patch.Description != nil {
		course.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.AgeGroup != nil {
		group, ok := models.ParseAgeGroup(*patch.AgeGroup)
		if !ok {
			return ErrValidation("Invalid age group")
		}
		course.AgeGroup = group
	}
	if patch.Content != nil {
		course.Content = *patch.Content
	}
	if patch.Category != nil {
		course.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Price != nil {
		if *patch.Price < 0 {
			return ErrValidation("Price must not be negative")
		}
		course.Price = *patch.Price
	}
	if patch.SurveyType != nil {
		surveyType, ok := models.ParseSurveyType(*patch.SurveyType)
		if !ok {
			return ErrValidation("Invalid survey type")
		}
		course.SurveyType = surveyType
	}
	return nil
}

func (s *EnrollmentService) ListCourses(ctx context.Context) ([]models.Course, error) {
	courses, err := s.Courses.ListCourses(ctx)
	if err != nil {
		return nil, WrapError(err, "list courses")
	}
	return courses, nil
}

func (s *EnrollmentService) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.Courses.GetCourse(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound("Course not found")
	}
	if err != nil {
		return nil, WrapError(err, "load course")
	}
	return course, nil
}

func (s *EnrollmentService) UpdateCourse(ctx context.Context, actor *Identity, id string, patch CoursePatch) (*models.Course, error) {
	if err := Authorize(OpUpdateCourse, actor); err != nil {
		return nil, err
	}
	course, err := s.GetCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyCoursePatch(course, patch); err != nil {
		return nil, err
	}
	course.UpdatedAt = s.now()
	if err := s.Courses.UpdateCourse(ctx, course); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound("Course not found")
		}
		return nil, WrapError(err, "update course")
	}
	return course, nil
}

func (s *EnrollmentService) DeleteCourse(ctx context.Context, actor *Identity, id string) error {
	if err := Authorize(OpDeleteCourse, actor); err != nil {
		return err
	}
	err := s.Courses.DeleteCourse(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound("Course not found")
	}
	return WrapError(err, "delete course")
}

// Register creates the (user, course) registration and sends the pre-survey invitation.
func (s *EnrollmentService) Register(ctx context.Context, actor *Identity, courseID string) (*RegistrationResult, error) {
	if err := Authorize(OpEnrollCourse, actor); err != nil {
		return nil, err
	}
	course, err := s.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	reg := &models.CourseRegistration{
		ID:           uuid.NewString(),
		UserID:       actor.UserID,
		CourseID:     course.ID,
		RegisteredAt: s.now(),
	}
	if err := s.Courses.InsertRegistration(ctx, reg); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrConflict("You are already registered for this course")
		}
		return nil, WrapError(err, "insert registration")
	}
	link := s.absolute(PreSurveyPath(*course))
	if to := s.emailOf(ctx, actor.UserID); to != "" {
		logNotifyFailure(s.log(), "pre_survey_invitation",
			notifierOrNop(s.Notifier).PreSurveyInvitation(ctx, to, *course, link))
	}
	s.log().Info("course registration created", zap.String("userId", actor.UserID), zap.String("courseId", course.ID))
	return &RegistrationResult{Registration: *reg, SurveyLink: link}, nil
}

func (s *EnrollmentService) emailOf(ctx context.Context, userID string) string {
	if s.Users == nil {
		return ""
	}
	user, err := s.Users.GetUser(ctx, userID)
	if err != nil {
		s.log().Warn("notification recipient lookup failed", zap.String("userId", userID), zap.Error(err))
		return ""
	}
	return user.Email
}

func (s *EnrollmentService) registration(ctx context.Context, userID, courseID string) (*models.CourseRegistration, error) {
	reg, err := s.Courses.GetRegistration(ctx, userID, courseID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrForbidden("You are not registered for this course")
	}
	if err != nil {
		return nil, WrapError(err, "load registration")
	}
	return reg, nil
}

func (s *EnrollmentService) SubmitPreSurvey(ctx context.Context, actor *Identity, courseID string, answers []float64) (*SurveyResult, error) {
	return s.submit(ctx, actor, courseID, models.PhasePre, answers)
}

func (s *EnrollmentService) SubmitPostSurvey(ctx context.Context, actor *Identity, courseID string, answers []float64) (*SurveyResult, error) {
	return s.submit(ctx, actor, courseID, models.PhasePost, answers)
}

func (s *EnrollmentService) submit(ctx context.Context, actor *Identity, courseID string, phase models.Phase, answers []float64) (*SurveyResult, error) {
	if err := Authorize(OpEnrollCourse, actor); err != nil {
		return nil, err
	}
	course, err := s.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	reg, err := s.registration(ctx, actor.UserID, course.ID)
	if err != nil {
		return nil, err
	}
	switch phase {
	case models.PhasePre:
		if reg.PreSurveyDone {
			return nil, ErrConflict("Pre-survey already submitted")
		}
	case models.PhasePost:
		if reg.PostSurveyDone {
			return nil, ErrConflict("Post-survey already submitted")
		}
		if s.RequireCompletionForPostSurvey && !reg.Completed {
			return nil, ErrForbidden("Complete the course before the post-survey")
		}
	default:
		return nil, ErrValidation("Invalid phase")
	}
	eval, err := Evaluate(course.SurveyType, answers)
	if err != nil {
		return nil, err
	}

	now := s.now()
	userID := actor.UserID
	survey := models.Survey{
		ID:        uuid.NewString(),
		UserID:    &userID,
		Type:      course.SurveyType,
		Phase:     phase,
		Answers:   models.Answers(answers),
		Score:     eval.Score,
		RiskLevel: eval.RiskLevel,
		CourseID:  &course.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Courses.RecordCourseSurvey(ctx, &survey); err != nil {
		switch {
		case errors.Is(err, store.ErrStateChanged), errors.Is(err, store.ErrDuplicate):
			return nil, ErrConflict("Survey already submitted")
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrForbidden("You are not registered for this course")
		}
		return nil, WrapError(err, "record course survey")
	}

	rec := Recommend(eval.RiskLevel, CourseLinks(course.ID))
	publishIfHigh(s.Alerts, survey)
	if phase == models.PhasePre {
		if to := s.emailOf(ctx, actor.UserID); to != "" {
			logNotifyFailure(s.log(), "risk_result", notifierOrNop(s.Notifier).RiskResult(ctx, to, RiskNotice{
				Subject:        course.Title,
				RiskLevel:      eval.RiskLevel,
				Score:          eval.Score,
				Recommendation: rec,
			}))
		}
	}
	s.log().Info("course survey recorded",
		zap.String("courseId", course.ID),
		zap.String("phase", string(phase)),
		zap.String("riskLevel", string(eval.RiskLevel)))
	return newSurveyResult(survey, rec), nil
}

func (s *EnrollmentService) Complete(ctx context.Context, actor *Identity, courseID string) (*CompletionResult, error) {
	if err := Authorize(OpEnrollCourse, actor); err != nil {
		return nil, err
	}
	course, err := s.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	reg, err := s.registration(ctx, actor.UserID, course.ID)
	if err != nil {
		return nil, err
	}
	if reg.Completed {
		return nil, ErrConflict("Course already completed")
	}
	if err := s.Courses.CompleteRegistration(ctx, actor.UserID, course.ID, s.now()); err != nil {
		switch {
		case errors.Is(err, store.ErrStateChanged):
			return nil, ErrConflict("Course already completed")
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrForbidden("You are not registered for this course")
		}
		return nil, WrapError(err, "complete registration")
	}
	reg.Completed = true
	link := s.absolute(PostSurveyPath(*course))
	if to := s.emailOf(ctx, actor.UserID); to != "" {
		logNotifyFailure(s.log(), "post_survey_invitation",
			notifierOrNop(s.Notifier).PostSurveyInvitation(ctx, to, *course, link))
	}
	return &CompletionResult{Registration: *reg, SurveyLink: link}, nil
}

func (s *EnrollmentService) MyCourses(ctx context.Context, actor *Identity) ([]MyCourse, error) {
	if err := Authorize(OpEnrollCourse, actor); err != nil {
		return nil, err
	}
	regs, err := s.Courses.ListRegistrationsByUser(ctx, actor.UserID)
	if err != nil {
		return nil, WrapError(err, "list registrations")
	}
	items := make([]MyCourse, 0, len(regs))
	for _, reg := range regs {
		course, err := s.Courses.GetCourse(ctx, reg.CourseID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, WrapError(err, "load course")
		}
		items = append(items, MyCourse{Course: *course, Registration: reg})
	}
	return items, nil
}

func (s *EnrollmentService) Registrations(ctx context.Context, actor *Identity, courseID string) ([]models.CourseRegistration, error) {
	if err := Authorize(OpViewRegistrations, actor); err != nil {
		return nil, err
	}
	if _, err := s.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}
	regs, err := s.Courses.ListRegistrationsByCourse(ctx, courseID)
	if err != nil {
		return nil, WrapError(err, "list registrations")
	}
	return regs, nil
}
