package services

import (
	"context"
	"time"

	"riskscreen-backend/internal/models"
	"riskscreen-backend/internal/store"
)

type UserStore interface {
	// InsertUser returns false without writing when onlyIfNoAdmin is set and an Admin exists.
	InsertUser(ctx context.Context, u *models.User, onlyIfNoAdmin bool) (bool, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	FindUserByLogin(ctx context.Context, login string) (*models.User, error)
	ListUsers(ctx context.Context, role models.Role) ([]models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	DeleteUser(ctx context.Context, id string) error
}

type CourseStore interface {
	InsertCourse(ctx context.Context, c *models.Course) error
	GetCourse(ctx context.Context, id string) (*models.Course, error)
	ListCourses(ctx context.Context) ([]models.Course, error)
	UpdateCourse(ctx context.Context, c *models.Course) error
	DeleteCourse(ctx context.Context, id string) error
	InsertRegistration(ctx context.Context, reg *models.CourseRegistration) error
	GetRegistration(ctx context.Context, userID, courseID string) (*models.CourseRegistration, error)
	ListRegistrationsByUser(ctx context.Context, userID string) ([]models.CourseRegistration, error)
	ListRegistrationsByCourse(ctx context.Context, courseID string) ([]models.CourseRegistration, error)
	CompleteRegistration(ctx context.Context, userID, courseID string, at time.Time) error
	// RecordCourseSurvey flips the phase flag and inserts the survey atomically.
	RecordCourseSurvey(ctx context.Context, s *models.Survey) error
}

type ProgramStore interface {
	InsertProgram(ctx context.Context, p *models.Program) error
	GetProgram(ctx context.Context, id string) (*models.Program, error)
	ListPrograms(ctx context.Context) ([]models.Program, error)
	UpdateProgram(ctx context.Context, p *models.Program) error
	DeleteProgram(ctx context.Context, id string) error
	InsertParticipant(ctx context.Context, p *models.ProgramParticipant) error
	IsParticipant(ctx context.Context, programID, userID string) (bool, error)
	ListParticipants(ctx context.Context, programID string) ([]models.ProgramParticipant, error)
}

type SurveyStore interface {
	InsertSurvey(ctx context.Context, s *models.Survey) error
	GetSurvey(ctx context.Context, id string) (*models.Survey, error)
	UpdateSurvey(ctx context.Context, s *models.Survey) error
	DeleteSurvey(ctx context.Context, id string) error
	ListSurveys(ctx context.Context, filter store.SurveyFilter) ([]models.Survey, int, error)
	CountSurveysByRisk(ctx context.Context) (map[models.RiskLevel]int, error)
	CountHighRiskSince(ctx context.Context, since time.Time) (int, error)
}

type AppointmentStore interface {
	InsertAppointment(ctx context.Context, a *models.Appointment) error
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	// TransitionAppointment fails with store.ErrStateChanged when the status is no longer from.
	TransitionAppointment(ctx context.Context, id string, from, to models.AppointmentStatus, at time.Time) error
	SetAppointmentStatus(ctx context.Context, id string, status models.AppointmentStatus, at time.Time) error
	ListAppointments(ctx context.Context, filter store.AppointmentFilter) ([]models.Appointment, error)
	CountAppointments(ctx context.Context, status models.AppointmentStatus) (int, error)
}

type DashboardStore interface {
	InsertDashboardSample(ctx context.Context, sample *models.DashboardSample) error
	LatestDashboardSamples(ctx context.Context, limit int) ([]models.DashboardSample, error)
	CountAppointments(ctx context.Context, status models.AppointmentStatus) (int, error)
	CountHighRiskSince(ctx context.Context, since time.Time) (int, error)
}

// Store is the full persistence surface; both store.Memory and store.Postgres satisfy it.
type Store interface {
	UserStore
	CourseStore
	ProgramStore
	SurveyStore
	AppointmentStore
	InsertDashboardSample(ctx context.Context, sample *models.DashboardSample) error
	LatestDashboardSamples(ctx context.Context, limit int) ([]models.DashboardSample, error)
}

var (
	_ Store = (*store.Memory)(nil)
	_ Store = (*store.Postgres)(nil)
)
