package store

import (
	"errors"
	"time"

	"riskscreen-backend/internal/models"
)

var (
	ErrNotFound     = errors.New("store: not found")
	ErrDuplicate    = errors.New("store: duplicate")
	ErrStateChanged = errors.New("store: state changed")
)

type SurveyFilter struct {
	UserID    string
	Type      models.SurveyType
	Phase     models.Phase
	RiskLevel models.RiskLevel
	CourseID  string
	ProgramID string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

func (f SurveyFilter) matches(s models.Survey) bool {
	if f.UserID != "" && (s.UserID == nil || *s.UserID != f.UserID) {
		return false
	}
	if f.Type != "" && s.Type != f.Type {
		return false
	}
	if f.Phase != "" && s.Phase != f.Phase {
		return false
	}
	if f.RiskLevel != "" && s.RiskLevel != f.RiskLevel {
		return false
	}
	if f.CourseID != "" && (s.CourseID == nil || *s.CourseID != f.CourseID) {
		return false
	}
	if f.ProgramID != "" && (s.ProgramID == nil || *s.ProgramID != f.ProgramID) {
		return false
	}
	if f.From != nil && s.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && s.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

type AppointmentFilter struct {
	UserID       string
	ConsultantID string
	Status       models.AppointmentStatus
}

func (f AppointmentFilter) matches(a models.Appointment) bool {
	if f.UserID != "" && a.UserID != f.UserID {
		return false
	}
	if f.ConsultantID != "" && a.ConsultantID != f.ConsultantID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	return true
}
