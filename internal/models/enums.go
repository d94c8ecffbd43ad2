package models

import "strings"

type Role string

const (
	RoleGuest      Role = "Guest"
	RoleMember     Role = "Member"
	RoleStaff      Role = "Staff"
	RoleConsultant Role = "Consultant"
	RoleManager    Role = "Manager"
	RoleAdmin      Role = "Admin"
)

var AllRoles = []Role{RoleGuest, RoleMember, RoleStaff, RoleConsultant, RoleManager, RoleAdmin}

// ParseRole accepts any casing of a known role name.
func ParseRole(raw string) (Role, bool) {
	value := strings.TrimSpace(raw)
	for _, role := range AllRoles {
		if strings.EqualFold(string(role), value) {
			return role, true
		}
	}
	return "", false
}

type SurveyType string

const (
	SurveyASSIST SurveyType = "ASSIST"
	SurveyCRAFFT SurveyType = "CRAFFT"
)

func ParseSurveyType(raw string) (SurveyType, bool) {
	switch SurveyType(strings.ToUpper(strings.TrimSpace(raw))) {
	case SurveyASSIST:
		return SurveyASSIST, true
	case SurveyCRAFFT:
		return SurveyCRAFFT, true
	}
	return "", false
}

type Phase string

const (
	PhasePre    Phase = "pre"
	PhasePost   Phase = "post"
	PhasePublic Phase = "public"
)

func ParsePhase(raw string) (Phase, bool) {
	switch Phase(strings.ToLower(strings.TrimSpace(raw))) {
	case PhasePre:
		return PhasePre, true
	case PhasePost:
		return PhasePost, true
	case PhasePublic:
		return PhasePublic, true
	}
	return "", false
}

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

func ParseRiskLevel(raw string) (RiskLevel, bool) {
	switch RiskLevel(strings.ToLower(strings.TrimSpace(raw))) {
	case RiskLow:
		return RiskLow, true
	case RiskModerate:
		return RiskModerate, true
	case RiskHigh:
		return RiskHigh, true
	}
	return "", false
}

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

func ParseAppointmentStatus(raw string) (AppointmentStatus, bool) {
	switch AppointmentStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case AppointmentPending:
		return AppointmentPending, true
	case AppointmentConfirmed:
		return AppointmentConfirmed, true
	case AppointmentCancelled:
		return AppointmentCancelled, true
	}
	return "", false
}

// Terminal statuses never transition back to pending.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentConfirmed || s == AppointmentCancelled
}

type AgeGroup string

const (
	AgeStudent    AgeGroup = "student"
	AgeUniversity AgeGroup = "university"
	AgeParent     AgeGroup = "parent"
	AgeTeacher    AgeGroup = "teacher"
)

func ParseAgeGroup(raw string) (AgeGroup, bool) {
	switch AgeGroup(strings.ToLower(strings.TrimSpace(raw))) {
	case AgeStudent:
		return AgeStudent, true
	case AgeUniversity:
		return AgeUniversity, true
	case AgeParent:
		return AgeParent, true
	case AgeTeacher:
		return AgeTeacher, true
	}
	return "", false
}
