package services

import (
	"context"
	"errors"

	"riskscreen-backend/internal/models"
	"riskscreen-backend/internal/store"
)

type Identity struct {
	UserID string
	Role   models.Role
}

func (id *Identity) Is(role models.Role) bool {
	return id != nil && id.Role == role
}

func (id *Identity) IsAny(roles ...models.Role) bool {
	if id == nil {
		return false
	}
	for _, role := range roles {
		if id.Role == role {
			return true
		}
	}
	return false
}

type Operation string

const (
	OpManageProfile            Operation = "profile.manage"
	OpListUsers                Operation = "users.list"
	OpUpdateUser               Operation = "users.update"
	OpChangeRole               Operation = "users.role"
	OpDeleteUser               Operation = "users.delete"
	OpEditConsultantProfile    Operation = "consultants.profile"
	OpCreateCourse             Operation = "courses.create"
	OpUpdateCourse             Operation = "courses.update"
	OpDeleteCourse             Operation = "courses.delete"
	OpViewRegistrations        Operation = "courses.registrations"
	OpEnrollCourse             Operation = "courses.enroll"
	OpManagePrograms           Operation = "programs.manage"
	OpViewProgramParticipation Operation = "programs.participation"
	OpEnrollProgram            Operation = "programs.enroll"
	OpSubmitSurvey             Operation = "surveys.submit"
	OpViewSurvey               Operation = "surveys.view"
	OpManageSurveys            Operation = "surveys.manage"
	OpBookAppointment          Operation = "appointments.book"
	OpConsultantAppointments   Operation = "appointments.consultant"
	OpListAppointments         Operation = "appointments.list"
	OpManageAppointments       Operation = "appointments.manage"
	OpViewDashboard            Operation = "dashboard.view"
	OpSubscribeAlerts          Operation = "alerts.subscribe"
)

var (
	everyone     = models.AllRoles
	participants = []models.Role{models.RoleMember, models.RoleStaff, models.RoleConsultant, models.RoleManager, models.RoleAdmin}
	contentStaff = []models.Role{models.RoleStaff, models.RoleManager, models.RoleAdmin}
	management   = []models.Role{models.RoleManager, models.RoleAdmin}
	adminOnly    = []models.Role{models.RoleAdmin}
)

// capabilities is the single source of which roles may perform an operation.
var capabilities = map[Operation][]models.Role{
	OpManageProfile:            everyone,
	OpListUsers:                management,
	OpUpdateUser:               adminOnly,
	OpChangeRole:               adminOnly,
	OpDeleteUser:               adminOnly,
	OpEditConsultantProfile:    {models.RoleConsultant},
	OpCreateCourse:             contentStaff,
	OpUpdateCourse:             contentStaff,
	OpDeleteCourse:             management,
	OpViewRegistrations:        contentStaff,
	OpEnrollCourse:             participants,
	OpManagePrograms:           management,
	OpViewProgramParticipation: management,
	OpEnrollProgram:            participants,
	OpSubmitSurvey:             everyone,
	OpViewSurvey:               everyone,
	OpManageSurveys:            management,
	OpBookAppointment:          everyone,
	OpConsultantAppointments:   {models.RoleConsultant},
	OpListAppointments:         management,
	OpManageAppointments:       management,
	OpViewDashboard:            management,
	OpSubscribeAlerts:          {models.RoleConsultant, models.RoleStaff, models.RoleManager, models.RoleAdmin},
}

// Capabilities returns the roles allowed to perform op.
func Capabilities(op Operation) []models.Role {
	return capabilities[op]
}

type UserReader interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

type Guard struct {
	Tokens TokenService
	// Users, when set, is consulted so role changes and deletions apply to live tokens.
	Users UserReader
}

func (g Guard) Authenticate(ctx context.Context, token string) (*Identity, error) {
	userID, claims, err := g.Tokens.ParseTyped(token, tokenTypeAccess)
	if err != nil {
		return nil, ErrUnauthenticated("Authentication failed")
	}
	rawRole, _ := claims["role"].(string)
	role, ok := models.ParseRole(rawRole)
	if !ok {
		return nil, ErrUnauthenticated("Authentication failed")
	}
	if g.Users != nil {
		user, err := g.Users.GetUser(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnauthenticated("Authentication failed")
		}
		if err != nil {
			return nil, WrapError(err, "load user")
		}
		role = user.Role
	}
	return &Identity{UserID: userID, Role: role}, nil
}

// Authorize checks identity against the capability table for op.
func (g Guard) Authorize(op Operation, id *Identity) error {
	return Authorize(op, id)
}

func Authorize(op Operation, id *Identity) error {
	if id == nil || id.UserID == "" {
		return ErrUnauthenticated("Authentication failed")
	}
	if !id.IsAny(capabilities[op]...) {
		return ErrForbidden("Not allowed")
	}
	return nil
}
