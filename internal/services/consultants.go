package services

import (
	"context"
	"strings"

	"riskscreen-backend/internal/models"
)

type ConsultantProfileUpdate struct {
	FullName       *string
	Bio            *string
	Qualifications *[]string
	Specialties    *[]string
	WorkSchedule   *[]string
}

type ConsultantService struct {
	Users *UserService
}

func (s *ConsultantService) List(ctx context.Context) ([]models.User, error) {
	return s.Users.List(ctx, models.RoleConsultant)
}

func (s *ConsultantService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.Users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleConsultant {
		return nil, ErrNotFound("Consultant not found")
	}
	return user, nil
}

func (s *ConsultantService) Me(ctx context.Context, actor *Identity) (*models.User, error) {
	if err := Authorize(OpEditConsultantProfile, actor); err != nil {
		return nil, err
	}
	return s.Get(ctx, actor.UserID)
}

func (s *ConsultantService) UpdateMe(ctx context.Context, actor *Identity, in ConsultantProfileUpdate) (*models.User, error) {
	user, err := s.Me(ctx, actor)
	if err != nil {
		return nil, err
	}
	if in.FullName != nil {
		user.FullName = trimmedOrNil(in.FullName)
	}
	if in.Bio != nil {
		user.Bio = trimmedOrNil(in.Bio)
	}
	if in.Qualifications != nil {
		user.Qualifications = cleanList(*in.Qualifications)
	}
	if in.Specialties != nil {
		user.Specialties = cleanList(*in.Specialties)
	}
	if in.WorkSchedule != nil {
		user.WorkSchedule = cleanList(*in.WorkSchedule)
	}
	user.UpdatedAt = s.Users.now()
	if err := s.Users.Store.UpdateUser(ctx, user); err != nil {
		return nil, s.Users.userWriteError(err)
	}
	return user, nil
}

func cleanList(items []string) models.StringList {
	out := models.StringList{}
	for _, item := range items {
		if value := strings.TrimSpace(item); value != "" {
			out = append(out, value)
		}
	}
	return out
}
