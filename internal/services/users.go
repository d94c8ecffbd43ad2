package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"riskscreen-backend/internal/models"
	"riskscreen-backend/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const minPasswordLength = 6

type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName *string
	Role     string
}

type ProfileUpdate struct {
	Username *string
	Email    *string
	FullName *string
}

type AdminUserUpdate struct {
	Username   *string
	Email      *string
	FullName   *string
	IsVerified *bool
}

type UserService struct {
	Store  UserStore
	Tokens TokenService
	Log    *zap.Logger
	Now    func() time.Time
}

func (s *UserService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", ErrValidation("Email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrValidation("Invalid email")
	}
	return email, nil
}

func trimmedOrNil(raw *string) *string {
	if raw == nil {
		return nil
	}
	value := strings.TrimSpace(*raw)
	if value == "" {
		return nil
	}
	return &value
}

// Register creates an account. Without a requested role the first account becomes Admin.
func (s *UserService) Register(ctx context.Context, actor *Identity, in RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, ErrValidation("Username is required")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if len(in.Password) < minPasswordLength {
		return nil, ErrValidation("Password must be at least 6 characters")
	}
	var requested models.Role
	if strings.TrimSpace(in.Role) != "" {
		role, ok := models.ParseRole(in.Role)
		if !ok {
			return nil, ErrValidation("Invalid role")
		}
		requested = role
	}

	hash, err := s.Tokens.HashPassword(in.Password)
	if err != nil {
		return nil, WrapError(err, "hash password")
	}
	now := s.now()
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		FullName:     trimmedOrNil(in.FullName),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	switch requested {
	case "":
		user.Role = models.RoleAdmin
		inserted, err := s.Store.InsertUser(ctx, user, true)
		if err != nil {
			return nil, s.userWriteError(err)
		}
		if !inserted {
			user.Role = models.RoleMember
			if _, err := s.Store.InsertUser(ctx, user, false); err != nil {
				return nil, s.userWriteError(err)
			}
		}
	case models.RoleAdmin:
		user.Role = models.RoleAdmin
		inserted, err := s.Store.InsertUser(ctx, user, !actor.Is(models.RoleAdmin))
		if err != nil {
			return nil, s.userWriteError(err)
		}
		if !inserted {
			if actor == nil {
				return nil, ErrUnauthenticated("Authentication required to create an Admin")
			}
			return nil, ErrForbidden("Only an Admin can create another Admin")
		}
	case models.RoleStaff, models.RoleConsultant, models.RoleManager:
		if actor == nil {
			return nil, ErrUnauthenticated("Authentication required to assign this role")
		}
		if !actor.Is(models.RoleAdmin) {
			return nil, ErrForbidden("Only an Admin can assign this role")
		}
		user.Role = requested
		if _, err := s.Store.InsertUser(ctx, user, false); err != nil {
			return nil, s.userWriteError(err)
		}
	case models.RoleGuest, models.RoleMember:
		user.Role = requested
		if _, err := s.Store.InsertUser(ctx, user, false); err != nil {
			return nil, s.userWriteError(err)
		}
	}
	loggerOrNop(s.Log).Info("user registered", zap.String("userId", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

func (s *UserService) userWriteError(err error) error {
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return ErrConflict("Username or email already exists")
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound("User not found")
	}
	return WrapError(err, "write user")
}

func (s *UserService) Login(ctx context.Context, login, password string) (TokenPair, *models.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return TokenPair{}, nil, ErrValidation("Login and password are required")
	}
	user, err := s.Store.FindUserByLogin(ctx, login)
	if errors.Is(err, store.ErrNotFound) {
		return TokenPair{}, nil, ErrUnauthenticated("Authentication failed")
	}
	if err != nil {
		return TokenPair{}, nil, WrapError(err, "find user")
	}
	if !s.Tokens.VerifyPassword(password, user.PasswordHash) {
		return TokenPair{}, nil, ErrUnauthenticated("Authentication failed")
	}
	pair, err := s.Tokens.CreatePair(user.ID, user.Role)
	if err != nil {
		return TokenPair{}, nil, WrapError(err, "sign tokens")
	}
	return pair, user, nil
}

func (s *UserService) Refresh(ctx context.Context, refreshToken string) (TokenPair, *models.User, error) {
	userID, _, err := s.Tokens.ParseTyped(refreshToken, tokenTypeRefresh)
	if err != nil {
		return TokenPair{}, nil, ErrUnauthenticated("Authentication failed")
	}
	user, err := s.Store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return TokenPair{}, nil, ErrUnauthenticated("Authentication failed")
	}
	if err != nil {
		return TokenPair{}, nil, WrapError(err, "load user")
	}
	pair, err := s.Tokens.CreatePair(user.ID, user.Role)
	if err != nil {
		return TokenPair{}, nil, WrapError(err, "sign tokens")
	}
	return pair, user, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.Store.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound("User not found")
	}
	if err != nil {
		return nil, WrapError(err, "load user")
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, role models.Role) ([]models.User, error) {
	users, err := s.Store.ListUsers(ctx, role)
	if err != nil {
		return nil, WrapError(err, "list users")
	}
	return users, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, actor *Identity, in ProfileUpdate) (*models.User, error) {
	if err := Authorize(OpManageProfile, actor); err != nil {
		return nil, err
	}
	user, err := s.Get(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if err := applyIdentityFields(user, in.Username, in.Email, in.FullName); err != nil {
		return nil, err
	}
	user.UpdatedAt = s.now()
	if err := s.Store.UpdateUser(ctx, user); err != nil {
		return nil, s.userWriteError(err)
	}
	return user, nil
}

func applyIdentityFields(user *models.User, username, email, fullName *string) error {
	if username != nil {
		value := strings.TrimSpace(*username)
		if value == "" {
			return ErrValidation("Username is required")
		}
		user.Username = value
	}
	if email != nil {
		value, err := normalizeEmail(*email)
		if err != nil {
			return err
		}
		user.Email = value
	}
	if fullName != nil {
		user.FullName = trimmedOrNil(fullName)
	}
	return nil
}

func (s *UserService) ChangePassword(ctx context.Context, actor *Identity, current, next string) error {
	if err := Authorize(OpManageProfile, actor); err != nil {
		return err
	}
	user, err := s.Get(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if !s.Tokens.VerifyPassword(current, user.PasswordHash) {
		return ErrValidation("Current password is incorrect")
	}
	if len(next) < minPasswordLength {
		return ErrValidation("Password must be at least 6 characters")
	}
	hash, err := s.Tokens.HashPassword(next)
	if err != nil {
		return WrapError(err, "hash password")
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.now()
	if err := s.Store.UpdateUser(ctx, user); err != nil {
		return s.userWriteError(err)
	}
	return nil
}

func (s *UserService) AdminUpdate(ctx context.Context, actor *Identity, id string, in AdminUserUpdate) (*models.User, error) {
	if err := Authorize(OpUpdateUser, actor); err != nil {
		return nil, err
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyIdentityFields(user, in.Username, in.Email, in.FullName); err != nil {
		return nil, err
	}
	if in.IsVerified != nil {
		user.IsVerified = *in.IsVerified
	}
	user.UpdatedAt = s.now()
	if err := s.Store.UpdateUser(ctx, user); err != nil {
		return nil, s.userWriteError(err)
	}
	return user, nil
}

// ChangeRole never applies to the acting Admin's own account.
func (s *UserService) ChangeRole(ctx context.Context, actor *Identity, id, rawRole string) (*models.User, error) {
	if err := Authorize(OpChangeRole, actor); err != nil {
		return nil, err
	}
	role, ok := models.ParseRole(rawRole)
	if !ok {
		return nil, ErrValidation("Invalid role")
	}
	if actor.UserID == id {
		return nil, ErrForbidden("You cannot change your own role")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Role = role
	user.UpdatedAt = s.now()
	if err := s.Store.UpdateUser(ctx, user); err != nil {
		return nil, s.userWriteError(err)
	}
	loggerOrNop(s.Log).Info("user role changed",
		zap.String("userId", id), zap.String("role", string(role)), zap.String("by", actor.UserID))
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, actor *Identity, id string) error {
	if err := Authorize(OpDeleteUser, actor); err != nil {
		return err
	}
	if actor.UserID == id {
		return ErrForbidden("You cannot delete your own account")
	}
	if err := s.Store.DeleteUser(ctx, id); err != nil {
		return s.userWriteError(err)
	}
	return nil
}
