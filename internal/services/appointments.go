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

type AppointmentService struct {
	Appointments AppointmentStore
	Users        UserReader
	Notifier     Notifier
	Log          *zap.Logger
	Now          func() time.Time
}

func (s *AppointmentService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// ParseScheduledAt accepts RFC 3339 timestamps with or without fractional seconds.
func ParseScheduledAt(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, ErrValidation("consultantId and scheduledAt are required")
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, ErrValidation("scheduledAt must be an RFC 3339 timestamp")
	}
	return parsed.UTC(), nil
}

func (s *AppointmentService) Create(ctx context.Context, actor *Identity, consultantID, scheduledAt string) (*models.Appointment, error) {
	if err := Authorize(OpBookAppointment, actor); err != nil {
		return nil, err
	}
	consultantID = strings.TrimSpace(consultantID)
	if consultantID == "" {
		return nil, ErrValidation("consultantId and scheduledAt are required")
	}
	at, err := ParseScheduledAt(scheduledAt)
	if err != nil {
		return nil, err
	}
	consultant, err := s.Users.GetUser(ctx, consultantID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidReference("Consultant not found")
	}
	if err != nil {
		return nil, WrapError(err, "load consultant")
	}
	if consultant.Role != models.RoleConsultant {
		return nil, ErrInvalidReference("Consultant not found")
	}
	now := s.now()
	appointment := &models.Appointment{
		ID:           uuid.NewString(),
		UserID:       actor.UserID,
		ConsultantID: consultant.ID,
		ScheduledAt:  at,
		Status:       models.AppointmentPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Appointments.InsertAppointment(ctx, appointment); err != nil {
		return nil, WrapError(err, "insert appointment")
	}
	return appointment, nil
}

func (s *AppointmentService) get(ctx context.Context, id string) (*models.Appointment, error) {
	appointment, err := s.Appointments.GetAppointment(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound("Appointment not found")
	}
	if err != nil {
		return nil, WrapError(err, "load appointment")
	}
	return appointment, nil
}

// UpdateStatus moves an appointment between states; confirmed and cancelled are absorbing.
func (s *AppointmentService) UpdateStatus(ctx context.Context, actor *Identity, id, rawStatus string) (*models.Appointment, error) {
	if actor == nil {
		return nil, ErrUnauthenticated("Authentication failed")
	}
	status, ok := models.ParseAppointmentStatus(rawStatus)
	if !ok {
		return nil, ErrValidation("Status must be pending, confirmed or cancelled")
	}
	appointment, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.UserID != appointment.ConsultantID {
		if err := Authorize(OpManageAppointments, actor); err != nil {
			return nil, err
		}
	}
	if appointment.Status == status {
		return appointment, nil
	}
	if appointment.Status.Terminal() {
		return nil, ErrConflict("Appointment is already " + string(appointment.Status))
	}
	now := s.now()
	if err := s.Appointments.TransitionAppointment(ctx, appointment.ID, appointment.Status, status, now); err != nil {
		switch {
		case errors.Is(err, store.ErrStateChanged):
			return nil, ErrConflict("Appointment status changed concurrently")
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrNotFound("Appointment not found")
		}
		return nil, WrapError(err, "update appointment status")
	}
	appointment.Status = status
	appointment.UpdatedAt = now
	s.notifyRequester(ctx, *appointment)
	return appointment, nil
}

// Cancel is idempotent and allowed for the requester, the consultant and managers.
func (s *AppointmentService) Cancel(ctx context.Context, actor *Identity, id string) (*models.Appointment, error) {
	if actor == nil {
		return nil, ErrUnauthenticated("Authentication failed")
	}
	appointment, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.UserID != appointment.UserID && actor.UserID != appointment.ConsultantID {
		if err := Authorize(OpManageAppointments, actor); err != nil {
			return nil, err
		}
	}
	wasCancelled := appointment.Status == models.AppointmentCancelled
	now := s.now()
	if err := s.Appointments.SetAppointmentStatus(ctx, appointment.ID, models.AppointmentCancelled, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound("Appointment not found")
		}
		return nil, WrapError(err, "cancel appointment")
	}
	appointment.Status = models.AppointmentCancelled
	appointment.UpdatedAt = now
	if !wasCancelled && actor.UserID != appointment.UserID {
		s.notifyRequester(ctx, *appointment)
	}
	return appointment, nil
}

func (s *AppointmentService) notifyRequester(ctx context.Context, appointment models.Appointment) {
	if s.Users == nil {
		return
	}
	log := loggerOrNop(s.Log)
	user, err := s.Users.GetUser(ctx, appointment.UserID)
	if err != nil {
		log.Warn("notification recipient lookup failed", zap.String("userId", appointment.UserID), zap.Error(err))
		return
	}
	logNotifyFailure(log, "appointment_status",
		notifierOrNop(s.Notifier).AppointmentStatusChanged(ctx, user.Email, appointment))
}

func (s *AppointmentService) Mine(ctx context.Context, actor *Identity) ([]models.Appointment, error) {
	if err := Authorize(OpBookAppointment, actor); err != nil {
		return nil, err
	}
	return s.list(ctx, store.AppointmentFilter{UserID: actor.UserID})
}

func (s *AppointmentService) ForConsultant(ctx context.Context, actor *Identity) ([]models.Appointment, error) {
	if err := Authorize(OpConsultantAppointments, actor); err != nil {
		return nil, err
	}
	return s.list(ctx, store.AppointmentFilter{ConsultantID: actor.UserID})
}

func (s *AppointmentService) All(ctx context.Context, actor *Identity, rawStatus string) ([]models.Appointment, error) {
	if err := Authorize(OpListAppointments, actor); err != nil {
		return nil, err
	}
	filter := store.AppointmentFilter{}
	if strings.TrimSpace(rawStatus) != "" {
		status, ok := models.ParseAppointmentStatus(rawStatus)
		if !ok {
			return nil, ErrValidation("Invalid status")
		}
		filter.Status = status
	}
	return s.list(ctx, filter)
}

func (s *AppointmentService) list(ctx context.Context, filter store.AppointmentFilter) ([]models.Appointment, error) {
	items, err := s.Appointments.ListAppointments(ctx, filter)
	if err != nil {
		return nil, WrapError(err, "list appointments")
	}
	return items, nil
}
