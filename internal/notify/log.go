package notify

import (
	"context"

	"riskscreen-backend/internal/models"
	"riskscreen-backend/internal/services"

	"go.uber.org/zap"
)

// Log records notifications instead of sending them; used when no SMTP relay is configured.
type Log struct {
	log        *zap.Logger
	backendURL string
}

func NewLog(log *zap.Logger, backendURL string) *Log {
	return &Log{log: log, backendURL: backendURL}
}

func (l *Log) record(to string, msg message, err error) error {
	if err != nil {
		return err
	}
	l.log.Info("notification", zap.String("to", to), zap.String("subject", msg.Subject), zap.String("body", msg.Body))
	return nil
}

func (l *Log) PreSurveyInvitation(_ context.Context, to string, course models.Course, link string) error {
	msg, err := preSurveyMessage(course, link)
	return l.record(to, msg, err)
}

func (l *Log) PostSurveyInvitation(_ context.Context, to string, course models.Course, link string) error {
	msg, err := postSurveyMessage(course, link)
	return l.record(to, msg, err)
}

func (l *Log) RiskResult(_ context.Context, to string, notice services.RiskNotice) error {
	msg, err := riskMessage(l.backendURL, notice)
	return l.record(to, msg, err)
}

func (l *Log) AppointmentStatusChanged(_ context.Context, to string, appointment models.Appointment) error {
	msg, err := appointmentMessage(appointment)
	return l.record(to, msg, err)
}

var (
	_ services.Notifier = (*Log)(nil)
	_ services.Notifier = (*SMTP)(nil)
)
