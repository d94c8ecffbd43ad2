package services

import (
	"context"

	"riskscreen-backend/internal/models"

	"go.uber.org/zap"
)

type RiskNotice struct {
	Subject        string
	RiskLevel      models.RiskLevel
	Score          float64
	Recommendation Recommendation
}

// Notifier delivers outbound messages. Failures never undo persisted state.
type Notifier interface {
	PreSurveyInvitation(ctx context.Context, to string, course models.Course, link string) error
	PostSurveyInvitation(ctx context.Context, to string, course models.Course, link string) error
	RiskResult(ctx context.Context, to string, notice RiskNotice) error
	AppointmentStatusChanged(ctx context.Context, to string, appointment models.Appointment) error
}

// AlertPublisher receives high-risk evaluations for live staff dashboards.
type AlertPublisher interface {
	PublishRiskAlert(alert RiskAlert)
}

type nopNotifier struct{}

func (nopNotifier) PreSurveyInvitation(context.Context, string, models.Course, string) error {
	return nil
}

func (nopNotifier) PostSurveyInvitation(context.Context, string, models.Course, string) error {
	return nil
}

func (nopNotifier) RiskResult(context.Context, string, RiskNotice) error { return nil }

func (nopNotifier) AppointmentStatusChanged(context.Context, string, models.Appointment) error {
	return nil
}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

func loggerOrNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

func logNotifyFailure(log *zap.Logger, kind string, err error) {
	if err != nil {
		log.Warn("notification failed", zap.String("kind", kind), zap.Error(err))
	}
}
