package notify

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"riskscreen-backend/internal/models"
	"riskscreen-backend/internal/services"

	"go.uber.org/zap"
)

type SMTPConfig struct {
	Host       string
	Port       int
	User       string
	Pass       string
	From       string
	BackendURL string
}

// SMTP delivers plain-text mail through a single relay.
type SMTP struct {
	cfg  SMTPConfig
	log  *zap.Logger
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTP(cfg SMTPConfig, log *zap.Logger) *SMTP {
	return &SMTP{cfg: cfg, log: log, send: smtp.SendMail}
}

func (s *SMTP) deliver(ctx context.Context, to string, msg message, err error) error {
	if err != nil {
		return fmt.Errorf("render %q: %w", msg.Subject, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := s.send(addr, auth, s.cfg.From, []string{to}, buildMessage(s.cfg.From, to, msg, time.Now())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	s.log.Info("email sent", zap.String("to", to), zap.String("subject", msg.Subject))
	return nil
}

func buildMessage(from, to string, msg message, at time.Time) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", at.UTC().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	buf.WriteString(msg.Body)
	return buf.Bytes()
}

func (s *SMTP) PreSurveyInvitation(ctx context.Context, to string, course models.Course, link string) error {
	msg, err := preSurveyMessage(course, link)
	return s.deliver(ctx, to, msg, err)
}

func (s *SMTP) PostSurveyInvitation(ctx context.Context, to string, course models.Course, link string) error {
	msg, err := postSurveyMessage(course, link)
	return s.deliver(ctx, to, msg, err)
}

func (s *SMTP) RiskResult(ctx context.Context, to string, notice services.RiskNotice) error {
	msg, err := riskMessage(s.cfg.BackendURL, notice)
	return s.deliver(ctx, to, msg, err)
}

func (s *SMTP) AppointmentStatusChanged(ctx context.Context, to string, appointment models.Appointment) error {
	msg, err := appointmentMessage(appointment)
	return s.deliver(ctx, to, msg, err)
}
