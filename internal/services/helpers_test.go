package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"riskscreen-backend/internal/models"
	"riskscreen-backend/internal/store"

	"github.com/google/uuid"
)

var testNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

type sentNotice struct {
	Kind string
	To   string
	Link string
	Risk models.RiskLevel
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotice
	fail error
}

func (n *recordingNotifier) record(notice sentNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notice)
	return n.fail
}

func (n *recordingNotifier) PreSurveyInvitation(_ context.Context, to string, _ models.Course, link string) error {
	return n.record(sentNotice{Kind: "pre", To: to, Link: link})
}

func (n *recordingNotifier) PostSurveyInvitation(_ context.Context, to string, _ models.Course, link string) error {
	return n.record(sentNotice{Kind: "post", To: to, Link: link})
}

func (n *recordingNotifier) RiskResult(_ context.Context, to string, notice RiskNotice) error {
	return n.record(sentNotice{Kind: "risk", To: to, Risk: notice.RiskLevel})
}

func (n *recordingNotifier) AppointmentStatusChanged(_ context.Context, to string, a models.Appointment) error {
	return n.record(sentNotice{Kind: "appointment:" + string(a.Status), To: to})
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Kind)
	}
	return out
}

type recordingAlerts struct {
	mu     sync.Mutex
	alerts []RiskAlert
}

func (r *recordingAlerts) PublishRiskAlert(alert RiskAlert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
}

func (r *recordingAlerts) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

func seedUser(t *testing.T, st *store.Memory, role models.Role) *Identity {
	t.Helper()
	id := uuid.NewString()
	user := &models.User{
		ID:        id,
		Username:  "user-" + id[:8],
		Email:     "user-" + id[:8] + "@example.org",
		Role:      role,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
	if _, err := st.InsertUser(context.Background(), user, false); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &Identity{UserID: id, Role: role}
}

func expectKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if !IsKind(err, kind) {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
}

func answersOf(value float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = value
	}
	return out
}

var errBoom = errors.New("boom")
