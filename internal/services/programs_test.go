package services

import (
	"context"
	"testing"
	"time"

	"riskscreen-backend/internal/models"
	"riskscreen-backend/internal/store"
)

type programFixture struct {
	st       *store.Memory
	svc      *ProgramService
	notifier *recordingNotifier
	alerts   *recordingAlerts
	manager  *Identity
	member   *Identity
	program  *models.Program
}

func newProgramFixture(t *testing.T) *programFixture {
	t.Helper()
	st := store.NewMemory()
	f := &programFixture{
		st:       st,
		notifier: &recordingNotifier{},
		alerts:   &recordingAlerts{},
		manager:  seedUser(t, st, models.RoleManager),
		member:   seedUser(t, st, models.RoleMember),
	}
	f.svc = &ProgramService{
		Programs: st,
		Surveys:  st,
		Users:    st,
		Notifier: f.notifier,
		Alerts:   f.alerts,
		Now:      fixedNow,
	}
	pre, post := "ASSIST", "CRAFFT"
	program, err := f.svc.Create(context.Background(), f.manager, ProgramInput{
		Title:      "Community day",
		StartDate:  testNow,
		EndDate:    testNow.Add(48 * time.Hour),
		PreSurvey:  &pre,
		PostSurvey: &post,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.program = program
	return f
}

func TestCreateProgramValidation(t *testing.T) {
	f := newProgramFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.member, ProgramInput{Title: "x", StartDate: testNow, EndDate: testNow})
	expectKind(t, err, KindForbidden)
	_, err = f.svc.Create(ctx, f.manager, ProgramInput{Title: "x", StartDate: testNow, EndDate: testNow.Add(-time.Hour)})
	expectKind(t, err, KindValidation)
	_, err = f.svc.Create(ctx, f.manager, ProgramInput{Title: "x"})
	expectKind(t, err, KindValidation)
	bad := "AUDIT"
	_, err = f.svc.Create(ctx, f.manager, ProgramInput{Title: "x", StartDate: testNow, EndDate: testNow, PreSurvey: &bad})
	expectKind(t, err, KindValidation)
}

func TestProgramRegistrationConflict(t *testing.T) {
	f := newProgramFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, f.member, f.program.ID); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := f.svc.Register(ctx, f.member, f.program.ID)
	expectKind(t, err, KindConflict)
	_, err = f.svc.Register(ctx, f.member, "missing")
	expectKind(t, err, KindNotFound)
}

func TestProgramSurveyGates(t *testing.T) {
	f := newProgramFixture(t)
	ctx := context.Background()

	_, err := f.svc.SubmitSurvey(ctx, f.member, "missing", "pre", "ASSIST", answersOf(0, 10))
	expectKind(t, err, KindNotFound)
	_, err = f.svc.SubmitSurvey(ctx, f.member, f.program.ID, "public", "ASSIST", answersOf(0, 10))
	expectKind(t, err, KindValidation)
	_, err = f.svc.SubmitSurvey(ctx, f.member, f.program.ID, "pre", "AUDIT", answersOf(0, 10))
	expectKind(t, err, KindValidation)
	_, err = f.svc.SubmitSurvey(ctx, f.member, f.program.ID, "pre", "ASSIST", answersOf(0, 10))
	expectKind(t, err, KindForbidden)

	if _, err := f.svc.Register(ctx, f.member, f.program.ID); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err = f.svc.SubmitSurvey(ctx, f.member, f.program.ID, "pre", "CRAFFT", answersOf(0, 6))
	expectKind(t, err, KindValidation)

	result, err := f.svc.SubmitSurvey(ctx, f.member, f.program.ID, "pre", "ASSIST", answersOf(2, 10))
	if err != nil {
		t.Fatalf("SubmitSurvey: %v", err)
	}
	if result.Survey.RiskLevel != models.RiskModerate || result.Survey.ProgramID == nil {
		t.Fatalf("unexpected survey %+v", result.Survey)
	}
	if got := result.NextActions; len(got) != 2 || got[1].Link != "/programs/"+f.program.ID || result.Recommendation == "" {
		t.Fatalf("unexpected recommendation %+v", result)
	}
	if kinds := f.notifier.kinds(); len(kinds) != 1 || kinds[0] != "risk" {
		t.Fatalf("notifications = %v, want [risk]", kinds)
	}

	_, err = f.svc.SubmitSurvey(ctx, f.member, f.program.ID, "pre", "ASSIST", answersOf(0, 10))
	expectKind(t, err, KindConflict)

	post, err := f.svc.SubmitSurvey(ctx, f.member, f.program.ID, "post", "CRAFFT", answersOf(1, 6))
	if err != nil {
		t.Fatalf("SubmitSurvey post: %v", err)
	}
	if post.Survey.RiskLevel != models.RiskHigh || f.alerts.count() != 1 {
		t.Fatalf("expected one high-risk alert, got level %s alerts %d", post.Survey.RiskLevel, f.alerts.count())
	}
}

func TestProgramSurveysAndStats(t *testing.T) {
	f := newProgramFixture(t)
	ctx := context.Background()
	other := seedUser(t, f.st, models.RoleStaff)
	for _, actor := range []*Identity{f.member, other} {
		if _, err := f.svc.Register(ctx, actor, f.program.ID); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	if _, err := f.svc.SubmitSurvey(ctx, f.member, f.program.ID, "pre", "ASSIST", answersOf(1, 10)); err != nil {
		t.Fatalf("SubmitSurvey: %v", err)
	}
	if _, err := f.svc.SubmitSurvey(ctx, other, f.program.ID, "pre", "ASSIST", answersOf(2, 10)); err != nil {
		t.Fatalf("SubmitSurvey: %v", err)
	}

	_, err := f.svc.Stats(ctx, f.member, f.program.ID)
	expectKind(t, err, KindForbidden)

	stats, err := f.svc.Stats(ctx, f.manager, f.program.ID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Pre.Count != 2 || stats.Pre.AverageScore != 15 || stats.Post.Count != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	participants, err := f.svc.Participants(ctx, f.manager, f.program.ID)
	if err != nil {
		t.Fatalf("Participants: %v", err)
	}
	if len(participants) != 2 {
		t.Fatalf("participants = %d, want 2", len(participants))
	}

	_, err = f.svc.SurveysByPhase(ctx, f.member, f.program.ID)
	expectKind(t, err, KindForbidden)
	grouped, err := f.svc.SurveysByPhase(ctx, f.manager, f.program.ID)
	if err != nil {
		t.Fatalf("SurveysByPhase: %v", err)
	}
	if len(grouped.Pre) != 2 || len(grouped.Post) != 0 {
		t.Fatalf("grouped surveys pre=%d post=%d", len(grouped.Pre), len(grouped.Post))
	}

	surveys := &SurveyService{Surveys: f.st, Users: f.st, Now: fixedNow}
	post := "post"
	_, err = surveys.Update(ctx, f.manager, grouped.Pre[0].ID, SurveyPatch{Phase: &post, Fields: []string{"phase"}})
	expectKind(t, err, KindValidation)
}
