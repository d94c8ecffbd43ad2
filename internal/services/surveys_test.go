package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"riskscreen-backend/internal/models"
	"riskscreen-backend/internal/store"
)

// tickingClock advances one minute on every call so surveys get distinct timestamps.
func tickingClock() func() time.Time {
	current := testNow
	return func() time.Time {
		current = current.Add(time.Minute)
		return current
	}
}

func newSurveyService(st *store.Memory, alerts *recordingAlerts) *SurveyService {
	svc := &SurveyService{Surveys: st, Users: st, Now: tickingClock()}
	if alerts != nil {
		svc.Alerts = alerts
	}
	return svc
}

func TestSubmitPublicSurvey(t *testing.T) {
	st := store.NewMemory()
	alerts := &recordingAlerts{}
	svc := newSurveyService(st, alerts)
	ctx := context.Background()

	bad := "nope"
	_, err := svc.SubmitPublic(ctx, "CRAFFT", answersOf(0, 6), &bad)
	expectKind(t, err, KindValidation)
	_, err = svc.SubmitPublic(ctx, "AUDIT", answersOf(0, 6), nil)
	expectKind(t, err, KindValidation)

	email := "  Visitor@Example.org "
	result, err := svc.SubmitPublic(ctx, "crafft", answersOf(1, 6), &email)
	if err != nil {
		t.Fatalf("SubmitPublic: %v", err)
	}
	survey := result.Survey
	if survey.Phase != models.PhasePublic || survey.UserID != nil || survey.CourseID != nil {
		t.Fatalf("public survey has unexpected linkage %+v", survey)
	}
	if survey.Email == nil || *survey.Email != "visitor@example.org" {
		t.Fatalf("email = %v, want normalized address", survey.Email)
	}
	if survey.RiskLevel != models.RiskHigh || alerts.count() != 1 {
		t.Fatalf("expected a high-risk alert, level %s alerts %d", survey.RiskLevel, alerts.count())
	}
	if got := result.NextActions[0].Link; got != "/appointments" {
		t.Fatalf("consultation link = %q, want /appointments", got)
	}
}

func TestSubmitAuthenticatedSurvey(t *testing.T) {
	st := store.NewMemory()
	svc := newSurveyService(st, nil)
	member := seedUser(t, st, models.RoleMember)
	ctx := context.Background()

	_, err := svc.Submit(ctx, nil, "ASSIST", answersOf(0, 10))
	expectKind(t, err, KindUnauthenticated)
	_, err = svc.Submit(ctx, member, "ASSIST", answersOf(5, 10))
	expectKind(t, err, KindValidation)

	for i := 0; i < 2; i++ {
		result, err := svc.Submit(ctx, member, "ASSIST", answersOf(0, 10))
		if err != nil {
			t.Fatalf("Submit #%d: %v", i, err)
		}
		if result.Survey.UserID == nil || *result.Survey.UserID != member.UserID {
			t.Fatalf("survey not owned by submitter: %+v", result.Survey)
		}
	}
	mine, err := svc.Mine(ctx, member)
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if len(mine) != 2 || !mine[0].CreatedAt.After(mine[1].CreatedAt) {
		t.Fatalf("expected two surveys newest first, got %+v", mine)
	}
}

func TestGetSurveyOwnership(t *testing.T) {
	st := store.NewMemory()
	svc := newSurveyService(st, nil)
	owner := seedUser(t, st, models.RoleMember)
	stranger := seedUser(t, st, models.RoleMember)
	manager := seedUser(t, st, models.RoleManager)
	ctx := context.Background()

	result, err := svc.Submit(ctx, owner, "CRAFFT", answersOf(0, 6))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	id := result.Survey.ID
	if _, err := svc.Get(ctx, owner, id); err != nil {
		t.Fatalf("owner Get: %v", err)
	}
	if _, err := svc.Get(ctx, manager, id); err != nil {
		t.Fatalf("manager Get: %v", err)
	}
	_, err = svc.Get(ctx, stranger, id)
	expectKind(t, err, KindForbidden)
	_, err = svc.Get(ctx, owner, "missing")
	expectKind(t, err, KindNotFound)
}

func TestUpdateSurveyRejectsImmutableFields(t *testing.T) {
	st := store.NewMemory()
	svc := newSurveyService(st, nil)
	manager := seedUser(t, st, models.RoleManager)
	member := seedUser(t, st, models.RoleMember)
	ctx := context.Background()
	result, err := svc.Submit(ctx, member, "CRAFFT", answersOf(0, 6))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	id := result.Survey.ID

	for _, field := range []string{"score", "riskLevel", "answers", "type", "userId"} {
		_, err := svc.Update(ctx, manager, id, SurveyPatch{Fields: []string{field}})
		expectKind(t, err, KindValidation)
	}
	_, err = svc.Update(ctx, seedUser(t, st, models.RoleStaff), id, SurveyPatch{})
	expectKind(t, err, KindForbidden)

	phase := "post"
	email := "after@example.org"
	updated, err := svc.Update(ctx, manager, id, SurveyPatch{Phase: &phase, Email: &email, Fields: []string{"phase", "email"}})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Phase != models.PhasePost || updated.Score != 0 || updated.Email == nil || *updated.Email != email {
		t.Fatalf("unexpected update result %+v", updated)
	}

	public := "public"
	_, err = svc.Update(ctx, manager, id, SurveyPatch{Phase: &public, Fields: []string{"phase"}})
	expectKind(t, err, KindValidation)

	expectKind(t, svc.Delete(ctx, member, id), KindForbidden)
	if err := svc.Delete(ctx, manager, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	expectKind(t, svc.Delete(ctx, manager, id), KindNotFound)
}

func TestUpdatePublicSurveyKeepsPhase(t *testing.T) {
	st := store.NewMemory()
	svc := newSurveyService(st, nil)
	manager := seedUser(t, st, models.RoleManager)
	ctx := context.Background()
	result, err := svc.SubmitPublic(ctx, "CRAFFT", answersOf(0, 6), nil)
	if err != nil {
		t.Fatalf("SubmitPublic: %v", err)
	}
	id := result.Survey.ID

	post := "post"
	_, err = svc.Update(ctx, manager, id, SurveyPatch{Phase: &post, Fields: []string{"phase"}})
	expectKind(t, err, KindValidation)

	same := "public"
	email := "later@example.org"
	updated, err := svc.Update(ctx, manager, id, SurveyPatch{Phase: &same, Email: &email, Fields: []string{"phase", "email"}})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Phase != models.PhasePublic || updated.Email == nil || *updated.Email != email {
		t.Fatalf("unexpected update result %+v", updated)
	}
}

func TestCourseSurveyStaysConsistentWithRegistration(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, f.member, f.course.ID); err != nil {
		t.Fatalf("Register: %v", err)
	}
	result, err := f.svc.SubmitPreSurvey(ctx, f.member, f.course.ID, answersOf(0, 6))
	if err != nil {
		t.Fatalf("SubmitPreSurvey: %v", err)
	}
	id := result.Survey.ID

	svc := newSurveyService(f.st, nil)
	manager := seedUser(t, f.st, models.RoleManager)
	for _, raw := range []string{"public", "post"} {
		phase := raw
		_, err := svc.Update(ctx, manager, id, SurveyPatch{Phase: &phase, Fields: []string{"phase"}})
		expectKind(t, err, KindValidation)
	}
	expectKind(t, svc.Delete(ctx, manager, id), KindConflict)

	reg, err := f.st.GetRegistration(ctx, f.member.UserID, f.course.ID)
	if err != nil {
		t.Fatalf("GetRegistration: %v", err)
	}
	pre, _, err := f.st.ListSurveys(ctx, store.SurveyFilter{UserID: f.member.UserID, CourseID: f.course.ID, Phase: models.PhasePre})
	if err != nil {
		t.Fatalf("ListSurveys: %v", err)
	}
	if !reg.PreSurveyDone || len(pre) != 1 {
		t.Fatalf("preSurveyDone=%v with %d pre surveys", reg.PreSurveyDone, len(pre))
	}
}

func TestSubmitPublicSendsRiskResult(t *testing.T) {
	st := store.NewMemory()
	notifier := &recordingNotifier{}
	svc := newSurveyService(st, nil)
	svc.Notifier = notifier
	ctx := context.Background()

	if _, err := svc.SubmitPublic(ctx, "ASSIST", answersOf(3, 10), nil); err != nil {
		t.Fatalf("SubmitPublic without email: %v", err)
	}
	if kinds := notifier.kinds(); len(kinds) != 0 {
		t.Fatalf("anonymous submit sent %v", kinds)
	}

	email := "visitor@example.org"
	if _, err := svc.SubmitPublic(ctx, "ASSIST", answersOf(3, 10), &email); err != nil {
		t.Fatalf("SubmitPublic: %v", err)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].To != email || notifier.sent[0].Risk != models.RiskHigh {
		t.Fatalf("unexpected notices %+v", notifier.sent)
	}

	notifier.fail = errBoom
	if _, err := svc.SubmitPublic(ctx, "ASSIST", answersOf(0, 10), &email); err != nil {
		t.Fatalf("notifier failure must not fail the submit: %v", err)
	}
}

func TestListSurveysPagingAndStats(t *testing.T) {
	st := store.NewMemory()
	svc := newSurveyService(st, nil)
	admin := seedUser(t, st, models.RoleAdmin)
	ctx := context.Background()

	levels := []float64{0, 0, 0, 1, 1}
	for _, value := range levels {
		if _, err := svc.SubmitPublic(ctx, "CRAFFT", answersOf(value, 6), nil); err != nil {
			t.Fatalf("SubmitPublic: %v", err)
		}
	}
	if _, err := svc.SubmitPublic(ctx, "ASSIST", answersOf(2, 10), nil); err != nil {
		t.Fatalf("SubmitPublic: %v", err)
	}

	page, err := svc.List(ctx, admin, SurveyQuery{Page: 2, Limit: 4})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 6 || page.Page != 2 || page.Limit != 4 || len(page.Surveys) != 2 {
		t.Fatalf("unexpected page %+v", page)
	}
	defaults, err := svc.List(ctx, admin, SurveyQuery{Limit: 1000})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if defaults.Page != 1 || defaults.Limit != maxSurveyPageSize {
		t.Fatalf("limit not clamped: %+v", defaults)
	}
	high, err := svc.List(ctx, admin, SurveyQuery{RiskLevel: "high", Type: "crafft"})
	if err != nil {
		t.Fatalf("List high: %v", err)
	}
	if high.Total != 2 {
		t.Fatalf("high risk total = %d, want 2", high.Total)
	}
	_, err = svc.List(ctx, admin, SurveyQuery{From: "yesterday"})
	expectKind(t, err, KindValidation)
	_, err = svc.List(ctx, seedUser(t, st, models.RoleConsultant), SurveyQuery{})
	expectKind(t, err, KindForbidden)

	stats, err := svc.RiskStats(ctx, admin)
	if err != nil {
		t.Fatalf("RiskStats: %v", err)
	}
	if stats.Low != 3 || stats.Moderate != 1 || stats.High != 2 || stats.Total != 6 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestExportCSV(t *testing.T) {
	st := store.NewMemory()
	svc := newSurveyService(st, nil)
	admin := seedUser(t, st, models.RoleAdmin)
	member := seedUser(t, st, models.RoleMember)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, member, "CRAFFT", answersOf(0, 6)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	email := "anon@example.org"
	if _, err := svc.SubmitPublic(ctx, "ASSIST", answersOf(1, 10), &email); err != nil {
		t.Fatalf("SubmitPublic: %v", err)
	}

	var buf bytes.Buffer
	if err := svc.ExportCSV(ctx, admin, SurveyQuery{}, &buf); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header plus 2", len(rows))
	}
	header := "id,username,fullName,email,type,phase,score,riskLevel,courseId,programId,createdAt"
	if got := strings.Join(rows[0], ","); got != header {
		t.Fatalf("header = %q", got)
	}
	// newest first: the public survey was submitted last
	if rows[1][3] != email || rows[1][4] != "ASSIST" || rows[1][6] != "10" || rows[1][1] != "" {
		t.Fatalf("unexpected public row %v", rows[1])
	}
	user, err := st.GetUser(ctx, member.UserID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if rows[2][1] != user.Username || rows[2][3] != user.Email || rows[2][5] != "pre" {
		t.Fatalf("unexpected member row %v", rows[2])
	}

	expectKind(t, svc.ExportCSV(ctx, member, SurveyQuery{}, &buf), KindForbidden)
}
