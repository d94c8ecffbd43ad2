package services

import (
	"context"
	"strings"
	"testing"

	"riskscreen-backend/internal/models"
	"riskscreen-backend/internal/store"
)

type enrollmentFixture struct {
	st       *store.Memory
	svc      *EnrollmentService
	notifier *recordingNotifier
	alerts   *recordingAlerts
	staff    *Identity
	member   *Identity
	course   *models.Course
}

func newEnrollmentFixture(t *testing.T) *enrollmentFixture {
	t.Helper()
	st := store.NewMemory()
	f := &enrollmentFixture{
		st:       st,
		notifier: &recordingNotifier{},
		alerts:   &recordingAlerts{},
		staff:    seedUser(t, st, models.RoleStaff),
		member:   seedUser(t, st, models.RoleMember),
	}
	f.svc = &EnrollmentService{
		Courses:    st,
		Users:      st,
		Notifier:   f.notifier,
		Alerts:     f.alerts,
		Now:        fixedNow,
		BackendURL: "http://api.test/",
	}
	course, err := f.svc.CreateCourse(context.Background(), f.staff, CourseInput{
		Title:      "Saying no",
		AgeGroup:   "student",
		SurveyType: "crafft",
	})
	if err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	f.course = course
	return f
}

func TestCreateCourseValidation(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateCourse(ctx, f.member, CourseInput{Title: "x", AgeGroup: "student", SurveyType: "ASSIST"})
	expectKind(t, err, KindForbidden)
	_, err = f.svc.CreateCourse(ctx, nil, CourseInput{Title: "x", AgeGroup: "student", SurveyType: "ASSIST"})
	expectKind(t, err, KindUnauthenticated)

	tests := []struct {
		name string
		in   CourseInput
	}{
		{"blank title", CourseInput{Title: "  ", AgeGroup: "student", SurveyType: "ASSIST"}},
		{"bad age group", CourseInput{Title: "x", AgeGroup: "toddler", SurveyType: "ASSIST"}},
		{"bad survey type", CourseInput{Title: "x", AgeGroup: "parent", SurveyType: "AUDIT"}},
		{"negative price", CourseInput{Title: "x", AgeGroup: "teacher", SurveyType: "ASSIST", Price: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateCourse(ctx, f.staff, tt.in)
			expectKind(t, err, KindValidation)
		})
	}
}

func TestRegisterSendsPreSurveyInvitation(t *testing.T) {
	f := newEnrollmentFixture(t)
	result, err := f.svc.Register(context.Background(), f.member, f.course.ID)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	want := "http://api.test/api/courses/" + f.course.ID + "/survey/pre?type=CRAFFT"
	if result.SurveyLink != want {
		t.Fatalf("survey link = %q, want %q", result.SurveyLink, want)
	}
	if result.Registration.PreSurveyDone || result.Registration.Completed {
		t.Fatalf("fresh registration has flags set: %+v", result.Registration)
	}
	if kinds := f.notifier.kinds(); len(kinds) != 1 || kinds[0] != "pre" {
		t.Fatalf("notifications = %v, want [pre]", kinds)
	}

	_, err = f.svc.Register(context.Background(), f.member, f.course.ID)
	expectKind(t, err, KindConflict)
	_, err = f.svc.Register(context.Background(), f.member, "missing")
	expectKind(t, err, KindNotFound)
}

func TestRegisterSucceedsWhenNotifierFails(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.notifier.fail = errBoom
	if _, err := f.svc.Register(context.Background(), f.member, f.course.ID); err != nil {
		t.Fatalf("Register with failing notifier: %v", err)
	}
	if _, err := f.st.GetRegistration(context.Background(), f.member.UserID, f.course.ID); err != nil {
		t.Fatalf("registration not persisted: %v", err)
	}
}

func TestGuestCannotRegisterForCourse(t *testing.T) {
	f := newEnrollmentFixture(t)
	guest := seedUser(t, f.st, models.RoleGuest)
	_, err := f.svc.Register(context.Background(), guest, f.course.ID)
	expectKind(t, err, KindForbidden)
}

func TestPreSurveyFlow(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()

	_, err := f.svc.SubmitPreSurvey(ctx, f.member, f.course.ID, answersOf(0, 6))
	expectKind(t, err, KindForbidden)

	if _, err := f.svc.Register(ctx, f.member, f.course.ID); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err = f.svc.SubmitPreSurvey(ctx, f.member, f.course.ID, answersOf(0, 5))
	expectKind(t, err, KindValidation)

	result, err := f.svc.SubmitPreSurvey(ctx, f.member, f.course.ID, []float64{1, 1, 1, 1, 0, 0})
	if err != nil {
		t.Fatalf("SubmitPreSurvey: %v", err)
	}
	if result.Survey.RiskLevel != models.RiskHigh || result.Survey.Score != 4 {
		t.Fatalf("unexpected evaluation %+v", result.Survey)
	}
	if result.Survey.Phase != models.PhasePre || result.Survey.CourseID == nil || *result.Survey.CourseID != f.course.ID {
		t.Fatalf("survey not linked to course pre phase: %+v", result.Survey)
	}
	if len(result.NextActions) != 1 || result.NextActions[0].Action != ActionBookConsultation {
		t.Fatalf("unexpected recommendation %+v", result)
	}
	if f.alerts.count() != 1 {
		t.Fatalf("high-risk alert count = %d, want 1", f.alerts.count())
	}
	kinds := f.notifier.kinds()
	if kinds[len(kinds)-1] != "risk" {
		t.Fatalf("expected risk result notification, got %v", kinds)
	}

	reg, err := f.st.GetRegistration(ctx, f.member.UserID, f.course.ID)
	if err != nil {
		t.Fatalf("GetRegistration: %v", err)
	}
	if !reg.PreSurveyDone || reg.PreRiskLevel == nil || *reg.PreRiskLevel != models.RiskHigh {
		t.Fatalf("registration not updated: %+v", reg)
	}

	_, err = f.svc.SubmitPreSurvey(ctx, f.member, f.course.ID, answersOf(0, 6))
	expectKind(t, err, KindConflict)
}

func TestPostSurveyCompletionOption(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()
	f.svc.RequireCompletionForPostSurvey = true
	if _, err := f.svc.Register(ctx, f.member, f.course.ID); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := f.svc.SubmitPostSurvey(ctx, f.member, f.course.ID, answersOf(0, 6))
	expectKind(t, err, KindForbidden)

	done, err := f.svc.Complete(ctx, f.member, f.course.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !done.Registration.Completed || !strings.Contains(done.SurveyLink, "/survey/post?type=CRAFFT") {
		t.Fatalf("unexpected completion result %+v", done)
	}
	_, err = f.svc.Complete(ctx, f.member, f.course.ID)
	expectKind(t, err, KindConflict)

	result, err := f.svc.SubmitPostSurvey(ctx, f.member, f.course.ID, answersOf(0, 6))
	if err != nil {
		t.Fatalf("SubmitPostSurvey: %v", err)
	}
	if result.Survey.Phase != models.PhasePost || result.Survey.RiskLevel != models.RiskLow {
		t.Fatalf("unexpected post survey %+v", result.Survey)
	}
	_, err = f.svc.SubmitPostSurvey(ctx, f.member, f.course.ID, answersOf(0, 6))
	expectKind(t, err, KindConflict)

	for _, kind := range f.notifier.kinds() {
		if kind == "risk" {
			t.Fatalf("post survey must not send a risk result, got %v", f.notifier.kinds())
		}
	}
}

func TestPostSurveyWithoutCompletionByDefault(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, f.member, f.course.ID); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := f.svc.SubmitPostSurvey(ctx, f.member, f.course.ID, answersOf(0, 6)); err != nil {
		t.Fatalf("SubmitPostSurvey: %v", err)
	}
}

func TestMyCoursesAndRegistrations(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, f.member, f.course.ID); err != nil {
		t.Fatalf("Register: %v", err)
	}
	mine, err := f.svc.MyCourses(ctx, f.member)
	if err != nil {
		t.Fatalf("MyCourses: %v", err)
	}
	if len(mine) != 1 || mine[0].Course.ID != f.course.ID {
		t.Fatalf("unexpected courses %+v", mine)
	}
	_, err = f.svc.Registrations(ctx, f.member, f.course.ID)
	expectKind(t, err, KindForbidden)
	regs, err := f.svc.Registrations(ctx, f.staff, f.course.ID)
	if err != nil {
		t.Fatalf("Registrations: %v", err)
	}
	if len(regs) != 1 || regs[0].UserID != f.member.UserID {
		t.Fatalf("unexpected registrations %+v", regs)
	}
}

func TestDeleteCourseRequiresManagement(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()
	expectKind(t, f.svc.DeleteCourse(ctx, f.staff, f.course.ID), KindForbidden)
	manager := seedUser(t, f.st, models.RoleManager)
	if err := f.svc.DeleteCourse(ctx, manager, f.course.ID); err != nil {
		t.Fatalf("DeleteCourse: %v", err)
	}
	_, err := f.svc.GetCourse(ctx, f.course.ID)
	expectKind(t, err, KindNotFound)
}
