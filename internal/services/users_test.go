package services

import (
	"context"
	"testing"
	"time"

	"riskscreen-backend/internal/models"
	"riskscreen-backend/internal/store"
)

func testTokens() TokenService {
	return TokenService{
		Secret:     []byte("test-secret"),
		Issuer:     "riskscreen-test",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}
}

func newUserService(st *store.Memory) *UserService {
	return &UserService{Store: st, Tokens: testTokens(), Now: fixedNow}
}

func register(t *testing.T, svc *UserService, actor *Identity, name, role string) *models.User {
	t.Helper()
	user, err := svc.Register(context.Background(), actor, RegisterInput{
		Username: name,
		Email:    name + "@example.org",
		Password: "secret1",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return user
}

func TestRegisterBootstrapsFirstAdmin(t *testing.T) {
	svc := newUserService(store.NewMemory())
	first := register(t, svc, nil, "first", "")
	if first.Role != models.RoleAdmin {
		t.Fatalf("first account role = %s, want Admin", first.Role)
	}
	second := register(t, svc, nil, "second", "")
	if second.Role != models.RoleMember {
		t.Fatalf("second account role = %s, want Member", second.Role)
	}
	_, err := svc.Register(context.Background(), nil, RegisterInput{
		Username: "sneaky", Email: "sneaky@example.org", Password: "secret1", Role: "Admin",
	})
	expectKind(t, err, KindUnauthenticated)
	_, err = svc.Register(context.Background(), &Identity{UserID: second.ID, Role: models.RoleMember}, RegisterInput{
		Username: "climber", Email: "climber@example.org", Password: "secret1", Role: "Admin",
	})
	expectKind(t, err, KindForbidden)
}

func TestRegisterAdminRequestedWhileNoneExist(t *testing.T) {
	svc := newUserService(store.NewMemory())
	admin := register(t, svc, nil, "root", "admin")
	if admin.Role != models.RoleAdmin {
		t.Fatalf("role = %s, want Admin", admin.Role)
	}
	actor := &Identity{UserID: admin.ID, Role: models.RoleAdmin}
	other := register(t, svc, actor, "root2", "Admin")
	if other.Role != models.RoleAdmin {
		t.Fatalf("admin-created role = %s, want Admin", other.Role)
	}
}

func TestRegisterPrivilegedRolesNeedAdmin(t *testing.T) {
	st := store.NewMemory()
	svc := newUserService(st)
	admin := register(t, svc, nil, "root", "")
	member := register(t, svc, nil, "member", "Member")

	for _, role := range []string{"Staff", "Consultant", "Manager"} {
		_, err := svc.Register(context.Background(), nil, RegisterInput{
			Username: "anon" + role, Email: "anon" + role + "@example.org", Password: "secret1", Role: role,
		})
		expectKind(t, err, KindUnauthenticated)
		_, err = svc.Register(context.Background(), &Identity{UserID: member.ID, Role: models.RoleMember}, RegisterInput{
			Username: "member" + role, Email: "member" + role + "@example.org", Password: "secret1", Role: role,
		})
		expectKind(t, err, KindForbidden)
	}
	consultant := register(t, svc, &Identity{UserID: admin.ID, Role: models.RoleAdmin}, "doc", "Consultant")
	if consultant.Role != models.RoleConsultant {
		t.Fatalf("role = %s, want Consultant", consultant.Role)
	}
	guest := register(t, svc, nil, "visitor", "guest")
	if guest.Role != models.RoleGuest {
		t.Fatalf("role = %s, want Guest", guest.Role)
	}
}

func TestRegisterValidationAndDuplicates(t *testing.T) {
	svc := newUserService(store.NewMemory())
	register(t, svc, nil, "alice", "")

	tests := []struct {
		name string
		in   RegisterInput
		kind ErrorKind
	}{
		{"missing username", RegisterInput{Email: "x@example.org", Password: "secret1"}, KindValidation},
		{"bad email", RegisterInput{Username: "x", Email: "not-an-email", Password: "secret1"}, KindValidation},
		{"short password", RegisterInput{Username: "x", Email: "x@example.org", Password: "123"}, KindValidation},
		{"unknown role", RegisterInput{Username: "x", Email: "x@example.org", Password: "secret1", Role: "Owner"}, KindValidation},
		{"duplicate email", RegisterInput{Username: "alice2", Email: "ALICE@example.org", Password: "secret1"}, KindConflict},
		{"duplicate username", RegisterInput{Username: "alice", Email: "other@example.org", Password: "secret1"}, KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), nil, tt.in)
			expectKind(t, err, tt.kind)
		})
	}
}

func TestLoginByEmailOrUsername(t *testing.T) {
	svc := newUserService(store.NewMemory())
	user := register(t, svc, nil, "bob", "")

	for _, login := range []string{"bob", "bob@example.org"} {
		pair, got, err := svc.Login(context.Background(), login, "secret1")
		if err != nil {
			t.Fatalf("Login(%q): %v", login, err)
		}
		if got.ID != user.ID || pair.AccessToken == "" || pair.RefreshToken == "" {
			t.Fatalf("Login(%q) returned %+v %+v", login, got, pair)
		}
	}
	_, _, err := svc.Login(context.Background(), "bob", "wrong-password")
	expectKind(t, err, KindUnauthenticated)
	_, _, err = svc.Login(context.Background(), "nobody", "secret1")
	expectKind(t, err, KindUnauthenticated)
}

func TestRefreshIssuesNewPair(t *testing.T) {
	svc := newUserService(store.NewMemory())
	register(t, svc, nil, "carol", "")
	pair, _, err := svc.Login(context.Background(), "carol", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, _, err := svc.Refresh(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	_, _, err = svc.Refresh(context.Background(), pair.AccessToken)
	expectKind(t, err, KindUnauthenticated)
}

func TestChangePassword(t *testing.T) {
	svc := newUserService(store.NewMemory())
	user := register(t, svc, nil, "dave", "")
	actor := &Identity{UserID: user.ID, Role: user.Role}

	expectKind(t, svc.ChangePassword(context.Background(), actor, "wrong", "newsecret"), KindValidation)
	if err := svc.ChangePassword(context.Background(), actor, "secret1", "newsecret"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "dave", "newsecret"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestAdminCannotChangeOwnRoleOrDeleteSelf(t *testing.T) {
	svc := newUserService(store.NewMemory())
	admin := register(t, svc, nil, "root", "")
	member := register(t, svc, nil, "eve", "")
	actor := &Identity{UserID: admin.ID, Role: models.RoleAdmin}

	_, err := svc.ChangeRole(context.Background(), actor, admin.ID, "Member")
	expectKind(t, err, KindForbidden)
	expectKind(t, svc.Delete(context.Background(), actor, admin.ID), KindForbidden)

	updated, err := svc.ChangeRole(context.Background(), actor, member.ID, "staff")
	if err != nil {
		t.Fatalf("ChangeRole: %v", err)
	}
	if updated.Role != models.RoleStaff {
		t.Fatalf("role = %s, want Staff", updated.Role)
	}
	_, err = svc.ChangeRole(context.Background(), &Identity{UserID: member.ID, Role: models.RoleManager}, admin.ID, "Member")
	expectKind(t, err, KindForbidden)
}

func TestGuardAuthenticate(t *testing.T) {
	st := store.NewMemory()
	svc := newUserService(st)
	admin := register(t, svc, nil, "root", "")
	member := register(t, svc, nil, "frank", "")
	guard := Guard{Tokens: svc.Tokens, Users: st}

	pair, _, err := svc.Login(context.Background(), "frank", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	id, err := guard.Authenticate(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if id.UserID != member.ID || id.Role != models.RoleMember {
		t.Fatalf("unexpected identity %+v", id)
	}

	_, err = guard.Authenticate(context.Background(), pair.RefreshToken)
	expectKind(t, err, KindUnauthenticated)
	_, err = guard.Authenticate(context.Background(), "not-a-token")
	expectKind(t, err, KindUnauthenticated)

	other := testTokens()
	other.Issuer = "someone-else"
	foreign, _, err := other.CreateAccessToken(member.ID, models.RoleAdmin)
	if err != nil {
		t.Fatalf("CreateAccessToken: %v", err)
	}
	_, err = guard.Authenticate(context.Background(), foreign)
	expectKind(t, err, KindUnauthenticated)

	expired := testTokens()
	expired.AccessTTL = -time.Minute
	stale, _, err := expired.CreateAccessToken(member.ID, models.RoleMember)
	if err != nil {
		t.Fatalf("CreateAccessToken: %v", err)
	}
	_, err = guard.Authenticate(context.Background(), stale)
	expectKind(t, err, KindUnauthenticated)

	adminActor := &Identity{UserID: admin.ID, Role: models.RoleAdmin}
	if _, err := svc.ChangeRole(context.Background(), adminActor, member.ID, "Manager"); err != nil {
		t.Fatalf("ChangeRole: %v", err)
	}
	id, err = guard.Authenticate(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate after role change: %v", err)
	}
	if id.Role != models.RoleManager {
		t.Fatalf("role = %s, want refreshed Manager", id.Role)
	}

	if err := svc.Delete(context.Background(), adminActor, member.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err = guard.Authenticate(context.Background(), pair.AccessToken)
	expectKind(t, err, KindUnauthenticated)
}

func TestAuthorizeDistinguishesUnauthenticatedAndForbidden(t *testing.T) {
	expectKind(t, Authorize(OpListUsers, nil), KindUnauthenticated)
	expectKind(t, Authorize(OpListUsers, &Identity{UserID: "u", Role: models.RoleMember}), KindForbidden)
	if err := Authorize(OpListUsers, &Identity{UserID: "u", Role: models.RoleManager}); err != nil {
		t.Fatalf("Manager should list users: %v", err)
	}
	if err := Authorize(OpEnrollCourse, &Identity{UserID: "u", Role: models.RoleGuest}); err == nil {
		t.Fatal("Guest should not enroll in courses")
	}
}
