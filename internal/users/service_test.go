package users

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/finvera/finvera/internal/shared"
)

type stubUsersRepo struct {
	users       map[string]User
	lastHash    string
	assigned    [][3]string
	removed     [][2]string
	assignments []RoleAssignment
	deactivated []string
}

func newStubUsersRepo() *stubUsersRepo {
	return &stubUsersRepo{users: map[string]User{}}
}

func (s *stubUsersRepo) List(ctx context.Context, companyID string) ([]User, error) {
	var list []User
	for _, u := range s.users {
		if u.CompanyID == companyID {
			list = append(list, u)
		}
	}
	return list, nil
}

func (s *stubUsersRepo) Get(ctx context.Context, companyID, id string) (User, error) {
	u, ok := s.users[id]
	if !ok || u.CompanyID != companyID {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *stubUsersRepo) Create(ctx context.Context, user User, passwordHash string) (User, error) {
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return User{}, ErrEmailTaken
		}
	}
	user.IsActive = true
	s.users[user.ID] = user
	s.lastHash = passwordHash
	return user, nil
}

func (s *stubUsersRepo) Update(ctx context.Context, user User) (User, error) {
	s.users[user.ID] = user
	return user, nil
}

func (s *stubUsersRepo) SetActive(ctx context.Context, companyID, id string, active bool) error {
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.IsActive = active
	s.users[id] = u
	if !active {
		s.deactivated = append(s.deactivated, id)
	}
	return nil
}

func (s *stubUsersRepo) Roles(ctx context.Context, userID string) ([]RoleAssignment, error) {
	return s.assignments, nil
}

func (s *stubUsersRepo) AssignRole(ctx context.Context, userID, roleID, assignedBy string) error {
	s.assigned = append(s.assigned, [3]string{userID, roleID, assignedBy})
	return nil
}

func (s *stubUsersRepo) RemoveRole(ctx context.Context, userID, roleID string) error {
	s.removed = append(s.removed, [2]string{userID, roleID})
	return nil
}

type stubMailer struct {
	invites []string
	lastPwd string
	err     error
}

func (s *stubMailer) EnqueueInvitation(ctx context.Context, email, name, tempPassword string) error {
	if s.err != nil {
		return s.err
	}
	s.invites = append(s.invites, email)
	s.lastPwd = tempPassword
	return nil
}

type stubUserInvalidator struct {
	ids []string
}

func (s *stubUserInvalidator) InvalidateUsers(ctx context.Context, userIDs ...string) error {
	s.ids = append(s.ids, userIDs...)
	return nil
}

type stubUserAudit struct {
	actions []string
}

func (s *stubUserAudit) Record(ctx context.Context, entry shared.AuditEntry) error {
	s.actions = append(s.actions, entry.Action)
	return nil
}

func TestInviteHashesTempPasswordAndEnqueuesMail(t *testing.T) {
	repo := newStubUsersRepo()
	mailer := &stubMailer{}
	audit := &stubUserAudit{}
	svc := NewService(repo, nil, mailer, nil, audit, nil)

	user, err := svc.Invite(context.Background(), "c1", "admin", "", InviteInput{Email: "New@Example.COM ", Name: " Анна "})
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if user.Email != "new@example.com" || user.Name != "Анна" {
		t.Fatalf("normalization failed: %+v", user)
	}
	if len(mailer.invites) != 1 || mailer.invites[0] != "new@example.com" {
		t.Fatalf("invitation mail not enqueued: %v", mailer.invites)
	}
	if mailer.lastPwd == "" {
		t.Fatalf("temp password must be generated")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(repo.lastHash), []byte(mailer.lastPwd)); err != nil {
		t.Fatalf("stored hash must match the mailed password: %v", err)
	}
	if len(audit.actions) != 1 || audit.actions[0] != "user.invited" {
		t.Fatalf("audit entry expected, got %v", audit.actions)
	}
}

func TestInviteDuplicateEmail(t *testing.T) {
	repo := newStubUsersRepo()
	repo.users["u1"] = User{ID: "u1", CompanyID: "c1", Email: "dup@example.com"}
	svc := NewService(repo, nil, nil, nil, nil, nil)

	_, err := svc.Invite(context.Background(), "c1", "admin", "", InviteInput{Email: "dup@example.com", Name: "X"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

type stubIdemGuard struct {
	seen    map[string]bool
	deleted []string
}

func (s *stubIdemGuard) CheckAndInsert(ctx context.Context, key, module string) error {
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	if s.seen[key] {
		return shared.ErrIdempotencyConflict
	}
	s.seen[key] = true
	return nil
}

func (s *stubIdemGuard) Delete(ctx context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	return nil
}

func TestInviteReplayRejectedByIdempotencyKey(t *testing.T) {
	repo := newStubUsersRepo()
	guard := &stubIdemGuard{}
	svc := NewService(repo, nil, nil, nil, nil, guard)

	if _, err := svc.Invite(context.Background(), "c1", "admin", "req-1", InviteInput{Email: "one@example.com", Name: "X"}); err != nil {
		t.Fatalf("first invite: %v", err)
	}
	_, err := svc.Invite(context.Background(), "c1", "admin", "req-1", InviteInput{Email: "two@example.com", Name: "Y"})
	if !errors.Is(err, shared.ErrIdempotencyConflict) {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}
	if len(repo.users) != 1 {
		t.Fatalf("replay must not create a second user")
	}
}

func TestInviteReleasesKeyWhenEnqueueFails(t *testing.T) {
	repo := newStubUsersRepo()
	mailer := &stubMailer{err: errors.New("broker down")}
	guard := &stubIdemGuard{}
	svc := NewService(repo, nil, mailer, nil, nil, guard)

	_, err := svc.Invite(context.Background(), "c1", "admin", "req-5", InviteInput{Email: "one@example.com", Name: "X"})
	if err == nil {
		t.Fatalf("expected enqueue failure to surface")
	}
	if len(guard.deleted) != 1 || guard.deleted[0] != "req-5" {
		t.Fatalf("key must be released when the invitation mail is not enqueued, got %v", guard.deleted)
	}
}

func TestInviteReleasesKeyWhenCreateFails(t *testing.T) {
	repo := newStubUsersRepo()
	repo.users["u1"] = User{ID: "u1", CompanyID: "c1", Email: "dup@example.com"}
	guard := &stubIdemGuard{}
	svc := NewService(repo, nil, nil, nil, nil, guard)

	_, err := svc.Invite(context.Background(), "c1", "admin", "req-9", InviteInput{Email: "dup@example.com", Name: "X"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if len(guard.deleted) != 1 || guard.deleted[0] != "req-9" {
		t.Fatalf("key must be released after a failed create, got %v", guard.deleted)
	}
}

func TestDeactivateSelfRejected(t *testing.T) {
	repo := newStubUsersRepo()
	repo.users["u1"] = User{ID: "u1", CompanyID: "c1", IsActive: true}
	svc := NewService(repo, nil, nil, nil, nil, nil)

	if err := svc.Deactivate(context.Background(), "c1", "u1", "u1"); !errors.Is(err, ErrSelfDeactivate) {
		t.Fatalf("expected ErrSelfDeactivate, got %v", err)
	}
	if len(repo.deactivated) != 0 {
		t.Fatalf("no deactivation expected")
	}
}

func TestDeactivateInvalidatesCache(t *testing.T) {
	repo := newStubUsersRepo()
	repo.users["u2"] = User{ID: "u2", CompanyID: "c1", IsActive: true}
	inv := &stubUserInvalidator{}
	svc := NewService(repo, nil, nil, inv, nil, nil)

	if err := svc.Deactivate(context.Background(), "c1", "u1", "u2"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if repo.users["u2"].IsActive {
		t.Fatalf("user must be disabled")
	}
	if len(inv.ids) != 1 || inv.ids[0] != "u2" {
		t.Fatalf("cache invalidation expected, got %v", inv.ids)
	}
}

func TestAssignRoleRecordsAssigner(t *testing.T) {
	repo := newStubUsersRepo()
	repo.users["u2"] = User{ID: "u2", CompanyID: "c1", IsActive: true}
	inv := &stubUserInvalidator{}
	audit := &stubUserAudit{}
	svc := NewService(repo, nil, nil, inv, audit, nil)

	if err := svc.AssignRole(context.Background(), "c1", "admin", "u2", "r1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if len(repo.assigned) != 1 || repo.assigned[0] != [3]string{"u2", "r1", "admin"} {
		t.Fatalf("assignment metadata lost: %v", repo.assigned)
	}
	if len(inv.ids) != 1 || inv.ids[0] != "u2" {
		t.Fatalf("cache invalidation expected")
	}
	if len(audit.actions) != 1 || audit.actions[0] != "user.role_assigned" {
		t.Fatalf("audit entry expected, got %v", audit.actions)
	}
}

func TestAssignRoleUnknownUser(t *testing.T) {
	svc := NewService(newStubUsersRepo(), nil, nil, nil, nil, nil)
	if err := svc.AssignRole(context.Background(), "c1", "admin", "ghost", "r1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
