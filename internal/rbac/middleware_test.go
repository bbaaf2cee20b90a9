package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finvera/finvera/internal/shared"
)

func requestWithIdentity(t *testing.T, userID, companyID string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/operations", nil)
	sess := &shared.Session{}
	sess.SetIdentity(userID, companyID)
	return req.WithContext(shared.ContextWithSession(context.Background(), sess))
}

func TestRequireWithoutSession(t *testing.T) {
	mw := Middleware{Service: NewService(&stubRepo{}, nil)}
	handler := mw.Require("operations", ActionRead)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/operations", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireDeniedAndAllowed(t *testing.T) {
	repo := &stubRepo{
		users:  map[string]UserAccess{"u1": activeUser("c1")},
		grants: []PermissionTuple{{Entity: "operations", Action: ActionRead, Allowed: true}},
	}
	var observed []string
	mw := Middleware{
		Service: NewService(repo, nil),
		Observe: func(entity, result string) { observed = append(observed, entity+":"+result) },
	}

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	rec := httptest.NewRecorder()
	mw.Require("operations", ActionCreate)(next).ServeHTTP(rec, requestWithIdentity(t, "u1", "c1"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("read-only user must be 403 on create, got %d", rec.Code)
	}
	if called {
		t.Fatalf("handler must not run on denial")
	}

	rec = httptest.NewRecorder()
	mw.Require("operations", ActionRead)(next).ServeHTTP(rec, requestWithIdentity(t, "u1", "c1"))
	if rec.Code != http.StatusOK || !called {
		t.Fatalf("granted action must pass, got %d", rec.Code)
	}

	if len(observed) != 2 || observed[0] != "operations:denied" || observed[1] != "operations:allowed" {
		t.Fatalf("unexpected observations: %v", observed)
	}
}
