package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"qualitrack/config"
	"qualitrack/core/authz"
	"qualitrack/core/metrics"
)

func newGuardServer(t *testing.T) *Server {
	t.Helper()
	policy, err := authz.NewPolicy()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	return &Server{
		cfg:     &config.AppConfig{Authz: config.AuthzConfig{RoleHeader: "X-Qualitrack-Role", DefaultRole: "viewer"}},
		policy:  policy,
		metrics: metrics.New(),
	}
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestRequirePermissionDeniesMissingPermission(t *testing.T) {
	s := newGuardServer(t)
	handler := s.withSession(s.requirePermission(authz.PermDelete)(okHandler))
	req := httptest.NewRequest(http.MethodDelete, "/api/nc/abc", nil)
	req.Header.Set("X-Qualitrack-Role", "author")
	rr := httptest.NewRecorder()
	handler(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected forbidden, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "nc.error.permissionDenied") {
		t.Fatalf("expected i18n key in body, got %s", rr.Body.String())
	}
}

func TestRequirePermissionAllowsInheritedRole(t *testing.T) {
	s := newGuardServer(t)
	handler := s.withSession(s.requirePermission(authz.PermRead)(okHandler))
	req := httptest.NewRequest(http.MethodGet, "/api/nc", nil)
	req.Header.Set("X-Qualitrack-Role", "manager")
	rr := httptest.NewRecorder()
	handler(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected ok, got %d", rr.Code)
	}
}

func TestWithSessionFallsBackToDefaultRole(t *testing.T) {
	s := newGuardServer(t)
	var got []string
	handler := s.withSession(func(w http.ResponseWriter, r *http.Request) {
		c, ok := CallerFromContext(r.Context())
		if !ok {
			t.Fatalf("caller missing from context")
		}
		got = c.Roles
	})
	handler(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/nc", nil))
	if len(got) != 1 || got[0] != "viewer" {
		t.Fatalf("expected default viewer role, got %v", got)
	}
}

func TestWithSessionRejectsWithoutAnyRole(t *testing.T) {
	s := newGuardServer(t)
	s.cfg.Authz.DefaultRole = ""
	handler := s.withSession(okHandler)
	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest(http.MethodGet, "/api/nc", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", rr.Code)
	}
}

func TestRequirePermissionWithoutCaller(t *testing.T) {
	s := newGuardServer(t)
	rr := httptest.NewRecorder()
	s.requirePermission(authz.PermRead)(okHandler)(rr, httptest.NewRequest(http.MethodGet, "/api/nc", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", rr.Code)
	}
}

func TestRecoverMiddlewareReturns500(t *testing.T) {
	s := newGuardServer(t)
	h := s.recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/nc", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestSecurityHeadersSet(t *testing.T) {
	s := newGuardServer(t)
	rr := httptest.NewRecorder()
	s.securityHeadersMiddleware(http.HandlerFunc(okHandler)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing nosniff header")
	}
}

func TestStatusRecorderCapturesStatusAndSize(t *testing.T) {
	rr := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: rr, status: http.StatusOK}
	rec.WriteHeader(http.StatusTeapot)
	_, _ = rec.Write([]byte("tea"))
	if rec.status != http.StatusTeapot || rec.size != 3 {
		t.Fatalf("unexpected recorder state status=%d size=%d", rec.status, rec.size)
	}
}
