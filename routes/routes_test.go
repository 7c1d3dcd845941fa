package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// Route registration is checked without a database: protected endpoints must
// resolve to a handler (401 without a token), never 404.
func TestRouteRegistration(t *testing.T) {
	router := InitRouter()

	cases := []struct {
		method, path string
	}{
		{http.MethodPost, "/v1/tasks"},
		{http.MethodGet, "/v1/tasks/5"},
		{http.MethodDelete, "/v1/tasks/5"},
		{http.MethodDelete, "/v1/tasks/5/delete"},
		{http.MethodPost, "/v1/tasks/5/self-assign"},
		{http.MethodPost, "/v1/tasks/5/assign-users"},
		{http.MethodPut, "/v1/tasks/5/status"},
		{http.MethodPost, "/v1/tasks/5/submit"},
		{http.MethodPost, "/v1/tasks/5/evidence"},
		{http.MethodPost, "/v1/tasks/5/review"},
		{http.MethodPost, "/v1/tasks/5/review/7"},
		{http.MethodDelete, "/v1/tasks/5/revoke"},
		{http.MethodGet, "/v1/communities/5/tasks"},
		{http.MethodPost, "/v1/communities"},
		{http.MethodPost, "/v1/communities/join"},
		{http.MethodGet, "/v1/communities/5/members"},
		{http.MethodDelete, "/v1/communities/5/leave"},
		{http.MethodGet, "/v1/communities/5/analytics"},
		{http.MethodGet, "/v1/users/info"},
		{http.MethodGet, "/v1/users/assignments"},
		{http.MethodGet, "/v1/notifications"},
		{http.MethodPut, "/v1/notifications/read-all"},
		{http.MethodGet, "/v1/communities/5/events"},
		{http.MethodDelete, "/v1/events/5"},
		{http.MethodGet, "/v1/admin/dashboard"},
		{http.MethodGet, "/v1/admin/users"},
		{http.MethodPut, "/v1/admin/settings"},
	}
	for _, c := range cases {
		req := httptest.NewRequest(c.method, c.path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code == http.StatusNotFound {
			t.Errorf("%s %s is not registered", c.method, c.path)
		}
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token: expected 401, got %d", c.method, c.path, w.Code)
		}
	}
}

func TestHealthEndpoints(t *testing.T) {
	router := InitRouter()

	for _, path := range []string{"/health", "/v1/health"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, w.Code)
		}
	}
}
