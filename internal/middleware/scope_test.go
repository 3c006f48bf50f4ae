package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/postkeeper/postkeeper/internal/auth"
	"github.com/postkeeper/postkeeper/internal/model"
)

func withIdentity(r *http.Request, scopes ...string) *http.Request {
	return r.WithContext(auth.ContextWithIdentity(r.Context(), &model.Identity{Username: "alice", Scopes: scopes}))
}

func TestRequireScope(t *testing.T) {
	tests := []struct {
		name     string
		scopes   []string
		required []string
		want     int
	}{
		{"read_allows_read", []string{model.ScopeRead}, []string{model.ScopeRead}, http.StatusOK},
		{"write_allows_write", []string{model.ScopeWrite}, []string{model.ScopeWrite}, http.StatusOK},
		{"admin_allows_everything", []string{model.ScopeAdmin}, []string{model.ScopeWrite}, http.StatusOK},
		{"any_of_required", []string{model.ScopeWrite}, []string{model.ScopeRead, model.ScopeWrite}, http.StatusOK},
		{"read_denied_write", []string{model.ScopeRead}, []string{model.ScopeWrite}, http.StatusForbidden},
		{"no_scopes", nil, []string{model.ScopeRead}, http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := withIdentity(httptest.NewRequest(http.MethodGet, "/", nil), tc.scopes...)
			rec := httptest.NewRecorder()
			RequireScope(tc.required...)(identityEcho).ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestRequireScope_Unauthenticated(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireScope(model.ScopeRead)(identityEcho).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestRequireMethodScope(t *testing.T) {
	tests := []struct {
		method string
		scopes []string
		want   int
	}{
		{http.MethodGet, []string{model.ScopeRead}, http.StatusOK},
		{http.MethodGet, []string{model.ScopeWrite}, http.StatusForbidden},
		{http.MethodPost, []string{model.ScopeRead}, http.StatusForbidden},
		{http.MethodPut, []string{model.ScopeWrite}, http.StatusOK},
		{http.MethodDelete, []string{model.ScopeAdmin}, http.StatusOK},
	}

	mw := RequireMethodScope()
	for _, tc := range tests {
		t.Run(tc.method, func(t *testing.T) {
			req := withIdentity(httptest.NewRequest(tc.method, "/Posts", nil), tc.scopes...)
			rec := httptest.NewRecorder()
			mw(identityEcho).ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Errorf("%s with %v: expected %d, got %d", tc.method, tc.scopes, tc.want, rec.Code)
			}
		})
	}
}
