package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var frontEnds = []string{"https://code-with-challenge.vercel.app", "http://localhost:5173", "*.example.com"}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		origin     string
		preflight  bool
		wantStatus int
		wantAllow  string
	}{
		{"no_origin", http.MethodGet, "", false, http.StatusOK, ""},
		{"allowed_front_end", http.MethodGet, "https://code-with-challenge.vercel.app", false, http.StatusOK, "https://code-with-challenge.vercel.app"},
		{"allowed_local_dev", http.MethodGet, "http://localhost:5173", false, http.StatusOK, "http://localhost:5173"},
		{"case_insensitive", http.MethodGet, "HTTP://LOCALHOST:5173", false, http.StatusOK, "HTTP://LOCALHOST:5173"},
		{"wildcard_subdomain", http.MethodGet, "https://app.example.com", false, http.StatusOK, "https://app.example.com"},
		{"wildcard_not_partial", http.MethodGet, "https://notexample.com", false, http.StatusOK, ""},
		{"disallowed", http.MethodGet, "https://evil.test", false, http.StatusOK, ""},
		{"preflight_allowed", http.MethodOptions, "http://localhost:5173", true, http.StatusNoContent, "http://localhost:5173"},
		{"preflight_disallowed", http.MethodOptions, "https://evil.test", true, http.StatusForbidden, ""},
	}

	mw := CORS(DefaultCORSConfig(frontEnds))
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/Posts", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if tc.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPut)
			}
			rec := httptest.NewRecorder()
			mw(identityEcho).ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.wantAllow {
				t.Errorf("Allow-Origin = %q, want %q", got, tc.wantAllow)
			}
		})
	}
}

func TestCORS_ExposesLastModified(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/Posts", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	CORS(DefaultCORSConfig(frontEnds))(identityEcho).ServeHTTP(rec, req)

	if !strings.Contains(rec.Header().Get("Access-Control-Expose-Headers"), "Last-Modified") {
		t.Errorf("Last-Modified not exposed: %q", rec.Header().Get("Access-Control-Expose-Headers"))
	}
}

func TestCORS_PreflightHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/Posts", nil)
	req.Header.Set("Origin", "https://code-with-challenge.vercel.app")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()
	CORS(DefaultCORSConfig(frontEnds))(identityEcho).ServeHTTP(rec, req)

	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), "If-Modified-Since") {
		t.Errorf("If-Modified-Since not allowed: %q", rec.Header().Get("Access-Control-Allow-Headers"))
	}
	if rec.Header().Get("Access-Control-Max-Age") != "86400" {
		t.Errorf("Max-Age = %q", rec.Header().Get("Access-Control-Max-Age"))
	}
}
