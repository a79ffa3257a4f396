package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JonMunkholm/gradebook/internal/config"
)

func TestAPIKeyAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name     string
		cfg      config.SecurityConfig
		key      string
		want     int
		wantCode string
	}{
		{name: "disabled", cfg: config.SecurityConfig{}, want: http.StatusOK},
		{name: "missing", cfg: config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"a"}}, want: http.StatusUnauthorized, wantCode: "API401"},
		{name: "invalid", cfg: config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"a"}}, key: "b", want: http.StatusForbidden, wantCode: "API403"},
		{name: "second key", cfg: config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"a", "b"}}, key: "b", want: http.StatusOK},
		{name: "no keys configured", cfg: config.SecurityConfig{RequireAPIKey: true}, key: "a", want: http.StatusForbidden, wantCode: "API403"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			req := httptest.NewRequest(http.MethodGet, "/api/alerts", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()

			APIKeyAuth(&cfg)(ok).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.wantCode != "" {
				if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
					t.Errorf("Content-Type = %q, want application/json", ct)
				}
				var body authError
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
					t.Fatalf("body %q is not JSON: %v", rec.Body.String(), err)
				}
				if body.Code != tt.wantCode {
					t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
				}
				if body.Error == "" || body.Message != body.Error {
					t.Errorf("error = %q, message = %q, want matching non-empty text", body.Error, body.Message)
				}
			}
		})
	}
}
