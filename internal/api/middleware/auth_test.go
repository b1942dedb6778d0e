package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestKey(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header map[string]string
		want   string
	}{
		{"none", "/api/video/info", nil, ""},
		{"header", "/", map[string]string{"X-API-Key": "h"}, "h"},
		{"bearer", "/", map[string]string{"Authorization": "Bearer b"}, "b"},
		{"key param", "/?key=k", nil, "k"},
		{"api_key param", "/?api_key=a", nil, "a"},

		{"header beats bearer", "/", map[string]string{"X-API-Key": "h", "Authorization": "Bearer b"}, "h"},
		{"header beats query", "/?key=k&api_key=a", map[string]string{"X-API-Key": "h"}, "h"},
		{"bearer beats query", "/?key=k&api_key=a", map[string]string{"Authorization": "Bearer b"}, "b"},
		{"key beats api_key", "/?key=k&api_key=a", nil, "k"},

		{"empty key param falls through", "/?key=&api_key=a", nil, "a"},
		{"empty bearer falls through", "/?api_key=a", map[string]string{"Authorization": "Bearer "}, "a"},
		{"basic auth ignored", "/?api_key=a", map[string]string{"Authorization": "Basic dXNlcjpwYXNz"}, "a"},
		{"lowercase scheme ignored", "/?key=k", map[string]string{"Authorization": "bearer b"}, "k"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			if got := requestKey(req); got != tt.want {
				t.Errorf("requestKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAPIKeyAuth(t *testing.T) {
	const apiKey = "s3cret"

	tests := []struct {
		name     string
		target   string
		header   map[string]string
		wantCode int
		wantErr  string
	}{
		{"header", "/", map[string]string{"X-API-Key": apiKey}, http.StatusOK, ""},
		{"bearer", "/", map[string]string{"Authorization": "Bearer " + apiKey}, http.StatusOK, ""},
		{"key param", "/?key=" + apiKey, nil, http.StatusOK, ""},
		// Websocket clients and <video> elements can only pass the key in the URL.
		{"api_key param", "/api/video/events?api_key=" + apiKey, nil, http.StatusOK, ""},

		{"missing", "/", nil, http.StatusUnauthorized, "missing API key"},
		{"wrong key", "/?api_key=nope", nil, http.StatusUnauthorized, "invalid API key"},
		{"prefix of key", "/", map[string]string{"X-API-Key": apiKey[:3]}, http.StatusUnauthorized, "invalid API key"},
		// The first source present decides, a correct key further down does not rescue it.
		{"wrong header with good param", "/?key=" + apiKey, map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized, "invalid API key"},
		{"wrong bearer with good api_key", "/?api_key=" + apiKey, map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized, "invalid API key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := APIKeyAuth(apiKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if called != (tt.wantCode == http.StatusOK) {
				t.Errorf("next called = %v", called)
			}
			if tt.wantErr == "" {
				return
			}

			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body %q: %v", w.Body.String(), err)
			}
			if len(body) != 1 || body["error"] != tt.wantErr {
				t.Errorf("body = %v, want {error: %q}", body, tt.wantErr)
			}
		})
	}
}
