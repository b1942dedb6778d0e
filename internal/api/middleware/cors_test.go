package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			called := false
			h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(method, "/api/video/stream/x.mp4", nil))

			preflight := method == http.MethodOptions
			if called == preflight {
				t.Errorf("next called = %v on %s", called, method)
			}
			wantCode := http.StatusOK
			if preflight {
				wantCode = http.StatusNoContent
			}
			if w.Code != wantCode {
				t.Errorf("status = %d, want %d", w.Code, wantCode)
			}

			for header, want := range map[string]string{
				"Access-Control-Allow-Origin":   "*",
				"Access-Control-Allow-Methods":  "GET, POST, OPTIONS",
				"Access-Control-Allow-Headers":  "Content-Type, X-API-Key, Authorization, Range",
				"Access-Control-Expose-Headers": "Content-Disposition, Content-Length, Content-Range",
				"Access-Control-Max-Age":        "86400",
			} {
				if got := w.Header().Get(header); got != want {
					t.Errorf("%s = %q, want %q", header, got, want)
				}
			}
		})
	}
}
