package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iconidentify/vidgrab/internal/api/handler"
	"github.com/iconidentify/vidgrab/internal/extractor"
	"github.com/iconidentify/vidgrab/internal/repository"
	"github.com/iconidentify/vidgrab/internal/service"
)

type stubEngine struct{}

func (stubEngine) FetchInfo(ctx context.Context, url string) (*extractor.Metadata, error) {
	return &extractor.Metadata{Title: "Clip"}, nil
}

func (stubEngine) Download(ctx context.Context, url, formatID, tmpl string) (*extractor.Metadata, error) {
	path := strings.Replace(tmpl, "%(ext)s", "mp4", 1)
	return &extractor.Metadata{Title: "Clip"}, os.WriteFile(path, []byte("video"), 0644)
}

func newTestRouter(t *testing.T, cfg RouterConfig) (http.Handler, *repository.ArtifactStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := repository.NewArtifactStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := store.EnsureDirectory(); err != nil {
		t.Fatal(err)
	}
	jobs := repository.NewInMemoryJobRepository(0)
	videoSvc := service.NewVideoService(service.VideoServiceConfig{
		Engine: stubEngine{},
		Store:  store,
		Jobs:   jobs,
	}, logger)
	events := service.NewEventService(service.EventServiceConfig{}, logger)

	static := t.TempDir()
	if err := os.WriteFile(filepath.Join(static, "intro.mp4"), []byte("intro"), 0644); err != nil {
		t.Fatal(err)
	}

	return NewRouter(cfg, Handlers{
		Video:  handler.NewVideoHandler(videoSvc, cfg.PathPrefix, logger),
		Events: handler.NewEventHandler(events, logger),
		Auth:   handler.NewAuthHandler(nil),
		Static: handler.NewStaticHandler(static, logger),
		Health: handler.NewHealthHandler(jobs, videoSvc, store.Root()),
	}), store
}

func serve(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouter_Routes(t *testing.T) {
	router, _ := newTestRouter(t, RouterConfig{PathPrefix: "/api"})

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/ready", "", http.StatusOK},
		{http.MethodGet, "/api/stats", "", http.StatusOK},
		{http.MethodPost, "/api/video/info", `{"url":"https://vimeo.com/abc"}`, http.StatusOK},
		{http.MethodPost, "/api/video/info", `{}`, http.StatusBadRequest},
		{http.MethodGet, "/api/video/supported-sites", "", http.StatusOK},
		{http.MethodGet, "/api/video/artifacts", "", http.StatusOK},
		{http.MethodGet, "/api/video/events/recent", "", http.StatusOK},
		{http.MethodGet, "/api/video/auth/status", "", http.StatusOK},
		{http.MethodGet, "/api/videos/intro.mp4", "", http.StatusOK},
		{http.MethodGet, "/api/videos/missing.mp4", "", http.StatusNotFound},
		{http.MethodGet, "/api/video/file/missing.mp4", "", http.StatusNotFound},
		{http.MethodGet, "/api/video/file/..%2F..%2Fetc%2Fpasswd", "", http.StatusNotFound},
		{http.MethodGet, "/api/video/stream/%2e%2e%2f%2e%2e%2fetc%2fpasswd", "", http.StatusNotFound},
		{http.MethodGet, "/api/nope", "", http.StatusNotFound},
		{http.MethodGet, "/api/video/info", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := serve(router, tt.method, tt.path, tt.body, nil)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
			if w.Code >= 400 && w.Header().Get("Content-Type") != "application/json" {
				t.Errorf("error Content-Type = %q, want application/json", w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestRouter_DownloadThenFetch(t *testing.T) {
	router, _ := newTestRouter(t, RouterConfig{PathPrefix: "/api"})

	w := serve(router, http.MethodPost, "/api/video/download", `{"url":"https://vimeo.com/abc"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("download status = %d (body %s)", w.Code, w.Body.String())
	}

	var resp handler.DownloadResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}

	w = serve(router, http.MethodGet, resp.DownloadURL, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("file status = %d", w.Code)
	}
	if int64(w.Body.Len()) != resp.FileSize {
		t.Errorf("served %d bytes, file_size = %d", w.Body.Len(), resp.FileSize)
	}
}

func TestRouter_APIKey(t *testing.T) {
	router, _ := newTestRouter(t, RouterConfig{PathPrefix: "/api", APIKey: "secret"})

	if w := serve(router, http.MethodGet, "/api/video/supported-sites", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("without key: status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if w := serve(router, http.MethodGet, "/api/video/supported-sites", "", map[string]string{"X-API-Key": "secret"}); w.Code != http.StatusOK {
		t.Errorf("with key: status = %d, want %d", w.Code, http.StatusOK)
	}
	if w := serve(router, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Errorf("health should stay public, got %d", w.Code)
	}
}

func TestRouter_RootPrefix(t *testing.T) {
	router, _ := newTestRouter(t, RouterConfig{})

	if w := serve(router, http.MethodGet, "/video/supported-sites", "", nil); w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t, RouterConfig{PathPrefix: "/api", APIKey: "secret"})

	w := serve(router, http.MethodOptions, "/api/video/info", "", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
