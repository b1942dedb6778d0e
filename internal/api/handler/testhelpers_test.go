package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/vidgrab/internal/domain"
	"github.com/iconidentify/vidgrab/internal/extractor"
	"github.com/iconidentify/vidgrab/internal/pacing"
	"github.com/iconidentify/vidgrab/internal/repository"
	"github.com/iconidentify/vidgrab/internal/service"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeEngine is an in-process stand-in for the extraction engine.
type fakeEngine struct {
	info     *extractor.Metadata
	err      error
	content  string
	noWrite  bool
	calls    int
	lastTmpl string
}

func (f *fakeEngine) FetchInfo(ctx context.Context, url string) (*extractor.Metadata, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.info, nil
}

func (f *fakeEngine) Download(ctx context.Context, url, formatID, tmpl string) (*extractor.Metadata, error) {
	f.calls++
	f.lastTmpl = tmpl
	if f.err != nil {
		return nil, f.err
	}
	if !f.noWrite {
		path := strings.Replace(tmpl, "%(ext)s", "mp4", 1)
		if err := os.WriteFile(path, []byte(f.content), 0644); err != nil {
			return nil, err
		}
	}
	if f.info != nil {
		return f.info, nil
	}
	return &extractor.Metadata{}, nil
}

// mockJobRepository is a test implementation of repository.JobRepository.
type mockJobRepository struct {
	stats    *repository.JobStats
	statsErr error
}

func newMockJobRepository() *mockJobRepository {
	return &mockJobRepository{stats: &repository.JobStats{}}
}

func (m *mockJobRepository) Save(ctx context.Context, job *domain.Job) error { return nil }

func (m *mockJobRepository) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	return nil, domain.ErrJobNotFound
}

func (m *mockJobRepository) Recent(ctx context.Context, n int) ([]*domain.Job, error) {
	return nil, nil
}

func (m *mockJobRepository) Stats(ctx context.Context) (*repository.JobStats, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	return m.stats, nil
}

// newTestVideoHandler wires a VideoHandler to a real service backed by a
// temporary store and the given engine.
func newTestVideoHandler(t *testing.T, engine *fakeEngine) (*VideoHandler, *repository.ArtifactStore) {
	t.Helper()
	store, err := repository.NewArtifactStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewArtifactStore: %v", err)
	}
	if err := store.EnsureDirectory(); err != nil {
		t.Fatalf("EnsureDirectory: %v", err)
	}
	svc := service.NewVideoService(service.VideoServiceConfig{
		Engine: engine,
		Store:  store,
		Pacer:  pacing.None,
	}, testLogger())
	return NewVideoHandler(svc, "/api", testLogger()), store
}

// withURLParam attaches a chi route parameter to r.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
