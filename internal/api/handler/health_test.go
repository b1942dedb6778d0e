package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iconidentify/vidgrab/internal/domain"
	"github.com/iconidentify/vidgrab/internal/repository"
)

type stubArtifacts []domain.Artifact

func (s stubArtifacts) ListArtifacts(ctx context.Context) ([]domain.Artifact, error) {
	return s, nil
}

func TestHealthHandler_Live(t *testing.T) {
	handler := NewHealthHandler(newMockJobRepository(), nil, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handler.Live(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	contentType := w.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Content-Type = %q, want %q", contentType, "application/json")
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Status != "ok" {
		t.Errorf("status = %q, want %q", resp.Status, "ok")
	}
	if resp.Timestamp == "" {
		t.Error("timestamp should not be empty")
	}
}

func TestHealthHandler_Ready_Success(t *testing.T) {
	repo := newMockJobRepository()
	repo.stats = &repository.JobStats{
		Running:   2,
		Completed: 100,
		Failed:    3,
		Blocked:   1,
	}
	handler := NewHealthHandler(repo, nil, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()

	handler.Ready(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Jobs == nil {
		t.Fatal("jobs should not be nil")
	}
	if resp.Jobs.Running != 2 {
		t.Errorf("running = %d, want 2", resp.Jobs.Running)
	}
	if resp.Jobs.Completed != 100 {
		t.Errorf("completed = %d, want 100", resp.Jobs.Completed)
	}
	if resp.Jobs.Failed != 3 {
		t.Errorf("failed = %d, want 3", resp.Jobs.Failed)
	}
	if resp.Jobs.Blocked != 1 {
		t.Errorf("blocked = %d, want 1", resp.Jobs.Blocked)
	}
}

func TestHealthHandler_Ready_Error(t *testing.T) {
	repo := newMockJobRepository()
	repo.statsErr = errors.New("repository unavailable")
	handler := NewHealthHandler(repo, nil, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()

	handler.Ready(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "error" {
		t.Errorf("status = %q, want %q", resp.Status, "error")
	}
}

func TestHealthHandler_Stats(t *testing.T) {
	dir := t.TempDir()
	artifacts := stubArtifacts{
		{Filename: "a.mp4", Size: 100},
		{Filename: "b.webm", Size: 50},
	}
	handler := NewHealthHandler(newMockJobRepository(), artifacts, dir)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()

	handler.Stats(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var stats SystemStats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if stats.StoragePath != dir {
		t.Errorf("storage path = %q, want %q", stats.StoragePath, dir)
	}
	if stats.ArtifactCount != 2 || stats.ArtifactBytes != 150 {
		t.Errorf("artifacts = %d/%d bytes, want 2/150", stats.ArtifactCount, stats.ArtifactBytes)
	}
	if stats.DiskTotalBytes <= 0 {
		t.Error("disk total should be reported for an existing directory")
	}
	if stats.NumCPU <= 0 {
		t.Error("num_cpu should be positive")
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{5 * time.Minute, "5m"},
		{2*time.Hour + 3*time.Minute, "2h 3m"},
		{50*time.Hour + 10*time.Minute, "2d 2h 10m"},
	}
	for _, tt := range tests {
		if got := formatUptime(tt.d); got != tt.want {
			t.Errorf("formatUptime(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
