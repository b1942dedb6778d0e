package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/iconidentify/vidgrab/internal/domain"
)

func TestNewInMemoryJobRepository(t *testing.T) {
	repo := NewInMemoryJobRepository(0)

	if repo == nil {
		t.Fatal("repo should not be nil")
	}
	if repo.jobs == nil {
		t.Error("jobs map should be initialized")
	}
	if repo.limit != DefaultJobHistory {
		t.Errorf("limit = %d, want %d", repo.limit, DefaultJobHistory)
	}
}

func TestInMemoryJobRepository_SaveAndGet(t *testing.T) {
	repo := NewInMemoryJobRepository(10)
	ctx := context.Background()

	job := domain.NewJob("job-1", domain.DownloadRequest{URL: "https://vimeo.com/1", FormatID: "best"})
	if err := repo.Save(ctx, job); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	retrieved, err := repo.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if retrieved.URL != "https://vimeo.com/1" {
		t.Errorf("URL = %q", retrieved.URL)
	}

	// Stored copies are isolated from the caller.
	job.MarkCompleted("job-1.mp4", 5)
	retrieved, _ = repo.Get(ctx, "job-1")
	if retrieved.Status != domain.JobStatusRunning {
		t.Errorf("Status = %s, want running until saved again", retrieved.Status)
	}

	if err := repo.Save(ctx, job); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	retrieved, _ = repo.Get(ctx, "job-1")
	if retrieved.Status != domain.JobStatusCompleted {
		t.Errorf("Status = %s, want completed", retrieved.Status)
	}
}

func TestInMemoryJobRepository_GetMissing(t *testing.T) {
	repo := NewInMemoryJobRepository(10)
	_, err := repo.Get(context.Background(), "nope")
	if !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestInMemoryJobRepository_EvictsOldest(t *testing.T) {
	repo := NewInMemoryJobRepository(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		repo.Save(ctx, domain.NewJob(domain.JobID(fmt.Sprintf("job-%d", i)), domain.DownloadRequest{URL: "u"}))
	}

	if _, err := repo.Get(ctx, "job-0"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Error("job-0 should have been evicted")
	}
	if _, err := repo.Get(ctx, "job-4"); err != nil {
		t.Errorf("job-4 should be present: %v", err)
	}

	recent, _ := repo.Recent(ctx, 0)
	if len(recent) != 3 {
		t.Fatalf("len(recent) = %d, want 3", len(recent))
	}
	if recent[0].ID != "job-4" || recent[2].ID != "job-2" {
		t.Errorf("recent order = %s..%s", recent[0].ID, recent[2].ID)
	}

	recent, _ = repo.Recent(ctx, 1)
	if len(recent) != 1 || recent[0].ID != "job-4" {
		t.Errorf("Recent(1) = %v", recent)
	}
}

func TestInMemoryJobRepository_Stats(t *testing.T) {
	repo := NewInMemoryJobRepository(10)
	ctx := context.Background()

	running := domain.NewJob("r", domain.DownloadRequest{URL: "u"})
	done := domain.NewJob("d", domain.DownloadRequest{URL: "u"})
	done.MarkCompleted("d.mp4", 1)
	failed := domain.NewJob("f", domain.DownloadRequest{URL: "u"})
	failed.MarkFailed(domain.ErrExtractionFailed)
	blocked := domain.NewJob("b", domain.DownloadRequest{URL: "u"})
	blocked.MarkFailed(domain.ErrSiteBlocking)

	for _, j := range []*domain.Job{running, done, failed, blocked} {
		repo.Save(ctx, j)
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Running != 1 || stats.Completed != 1 || stats.Failed != 2 || stats.Blocked != 1 {
		t.Errorf("stats = %+v", stats)
	}

	repo.Clear()
	stats, _ = repo.Stats(ctx)
	if *stats != (JobStats{}) {
		t.Errorf("stats after Clear = %+v", stats)
	}
}
