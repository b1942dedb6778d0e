package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/iconidentify/vidgrab/internal/config"
	"github.com/iconidentify/vidgrab/internal/domain"
	"github.com/iconidentify/vidgrab/internal/repository"
)

// FreeSpaceFunc reports the free bytes on the filesystem holding path.
type FreeSpaceFunc func(ctx context.Context, path string) (uint64, error)

// DiskFreeSpace reads free space with gopsutil.
func DiskFreeSpace(ctx context.Context, path string) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// SweepReport summarizes one retention pass.
type SweepReport struct {
	Scanned        int      `json:"scanned"`
	Deleted        []string `json:"deleted"`
	FreedBytes     int64    `json:"freed_bytes"`
	Reconciled     int      `json:"reconciled"`
	Remaining      int      `json:"remaining"`
	RemainingBytes int64    `json:"remaining_bytes"`
}

// RetentionService evicts artifacts by age, total size and free disk space.
type RetentionService struct {
	cfg    config.RetentionConfig
	store  *repository.ArtifactStore
	index  repository.ArtifactIndex
	events domain.EventEmitter
	logger *slog.Logger

	freeSpace FreeSpaceFunc
	now       func() time.Time
}

// RetentionOption customizes a RetentionService.
type RetentionOption func(*RetentionService)

// WithFreeSpace replaces the free space lookup.
func WithFreeSpace(fn FreeSpaceFunc) RetentionOption {
	return func(s *RetentionService) { s.freeSpace = fn }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) RetentionOption {
	return func(s *RetentionService) { s.now = now }
}

// NewRetentionService creates a retention service.
func NewRetentionService(
	cfg config.RetentionConfig,
	store *repository.ArtifactStore,
	index repository.ArtifactIndex,
	events domain.EventEmitter,
	logger *slog.Logger,
	opts ...RetentionOption,
) *RetentionService {
	if events == nil {
		events = nopEmitter{}
	}
	if index == nil {
		index = repository.NewMemoryIndex()
	}
	s := &RetentionService{
		cfg:       cfg,
		store:     store,
		index:     index,
		events:    events,
		logger:    logger,
		freeSpace: DiskFreeSpace,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep runs one retention pass. Files younger than the grace window are
// never removed, so a download in progress is left alone.
func (s *RetentionService) Sweep(ctx context.Context) (*SweepReport, error) {
	files, err := s.store.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan artifacts: %w", err)
	}

	report := &SweepReport{Scanned: len(files), Deleted: []string{}}
	now := s.now()

	created := s.createdTimes(ctx, files)
	sort.SliceStable(files, func(i, j int) bool {
		return created[files[i].Filename].Before(created[files[j].Filename])
	})

	var total int64
	for _, f := range files {
		total += f.Info.Size()
	}

	var free int64 = -1
	if s.cfg.MinFreeBytes > 0 {
		n, err := s.freeSpace(ctx, s.store.Root())
		if err != nil {
			s.logger.Warn("could not read free disk space", "error", err)
		} else {
			free = int64(n)
		}
	}

	kept := make([]repository.ArtifactFile, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		age := now.Sub(created[f.Filename])
		if age < s.cfg.Grace {
			kept = append(kept, f)
			continue
		}

		reason := ""
		switch {
		case s.cfg.MaxAge > 0 && age > s.cfg.MaxAge:
			reason = "max_age"
		case s.cfg.MaxTotalBytes > 0 && total > s.cfg.MaxTotalBytes:
			reason = "max_total_bytes"
		case free >= 0 && free < s.cfg.MinFreeBytes:
			reason = "min_free_bytes"
		}
		if reason == "" {
			kept = append(kept, f)
			continue
		}

		if err := s.evict(ctx, f, reason); err != nil {
			s.logger.Warn("failed to evict artifact", "filename", f.Filename, "error", err)
			kept = append(kept, f)
			continue
		}
		size := f.Info.Size()
		total -= size
		if free >= 0 {
			free += size
		}
		report.Deleted = append(report.Deleted, f.Filename)
		report.FreedBytes += size
	}

	reconciled, err := s.reconcile(ctx, kept)
	if err != nil {
		s.logger.Warn("index reconciliation failed", "error", err)
	}
	report.Reconciled = reconciled
	report.Remaining = len(kept)
	report.RemainingBytes = total

	if len(report.Deleted) > 0 {
		s.logger.Info("retention sweep evicted artifacts",
			"deleted", len(report.Deleted),
			"freed_bytes", report.FreedBytes,
			"remaining", report.Remaining,
		)
	}
	return report, nil
}

// createdTimes returns when each file was downloaded. The index records
// that moment; the modification time is only a fallback because the engine
// can stamp files with the server's Last-Modified date.
func (s *RetentionService) createdTimes(ctx context.Context, files []repository.ArtifactFile) map[string]time.Time {
	byID := make(map[domain.JobID]domain.Artifact)
	if entries, err := s.index.List(ctx); err != nil {
		s.logger.Warn("could not read artifact index, ages fall back to modification times", "error", err)
	} else {
		for _, a := range entries {
			byID[a.JobID] = a
		}
	}

	created := make(map[string]time.Time, len(files))
	for _, f := range files {
		t := f.Info.ModTime()
		if a, ok := byID[f.JobID]; ok && a.Filename == f.Filename && !a.CreatedAt.IsZero() {
			t = a.CreatedAt
		}
		created[f.Filename] = t
	}
	return created
}

func (s *RetentionService) evict(ctx context.Context, f repository.ArtifactFile, reason string) error {
	if err := s.store.Delete(f.Filename); err != nil && !errors.Is(err, domain.ErrArtifactNotFound) {
		return err
	}
	if err := s.index.Delete(ctx, f.JobID); err != nil {
		s.logger.Warn("failed to remove index entry", "job_id", f.JobID, "error", err)
	}
	s.events.EmitInfo(domain.EventCategoryRetention, "retention_service", "artifact evicted", domain.EventMetadata{
		"job_id":   f.JobID,
		"filename": f.Filename,
		"size":     f.Info.Size(),
		"reason":   reason,
	})
	return nil
}

// reconcile drops index entries whose file is gone and indexes complete
// files the index does not know about.
func (s *RetentionService) reconcile(ctx context.Context, kept []repository.ArtifactFile) (int, error) {
	entries, err := s.index.List(ctx)
	if err != nil {
		return 0, err
	}

	onDisk := make(map[domain.JobID]repository.ArtifactFile, len(kept))
	for _, f := range kept {
		if repository.IsPartial(f.Filename) {
			continue
		}
		onDisk[f.JobID] = f
	}

	changed := 0
	indexed := make(map[domain.JobID]bool, len(entries))
	for _, a := range entries {
		indexed[a.JobID] = true
		if f, ok := onDisk[a.JobID]; ok && f.Filename == a.Filename {
			continue
		}
		if err := s.index.Delete(ctx, a.JobID); err != nil {
			return changed, err
		}
		indexed[a.JobID] = false
		changed++
	}

	for id, f := range onDisk {
		if indexed[id] {
			continue
		}
		a := domain.Artifact{
			JobID:     id,
			Filename:  f.Filename,
			Size:      f.Info.Size(),
			Title:     domain.UnknownTitle,
			CreatedAt: f.Info.ModTime().UTC(),
		}
		if err := s.index.Put(ctx, a); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}
