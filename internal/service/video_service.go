package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/google/uuid"

	"github.com/iconidentify/vidgrab/internal/domain"
	"github.com/iconidentify/vidgrab/internal/extractor"
	"github.com/iconidentify/vidgrab/internal/pacing"
	"github.com/iconidentify/vidgrab/internal/repository"
)

// Engine is the extraction capability the orchestrator drives.
type Engine interface {
	FetchInfo(ctx context.Context, url string) (*extractor.Metadata, error)
	Download(ctx context.Context, url, formatID, outputTemplate string) (*extractor.Metadata, error)
}

// VideoServiceConfig holds the collaborators of VideoService.
type VideoServiceConfig struct {
	Engine Engine
	Store  *repository.ArtifactStore
	Index  repository.ArtifactIndex
	Jobs   repository.JobRepository
	Events domain.EventEmitter

	// Pacer delays each download before the engine is invoked.
	// Nil means no delay.
	Pacer pacing.Pacer
}

// VideoService orchestrates metadata queries and download jobs.
type VideoService struct {
	engine Engine
	store  *repository.ArtifactStore
	index  repository.ArtifactIndex
	jobs   repository.JobRepository
	events domain.EventEmitter
	pacer  pacing.Pacer
	logger *slog.Logger

	newJobID func() domain.JobID
}

// NewVideoService creates a new video service.
func NewVideoService(cfg VideoServiceConfig, logger *slog.Logger) *VideoService {
	svc := &VideoService{
		engine:   cfg.Engine,
		store:    cfg.Store,
		index:    cfg.Index,
		jobs:     cfg.Jobs,
		events:   cfg.Events,
		pacer:    cfg.Pacer,
		logger:   logger,
		newJobID: func() domain.JobID { return domain.JobID(uuid.NewString()) },
	}
	if svc.index == nil {
		svc.index = repository.NewMemoryIndex()
	}
	if svc.jobs == nil {
		svc.jobs = repository.NewInMemoryJobRepository(0)
	}
	if svc.events == nil {
		svc.events = nopEmitter{}
	}
	if svc.pacer == nil {
		svc.pacer = pacing.None
	}
	return svc
}

// GetInfo returns metadata and the available video formats for url.
func (s *VideoService) GetInfo(ctx context.Context, url string) (*domain.VideoInfo, error) {
	req := domain.DownloadRequest{URL: url}
	if err := req.Validate(); err != nil {
		return nil, domain.NewJobError("", "info", err)
	}
	url = strings.TrimSpace(url)

	logger := s.logger.With("url", url)
	logger.Info("fetching video info")

	meta, err := s.engine.FetchInfo(ctx, url)
	if err != nil {
		s.reportEngineFailure(domain.EventCategoryExtraction, "info", url, err)
		return nil, domain.NewJobError("", "info", err)
	}

	info := meta.VideoInfo()
	logger.Info("video info fetched", "title", info.Title, "formats", len(info.Formats))
	return &info, nil
}

// Download runs one download job and returns the artifact it produced.
func (s *VideoService) Download(ctx context.Context, req domain.DownloadRequest) (*domain.DownloadResult, error) {
	if err := req.Validate(); err != nil {
		return nil, domain.NewJobError("", "download", err)
	}
	req = req.Normalize()

	jobID := s.newJobID()
	job := domain.NewJob(jobID, req)
	s.saveJob(ctx, job)

	logger := s.logger.With("job_id", jobID, "url", req.URL, "format_id", req.FormatID)
	logger.Info("download job started")

	result, err := s.runDownload(ctx, job, logger)
	if err != nil {
		job.MarkFailed(err)
		s.saveJob(context.WithoutCancel(ctx), job)
		s.reportEngineFailure(domain.EventCategoryDownload, "download", req.URL, err)
		logger.Warn("download job failed", "kind", domain.KindOf(err), "error", err)
		return nil, domain.NewJobError(jobID, "download", err)
	}

	job.MarkCompleted(result.Filename, result.Size)
	s.saveJob(ctx, job)
	s.events.EmitSuccess(domain.EventCategoryDownload, "video_service", "download completed", domain.EventMetadata{
		"job_id":   jobID,
		"filename": result.Filename,
		"size":     result.Size,
		"url":      req.URL,
	})
	logger.Info("download job completed", "filename", result.Filename, "size", result.Size)
	return result, nil
}

func (s *VideoService) runDownload(ctx context.Context, job *domain.Job, logger *slog.Logger) (*domain.DownloadResult, error) {
	if err := pacing.Wait(ctx, s.pacer); err != nil {
		return nil, fmt.Errorf("pacing: %w", err)
	}

	meta, err := s.engine.Download(ctx, job.URL, job.FormatID, s.store.OutputTemplate(job.ID))
	if err != nil {
		return nil, err
	}

	// Success from the engine still requires the file on disk.
	filename, err := s.store.LocateByPrefix(ctx, job.ID)
	if err != nil {
		if errors.Is(err, domain.ErrArtifactNotFound) {
			logger.Error("engine reported success but no artifact was written", "engine_error", meta.EngineError)
			return nil, &incompleteError{engineMessage: meta.EngineError}
		}
		return nil, fmt.Errorf("locate artifact: %w", err)
	}

	info, err := s.store.Stat(filename)
	if err != nil {
		if errors.Is(err, domain.ErrArtifactNotFound) {
			return nil, &incompleteError{engineMessage: meta.EngineError}
		}
		return nil, fmt.Errorf("stat artifact: %w", err)
	}

	title := strings.TrimSpace(meta.Title)
	if title == "" {
		title = s.containerTitle(filename)
	}
	if title == "" {
		title = domain.UnknownTitle
	}

	artifact := domain.Artifact{
		JobID:     job.ID,
		Filename:  filename,
		Size:      info.Size(),
		Title:     title,
		SourceURL: job.URL,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.index.Put(ctx, artifact); err != nil {
		logger.Warn("failed to index artifact", "error", err)
	}

	return &domain.DownloadResult{
		JobID:    job.ID,
		Filename: filename,
		Title:    title,
		Size:     info.Size(),
	}, nil
}

// containerTitle reads the title tag embedded in the media container, if any.
func (s *VideoService) containerTitle(filename string) string {
	f, _, err := s.store.Open(filename)
	if err != nil {
		return ""
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(m.Title())
}

// Artifact returns the record for a job's artifact, consulting the index
// before scanning the store.
func (s *VideoService) Artifact(ctx context.Context, jobID domain.JobID) (*domain.Artifact, error) {
	if a, err := s.index.Get(ctx, jobID); err == nil {
		if _, statErr := s.store.Stat(a.Filename); statErr == nil {
			return a, nil
		}
		// Stale entry: the file was removed out of band.
		s.index.Delete(ctx, jobID)
	}

	filename, err := s.store.LocateByPrefix(ctx, jobID)
	if err != nil {
		return nil, err
	}
	info, err := s.store.Stat(filename)
	if err != nil {
		return nil, err
	}
	return &domain.Artifact{
		JobID:     jobID,
		Filename:  filename,
		Size:      info.Size(),
		CreatedAt: info.ModTime().UTC(),
	}, nil
}

// ListArtifacts returns the indexed artifacts, newest first.
func (s *VideoService) ListArtifacts(ctx context.Context) ([]domain.Artifact, error) {
	return s.index.List(ctx)
}

// OpenArtifact opens an artifact for serving.
func (s *VideoService) OpenArtifact(filename string) (*os.File, os.FileInfo, error) {
	return s.store.Open(filename)
}

// Jobs returns the job result repository.
func (s *VideoService) Jobs() repository.JobRepository {
	return s.jobs
}

func (s *VideoService) saveJob(ctx context.Context, job *domain.Job) {
	if err := s.jobs.Save(ctx, job); err != nil {
		s.logger.Warn("failed to record job", "job_id", job.ID, "error", err)
	}
}

// incompleteError is domain.ErrDownloadIncomplete plus whatever the engine
// printed to stderr while exiting non-zero.
type incompleteError struct {
	engineMessage string
}

func (e *incompleteError) Error() string { return domain.ErrDownloadIncomplete.Error() }
func (e *incompleteError) Unwrap() error { return domain.ErrDownloadIncomplete }

func (s *VideoService) reportEngineFailure(category domain.EventCategory, op, url string, err error) {
	meta := domain.EventMetadata{
		"op":    op,
		"url":   url,
		"kind":  domain.KindOf(err),
		"error": domain.EngineMessage(err),
	}
	var ie *incompleteError
	if errors.As(err, &ie) && ie.engineMessage != "" {
		meta["engine_error"] = ie.engineMessage
	}
	if errors.Is(err, domain.ErrSiteBlocking) {
		s.events.EmitWarning(category, "video_service", "site is blocking automated access", meta)
		return
	}
	s.events.EmitError(category, "video_service", op+" failed", meta)
}
