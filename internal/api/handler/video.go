package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/iconidentify/vidgrab/internal/domain"
	"github.com/iconidentify/vidgrab/internal/service"
)

// VideoHandler handles the video endpoints.
type VideoHandler struct {
	videoSvc   *service.VideoService
	pathPrefix string
	logger     *slog.Logger
}

// NewVideoHandler creates a new video handler. pathPrefix is the mount
// point of the API and is used to build download URLs.
func NewVideoHandler(videoSvc *service.VideoService, pathPrefix string, logger *slog.Logger) *VideoHandler {
	return &VideoHandler{
		videoSvc:   videoSvc,
		pathPrefix: pathPrefix,
		logger:     logger,
	}
}

// InfoRequest is the JSON request body for POST /video/info.
type InfoRequest struct {
	URL string `json:"url"`
}

// DownloadRequest is the JSON request body for POST /video/download.
type DownloadRequest struct {
	URL      string `json:"url"`
	FormatID string `json:"format_id"`
}

// DownloadResponse is returned after a successful download.
type DownloadResponse struct {
	Success     bool   `json:"success"`
	Filename    string `json:"filename"`
	Title       string `json:"title"`
	FileSize    int64  `json:"file_size"`
	DownloadURL string `json:"download_url"`
}

// SupportedSitesResponse lists the curated sites.
type SupportedSitesResponse struct {
	SupportedSites []domain.Site `json:"supported_sites"`
	TotalSites     int           `json:"total_sites"`
	Note           string        `json:"note"`
}

// ArtifactResponse describes a stored artifact.
type ArtifactResponse struct {
	JobID       string    `json:"job_id"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	Title       string    `json:"title,omitempty"`
	SourceURL   string    `json:"source_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	DownloadURL string    `json:"download_url"`
}

// ArtifactListResponse lists stored artifacts.
type ArtifactListResponse struct {
	Artifacts []ArtifactResponse `json:"artifacts"`
	Total     int                `json:"total"`
}

// Info handles POST /video/info
func (h *VideoHandler) Info(w http.ResponseWriter, r *http.Request) {
	var req InfoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	info, err := h.videoSvc.GetInfo(r.Context(), req.URL)
	if err != nil {
		switch statusFor(err) {
		case http.StatusBadRequest:
			writeError(w, http.StatusBadRequest, "URL is required")
		case http.StatusTooManyRequests:
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
				Error:      infoBlockedError,
				Suggestion: infoBlockedSuggestion,
			})
		default:
			h.logger.Error("video info failed", "url", req.URL, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to extract video info: "+causeMessage(err))
		}
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// Download handles POST /video/download
func (h *VideoHandler) Download(w http.ResponseWriter, r *http.Request) {
	var req DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.videoSvc.Download(r.Context(), domain.DownloadRequest{
		URL:      req.URL,
		FormatID: req.FormatID,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, "URL is required")
		case errors.Is(err, domain.ErrSiteBlocking):
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
				Error:      downloadBlockedError,
				Suggestion: downloadBlockedSuggestion,
			})
		case errors.Is(err, domain.ErrDownloadIncomplete):
			writeError(w, http.StatusInternalServerError, "Download failed - file not found")
		default:
			h.logger.Error("video download failed", "url", req.URL, "error", err)
			writeError(w, http.StatusInternalServerError, "Download failed: "+causeMessage(err))
		}
		return
	}

	writeJSON(w, http.StatusOK, DownloadResponse{
		Success:     true,
		Filename:    result.Filename,
		Title:       result.Title,
		FileSize:    result.Size,
		DownloadURL: h.fileURL(result.Filename),
	})
}

// File handles GET /video/file/{filename} as an attachment.
func (h *VideoHandler) File(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "attachment", "")
}

// Stream handles GET /video/stream/{filename} for inline playback.
func (h *VideoHandler) Stream(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "inline", "video/mp4")
}

func (h *VideoHandler) serve(w http.ResponseWriter, r *http.Request, disposition, contentType string) {
	filename, ok := filenameParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	f, info, err := h.videoSvc.OpenArtifact(filename)
	if err != nil {
		if statusFor(err) != http.StatusNotFound {
			h.logger.Error("failed to open artifact", "filename", filename, "error", err)
		}
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	defer f.Close()

	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(filename))
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, filename))

	http.ServeContent(w, r, filename, info.ModTime(), f)
}

// SupportedSites handles GET /video/supported-sites
func (h *VideoHandler) SupportedSites(w http.ResponseWriter, r *http.Request) {
	sites := domain.SupportedSites()
	writeJSON(w, http.StatusOK, SupportedSitesResponse{
		SupportedSites: sites,
		TotalSites:     len(sites),
		Note:           domain.SupportedSitesNote,
	})
}

// Artifacts handles GET /video/artifacts
func (h *VideoHandler) Artifacts(w http.ResponseWriter, r *http.Request) {
	list, err := h.videoSvc.ListArtifacts(r.Context())
	if err != nil {
		h.logger.Error("list artifacts failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response := ArtifactListResponse{
		Artifacts: make([]ArtifactResponse, 0, len(list)),
		Total:     len(list),
	}
	for _, a := range list {
		response.Artifacts = append(response.Artifacts, h.artifactResponse(a))
	}
	writeJSON(w, http.StatusOK, response)
}

// Artifact handles GET /video/artifacts/{jobID}
func (h *VideoHandler) Artifact(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if _, err := uuid.Parse(jobID); err != nil || len(jobID) != 36 {
		writeError(w, http.StatusNotFound, "Artifact not found")
		return
	}

	a, err := h.videoSvc.Artifact(r.Context(), domain.JobID(jobID))
	if err != nil {
		if statusFor(err) == http.StatusNotFound {
			writeError(w, http.StatusNotFound, "Artifact not found")
			return
		}
		h.logger.Error("artifact lookup failed", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.artifactResponse(*a))
}

func (h *VideoHandler) artifactResponse(a domain.Artifact) ArtifactResponse {
	return ArtifactResponse{
		JobID:       a.JobID.String(),
		Filename:    a.Filename,
		Size:        a.Size,
		Title:       a.Title,
		SourceURL:   a.SourceURL,
		CreatedAt:   a.CreatedAt,
		DownloadURL: h.fileURL(a.Filename),
	}
}

func (h *VideoHandler) fileURL(filename string) string {
	return fmt.Sprintf("%s/video/file/%s", h.pathPrefix, url.PathEscape(filename))
}
