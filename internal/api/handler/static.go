package handler

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/iconidentify/vidgrab/internal/repository"
)

// StaticHandler serves media bundled with the deployment.
type StaticHandler struct {
	root   string
	logger *slog.Logger
}

// NewStaticHandler creates a handler serving files from root.
func NewStaticHandler(root string, logger *slog.Logger) *StaticHandler {
	return &StaticHandler{root: root, logger: logger}
}

// Serve handles GET /videos/{filename}
func (h *StaticHandler) Serve(w http.ResponseWriter, r *http.Request) {
	filename, ok := filenameParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Video not found")
		return
	}

	path, info, err := repository.ResolveStatic(h.root, filename)
	if err != nil {
		writeError(w, http.StatusNotFound, "Video not found")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		h.logger.Warn("failed to open static media", "path", path, "error", err)
		writeError(w, http.StatusNotFound, "Video not found")
		return
	}
	defer f.Close()

	http.ServeContent(w, r, filename, info.ModTime(), f)
}
