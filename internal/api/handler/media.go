package handler

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/dsconvert/internal/domain"
)

// MediaHandler streams stored videos with byte-range support.
type MediaHandler struct {
	videoSvc VideoService
	logger   *slog.Logger
}

// NewMediaHandler creates a new media handler.
func NewMediaHandler(videoSvc VideoService, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{
		videoSvc: videoSvc,
		logger:   logger,
	}
}

// Serve handles GET and HEAD /videos/{filename}
func (h *MediaHandler) Serve(w http.ResponseWriter, r *http.Request) {
	// Only "<uuid>.mp4" names a file, which also rules out path traversal.
	id, err := domain.JobIDFromFilename(chi.URLParam(r, "filename"))
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	file, err := os.Open(h.videoSvc.Path(id))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			h.logger.Error("open video failed", "job_id", id.String(), "error", err)
		}
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil || !stat.Mode().IsRegular() {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Cache-Control", "public, max-age=3600")

	// http.ServeContent handles Range requests, HEAD and 416 responses
	http.ServeContent(&rangeErrorWriter{ResponseWriter: w, size: stat.Size()}, r, id.Filename(), stat.ModTime(), file)
}

// rangeErrorWriter adds "Content-Range: bytes */size" to every 416.
// http.ServeContent only does so for ranges past the end, not for
// malformed ones.
type rangeErrorWriter struct {
	http.ResponseWriter
	size int64
}

func (w *rangeErrorWriter) WriteHeader(code int) {
	if code == http.StatusRequestedRangeNotSatisfiable && w.Header().Get("Content-Range") == "" {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", w.size))
	}
	w.ResponseWriter.WriteHeader(code)
}
